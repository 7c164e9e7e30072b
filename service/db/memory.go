package db

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/brojonat/solxr/service/engine"
	"github.com/brojonat/solxr/service/strategy"
	"github.com/gagliardetto/solana-go"
)

type roundKey struct {
	round  uint64
	wallet solana.PublicKey
}

type offeringKey struct {
	kind strategy.OfferingKind
	id   uint64
}

type participantKey struct {
	offeringKey
	wallet solana.PublicKey
}

type editionKey struct {
	offeringKey
	edition uint64
}

type masterRecord struct {
	supplyCap *uint64
	printed   uint64
}

type editionRecord struct {
	master solana.PublicKey
	number uint64
	owner  solana.PublicKey
	burned bool
}

// memState is everything the memory store holds. Values are stored by value,
// and committed maps are never written, so a struct copy is a snapshot.
type memState struct {
	strategy          strategy.State
	rounds            map[uint64]strategy.MintRound
	roundParticipants map[roundKey]strategy.RoundParticipant
	offerings         map[offeringKey]strategy.Offering
	participants      map[participantKey]strategy.Participant
	redemptions       map[editionKey]strategy.Redemption

	tokens     map[solana.PublicKey]uint64
	supply     uint64
	collateral map[solana.PublicKey]uint64
	masters    map[solana.PublicKey]masterRecord
	editions   map[solana.PublicKey]editionRecord
}

func newMemState() *memState {
	return &memState{
		rounds:            make(map[uint64]strategy.MintRound),
		roundParticipants: make(map[roundKey]strategy.RoundParticipant),
		offerings:         make(map[offeringKey]strategy.Offering),
		participants:      make(map[participantKey]strategy.Participant),
		redemptions:       make(map[editionKey]strategy.Redemption),
		tokens:            make(map[solana.PublicKey]uint64),
		collateral:        make(map[solana.PublicKey]uint64),
		masters:           make(map[solana.PublicKey]masterRecord),
		editions:          make(map[solana.PublicKey]editionRecord),
	}
}

// MemoryStore is an in-process engine.Store. A transaction starts from a
// shallow copy of the committed state and clones a map the first time it
// writes to it, so a write costs O(size of each map it touches) and a View
// costs nothing beyond the read lock. The working copy replaces the
// committed state only if fn succeeds.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// WithTx implements engine.Store.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := *s.state
	if err := fn(ctx, &memTx{s: &work}); err != nil {
		return err
	}
	s.state = &work
	return nil
}

// View implements engine.Store. Writes made by fn are discarded.
func (s *MemoryStore) View(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	s.mu.RLock()
	work := *s.state
	s.mu.RUnlock()
	return fn(ctx, &memTx{s: &work})
}

// Bits of memTx.owned, one per map a transaction may have cloned.
const (
	ownRounds uint16 = 1 << iota
	ownRoundParticipants
	ownOfferings
	ownParticipants
	ownRedemptions
	ownTokens
	ownCollateral
	ownMasters
	ownEditions
)

type memTx struct {
	s     *memState
	owned uint16
}

// writable returns *m for writing, cloning it on the transaction's first write.
func writable[K comparable, V any](t *memTx, bit uint16, m *map[K]V) map[K]V {
	if t.owned&bit == 0 {
		*m = maps.Clone(*m)
		t.owned |= bit
	}
	return *m
}

func (t *memTx) Strategy(ctx context.Context) (strategy.State, error) {
	return t.s.strategy, nil
}

func (t *memTx) PutStrategy(ctx context.Context, st strategy.State) error {
	t.s.strategy = st
	return nil
}

func (t *memTx) Round(ctx context.Context, id uint64) (*strategy.MintRound, error) {
	r, ok := t.s.rounds[id]
	if !ok {
		return nil, engine.ErrRecordNotFound
	}
	return &r, nil
}

func (t *memTx) PutRound(ctx context.Context, r *strategy.MintRound) error {
	writable(t, ownRounds, &t.s.rounds)[r.ID] = *r
	return nil
}

func (t *memTx) RoundParticipant(ctx context.Context, roundID uint64, wallet solana.PublicKey) (strategy.RoundParticipant, error) {
	p, ok := t.s.roundParticipants[roundKey{roundID, wallet}]
	if !ok {
		return strategy.RoundParticipant{RoundID: roundID, Wallet: wallet}, nil
	}
	return p, nil
}

func (t *memTx) PutRoundParticipant(ctx context.Context, p strategy.RoundParticipant) error {
	writable(t, ownRoundParticipants, &t.s.roundParticipants)[roundKey{p.RoundID, p.Wallet}] = p
	return nil
}

func (t *memTx) Offering(ctx context.Context, kind strategy.OfferingKind, id uint64) (*strategy.Offering, error) {
	o, ok := t.s.offerings[offeringKey{kind, id}]
	if !ok {
		return nil, engine.ErrRecordNotFound
	}
	return &o, nil
}

func (t *memTx) PutOffering(ctx context.Context, o *strategy.Offering) error {
	writable(t, ownOfferings, &t.s.offerings)[offeringKey{o.Kind, o.ID}] = *o
	return nil
}

func (t *memTx) Participant(ctx context.Context, kind strategy.OfferingKind, id uint64, wallet solana.PublicKey) (strategy.Participant, error) {
	p, ok := t.s.participants[participantKey{offeringKey{kind, id}, wallet}]
	if !ok {
		return strategy.Participant{Kind: kind, OfferingID: id, Wallet: wallet}, nil
	}
	return p, nil
}

func (t *memTx) PutParticipant(ctx context.Context, p strategy.Participant) error {
	writable(t, ownParticipants, &t.s.participants)[participantKey{offeringKey{p.Kind, p.OfferingID}, p.Wallet}] = p
	return nil
}

func (t *memTx) Redemption(ctx context.Context, kind strategy.OfferingKind, id, edition uint64) (*strategy.Redemption, error) {
	r, ok := t.s.redemptions[editionKey{offeringKey{kind, id}, edition}]
	if !ok {
		return nil, engine.ErrRecordNotFound
	}
	return &r, nil
}

func (t *memTx) PutRedemption(ctx context.Context, r *strategy.Redemption) error {
	key := editionKey{offeringKey{r.Kind, r.OfferingID}, r.Edition}
	if _, exists := t.s.redemptions[key]; exists {
		return fmt.Errorf("redemption for %s %d edition %d already recorded", r.Kind, r.OfferingID, r.Edition)
	}
	writable(t, ownRedemptions, &t.s.redemptions)[key] = *r
	return nil
}

func (t *memTx) Tokens() engine.TokenLedger           { return memTokens{t} }
func (t *memTx) Editions() engine.EditionLedger       { return memEditions{t} }
func (t *memTx) Collateral() engine.CollateralLedger { return memCollateral{t} }

type memTokens struct{ tx *memTx }

func (l memTokens) Mint(ctx context.Context, to solana.PublicKey, amount uint64) error {
	s := l.tx.s
	supply, err := checkedAdd(s.supply, amount)
	if err != nil {
		return err
	}
	balance, err := checkedAdd(s.tokens[to], amount)
	if err != nil {
		return err
	}
	s.supply = supply
	writable(l.tx, ownTokens, &s.tokens)[to] = balance
	return nil
}

func (l memTokens) BalanceOf(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return l.tx.s.tokens[owner], nil
}

func (l memTokens) Supply(ctx context.Context) (uint64, error) {
	return l.tx.s.supply, nil
}

type memCollateral struct{ tx *memTx }

func (l memCollateral) Transfer(ctx context.Context, from, to solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	s := l.tx.s
	held := s.collateral[from]
	if held < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", engine.ErrInsufficientFunds, from, held, amount)
	}
	credited, err := checkedAdd(s.collateral[to], amount)
	if err != nil {
		return err
	}
	if from.Equals(to) {
		return nil
	}
	balances := writable(l.tx, ownCollateral, &s.collateral)
	balances[from] = held - amount
	balances[to] = credited
	return nil
}

func (l memCollateral) BalanceOf(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return l.tx.s.collateral[owner], nil
}

func (l memCollateral) Deposit(ctx context.Context, to solana.PublicKey, amount uint64) error {
	s := l.tx.s
	credited, err := checkedAdd(s.collateral[to], amount)
	if err != nil {
		return err
	}
	writable(l.tx, ownCollateral, &s.collateral)[to] = credited
	return nil
}

type memEditions struct{ tx *memTx }

func (l memEditions) CreateMaster(ctx context.Context, master solana.PublicKey, supplyCap *uint64) error {
	s := l.tx.s
	if _, exists := s.masters[master]; exists {
		return fmt.Errorf("master %s already exists", master)
	}
	writable(l.tx, ownMasters, &s.masters)[master] = masterRecord{supplyCap: supplyCap}
	return nil
}

func (l memEditions) PrintEdition(ctx context.Context, master, edition solana.PublicKey, number uint64, to solana.PublicKey) error {
	s := l.tx.s
	m, ok := s.masters[master]
	if !ok {
		return fmt.Errorf("master %s does not exist", master)
	}
	if m.supplyCap != nil && m.printed >= *m.supplyCap {
		return strategy.Errorf(strategy.ErrSupplyExhausted, "master %s printed all %d editions", master, *m.supplyCap)
	}
	if _, exists := s.editions[edition]; exists {
		return fmt.Errorf("edition %s already printed", edition)
	}
	m.printed++
	writable(l.tx, ownMasters, &s.masters)[master] = m
	writable(l.tx, ownEditions, &s.editions)[edition] = editionRecord{master: master, number: number, owner: to}
	return nil
}

func (l memEditions) AmountHeld(ctx context.Context, edition, owner solana.PublicKey) (uint64, error) {
	e, ok := l.tx.s.editions[edition]
	if !ok || e.burned || !e.owner.Equals(owner) {
		return 0, nil
	}
	return 1, nil
}

func (l memEditions) Burn(ctx context.Context, edition, owner solana.PublicKey) error {
	e, err := l.held(edition, owner)
	if err != nil {
		return err
	}
	e.burned = true
	writable(l.tx, ownEditions, &l.tx.s.editions)[edition] = e
	return nil
}

func (l memEditions) Transfer(ctx context.Context, edition, from, to solana.PublicKey) error {
	e, err := l.held(edition, from)
	if err != nil {
		return err
	}
	e.owner = to
	writable(l.tx, ownEditions, &l.tx.s.editions)[edition] = e
	return nil
}

func (l memEditions) held(edition, owner solana.PublicKey) (editionRecord, error) {
	e, ok := l.tx.s.editions[edition]
	if !ok || e.burned || !e.owner.Equals(owner) {
		return editionRecord{}, strategy.Errorf(strategy.ErrNotHeld, "%s does not hold edition %s", owner, edition)
	}
	return e, nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a+b < a {
		return 0, strategy.Errorf(strategy.ErrArithmetic, "overflow adding %d and %d", a, b)
	}
	return a + b, nil
}
