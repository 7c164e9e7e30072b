package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/brojonat/solxr/service/engine"
	"github.com/brojonat/solxr/service/metrics"
	"github.com/brojonat/solxr/service/strategy"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres engine.Store. Every write transaction locks the
// strategy row first, so operations on the singleton are serialized.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// m may be nil.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// WithTx implements engine.Store.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	start := time.Now()
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT id FROM strategy WHERE id = 1 FOR UPDATE"); err != nil {
			return fmt.Errorf("postgres: lock strategy: %w", err)
		}
		return fn(ctx, &pgTx{tx: tx})
	})
	s.observe("write", start, err)
	return err
}

// View implements engine.Store.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	start := time.Now()
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
	s.observe("read", start, err)
	return err
}

func (s *Store) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	var se *strategy.Error
	if errors.As(err, &se) {
		err = nil // rejected by a rule, not a database failure
	}
	s.metrics.RecordDBQuery(operation, "tx", time.Since(start).Seconds(), err)
}

type pgTx struct {
	tx pgx.Tx
}

// fitBigint rejects values that a BIGINT column cannot hold. Every write
// checks its amounts first, so i64 never wraps a value into a negative one.
func fitBigint(values ...uint64) error {
	for _, v := range values {
		if v > math.MaxInt64 {
			return strategy.Errorf(strategy.ErrArithmetic, "value %d exceeds the store's BIGINT range", v)
		}
	}
	return nil
}

func i64(v uint64) int64 { return int64(v) }
func u64(v int64) uint64 { return uint64(v) }

func keyText(k solana.PublicKey) string {
	if k.IsZero() {
		return ""
	}
	return k.String()
}

func parseKey(s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, nil
	}
	k, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("postgres: invalid stored key %q: %w", s, err)
	}
	return k, nil
}

func parseKeys(dst []*solana.PublicKey, src []string) error {
	for i, s := range src {
		k, err := parseKey(s)
		if err != nil {
			return err
		}
		*dst[i] = k
	}
	return nil
}

func (t *pgTx) Strategy(ctx context.Context) (strategy.State, error) {
	const query = `
		SELECT program, governance, platform, treasury, collection,
		       token_initialized, editions_initialized,
		       initial_pool_cap, individual_address_cap,
		       sol_in_treasury, sol_from_bond, sol_from_whitelist,
		       allow_new_mint, next_round_id, max_rounds, max_mint_per_wallet,
		       mint_duration_ns, platform_mint_fee, max_platform_mint_fee, min_premium,
		       capacity_model, nav_growth_rate, capacity_fixed,
		       next_bond_id, next_whitelist_id, bond_price
		FROM strategy WHERE id = 1`

	var (
		s    strategy.State
		keys [5]string
		n    [17]int64
	)
	err := t.tx.QueryRow(ctx, query).Scan(
		&keys[0], &keys[1], &keys[2], &keys[3], &keys[4],
		&s.TokenInitialized, &s.EditionsInitialized,
		&n[0], &n[1],
		&n[2], &n[3], &n[4],
		&s.AllowNewMint, &n[5], &n[6], &n[7],
		&n[8], &n[9], &n[10], &n[11],
		&s.Capacity.Model, &n[12], &n[13],
		&n[14], &n[15], &n[16],
	)
	if err != nil {
		return s, fmt.Errorf("postgres: get strategy: %w", err)
	}
	if err := parseKeys([]*solana.PublicKey{&s.Program, &s.Governance, &s.Platform, &s.Treasury, &s.Collection}, keys[:]); err != nil {
		return s, err
	}
	s.InitialPoolCap = u64(n[0])
	s.IndividualAddressCap = u64(n[1])
	s.SolInTreasury = u64(n[2])
	s.SolFromBond = u64(n[3])
	s.SolFromWhitelist = u64(n[4])
	s.NextRoundID = u64(n[5])
	s.MaxRounds = u64(n[6])
	s.MaxMintPerWallet = u64(n[7])
	s.MintDuration = time.Duration(n[8])
	s.PlatformMintFee = u64(n[9])
	s.MaxPlatformMintFee = u64(n[10])
	s.MinPremium = u64(n[11])
	s.Capacity.NavGrowthRate = u64(n[12])
	s.Capacity.Fixed = u64(n[13])
	s.NextBondID = u64(n[14])
	s.NextWhitelistID = u64(n[15])
	s.BondPrice = u64(n[16])
	return s, nil
}

func (t *pgTx) PutStrategy(ctx context.Context, s strategy.State) error {
	const query = `
		UPDATE strategy SET
			program = $1, governance = $2, platform = $3, treasury = $4, collection = $5,
			token_initialized = $6, editions_initialized = $7,
			initial_pool_cap = $8, individual_address_cap = $9,
			sol_in_treasury = $10, sol_from_bond = $11, sol_from_whitelist = $12,
			allow_new_mint = $13, next_round_id = $14, max_rounds = $15, max_mint_per_wallet = $16,
			mint_duration_ns = $17, platform_mint_fee = $18, max_platform_mint_fee = $19, min_premium = $20,
			capacity_model = $21, nav_growth_rate = $22, capacity_fixed = $23,
			next_bond_id = $24, next_whitelist_id = $25, bond_price = $26,
			updated_at = NOW()
		WHERE id = 1`

	if err := fitBigint(s.InitialPoolCap, s.IndividualAddressCap,
		s.SolInTreasury, s.SolFromBond, s.SolFromWhitelist,
		s.NextRoundID, s.MaxRounds, s.MaxMintPerWallet,
		s.PlatformMintFee, s.MaxPlatformMintFee, s.MinPremium,
		s.Capacity.NavGrowthRate, s.Capacity.Fixed,
		s.NextBondID, s.NextWhitelistID, s.BondPrice); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, query,
		keyText(s.Program), keyText(s.Governance), keyText(s.Platform), keyText(s.Treasury), keyText(s.Collection),
		s.TokenInitialized, s.EditionsInitialized,
		i64(s.InitialPoolCap), i64(s.IndividualAddressCap),
		i64(s.SolInTreasury), i64(s.SolFromBond), i64(s.SolFromWhitelist),
		s.AllowNewMint, i64(s.NextRoundID), i64(s.MaxRounds), i64(s.MaxMintPerWallet),
		int64(s.MintDuration), i64(s.PlatformMintFee), i64(s.MaxPlatformMintFee), i64(s.MinPremium),
		string(s.Capacity.Model), i64(s.Capacity.NavGrowthRate), i64(s.Capacity.Fixed),
		i64(s.NextBondID), i64(s.NextWhitelistID), i64(s.BondPrice),
	)
	if err != nil {
		return fmt.Errorf("postgres: update strategy: %w", err)
	}
	return nil
}

func (t *pgTx) Round(ctx context.Context, id uint64) (*strategy.MintRound, error) {
	const query = `
		SELECT premium, start_at, solxr_minted, solxr_available, max_mint_per_wallet, closed
		FROM mint_rounds WHERE id = $1`

	r := &strategy.MintRound{ID: id}
	var premium, minted, available, maxPerWallet int64
	err := t.tx.QueryRow(ctx, query, i64(id)).Scan(&premium, &r.Start, &minted, &available, &maxPerWallet, &r.Closed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get round %d: %w", id, err)
	}
	r.Premium = u64(premium)
	r.SolxrMinted = u64(minted)
	r.SolxrAvailable = u64(available)
	r.MaxMintPerWallet = u64(maxPerWallet)
	r.Start = r.Start.UTC()
	return r, nil
}

func (t *pgTx) PutRound(ctx context.Context, r *strategy.MintRound) error {
	const query = `
		INSERT INTO mint_rounds (id, premium, start_at, solxr_minted, solxr_available, max_mint_per_wallet, closed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			solxr_minted = EXCLUDED.solxr_minted,
			closed = EXCLUDED.closed`

	if err := fitBigint(r.ID, r.Premium, r.SolxrMinted, r.SolxrAvailable, r.MaxMintPerWallet); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, query,
		i64(r.ID), i64(r.Premium), r.Start, i64(r.SolxrMinted), i64(r.SolxrAvailable), i64(r.MaxMintPerWallet), r.Closed)
	if err != nil {
		return fmt.Errorf("postgres: put round %d: %w", r.ID, err)
	}
	return nil
}

func (t *pgTx) RoundParticipant(ctx context.Context, roundID uint64, wallet solana.PublicKey) (strategy.RoundParticipant, error) {
	const query = `SELECT minted FROM round_participants WHERE round_id = $1 AND wallet = $2`

	p := strategy.RoundParticipant{RoundID: roundID, Wallet: wallet}
	var minted int64
	err := t.tx.QueryRow(ctx, query, i64(roundID), wallet.String()).Scan(&minted)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("postgres: get round participant: %w", err)
	}
	p.Minted = u64(minted)
	return p, nil
}

func (t *pgTx) PutRoundParticipant(ctx context.Context, p strategy.RoundParticipant) error {
	const query = `
		INSERT INTO round_participants (round_id, wallet, minted)
		VALUES ($1, $2, $3)
		ON CONFLICT (round_id, wallet) DO UPDATE SET minted = EXCLUDED.minted`

	if err := fitBigint(p.RoundID, p.Minted); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, query, i64(p.RoundID), p.Wallet.String(), i64(p.Minted)); err != nil {
		return fmt.Errorf("postgres: put round participant: %w", err)
	}
	return nil
}

func (t *pgTx) Offering(ctx context.Context, kind strategy.OfferingKind, id uint64) (*strategy.Offering, error) {
	const query = `
		SELECT name, symbol, uri, price, maturity, strike_price, supply, expiration,
		       max_mint_per_wallet, start_time, end_time, next_edition_number, master
		FROM offerings WHERE kind = $1 AND id = $2`

	o := &strategy.Offering{Kind: kind, ID: id}
	var (
		price, strike, supply, maxPerWallet, next int64
		expiration                                *time.Time
		master                                    string
	)
	err := t.tx.QueryRow(ctx, query, string(kind), i64(id)).Scan(
		&o.Name, &o.Symbol, &o.URI, &price, &o.Maturity, &strike, &supply, &expiration,
		&maxPerWallet, &o.StartTime, &o.EndTime, &next, &master,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %s %d: %w", kind, id, err)
	}
	if o.Master, err = parseKey(master); err != nil {
		return nil, err
	}
	o.Price = u64(price)
	o.StrikePrice = u64(strike)
	o.Supply = u64(supply)
	o.MaxMintPerWallet = u64(maxPerWallet)
	o.NextEditionNumber = u64(next)
	o.Maturity = o.Maturity.UTC()
	o.StartTime = o.StartTime.UTC()
	o.EndTime = o.EndTime.UTC()
	if expiration != nil {
		o.Expiration = expiration.UTC()
	}
	return o, nil
}

func (t *pgTx) PutOffering(ctx context.Context, o *strategy.Offering) error {
	const query = `
		INSERT INTO offerings (kind, id, name, symbol, uri, price, maturity, strike_price, supply,
		                       expiration, max_mint_per_wallet, start_time, end_time, next_edition_number, master)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (kind, id) DO UPDATE SET next_edition_number = EXCLUDED.next_edition_number`

	if err := fitBigint(o.ID, o.Price, o.StrikePrice, o.Supply, o.MaxMintPerWallet, o.NextEditionNumber); err != nil {
		return err
	}
	var expiration *time.Time
	if !o.Expiration.IsZero() {
		expiration = &o.Expiration
	}
	_, err := t.tx.Exec(ctx, query,
		string(o.Kind), i64(o.ID), o.Name, o.Symbol, o.URI, i64(o.Price), o.Maturity,
		i64(o.StrikePrice), i64(o.Supply), expiration, i64(o.MaxMintPerWallet),
		o.StartTime, o.EndTime, i64(o.NextEditionNumber), o.Master.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: put %s %d: %w", o.Kind, o.ID, err)
	}
	return nil
}

func (t *pgTx) Participant(ctx context.Context, kind strategy.OfferingKind, id uint64, wallet solana.PublicKey) (strategy.Participant, error) {
	const query = `
		SELECT collection, minted FROM offering_participants
		WHERE kind = $1 AND offering_id = $2 AND wallet = $3`

	p := strategy.Participant{Kind: kind, OfferingID: id, Wallet: wallet}
	var (
		collection string
		minted     int64
	)
	err := t.tx.QueryRow(ctx, query, string(kind), i64(id), wallet.String()).Scan(&collection, &minted)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("postgres: get participant: %w", err)
	}
	if p.Collection, err = parseKey(collection); err != nil {
		return p, err
	}
	p.Minted = u64(minted)
	return p, nil
}

func (t *pgTx) PutParticipant(ctx context.Context, p strategy.Participant) error {
	const query = `
		INSERT INTO offering_participants (kind, offering_id, wallet, collection, minted)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, offering_id, wallet) DO UPDATE SET minted = EXCLUDED.minted`

	if err := fitBigint(p.OfferingID, p.Minted); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, query, string(p.Kind), i64(p.OfferingID), p.Wallet.String(), p.Collection.String(), i64(p.Minted))
	if err != nil {
		return fmt.Errorf("postgres: put participant: %w", err)
	}
	return nil
}

func (t *pgTx) Redemption(ctx context.Context, kind strategy.OfferingKind, id, edition uint64) (*strategy.Redemption, error) {
	const query = `
		SELECT edition_id, holder, mode, paid, minted, redeemed_at
		FROM redemptions WHERE kind = $1 AND offering_id = $2 AND edition = $3`

	r := &strategy.Redemption{Kind: kind, OfferingID: id, Edition: edition}
	var (
		editionID, holder string
		paid, minted      int64
	)
	err := t.tx.QueryRow(ctx, query, string(kind), i64(id), i64(edition)).Scan(
		&editionID, &holder, &r.Mode, &paid, &minted, &r.RedeemedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get redemption: %w", err)
	}
	if err := parseKeys([]*solana.PublicKey{&r.EditionID, &r.Holder}, []string{editionID, holder}); err != nil {
		return nil, err
	}
	r.Paid = u64(paid)
	r.Minted = u64(minted)
	r.RedeemedAt = r.RedeemedAt.UTC()
	return r, nil
}

func (t *pgTx) PutRedemption(ctx context.Context, r *strategy.Redemption) error {
	const query = `
		INSERT INTO redemptions (kind, offering_id, edition, edition_id, holder, mode, paid, minted, redeemed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if err := fitBigint(r.OfferingID, r.Edition, r.Paid, r.Minted); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, query,
		string(r.Kind), i64(r.OfferingID), i64(r.Edition), r.EditionID.String(), r.Holder.String(),
		string(r.Mode), i64(r.Paid), i64(r.Minted), r.RedeemedAt)
	if err != nil {
		return fmt.Errorf("postgres: put redemption: %w", err)
	}
	return nil
}

func (t *pgTx) Tokens() engine.TokenLedger           { return pgTokens{t.tx} }
func (t *pgTx) Editions() engine.EditionLedger       { return pgEditions{t.tx} }
func (t *pgTx) Collateral() engine.CollateralLedger { return pgCollateral{t.tx} }
