// Package engine runs strategy transitions against a Store: it loads the
// committed records, evaluates the transition at a single clock reading,
// persists the result and applies its ledger effects in the same
// transaction, then publishes a receipt.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solxr/service/metrics"
	"github.com/brojonat/solxr/service/strategy"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// Operation names a state-changing entry point.
type Operation string

const (
	OpInitializeToken    Operation = "initialize_token"
	OpInitializeEditions Operation = "initialize_editions"
	OpInvest             Operation = "invest"
	OpOpenRound          Operation = "open_round"
	OpBuyRound           Operation = "buy_round"
	OpCloseRound         Operation = "close_round"
	OpExpireRound        Operation = "expire_round"
	OpCreateBond         Operation = "create_bond"
	OpCreateWhitelist    Operation = "create_whitelist"
	OpBuyEdition         Operation = "buy_edition"
	OpRedeemBond         Operation = "redeem_bond"
	OpRedeemWhitelist    Operation = "redeem_whitelist"
	OpTransferEdition    Operation = "transfer_edition"
	OpAirdrop            Operation = "airdrop"
)

// Receipt describes a committed operation.
type Receipt struct {
	ID        string            `json:"id"`
	Operation Operation         `json:"operation"`
	Caller    solana.PublicKey  `json:"caller"`
	At        time.Time         `json:"at"`
	Outcome   *strategy.Outcome `json:"outcome"`
}

// Config holds the engine's collaborators. Publisher, Invalidator and
// Metrics are optional.
type Config struct {
	Store       Store
	Clock       Clock
	Publisher   Publisher
	Invalidator Invalidator
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Initializer solana.PublicKey
	Program     solana.PublicKey
}

// Engine is safe for concurrent use; serialization is the Store's job.
type Engine struct {
	store       Store
	clock       Clock
	publisher   Publisher
	invalidator Invalidator
	metrics     *metrics.Metrics
	logger      *slog.Logger
	initializer solana.PublicKey
	program     solana.PublicKey
}

// New validates cfg and builds an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.Initializer.IsZero() {
		return nil, fmt.Errorf("initializer is required")
	}
	if cfg.Program.IsZero() {
		cfg.Program = strategy.DefaultProgramID
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:       cfg.Store,
		clock:       cfg.Clock,
		publisher:   cfg.Publisher,
		invalidator: cfg.Invalidator,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		initializer: cfg.Initializer,
		program:     cfg.Program,
	}, nil
}

// Program is the id edition addresses are derived under.
func (e *Engine) Program() solana.PublicKey {
	return e.program
}

type transition func(ctx context.Context, tx Tx, now time.Time) (*strategy.Outcome, error)

// execute runs fn inside one store transaction at a single clock reading.
func (e *Engine) execute(ctx context.Context, op Operation, caller solana.PublicKey, fn transition) (*Receipt, error) {
	start := time.Now()

	now, err := e.clock.Now(ctx)
	if err != nil {
		e.record(op, start, nil, err)
		return nil, fmt.Errorf("failed to read clock: %w", err)
	}

	var out *strategy.Outcome
	err = e.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := fn(ctx, tx, now)
		if err != nil {
			return err
		}
		if err := persist(ctx, tx, o); err != nil {
			return fmt.Errorf("failed to persist %s: %w", op, err)
		}
		if err := apply(ctx, tx, o.Effects); err != nil {
			return fmt.Errorf("failed to apply %s effects: %w", op, err)
		}
		out = o
		return nil
	})
	e.record(op, start, out, err)
	if err != nil {
		var se *strategy.Error
		if errors.As(err, &se) {
			e.logger.InfoContext(ctx, "operation rejected",
				"operation", op,
				"caller", caller.String(),
				"kind", se.Kind,
				"reason", se.Reason,
				"message", se.Message,
			)
		} else {
			e.logger.ErrorContext(ctx, "operation failed",
				"operation", op,
				"caller", caller.String(),
				"error", err,
			)
		}
		return nil, err
	}

	receipt := &Receipt{
		ID:        uuid.NewString(),
		Operation: op,
		Caller:    caller,
		At:        now,
		Outcome:   out,
	}
	e.logger.InfoContext(ctx, "operation committed",
		"operation", op,
		"caller", caller.String(),
		"receipt_id", receipt.ID,
		"minted", out.Minted,
		"effects", len(out.Effects),
	)

	if e.invalidator != nil {
		if err := e.invalidator.Invalidate(ctx); err != nil {
			e.logger.WarnContext(ctx, "failed to invalidate query cache",
				"operation", op,
				"receipt_id", receipt.ID,
				"error", err,
			)
		}
	}

	if e.publisher != nil {
		if err := e.publisher.PublishReceipt(ctx, receipt); err != nil {
			// The state change is committed; a lost event is logged, not returned.
			e.logger.ErrorContext(ctx, "failed to publish receipt",
				"operation", op,
				"receipt_id", receipt.ID,
				"error", err,
			)
		}
	}
	return receipt, nil
}

func (e *Engine) record(op Operation, start time.Time, out *strategy.Outcome, err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	var se *strategy.Error
	switch {
	case errors.As(err, &se):
		status = "rejected"
		e.metrics.RecordRejection(string(op), string(se.Kind), se.Reason)
	case err != nil:
		status = "error"
	}
	e.metrics.RecordOperation(string(op), status, time.Since(start).Seconds())
	if out != nil {
		e.metrics.RecordMinted(string(op), float64(out.Minted))
		e.metrics.RecordTreasury(
			float64(out.State.SolInTreasury),
			float64(out.State.SolFromBond),
			float64(out.State.SolFromWhitelist),
		)
	}
}

// persist writes every record the outcome carries.
func persist(ctx context.Context, tx Tx, o *strategy.Outcome) error {
	if err := tx.PutStrategy(ctx, o.State); err != nil {
		return err
	}
	if o.Round != nil {
		if err := tx.PutRound(ctx, o.Round); err != nil {
			return err
		}
	}
	if o.RoundParticipant != nil {
		if err := tx.PutRoundParticipant(ctx, *o.RoundParticipant); err != nil {
			return err
		}
	}
	if o.Offering != nil {
		if err := tx.PutOffering(ctx, o.Offering); err != nil {
			return err
		}
	}
	if o.Participant != nil {
		if err := tx.PutParticipant(ctx, *o.Participant); err != nil {
			return err
		}
	}
	if o.Redemption != nil {
		if err := tx.PutRedemption(ctx, o.Redemption); err != nil {
			return err
		}
	}
	return nil
}

// apply forwards each effect to its ledger, in order.
func apply(ctx context.Context, tx Tx, effects []strategy.Effect) error {
	for _, ef := range effects {
		var err error
		switch ef.Kind {
		case strategy.EffectMint:
			err = tx.Tokens().Mint(ctx, ef.To, ef.Amount)
		case strategy.EffectTransfer:
			err = tx.Collateral().Transfer(ctx, ef.From, ef.To, ef.Amount)
		case strategy.EffectCreateMaster:
			err = tx.Editions().CreateMaster(ctx, ef.Master, ef.SupplyCap)
		case strategy.EffectPrintEdition:
			err = tx.Editions().PrintEdition(ctx, ef.Master, ef.Edition, ef.Number, ef.To)
		case strategy.EffectBurnEdition:
			err = tx.Editions().Burn(ctx, ef.Edition, ef.From)
		default:
			err = fmt.Errorf("unknown effect %q", ef.Kind)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", ef.Kind, err)
		}
	}
	return nil
}

// optional maps ErrRecordNotFound to a nil record.
func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	return v, err
}
