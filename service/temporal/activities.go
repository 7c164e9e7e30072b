package temporal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brojonat/solxr/service/engine"
	"github.com/brojonat/solxr/service/metrics"
	"github.com/brojonat/solxr/service/strategy"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// ErrTypeRejected marks activity errors that retrying cannot fix.
const ErrTypeRejected = "StrategyRejected"

// RoundLifecycleInput contains the input parameters for a round lifecycle.
type RoundLifecycleInput struct {
	RoundID  uint64    `json:"round_id"`
	ClosesAt time.Time `json:"closes_at"`
}

// RoundLifecycleResult contains the result of a round lifecycle.
type RoundLifecycleResult struct {
	RoundID     uint64    `json:"round_id"`
	Expired     bool      `json:"expired"`
	Reason      string    `json:"reason,omitempty"`
	ReceiptID   string    `json:"receipt_id,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
	Error       *string   `json:"error,omitempty"`
}

// ExpireRoundInput contains parameters for the ExpireRound activity.
type ExpireRoundInput struct {
	RoundID uint64 `json:"round_id"`
}

// ExpireRoundResult contains the result of the ExpireRound activity.
type ExpireRoundResult struct {
	Expired   bool   `json:"expired"`
	Reason    string `json:"reason,omitempty"`
	ReceiptID string `json:"receipt_id,omitempty"`
}

// RoundExpirer is the engine operation the activities need.
// This allows for easy mocking in tests.
type RoundExpirer interface {
	ExpireRound(ctx context.Context, roundID uint64) (*engine.Receipt, error)
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	engine  RoundExpirer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(e RoundExpirer, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		engine:  e,
		metrics: m,
		logger:  logger,
	}
}

func (a *Activities) recordExpiry(result string) {
	if a.metrics != nil {
		a.metrics.RecordRoundExpiry(result)
	}
}

// ExpireRound closes the round if it is still open and past its duration.
// A round that is already closed, or that was superseded by a later round,
// is a successful no-op. A round that has not ended yet returns a retryable
// error so the retry policy covers clock skew between the worker and the
// engine's clock.
func (a *Activities) ExpireRound(ctx context.Context, input ExpireRoundInput) (*ExpireRoundResult, error) {
	a.logger.DebugContext(ctx, "expiring round", "round_id", input.RoundID)

	receipt, err := a.engine.ExpireRound(ctx, input.RoundID)
	if err == nil {
		a.recordExpiry("expired")
		a.logger.InfoContext(ctx, "round expired",
			"round_id", input.RoundID,
			"receipt_id", receipt.ID,
		)
		return &ExpireRoundResult{Expired: true, ReceiptID: receipt.ID}, nil
	}

	var se *strategy.Error
	if !errors.As(err, &se) {
		a.recordExpiry("error")
		a.logger.ErrorContext(ctx, "failed to expire round",
			"round_id", input.RoundID,
			"error", err,
		)
		return nil, err
	}

	switch {
	case errors.Is(se, strategy.ErrAlreadyClosed), errors.Is(se, strategy.ErrWrongID):
		a.recordExpiry("noop")
		a.logger.InfoContext(ctx, "round already closed",
			"round_id", input.RoundID,
			"reason", se.Reason,
		)
		return &ExpireRoundResult{Reason: se.Reason}, nil

	case errors.Is(se, strategy.ErrNotEnded):
		a.recordExpiry("early")
		a.logger.WarnContext(ctx, "round has not ended yet", "round_id", input.RoundID)
		return nil, err

	default:
		a.recordExpiry("rejected")
		return nil, temporalsdk.NewNonRetryableApplicationError(se.Error(), ErrTypeRejected, err)
	}
}
