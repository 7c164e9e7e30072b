package temporal

import (
	"context"
	"fmt"
	"time"
)

// Scheduler starts and cancels round lifecycle workflows. Each open round
// gets one workflow that closes it when its mint duration elapses.
type Scheduler interface {
	// ScheduleRoundExpiry starts the lifecycle workflow for a round.
	ScheduleRoundExpiry(ctx context.Context, roundID uint64, closesAt time.Time) error

	// CancelRoundExpiry cancels the lifecycle workflow of a round that was
	// closed by governance.
	CancelRoundExpiry(ctx context.Context, roundID uint64) error
}

// workflowID returns the Temporal workflow ID for a round.
func workflowID(roundID uint64) string {
	return fmt.Sprintf("round-lifecycle-%d", roundID)
}
