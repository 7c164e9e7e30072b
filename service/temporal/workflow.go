package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// expiryGrace is added to a round's closing time before expiring it, since
// a round is still open at exactly start+duration.
const expiryGrace = 2 * time.Second

// RoundLifecycleWorkflow closes a mint round once its mint duration has
// elapsed. It is started when the round opens:
//
// 1. Sleep until the round's closing time (durable timer)
// 2. Expire the round (ExpireRound activity)
//
// A round governance already closed is reported, not treated as a failure.
func RoundLifecycleWorkflow(ctx workflow.Context, input RoundLifecycleInput) (*RoundLifecycleResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("RoundLifecycleWorkflow started",
		"round_id", input.RoundID,
		"closes_at", input.ClosesAt,
	)

	result := &RoundLifecycleResult{RoundID: input.RoundID}

	if wait := input.ClosesAt.Add(expiryGrace).Sub(workflow.Now(ctx)); wait > 0 {
		if err := workflow.Sleep(ctx, wait); err != nil {
			// cancelled, e.g. governance closed the round first
			return result, err
		}
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    10,
			NonRetryableErrorTypes: []string{
				ErrTypeRejected,
			},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var expiry *ExpireRoundResult
	err := workflow.ExecuteActivity(ctx, a.ExpireRound, ExpireRoundInput{RoundID: input.RoundID}).Get(ctx, &expiry)
	if err != nil {
		logger.Error("failed to expire round", "round_id", input.RoundID, "error", err)
		errMsg := fmt.Sprintf("failed to expire round: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to expire round %d: %w", input.RoundID, err)
	}

	result.Expired = expiry.Expired
	result.Reason = expiry.Reason
	result.ReceiptID = expiry.ReceiptID
	result.CompletedAt = workflow.Now(ctx)

	logger.Info("RoundLifecycleWorkflow completed",
		"round_id", input.RoundID,
		"expired", result.Expired,
		"reason", result.Reason,
	)

	return result, nil
}
