package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solxr/service/metrics"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewClient creates a new Temporal client. m may be nil.
func NewClient(host, namespace, taskQueue string, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		metrics:   m,
		logger:    logger,
	}, nil
}

func (c *Client) recordWorkflow(status string) {
	if c.metrics != nil {
		c.metrics.RecordRoundWorkflow(status)
	}
}

// ScheduleRoundExpiry starts RoundLifecycleWorkflow for a round. Starting it
// twice for the same round is a no-op.
func (c *Client) ScheduleRoundExpiry(ctx context.Context, roundID uint64, closesAt time.Time) error {
	id := workflowID(roundID)

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       id,
		TaskQueue:                c.taskQueue,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		Memo: map[string]interface{}{
			"round_id":   roundID,
			"closes_at":  closesAt,
			"created_by": "solxr",
		},
	}, RoundLifecycleWorkflow, RoundLifecycleInput{RoundID: roundID, ClosesAt: closesAt})
	if err != nil {
		c.recordWorkflow("error")
		c.logger.Error("failed to start round lifecycle",
			"round_id", roundID,
			"workflow_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to start workflow %q: %w", id, err)
	}

	c.recordWorkflow("scheduled")
	c.logger.Info("round lifecycle scheduled",
		"round_id", roundID,
		"workflow_id", id,
		"run_id", run.GetRunID(),
		"closes_at", closesAt,
	)
	return nil
}

// CancelRoundExpiry cancels the lifecycle workflow of a round.
func (c *Client) CancelRoundExpiry(ctx context.Context, roundID uint64) error {
	id := workflowID(roundID)
	if err := c.client.CancelWorkflow(ctx, id, ""); err != nil {
		c.recordWorkflow("cancel_error")
		c.logger.Error("failed to cancel round lifecycle",
			"round_id", roundID,
			"workflow_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to cancel workflow %q: %w", id, err)
	}
	c.recordWorkflow("cancelled")
	c.logger.Info("round lifecycle cancelled", "round_id", roundID, "workflow_id", id)
	return nil
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
