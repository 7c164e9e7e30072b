package temporal

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/brojonat/solxr/service/metrics"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

const defaultMaxConcurrentActivities = 10

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	// Temporal connection settings
	TemporalHost      string
	TemporalNamespace string
	TaskQueue         string

	// MaxConcurrentActivities bounds ExpireRound executions; 0 means 10.
	// Every expiry serializes on the strategy row, so a high value only
	// queues work in the store.
	MaxConcurrentActivities int

	// Dependencies
	Engine  RoundExpirer
	Metrics *metrics.Metrics // Optional: if nil, no metrics will be recorded
	Logger  *slog.Logger
}

func (c *WorkerConfig) validate() error {
	var errs []error
	if c.Engine == nil {
		errs = append(errs, errors.New("engine is required"))
	}
	if c.TemporalHost == "" {
		errs = append(errs, errors.New("temporal host is required"))
	}
	if c.TaskQueue == "" {
		errs = append(errs, errors.New("task queue is required"))
	}
	if c.MaxConcurrentActivities < 0 {
		errs = append(errs, fmt.Errorf("max concurrent activities must be >= 0, got %d", c.MaxConcurrentActivities))
	}
	if c.MaxConcurrentActivities == 0 {
		c.MaxConcurrentActivities = defaultMaxConcurrentActivities
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return errors.Join(errs...)
}

// Worker runs the round lifecycle workflow and its activity.
type Worker struct {
	client client.Client
	worker worker.Worker
	logger *slog.Logger
}

// NewWorker dials Temporal and registers RoundLifecycleWorkflow and the
// ExpireRound activity on the configured task queue.
func NewWorker(config WorkerConfig) (*Worker, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid worker config: %w", err)
	}

	logger := config.Logger.With("component", "temporal_worker")
	logger.Info("creating temporal worker",
		"host", config.TemporalHost,
		"namespace", config.TemporalNamespace,
		"task_queue", config.TaskQueue,
		"max_concurrent_activities", config.MaxConcurrentActivities,
	)

	c, err := client.Dial(client.Options{
		HostPort:  config.TemporalHost,
		Namespace: config.TemporalNamespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal: %w", err)
	}

	w := worker.New(c, config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     config.MaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: config.MaxConcurrentActivities,
	})

	activities := NewActivities(config.Engine, config.Metrics, logger)
	w.RegisterWorkflow(RoundLifecycleWorkflow)
	w.RegisterActivity(activities.ExpireRound)
	logger.Info("registered round lifecycle", "workflow", "RoundLifecycleWorkflow", "activity", "ExpireRound")

	return &Worker{
		client: c,
		worker: w,
		logger: logger,
	}, nil
}

// Start processes tasks until Stop is called or the process is interrupted.
func (w *Worker) Start() error {
	w.logger.Info("starting temporal worker")
	if err := w.worker.Run(worker.InterruptCh()); err != nil {
		w.logger.Error("worker stopped with error", "error", err)
		return fmt.Errorf("worker stopped with error: %w", err)
	}
	w.logger.Info("worker stopped gracefully")
	return nil
}

// Stop stops the worker and closes its client.
func (w *Worker) Stop() {
	w.worker.Stop()
	w.client.Close()
	w.logger.Info("temporal worker stopped")
}
