package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerConfig_Validate(t *testing.T) {
	valid := func() WorkerConfig {
		return WorkerConfig{
			TemporalHost: "localhost:7233",
			TaskQueue:    "solxr-rounds",
			Engine:       new(MockEngine),
		}
	}

	t.Run("defaults", func(t *testing.T) {
		cfg := valid()
		require.NoError(t, cfg.validate())
		assert.Equal(t, defaultMaxConcurrentActivities, cfg.MaxConcurrentActivities)
		assert.NotNil(t, cfg.Logger)
	})

	tests := []struct {
		name   string
		mutate func(*WorkerConfig)
		want   string
	}{
		{"no engine", func(c *WorkerConfig) { c.Engine = nil }, "engine is required"},
		{"no host", func(c *WorkerConfig) { c.TemporalHost = "" }, "temporal host is required"},
		{"no task queue", func(c *WorkerConfig) { c.TaskQueue = "" }, "task queue is required"},
		{"negative concurrency", func(c *WorkerConfig) { c.MaxConcurrentActivities = -1 }, "must be >= 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.validate(), tt.want)
		})
	}

	t.Run("errors are joined", func(t *testing.T) {
		cfg := WorkerConfig{}
		err := cfg.validate()
		assert.ErrorContains(t, err, "engine is required")
		assert.ErrorContains(t, err, "task queue is required")
	})
}

func TestNewWorker_RejectsInvalidConfig(t *testing.T) {
	_, err := NewWorker(WorkerConfig{TemporalHost: "localhost:7233"})
	assert.ErrorContains(t, err, "invalid worker config")
}
