package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockScheduler is a mock implementation of Scheduler for testing.
type MockScheduler struct {
	mu        sync.Mutex
	rounds    map[string]time.Time // map[workflowID]closesAt
	createErr error
	cancelErr error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{
		rounds: make(map[string]time.Time),
	}
}

// ScheduleRoundExpiry records that a round lifecycle was started.
func (m *MockScheduler) ScheduleRoundExpiry(ctx context.Context, roundID uint64, closesAt time.Time) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.rounds[workflowID(roundID)] = closesAt
	return nil
}

// CancelRoundExpiry records that a round lifecycle was cancelled.
func (m *MockScheduler) CancelRoundExpiry(ctx context.Context, roundID uint64) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := workflowID(roundID)
	if _, exists := m.rounds[id]; !exists {
		return fmt.Errorf("workflow %q not found", id)
	}
	delete(m.rounds, id)
	return nil
}

// SetCreateError makes ScheduleRoundExpiry return an error.
func (m *MockScheduler) SetCreateError(err error) {
	m.createErr = err
}

// SetCancelError makes CancelRoundExpiry return an error.
func (m *MockScheduler) SetCancelError(err error) {
	m.cancelErr = err
}

// Scheduled returns when a round's lifecycle closes it, if one is running.
func (m *MockScheduler) Scheduled(roundID uint64) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	closesAt, exists := m.rounds[workflowID(roundID)]
	return closesAt, exists
}

// Count returns the number of running lifecycles.
func (m *MockScheduler) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rounds)
}

// Reset clears all lifecycles and errors.
func (m *MockScheduler) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds = make(map[string]time.Time)
	m.createErr = nil
	m.cancelErr = nil
}
