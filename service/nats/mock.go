package nats

import (
	"context"
	"sync"

	"github.com/brojonat/solxr/service/engine"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu           sync.RWMutex
	published    []*ReceiptEvent
	publishError error
	closed       bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		published: make([]*ReceiptEvent, 0),
	}
}

// PublishReceipt records the event and returns any configured error.
func (m *MockPublisher) PublishReceipt(ctx context.Context, r *engine.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.published = append(m.published, FromReceipt(r))
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns all published events.
func (m *MockPublisher) GetPublishedEvents() []*ReceiptEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*ReceiptEvent, len(m.published))
	copy(events, m.published)
	return events
}

// GetPublishedEventCount returns the number of published events.
func (m *MockPublisher) GetPublishedEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.published)
}

// GetPublishedEventsForOperation returns events published for one operation.
func (m *MockPublisher) GetPublishedEventsForOperation(op engine.Operation) []*ReceiptEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*ReceiptEvent, 0)
	for _, event := range m.published {
		if event.Operation == op {
			events = append(events, event)
		}
	}
	return events
}

// SetPublishError configures the mock to return an error on PublishReceipt.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// Reset clears all published events and errors.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = make([]*ReceiptEvent, 0)
	m.publishError = nil
	m.closed = false
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
