package solana

import (
	"context"
	"time"
)

// SystemClock reads the host's wall clock.
type SystemClock struct{}

// Now implements engine.Clock.
func (SystemClock) Now(context.Context) (time.Time, error) {
	return time.Now().UTC(), nil
}

// ClusterClock reads time from the cluster's confirmed block times, the way
// an on-chain program observes it.
type ClusterClock struct {
	client *Client
}

// NewClusterClock returns a clock backed by client.
func NewClusterClock(client *Client) *ClusterClock {
	return &ClusterClock{client: client}
}

// Now implements engine.Clock.
func (c *ClusterClock) Now(ctx context.Context) (time.Time, error) {
	t, _, err := c.client.ClusterTime(ctx)
	return t, err
}
