package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/solxr/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetBlockTime(ctx context.Context, slot uint64) (*solana.UnixTimeSeconds, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
}

// ErrNoBlockTime is returned when none of the recent slots reports a block time.
var ErrNoBlockTime = errors.New("no block time available")

// blockTimeLookback is how many slots ClusterTime walks back past skipped
// or unconfirmed slots.
const blockTimeLookback = 8

// Client reads cluster state used by the strategy host.
type Client struct {
	rpc        RPCClient
	logger     *slog.Logger
	metrics    *metrics.Metrics
	commitment rpc.CommitmentType
}

// NewClient creates a new Solana client. If metrics is nil, no metrics will
// be recorded.
func NewClient(rpcClient RPCClient, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:        rpcClient,
		logger:     logger,
		metrics:    m,
		commitment: rpc.CommitmentConfirmed,
	}
}

func (c *Client) observe(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case strings.Contains(err.Error(), "429"):
		status = "rate_limited"
	default:
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, time.Since(start).Seconds())
}

// ClusterTime returns the block time of the most recent confirmed slot that
// has one, together with that slot.
func (c *Client) ClusterTime(ctx context.Context) (time.Time, uint64, error) {
	start := time.Now()
	slot, err := c.rpc.GetSlot(ctx, c.commitment)
	c.observe("GetSlot", start, err)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("failed to get slot: %w", err)
	}

	var lastErr error
	for i := uint64(0); i < blockTimeLookback && i <= slot; i++ {
		s := slot - i
		start := time.Now()
		bt, err := c.rpc.GetBlockTime(ctx, s)
		c.observe("GetBlockTime", start, err)
		if err != nil {
			lastErr = err
			c.logger.DebugContext(ctx, "no block time for slot",
				"slot", s,
				"error", err,
			)
			continue
		}
		if bt == nil {
			continue
		}
		return bt.Time().UTC(), s, nil
	}
	if lastErr != nil {
		return time.Time{}, slot, fmt.Errorf("%w near slot %d: %v", ErrNoBlockTime, slot, lastErr)
	}
	return time.Time{}, slot, fmt.Errorf("%w near slot %d", ErrNoBlockTime, slot)
}

// Balance returns the on-chain lamport balance of account.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	start := time.Now()
	lamports, err := c.rpc.GetBalance(ctx, account, c.commitment)
	c.observe("GetBalance", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance of %s: %w", account, err)
	}
	return lamports, nil
}
