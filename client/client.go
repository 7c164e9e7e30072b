package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/brojonat/solxr/service/auth"
	"github.com/brojonat/solxr/service/strategy"
	"github.com/gagliardetto/solana-go"
)

// ErrNoKey is returned by state-changing calls on a client built without a key.
var ErrNoKey = errors.New("client has no signing key")

// Receipt describes a committed operation.
type Receipt struct {
	ID        string            `json:"id"`
	Operation string            `json:"operation"`
	Caller    solana.PublicKey  `json:"caller"`
	At        time.Time         `json:"at"`
	Outcome   *strategy.Outcome `json:"outcome"`
}

// Snapshot is the strategy state with its derived figures.
type Snapshot struct {
	State        strategy.State `json:"state"`
	Supply       uint64         `json:"supply"`
	NAV          uint64         `json:"nav,omitempty"`
	PremiumFloor uint64         `json:"premium_floor,omitempty"`
	At           time.Time      `json:"at"`
}

// Balance is what a wallet holds on both ledgers.
type Balance struct {
	Wallet     solana.PublicKey `json:"wallet"`
	Synthetic  uint64           `json:"synthetic"`
	Collateral uint64           `json:"collateral"`
}

// Edition is one printed edition and its redemption record, if any.
type Edition struct {
	Kind       strategy.OfferingKind `json:"kind"`
	OfferingID uint64                `json:"offering_id"`
	Edition    uint64                `json:"edition"`
	Address    solana.PublicKey      `json:"address"`
	Redemption *strategy.Redemption  `json:"redemption"`
}

// APIError is a non-2xx response. Rejections carry the strategy error kind,
// so errors.Is(err, strategy.ErrWalletCap) works across the wire.
type APIError struct {
	StatusCode int
	Message    string
	Kind       strategy.ErrorKind
	Reason     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes the strategy error behind a rejection.
func (e *APIError) Unwrap() error {
	if e.Kind == "" {
		return nil
	}
	return &strategy.Error{Kind: e.Kind, Reason: e.Reason, Message: e.Message}
}

// Client is the HTTP client for the solxr service. Requests that change
// state are signed with the client's key.
type Client struct {
	baseURL    string
	httpClient *http.Client
	key        solana.PrivateKey
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a new solxr client. key may be nil for a read-only client.
func NewClient(baseURL string, httpClient *http.Client, key solana.PrivateKey, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		key:        key,
		logger:     logger,
		now:        time.Now,
	}
}

// Wallet is the public key requests are signed with.
func (c *Client) Wallet() solana.PublicKey {
	if c.key == nil {
		return solana.PublicKey{}
	}
	return c.key.PublicKey()
}

// InitializeToken records the token configuration.
func (c *Client) InitializeToken(ctx context.Context, p strategy.TokenParams) (*Receipt, error) {
	return c.mutate(ctx, "/api/v1/token/initialize", p)
}

// InitializeEditions sets up the edition offerings.
func (c *Client) InitializeEditions(ctx context.Context, p strategy.EditionParams) (*Receipt, error) {
	return c.mutate(ctx, "/api/v1/editions/initialize", p)
}

// Invest mints synthetic tokens at par against amount lamports of collateral.
func (c *Client) Invest(ctx context.Context, amount uint64) (*Receipt, error) {
	return c.mutate(ctx, "/api/v1/invest", map[string]any{"amount": amount})
}

// Airdrop credits collateral to a wallet. Only the initializer may call it.
func (c *Client) Airdrop(ctx context.Context, to solana.PublicKey, amount uint64) (*Receipt, error) {
	return c.mutate(ctx, "/api/v1/airdrop", map[string]any{"to": to, "amount": amount})
}

// OpenRound opens premium round roundID.
func (c *Client) OpenRound(ctx context.Context, roundID, premium uint64) (*Receipt, error) {
	return c.mutate(ctx, "/api/v1/rounds", map[string]any{"round_id": roundID, "premium": premium})
}

// BuyRound buys into the open round.
func (c *Client) BuyRound(ctx context.Context, roundID, amount uint64, feeRecipient solana.PublicKey) (*Receipt, error) {
	path := fmt.Sprintf("/api/v1/rounds/%d/buy", roundID)
	return c.mutate(ctx, path, map[string]any{"amount": amount, "fee_recipient": feeRecipient})
}

// CloseRound closes the open round.
func (c *Client) CloseRound(ctx context.Context) (*Receipt, error) {
	return c.mutate(ctx, "/api/v1/rounds/close", nil)
}

// CreateOffering creates a bond or whitelist, as named by p.Kind.
func (c *Client) CreateOffering(ctx context.Context, p strategy.OfferingParams) (*Receipt, error) {
	if !p.Kind.Valid() {
		return nil, fmt.Errorf("invalid offering kind %q", p.Kind)
	}
	return c.mutate(ctx, "/api/v1/offerings/"+url.PathEscape(string(p.Kind)), p)
}

// BuyEdition buys the next edition of an offering.
func (c *Client) BuyEdition(ctx context.Context, kind strategy.OfferingKind, offeringID uint64) (*Receipt, error) {
	path := fmt.Sprintf("/api/v1/offerings/%s/%d/buy", url.PathEscape(string(kind)), offeringID)
	return c.mutate(ctx, path, nil)
}

// Redeem settles a matured edition. convert applies to bonds only.
func (c *Client) Redeem(ctx context.Context, kind strategy.OfferingKind, offeringID, edition uint64, convert bool) (*Receipt, error) {
	path := fmt.Sprintf("/api/v1/offerings/%s/%d/editions/%d/redeem", url.PathEscape(string(kind)), offeringID, edition)
	return c.mutate(ctx, path, map[string]any{"convert": convert})
}

// TransferEdition moves an edition to another wallet.
func (c *Client) TransferEdition(ctx context.Context, kind strategy.OfferingKind, offeringID, edition uint64, to solana.PublicKey) (*Receipt, error) {
	path := fmt.Sprintf("/api/v1/offerings/%s/%d/editions/%d/transfer", url.PathEscape(string(kind)), offeringID, edition)
	return c.mutate(ctx, path, map[string]any{"to": to})
}

// Strategy retrieves the strategy snapshot.
func (c *Client) Strategy(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := c.get(ctx, "/api/v1/strategy", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Balance retrieves a wallet's balances.
func (c *Client) Balance(ctx context.Context, wallet solana.PublicKey) (*Balance, error) {
	var b Balance
	if err := c.get(ctx, "/api/v1/balances/"+wallet.String(), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Round retrieves a premium round.
func (c *Client) Round(ctx context.Context, id uint64) (*strategy.MintRound, error) {
	var r strategy.MintRound
	if err := c.get(ctx, fmt.Sprintf("/api/v1/rounds/%d", id), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// RoundParticipant retrieves what a wallet minted in a round.
func (c *Client) RoundParticipant(ctx context.Context, id uint64, wallet solana.PublicKey) (*strategy.RoundParticipant, error) {
	var p strategy.RoundParticipant
	if err := c.get(ctx, fmt.Sprintf("/api/v1/rounds/%d/participants/%s", id, wallet), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Offering retrieves a bond or whitelist.
func (c *Client) Offering(ctx context.Context, kind strategy.OfferingKind, id uint64) (*strategy.Offering, error) {
	var o strategy.Offering
	if err := c.get(ctx, fmt.Sprintf("/api/v1/offerings/%s/%d", url.PathEscape(string(kind)), id), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Participant retrieves how many editions a wallet bought from an offering.
func (c *Client) Participant(ctx context.Context, kind strategy.OfferingKind, id uint64, wallet solana.PublicKey) (*strategy.Participant, error) {
	var p strategy.Participant
	path := fmt.Sprintf("/api/v1/offerings/%s/%d/participants/%s", url.PathEscape(string(kind)), id, wallet)
	if err := c.get(ctx, path, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Edition retrieves an edition's address and redemption record.
func (c *Client) Edition(ctx context.Context, kind strategy.OfferingKind, id, edition uint64) (*Edition, error) {
	var e Edition
	path := fmt.Sprintf("/api/v1/offerings/%s/%d/editions/%d", url.PathEscape(string(kind)), id, edition)
	if err := c.get(ctx, path, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// mutate sends a signed POST and decodes the receipt.
func (c *Client) mutate(ctx context.Context, path string, payload any) (*Receipt, error) {
	if c.key == nil {
		return nil, ErrNoKey
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	h, err := auth.Sign(c.key, "POST", req.URL.Path, body, c.now())
	if err != nil {
		return nil, err
	}
	h.Apply(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	c.logger.Debug("operation committed", "operation", receipt.Operation, "receipt_id", receipt.ID)
	return &receipt, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error  string             `json:"error"`
		Kind   strategy.ErrorKind `json:"kind"`
		Reason string             `json:"reason"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    errResp.Error,
		Kind:       errResp.Kind,
		Reason:     errResp.Reason,
	}
}
