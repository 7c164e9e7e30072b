package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/solxr/service/auth"
	"github.com/brojonat/solxr/service/config"
	"github.com/brojonat/solxr/service/db"
	"github.com/brojonat/solxr/service/engine"
	"github.com/brojonat/solxr/service/metrics"
	"github.com/brojonat/solxr/service/strategy"
	"github.com/brojonat/solxr/service/temporal"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scale = strategy.Scale

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now(ctx context.Context) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, nil
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type keys struct {
	initializer, governance, platform, treasury, alice, bob solana.PrivateKey
}

func newKeys(t *testing.T) keys {
	t.Helper()
	gen := func() solana.PrivateKey {
		k, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		return k
	}
	return keys{gen(), gen(), gen(), gen(), gen(), gen()}
}

type apiHarness struct {
	keys      keys
	clock     *testClock
	scheduler *temporal.MockScheduler
	ts        *httptest.Server
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	h := &apiHarness{
		keys:      newKeys(t),
		clock:     &testClock{now: t0},
		scheduler: temporal.NewMockScheduler(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMetrics(prometheus.NewRegistry())

	e, err := engine.New(engine.Config{
		Store:       db.NewMemoryStore(),
		Clock:       h.clock,
		Metrics:     m,
		Logger:      logger,
		Initializer: h.keys.initializer.PublicKey(),
	})
	require.NoError(t, err)

	srv := New(":0", &config.Config{SignatureMaxSkew: time.Minute}, e, nil, h.scheduler, m, logger)
	srv.now = func() time.Time {
		now, _ := h.clock.Now(context.Background())
		return now
	}
	h.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(h.ts.Close)
	return h
}

// do sends a request signed by key, or unsigned when key is nil.
func (h *apiHarness) do(t *testing.T, key solana.PrivateKey, method, path string, body any) (int, []byte) {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, h.ts.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if key != nil {
		sig, err := auth.Sign(key, method, path, payload, h.clock.now)
		require.NoError(t, err)
		sig.Apply(req.Header)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (h *apiHarness) mustDo(t *testing.T, key solana.PrivateKey, method, path string, body any) []byte {
	t.Helper()
	status, data := h.do(t, key, method, path, body)
	require.Equal(t, http.StatusOK, status, string(data))
	return data
}

func decodeError(t *testing.T, data []byte) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

// initialized returns a harness with both sub-states set up and alice holding
// 100 SOL of collateral.
func initialized(t *testing.T) *apiHarness {
	t.Helper()
	h := newAPIHarness(t)
	k := h.keys
	h.mustDo(t, k.initializer, "POST", "/api/v1/token/initialize", strategy.TokenParams{
		Governance:           k.governance.PublicKey(),
		Platform:             k.platform.PublicKey(),
		Treasury:             k.treasury.PublicKey(),
		InitialPoolCap:       10_000 * scale,
		IndividualAddressCap: 100 * scale,
		MaxMintPerWallet:     50 * scale,
		MintDuration:         time.Hour,
		PlatformMintFee:      30_000_000,
	})
	h.mustDo(t, k.initializer, "POST", "/api/v1/editions/initialize", strategy.EditionParams{
		Governance: k.governance.PublicKey(),
		BondPrice:  scale,
	})
	h.mustDo(t, k.initializer, "POST", "/api/v1/airdrop", airdropRequest{To: k.alice.PublicKey(), Amount: 100 * scale})
	return h
}

func TestInvestAndBalance(t *testing.T) {
	h := initialized(t)
	alice := h.keys.alice

	data := h.mustDo(t, alice, "POST", "/api/v1/invest", investRequest{Amount: 80 * scale})
	var receipt struct {
		ID        string           `json:"id"`
		Operation engine.Operation `json:"operation"`
		Caller    solana.PublicKey `json:"caller"`
		Outcome   struct {
			Minted uint64 `json:"minted"`
		} `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(data, &receipt))
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, engine.OpInvest, receipt.Operation)
	assert.Equal(t, alice.PublicKey(), receipt.Caller)
	assert.Equal(t, uint64(80*scale), receipt.Outcome.Minted)

	data = h.mustDo(t, nil, "GET", "/api/v1/balances/"+alice.PublicKey().String(), nil)
	var b engine.Balance
	require.NoError(t, json.Unmarshal(data, &b))
	assert.Equal(t, uint64(80*scale), b.Synthetic)
	assert.Equal(t, uint64(20*scale), b.Collateral)

	status, data := h.do(t, alice, "POST", "/api/v1/invest", investRequest{Amount: 21 * scale})
	assert.Equal(t, http.StatusConflict, status)
	e := decodeError(t, data)
	assert.Equal(t, strategy.KindCapExceeded, e.Kind)
	assert.Equal(t, "wallet", e.Reason)

	data = h.mustDo(t, nil, "GET", "/api/v1/strategy", nil)
	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, uint64(80*scale), snap.Supply)
	assert.Equal(t, uint64(80*scale), snap.State.SolInTreasury)
	assert.Equal(t, scale, snap.NAV)
}

func TestRoundLifecycleSchedulesExpiry(t *testing.T) {
	h := initialized(t)
	k := h.keys
	h.mustDo(t, k.alice, "POST", "/api/v1/invest", investRequest{Amount: 80 * scale})

	status, data := h.do(t, k.governance, "POST", "/api/v1/rounds", openRoundRequest{RoundID: 1, Premium: 1_400_000_000})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "below-floor", decodeError(t, data).Reason)
	assert.Zero(t, h.scheduler.Count())

	h.mustDo(t, k.governance, "POST", "/api/v1/rounds", openRoundRequest{RoundID: 1, Premium: 1_750_000_000})
	closesAt, ok := h.scheduler.Scheduled(1)
	require.True(t, ok)
	assert.True(t, closesAt.Equal(t0.Add(time.Hour)))

	h.clock.Set(t0.Add(10 * time.Minute))
	status, data = h.do(t, k.alice, "POST", "/api/v1/rounds/1/buy", buyRoundRequest{Amount: 8 * scale, FeeRecipient: k.alice.PublicKey()})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, strategy.KindAuthorization, decodeError(t, data).Kind)

	h.mustDo(t, k.alice, "POST", "/api/v1/rounds/1/buy", buyRoundRequest{Amount: 8 * scale, FeeRecipient: k.platform.PublicKey()})

	data = h.mustDo(t, nil, "GET", "/api/v1/rounds/1/participants/"+k.alice.PublicKey().String(), nil)
	var p strategy.RoundParticipant
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Positive(t, p.Minted)

	status, _ = h.do(t, k.alice, "POST", "/api/v1/rounds/close", nil)
	assert.Equal(t, http.StatusForbidden, status)

	h.mustDo(t, k.governance, "POST", "/api/v1/rounds/close", nil)
	assert.Zero(t, h.scheduler.Count(), "closing through governance cancels the expiry")

	data = h.mustDo(t, nil, "GET", "/api/v1/rounds/1", nil)
	var round strategy.MintRound
	require.NoError(t, json.Unmarshal(data, &round))
	assert.True(t, round.Closed)
	assert.Equal(t, p.Minted, round.SolxrMinted)

	status, data = h.do(t, k.governance, "POST", "/api/v1/rounds/close", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already-closed", decodeError(t, data).Reason)
}

func TestOpenRound_SchedulerFailureStillOpensRound(t *testing.T) {
	h := initialized(t)
	k := h.keys
	h.mustDo(t, k.alice, "POST", "/api/v1/invest", investRequest{Amount: 80 * scale})
	h.scheduler.SetCreateError(errors.New("temporal unavailable"))

	h.mustDo(t, k.governance, "POST", "/api/v1/rounds", openRoundRequest{RoundID: 1, Premium: 1_750_000_000})

	data := h.mustDo(t, nil, "GET", "/api/v1/strategy", nil)
	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.True(t, snap.State.AllowNewMint)
}

func TestBondOffering(t *testing.T) {
	h := initialized(t)
	k := h.keys
	bond := strategy.OfferingParams{
		Name:             "SOLXR Bond",
		Symbol:           "XRB",
		URI:              "https://example.com/bond.json",
		Price:            2 * scale,
		Maturity:         t0.Add(30 * 24 * time.Hour),
		StrikePrice:      1_250_000_000,
		Supply:           1,
		MaxMintPerWallet: 1,
		StartTime:        t0,
		EndTime:          t0.Add(7 * 24 * time.Hour),
	}

	status, _ := h.do(t, k.alice, "POST", "/api/v1/offerings/bond", bond)
	assert.Equal(t, http.StatusForbidden, status)

	status, data := h.do(t, k.governance, "POST", "/api/v1/offerings/whitelist", strategy.OfferingParams{Kind: strategy.Bond, Name: "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, decodeError(t, data).Error, "does not match")

	h.mustDo(t, k.governance, "POST", "/api/v1/offerings/bond", bond)
	h.mustDo(t, k.alice, "POST", "/api/v1/offerings/bond/1/buy", nil)

	status, data = h.do(t, k.alice, "POST", "/api/v1/offerings/bond/1/buy", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, strategy.KindSupplyExhausted, decodeError(t, data).Kind)

	data = h.mustDo(t, nil, "GET", "/api/v1/offerings/bond/1/editions/1", nil)
	var ed editionResponse
	require.NoError(t, json.Unmarshal(data, &ed))
	assert.False(t, ed.Address.IsZero())
	assert.Nil(t, ed.Redemption)

	status, data = h.do(t, k.alice, "POST", "/api/v1/offerings/bond/1/editions/1/redeem", redeemRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "not-matured", decodeError(t, data).Reason)

	h.mustDo(t, k.alice, "POST", "/api/v1/offerings/bond/1/editions/1/transfer", transferRequest{To: k.bob.PublicKey()})

	h.clock.Set(t0.Add(31 * 24 * time.Hour))
	status, _ = h.do(t, k.alice, "POST", "/api/v1/offerings/bond/1/editions/1/redeem", redeemRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	h.mustDo(t, k.bob, "POST", "/api/v1/offerings/bond/1/editions/1/redeem", redeemRequest{Convert: true})

	data = h.mustDo(t, nil, "GET", "/api/v1/offerings/bond/1/editions/1", nil)
	require.NoError(t, json.Unmarshal(data, &ed))
	require.NotNil(t, ed.Redemption)
	assert.Equal(t, strategy.Conversion, ed.Redemption.Mode)
	assert.Equal(t, k.bob.PublicKey(), ed.Redemption.Holder)

	data = h.mustDo(t, nil, "GET", "/api/v1/offerings/bond/1", nil)
	var o strategy.Offering
	require.NoError(t, json.Unmarshal(data, &o))
	assert.Equal(t, uint64(1), o.Sold())

	data = h.mustDo(t, nil, "GET", "/api/v1/offerings/bond/1/participants/"+k.alice.PublicKey().String(), nil)
	var p strategy.Participant
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, uint64(1), p.Minted)
}

func TestRedeemWhitelistRejectsConvert(t *testing.T) {
	h := initialized(t)
	status, data := h.do(t, h.keys.alice, "POST", "/api/v1/offerings/whitelist/1/editions/1/redeem", redeemRequest{Convert: true})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, decodeError(t, data).Error, "cannot be converted")
}

func TestSignatureRequired(t *testing.T) {
	h := initialized(t)
	alice := h.keys.alice
	body := []byte(`{"amount":1000000000}`)

	send := func(mutate func(r *http.Request)) int {
		req, err := http.NewRequest("POST", h.ts.URL+"/api/v1/invest", bytes.NewReader(body))
		require.NoError(t, err)
		sig, err := auth.Sign(alice, "POST", "/api/v1/invest", body, t0)
		require.NoError(t, err)
		sig.Apply(req.Header)
		mutate(req)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	tests := []struct {
		name   string
		mutate func(r *http.Request)
		want   int
	}{
		{"valid", func(r *http.Request) {}, http.StatusOK},
		{"unsigned", func(r *http.Request) { r.Header.Del(auth.SignatureHeader) }, http.StatusUnauthorized},
		{"impersonation", func(r *http.Request) {
			r.Header.Set(auth.WalletHeader, h.keys.governance.PublicKey().String())
		}, http.StatusUnauthorized},
		{"stale", func(r *http.Request) {
			r.Header.Set(auth.TimestampHeader, fmt.Sprint(t0.Add(-time.Hour).Unix()))
		}, http.StatusUnauthorized},
		{"malformed wallet", func(r *http.Request) { r.Header.Set(auth.WalletHeader, "0OIl") }, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, send(tt.mutate))
		})
	}
}

func TestSignedRequestCannotBeReplayed(t *testing.T) {
	h := initialized(t)
	alice := h.keys.alice
	body := []byte(`{"amount":10000000000}`)
	sig, err := auth.Sign(alice, "POST", "/api/v1/invest", body, t0)
	require.NoError(t, err)

	send := func() (int, []byte) {
		req, err := http.NewRequest("POST", h.ts.URL+"/api/v1/invest", bytes.NewReader(body))
		require.NoError(t, err)
		sig.Apply(req.Header)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, data
	}

	status, data := send()
	require.Equal(t, http.StatusOK, status, string(data))
	for range 2 {
		status, data = send()
		assert.Equal(t, http.StatusConflict, status)
		assert.Contains(t, decodeError(t, data).Error, auth.ErrReplayed.Error())
	}

	// A fresh signature over the same body is a new request.
	h.mustDo(t, alice, "POST", "/api/v1/invest", investRequest{Amount: 10 * scale})

	data = h.mustDo(t, nil, "GET", "/api/v1/balances/"+alice.PublicKey().String(), nil)
	var b engine.Balance
	require.NoError(t, json.Unmarshal(data, &b))
	assert.Equal(t, uint64(20*scale), b.Synthetic)
	assert.Equal(t, uint64(80*scale), b.Collateral)
}

type failingGuard struct{}

func (failingGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestReplayGuardFailureRejectsRequest(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := engine.New(engine.Config{
		Store:       db.NewMemoryStore(),
		Clock:       &testClock{now: t0},
		Logger:      logger,
		Initializer: solana.NewWallet().PublicKey(),
	})
	require.NoError(t, err)
	srv := New(":0", &config.Config{SignatureMaxSkew: time.Minute}, e, nil, nil, nil, logger).WithReplayGuard(failingGuard{})
	srv.now = func() time.Time { return t0 }
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	body := []byte(`{"amount":1}`)
	sig, err := auth.Sign(key, "POST", "/api/v1/invest", body, t0)
	require.NoError(t, err)
	req, err := http.NewRequest("POST", ts.URL+"/api/v1/invest", bytes.NewReader(body))
	require.NoError(t, err)
	sig.Apply(req.Header)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPathValidation(t *testing.T) {
	h := newAPIHarness(t)

	tests := []struct {
		name   string
		path   string
		status int
		errMsg string
	}{
		{"unknown kind", "/api/v1/offerings/nft/1", http.StatusBadRequest, "invalid offering kind"},
		{"non-numeric id", "/api/v1/rounds/abc", http.StatusBadRequest, "invalid id"},
		{"negative id", "/api/v1/rounds/-1", http.StatusBadRequest, "invalid id"},
		{"bad wallet", "/api/v1/balances/not;a;key", http.StatusBadRequest, "invalid wallet address"},
		{"missing round", "/api/v1/rounds/99", http.StatusNotFound, "round 99 not found"},
		{"missing offering", "/api/v1/offerings/bond/7", http.StatusNotFound, "bond 7 not found"},
		{"missing edition", "/api/v1/offerings/whitelist/1/editions/1", http.StatusNotFound, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := h.do(t, nil, "GET", tt.path, nil)
			assert.Equal(t, tt.status, status)
			assert.Contains(t, decodeError(t, data).Error, tt.errMsg)
		})
	}
}

func TestMalformedBody(t *testing.T) {
	h := initialized(t)
	alice := h.keys.alice

	tests := []struct {
		name string
		body string
		want string
	}{
		{"truncated JSON", `{"amount":`, "invalid request body"},
		{"unknown field", `{"amount":1,"bonus":2}`, "unknown field"},
		{"negative amount", `{"amount":-1}`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(tt.body)
			req, err := http.NewRequest("POST", h.ts.URL+"/api/v1/invest", bytes.NewReader(body))
			require.NoError(t, err)
			sig, err := auth.Sign(alice, "POST", "/api/v1/invest", body, t0)
			require.NoError(t, err)
			sig.Apply(req.Header)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			data, _ := io.ReadAll(resp.Body)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, string(data), tt.want)
		})
	}

	t.Run("oversized body", func(t *testing.T) {
		body := []byte(`{"amount":"` + strings.Repeat("9", 2<<20) + `"}`)
		req, err := http.NewRequest("POST", h.ts.URL+"/api/v1/invest", bytes.NewReader(body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{strategy.ErrUnauthorized, http.StatusForbidden},
		{strategy.ErrAlreadyInitialized, http.StatusConflict},
		{strategy.ErrNotInitialized, http.StatusConflict},
		{strategy.ErrPoolCap, http.StatusConflict},
		{strategy.ErrWrongID, http.StatusConflict},
		{strategy.ErrAlreadyClaimed, http.StatusConflict},
		{strategy.ErrNotMatured, http.StatusUnprocessableEntity},
		{strategy.ErrNotHeld, http.StatusUnprocessableEntity},
		{strategy.ErrSupplyExhausted, http.StatusUnprocessableEntity},
		{strategy.ErrArithmetic, http.StatusUnprocessableEntity},
		{strategy.ErrNotFound, http.StatusNotFound},
		{strategy.ErrInvalidArgument, http.StatusBadRequest},
		{fmt.Errorf("failed to apply invest effects: %w", engine.ErrInsufficientFunds), http.StatusUnprocessableEntity},
		{fmt.Errorf("lookup: %w", engine.ErrRecordNotFound), http.StatusNotFound},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	rec := httptest.NewRecorder()
	writeEngineError(rec, slog.New(slog.NewTextHandler(io.Discard, nil)), errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestHealthMetricsAndCORS(t *testing.T) {
	h := newAPIHarness(t)

	status, data := h.do(t, nil, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", string(data))

	status, _ = h.do(t, nil, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, status)

	req, err := http.NewRequest("OPTIONS", h.ts.URL+"/api/v1/invest", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), auth.SignatureHeader)

	req, err = http.NewRequest("GET", h.ts.URL+"/api/v1/strategy", nil)
	require.NoError(t, err)
	req.Header.Set(metrics.RequestIDHeader, "req-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get(metrics.RequestIDHeader))
}
