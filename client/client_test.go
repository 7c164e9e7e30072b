package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brojonat/solxr/service/auth"
	"github.com/brojonat/solxr/service/strategy"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k
}

func TestInvest_SignsRequest(t *testing.T) {
	key := newKey(t)
	now := time.Unix(1_750_000_000, 0)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/invest", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"amount":80000000000}`, string(body))

		h := auth.FromHTTP(r.Header)
		assert.NotEmpty(t, h.Nonce)
		wallet, err := auth.Verify(h, r.Method, r.URL.Path, body, now, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, key.PublicKey(), wallet)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":        "abc",
			"operation": "invest",
			"caller":    wallet.String(),
			"outcome":   map[string]any{"minted": 80_000_000_000},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, key, nil)
	c.now = func() time.Time { return now }

	r, err := c.Invest(context.Background(), 80_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, "abc", r.ID)
	assert.Equal(t, "invest", r.Operation)
	assert.Equal(t, key.PublicKey(), r.Caller)
	assert.Equal(t, uint64(80_000_000_000), r.Outcome.Minted)
}

func TestMutate_WithoutKey(t *testing.T) {
	c := NewClient("http://unused", nil, nil, nil)
	_, err := c.CloseRound(context.Background())
	assert.ErrorIs(t, err, ErrNoKey)
	assert.True(t, c.Wallet().IsZero())
}

func TestRejection_MatchesStrategyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error":  "cap-exceeded (wallet): would hold 101",
			"kind":   "cap-exceeded",
			"reason": "wallet",
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, newKey(t), nil)
	_, err := c.Invest(context.Background(), 1)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.ErrorIs(t, err, strategy.ErrWalletCap)
	assert.ErrorIs(t, err, strategy.ErrCapExceeded)
	assert.NotErrorIs(t, err, strategy.ErrPoolCap)
}

func TestServerError_PlainBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil, nil)
	_, err := c.Strategy(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream down")
	assert.Nil(t, errors.Unwrap(err))
}

func TestQueries_Paths(t *testing.T) {
	wallet := newKey(t).PublicKey()

	tests := []struct {
		name string
		path string
		call func(c *Client) error
	}{
		{"strategy", "/api/v1/strategy", func(c *Client) error { _, err := c.Strategy(context.Background()); return err }},
		{"balance", "/api/v1/balances/" + wallet.String(), func(c *Client) error { _, err := c.Balance(context.Background(), wallet); return err }},
		{"round", "/api/v1/rounds/3", func(c *Client) error { _, err := c.Round(context.Background(), 3); return err }},
		{"round participant", "/api/v1/rounds/3/participants/" + wallet.String(), func(c *Client) error {
			_, err := c.RoundParticipant(context.Background(), 3, wallet)
			return err
		}},
		{"offering", "/api/v1/offerings/bond/2", func(c *Client) error { _, err := c.Offering(context.Background(), strategy.Bond, 2); return err }},
		{"participant", "/api/v1/offerings/whitelist/2/participants/" + wallet.String(), func(c *Client) error {
			_, err := c.Participant(context.Background(), strategy.Whitelist, 2, wallet)
			return err
		}},
		{"edition", "/api/v1/offerings/bond/2/editions/5", func(c *Client) error {
			_, err := c.Edition(context.Background(), strategy.Bond, 2, 5)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "GET", r.Method)
				assert.Equal(t, tt.path, r.URL.Path)
				assert.Empty(t, r.Header.Get(auth.SignatureHeader))
				w.Write([]byte(`{}`))
			}))
			defer server.Close()

			assert.NoError(t, tt.call(NewClient(server.URL, nil, nil, nil)))
		})
	}
}

func TestMutations_Paths(t *testing.T) {
	to := newKey(t).PublicKey()

	tests := []struct {
		name string
		path string
		body string
		call func(c *Client) error
	}{
		{"open round", "/api/v1/rounds", `{"round_id":1,"premium":1750000000}`, func(c *Client) error {
			_, err := c.OpenRound(context.Background(), 1, 1_750_000_000)
			return err
		}},
		{"buy round", "/api/v1/rounds/1/buy", `{"amount":5,"fee_recipient":"` + to.String() + `"}`, func(c *Client) error {
			_, err := c.BuyRound(context.Background(), 1, 5, to)
			return err
		}},
		{"close round", "/api/v1/rounds/close", ``, func(c *Client) error {
			_, err := c.CloseRound(context.Background())
			return err
		}},
		{"buy edition", "/api/v1/offerings/bond/4/buy", ``, func(c *Client) error {
			_, err := c.BuyEdition(context.Background(), strategy.Bond, 4)
			return err
		}},
		{"redeem", "/api/v1/offerings/bond/4/editions/2/redeem", `{"convert":true}`, func(c *Client) error {
			_, err := c.Redeem(context.Background(), strategy.Bond, 4, 2, true)
			return err
		}},
		{"transfer", "/api/v1/offerings/whitelist/4/editions/2/transfer", `{"to":"` + to.String() + `"}`, func(c *Client) error {
			_, err := c.TransferEdition(context.Background(), strategy.Whitelist, 4, 2, to)
			return err
		}},
		{"airdrop", "/api/v1/airdrop", `{"to":"` + to.String() + `","amount":7}`, func(c *Client) error {
			_, err := c.Airdrop(context.Background(), to, 7)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "POST", r.Method)
				assert.Equal(t, tt.path, r.URL.Path)
				assert.NotEmpty(t, r.Header.Get(auth.SignatureHeader))
				body, _ := io.ReadAll(r.Body)
				if tt.body == "" {
					assert.Empty(t, body)
				} else {
					assert.JSONEq(t, tt.body, string(body))
				}
				w.Write([]byte(`{"id":"r1"}`))
			}))
			defer server.Close()

			assert.NoError(t, tt.call(NewClient(server.URL, nil, newKey(t), nil)))
		})
	}
}

func TestCreateOffering_RequiresKind(t *testing.T) {
	c := NewClient("http://unused", nil, newKey(t), nil)
	_, err := c.CreateOffering(context.Background(), strategy.OfferingParams{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid offering kind")
}
