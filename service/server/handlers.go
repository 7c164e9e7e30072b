package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/brojonat/solxr/service/cache"
	"github.com/brojonat/solxr/service/engine"
	"github.com/brojonat/solxr/service/strategy"
	"github.com/brojonat/solxr/service/temporal"
	"github.com/gagliardetto/solana-go"
)

type investRequest struct {
	Amount uint64 `json:"amount"`
}

type airdropRequest struct {
	To     solana.PublicKey `json:"to"`
	Amount uint64           `json:"amount"`
}

type openRoundRequest struct {
	RoundID uint64 `json:"round_id"`
	Premium uint64 `json:"premium"`
}

type buyRoundRequest struct {
	Amount       uint64           `json:"amount"`
	FeeRecipient solana.PublicKey `json:"fee_recipient"`
}

type redeemRequest struct {
	Convert bool `json:"convert"`
}

type transferRequest struct {
	To solana.PublicKey `json:"to"`
}

// editionResponse describes one edition of an offering. Redemption is nil
// until the edition is redeemed.
type editionResponse struct {
	Kind       strategy.OfferingKind `json:"kind"`
	OfferingID uint64                `json:"offering_id"`
	Edition    uint64                `json:"edition"`
	Address    solana.PublicKey      `json:"address"`
	Redemption *strategy.Redemption  `json:"redemption"`
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error  string             `json:"error"`
	Kind   strategy.ErrorKind `json:"kind,omitempty"`
	Reason string             `json:"reason,omitempty"`
}

// handleInitializeToken returns a handler that records the token configuration.
// POST /api/v1/token/initialize
func handleInitializeToken(e *engine.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req strategy.TokenParams
		if !decodeBody(w, r, &req) {
			return
		}
		receipt, err := e.InitializeToken(r.Context(), signer(r.Context()), req)
		respondReceipt(w, logger, receipt, err)
	})
}

// handleInitializeEditions returns a handler that sets up the edition offerings.
// POST /api/v1/editions/initialize
func handleInitializeEditions(e *engine.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req strategy.EditionParams
		if !decodeBody(w, r, &req) {
			return
		}
		receipt, err := e.InitializeEditions(r.Context(), signer(r.Context()), req)
		respondReceipt(w, logger, receipt, err)
	})
}

// handleInvest returns a handler that mints at par against collateral.
// POST /api/v1/invest
func handleInvest(e *engine.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req investRequest
		if !decodeBody(w, r, &req) {
			return
		}
		receipt, err := e.Invest(r.Context(), signer(r.Context()), req.Amount)
		respondReceipt(w, logger, receipt, err)
	})
}

// handleAirdrop returns a handler that credits collateral to a wallet.
// POST /api/v1/airdrop
func handleAirdrop(e *engine.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req airdropRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.To.IsZero() {
			writeError(w, "to is required", http.StatusBadRequest)
			return
		}
		receipt, err := e.Airdrop(r.Context(), signer(r.Context()), req.To, req.Amount)
		respondReceipt(w, logger, receipt, err)
	})
}

// handleOpenRound returns a handler that opens a premium round and schedules
// its expiry.
// POST /api/v1/rounds
func handleOpenRound(e *engine.Engine, scheduler temporal.Scheduler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openRoundRequest
		if !decodeBody(w, r, &req) {
			return
		}
		receipt, err := e.OpenRound(r.Context(), signer(r.Context()), req.RoundID, req.Premium)
		if err == nil && scheduler != nil {
			round := receipt.Outcome.Round
			closesAt := round.ClosesAt(receipt.Outcome.State.MintDuration)
			// A failed schedule leaves the round open until governance closes it.
			if err := scheduler.ScheduleRoundExpiry(r.Context(), round.ID, closesAt); err != nil {
				logger.Error("failed to schedule round expiry",
					"round_id", round.ID,
					"closes_at", closesAt,
					"error", err,
				)
			}
		}
		respondReceipt(w, logger, receipt, err)
	})
}

// handleCloseRound returns a handler that closes the open round.
// POST /api/v1/rounds/close
func handleCloseRound(e *engine.Engine, scheduler temporal.Scheduler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receipt, err := e.CloseRound(r.Context(), signer(r.Context()))
		if err == nil && scheduler != nil && receipt.Outcome.Round != nil {
			roundID := receipt.Outcome.Round.ID
			if err := scheduler.CancelRoundExpiry(r.Context(), roundID); err != nil {
				logger.Warn("failed to cancel round expiry", "round_id", roundID, "error", err)
			}
		}
		respondReceipt(w, logger, receipt, err)
	})
}

// handleBuyRound returns a handler that buys into the open round.
// POST /api/v1/rounds/{id}/buy
func handleBuyRound(e *engine.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUint(w, r, "id")
		if !ok {
			return
		}
		var req buyRoundRequest
		if !decodeBody(w, r, &req) {
			return
		}
		receipt, err := e.BuyRound(r.Context(), signer(r.Context()), id, req.Amount, req.FeeRecipient)
		respondReceipt(w, logger, receipt, err)
	})
}

// handleCreateOffering returns a handler that creates a bond or whitelist.
// POST /api/v1/offerings/{kind}
func handleCreateOffering(e *engine.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, ok := pathKind(w, r)
		if !ok {
			return
		}
		var req strategy.OfferingParams
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Kind == "" {
			req.Kind = kind
		}
		if req.Kind != kind {
			writeError(w, fmt.Sprintf("body kind %q does not match path kind %q", req.Kind, kind), http.StatusBadRequest)
			return
		}

		var receipt *engine.Receipt
		var err error
		if kind == strategy.Bond {
			receipt, err = e.CreateBond(r.Context(), signer(r.Context()), req)
		} else {
			receipt, err = e.CreateWhitelist(r.Context(), signer(r.Context()), req)
		}
		respondReceipt(w, logger, receipt, err)
	})
}

// handleBuyEdition returns a handler that buys the next edition of an offering.
// POST /api/v1/offerings/{kind}/{id}/buy
func handleBuyEdition(e *engine.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, ok := pathKind(w, r)
		if !ok {
			return
		}
		id, ok := pathUint(w, r, "id")
		if !ok {
			return
		}
		receipt, err := e.BuyEdition(r.Context(), signer(r.Context()), kind, id)
		respondReceipt(w, logger, receipt, err)
	})
}

// handleRedeem returns a handler that redeems a matured edition.
// POST /api/v1/offerings/{kind}/{id}/editions/{edition}/redeem
func handleRedeem(e *engine.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, id, edition, ok := pathEdition(w, r)
		if !ok {
			return
		}
		var req redeemRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var receipt *engine.Receipt
		var err error
		switch {
		case kind == strategy.Bond:
			receipt, err = e.RedeemBond(r.Context(), signer(r.Context()), id, edition, req.Convert)
		case req.Convert:
			writeError(w, "whitelist editions cannot be converted", http.StatusBadRequest)
			return
		default:
			receipt, err = e.RedeemWhitelist(r.Context(), signer(r.Context()), id, edition)
		}
		respondReceipt(w, logger, receipt, err)
	})
}

// handleTransferEdition returns a handler that moves an edition to another wallet.
// POST /api/v1/offerings/{kind}/{id}/editions/{edition}/transfer
func handleTransferEdition(e *engine.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, id, edition, ok := pathEdition(w, r)
		if !ok {
			return
		}
		var req transferRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.To.IsZero() {
			writeError(w, "to is required", http.StatusBadRequest)
			return
		}
		receipt, err := e.TransferEdition(r.Context(), signer(r.Context()), kind, id, edition, req.To)
		respondReceipt(w, logger, receipt, err)
	})
}

// handleGetStrategy returns a handler that reports the strategy snapshot.
// GET /api/v1/strategy
func handleGetStrategy(e *engine.Engine, qc *cache.QueryCache, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, err := cache.Fetch(r.Context(), qc, "strategy", e.Strategy)
		respondQuery(w, logger, snap, err)
	})
}

// handleGetBalance returns a handler that reports a wallet's balances.
// GET /api/v1/balances/{wallet}
func handleGetBalance(e *engine.Engine, qc *cache.QueryCache, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallet, ok := pathWallet(w, r)
		if !ok {
			return
		}
		b, err := cache.Fetch(r.Context(), qc, cache.Key("balance", wallet.String()), func(ctx context.Context) (*engine.Balance, error) {
			return e.Balance(ctx, wallet)
		})
		respondQuery(w, logger, b, err)
	})
}

// handleGetRound returns a handler that reports a round.
// GET /api/v1/rounds/{id}
func handleGetRound(e *engine.Engine, qc *cache.QueryCache, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUint(w, r, "id")
		if !ok {
			return
		}
		round, err := cache.Fetch(r.Context(), qc, cache.Key("round", id), func(ctx context.Context) (*strategy.MintRound, error) {
			return e.Round(ctx, id)
		})
		respondQuery(w, logger, round, err)
	})
}

// handleGetRoundParticipant returns a handler that reports what a wallet minted in a round.
// GET /api/v1/rounds/{id}/participants/{wallet}
func handleGetRoundParticipant(e *engine.Engine, qc *cache.QueryCache, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUint(w, r, "id")
		if !ok {
			return
		}
		wallet, ok := pathWallet(w, r)
		if !ok {
			return
		}
		p, err := cache.Fetch(r.Context(), qc, cache.Key("round", id, wallet.String()), func(ctx context.Context) (strategy.RoundParticipant, error) {
			return e.RoundParticipant(ctx, id, wallet)
		})
		respondQuery(w, logger, p, err)
	})
}

// handleGetOffering returns a handler that reports an offering.
// GET /api/v1/offerings/{kind}/{id}
func handleGetOffering(e *engine.Engine, qc *cache.QueryCache, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, ok := pathKind(w, r)
		if !ok {
			return
		}
		id, ok := pathUint(w, r, "id")
		if !ok {
			return
		}
		o, err := cache.Fetch(r.Context(), qc, cache.Key(string(kind), id), func(ctx context.Context) (*strategy.Offering, error) {
			return e.Offering(ctx, kind, id)
		})
		respondQuery(w, logger, o, err)
	})
}

// handleGetParticipant returns a handler that reports how many editions a wallet bought.
// GET /api/v1/offerings/{kind}/{id}/participants/{wallet}
func handleGetParticipant(e *engine.Engine, qc *cache.QueryCache, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, ok := pathKind(w, r)
		if !ok {
			return
		}
		id, ok := pathUint(w, r, "id")
		if !ok {
			return
		}
		wallet, ok := pathWallet(w, r)
		if !ok {
			return
		}
		p, err := cache.Fetch(r.Context(), qc, cache.Key(string(kind), id, wallet.String()), func(ctx context.Context) (strategy.Participant, error) {
			return e.Participant(ctx, kind, id, wallet)
		})
		respondQuery(w, logger, p, err)
	})
}

// handleGetEdition returns a handler that reports an edition's address and
// redemption record.
// GET /api/v1/offerings/{kind}/{id}/editions/{edition}
func handleGetEdition(e *engine.Engine, qc *cache.QueryCache, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, id, edition, ok := pathEdition(w, r)
		if !ok {
			return
		}
		resp, err := cache.Fetch(r.Context(), qc, cache.Key(string(kind), id, "edition", edition), func(ctx context.Context) (*editionResponse, error) {
			addr, err := e.EditionAddress(ctx, kind, id, edition)
			if err != nil {
				return nil, err
			}
			red, err := e.Redemption(ctx, kind, id, edition)
			if err != nil && !errors.Is(err, strategy.ErrNotFound) {
				return nil, err
			}
			return &editionResponse{
				Kind:       kind,
				OfferingID: id,
				Edition:    edition,
				Address:    addr,
				Redemption: red,
			}, nil
		})
		respondQuery(w, logger, resp, err)
	})
}

// respondReceipt writes the receipt of a state change, or the error that
// rejected it.
func respondReceipt(w http.ResponseWriter, logger *slog.Logger, receipt *engine.Receipt, err error) {
	if err != nil {
		writeEngineError(w, logger, err)
		return
	}
	writeJSON(w, receipt, http.StatusOK)
}

func respondQuery(w http.ResponseWriter, logger *slog.Logger, v any, err error) {
	if err != nil {
		writeEngineError(w, logger, err)
		return
	}
	writeJSON(w, v, http.StatusOK)
}

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	var se *strategy.Error
	if errors.As(err, &se) {
		switch se.Kind {
		case strategy.KindAuthorization:
			return http.StatusForbidden
		case strategy.KindAlreadyInitialized, strategy.KindNotInitialized,
			strategy.KindState, strategy.KindSequence, strategy.KindCapExceeded:
			return http.StatusConflict
		case strategy.KindWindow, strategy.KindOwnership,
			strategy.KindSupplyExhausted, strategy.KindArithmetic:
			return http.StatusUnprocessableEntity
		case strategy.KindNotFound:
			return http.StatusNotFound
		case strategy.KindInvalidArgument:
			return http.StatusBadRequest
		}
	}
	switch {
	case errors.Is(err, engine.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeEngineError writes err with its mapped status. Internal errors are
// logged and replaced with a generic message.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		writeError(w, "internal server error", status)
		return
	}

	resp := errorResponse{Error: err.Error()}
	var se *strategy.Error
	if errors.As(err, &se) {
		resp.Kind = se.Kind
		resp.Reason = se.Reason
	}
	writeJSON(w, resp, status)
}

// decodeBody decodes the JSON request body into v. An empty body leaves v
// unchanged. It writes a 400 and returns false on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func pathUint(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	v, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		writeError(w, fmt.Sprintf("invalid %s: must be an unsigned integer", name), http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func pathKind(w http.ResponseWriter, r *http.Request) (strategy.OfferingKind, bool) {
	kind := strategy.OfferingKind(r.PathValue("kind"))
	if !kind.Valid() {
		writeError(w, fmt.Sprintf("invalid offering kind %q: must be 'bond' or 'whitelist'", kind), http.StatusBadRequest)
		return "", false
	}
	return kind, true
}

func pathWallet(w http.ResponseWriter, r *http.Request) (solana.PublicKey, bool) {
	wallet, err := solana.PublicKeyFromBase58(r.PathValue("wallet"))
	if err != nil {
		writeError(w, "invalid wallet address: must be a base58 public key", http.StatusBadRequest)
		return solana.PublicKey{}, false
	}
	return wallet, true
}

func pathEdition(w http.ResponseWriter, r *http.Request) (strategy.OfferingKind, uint64, uint64, bool) {
	kind, ok := pathKind(w, r)
	if !ok {
		return "", 0, 0, false
	}
	id, ok := pathUint(w, r, "id")
	if !ok {
		return "", 0, 0, false
	}
	edition, ok := pathUint(w, r, "edition")
	if !ok {
		return "", 0, 0, false
	}
	return kind, id, edition, true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, errorResponse{Error: message}, statusCode)
}
