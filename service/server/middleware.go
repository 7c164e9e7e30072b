package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solxr/service/auth"
	"github.com/gagliardetto/solana-go"
)

const maxRequestBodySize = 1 << 20

type walletKey struct{}

// requireSignature verifies the request signature headers against the body,
// claims the signature with guard so it cannot be replayed, and puts the
// signing wallet in the request context.
func requireSignature(maxSkew time.Duration, guard auth.ReplayGuard, now func() time.Time, logger *slog.Logger, next http.Handler) http.Handler {
	window := auth.ReplayWindow(maxSkew)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, "request body too large or unreadable", http.StatusRequestEntityTooLarge)
			return
		}

		h := auth.FromHTTP(r.Header)
		wallet, err := auth.Verify(h, r.Method, r.URL.Path, body, now(), maxSkew)
		if err != nil {
			logger.Debug("rejected request signature",
				"path", r.URL.Path,
				"wallet", h.Wallet,
				"error", err,
			)
			status := http.StatusUnauthorized
			if errors.Is(err, auth.ErrMalformedRequest) {
				status = http.StatusBadRequest
			}
			writeError(w, err.Error(), status)
			return
		}

		fresh, err := guard.Claim(r.Context(), h.Signature, window)
		if err != nil {
			logger.Error("replay guard unavailable", "path", r.URL.Path, "error", err)
			writeError(w, "signature check unavailable", http.StatusServiceUnavailable)
			return
		}
		if !fresh {
			logger.Warn("rejected replayed request",
				"path", r.URL.Path,
				"wallet", wallet.String(),
			)
			writeError(w, auth.ErrReplayed.Error(), http.StatusConflict)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), walletKey{}, wallet)))
	})
}

// signer returns the wallet that signed the request.
func signer(ctx context.Context) solana.PublicKey {
	wallet, _ := ctx.Value(walletKey{}).(solana.PublicKey)
	return wallet
}
