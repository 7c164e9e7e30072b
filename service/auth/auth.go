// Package auth defines how API requests are signed by a wallet and verified
// by the server. A request carries the signer's public key, a unix timestamp,
// a random nonce and an ed25519 signature over the canonical message returned
// by Message.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

const (
	WalletHeader    = "X-Solxr-Wallet"
	TimestampHeader = "X-Solxr-Timestamp"
	NonceHeader     = "X-Solxr-Nonce"
	SignatureHeader = "X-Solxr-Signature"

	// DefaultMaxSkew is how far a request timestamp may drift from the server clock.
	DefaultMaxSkew = 5 * time.Minute

	maxNonceLen = 64
)

var (
	ErrMissingHeaders   = errors.New("missing signature headers")
	ErrBadSignature     = errors.New("signature does not verify")
	ErrStaleTimestamp   = errors.New("timestamp outside allowed skew")
	ErrMalformedRequest = errors.New("malformed signature headers")
)

// Message is the byte string a wallet signs for one request.
func Message(method, path, timestamp, nonce string, body []byte) []byte {
	head := method + "\n" + path + "\n" + timestamp + "\n" + nonce + "\n"
	msg := make([]byte, 0, len(head)+len(body))
	msg = append(msg, head...)
	return append(msg, body...)
}

// Headers are the signature headers for one request.
type Headers struct {
	Wallet    string
	Timestamp string
	Nonce     string
	Signature string
}

// FromHTTP reads the signature headers of a request.
func FromHTTP(h http.Header) Headers {
	return Headers{
		Wallet:    h.Get(WalletHeader),
		Timestamp: h.Get(TimestampHeader),
		Nonce:     h.Get(NonceHeader),
		Signature: h.Get(SignatureHeader),
	}
}

// Apply sets the signature headers on an outgoing request.
func (h Headers) Apply(dst http.Header) {
	dst.Set(WalletHeader, h.Wallet)
	dst.Set(TimestampHeader, h.Timestamp)
	dst.Set(NonceHeader, h.Nonce)
	dst.Set(SignatureHeader, h.Signature)
}

// Sign produces the headers for a request signed by key at now. Every call
// draws a fresh nonce, so two identical requests carry different signatures.
func Sign(key solana.PrivateKey, method, path string, body []byte, now time.Time) (Headers, error) {
	ts := strconv.FormatInt(now.Unix(), 10)
	nonce := uuid.NewString()
	sig, err := key.Sign(Message(method, path, ts, nonce, body))
	if err != nil {
		return Headers{}, fmt.Errorf("failed to sign request: %w", err)
	}
	return Headers{
		Wallet:    key.PublicKey().String(),
		Timestamp: ts,
		Nonce:     nonce,
		Signature: sig.String(),
	}, nil
}

// Verify checks h against the request and returns the signing wallet.
// It does not detect replays; see ReplayGuard.
func Verify(h Headers, method, path string, body []byte, now time.Time, maxSkew time.Duration) (solana.PublicKey, error) {
	if h.Wallet == "" || h.Timestamp == "" || h.Nonce == "" || h.Signature == "" {
		return solana.PublicKey{}, ErrMissingHeaders
	}
	if len(h.Nonce) > maxNonceLen {
		return solana.PublicKey{}, fmt.Errorf("%w: nonce longer than %d bytes", ErrMalformedRequest, maxNonceLen)
	}
	wallet, err := solana.PublicKeyFromBase58(h.Wallet)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: wallet: %v", ErrMalformedRequest, err)
	}
	sig, err := solana.SignatureFromBase58(h.Signature)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: signature: %v", ErrMalformedRequest, err)
	}
	unix, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedRequest, err)
	}
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	skew := now.Sub(time.Unix(unix, 0))
	if skew > maxSkew || skew < -maxSkew {
		return solana.PublicKey{}, ErrStaleTimestamp
	}
	if !sig.Verify(wallet, Message(method, path, h.Timestamp, h.Nonce, body)) {
		return solana.PublicKey{}, ErrBadSignature
	}
	return wallet, nil
}
