package strategy

import (
	"fmt"
)

// ErrorKind classifies a rejected operation.
type ErrorKind string

const (
	KindAuthorization      ErrorKind = "authorization"
	KindAlreadyInitialized ErrorKind = "already-initialized"
	KindNotInitialized     ErrorKind = "not-initialized"
	KindCapExceeded        ErrorKind = "cap-exceeded"
	KindWindow             ErrorKind = "window"
	KindSequence           ErrorKind = "sequence"
	KindState              ErrorKind = "state"
	KindOwnership          ErrorKind = "ownership"
	KindSupplyExhausted    ErrorKind = "supply-exhausted"
	KindInvalidArgument    ErrorKind = "invalid-argument"
	KindNotFound           ErrorKind = "not-found"
	KindArithmetic         ErrorKind = "arithmetic"
)

// Error is returned by every rejected transition. Errors are produced before
// any record is modified, so a caller receiving one can assume nothing changed.
//
// errors.Is matches on Kind, and additionally on Reason when the target
// carries one: errors.Is(err, ErrCapExceeded) holds for every cap failure,
// errors.Is(err, ErrWalletCap) only for the per-wallet one.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Reason  string    `json:"reason,omitempty"`
	Message string    `json:"message,omitempty"`
}

func (e *Error) Error() string {
	head := string(e.Kind)
	if e.Reason != "" {
		head = fmt.Sprintf("%s (%s)", e.Kind, e.Reason)
	}
	if e.Message == "" {
		return head
	}
	return head + ": " + e.Message
}

// Is reports whether target names the same kind (and reason, if set).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

var (
	ErrUnauthorized       = &Error{Kind: KindAuthorization}
	ErrAlreadyInitialized = &Error{Kind: KindAlreadyInitialized}
	ErrNotInitialized     = &Error{Kind: KindNotInitialized}

	ErrCapExceeded      = &Error{Kind: KindCapExceeded}
	ErrPoolCap          = &Error{Kind: KindCapExceeded, Reason: "pool"}
	ErrWalletCap        = &Error{Kind: KindCapExceeded, Reason: "wallet"}
	ErrRoundCap         = &Error{Kind: KindCapExceeded, Reason: "round-total"}
	ErrWalletInRoundCap = &Error{Kind: KindCapExceeded, Reason: "wallet-in-round"}

	ErrWindow        = &Error{Kind: KindWindow}
	ErrNotStarted    = &Error{Kind: KindWindow, Reason: "not-started"}
	ErrEnded         = &Error{Kind: KindWindow, Reason: "ended"}
	ErrNotMatured    = &Error{Kind: KindWindow, Reason: "not-matured"}
	ErrDurationEnded = &Error{Kind: KindWindow, Reason: "duration-ended"}
	ErrExpired       = &Error{Kind: KindWindow, Reason: "expired"}
	ErrNotEnded      = &Error{Kind: KindWindow, Reason: "not-ended"}

	ErrSequence        = &Error{Kind: KindSequence}
	ErrWrongID         = &Error{Kind: KindSequence, Reason: "wrong-id"}
	ErrWrongState      = &Error{Kind: KindSequence, Reason: "wrong-state"}
	ErrRoundsCompleted = &Error{Kind: KindSequence, Reason: "rounds-completed"}

	ErrState          = &Error{Kind: KindState}
	ErrAlreadyOpen    = &Error{Kind: KindState, Reason: "already-open"}
	ErrAlreadyClosed  = &Error{Kind: KindState, Reason: "already-closed"}
	ErrAlreadyClaimed = &Error{Kind: KindState, Reason: "already-claimed"}
	ErrBelowFloor     = &Error{Kind: KindState, Reason: "below-floor"}
	ErrEmptySupply    = &Error{Kind: KindState, Reason: "empty-supply"}

	ErrOwnership   = &Error{Kind: KindOwnership}
	ErrNotHeld     = &Error{Kind: KindOwnership, Reason: "not-held"}
	ErrWrongAmount = &Error{Kind: KindOwnership, Reason: "wrong-amount"}

	ErrSupplyExhausted = &Error{Kind: KindSupplyExhausted}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrArithmetic      = &Error{Kind: KindArithmetic}
)

// fail copies the sentinel and attaches a formatted message.
func fail(sentinel *Error, format string, args ...any) error {
	return &Error{
		Kind:    sentinel.Kind,
		Reason:  sentinel.Reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// Errorf builds an error of the sentinel's kind and reason for collaborators
// that reject an effect on the strategy's behalf.
func Errorf(sentinel *Error, format string, args ...any) error {
	return fail(sentinel, format, args...)
}
