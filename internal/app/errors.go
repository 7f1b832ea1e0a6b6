/**
 * @description
 * This file defines the service-layer error vocabulary. Sentinel errors
 * raised here and in the store package are classified into kinds so the
 * transport layer can map them to status codes with a single switch.
 *
 * @dependencies
 * - errors: Standard library error wrapping and matching.
 * - internal/store: Storage sentinel errors folded into the same kinds.
 */

package app

import (
	"errors"

	"github.com/upistack/upi-service/internal/store"
)

// Service-layer sentinel errors.
var (
	ErrInvalidAddress      = errors.New("invalid vpa address")
	ErrInvalidAccount      = errors.New("invalid account details")
	ErrInvalidPINFormat    = errors.New("upi pin must be 4 to 6 digits")
	ErrInvalidAmount       = errors.New("transfer amount must be at least 1.00")
	ErrInvalidTransferType = errors.New("unknown transfer type")
	ErrInvalidPIN          = errors.New("incorrect upi pin")
	ErrNotResourceOwner    = errors.New("resource does not belong to caller")
	ErrAccountNotVerified  = errors.New("account is not verified")
	ErrReceiverInvalid     = errors.New("receiver vpa is invalid or unknown")
	ErrSelfTransfer        = errors.New("sender and receiver vpa are the same")
	ErrVPAInactive         = errors.New("vpa is inactive")
	ErrRateLimited         = errors.New("too many transfer attempts")
)

// Kind buckets errors for transport mapping.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindFailedPrecondition Kind = "failed_precondition"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal"
)

// KindOf classifies an error into its transport kind. Unrecognized errors
// are internal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrInvalidAccount),
		errors.Is(err, ErrInvalidPINFormat),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidTransferType),
		errors.Is(err, ErrReceiverInvalid),
		errors.Is(err, ErrSelfTransfer),
		errors.Is(err, ErrVPAInactive),
		errors.Is(err, ErrAccountNotVerified):
		return KindValidation
	case errors.Is(err, ErrInvalidPIN):
		return KindUnauthorized
	case errors.Is(err, ErrNotResourceOwner):
		return KindForbidden
	case errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrVPANotFound),
		errors.Is(err, store.ErrTransferNotFound):
		return KindNotFound
	case errors.Is(err, store.ErrDuplicateBankAccount),
		errors.Is(err, store.ErrAddressTaken),
		errors.Is(err, store.ErrAccountIsPrimary),
		errors.Is(err, store.ErrAccountHasVPAs),
		errors.Is(err, store.ErrVPAIsPrimary),
		errors.Is(err, store.ErrTransferNotCompleted),
		errors.Is(err, store.ErrTransferNotInitiated):
		return KindConflict
	case errors.Is(err, store.ErrInsufficientFunds):
		return KindFailedPrecondition
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	}
	return KindInternal
}
