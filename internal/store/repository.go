/**
 * @description
 * This file defines the `Repository` interface: the contract for all data
 * access the services need. Atomic multi-row operations (primary-flag
 * swaps, the two-account balance move, guarded deletes) live behind single
 * interface methods so every implementation provides them as one unit.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid, github.com/shopspring/decimal.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/upistack/upi-service/internal/domain"
)

var (
	ErrAccountNotFound      = errors.New("bank account not found")
	ErrDuplicateBankAccount = errors.New("bank account is already linked")
	ErrAccountIsPrimary     = errors.New("cannot delete primary bank account")
	ErrAccountHasVPAs       = errors.New("cannot delete bank account with active VPAs")
	ErrInsufficientFunds    = errors.New("insufficient balance")

	ErrVPANotFound  = errors.New("vpa not found")
	ErrAddressTaken = errors.New("vpa address is already taken")
	ErrVPAIsPrimary = errors.New("cannot delete primary vpa")

	ErrTransferNotFound     = errors.New("transfer not found")
	ErrReferenceTaken       = errors.New("transfer reference already exists")
	ErrTransferNotCompleted = errors.New("transfer is not in a completed state")
	ErrTransferNotInitiated = errors.New("transfer is not in the initiated state")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account methods. CreateAccount and UpdateAccount perform the
	// single-primary swap atomically when makePrimary is set (or, for
	// create, when the user owns no accounts yet). DeleteAccount refuses
	// primary accounts and accounts with linked VPAs within the same
	// transactional unit as the delete.
	CreateAccount(ctx context.Context, account *domain.Account, makePrimary bool) error
	FindAccountsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	FindAccountByUserAndID(ctx context.Context, userID, accountID uuid.UUID) (*domain.Account, error)
	UpdateAccount(ctx context.Context, account *domain.Account, makePrimary bool) error
	DeleteAccount(ctx context.Context, userID, accountID uuid.UUID) error
	SetPrimaryAccount(ctx context.Context, userID, accountID uuid.UUID) error
	MarkAccountVerified(ctx context.Context, userID, accountID uuid.UUID) error

	// TransferBalances debits the sender account and credits the receiver
	// account as one atomic unit, locking both rows in a deterministic
	// order. Returns ErrInsufficientFunds when the sender balance is
	// below amount at the time of the locked read.
	TransferBalances(ctx context.Context, senderAccountID, receiverAccountID uuid.UUID, amount decimal.Decimal) error

	// VPA methods. Address uniqueness is enforced at insert/update time
	// by the implementation, never by a prior existence query.
	CreateVPA(ctx context.Context, vpa *domain.VPA, makePrimary bool) error
	FindVPAsByUser(ctx context.Context, userID uuid.UUID) ([]domain.VPA, error)
	FindVPAByUserAndID(ctx context.Context, userID, vpaID uuid.UUID) (*domain.VPA, error)
	FindVPAByAddress(ctx context.Context, address string) (*domain.VPA, error)
	FindVPAsByAccount(ctx context.Context, userID, accountID uuid.UUID) ([]domain.VPA, error)
	UpdateVPA(ctx context.Context, vpa *domain.VPA, makePrimary bool) error
	DeleteVPA(ctx context.Context, userID, vpaID uuid.UUID) error
	SetPrimaryVPA(ctx context.Context, userID, vpaID uuid.UUID) error
	VPAAddressExists(ctx context.Context, address string) (bool, error)

	// Transfer methods. CreateTransfer reports ErrReferenceTaken when the
	// reference collides with an existing row so the caller can retry
	// with a fresh code.
	CreateTransfer(ctx context.Context, transfer *domain.Transfer) error
	CompleteTransfer(ctx context.Context, transferID uuid.UUID, completedAt time.Time) error
	FailTransfer(ctx context.Context, transferID uuid.UUID, reason string) error
	ReverseTransfer(ctx context.Context, transferID, receiverAccountID, senderAccountID uuid.UUID, amount decimal.Decimal) error
	FindTransferByReference(ctx context.Context, reference string) (*domain.Transfer, error)
	ListTransfers(ctx context.Context, query domain.TransferQuery) ([]domain.Transfer, error)
	ListStuckTransfers(ctx context.Context, olderThan time.Time) ([]domain.Transfer, error)
}
