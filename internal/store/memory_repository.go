/**
 * @description
 * This file provides an in-memory implementation of the `Repository`
 * interface guarded by a single mutex. It mirrors the transactional
 * semantics of the PostgreSQL implementation (atomic primary swaps,
 * insert-time uniqueness, balance conservation) and backs the service
 * tests and local development without a database.
 *
 * @dependencies
 * - sync: Mutual exclusion over the shared maps.
 * - internal/domain: Contains the domain models.
 */

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/upistack/upi-service/internal/domain"
)

// MemoryRepository is a mutex-guarded, map-backed Repository.
type MemoryRepository struct {
	mu        sync.Mutex
	accounts  map[uuid.UUID]*domain.Account
	vpas      map[uuid.UUID]*domain.VPA
	transfers map[uuid.UUID]*domain.Transfer
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:  make(map[uuid.UUID]*domain.Account),
		vpas:      make(map[uuid.UUID]*domain.VPA),
		transfers: make(map[uuid.UUID]*domain.Transfer),
	}
}

func (r *MemoryRepository) CreateAccount(_ context.Context, account *domain.Account, makePrimary bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := 0
	for _, a := range r.accounts {
		if a.UserID == account.UserID {
			owned++
		}
		if a.AccountNumber == account.AccountNumber && a.IFSCCode == account.IFSCCode {
			return ErrDuplicateBankAccount
		}
	}

	account.Primary = makePrimary || owned == 0
	if account.Primary {
		for _, a := range r.accounts {
			if a.UserID == account.UserID {
				a.Primary = false
			}
		}
	}

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	stored := *account
	r.accounts[account.ID] = &stored
	return nil
}

func (r *MemoryRepository) FindAccountsByUser(_ context.Context, userID uuid.UUID) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var accounts []domain.Account
	for _, a := range r.accounts {
		if a.UserID == userID {
			accounts = append(accounts, *a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].CreatedAt.Before(accounts[j].CreatedAt) })
	return accounts, nil
}

func (r *MemoryRepository) FindAccountByUserAndID(_ context.Context, userID, accountID uuid.UUID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accountByUserAndID(userID, accountID)
}

func (r *MemoryRepository) accountByUserAndID(userID, accountID uuid.UUID) (*domain.Account, error) {
	a, ok := r.accounts[accountID]
	if !ok || a.UserID != userID {
		return nil, ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *MemoryRepository) UpdateAccount(_ context.Context, account *domain.Account, makePrimary bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[account.ID]
	if !ok || stored.UserID != account.UserID {
		return ErrAccountNotFound
	}

	if makePrimary {
		for _, a := range r.accounts {
			if a.UserID == account.UserID && a.ID != account.ID {
				a.Primary = false
			}
		}
		account.Primary = true
	} else {
		account.Primary = stored.Primary
	}

	stored.BankName = account.BankName
	stored.AccountHolderName = account.AccountHolderName
	stored.AccountType = account.AccountType
	stored.PINHash = account.PINHash
	stored.Primary = account.Primary
	stored.UpdatedAt = time.Now()
	account.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *MemoryRepository) DeleteAccount(_ context.Context, userID, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[accountID]
	if !ok || a.UserID != userID {
		return ErrAccountNotFound
	}
	if a.Primary {
		return ErrAccountIsPrimary
	}
	for _, v := range r.vpas {
		if v.AccountID == accountID {
			return ErrAccountHasVPAs
		}
	}
	delete(r.accounts, accountID)
	return nil
}

func (r *MemoryRepository) SetPrimaryAccount(_ context.Context, userID, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.accounts[accountID]
	if !ok || target.UserID != userID {
		return ErrAccountNotFound
	}
	for _, a := range r.accounts {
		if a.UserID == userID {
			a.Primary = a.ID == accountID
			a.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (r *MemoryRepository) MarkAccountVerified(_ context.Context, userID, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[accountID]
	if !ok || a.UserID != userID {
		return ErrAccountNotFound
	}
	a.Verified = true
	a.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) TransferBalances(_ context.Context, senderAccountID, receiverAccountID uuid.UUID, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sender, ok := r.accounts[senderAccountID]
	if !ok {
		return ErrAccountNotFound
	}
	receiver, ok := r.accounts[receiverAccountID]
	if !ok {
		return ErrAccountNotFound
	}
	if sender.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	sender.Balance = sender.Balance.Sub(amount)
	receiver.Balance = receiver.Balance.Add(amount)
	now := time.Now()
	sender.UpdatedAt = now
	receiver.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) CreateVPA(_ context.Context, vpa *domain.VPA, makePrimary bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := 0
	for _, v := range r.vpas {
		if strings.EqualFold(v.Address, vpa.Address) {
			return ErrAddressTaken
		}
		if v.UserID == vpa.UserID {
			owned++
		}
	}

	vpa.Primary = makePrimary || owned == 0
	if vpa.Primary {
		for _, v := range r.vpas {
			if v.UserID == vpa.UserID {
				v.Primary = false
			}
		}
	}

	now := time.Now()
	vpa.CreatedAt = now
	vpa.UpdatedAt = now
	stored := *vpa
	r.vpas[vpa.ID] = &stored
	return nil
}

func (r *MemoryRepository) FindVPAsByUser(_ context.Context, userID uuid.UUID) ([]domain.VPA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var vpas []domain.VPA
	for _, v := range r.vpas {
		if v.UserID == userID {
			vpas = append(vpas, *v)
		}
	}
	sort.Slice(vpas, func(i, j int) bool { return vpas[i].CreatedAt.Before(vpas[j].CreatedAt) })
	return vpas, nil
}

func (r *MemoryRepository) FindVPAByUserAndID(_ context.Context, userID, vpaID uuid.UUID) (*domain.VPA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.vpas[vpaID]
	if !ok || v.UserID != userID {
		return nil, ErrVPANotFound
	}
	copied := *v
	return &copied, nil
}

func (r *MemoryRepository) FindVPAByAddress(_ context.Context, address string) (*domain.VPA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.vpas {
		if strings.EqualFold(v.Address, address) {
			copied := *v
			return &copied, nil
		}
	}
	return nil, ErrVPANotFound
}

func (r *MemoryRepository) FindVPAsByAccount(_ context.Context, userID, accountID uuid.UUID) ([]domain.VPA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var vpas []domain.VPA
	for _, v := range r.vpas {
		if v.UserID == userID && v.AccountID == accountID {
			vpas = append(vpas, *v)
		}
	}
	sort.Slice(vpas, func(i, j int) bool { return vpas[i].CreatedAt.Before(vpas[j].CreatedAt) })
	return vpas, nil
}

func (r *MemoryRepository) UpdateVPA(_ context.Context, vpa *domain.VPA, makePrimary bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.vpas[vpa.ID]
	if !ok || stored.UserID != vpa.UserID {
		return ErrVPANotFound
	}
	for _, v := range r.vpas {
		if v.ID != vpa.ID && strings.EqualFold(v.Address, vpa.Address) {
			return ErrAddressTaken
		}
	}

	if makePrimary {
		for _, v := range r.vpas {
			if v.UserID == vpa.UserID && v.ID != vpa.ID {
				v.Primary = false
			}
		}
		vpa.Primary = true
	} else {
		vpa.Primary = stored.Primary
	}

	stored.AccountID = vpa.AccountID
	stored.Address = vpa.Address
	stored.Primary = vpa.Primary
	stored.Active = vpa.Active
	stored.UpdatedAt = time.Now()
	vpa.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *MemoryRepository) DeleteVPA(_ context.Context, userID, vpaID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.vpas[vpaID]
	if !ok || v.UserID != userID {
		return ErrVPANotFound
	}
	if v.Primary {
		owned := 0
		for _, other := range r.vpas {
			if other.UserID == userID {
				owned++
			}
		}
		if owned > 1 {
			return ErrVPAIsPrimary
		}
	}
	delete(r.vpas, vpaID)
	return nil
}

func (r *MemoryRepository) SetPrimaryVPA(_ context.Context, userID, vpaID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.vpas[vpaID]
	if !ok || target.UserID != userID {
		return ErrVPANotFound
	}
	for _, v := range r.vpas {
		if v.UserID == userID {
			v.Primary = v.ID == vpaID
			v.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (r *MemoryRepository) VPAAddressExists(_ context.Context, address string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.vpas {
		if strings.EqualFold(v.Address, address) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) CreateTransfer(_ context.Context, transfer *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.transfers {
		if t.Reference == transfer.Reference {
			return ErrReferenceTaken
		}
	}
	transfer.CreatedAt = time.Now()
	stored := *transfer
	r.transfers[transfer.ID] = &stored
	return nil
}

func (r *MemoryRepository) CompleteTransfer(_ context.Context, transferID uuid.UUID, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.transfers[transferID]
	if !ok || t.Status != domain.TransferStatusInitiated {
		return ErrTransferNotInitiated
	}
	t.Status = domain.TransferStatusCompleted
	stamped := completedAt
	t.CompletedAt = &stamped
	return nil
}

func (r *MemoryRepository) FailTransfer(_ context.Context, transferID uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.transfers[transferID]
	if !ok || t.Status != domain.TransferStatusInitiated {
		return ErrTransferNotInitiated
	}
	t.Status = domain.TransferStatusFailed
	t.FailureReason = &reason
	return nil
}

func (r *MemoryRepository) ReverseTransfer(_ context.Context, transferID, receiverAccountID, senderAccountID uuid.UUID, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.transfers[transferID]
	if !ok || t.Status != domain.TransferStatusCompleted {
		return ErrTransferNotCompleted
	}
	receiver, ok := r.accounts[receiverAccountID]
	if !ok {
		return ErrAccountNotFound
	}
	sender, ok := r.accounts[senderAccountID]
	if !ok {
		return ErrAccountNotFound
	}
	// Refund and flip together; if the receiver cannot cover the refund the
	// transfer stays COMPLETED so the reversal can be retried.
	if receiver.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	receiver.Balance = receiver.Balance.Sub(amount)
	sender.Balance = sender.Balance.Add(amount)
	now := time.Now()
	receiver.UpdatedAt = now
	sender.UpdatedAt = now
	t.Status = domain.TransferStatusReversed
	return nil
}

func (r *MemoryRepository) FindTransferByReference(_ context.Context, reference string) (*domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.transfers {
		if t.Reference == reference {
			copied := *t
			return &copied, nil
		}
	}
	return nil, ErrTransferNotFound
}

func (r *MemoryRepository) ListTransfers(_ context.Context, query domain.TransferQuery) ([]domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(query.SentBy) == 0 && len(query.ReceivedBy) == 0 {
		return []domain.Transfer{}, nil
	}

	contains := func(addrs []string, addr string) bool {
		for _, a := range addrs {
			if strings.EqualFold(a, addr) {
				return true
			}
		}
		return false
	}

	var matched []domain.Transfer
	for _, t := range r.transfers {
		if contains(query.SentBy, t.SenderAddress) || contains(query.ReceivedBy, t.ReceiverAddress) {
			matched = append(matched, *t)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		var less bool
		if query.SortBy == domain.TransferSortAmount {
			less = matched[i].Amount.LessThan(matched[j].Amount)
		} else {
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		if query.Ascending {
			return less
		}
		return !less
	})

	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.Transfer{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *MemoryRepository) ListStuckTransfers(_ context.Context, olderThan time.Time) ([]domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stuck []domain.Transfer
	for _, t := range r.transfers {
		if t.Status == domain.TransferStatusInitiated && t.CreatedAt.Before(olderThan) {
			stuck = append(stuck, *t)
		}
	}
	sort.Slice(stuck, func(i, j int) bool { return stuck[i].CreatedAt.Before(stuck[j].CreatedAt) })
	return stuck, nil
}
