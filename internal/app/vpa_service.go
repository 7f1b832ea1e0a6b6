/**
 * @description
 * This file contains the business logic for virtual payment addresses.
 * The `VPAService` enforces address format, global address uniqueness,
 * the verified-account requirement for registration, and the deletion
 * rules around primary handles.
 *
 * @dependencies
 * - context, log: Standard Go libraries.
 * - github.com/google/uuid: VPA identifiers.
 * - internal/domain, internal/store: Domain models and data access.
 */

package app

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/upistack/upi-service/internal/domain"
	"github.com/upistack/upi-service/internal/store"
)

// VPAService provides the business logic for virtual payment addresses.
type VPAService struct {
	repo store.Repository
}

// NewVPAService creates a new VPA service instance.
func NewVPAService(repo store.Repository) *VPAService {
	return &VPAService{repo: repo}
}

// CreateVPA registers a new address against one of the user's verified
// accounts. The user's first VPA becomes primary regardless of the
// request flag.
func (s *VPAService) CreateVPA(ctx context.Context, userID uuid.UUID, req domain.CreateVPARequest) (*domain.VPA, error) {
	if !domain.ValidVPAParts(req.Username, req.Handle) {
		return nil, ErrInvalidAddress
	}
	address := domain.JoinVPAAddress(req.Username, req.Handle)

	account, err := s.repo.FindAccountByUserAndID(ctx, userID, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.Verified {
		return nil, ErrAccountNotVerified
	}

	vpa := &domain.VPA{
		ID:        uuid.New(),
		UserID:    userID,
		AccountID: account.ID,
		Address:   strings.ToLower(address),
		Active:    true,
	}
	if err := s.repo.CreateVPA(ctx, vpa, req.Primary); err != nil {
		return nil, err
	}
	log.Printf("level=info component=vpa msg=\"vpa registered\" user_id=%s address=%s primary=%v", userID, vpa.Address, vpa.Primary)
	return vpa, nil
}

// ListVPAs returns all of the user's addresses.
func (s *VPAService) ListVPAs(ctx context.Context, userID uuid.UUID) ([]domain.VPA, error) {
	return s.repo.FindVPAsByUser(ctx, userID)
}

// GetVPA returns one address owned by the user.
func (s *VPAService) GetVPA(ctx context.Context, userID, vpaID uuid.UUID) (*domain.VPA, error) {
	return s.repo.FindVPAByUserAndID(ctx, userID, vpaID)
}

// GetVPAByAddress resolves an address to its VPA record.
func (s *VPAService) GetVPAByAddress(ctx context.Context, address string) (*domain.VPA, error) {
	return s.repo.FindVPAByAddress(ctx, strings.ToLower(strings.TrimSpace(address)))
}

// ListVPAsByAccount returns the addresses bound to one of the user's
// accounts.
func (s *VPAService) ListVPAsByAccount(ctx context.Context, userID, accountID uuid.UUID) ([]domain.VPA, error) {
	if _, err := s.repo.FindAccountByUserAndID(ctx, userID, accountID); err != nil {
		return nil, err
	}
	return s.repo.FindVPAsByAccount(ctx, userID, accountID)
}

// UpdateVPA re-points or renames an address. A new target account must
// also be verified; a renamed address must still be globally unique.
func (s *VPAService) UpdateVPA(ctx context.Context, userID, vpaID uuid.UUID, req domain.UpdateVPARequest) (*domain.VPA, error) {
	vpa, err := s.repo.FindVPAByUserAndID(ctx, userID, vpaID)
	if err != nil {
		return nil, err
	}

	if req.AccountID != uuid.Nil && req.AccountID != vpa.AccountID {
		account, err := s.repo.FindAccountByUserAndID(ctx, userID, req.AccountID)
		if err != nil {
			return nil, err
		}
		if !account.Verified {
			return nil, ErrAccountNotVerified
		}
		vpa.AccountID = account.ID
	}
	if req.Username != "" || req.Handle != "" {
		// Either part may be supplied on its own; the other is kept from
		// the stored address.
		username, handle := domain.SplitVPAAddress(vpa.Address)
		if req.Username != "" {
			username = req.Username
		}
		if req.Handle != "" {
			handle = req.Handle
		}
		if !domain.ValidVPAParts(username, handle) {
			return nil, ErrInvalidAddress
		}
		vpa.Address = strings.ToLower(domain.JoinVPAAddress(username, handle))
	}

	if err := s.repo.UpdateVPA(ctx, vpa, req.Primary); err != nil {
		return nil, err
	}
	return vpa, nil
}

// DeleteVPA removes an address. The repository rejects deleting a primary
// VPA unless it is the user's only one.
func (s *VPAService) DeleteVPA(ctx context.Context, userID, vpaID uuid.UUID) error {
	if err := s.repo.DeleteVPA(ctx, userID, vpaID); err != nil {
		return err
	}
	log.Printf("level=info component=vpa msg=\"vpa removed\" user_id=%s vpa_id=%s", userID, vpaID)
	return nil
}

// SetPrimaryVPA makes the given address the user's primary one.
func (s *VPAService) SetPrimaryVPA(ctx context.Context, userID, vpaID uuid.UUID) error {
	return s.repo.SetPrimaryVPA(ctx, userID, vpaID)
}

// ValidateAddress reports whether an address is well formed and whether
// it is already registered. Lookup services use this before initiating a
// transfer.
func (s *VPAService) ValidateAddress(ctx context.Context, address string) (valid bool, registered bool, err error) {
	if !domain.ValidVPAAddress(address) {
		return false, false, nil
	}
	exists, err := s.repo.VPAAddressExists(ctx, strings.ToLower(address))
	if err != nil {
		return true, false, err
	}
	return true, exists, nil
}
