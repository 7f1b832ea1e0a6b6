package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/upistack/upi-service/internal/domain"
	"github.com/upistack/upi-service/internal/store"
)

type vpaFixture struct {
	repo       *store.MemoryRepository
	accounts   *AccountService
	vpas       *VPAService
	userID     uuid.UUID
	accountID  uuid.UUID
	account2ID uuid.UUID
}

func newVPAFixture(t *testing.T) *vpaFixture {
	t.Helper()
	repo := store.NewMemoryRepository()
	accounts := NewAccountService(repo)
	vpas := NewVPAService(repo)
	userID := uuid.New()
	ctx := context.Background()

	first, err := accounts.CreateAccount(ctx, userID, newAccountRequest("12345678"))
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	second, err := accounts.CreateAccount(ctx, userID, newAccountRequest("87654321"))
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	if err := accounts.VerifyAccount(ctx, userID, first.ID); err != nil {
		t.Fatalf("VerifyAccount returned error: %v", err)
	}

	return &vpaFixture{
		repo:       repo,
		accounts:   accounts,
		vpas:       vpas,
		userID:     userID,
		accountID:  first.ID,
		account2ID: second.ID,
	}
}

func TestCreateVPARequiresVerifiedAccount(t *testing.T) {
	f := newVPAFixture(t)
	ctx := context.Background()

	_, err := f.vpas.CreateVPA(ctx, f.userID, domain.CreateVPARequest{
		AccountID: f.account2ID,
		Username:  "asha",
		Handle:    "upi",
	})
	if !errors.Is(err, ErrAccountNotVerified) {
		t.Fatalf("expected ErrAccountNotVerified, got %v", err)
	}

	vpa, err := f.vpas.CreateVPA(ctx, f.userID, domain.CreateVPARequest{
		AccountID: f.accountID,
		Username:  "asha",
		Handle:    "upi",
	})
	if err != nil {
		t.Fatalf("CreateVPA returned error: %v", err)
	}
	if vpa.Address != "asha@upi" {
		t.Fatalf("expected address asha@upi, got %q", vpa.Address)
	}
	if !vpa.Primary {
		t.Fatal("expected first VPA to become primary")
	}
	if !vpa.Active {
		t.Fatal("expected new VPA to be active")
	}
}

func TestCreateVPARejectsBadFormat(t *testing.T) {
	f := newVPAFixture(t)

	tests := []struct {
		name     string
		username string
		handle   string
	}{
		{name: "empty username", username: "", handle: "upi"},
		{name: "empty handle", username: "asha", handle: ""},
		{name: "handle with dash", username: "asha", handle: "ok-bank"},
		{name: "username with space", username: "asha rao", handle: "upi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.vpas.CreateVPA(context.Background(), f.userID, domain.CreateVPARequest{
				AccountID: f.accountID,
				Username:  tt.username,
				Handle:    tt.handle,
			})
			if !errors.Is(err, ErrInvalidAddress) {
				t.Fatalf("expected ErrInvalidAddress, got %v", err)
			}
		})
	}
}

func TestVPAAddressGloballyUnique(t *testing.T) {
	f := newVPAFixture(t)
	ctx := context.Background()

	if _, err := f.vpas.CreateVPA(ctx, f.userID, domain.CreateVPARequest{
		AccountID: f.accountID,
		Username:  "asha",
		Handle:    "upi",
	}); err != nil {
		t.Fatalf("CreateVPA returned error: %v", err)
	}

	// A different user claiming the same address must be rejected.
	otherUser := uuid.New()
	otherAccount, err := f.accounts.CreateAccount(ctx, otherUser, newAccountRequest("99998888"))
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	if err := f.accounts.VerifyAccount(ctx, otherUser, otherAccount.ID); err != nil {
		t.Fatalf("VerifyAccount returned error: %v", err)
	}
	_, err = f.vpas.CreateVPA(ctx, otherUser, domain.CreateVPARequest{
		AccountID: otherAccount.ID,
		Username:  "asha",
		Handle:    "upi",
	})
	if !errors.Is(err, store.ErrAddressTaken) {
		t.Fatalf("expected ErrAddressTaken, got %v", err)
	}
}

func TestDeleteVPARules(t *testing.T) {
	f := newVPAFixture(t)
	ctx := context.Background()

	primary, err := f.vpas.CreateVPA(ctx, f.userID, domain.CreateVPARequest{
		AccountID: f.accountID,
		Username:  "asha",
		Handle:    "upi",
	})
	if err != nil {
		t.Fatalf("CreateVPA returned error: %v", err)
	}
	secondary, err := f.vpas.CreateVPA(ctx, f.userID, domain.CreateVPARequest{
		AccountID: f.accountID,
		Username:  "asha2",
		Handle:    "upi",
	})
	if err != nil {
		t.Fatalf("CreateVPA returned error: %v", err)
	}

	// The primary VPA cannot be deleted while another exists.
	if err := f.vpas.DeleteVPA(ctx, f.userID, primary.ID); !errors.Is(err, store.ErrVPAIsPrimary) {
		t.Fatalf("expected ErrVPAIsPrimary, got %v", err)
	}
	if err := f.vpas.DeleteVPA(ctx, f.userID, secondary.ID); err != nil {
		t.Fatalf("DeleteVPA returned error: %v", err)
	}
	// Now the primary is the sole VPA and may be deleted.
	if err := f.vpas.DeleteVPA(ctx, f.userID, primary.ID); err != nil {
		t.Fatalf("DeleteVPA of sole primary returned error: %v", err)
	}
}

func TestSetPrimaryVPASwap(t *testing.T) {
	f := newVPAFixture(t)
	ctx := context.Background()

	first, _ := f.vpas.CreateVPA(ctx, f.userID, domain.CreateVPARequest{
		AccountID: f.accountID,
		Username:  "asha",
		Handle:    "upi",
	})
	second, _ := f.vpas.CreateVPA(ctx, f.userID, domain.CreateVPARequest{
		AccountID: f.accountID,
		Username:  "asha2",
		Handle:    "upi",
	})

	if err := f.vpas.SetPrimaryVPA(ctx, f.userID, second.ID); err != nil {
		t.Fatalf("SetPrimaryVPA returned error: %v", err)
	}

	vpas, err := f.vpas.ListVPAs(ctx, f.userID)
	if err != nil {
		t.Fatalf("ListVPAs returned error: %v", err)
	}
	primaries := 0
	for _, v := range vpas {
		if v.Primary {
			primaries++
			if v.ID != second.ID {
				t.Fatalf("expected vpa %s to be primary, got %s", second.ID, v.ID)
			}
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary vpa, got %d", primaries)
	}
	_ = first
}

func TestUpdateVPARequiresVerifiedTargetAccount(t *testing.T) {
	f := newVPAFixture(t)
	ctx := context.Background()

	vpa, err := f.vpas.CreateVPA(ctx, f.userID, domain.CreateVPARequest{
		AccountID: f.accountID,
		Username:  "asha",
		Handle:    "upi",
	})
	if err != nil {
		t.Fatalf("CreateVPA returned error: %v", err)
	}

	_, err = f.vpas.UpdateVPA(ctx, f.userID, vpa.ID, domain.UpdateVPARequest{AccountID: f.account2ID})
	if !errors.Is(err, ErrAccountNotVerified) {
		t.Fatalf("expected ErrAccountNotVerified, got %v", err)
	}

	if err := f.accounts.VerifyAccount(ctx, f.userID, f.account2ID); err != nil {
		t.Fatalf("VerifyAccount returned error: %v", err)
	}
	updated, err := f.vpas.UpdateVPA(ctx, f.userID, vpa.ID, domain.UpdateVPARequest{AccountID: f.account2ID})
	if err != nil {
		t.Fatalf("UpdateVPA returned error: %v", err)
	}
	if updated.AccountID != f.account2ID {
		t.Fatalf("expected vpa re-pointed to %s, got %s", f.account2ID, updated.AccountID)
	}
}

func TestUpdateVPARenamesPartsIndependently(t *testing.T) {
	f := newVPAFixture(t)
	ctx := context.Background()

	vpa, err := f.vpas.CreateVPA(ctx, f.userID, domain.CreateVPARequest{
		AccountID: f.accountID,
		Username:  "asha",
		Handle:    "upi",
	})
	if err != nil {
		t.Fatalf("CreateVPA returned error: %v", err)
	}

	// Supplying only the local part keeps the stored handle.
	updated, err := f.vpas.UpdateVPA(ctx, f.userID, vpa.ID, domain.UpdateVPARequest{Username: "asha.rao"})
	if err != nil {
		t.Fatalf("UpdateVPA returned error: %v", err)
	}
	if updated.Address != "asha.rao@upi" {
		t.Fatalf("expected address asha.rao@upi, got %s", updated.Address)
	}

	// Supplying only the handle keeps the stored local part.
	updated, err = f.vpas.UpdateVPA(ctx, f.userID, vpa.ID, domain.UpdateVPARequest{Handle: "okbank"})
	if err != nil {
		t.Fatalf("UpdateVPA returned error: %v", err)
	}
	if updated.Address != "asha.rao@okbank" {
		t.Fatalf("expected address asha.rao@okbank, got %s", updated.Address)
	}

	// An invalid supplied part still rejects the rename.
	if _, err := f.vpas.UpdateVPA(ctx, f.userID, vpa.ID, domain.UpdateVPARequest{Handle: "ok bank"}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestValidateAddress(t *testing.T) {
	f := newVPAFixture(t)
	ctx := context.Background()

	if _, err := f.vpas.CreateVPA(ctx, f.userID, domain.CreateVPARequest{
		AccountID: f.accountID,
		Username:  "asha",
		Handle:    "upi",
	}); err != nil {
		t.Fatalf("CreateVPA returned error: %v", err)
	}

	valid, registered, err := f.vpas.ValidateAddress(ctx, "asha@upi")
	if err != nil {
		t.Fatalf("ValidateAddress returned error: %v", err)
	}
	if !valid || !registered {
		t.Fatalf("expected valid registered address, got valid=%v registered=%v", valid, registered)
	}

	valid, registered, err = f.vpas.ValidateAddress(ctx, "nobody@upi")
	if err != nil {
		t.Fatalf("ValidateAddress returned error: %v", err)
	}
	if !valid || registered {
		t.Fatalf("expected valid unregistered address, got valid=%v registered=%v", valid, registered)
	}

	valid, _, err = f.vpas.ValidateAddress(ctx, "bad@@address")
	if err != nil {
		t.Fatalf("ValidateAddress returned error: %v", err)
	}
	if valid {
		t.Fatal("expected malformed address to be invalid")
	}
}
