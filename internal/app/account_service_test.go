package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/upistack/upi-service/internal/domain"
	"github.com/upistack/upi-service/internal/store"
)

func newAccountRequest(number string) domain.CreateAccountRequest {
	return domain.CreateAccountRequest{
		BankName:          "State Bank",
		AccountHolderName: "Asha Rao",
		AccountNumber:     number,
		IFSCCode:          "SBIN0001234",
		AccountType:       domain.AccountTypeSavings,
		UPIPIN:            "4321",
	}
}

func TestCreateAccountSeedsBalanceAndPrimary(t *testing.T) {
	svc := NewAccountService(store.NewMemoryRepository())
	userID := uuid.New()

	first, err := svc.CreateAccount(context.Background(), userID, newAccountRequest("12345678"))
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	if !first.Balance.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("expected opening balance 10000, got %s", first.Balance)
	}
	if !first.Primary {
		t.Fatal("expected first account to become primary")
	}
	if first.Verified {
		t.Fatal("expected new account to start unverified")
	}

	second, err := svc.CreateAccount(context.Background(), userID, newAccountRequest("87654321"))
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	if second.Primary {
		t.Fatal("expected second account to not be primary by default")
	}
}

func TestCreateAccountValidation(t *testing.T) {
	svc := NewAccountService(store.NewMemoryRepository())
	userID := uuid.New()

	tests := []struct {
		name    string
		mutate  func(*domain.CreateAccountRequest)
		wantErr error
	}{
		{
			name:    "account number too short",
			mutate:  func(r *domain.CreateAccountRequest) { r.AccountNumber = "1234567" },
			wantErr: ErrInvalidAccount,
		},
		{
			name:    "account number with letters",
			mutate:  func(r *domain.CreateAccountRequest) { r.AccountNumber = "12345678AB" },
			wantErr: ErrInvalidAccount,
		},
		{
			name:    "ifsc fifth char not zero",
			mutate:  func(r *domain.CreateAccountRequest) { r.IFSCCode = "SBIN1001234" },
			wantErr: ErrInvalidAccount,
		},
		{
			name:    "unknown account type",
			mutate:  func(r *domain.CreateAccountRequest) { r.AccountType = "WALLET" },
			wantErr: ErrInvalidAccount,
		},
		{
			name:    "pin too short",
			mutate:  func(r *domain.CreateAccountRequest) { r.UPIPIN = "123" },
			wantErr: ErrInvalidPINFormat,
		},
		{
			name:    "pin with letters",
			mutate:  func(r *domain.CreateAccountRequest) { r.UPIPIN = "12a4" },
			wantErr: ErrInvalidPINFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newAccountRequest("12345678")
			tt.mutate(&req)
			if _, err := svc.CreateAccount(context.Background(), userID, req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateAccountRejectsDuplicateBankAccount(t *testing.T) {
	repo := store.NewMemoryRepository()
	svc := NewAccountService(repo)

	if _, err := svc.CreateAccount(context.Background(), uuid.New(), newAccountRequest("12345678")); err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	_, err := svc.CreateAccount(context.Background(), uuid.New(), newAccountRequest("12345678"))
	if !errors.Is(err, store.ErrDuplicateBankAccount) {
		t.Fatalf("expected ErrDuplicateBankAccount, got %v", err)
	}
}

func TestSetPrimaryAccountSwap(t *testing.T) {
	repo := store.NewMemoryRepository()
	svc := NewAccountService(repo)
	userID := uuid.New()
	ctx := context.Background()

	first, _ := svc.CreateAccount(ctx, userID, newAccountRequest("12345678"))
	second, _ := svc.CreateAccount(ctx, userID, newAccountRequest("87654321"))

	if err := svc.SetPrimaryAccount(ctx, userID, second.ID); err != nil {
		t.Fatalf("SetPrimaryAccount returned error: %v", err)
	}

	accounts, err := svc.ListAccounts(ctx, userID)
	if err != nil {
		t.Fatalf("ListAccounts returned error: %v", err)
	}
	primaries := 0
	for _, a := range accounts {
		if a.Primary {
			primaries++
			if a.ID != second.ID {
				t.Fatalf("expected account %s to be primary, got %s", second.ID, a.ID)
			}
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary account, got %d", primaries)
	}
	_ = first
}

func TestSetPrimaryAccountConcurrentSwapsKeepOnePrimary(t *testing.T) {
	repo := store.NewMemoryRepository()
	svc := NewAccountService(repo)
	userID := uuid.New()
	ctx := context.Background()

	a, _ := svc.CreateAccount(ctx, userID, newAccountRequest("11112222"))
	b, _ := svc.CreateAccount(ctx, userID, newAccountRequest("33334444"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		target := a.ID
		if i%2 == 1 {
			target = b.ID
		}
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if err := svc.SetPrimaryAccount(ctx, userID, id); err != nil {
				t.Errorf("SetPrimaryAccount returned error: %v", err)
			}
		}(target)
	}
	wg.Wait()

	accounts, err := svc.ListAccounts(ctx, userID)
	if err != nil {
		t.Fatalf("ListAccounts returned error: %v", err)
	}
	primaries := 0
	for _, acc := range accounts {
		if acc.Primary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary account after concurrent swaps, got %d", primaries)
	}
}

func TestCreateAccountConcurrentPrimariesKeepOnePrimary(t *testing.T) {
	repo := store.NewMemoryRepository()
	svc := NewAccountService(repo)
	userID := uuid.New()
	ctx := context.Background()

	// Every create asks to be primary, including the user's first account.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		req := newAccountRequest(fmt.Sprintf("1111000%d", i))
		req.Primary = true
		wg.Add(1)
		go func(req domain.CreateAccountRequest) {
			defer wg.Done()
			if _, err := svc.CreateAccount(ctx, userID, req); err != nil {
				t.Errorf("CreateAccount returned error: %v", err)
			}
		}(req)
	}
	wg.Wait()

	accounts, err := svc.ListAccounts(ctx, userID)
	if err != nil {
		t.Fatalf("ListAccounts returned error: %v", err)
	}
	primaries := 0
	for _, acc := range accounts {
		if acc.Primary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary account after concurrent creates, got %d", primaries)
	}
}

func TestDeleteAccountRules(t *testing.T) {
	repo := store.NewMemoryRepository()
	svc := NewAccountService(repo)
	vpaSvc := NewVPAService(repo)
	userID := uuid.New()
	ctx := context.Background()

	primary, _ := svc.CreateAccount(ctx, userID, newAccountRequest("12345678"))
	secondary, _ := svc.CreateAccount(ctx, userID, newAccountRequest("87654321"))

	if err := svc.DeleteAccount(ctx, userID, primary.ID); !errors.Is(err, store.ErrAccountIsPrimary) {
		t.Fatalf("expected ErrAccountIsPrimary, got %v", err)
	}

	if err := svc.VerifyAccount(ctx, userID, secondary.ID); err != nil {
		t.Fatalf("VerifyAccount returned error: %v", err)
	}
	if _, err := vpaSvc.CreateVPA(ctx, userID, domain.CreateVPARequest{
		AccountID: secondary.ID,
		Username:  "asha",
		Handle:    "upi",
	}); err != nil {
		t.Fatalf("CreateVPA returned error: %v", err)
	}
	if err := svc.DeleteAccount(ctx, userID, secondary.ID); !errors.Is(err, store.ErrAccountHasVPAs) {
		t.Fatalf("expected ErrAccountHasVPAs, got %v", err)
	}
}

func TestGetBalanceRequiresCorrectPIN(t *testing.T) {
	svc := NewAccountService(store.NewMemoryRepository())
	userID := uuid.New()
	ctx := context.Background()

	account, _ := svc.CreateAccount(ctx, userID, newAccountRequest("12345678"))

	if _, err := svc.GetBalance(ctx, userID, account.ID, "9999"); !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("expected ErrInvalidPIN, got %v", err)
	}

	balance, err := svc.GetBalance(ctx, userID, account.ID, "4321")
	if err != nil {
		t.Fatalf("GetBalance returned error: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("expected balance 10000, got %s", balance)
	}
}

func TestUpdateAccountKeepsPINWhenBlank(t *testing.T) {
	svc := NewAccountService(store.NewMemoryRepository())
	userID := uuid.New()
	ctx := context.Background()

	account, _ := svc.CreateAccount(ctx, userID, newAccountRequest("12345678"))

	if _, err := svc.UpdateAccount(ctx, userID, account.ID, domain.UpdateAccountRequest{BankName: "Union Bank"}); err != nil {
		t.Fatalf("UpdateAccount returned error: %v", err)
	}

	valid, err := svc.ValidatePIN(ctx, userID, account.ID, "4321")
	if err != nil {
		t.Fatalf("ValidatePIN returned error: %v", err)
	}
	if !valid {
		t.Fatal("expected original PIN to remain valid after update without PIN change")
	}

	updated, err := svc.GetAccount(ctx, userID, account.ID)
	if err != nil {
		t.Fatalf("GetAccount returned error: %v", err)
	}
	if updated.BankName != "Union Bank" {
		t.Fatalf("expected bank name update, got %q", updated.BankName)
	}
}

func TestAccountResponseMasksNumber(t *testing.T) {
	svc := NewAccountService(store.NewMemoryRepository())
	userID := uuid.New()

	account, err := svc.CreateAccount(context.Background(), userID, newAccountRequest("1234567890"))
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	resp := account.Response()
	if resp.AccountNumber != "XXXXXX7890" {
		t.Fatalf("expected masked account number XXXXXX7890, got %q", resp.AccountNumber)
	}
}
