/**
 * @description
 * This file contains the business logic for bank account management. The
 * `AccountService` validates account details, hashes UPI PINs with bcrypt,
 * seeds new accounts with the demo opening balance, and delegates the
 * single-primary bookkeeping to the repository so swaps stay atomic.
 *
 * @dependencies
 * - context, fmt, log, regexp: Standard Go libraries.
 * - github.com/google/uuid: Account identifiers.
 * - github.com/shopspring/decimal: Exact balance arithmetic.
 * - golang.org/x/crypto/bcrypt: PIN hashing and verification.
 * - internal/domain, internal/store: Domain models and data access.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"regexp"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/upistack/upi-service/internal/domain"
	"github.com/upistack/upi-service/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var (
	accountNumberPattern = regexp.MustCompile(`^[0-9]{8,20}$`)
	ifscPattern          = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	pinPattern           = regexp.MustCompile(`^[0-9]{4,6}$`)
)

// openingBalance is the demo balance credited to every new account.
var openingBalance = decimal.NewFromInt(10000)

// AccountService provides the business logic for bank accounts.
type AccountService struct {
	repo store.Repository
}

// NewAccountService creates a new account service instance.
func NewAccountService(repo store.Repository) *AccountService {
	return &AccountService{repo: repo}
}

// CreateAccount links a new bank account for the user. The first account
// a user links becomes primary regardless of the request flag.
func (s *AccountService) CreateAccount(ctx context.Context, userID uuid.UUID, req domain.CreateAccountRequest) (*domain.Account, error) {
	if err := validateAccountDetails(req.AccountNumber, req.IFSCCode, req.AccountType); err != nil {
		return nil, err
	}
	if !pinPattern.MatchString(req.UPIPIN) {
		return nil, ErrInvalidPINFormat
	}

	pinHash, err := bcrypt.GenerateFromPassword([]byte(req.UPIPIN), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash upi pin: %w", err)
	}

	account := &domain.Account{
		ID:                uuid.New(),
		UserID:            userID,
		BankName:          req.BankName,
		AccountHolderName: req.AccountHolderName,
		AccountNumber:     req.AccountNumber,
		IFSCCode:          req.IFSCCode,
		AccountType:       req.AccountType,
		Balance:           openingBalance,
		PINHash:           string(pinHash),
		Verified:          false,
	}

	if err := s.repo.CreateAccount(ctx, account, req.Primary); err != nil {
		log.Printf("level=error component=account msg=\"create failed\" user_id=%s err=%q", userID, err)
		return nil, err
	}
	log.Printf("level=info component=account msg=\"account linked\" user_id=%s account_id=%s primary=%v", userID, account.ID, account.Primary)
	return account, nil
}

// ListAccounts returns all accounts linked by the user.
func (s *AccountService) ListAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	return s.repo.FindAccountsByUser(ctx, userID)
}

// GetAccount returns one account owned by the user.
func (s *AccountService) GetAccount(ctx context.Context, userID, accountID uuid.UUID) (*domain.Account, error) {
	return s.repo.FindAccountByUserAndID(ctx, userID, accountID)
}

// UpdateAccount changes mutable details of an account. Account number and
// IFSC are immutable after linking; a blank UPI PIN leaves the current
// PIN in place.
func (s *AccountService) UpdateAccount(ctx context.Context, userID, accountID uuid.UUID, req domain.UpdateAccountRequest) (*domain.Account, error) {
	account, err := s.repo.FindAccountByUserAndID(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	if req.BankName != "" {
		account.BankName = req.BankName
	}
	if req.AccountHolderName != "" {
		account.AccountHolderName = req.AccountHolderName
	}
	if req.AccountType != "" {
		if !domain.ValidAccountType(req.AccountType) {
			return nil, ErrInvalidAccount
		}
		account.AccountType = req.AccountType
	}
	if req.UPIPIN != "" {
		if !pinPattern.MatchString(req.UPIPIN) {
			return nil, ErrInvalidPINFormat
		}
		pinHash, err := bcrypt.GenerateFromPassword([]byte(req.UPIPIN), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash upi pin: %w", err)
		}
		account.PINHash = string(pinHash)
	}

	if err := s.repo.UpdateAccount(ctx, account, req.Primary); err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount unlinks an account. The repository rejects deleting the
// primary account or one that still has VPAs bound to it.
func (s *AccountService) DeleteAccount(ctx context.Context, userID, accountID uuid.UUID) error {
	if err := s.repo.DeleteAccount(ctx, userID, accountID); err != nil {
		return err
	}
	log.Printf("level=info component=account msg=\"account unlinked\" user_id=%s account_id=%s", userID, accountID)
	return nil
}

// SetPrimaryAccount makes the given account the user's primary one.
func (s *AccountService) SetPrimaryAccount(ctx context.Context, userID, accountID uuid.UUID) error {
	return s.repo.SetPrimaryAccount(ctx, userID, accountID)
}

// GetBalance returns the current balance of an account after verifying
// the caller's UPI PIN.
func (s *AccountService) GetBalance(ctx context.Context, userID, accountID uuid.UUID, pin string) (decimal.Decimal, error) {
	account, err := s.repo.FindAccountByUserAndID(ctx, userID, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PINHash), []byte(pin)) != nil {
		return decimal.Zero, ErrInvalidPIN
	}
	return account.Balance, nil
}

// ValidatePIN checks a UPI PIN against the account's stored hash.
func (s *AccountService) ValidatePIN(ctx context.Context, userID, accountID uuid.UUID, pin string) (bool, error) {
	account, err := s.repo.FindAccountByUserAndID(ctx, userID, accountID)
	if err != nil {
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(account.PINHash), []byte(pin)) == nil, nil
}

// VerifyAccount marks an account as verified, enabling VPA registration
// against it.
func (s *AccountService) VerifyAccount(ctx context.Context, userID, accountID uuid.UUID) error {
	if err := s.repo.MarkAccountVerified(ctx, userID, accountID); err != nil {
		return err
	}
	log.Printf("level=info component=account msg=\"account verified\" user_id=%s account_id=%s", userID, accountID)
	return nil
}

func validateAccountDetails(accountNumber, ifsc string, accountType domain.AccountType) error {
	if !accountNumberPattern.MatchString(accountNumber) {
		return ErrInvalidAccount
	}
	if !ifscPattern.MatchString(ifsc) {
		return ErrInvalidAccount
	}
	if !domain.ValidAccountType(accountType) {
		return ErrInvalidAccount
	}
	return nil
}
