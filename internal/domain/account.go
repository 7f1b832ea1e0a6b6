/**
 * @description
 * This file defines the bank account domain model and its request/response
 * DTOs. An account is owned by exactly one user, carries the balance that
 * transfers move, and stores the UPI PIN only as a one-way hash.
 *
 * @notes
 * - Monetary values use decimal.Decimal rather than floats so that
 *   debit/credit arithmetic is exact.
 * - The raw account number is stored as-is; masking happens only when an
 *   account is converted to its response form.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates the supported bank account kinds.
type AccountType string

const (
	AccountTypeSavings AccountType = "SAVINGS"
	AccountTypeCurrent AccountType = "CURRENT"
	AccountTypeCredit  AccountType = "CREDIT"
)

// ValidAccountType reports whether t is one of the supported kinds.
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountTypeSavings, AccountTypeCurrent, AccountTypeCredit:
		return true
	}
	return false
}

// Account represents a linked bank account. Maps to the `accounts` table.
type Account struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	BankName          string          `json:"bank_name"`
	AccountHolderName string          `json:"account_holder_name"`
	AccountNumber     string          `json:"account_number"`
	IFSCCode          string          `json:"ifsc_code"`
	AccountType       AccountType     `json:"account_type"`
	Balance           decimal.Decimal `json:"balance"`
	PINHash           string          `json:"-"`
	Primary           bool            `json:"primary"`
	Verified          bool            `json:"verified"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CreateAccountRequest is the DTO for linking a new bank account.
type CreateAccountRequest struct {
	BankName          string      `json:"bank_name"`
	AccountHolderName string      `json:"account_holder_name"`
	AccountNumber     string      `json:"account_number"`
	IFSCCode          string      `json:"ifsc_code"`
	AccountType       AccountType `json:"account_type"`
	UPIPIN            string      `json:"upi_pin"`
	Primary           bool        `json:"primary"`
}

// UpdateAccountRequest is the DTO for updating mutable account fields.
// The account number and IFSC code of a linked account never change; a
// blank UPIPIN leaves the stored hash untouched.
type UpdateAccountRequest struct {
	BankName          string      `json:"bank_name"`
	AccountHolderName string      `json:"account_holder_name"`
	AccountType       AccountType `json:"account_type"`
	UPIPIN            string      `json:"upi_pin"`
	Primary           bool        `json:"primary"`
}

// AccountResponse is the external representation of an account. The
// account number is masked and the PIN hash is never included.
type AccountResponse struct {
	ID                uuid.UUID       `json:"id"`
	BankName          string          `json:"bank_name"`
	AccountHolderName string          `json:"account_holder_name"`
	AccountNumber     string          `json:"account_number"`
	IFSCCode          string          `json:"ifsc_code"`
	AccountType       AccountType     `json:"account_type"`
	Balance           decimal.Decimal `json:"balance"`
	Primary           bool            `json:"primary"`
	Verified          bool            `json:"verified"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Response converts an account to its external form, masking the account
// number down to the last four digits.
func (a *Account) Response() AccountResponse {
	return AccountResponse{
		ID:                a.ID,
		BankName:          a.BankName,
		AccountHolderName: a.AccountHolderName,
		AccountNumber:     MaskAccountNumber(a.AccountNumber),
		IFSCCode:          a.IFSCCode,
		AccountType:       a.AccountType,
		Balance:           a.Balance,
		Primary:           a.Primary,
		Verified:          a.Verified,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}
