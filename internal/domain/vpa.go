/**
 * @description
 * This file defines the virtual payment address (VPA) domain model. A VPA
 * is the human-readable handle money is addressed to, of the form
 * `local@domain`, bound to exactly one verified bank account. Addresses
 * are unique across the whole system, not per user.
 */

package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	vpaAddressPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9]+$`)
	vpaLocalPattern   = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	vpaDomainPattern  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// VPA represents a virtual payment address. Maps to the `vpas` table.
type VPA struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	AccountID uuid.UUID `json:"account_id"`
	Address   string    `json:"address"`
	Primary   bool      `json:"primary"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateVPARequest is the DTO for registering a new VPA. The address is
// computed as Username + "@" + Handle.
type CreateVPARequest struct {
	AccountID uuid.UUID `json:"account_id"`
	Username  string    `json:"username"`
	Handle    string    `json:"handle"`
	Primary   bool      `json:"primary"`
}

// UpdateVPARequest is the DTO for re-pointing or renaming a VPA. Zero
// values leave the corresponding field unchanged.
type UpdateVPARequest struct {
	AccountID uuid.UUID `json:"account_id"`
	Username  string    `json:"username"`
	Handle    string    `json:"handle"`
	Primary   bool      `json:"primary"`
}

// JoinVPAAddress builds a full address from its parts.
func JoinVPAAddress(username, handle string) string {
	return username + "@" + handle
}

// SplitVPAAddress breaks a full address into its local and domain parts.
func SplitVPAAddress(address string) (username, handle string) {
	username, handle, _ = strings.Cut(address, "@")
	return username, handle
}

// ValidVPAAddress reports whether address matches the `local@domain`
// format: local of alphanumerics, dots, underscores or hyphens, domain of
// alphanumerics only.
func ValidVPAAddress(address string) bool {
	return vpaAddressPattern.MatchString(address)
}

// ValidVPAParts validates the local and domain parts independently, for
// requests that supply them separately.
func ValidVPAParts(username, handle string) bool {
	return vpaLocalPattern.MatchString(username) && vpaDomainPattern.MatchString(handle)
}
