package domain

import "strings"

// MaskAccountNumber hides all but the last four digits of an account
// number, e.g. 1234567890 -> XXXXXX7890. Values of four characters or
// fewer are returned unchanged.
func MaskAccountNumber(accountNumber string) string {
	const visible = 4
	if len(accountNumber) <= visible {
		return accountNumber
	}
	return strings.Repeat("X", len(accountNumber)-visible) + accountNumber[len(accountNumber)-visible:]
}

// MaskEmail hides an email's local part except its first character,
// e.g. john.doe@example.com -> j*******@example.com.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 1 {
		return email
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}
