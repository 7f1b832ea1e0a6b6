/**
 * @description
 * This file generates transaction reference codes. A reference is the
 * literal prefix "UPI" followed by 16 uppercase alphanumeric characters
 * drawn from a cryptographically secure source.
 *
 * @dependencies
 * - crypto/rand: Secure random source for the reference suffix.
 */

package app

import (
	"crypto/rand"
	"fmt"
)

const (
	referencePrefix    = "UPI"
	referenceSuffixLen = 16
	referenceAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// maxUnbiasedByte is the largest multiple of the alphabet size that fits
// in a byte. Bytes at or above it are rejected so every alphabet character
// is equally likely.
const maxUnbiasedByte = byte(256 / len(referenceAlphabet) * len(referenceAlphabet))

// NewTransactionReference returns a fresh reference code. Uniqueness is
// enforced at insert time by the store; callers retry on collision.
func NewTransactionReference() (string, error) {
	suffix := make([]byte, 0, referenceSuffixLen)
	buf := make([]byte, referenceSuffixLen)
	for len(suffix) < referenceSuffixLen {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate transaction reference: %w", err)
		}
		for _, b := range buf {
			if b >= maxUnbiasedByte {
				continue
			}
			suffix = append(suffix, referenceAlphabet[int(b)%len(referenceAlphabet)])
			if len(suffix) == referenceSuffixLen {
				break
			}
		}
	}
	return referencePrefix + string(suffix), nil
}
