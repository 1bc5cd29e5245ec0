package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateNumericCode returns a fixed-length string of decimal digits with
// uniform distribution, suitable for email verification and MFA codes.
// Leading zeros are preserved ("042137" is a valid 6-digit code).
func GenerateNumericCode(digits int) (string, error) {
	if digits <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", digits)
	}

	code := make([]byte, digits)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random code: %w", err)
		}
		code[i] = byte('0' + n.Int64())
	}
	return string(code), nil
}

// GenerateRecoveryCode returns a short, human-typable code from an unambiguous
// lowercase alphabet (no 0/o, 1/l). 10 characters give ~46 bits of entropy,
// which is plenty for a single-use credential that is also rate limited.
func GenerateRecoveryCode() (string, error) {
	const charset = "abcdefghjkmnpqrstuvwxyz23456789"
	const length = 10

	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate recovery code: %w", err)
		}
		code[i] = charset[n.Int64()]
	}
	return string(code), nil
}
