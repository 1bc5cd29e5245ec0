package cryptox

import (
	"errors"
	"unicode"
)

// Password policy limits. The upper bound exists because argon2 input length
// is attacker-controlled work.
const (
	MinPasswordLength = 10
	MaxPasswordLength = 128
)

var (
	ErrPasswordTooShort = errors.New("cryptox: password below minimum length")
	ErrPasswordTooLong  = errors.New("cryptox: password above maximum length")
	ErrPasswordTooWeak  = errors.New("cryptox: password needs at least one letter and one digit")
)

// CheckPasswordPolicy validates a candidate password against the service
// policy: length bounds plus at least one letter and one digit.
func CheckPasswordPolicy(password string) error {
	runes := []rune(password)
	if len(runes) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(runes) > MaxPasswordLength {
		return ErrPasswordTooLong
	}

	var hasLetter, hasDigit bool
	for _, r := range runes {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrPasswordTooWeak
	}
	return nil
}
