package service

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/lamplight/gatehouse/internal/auth/domain"
)

// TOTPEngine generates and checks RFC 6238 codes. Validation accepts one
// step of clock skew either side, nothing more.
type TOTPEngine struct {
	Issuer string

	// Now is the clock used for validation. Defaults to time.Now.
	Now func() time.Time
}

func (e *TOTPEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Generate mints a fresh secret for an account. The caller stores the
// secret as pending; it only becomes active after the first valid code.
func (e *TOTPEngine) Generate(accountName string) (domain.TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.Issuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TOTPEnrollment{}, err
	}

	return domain.TOTPEnrollment{
		Secret:  key.Secret(),
		URL:     key.URL(),
		Issuer:  e.Issuer,
		Account: accountName,
	}, nil
}

// Validate checks a submitted code against the secret at the engine's
// clock, tolerating one 30s step of skew.
func (e *TOTPEngine) Validate(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, e.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
