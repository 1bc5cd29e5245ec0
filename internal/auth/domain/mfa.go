package domain

// MFAMethod is a closed set of second factors.
type MFAMethod string

const (
	MFAMethodTOTP         MFAMethod = "totp"
	MFAMethodEmail        MFAMethod = "email"
	MFAMethodRecoveryCode MFAMethod = "recovery_code"
)

// Valid reports whether m is one of the known methods.
func (m MFAMethod) Valid() bool {
	switch m {
	case MFAMethodTOTP, MFAMethodEmail, MFAMethodRecoveryCode:
		return true
	}
	return false
}

func (m MFAMethod) String() string { return string(m) }

// MFAChallenge is returned when credentials checked out but a second
// factor still stands between the caller and a token pair.
type MFAChallenge struct {
	MFARequired bool     `json:"mfa_required"` // always true
	StateToken  string   `json:"state_token"`
	Methods     []string `json:"methods"`
}

// TOTPEnrollment is handed back when TOTP enrollment begins. The secret
// is shown exactly once; after confirmation only the server keeps it.
type TOTPEnrollment struct {
	Secret  string `json:"secret"`      // base32
	URL     string `json:"otpauth_url"` // otpauth:// for QR rendering
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}
