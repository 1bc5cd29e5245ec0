package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateNumericCode(t *testing.T) {
	t.Run("fixed length all digits", func(t *testing.T) {
		for range 50 {
			code, err := GenerateNumericCode(6)
			require.NoError(t, err)
			require.Len(t, code, 6)
			for _, c := range code {
				require.True(t, c >= '0' && c <= '9', "unexpected character %q", c)
			}
		}
	})

	t.Run("rejects non-positive length", func(t *testing.T) {
		_, err := GenerateNumericCode(0)
		require.Error(t, err)
		_, err = GenerateNumericCode(-3)
		require.Error(t, err)
	})

	t.Run("codes are not constant", func(t *testing.T) {
		seen := map[string]struct{}{}
		for range 20 {
			code, err := GenerateNumericCode(6)
			require.NoError(t, err)
			seen[code] = struct{}{}
		}
		require.Greater(t, len(seen), 1)
	})
}

func TestGenerateRecoveryCode(t *testing.T) {
	code, err := GenerateRecoveryCode()
	require.NoError(t, err)
	require.Len(t, code, 10)

	// No ambiguous characters in the alphabet.
	for _, c := range code {
		require.NotContains(t, "01loLO", string(c))
	}
}

func TestCheckPasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"valid", "correct horse 1", nil},
		{"too short", "abc123", ErrPasswordTooShort},
		{"no digit", "onlyletterspassword", ErrPasswordTooWeak},
		{"no letter", "12345678901234", ErrPasswordTooWeak},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPasswordPolicy(tt.password)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
