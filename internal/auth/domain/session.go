package domain

import "time"

// MaxSessionsPerAccount caps concurrent devices. Creating a session past
// the cap evicts the oldest one.
const MaxSessionsPerAccount = 5

// Session is one signed-in device. It tracks the refresh token that keeps
// it alive and the jti of the access token most recently minted for it.
type Session struct {
	ID         string
	AccountID  string
	DeviceName string

	RefreshTokenID string
	AccessTokenID  string

	CreatedAt  time.Time
	LastSeenAt time.Time
}
