package authsdk

import (
	"context"
	"net/http"
)

// Challenge is a sign-in waiting for its second factor. Select commits to
// one of Methods, Submit finishes it, Cancel abandons it. The state token
// inside is rotated by Select, so a Challenge is not safe for concurrent
// use.
type Challenge struct {
	client *SDKClient

	StateToken string
	Methods    []string
}

// Select commits the challenge to one method. For the email method this
// also triggers the first code mail.
func (ch *Challenge) Select(ctx context.Context, method string) error {
	resp, err := ch.client.doJSON(ctx, http.MethodPost, "/v1/auth/mfa/select", map[string]string{
		"state_token": ch.StateToken,
		"method":      method,
	})
	if err != nil {
		return err
	}

	var selected selectResponse
	if err := decodeJSON(resp, &selected, http.StatusOK); err != nil {
		return err
	}

	ch.StateToken = selected.StateToken
	return nil
}

// Submit presents the second-factor code. On success the challenge is
// finished and the returned Session is ready to use.
func (ch *Challenge) Submit(ctx context.Context, method, code, deviceName string) (*Session, error) {
	resp, err := ch.client.doJSON(ctx, http.MethodPost, "/v1/auth/mfa/submit", map[string]string{
		"state_token": ch.StateToken,
		"method":      method,
		"code":        code,
		"device_name": deviceName,
	})
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(ch.client, tokens), nil
}

// ResendEmailCode reissues the emailed code. The service enforces a
// cooldown between sends.
func (ch *Challenge) ResendEmailCode(ctx context.Context) error {
	resp, err := ch.client.doJSON(ctx, http.MethodPost, "/v1/auth/mfa/resend", map[string]string{
		"state_token": ch.StateToken,
	})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Cancel abandons the challenge. The state token is dead afterwards and
// sign-in starts over from credentials.
func (ch *Challenge) Cancel(ctx context.Context) error {
	resp, err := ch.client.doJSON(ctx, http.MethodPost, "/v1/auth/mfa/cancel", map[string]string{
		"state_token": ch.StateToken,
	})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
