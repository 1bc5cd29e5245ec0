package service

import (
	"context"
	"log/slog"
)

// Mailer delivers one-time codes. The auth flow never blocks on the mail
// channel; delivery failures are logged and the code can be resent.
type Mailer interface {
	SendCode(ctx context.Context, to, purpose, code string) error
}

// LogMailer writes codes to the log instead of sending mail. Dev and test
// environments use it so no SMTP setup is needed.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) SendCode(ctx context.Context, to, purpose, code string) error {
	m.Logger.Info("mail code",
		slog.String("to", to),
		slog.String("purpose", purpose),
		slog.String("code", code),
	)
	return nil
}
