package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/internal/auth/guard"
	"github.com/lamplight/gatehouse/internal/auth/store"
	"github.com/lamplight/gatehouse/pkg/jwtx"
	"github.com/lamplight/gatehouse/pkg/slogx"
)

// SessionService lists and revokes device sessions. Revoking kills the
// session's refresh token and denylists its current access token, so the
// device is out within one request, not one token lifetime.
type SessionService struct {
	Store store.Store
	Guard *guard.Guard

	AccessTTL time.Duration

	// Now is the clock for revocation timestamps. Defaults to time.Now.
	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SessionService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

// List returns the account's sessions, oldest first.
func (s *SessionService) List(ctx context.Context, accountID string) ([]domain.Session, error) {
	return s.Store.Sessions().ListSessionsByAccount(ctx, accountID)
}

// Revoke tears down one of the account's sessions. Revoking a session the
// account doesn't own is indistinguishable from revoking a missing one.
func (s *SessionService) Revoke(ctx context.Context, accountID, sessionID string) error {
	now := s.now()
	l := slogx.FromContext(ctx)

	session, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	if session.AccountID != accountID {
		return ErrSessionNotFound
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().ConsumeRefreshToken(ctx, session.RefreshTokenID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return tx.Sessions().DeleteSession(ctx, session.ID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	if err := s.Guard.DenyAccessToken(ctx, session.AccessTokenID, s.accessTTL()); err != nil {
		l.Error("failed to denylist access token", slog.Any("error", err), slog.String("session_id", session.ID))
	}

	l.Info("session revoked",
		slog.String("account_id", accountID),
		slog.String("session_id", session.ID),
	)
	return nil
}

// RevokeOthers tears down every session except the caller's own, which
// is recognized by the access token id the session row is bound to.
func (s *SessionService) RevokeOthers(ctx context.Context, accountID, accessTokenID string) error {
	sessions, err := s.Store.Sessions().ListSessionsByAccount(ctx, accountID)
	if err != nil {
		return err
	}

	for _, session := range sessions {
		if session.AccessTokenID == accessTokenID {
			continue
		}
		if err := s.Revoke(ctx, accountID, session.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return err
		}
	}
	return nil
}
