package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/internal/auth/guard"
	"github.com/lamplight/gatehouse/internal/auth/store"
	"github.com/lamplight/gatehouse/pkg/cryptox"
	"github.com/lamplight/gatehouse/pkg/idx"
	"github.com/lamplight/gatehouse/pkg/jwtx"
	"github.com/lamplight/gatehouse/pkg/slogx"
)

// TokenService mints and validates the three token kinds and owns the
// session registry they hang off.
type TokenService struct {
	KeyManager *jwtx.KeyManager
	Store      store.Store
	Guard      *guard.Guard

	Issuer   string
	Audience []string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	StateTTL   time.Duration

	// Now is the clock for issuance and expiry. Defaults to time.Now.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

func (s *TokenService) stateTTL() time.Duration {
	if s.StateTTL > 0 {
		return s.StateTTL
	}
	return jwtx.DefaultStateTokenTTL
}

// IssuePair completes an authentication: it creates a session for the
// device, mints the access/refresh pair bound to it, and evicts the
// oldest session when the account is over the cap.
func (s *TokenService) IssuePair(ctx context.Context, account domain.Account, deviceName string) (*domain.TokenPair, error) {
	now := s.now()
	l := slogx.FromContext(ctx)

	sessionID := idx.NewAt(now).String()
	refreshID := idx.NewAt(now).String()
	accessJTI := jwtx.NewJTI()

	signer := s.KeyManager.GetSigner()

	accessToken, err := signer.Sign(jwtx.NewAccessClaims(
		account.ID, accessJTI, account.Role, account.TokenVersion,
		s.accessTTL(), s.Issuer, s.Audience, now,
	))
	if err != nil {
		return nil, err
	}

	refreshToken, err := signer.Sign(jwtx.NewRefreshClaims(
		account.ID, refreshID, account.TokenVersion,
		s.refreshTTL(), s.Issuer, s.Audience, now,
	))
	if err != nil {
		return nil, err
	}

	var evictedAccessJTIs []string

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		count, err := tx.Sessions().CountSessionsByAccount(ctx, account.ID)
		if err != nil {
			return err
		}

		// Make room before inserting so the cap holds.
		for count >= domain.MaxSessionsPerAccount {
			oldest, err := tx.Sessions().OldestSessionByAccount(ctx, account.ID)
			if err != nil {
				return err
			}
			if err := tx.RefreshTokens().ConsumeRefreshToken(ctx, oldest.RefreshTokenID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if err := tx.Sessions().DeleteSession(ctx, oldest.ID); err != nil {
				return err
			}
			evictedAccessJTIs = append(evictedAccessJTIs, oldest.AccessTokenID)
			count--
		}

		if err := tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:        refreshID,
			AccountID: account.ID,
			SessionID: sessionID,
			TokenHash: cryptox.FingerprintToken(refreshToken),
			ExpiresAt: now.Add(s.refreshTTL()),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		return tx.Sessions().CreateSession(ctx, domain.Session{
			ID:             sessionID,
			AccountID:      account.ID,
			DeviceName:     deviceName,
			RefreshTokenID: refreshID,
			AccessTokenID:  accessJTI,
			CreatedAt:      now,
			LastSeenAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	// Evicted sessions lose their access tokens immediately, not at expiry.
	for _, jti := range evictedAccessJTIs {
		if err := s.Guard.DenyAccessToken(ctx, jti, s.accessTTL()); err != nil {
			l.Error("failed to denylist evicted access token", slog.Any("error", err))
		}
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.accessTTL(),
	}, nil
}

// Refresh rotates a refresh token: the presented token is consumed and a
// fresh pair minted, atomically. Presenting a consumed token fails, so
// two racing refreshes of the same token produce exactly one winner.
func (s *TokenService) Refresh(ctx context.Context, rawRefresh string) (*domain.TokenPair, error) {
	now := s.now()

	claims, err := s.KeyManager.Verifier.Verify(rawRefresh)
	if err != nil {
		return nil, ErrInvalidRefresh
	}
	if err := claims.ValidateTokenType(jwtx.TokenTypeRefresh); err != nil {
		return nil, ErrInvalidRefresh
	}

	record, err := s.Store.RefreshTokens().GetRefreshTokenByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if record.TokenHash != cryptox.FingerprintToken(rawRefresh) {
		return nil, ErrInvalidRefresh
	}
	if record.Revoked() || record.Expired(now) {
		return nil, ErrInvalidRefresh
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if claims.TokenVersion != account.TokenVersion {
		return nil, ErrInvalidRefresh
	}

	newRefreshID := idx.NewAt(now).String()
	accessJTI := jwtx.NewJTI()
	signer := s.KeyManager.GetSigner()

	accessToken, err := signer.Sign(jwtx.NewAccessClaims(
		account.ID, accessJTI, account.Role, account.TokenVersion,
		s.accessTTL(), s.Issuer, s.Audience, now,
	))
	if err != nil {
		return nil, err
	}

	newRefreshToken, err := signer.Sign(jwtx.NewRefreshClaims(
		account.ID, newRefreshID, account.TokenVersion,
		s.refreshTTL(), s.Issuer, s.Audience, now,
	))
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// The conditional consume is the whole concurrency story: only
		// the transaction that flips revoked_at proceeds.
		if err := tx.RefreshTokens().ConsumeRefreshToken(ctx, record.ID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		if err := tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:        newRefreshID,
			AccountID: account.ID,
			SessionID: record.SessionID,
			TokenHash: cryptox.FingerprintToken(newRefreshToken),
			ExpiresAt: now.Add(s.refreshTTL()),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if err := tx.Sessions().UpdateSessionTokens(ctx, record.SessionID, newRefreshID, accessJTI, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Session was revoked out from under the token.
				return ErrInvalidRefresh
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.accessTTL(),
	}, nil
}

// SignOut tears down the session named by a refresh token. The caller's
// identity must match the token's; the session's current access token is
// denylisted so the device is out immediately.
func (s *TokenService) SignOut(ctx context.Context, accountID, rawRefresh string) error {
	now := s.now()
	l := slogx.FromContext(ctx)

	claims, err := s.KeyManager.Verifier.Verify(rawRefresh)
	if err != nil {
		return ErrInvalidRefresh
	}
	if err := claims.ValidateTokenType(jwtx.TokenTypeRefresh); err != nil {
		return ErrInvalidRefresh
	}
	if claims.Subject != accountID {
		return ErrInvalidRefresh
	}

	record, err := s.Store.RefreshTokens().GetRefreshTokenByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidRefresh
		}
		return err
	}
	if record.AccountID != accountID || record.TokenHash != cryptox.FingerprintToken(rawRefresh) {
		return ErrInvalidRefresh
	}

	var accessJTI string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().ConsumeRefreshToken(ctx, record.ID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		session, err := tx.Sessions().GetSessionByID(ctx, record.SessionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		accessJTI = session.AccessTokenID
		return tx.Sessions().DeleteSession(ctx, session.ID)
	})
	if err != nil {
		return err
	}

	if accessJTI != "" {
		if err := s.Guard.DenyAccessToken(ctx, accessJTI, s.accessTTL()); err != nil {
			l.Error("failed to denylist access token on signout", slog.Any("error", err))
		}
	}

	l.Info("signed out", slog.String("account_id", accountID))
	return nil
}

// ValidateAccessToken checks signature, type, the denylist, and that the
// token's version still matches the account. Every failure collapses to
// ErrInvalidAccessToken so callers can't probe which check tripped.
func (s *TokenService) ValidateAccessToken(ctx context.Context, raw string) (jwtx.Claims, error) {
	claims, err := s.KeyManager.Verifier.Verify(raw)
	if err != nil {
		return jwtx.Claims{}, ErrInvalidAccessToken
	}
	if err := claims.ValidateTokenType(jwtx.TokenTypeAccess); err != nil {
		return jwtx.Claims{}, ErrInvalidAccessToken
	}

	denied, err := s.Guard.IsAccessTokenDenied(ctx, claims.ID)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if denied {
		return jwtx.Claims{}, ErrInvalidAccessToken
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return jwtx.Claims{}, ErrInvalidAccessToken
		}
		return jwtx.Claims{}, err
	}
	if claims.TokenVersion != account.TokenVersion {
		return jwtx.Claims{}, ErrInvalidAccessToken
	}

	return claims, nil
}

// IssueStateToken mints the token that carries a partial sign-in between
// requests. It grants nothing beyond the step its purpose names.
func (s *TokenService) IssueStateToken(ctx context.Context, accountID, purpose, pendingMethod string) (string, jwtx.Claims, error) {
	now := s.now()

	claims := jwtx.NewStateClaims(accountID, "", purpose, pendingMethod,
		s.stateTTL(), s.Issuer, s.Audience, now)

	token, err := s.KeyManager.GetSigner().Sign(claims)
	if err != nil {
		return "", jwtx.Claims{}, err
	}
	return token, claims, nil
}

// CheckStateToken validates a state token for the expected purpose. Pass
// an empty purpose to accept any pending step (cancel does this).
func (s *TokenService) CheckStateToken(ctx context.Context, raw, purpose string) (jwtx.Claims, error) {
	claims, err := s.KeyManager.Verifier.Verify(raw)
	if err != nil {
		return jwtx.Claims{}, ErrInvalidStateToken
	}
	if err := claims.ValidateTokenType(jwtx.TokenTypeState); err != nil {
		return jwtx.Claims{}, ErrInvalidStateToken
	}
	if purpose != "" && claims.Purpose != purpose {
		return jwtx.Claims{}, ErrInvalidStateToken
	}

	dead, err := s.Guard.IsStateTokenInvalidated(ctx, claims.ID)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if dead {
		return jwtx.Claims{}, ErrInvalidStateToken
	}

	return claims, nil
}

// InvalidateStateToken kills a state token for the rest of its lifetime.
// Superseding, completing, or cancelling a challenge all come through here.
func (s *TokenService) InvalidateStateToken(ctx context.Context, claims jwtx.Claims) error {
	ttl := time.Duration(0)
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.now())
	}
	return s.Guard.InvalidateStateToken(ctx, claims.ID, ttl)
}

// StateTokenRemaining is how much lifetime a state token has left.
func (s *TokenService) StateTokenRemaining(claims jwtx.Claims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Time.Sub(s.now())
}
