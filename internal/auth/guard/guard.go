// Package guard holds the Redis-backed abuse counters that sit in front
// of sign-in: per-IP rate windows, per-challenge MFA attempt counters,
// resend cooldowns, and the small denylists that make stateless tokens
// revocable.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultSignInLimit is the per-IP sign-in budget per window.
	DefaultSignInLimit = 10
	// DefaultSignInWindow is the fixed window for the sign-in budget.
	DefaultSignInWindow = time.Minute

	// DefaultMaxMFAAttempts caps failed submissions per challenge before
	// the whole state token is burned.
	DefaultMaxMFAAttempts = 10

	// DefaultResendCooldown is the minimum gap between emailed codes for
	// the same (owner, purpose).
	DefaultResendCooldown = 2 * time.Minute
)

var (
	ErrRateLimited = errors.New("guard: rate limited")
	ErrUnavailable = errors.New("guard: redis unavailable")
)

// Guard wraps a Redis client with the counters and sets the auth flow
// needs. All keys carry TTLs, so Redis holds no durable state.
type Guard struct {
	redis *redis.Client

	SignInLimit    int
	SignInWindow   time.Duration
	MaxMFAAttempts int
	ResendCooldown time.Duration
}

func New(redisClient *redis.Client) *Guard {
	return &Guard{
		redis:          redisClient,
		SignInLimit:    DefaultSignInLimit,
		SignInWindow:   DefaultSignInWindow,
		MaxMFAAttempts: DefaultMaxMFAAttempts,
		ResendCooldown: DefaultResendCooldown,
	}
}

func signInKey(ip string) string          { return "gh:signin:" + ip }
func mfaAttemptsKey(jti string) string    { return "gh:mfa:" + jti }
func resendKey(owner, purp string) string { return "gh:resend:" + owner + ":" + purp }
func accessDenyKey(jti string) string     { return "gh:deny:" + jti }
func stateDeadKey(jti string) string      { return "gh:dead:" + jti }

// AllowSignIn spends one unit of the caller IP's budget. When the window
// is exhausted it returns ErrRateLimited along with how long the caller
// should wait.
func (g *Guard) AllowSignIn(ctx context.Context, ip string) (time.Duration, error) {
	key := signInKey(ip)

	count, err := g.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := g.redis.Expire(ctx, key, g.SignInWindow).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count > int64(g.SignInLimit) {
		ttl, err := g.redis.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = g.SignInWindow
		}
		return ttl, ErrRateLimited
	}
	return 0, nil
}

// RegisterMFAFailure bumps the failure counter for one MFA challenge and
// returns how many attempts remain. The counter expires with the state
// token, so the jti's TTL is passed in.
func (g *Guard) RegisterMFAFailure(ctx context.Context, stateJTI string, ttl time.Duration) (remaining int, err error) {
	key := mfaAttemptsKey(stateJTI)

	count, err := g.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := g.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	remaining = g.MaxMFAAttempts - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// MFAFailures reads the failure count for a challenge.
func (g *Guard) MFAFailures(ctx context.Context, stateJTI string) (int, error) {
	count, err := g.redis.Get(ctx, mfaAttemptsKey(stateJTI)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

// AllowResend enforces the cooldown between emailed codes. The first
// caller in a window wins; later callers get ErrRateLimited and the time
// left on the cooldown.
func (g *Guard) AllowResend(ctx context.Context, ownerID, purpose string) (time.Duration, error) {
	key := resendKey(ownerID, purpose)

	ok, err := g.redis.SetNX(ctx, key, 1, g.ResendCooldown).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		ttl, err := g.redis.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = g.ResendCooldown
		}
		return ttl, ErrRateLimited
	}
	return 0, nil
}

// DenyAccessToken denylists an access jti for the remainder of its
// lifetime. Used when a session is revoked or evicted.
func (g *Guard) DenyAccessToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := g.redis.Set(ctx, accessDenyKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsAccessTokenDenied reports whether an access jti was denylisted.
func (g *Guard) IsAccessTokenDenied(ctx context.Context, jti string) (bool, error) {
	n, err := g.redis.Exists(ctx, accessDenyKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// InvalidateStateToken marks a state jti dead for the remainder of its
// lifetime. Superseded and cancelled challenges stop working immediately
// even though the JWT itself stays verifiable.
func (g *Guard) InvalidateStateToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := g.redis.Set(ctx, stateDeadKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsStateTokenInvalidated reports whether a state jti was marked dead.
func (g *Guard) IsStateTokenInvalidated(ctx context.Context, jti string) (bool, error) {
	n, err := g.redis.Exists(ctx, stateDeadKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Ping verifies the Redis connection is alive.
func (g *Guard) Ping(ctx context.Context) error {
	if err := g.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
