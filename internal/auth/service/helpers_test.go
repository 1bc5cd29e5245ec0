package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/internal/auth/guard"
	"github.com/lamplight/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/lamplight/gatehouse/pkg/cryptox"
	"github.com/lamplight/gatehouse/pkg/jwtx"
)

const (
	testIssuer   = "test-issuer"
	testPassword = "correct-horse-battery-9"
)

// testClock is a mutable clock shared by every service in a test env, so
// a single Advance moves token expiry, code expiry, and lockouts together.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// captureMailer hands delivered codes to the test instead of logging them.
// Delivery happens on a background goroutine, so codes arrive on a channel.
type captureMailer struct {
	codes chan string
}

func (m *captureMailer) SendCode(_ context.Context, _, _, code string) error {
	select {
	case m.codes <- code:
	default:
	}
	return nil
}

type testEnv struct {
	store  *sqlite.Store
	redis  *miniredis.Miniredis
	guard  *guard.Guard
	keys   *jwtx.KeyManager
	clock  *testClock
	mailer *captureMailer

	credentials *CredentialService
	codes       *SecretCodeService
	totp        *TOTPEngine
	tokens      *TokenService
	signin      *SignInService
	accounts    *AccountService
	sessions    *SessionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	g := guard.New(client)

	clock := newTestClock()

	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:  testIssuer,
		NumKeys: 1,
	})
	require.NoError(t, err)
	keys.Verifier.TimeFunc = clock.Now

	mailer := &captureMailer{codes: make(chan string, 16)}

	env := &testEnv{
		store:  st,
		redis:  mr,
		guard:  g,
		keys:   keys,
		clock:  clock,
		mailer: mailer,
	}

	env.credentials = &CredentialService{Store: st, Now: clock.Now}
	env.codes = &SecretCodeService{Store: st, Guard: g, Mailer: mailer, Now: clock.Now}
	env.totp = &TOTPEngine{Issuer: testIssuer, Now: clock.Now}
	env.tokens = &TokenService{
		KeyManager: keys,
		Store:      st,
		Guard:      g,
		Issuer:     testIssuer,
		Now:        clock.Now,
	}
	env.signin = &SignInService{
		Store:       st,
		Guard:       g,
		Credentials: env.credentials,
		Tokens:      env.tokens,
		Codes:       env.codes,
		TOTP:        env.totp,
		Now:         clock.Now,
	}
	env.accounts = &AccountService{
		Store:       st,
		Codes:       env.codes,
		TOTP:        env.totp,
		Credentials: env.credentials,
		Now:         clock.Now,
	}
	env.sessions = &SessionService{Store: st, Guard: g, Now: clock.Now}

	return env
}

// advance moves the service clock and the Redis TTL clock in lockstep.
func (e *testEnv) advance(d time.Duration) {
	e.clock.Advance(d)
	e.redis.FastForward(d)
}

func (e *testEnv) createAccount(t *testing.T, username, email string) domain.Account {
	t.Helper()

	account, err := e.accounts.Register(context.Background(), username, email, testPassword)
	require.NoError(t, err)
	return account
}

// createVerifiedAccount registers and marks the email verified directly,
// skipping the code round trip that other tests exercise on their own.
func (e *testEnv) createVerifiedAccount(t *testing.T, username, email string) domain.Account {
	t.Helper()

	account := e.createAccount(t, username, email)
	require.NoError(t, e.store.Accounts().MarkEmailVerified(context.Background(), account.ID, e.clock.Now()))

	account, err := e.store.Accounts().GetAccountByID(context.Background(), account.ID)
	require.NoError(t, err)
	return account
}

// lastCode receives the most recently mailed code, waiting out the
// asynchronous delivery goroutine.
func (e *testEnv) lastCode(t *testing.T) string {
	t.Helper()

	var code string
	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-e.mailer.codes:
			code = c
			// Drain in case multiple codes queued; the latest one wins.
			if len(e.mailer.codes) > 0 {
				continue
			}
			return code
		case <-deadline:
			if code != "" {
				return code
			}
			t.Fatal("no code was mailed")
		}
	}
}

// enrollTOTP walks the full enrollment for an already verified account and
// returns the shared secret plus the freshly generated recovery codes.
func (e *testEnv) enrollTOTP(t *testing.T, accountID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	enrollment, err := e.accounts.BeginTOTPEnrollment(ctx, accountID)
	require.NoError(t, err)

	code := e.totpCode(t, enrollment.Secret)
	recovery, err := e.accounts.ConfirmTOTPEnrollment(ctx, accountID, code)
	require.NoError(t, err)

	return enrollment.Secret, recovery
}

func (e *testEnv) totpCode(t *testing.T, secret string) string {
	t.Helper()

	code, err := totp.GenerateCode(secret, e.clock.Now())
	require.NoError(t, err)
	return code
}
