package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/guard"
	"github.com/lamplight/gatehouse/internal/auth/service"
	"github.com/lamplight/gatehouse/internal/auth/store"
	"github.com/lamplight/gatehouse/pkg/httpx"
	"github.com/lamplight/gatehouse/pkg/jwtx"
	"github.com/lamplight/gatehouse/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	guard *guard.Guard

	TokenService   *service.TokenService
	SignInService  *service.SignInService
	AccountService *service.AccountService
	SessionService *service.SessionService
}

func NewRouter(
	keys *jwtx.KeySet,
	buildVersion string,
	st store.Store,
	g *guard.Guard,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		guard:        g,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerMFAFlow()
	r.registerSessions()
	r.registerMFAManagement()
	r.registerAccount()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// Public credential endpoints get the strict budget; the Redis guard
	// inside SignIn adds the durable per-IP window on top.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(&RegisterHandler{AccountService: r.AccountService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/signin",
		httpx.Chain(&SignInHandler{SignInService: r.SignInService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(&RefreshHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/signout",
		httpx.Chain(&SignOutHandler{TokenService: r.TokenService},
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/forgot-password",
		httpx.Chain(&ForgotPasswordHandler{AccountService: r.AccountService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/reset-password",
		httpx.Chain(&ResetPasswordHandler{AccountService: r.AccountService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerMFAFlow() {
	// The whole challenge flow authenticates by state token, not by
	// bearer token, so it stays on IP budgets.
	r.Mux.Handle("POST /v1/auth/mfa/select",
		httpx.Chain(&MFASelectHandler{SignInService: r.SignInService},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/mfa/submit",
		httpx.Chain(&MFASubmitHandler{SignInService: r.SignInService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/mfa/resend",
		httpx.Chain(&MFAResendHandler{SignInService: r.SignInService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/mfa/cancel",
		httpx.Chain(&MFACancelHandler{SignInService: r.SignInService},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{SessionService: r.SessionService}

	r.Mux.Handle("GET /v1/sessions",
		httpx.Chain(http.HandlerFunc(h.List),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/sessions/{id}",
		httpx.Chain(http.HandlerFunc(h.Revoke),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/sessions/revoke-others",
		httpx.Chain(http.HandlerFunc(h.RevokeOthers),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerMFAManagement() {
	h := &MFAManageHandler{AccountService: r.AccountService}

	authed := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/mfa/totp/enroll", authed(h.EnrollTOTP))
	r.Mux.Handle("POST /v1/mfa/totp/confirm", authed(h.ConfirmTOTP))
	r.Mux.Handle("POST /v1/mfa/totp/disable", authed(h.DisableTOTP))
	r.Mux.Handle("POST /v1/mfa/email/enable", authed(h.EnableEmailMFA))
	r.Mux.Handle("POST /v1/mfa/email/disable", authed(h.DisableEmailMFA))
	r.Mux.Handle("POST /v1/mfa/recovery-codes/regenerate", authed(h.RegenerateRecoveryCodes))
	r.Mux.Handle("GET /v1/mfa/recovery-codes", authed(h.RemainingRecoveryCodes))
}

func (r *Router) registerAccount() {
	h := &AccountHandler{AccountService: r.AccountService}

	r.Mux.Handle("GET /v1/me",
		httpx.Chain(http.HandlerFunc(h.Me),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("POST /v1/account/verify-email",
		httpx.Chain(http.HandlerFunc(h.VerifyEmail),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/account/verify-email/resend",
		httpx.Chain(http.HandlerFunc(h.RequestVerification),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/account/change-password",
		httpx.Chain(http.HandlerFunc(h.ChangePassword),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/account/signout-everywhere",
		httpx.Chain(http.HandlerFunc(h.SignOutEverywhere),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.guard, r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
