package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/user"
)

// Service is the slice of *authcore.Service the router calls.
type Service interface {
	Register(ctx context.Context, email, password, displayName string) (*authcore.AuthResult, error)
	Login(ctx context.Context, email, password string) (*authcore.AuthResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*authcore.RefreshResult, error)
	Logout(ctx context.Context, refreshToken string)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	ValidateAccessToken(ctx context.Context, token string) (authcore.Identity, bool)
	GetProfile(ctx context.Context, userID string) (user.User, error)
	UpdateProfile(ctx context.Context, userID string, upd authcore.ProfileUpdate) (user.User, error)
	GetSessions(ctx context.Context, userID string) ([]session.Session, error)
	RevokeSession(ctx context.Context, userID, sessionID string) (bool, error)
	RevokeAllSessions(ctx context.Context, userID string) (int, error)
}

// CookieConfig shapes the refresh-token cookie.
type CookieConfig struct {
	Name string
	Path string
	// Secure should be true behind TLS.
	Secure bool
	// MaxAge mirrors the session horizon.
	MaxAge time.Duration
}

// Options configures [NewRouter].
type Options struct {
	Logger *slog.Logger
	Cookie CookieConfig

	// Limiter guards login, register and refresh. Nil disables limiting.
	Limiter Limiter

	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler

	// TrustProxy enables chi's RealIP so X-Forwarded-For and X-Real-IP
	// select the client address.
	TrustProxy bool

	// MaxBodyBytes caps JSON request bodies. Zero selects 64 KiB.
	MaxBodyBytes int64
}

func (o *Options) applyDefaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Cookie.Name == "" {
		o.Cookie.Name = "refresh_token"
	}
	if o.Cookie.Path == "" {
		o.Cookie.Path = "/auth"
	}
	if o.Cookie.MaxAge <= 0 {
		o.Cookie.MaxAge = 7 * 24 * time.Hour
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 64 << 10
	}
}

type api struct {
	svc     Service
	logger  *slog.Logger
	cookie  CookieConfig
	maxBody int64
}

// NewRouter returns the HTTP surface of svc.
//
// Middleware order: RequestID, RealIP (optional), Recoverer, client context.
// Credential endpoints add the per-IP limiter; /me routes require a bearer
// access token.
func NewRouter(svc Service, opts Options) http.Handler {
	opts.applyDefaults()
	a := &api{svc: svc, logger: opts.Logger, cookie: opts.Cookie, maxBody: opts.MaxBodyBytes}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(withClientContext)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if opts.Limiter != nil {
				r.Use(RateLimit(opts.Limiter, opts.Logger))
			}
			r.Post("/register", a.register)
			r.Post("/login", a.login)
			r.Post("/refresh", a.refresh)
		})
		r.Post("/logout", a.logout)
		r.With(middleware.RequireAccess(svc)).Post("/password", a.changePassword)
	})

	r.Route("/me", func(r chi.Router) {
		r.Use(middleware.RequireAccess(svc))
		r.Get("/", a.getProfile)
		r.Patch("/", a.updateProfile)
		r.Get("/sessions", a.listSessions)
		r.Delete("/sessions", a.revokeAllSessions)
		r.Delete("/sessions/{id}", a.revokeSession)
	})

	return r
}
