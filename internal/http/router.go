package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/spotevents/spot/internal/application"
	"github.com/spotevents/spot/internal/ratelimit"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RateLimits groups the per-scope request budgets.
type RateLimits struct {
	Global   RateLimitRule
	Auth     RateLimitRule
	Payments RateLimitRule
}

// DefaultRateLimits returns the production budgets.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Global:   RateLimitRule{Name: "global", Limit: 200, Window: 15 * time.Minute},
		Auth:     RateLimitRule{Name: "auth", Limit: 20, Window: 15 * time.Minute},
		Payments: RateLimitRule{Name: "payments", Limit: 10, Window: time.Minute},
	}
}

// RouterConfig carries the handlers and middleware dependencies NewRouter mounts.
type RouterConfig struct {
	Identity  *IdentityHandler
	Events    *EventHandler
	Tickets   *TicketHandler
	CheckIns  *CheckInHandler
	Payments  *PaymentHandler
	Admin     *AdminHandler
	Organizer *OrganizerHandler

	Verifier   AccessTokenVerifier
	Limiter    ratelimit.Limiter
	RateLimits RateLimits
	Health     Pinger
	Logger     *slog.Logger
}

// NewRouter mounts every route under /api. Nil handlers leave their routes
// unmounted; a nil limiter disables rate limiting.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	limits := cfg.RateLimits
	if limits == (RateLimits{}) {
		limits = DefaultRateLimits()
	}
	limit := func(rule RateLimitRule) func(http.Handler) http.Handler {
		if cfg.Limiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return RateLimit(cfg.Limiter, rule, logger)
	}
	requireAuth := RequireAuth(logger)
	organizers := RequireRole(logger, application.RoleOrganizer, application.RoleAdmin)
	admins := RequireRole(logger, application.RoleAdmin)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))

	r.Get("/healthz", healthHandler(cfg.Health, logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(limit(limits.Global))
		if cfg.Verifier != nil {
			r.Use(Authenticate(cfg.Verifier, logger))
		}

		if h := cfg.Identity; h != nil {
			r.Route("/users", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(limit(limits.Auth))
					r.Post("/register", h.Register)
					r.Post("/verify-otp", h.VerifyOTP)
					r.Post("/resend-otp", h.ResendOTP)
					r.Post("/login", h.Login)
					r.Post("/refresh", h.Refresh)
					r.Post("/forgot-password", h.ForgotPassword)
					r.Post("/reset-password", h.ResetPassword)
					r.Get("/auth/{provider}", h.OAuthStart)
					r.Get("/auth/{provider}/callback", h.OAuthCallback)
				})
				r.Post("/logout", h.Logout)
				r.Group(func(r chi.Router) {
					r.Use(requireAuth)
					r.Get("/profile", h.Profile)
					r.Put("/update", h.UpdateProfile)
					r.Post("/become-organizer", h.BecomeOrganizer)
					r.Post("/bookmarks/{eventId}", h.ToggleBookmark)
				})
			})
		}

		if h := cfg.Events; h != nil {
			r.Route("/events", func(r chi.Router) {
				r.Get("/", h.List)
				r.Get("/{id}", h.Get)
				r.Group(func(r chi.Router) {
					r.Use(organizers)
					r.Post("/", h.Create)
					r.Put("/{id}", h.Update)
					r.Delete("/{id}", h.Delete)
				})
			})
		}

		if h := cfg.Tickets; h != nil {
			r.Route("/tickets", func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", h.ListMine)
				r.Get("/{id}", h.Get)
				r.Get("/{id}/qr", h.QR)
			})
		}

		if h := cfg.CheckIns; h != nil {
			r.With(organizers).Post("/checkin", h.CheckIn)
		}

		if h := cfg.Payments; h != nil {
			r.Route("/payments", func(r chi.Router) {
				r.Use(limit(limits.Payments))
				r.With(requireAuth).Post("/create-order", h.CreateOrder)
				r.Post("/verify", h.Webhook)
			})
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(admins)
			if h := cfg.Admin; h != nil {
				r.Get("/users", h.ListUsers)
				r.Post("/users/{id}/premium", h.GrantPremium)
				r.Get("/payments", h.ListPayments)
				r.Post("/payouts", h.CreatePayout)
			}
			if h := cfg.Events; h != nil {
				r.Get("/events", h.ListAll)
				r.Delete("/events/{id}", h.Delete)
			}
		})

		r.Route("/organizer", func(r chi.Router) {
			r.Use(organizers)
			if h := cfg.Events; h != nil {
				r.Get("/events", h.ListOwned)
			}
			if h := cfg.Organizer; h != nil {
				r.Get("/events/{id}/stats", h.Stats)
				r.Get("/events/{id}/live", h.Live)
			}
		})
	})

	return r
}

type healthResponse struct {
	Status string `json:"status"`
}

func healthHandler(pinger Pinger, logger *slog.Logger) http.HandlerFunc {
	responder := newResponder(logger)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if pinger != nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := pinger.Ping(pingCtx); err != nil {
				responder.loggerFor(ctx).WarnContext(ctx, "health check failed", "error", err)
				responder.writeJSON(ctx, w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		responder.writeJSON(ctx, w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
