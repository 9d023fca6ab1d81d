// Package httpapi assembles the HTTP surface: middleware, authentication
// and the route table.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shelfkeeper/internal/apperr"
	"shelfkeeper/internal/auth"
	"shelfkeeper/internal/catalog"
	"shelfkeeper/internal/circulation"
	"shelfkeeper/internal/httpx"
	"shelfkeeper/internal/logging"
	"shelfkeeper/internal/membership"
	"shelfkeeper/internal/notification"
	"shelfkeeper/internal/reporting"
)

// Handlers groups the per-package HTTP handlers.
type Handlers struct {
	Catalog       *catalog.Handler
	Membership    *membership.Handler
	Circulation   *circulation.Handler
	Notifications *notification.Handler
	Reporting     *reporting.Handler
}

// Options configures the router.
type Options struct {
	Logger         logging.Logger
	Verifier       auth.Verifier
	Metrics        http.Handler
	RequestTimeout time.Duration
}

// NewRouter returns the complete HTTP handler.
func NewRouter(h Handlers, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusNotFound, httpx.ErrorBody{Error: "route not found", Kind: apperr.KindNotFound})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	authenticated := auth.Authenticate(opts.Verifier)
	adminOnly := auth.RequireRole(auth.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Membership.HandleRegister)
			r.Post("/login", h.Membership.HandleLogin)
			r.With(authenticated).Get("/profile", h.Reporting.HandleProfile)
			r.With(authenticated).Put("/profile", h.Membership.HandleUpdateProfile)
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/", h.Catalog.HandleList)
			r.Get("/{id}", h.Catalog.HandleGet)
			r.Group(func(r chi.Router) {
				r.Use(authenticated, adminOnly)
				r.Post("/", h.Catalog.HandleCreate)
				r.Put("/{id}", h.Catalog.HandleUpdate)
				r.Delete("/{id}", h.Catalog.HandleDelete)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Post("/reservations", h.Circulation.HandleCreateReservation)
			r.Get("/reservations", h.Circulation.HandleListReservations)
			r.Delete("/reservations/{id}", h.Circulation.HandleCancelReservation)

			r.With(adminOnly).Post("/borrowings", h.Circulation.HandleCreateBorrowing)
			r.Get("/borrowings", h.Circulation.HandleListBorrowings)
			r.With(adminOnly).Post("/borrowings/{id}/return", h.Circulation.HandleReturn)

			r.Get("/notifications", h.Notifications.HandleList)
			r.Post("/notifications/{id}/read", h.Notifications.HandleMarkRead)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticated, adminOnly)
			r.Get("/reports/popular-books", h.Reporting.HandlePopularBooks)
			r.Get("/reports/overdue-books", h.Reporting.HandleOverdueBooks)
			r.Post("/reports/overdue-books", h.Reporting.HandleOverdueBooks)
			r.Get("/reports/user-history/{id}", h.Reporting.HandleUserHistory)
			r.Get("/reservations", h.Reporting.HandleAllReservations)
			r.Get("/books/{id}/events", h.Reporting.HandleBookEvents)
			r.Post("/check-due-dates", h.Circulation.HandleCheckDueDates)
			r.Post("/expire-reservations", h.Circulation.HandleExpireReservations)
			r.Delete("/users/{id}", h.Membership.HandleDeleteUser)
		})
	})

	return r
}

// requestLogger stores a request-scoped logger in the context and logs
// each completed request.
func requestLogger(base logging.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = logging.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			l := base.With("request_id", middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), l)))

			l.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
