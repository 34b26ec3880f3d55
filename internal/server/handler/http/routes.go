package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/middleware"
)

// Handlers groups the API handlers mounted by NewRouter.
type Handlers struct {
	Identity  *IdentityHandler
	Activity  *ActivityHandler
	Volunteer *VolunteerHandler
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter constructs the HTTP handler of the PomeloX API.
//
// Routes:
//
//	GET  /health
//	GET  /metrics
//	POST /api/identity/signed    → Identity.IssueSigned
//	POST /api/identity/hash      → Identity.IssueHash
//	POST /api/identity/user      → Identity.IssueUserCode
//	POST /api/identity/verify    → Identity.Verify
//	POST /api/identity/revoke    → Identity.Revoke
//	GET  /api/scans              → Identity.Scans
//	POST /api/activity/decode    → Activity.Decode
//	POST /api/activity/scan      → Activity.Scan
//	GET  /api/permissions        → Permissions
//	POST /api/volunteer/checkin  → Volunteer.CheckIn
//	POST /api/volunteer/checkout → Volunteer.CheckOut
//	GET  /api/volunteer/status   → Volunteer.Status
//
// Middleware chain (applied in order):
//  1. AllowContentType("application/json") rejects non-JSON bodies
//  2. WithRequestLogging(logger)
//  3. Instrument records Prometheus request metrics
//  4. limiter, when not nil, limits requests per client IP
//  5. BearerAuth on /api
func NewRouter(h Handlers, logger *zap.Logger, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.Instrument)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Handler)
		}
		r.Use(middleware.BearerAuth)

		r.Route("/identity", func(r chi.Router) {
			r.Post("/signed", h.Identity.IssueSigned)
			r.Post("/hash", h.Identity.IssueHash)
			r.Post("/user", h.Identity.IssueUserCode)
			r.Post("/verify", h.Identity.Verify)
			r.Post("/revoke", h.Identity.Revoke)
		})
		r.Get("/scans", h.Identity.Scans)

		r.Post("/activity/decode", h.Activity.Decode)
		r.Post("/activity/scan", h.Activity.Scan)

		r.Get("/permissions", Permissions)

		r.Route("/volunteer", func(r chi.Router) {
			r.Post("/checkin", h.Volunteer.CheckIn)
			r.Post("/checkout", h.Volunteer.CheckOut)
			r.Get("/status", h.Volunteer.Status)
		})
	})

	return r
}
