/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/schedules/*   Payment schedules and payment edits
  /api/approvals/*   Pending review queue
  /api/payouts       Deposit settlement
  /api/expenses/*    Maintenance cost splits
  /api/admin/*       Sweep, migration and penalty operations

SECURITY NOTE:
  No authentication middleware. Actor ids are trusted as resolved by the
  surrounding application; the role boundary lives in the directory package.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Schedule routes
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", h.ListSchedules)
			r.Post("/", h.CreateSchedule)
			r.Get("/batch", h.GetScheduleBatch)
			r.Get("/{leaseID}", h.GetSchedule)
			r.Post("/{leaseID}/payments/{monthKey}", h.SubmitEdit)
			r.Delete("/{leaseID}/payments/{monthKey}", h.RemovePayment)
		})

		// Approval routes
		r.Route("/approvals", func(r chi.Router) {
			r.Get("/", h.ListPendingApprovals)
			r.Post("/{id}/review", h.ReviewApproval)
		})

		// Payout and expense routes
		r.Post("/payouts", h.SettleDeposit)
		r.Post("/expenses/split", h.SplitExpense)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/sweep", h.RunSweep)
			r.Get("/migration/preview", h.PreviewMigration)
			r.Post("/migration", h.ApplyMigration)
			r.Post("/penalties", h.RunAccrual)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
