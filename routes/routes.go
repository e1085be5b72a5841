package routes

import (
	"net/http"

	"kpitracker/handlers"
	"kpitracker/middlewares"
	repository "kpitracker/repositories"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SetupRoutes mounts the KPI API. Every /api route requires a bearer token;
// admin-only routes are rejected for other roles before the body is read.
func SetupRoutes(kpiHandler *handlers.KPIHandler, userHandler *handlers.UserHandler, verifier middlewares.TokenVerifier, store repository.Pinger, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewares.RequestID)
	r.Use(middlewares.RequestLogger(log))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", handlers.Health(store, log))

	r.Route("/api", func(r chi.Router) {
		r.Use(middlewares.Authenticate(verifier, log))

		r.Post("/GetKPIs", kpiHandler.GetKPIs)
		r.Post("/UpdateKpiSubmission", kpiHandler.UpdateKPISubmission)
		r.Post("/UpsertUserProfile", userHandler.UpsertUserProfile)

		r.Group(func(r chi.Router) {
			r.Use(middlewares.RequireAdmin)

			r.Post("/AssignKPIsToUser", kpiHandler.AssignKPIsToUser)
			r.Post("/UpsertMasterKPI", kpiHandler.UpsertMasterKPI)
			r.Post("/GetPeriodSummary", kpiHandler.GetPeriodSummary)
			r.Post("/SetUserRole", userHandler.SetUserRole)
			r.Get("/GetUsers", userHandler.GetUsers)
		})
	})

	return r
}
