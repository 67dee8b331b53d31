package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/studentbulle/internal/app"
	"github.com/shrimpsizemoose/studentbulle/internal/apperrors"
	"github.com/shrimpsizemoose/studentbulle/internal/models"
)

func NewRouter(service *app.Service) http.Handler {
	authHandler := NewAuthHandler(service)
	studentHandler := NewStudentHandler(service)
	adminHandler := NewAdminHandler(service, authHandler)

	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apperrors.NotFound("route %s", r.URL.Path))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := service.Store.Ping(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(LoadSession(service))

		r.With(httprate.LimitByIP(service.Config.Server.LoginRateLimit, time.Minute)).
			Post("/auth/login", authHandler.HandleLogin)
		r.With(CSRFGuard).Post("/auth/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(service, models.RoleUser))
			r.Use(CSRFGuard)

			r.Get("/auth/me", authHandler.HandleMe)

			r.Get("/students", studentHandler.HandleList)
			r.Post("/students", studentHandler.HandleCreate)
			r.Get("/students/{studentID}", studentHandler.HandleGet)
			r.Patch("/students/{studentID}", studentHandler.HandleUpdate)
			r.Delete("/students/{studentID}", studentHandler.HandleDelete)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(service, models.RoleAdmin))
			r.Use(CSRFGuard)

			r.Post("/auth/register", authHandler.HandleRegister)
			r.Post("/admin/reinitialize", adminHandler.HandleReinitialize)
		})
	})

	return r
}
