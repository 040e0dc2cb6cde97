package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/render-api/internal/api"
	apiMiddleware "github.com/phrazzld/render-api/internal/api/middleware"
	"github.com/phrazzld/render-api/internal/api/shared"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)
	r.Use(apiMiddleware.CredentialMiddleware)

	generationHandler := api.NewGenerationHandler(app.service, app.logger)
	taskHandler := api.NewTaskHandler(app.service, app.logger)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/images/generations", generationHandler.GenerateImage)
		r.Post("/images/edits", generationHandler.EditImage)
		r.Post("/videos/generations", generationHandler.GenerateVideo)

		r.Get("/tasks", taskHandler.ListTasks)
		r.Get("/tasks/{taskID}", taskHandler.GetTask)
		r.Post("/tasks/{taskID}/cancel", taskHandler.CancelTask)
	})

	// Health check endpoint, reports which backends this instance runs on.
	r.Get("/healthz", app.handleHealthz)

	return r
}

type healthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	RateLimit string `json:"rate_limit"`
}

func (app *application) handleHealthz(w http.ResponseWriter, r *http.Request) {
	health := healthResponse{
		Status:    "ok",
		Store:     "memory",
		RateLimit: "local",
	}
	if app.db != nil {
		health.Store = "postgres"
	}
	if app.redis != nil {
		health.RateLimit = "distributed"
	}
	shared.RespondWithJSON(w, r, http.StatusOK, health)
}
