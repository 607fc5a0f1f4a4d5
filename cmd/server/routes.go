package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// routes sets up the HTTP router of the scene server.
func (app *sceneApplication) routes() http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(app.metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", app.healthHandler)
	r.Handle("/metrics", app.metrics.Handler())

	// --- Popup scripts ---
	r.Get("/popups/{space}/{file}", app.popupScriptHandler)

	// --- Scene API ---
	r.Route("/api", func(r chi.Router) {
		r.With(app.limiter.Middleware).Post("/click", app.clickHandler)
		r.Get("/objects", app.objectsHandler)
		r.Post("/objects/{name}/edit", app.editHandler)
		r.Post("/objects/{name}/upload", app.uploadHandler)
		r.Post("/objects/{name}/reload", app.reloadHandler)
	})

	return r
}
