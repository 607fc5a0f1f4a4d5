package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/justinas/nosurf"

	"showroom-popup-builder/internal/templating"
)

// routes sets up the HTTP router for the admin application.
func (app *adminApplication) routes() http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(app.metrics.Middleware)
	r.Use(middleware.Timeout(60 * time.Second))

	// --- Static files ---
	r.Handle("/static/*", http.StripPrefix("/static/", templating.Static()))
	r.Handle("/metrics", app.metrics.Handler())

	// --- Pages ---
	r.Get("/", app.dashboardHandler)
	r.Get("/admin/editor", app.editorPageHandler)

	// --- Editor session ---
	r.Get("/admin/editor/view", app.editorViewHandler)
	r.Post("/admin/editor/open", app.editorOpenHandler)
	r.Post("/admin/editor/field", app.editorFieldHandler)
	r.Post("/admin/editor/type", app.editorTypeHandler)
	r.Post("/admin/editor/list/add", app.editorListAddHandler)
	r.Post("/admin/editor/list/remove", app.editorListRemoveHandler)
	r.Post("/admin/editor/gallery/select", app.editorGallerySelectHandler)
	r.Post("/admin/editor/save", app.editorSaveHandler)
	r.Post("/admin/editor/close", app.editorCloseHandler)

	// --- Catalog ---
	r.Post("/admin/popups/purge", app.catalogPurgeHandler)
	r.Post("/admin/popups/{space}/{object}/publish", app.catalogPublishHandler)
	r.Post("/admin/popups/{space}/{object}/delete", app.catalogDeleteHandler)

	// --- API ---
	r.Get("/api/admin/templates", app.templatesAPIHandler)
	r.Get("/api/admin/templates/{type}/defaults", app.templateDefaultsAPIHandler)

	return app.noSurf(r)
}

// noSurf adds CSRF protection to every state-changing request. Forms send
// the token as csrf_token, editor.js as the X-CSRF-Token header.
func (app *adminApplication) noSurf(next http.Handler) http.Handler {
	h := nosurf.New(next)
	h.SetBaseCookie(http.Cookie{
		Path:     "/",
		HttpOnly: true,
		Secure:   app.cfg.Admin.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	h.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.logger.Warn("CSRF check failed", "path", r.URL.Path, "reason", nosurf.Reason(r))
		app.showMessage(w, "error", "Your session expired, reload the page.")
		w.Header().Set("HX-Reswap", "none")
		http.Error(w, "Forbidden - CSRF token invalid", http.StatusForbidden)
	}))
	return h
}
