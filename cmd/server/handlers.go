package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"showroom-popup-builder/internal/dispatch"
	"showroom-popup-builder/internal/generator"
	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

type clickRequest struct {
	Object string `json:"object"`
}

// Bind implements render.Binder.
func (c *clickRequest) Bind(r *http.Request) error {
	c.Object = strings.TrimSpace(c.Object)
	if c.Object == "" {
		return errors.New("object is required")
	}
	return nil
}

// commandsResponse carries what the browser must do after an interaction.
type commandsResponse struct {
	Result   *dispatch.Result   `json:"result,omitempty"`
	Commands []dispatch.Command `json:"commands"`
}

// objectEntry describes one configured scene object.
type objectEntry struct {
	Name   string             `json:"name"`
	Action model.ObjectAction `json:"action"`
	Loaded bool               `json:"loaded"`
}

// recorder collects the commands of one request. Without reload_plv the
// dispatcher sees a UI that cannot reload textures.
func (app *sceneApplication) recorder() (dispatch.UI, *dispatch.Recorder) {
	rec := &dispatch.Recorder{ScriptURL: app.scriptURL}
	if !app.cfg.Server.ReloadPLV {
		return viewOnly{rec}, rec
	}
	return rec, rec
}

type viewOnly struct{ dispatch.UI }

// scriptURL is where the browser fetches the popup script of objectID.
func (app *sceneApplication) scriptURL(objectID string) string {
	u := fmt.Sprintf("/popups/%s/%s", url.PathEscape(app.popups.Space()), url.PathEscape(objectID+generator.ScriptSuffix))
	if h, ok := app.popups.Get(objectID); ok && h.Version > 0 {
		u += fmt.Sprintf("?v=%d", h.Version)
	}
	return u
}

func (app *sceneApplication) healthHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status": "ok",
		"space":  app.popups.Space(),
		"loaded": len(app.popups.Loaded()),
	})
}

// popupScriptHandler serves /popups/{space}/{object}-popup.js from the
// loaded popups, loading it on first request.
func (app *sceneApplication) popupScriptHandler(w http.ResponseWriter, r *http.Request) {
	space := chi.URLParam(r, "space")
	file := chi.URLParam(r, "file")
	object, ok := strings.CutSuffix(file, generator.ScriptSuffix)
	if !ok || object == "" || space != app.popups.Space() {
		http.NotFound(w, r)
		return
	}
	object = dispatch.Normalize(object)

	h, err := app.popups.Load(r.Context(), object)
	if err != nil {
		app.logger.Debug("Popup script not available", "space", space, "object", object, "error", err)
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.Script)
}

// clickHandler dispatches one click on a scene object.
func (app *sceneApplication) clickHandler(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := render.Bind(r, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}

	ui, rec := app.recorder()
	res := app.dispatcher.Click(storage.RequestContext(r), req.Object, app.oracle, ui)
	render.JSON(w, r, commandsResponse{Result: &res, Commands: rec.Commands()})
}

func (app *sceneApplication) objectsHandler(w http.ResponseWriter, r *http.Request) {
	names := app.table.Names()
	out := make([]objectEntry, 0, len(names))
	for _, n := range names {
		a, _ := app.table.Lookup(n)
		out = append(out, objectEntry{Name: n, Action: a, Loaded: app.popups.IsLoaded(n)})
	}
	render.JSON(w, r, out)
}

// editHandler answers the admin "edit" button with an open_editor command.
func (app *sceneApplication) editHandler(w http.ResponseWriter, r *http.Request) {
	ui, rec := app.recorder()
	err := app.dispatcher.RequestEdit(storage.RequestContext(r), chi.URLParam(r, "name"), app.oracle, ui)
	app.writeCommands(w, r, rec, err)
}

// uploadHandler answers the admin "upload" button with an open_upload command.
func (app *sceneApplication) uploadHandler(w http.ResponseWriter, r *http.Request) {
	ui, rec := app.recorder()
	err := app.dispatcher.RequestUpload(storage.RequestContext(r), chi.URLParam(r, "name"), app.oracle, ui)
	app.writeCommands(w, r, rec, err)
}

// reloadHandler re-fetches a popup after an editor saved it elsewhere.
func (app *sceneApplication) reloadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := storage.RequestContext(r)
	name := dispatch.Normalize(chi.URLParam(r, "name"))
	access, err := app.oracle.CheckObjectAccess(ctx, name)
	if err != nil || !access.CanEdit {
		app.writeCommands(w, r, nil, fmt.Errorf("%w: reload %s", dispatch.ErrDenied, name))
		return
	}
	if err := app.popups.Reload(ctx, model.ObjectTarget{ID: name}); err != nil {
		app.logger.Warn("Popup reload failed", "object", name, "error", err)
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}
	rec := &dispatch.Recorder{ScriptURL: app.scriptURL}
	rec.ShowPopup(name)
	render.JSON(w, r, commandsResponse{Commands: rec.Commands()})
}

func (app *sceneApplication) writeCommands(w http.ResponseWriter, r *http.Request, rec *dispatch.Recorder, err error) {
	switch {
	case errors.Is(err, dispatch.ErrDenied):
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, errorResponse{Error: err.Error()})
	case errors.Is(err, dispatch.ErrUnknownObject):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{Error: err.Error()})
	case err != nil:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: err.Error()})
	default:
		render.JSON(w, r, commandsResponse{Commands: rec.Commands()})
	}
}
