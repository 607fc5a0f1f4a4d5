package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/justinas/nosurf"
	"github.com/spf13/cast"

	"showroom-popup-builder/internal/catalog"
	"showroom-popup-builder/internal/editor"
	"showroom-popup-builder/internal/markup"
	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/storage"
)

// DashboardPageData holds all data needed for the dashboard template.
type DashboardPageData struct {
	Space          string
	CSRFToken      string
	CatalogEnabled bool
	Entries        []catalog.Entry
	Archived       []model.ObjectTarget
	Templates      []model.TemplateDescriptor
	Error          string
}

// EditorPageData holds the editor page: the open form and the current panel.
type EditorPageData struct {
	Space string
	View  editor.View
}

// updateResponse tells editor.js which regions to replace after an edit.
type updateResponse struct {
	Form    string  `json:"form"`
	Section string  `json:"section,omitempty"`
	HTML    string  `json:"html,omitempty"`
	Preview *string `json:"preview,omitempty"`
	Dirty   bool    `json:"dirty"`
}

// showMessage sets the HX-Trigger header read by editor.js to show a toast.
func (app *adminApplication) showMessage(w http.ResponseWriter, level, message string) {
	payload, err := json.Marshal(map[string]any{
		"showMessage": map[string]string{"message": message, "type": level},
	})
	if err != nil {
		return
	}
	w.Header().Set("HX-Trigger", string(payload))
}

// fail reports message without replacing anything on the page.
func (app *adminApplication) fail(w http.ResponseWriter, message string) {
	app.showMessage(w, "error", message)
	w.Header().Set("HX-Reswap", "none")
	w.WriteHeader(http.StatusOK)
}

// controller returns the editor of the calling browser, issuing a session
// cookie on first use.
func (app *adminApplication) controller(w http.ResponseWriter, r *http.Request) *editor.Controller {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	newID, ctrl := app.editors.Controller(id)
	if newID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    newID,
			Path:     "/",
			HttpOnly: true,
			Secure:   app.cfg.Admin.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return ctrl
}

// dashboardHandler serves the main admin dashboard page.
func (app *adminApplication) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	data := app.newTemplateData(r, "dashboard")
	data["Page"] = app.dashboardPage(r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := app.engine.Page(w, "dashboard.html", data); err != nil {
		app.logger.Error("Error executing dashboard template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (app *adminApplication) dashboardPage(r *http.Request) DashboardPageData {
	page := DashboardPageData{
		Space:          r.URL.Query().Get("space"),
		CSRFToken:      nosurf.Token(r),
		CatalogEnabled: true,
		Templates:      app.registry.List(),
	}
	entries, err := app.catalog.List(r.Context(), page.Space)
	switch {
	case errors.Is(err, catalog.ErrUnsupported):
		page.CatalogEnabled = false
	case err != nil:
		app.logger.Error("Failed to list popups", "error", err)
		page.Error = "Failed to load the popup list."
	default:
		page.Entries = entries
	}
	if archived, err := app.catalog.Archived(); err == nil {
		page.Archived = archived
	}
	return page
}

// editorPageHandler serves the editor page. ?space=&object= (the link the
// scene opens for an admin) starts a session when none is open.
func (app *adminApplication) editorPageHandler(w http.ResponseWriter, r *http.Request) {
	ctrl := app.controller(w, r)
	q := r.URL.Query()
	if object := strings.TrimSpace(q.Get("object")); object != "" && !ctrl.IsOpen() {
		target := app.targetFrom(q.Get("space"), object, q.Get("zone"), q.Get("shader"), q.Get("format"))
		if _, err := ctrl.Open(storage.RequestContext(r), target); err != nil {
			app.logger.Warn("Editor open from link failed", "object", object, "error", err)
		}
	}

	data := app.newTemplateData(r, "editor")
	data["Page"] = EditorPageData{Space: app.cfg.Popups.Space, View: ctrl.Render()}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := app.engine.Page(w, "editor.html", data); err != nil {
		app.logger.Error("Error executing editor template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// editorViewHandler re-renders the whole editor panel.
func (app *adminApplication) editorViewHandler(w http.ResponseWriter, r *http.Request) {
	app.renderPanel(w, app.controller(w, r))
}

func (app *adminApplication) renderPanel(w http.ResponseWriter, ctrl *editor.Controller) {
	html, err := app.engine.PartialString("editor-panel", ctrl.Render())
	if err != nil {
		app.logger.Error("Error executing editor panel", "error", err)
		app.fail(w, "Internal Server Error - UI component missing")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (app *adminApplication) targetFrom(space, object, zone, shader, format string) model.ObjectTarget {
	space = strings.TrimSpace(space)
	if space == "" {
		space = app.cfg.Popups.Space
	}
	return model.ObjectTarget{
		ID:         strings.TrimSpace(object),
		SpaceSlug:  space,
		ZoneSlug:   strings.TrimSpace(zone),
		ShaderName: strings.TrimSpace(shader),
		Format:     strings.TrimSpace(format),
	}
}

// editorOpenHandler opens the object posted by the open form and sends the
// browser to the editor page.
func (app *adminApplication) editorOpenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	target := app.targetFrom(r.PostForm.Get("space"), r.PostForm.Get("object"), r.PostForm.Get("zone"), r.PostForm.Get("shader"), r.PostForm.Get("format"))
	if target.ID == "" {
		http.Error(w, "Bad Request - Missing object name", http.StatusBadRequest)
		return
	}

	ctrl := app.controller(w, r)
	opened, err := ctrl.Open(storage.RequestContext(r), target)
	switch {
	case err != nil:
		app.logger.Warn("Editor open failed", "object", target.ID, "error", err)
	case !opened:
		app.logger.Info("Editor already open, ignoring open request", "object", target.ID)
	}
	http.Redirect(w, r, "/admin/editor", http.StatusSeeOther)
}

// editorFieldHandler applies one field edit.
func (app *adminApplication) editorFieldHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.fail(w, "Bad Request - Could not parse form")
		return
	}
	ctrl := app.controller(w, r)
	upd, err := ctrl.Edit(r.PostForm.Get("path"), r.PostForm.Get("value"))
	if err != nil {
		app.editorError(w, err)
		return
	}
	app.writeUpdate(w, r, ctrl, upd)
}

// editorTypeHandler switches the template type and re-renders the panel.
func (app *adminApplication) editorTypeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.fail(w, "Bad Request - Could not parse form")
		return
	}
	ctrl := app.controller(w, r)
	t := model.TemplateType(r.PostForm.Get("type"))
	if _, err := ctrl.SwitchType(t); err != nil {
		app.editorError(w, err)
		return
	}
	app.renderPanel(w, ctrl)
}

func (app *adminApplication) editorListAddHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.fail(w, "Bad Request - Could not parse form")
		return
	}
	ctrl := app.controller(w, r)
	upd, err := ctrl.AddItem(r.PostForm.Get("list"))
	if err != nil {
		app.editorError(w, err)
		return
	}
	app.writeUpdate(w, r, ctrl, upd)
}

func (app *adminApplication) editorListRemoveHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.fail(w, "Bad Request - Could not parse form")
		return
	}
	index, err := cast.ToIntE(r.PostForm.Get("index"))
	if err != nil {
		app.fail(w, "Bad Request - Invalid index")
		return
	}
	ctrl := app.controller(w, r)
	upd, err := ctrl.RemoveItem(r.PostForm.Get("list"), index)
	if err != nil {
		app.editorError(w, err)
		return
	}
	app.writeUpdate(w, r, ctrl, upd)
}

func (app *adminApplication) editorGallerySelectHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.fail(w, "Bad Request - Could not parse form")
		return
	}
	index, err := cast.ToIntE(r.PostForm.Get("index"))
	if err != nil {
		app.fail(w, "Bad Request - Invalid index")
		return
	}
	ctrl := app.controller(w, r)
	upd, err := ctrl.SelectImage(index)
	if err != nil {
		app.editorError(w, err)
		return
	}
	app.writeUpdate(w, r, ctrl, upd)
}

// editorSaveHandler saves and re-renders the panel with the outcome in its
// status line.
func (app *adminApplication) editorSaveHandler(w http.ResponseWriter, r *http.Request) {
	ctrl := app.controller(w, r)
	err := ctrl.Save(storage.RequestContext(r))
	switch {
	case errors.Is(err, editor.ErrSaveInFlight):
		app.fail(w, "A save is already in progress.")
		return
	case errors.Is(err, editor.ErrNoSession), errors.Is(err, editor.ErrSessionClosed):
		app.fail(w, "No object is open in the editor.")
		return
	case err != nil:
		app.showMessage(w, "error", "Save failed: "+err.Error())
	default:
		if s, ok := ctrl.Snapshot(); ok && s.Status.Level == editor.StatusWarning {
			app.showMessage(w, "warning", s.Status.Message)
		} else {
			app.showMessage(w, "success", "Popup saved.")
		}
	}
	app.renderPanel(w, ctrl)
}

// editorCloseHandler closes the editor. With unsaved changes and no
// confirm=true it answers 409 so the page can ask the user first.
func (app *adminApplication) editorCloseHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.fail(w, "Bad Request - Could not parse form")
		return
	}
	ctrl := app.controller(w, r)
	confirmed := cast.ToBool(r.PostForm.Get("confirm"))
	if _, err := ctrl.Close(editor.Confirmed(confirmed)); err != nil {
		if errors.Is(err, editor.ErrDiscardRefused) {
			w.Header().Set("HX-Reswap", "none")
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, map[string]any{"needs_confirm": true})
			return
		}
		app.editorError(w, err)
		return
	}
	app.renderPanel(w, ctrl)
}

// writeUpdate answers an edit with the replaced form region and preview.
func (app *adminApplication) writeUpdate(w http.ResponseWriter, r *http.Request, ctrl *editor.Controller, upd editor.Update) {
	resp := updateResponse{Form: upd.Form.String(), Section: upd.Section}
	switch upd.Form {
	case editor.FormSection:
		n, err := ctrl.RenderSection(upd.Section)
		if err != nil {
			app.editorError(w, err)
			return
		}
		resp.HTML = markup.Render(n)
	case editor.FormFull:
		resp.HTML = markup.Render(ctrl.Render().Form)
	}
	if upd.Preview {
		n, err := ctrl.RenderPreview()
		if err != nil {
			app.editorError(w, err)
			return
		}
		preview := markup.Render(n)
		resp.Preview = &preview
	}
	if s, ok := ctrl.Snapshot(); ok {
		resp.Dirty = s.HasUnsavedChanges
	}
	render.JSON(w, r, resp)
}

// editorError maps controller errors to a toast.
func (app *adminApplication) editorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, editor.ErrNoSession), errors.Is(err, editor.ErrSessionClosed):
		app.fail(w, "No object is open in the editor.")
	case errors.Is(err, editor.ErrInvalidPath):
		app.logger.Warn("Rejected editor field", "error", err)
		app.fail(w, "This field cannot be edited.")
	default:
		app.fail(w, err.Error())
	}
}

// --- Catalog ---

func (app *adminApplication) catalogTarget(r *http.Request) model.ObjectTarget {
	return model.ObjectTarget{SpaceSlug: chi.URLParam(r, "space"), ID: chi.URLParam(r, "object")}
}

func (app *adminApplication) renderCatalogRows(w http.ResponseWriter, r *http.Request) {
	html, err := app.engine.PartialString("catalog-rows", app.dashboardPage(r))
	if err != nil {
		app.logger.Error("Error executing catalog partial", "error", err)
		app.fail(w, "Internal Server Error - UI component missing")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// catalogPublishHandler regenerates and publishes one popup.
func (app *adminApplication) catalogPublishHandler(w http.ResponseWriter, r *http.Request) {
	target := app.catalogTarget(r)
	if _, err := app.catalog.Publish(r.Context(), target); err != nil {
		app.logger.Error("Failed to publish popup", "space", target.SpaceSlug, "object", target.ID, "error", err)
		app.fail(w, fmt.Sprintf("Failed to publish '%s': %v", target.ID, err))
		return
	}
	app.showMessage(w, "success", fmt.Sprintf("Popup '%s' published.", target.ID))
	app.renderCatalogRows(w, r)
}

// catalogDeleteHandler archives a popup, or deletes it for good with force=true.
func (app *adminApplication) catalogDeleteHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.fail(w, "Bad Request - Could not parse form")
		return
	}
	target := app.catalogTarget(r)
	force := cast.ToBool(r.PostForm.Get("force"))
	if err := app.catalog.Delete(r.Context(), target, force); err != nil {
		app.logger.Error("Failed to delete popup", "space", target.SpaceSlug, "object", target.ID, "force", force, "error", err)
		app.fail(w, fmt.Sprintf("Failed to delete '%s': %v", target.ID, err))
		return
	}
	msg := fmt.Sprintf("Popup '%s' archived.", target.ID)
	if force {
		msg = fmt.Sprintf("Popup '%s' deleted.", target.ID)
	}
	app.showMessage(w, "success", msg)
	app.renderCatalogRows(w, r)
}

// catalogPurgeHandler permanently removes every archived popup.
func (app *adminApplication) catalogPurgeHandler(w http.ResponseWriter, r *http.Request) {
	n, err := app.catalog.PurgeArchived()
	if err != nil {
		app.logger.Error("Failed to purge archived popups", "error", err)
		app.fail(w, "Failed to purge archived popups.")
		return
	}
	app.showMessage(w, "success", fmt.Sprintf("%d archived popup(s) purged.", n))
	app.renderCatalogRows(w, r)
}

// --- API ---

func (app *adminApplication) templatesAPIHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, app.registry.List())
}

func (app *adminApplication) templateDefaultsAPIHandler(w http.ResponseWriter, r *http.Request) {
	t, err := model.ParseTemplateType(chi.URLParam(r, "type"))
	if err != nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": err.Error()})
		return
	}
	cfg, ok := app.registry.DefaultConfig(t)
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "template is not registered"})
		return
	}
	render.JSON(w, r, map[string]any{"template_type": t, "template_config": cfg})
}
