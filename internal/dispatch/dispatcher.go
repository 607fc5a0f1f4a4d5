// Package dispatch maps clicks on scene objects to viewer actions: showing a
// popup, opening the upload modal or the editor, following a link or
// reloading textures. Admin actions are gated by the permission oracle each
// time they are invoked.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/popups"
)

var (
	// ErrNoReloader is reported when a reload_plv object is clicked and no
	// texture reloader is available.
	ErrNoReloader = errors.New("no texture reloader available")
	// ErrDenied is returned by admin requests without the needed right.
	ErrDenied = errors.New("permission denied")
	// ErrUnknownObject is returned by admin requests on objects outside the table.
	ErrUnknownObject = errors.New("object is not in the action table")
)

// Outcomes reported in Result.
const (
	OutcomeShown         = "shown"
	OutcomeNotConfigured = "not_configured"
	OutcomeUpload        = "upload"
	OutcomeURL           = "url"
	OutcomeReloaded      = "reloaded"
	OutcomeDenied        = "denied"
	OutcomeIgnored       = "ignored"
	OutcomeError         = "error"
)

// Popups is the loaded-popups service seen by the dispatcher. Load returns
// the registered handle when it is still current.
type Popups interface {
	Load(ctx context.Context, objectID string) (*popups.Handle, error)
}

// Observer receives one call per dispatched click.
type Observer interface {
	ObserveClick(action, outcome string)
}

// Result summarises one click.
type Result struct {
	Object  string `json:"object"`
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
	Err     error  `json:"-"`
}

// Options configures a Dispatcher.
type Options struct {
	Table    Table
	Popups   Popups
	Textures TextureReloader
	// Space is copied into the editor target of RequestEdit.
	Space    string
	Observer Observer
	Logger   *slog.Logger
}

// Dispatcher evaluates scene clicks against the action table.
type Dispatcher struct {
	table    Table
	popups   Popups
	textures TextureReloader
	space    string
	observer Observer
	logger   *slog.Logger
}

// New creates a dispatcher.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		table:    opts.Table,
		popups:   opts.Popups,
		textures: opts.Textures,
		space:    opts.Space,
		observer: opts.Observer,
		logger:   opts.Logger,
	}
	if d.table == nil {
		d.table = Table{}
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d
}

// Click handles a click on the scene object rawName.
func (d *Dispatcher) Click(ctx context.Context, rawName string, oracle Oracle, ui UI) Result {
	name := Normalize(rawName)
	res := d.click(ctx, name, oracle, ui)
	res.Object = name
	if d.observer != nil {
		d.observer.ObserveClick(res.Action, res.Outcome)
	}
	if res.Err != nil {
		d.logger.Warn("Click failed", "object", name, "action", res.Action, "error", res.Err)
	}
	return res
}

func (d *Dispatcher) click(ctx context.Context, name string, oracle Oracle, ui UI) Result {
	action, ok := d.table.Lookup(name)
	if !ok {
		// Objects outside the table may still carry a popup.
		if d.showPopup(ctx, name, ui) {
			return Result{Action: model.ActionPopup, Outcome: OutcomeShown}
		}
		return Result{Outcome: OutcomeIgnored}
	}

	switch action.OnClick {
	case model.ActionPopup:
		if d.showPopup(ctx, name, ui) {
			if len(action.AdminButtons) > 0 {
				access := d.access(ctx, oracle, name)
				if buttons := allowedButtons(action.AdminButtons, access); len(buttons) > 0 {
					ui.ShowAdminButtons(name, buttons)
				}
			}
			return Result{Action: model.ActionPopup, Outcome: OutcomeShown}
		}
		if access := d.access(ctx, oracle, name); access.Any() {
			ui.ShowNotConfigured(name, access)
			return Result{Action: model.ActionPopup, Outcome: OutcomeNotConfigured}
		}
		return Result{Action: model.ActionPopup, Outcome: OutcomeIgnored}

	case model.ActionUpload:
		if err := d.requestUpload(ctx, name, action, oracle, ui); err != nil {
			return Result{Action: model.ActionUpload, Outcome: OutcomeDenied}
		}
		return Result{Action: model.ActionUpload, Outcome: OutcomeUpload}

	case model.ActionURL:
		ui.OpenURL(action.URL)
		return Result{Action: model.ActionURL, Outcome: OutcomeURL}

	case model.ActionReloadPLV:
		tr := d.textures
		if uiReloader, ok := ui.(TextureReloader); ok {
			tr = uiReloader
		}
		if tr == nil {
			return Result{Action: model.ActionReloadPLV, Outcome: OutcomeError, Err: fmt.Errorf("%w for %s", ErrNoReloader, name)}
		}
		if err := tr.ReloadTextures(ctx, name, action.PLV); err != nil {
			return Result{Action: model.ActionReloadPLV, Outcome: OutcomeError, Err: err}
		}
		return Result{Action: model.ActionReloadPLV, Outcome: OutcomeReloaded}
	}

	if access := d.access(ctx, oracle, name); access.Any() {
		ui.ShowNotConfigured(name, access)
		return Result{Outcome: OutcomeNotConfigured}
	}
	return Result{Outcome: OutcomeIgnored}
}

// showPopup shows the popup of name when one is published.
func (d *Dispatcher) showPopup(ctx context.Context, name string, ui UI) bool {
	if d.popups == nil {
		return false
	}
	if _, err := d.popups.Load(ctx, name); err != nil {
		d.logger.Debug("Popup not available", "object", name, "error", err)
		return false
	}
	ui.ShowPopup(name)
	return true
}

// access asks the oracle; any failure counts as no rights.
func (d *Dispatcher) access(ctx context.Context, oracle Oracle, name string) model.Access {
	if oracle == nil {
		return model.Access{}
	}
	a, err := oracle.CheckObjectAccess(ctx, name)
	if err != nil {
		d.logger.Warn("Access check failed", "object", name, "error", err)
		return model.Access{}
	}
	return a
}

func allowedButtons(buttons []string, a model.Access) []string {
	var out []string
	for _, b := range buttons {
		switch {
		case b == "edit" && a.CanEdit, b == "upload" && a.CanUpload:
			out = append(out, b)
		}
	}
	return out
}

// RequestEdit opens the editor on name after checking the edit right.
func (d *Dispatcher) RequestEdit(ctx context.Context, rawName string, oracle Oracle, ui UI) error {
	name := Normalize(rawName)
	if !d.access(ctx, oracle, name).CanEdit {
		d.logger.Info("Edit denied", "object", name)
		return fmt.Errorf("%w: edit %s", ErrDenied, name)
	}
	action, _ := d.table.Lookup(name)
	target := model.ObjectTarget{ID: name, SpaceSlug: d.space, ZoneSlug: action.Zone}
	if action.PLV != nil {
		target.ShaderName = action.PLV.Shader
		target.Format = action.PLV.Format
	}
	ui.OpenEditor(target)
	return nil
}

// RequestUpload opens the upload modal on name after checking the upload right.
func (d *Dispatcher) RequestUpload(ctx context.Context, rawName string, oracle Oracle, ui UI) error {
	name := Normalize(rawName)
	action, ok := d.table.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObject, name)
	}
	return d.requestUpload(ctx, name, action, oracle, ui)
}

func (d *Dispatcher) requestUpload(ctx context.Context, name string, action model.ObjectAction, oracle Oracle, ui UI) error {
	if !d.access(ctx, oracle, name).CanUpload {
		d.logger.Info("Upload denied", "object", name)
		return fmt.Errorf("%w: upload %s", ErrDenied, name)
	}
	ui.OpenUpload(UploadRequest{Object: name, Zone: action.Zone, PLV: action.PLV})
	return nil
}
