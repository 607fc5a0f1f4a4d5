package editor

import (
	"context"
	"errors"
	"time"

	"showroom-popup-builder/internal/markup"
	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/templates"
)

var (
	// ErrNoSession is returned by operations that need an open editor session.
	ErrNoSession = errors.New("no editor session is open")
	// ErrSaveInFlight is returned when a save is requested while another one runs.
	ErrSaveInFlight = errors.New("a save is already in progress")
	// ErrDiscardRefused is returned by Close when unsaved changes were not discarded.
	ErrDiscardRefused = errors.New("unsaved changes were not discarded")
	// ErrSessionClosed is returned when the session ended while an operation ran.
	ErrSessionClosed = errors.New("editor session was closed")
	// ErrNotListTemplate is returned for list operations on a template without lists.
	ErrNotListTemplate = errors.New("template has no editable lists")
)

// StatusLevel classifies the transient status line shown in the editor.
type StatusLevel string

const (
	StatusInfo    StatusLevel = "info"
	StatusSuccess StatusLevel = "success"
	StatusWarning StatusLevel = "warning"
	StatusError   StatusLevel = "error"
)

// Status is the editor's inline, dismissible status message.
type Status struct {
	Level   StatusLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// Session is the state of one open editor. It is owned by a Controller and
// never shared between sessions: closing drops it, opening builds a new one.
type Session struct {
	Object            model.ObjectTarget
	TemplateType      model.TemplateType
	Config            model.Config
	HasUnsavedChanges bool
	IsSaving          bool
	Generation        uint64
	Status            Status

	// Preview is transient preview state, never persisted.
	Preview templates.PreviewState

	loading  bool
	revision uint64
	ctx      context.Context
	cancel   context.CancelFunc
}

// FormChange tells the page how much of the form must be replaced.
type FormChange int

const (
	FormNone FormChange = iota
	FormSection
	FormFull
)

func (f FormChange) String() string {
	switch f {
	case FormSection:
		return "section"
	case FormFull:
		return "full"
	}
	return "none"
}

// Update describes which regions changed after an interaction. The preview
// is re-rendered in full whenever Preview is set.
type Update struct {
	Form    FormChange
	Section string
	Preview bool
}

// View is a rendered snapshot of the editor.
type View struct {
	Open              bool
	Loading           bool
	Object            model.ObjectTarget
	TemplateType      model.TemplateType
	Templates         []model.TemplateDescriptor
	Form              *markup.Node
	Preview           *markup.Node
	Status            Status
	HasUnsavedChanges bool
	IsSaving          bool
	Generation        uint64
	GalleryCount      int
}

// Confirmer is asked before unsaved changes are discarded.
type Confirmer interface {
	ConfirmDiscard() bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func() bool

func (f ConfirmFunc) ConfirmDiscard() bool { return f() }

// Confirmed answers every discard question with the given decision, for
// callers that already asked the user (the admin page's confirm dialog).
func Confirmed(ok bool) Confirmer { return ConfirmFunc(func() bool { return ok }) }

// Reloader refreshes the scene's copy of an object's popup after a save.
type Reloader interface {
	Reload(ctx context.Context, target model.ObjectTarget) error
}

// Observer receives editor outcomes for metrics.
type Observer interface {
	ObserveLoad(outcome string)
	ObserveSave(outcome string, elapsed time.Duration)
	ObserveRenderFailure(t model.TemplateType)
}

type nopObserver struct{}

func (nopObserver) ObserveLoad(string)                      {}
func (nopObserver) ObserveSave(string, time.Duration)       {}
func (nopObserver) ObserveRenderFailure(model.TemplateType) {}
