// Package templates holds the popup template definitions. Every definition
// renders its form, its live preview and its generated artifact from the same
// configuration value, and the preview and the artifact share one card
// renderer so they cannot drift.
package templates

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"showroom-popup-builder/internal/markup"
	"showroom-popup-builder/internal/model"
)

// ErrGalleryFull is returned when a product gallery already holds the maximum number of images.
var ErrGalleryFull = errors.New("gallery is full")

// ErrWrongConfig is returned when a definition receives another template's configuration.
var ErrWrongConfig = errors.New("configuration does not match template")

// Definition is the per-type contract. RenderForm and RenderPreview are pure:
// they never mutate cfg and never perform I/O.
type Definition interface {
	Descriptor() model.TemplateDescriptor
	DefaultConfig() model.Config
	RenderForm(cfg model.Config) Form
	RenderPreview(cfg model.Config, st PreviewState) *markup.Node
	GenerateArtifact(objectID string, cfg model.Config, ts time.Time) (model.Artifact, error)
}

// ListEditor is implemented by definitions whose configuration holds
// editable lists (contacts, images, tags...).
type ListEditor interface {
	AddItem(cfg model.Config, list string) error
	RemoveItem(cfg model.Config, list string, index int) error
}

// PreviewState is transient, preview-local state. It is never persisted.
type PreviewState struct {
	ActiveImage int
}

// Section is one independently re-renderable part of a form. Fields lists
// the top-level configuration keys edited inside it.
type Section struct {
	Key    string
	Title  string
	Fields []string
	Node   *markup.Node
}

// Form is the ordered list of sections making up an editor form.
type Form struct {
	Sections []Section
}

// Node wraps every section in the form container.
func (f Form) Node() *markup.Node {
	children := make([]*markup.Node, 0, len(f.Sections))
	for _, s := range f.Sections {
		children = append(children, s.Node)
	}
	return markup.Div(markup.Attrs(markup.Class("editor-form")), children...)
}

// SectionFor returns the section editing the first segment of path.
func (f Form) SectionFor(path string) (Section, bool) {
	head := strings.SplitN(path, ".", 2)[0]
	for _, s := range f.Sections {
		for _, field := range s.Fields {
			if field == head {
				return s, true
			}
		}
	}
	return Section{}, false
}

// Section looks a section up by key.
func (f Form) Section(key string) (Section, bool) {
	for _, s := range f.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}

// Unavailable is rendered wherever a template type has no registered definition.
func Unavailable(id model.TemplateType) *markup.Node {
	return markup.Div(markup.Attrs(markup.Class("atl-unavailable")),
		markup.Icon("fa-triangle-exclamation"),
		markup.P(nil, markup.Textf("Template %q is unavailable.", string(id))),
	)
}

// RenderFailed is rendered when a definition panics or errors while rendering.
func RenderFailed(id model.TemplateType) *markup.Node {
	return markup.Div(markup.Attrs(markup.Class("atl-unavailable")),
		markup.Icon("fa-bug"),
		markup.P(nil, markup.Textf("Template %q could not be rendered.", string(id))),
	)
}

func wrongConfig(want model.TemplateType, got model.Config) error {
	gotType := model.TemplateType("<nil>")
	if got != nil {
		gotType = got.Type()
	}
	return fmt.Errorf("%w: %s template received %s configuration", ErrWrongConfig, want, gotType)
}

func clampIndex(i, n int) int {
	if i < 0 || i >= n {
		return 0
	}
	return i
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
