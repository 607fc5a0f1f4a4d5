package model

import (
	"errors"
	"fmt"
	"time"
)

// TemplateType selects both the configuration schema and the rendering logic
// of a popup template.
type TemplateType string

const (
	TemplateContact TemplateType = "contact"
	TemplateProduct TemplateType = "product"
	TemplateInfo    TemplateType = "info"
	TemplateIframe  TemplateType = "iframe"
	TemplateYoutube TemplateType = "youtube"
)

// DefaultTemplateType is used whenever an object has no usable persisted template.
const DefaultTemplateType = TemplateContact

// ErrUnknownTemplateType is returned when a template type has no schema.
var ErrUnknownTemplateType = errors.New("unknown template type")

// TemplateTypes lists every shipped template type in display order.
func TemplateTypes() []TemplateType {
	return []TemplateType{TemplateContact, TemplateProduct, TemplateInfo, TemplateIframe, TemplateYoutube}
}

// ParseTemplateType validates a raw identifier.
func ParseTemplateType(raw string) (TemplateType, error) {
	for _, t := range TemplateTypes() {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTemplateType, raw)
}

// TemplateDescriptor is the static metadata shown in the template picker.
type TemplateDescriptor struct {
	ID          TemplateType `json:"id"`
	Name        string       `json:"name"`
	Icon        string       `json:"icon"` // Font Awesome class, e.g. "fa-address-card"
	Description string       `json:"description"`
}

// StoredTemplate is what the persistence gateway keeps for one scene object.
// TemplateConfig is the JSON-serialized configuration; the gateway never
// interprets its shape.
type StoredTemplate struct {
	TemplateType   string    `json:"template_type"`
	TemplateConfig string    `json:"template_config"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// Artifact is the generated, self-contained popup produced from a configuration.
type Artifact struct {
	HTML string `json:"html"`
	CSS  string `json:"css,omitempty"`
	JS   string `json:"js,omitempty"`
}

// ObjectTarget identifies the scene object an editor session works on.
type ObjectTarget struct {
	ID         string `json:"id"` // scene object name
	SpaceSlug  string `json:"space_slug"`
	ZoneSlug   string `json:"zone_slug,omitempty"`
	ShaderName string `json:"shader_name,omitempty"`
	Format     string `json:"format,omitempty"`
}
