package model

// Click actions an ObjectAction can request.
const (
	ActionPopup     = "popup"
	ActionUpload    = "upload"
	ActionURL       = "url"
	ActionReloadPLV = "reload_plv"
)

// PLVConfig describes the uploadable texture slot bound to a scene object.
type PLVConfig struct {
	Shader string `json:"shader" yaml:"shader"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // e.g. "16:9", "square"
	Width  int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height int    `json:"height,omitempty" yaml:"height,omitempty"`
}

// ObjectAction is one entry of the static click table, keyed by scene object name.
// An empty OnClick means the object has no visitor-facing behaviour.
type ObjectAction struct {
	OnClick      string     `json:"onClick" yaml:"onClick"`
	Zone         string     `json:"zone" yaml:"zone"`
	AdminButtons []string   `json:"adminButtons,omitempty" yaml:"adminButtons,omitempty"`
	URL          string     `json:"url,omitempty" yaml:"url,omitempty"`
	PLV          *PLVConfig `json:"plv,omitempty" yaml:"plv,omitempty"`
}

// Access is what the permission oracle grants the current user on an object.
type Access struct {
	CanEdit   bool `json:"canEdit"`
	CanUpload bool `json:"canUpload"`
}

// Any reports whether the user holds at least one admin right.
func (a Access) Any() bool {
	return a.CanEdit || a.CanUpload
}
