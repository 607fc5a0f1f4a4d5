package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Config is the editable configuration of one template instance. The
// concrete type is fully determined by Type(); switching template type
// discards the value and installs a fresh default.
type Config interface {
	Type() TemplateType
	Clone() Config
}

// NewConfig returns the zero value of the variant for t.
func NewConfig(t TemplateType) (Config, error) {
	switch t {
	case TemplateContact:
		return &ContactConfig{}, nil
	case TemplateProduct:
		return &ProductConfig{}, nil
	case TemplateInfo:
		return &InfoConfig{}, nil
	case TemplateIframe:
		return &IframeConfig{}, nil
	case TemplateYoutube:
		return &YoutubeConfig{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTemplateType, t)
}

// DecodeConfig parses a persisted JSON configuration into the variant for t.
func DecodeConfig(t TemplateType, raw string) (Config, error) {
	cfg, err := NewConfig(t)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty %s configuration", t)
	}
	if err := json.Unmarshal([]byte(raw), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s configuration: %w", t, err)
	}
	return cfg, nil
}

// EncodeConfig serializes a configuration the way the gateway stores it.
func EncodeConfig(cfg Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s configuration: %w", cfg.Type(), err)
	}
	return string(data), nil
}

// Palette groups the colors of the product and info cards.
type Palette struct {
	Accent     string `json:"accent"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

// Button is a call-to-action rendered at the bottom of a card.
type Button struct {
	Label   string `json:"label"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// --- contact ---

// Contact entry kinds.
const (
	ContactPhone    = "phone"
	ContactEmail    = "email"
	ContactWebsite  = "website"
	ContactLinkedIn = "linkedin"
	ContactWhatsApp = "whatsapp"
	ContactAddress  = "address"
	ContactOther    = "other"
)

// ContactTypes lists the selectable contact entry kinds.
func ContactTypes() []string {
	return []string{ContactPhone, ContactEmail, ContactWebsite, ContactLinkedIn, ContactWhatsApp, ContactAddress, ContactOther}
}

// ContactEntry is one line of a contact card.
type ContactEntry struct {
	Type    string `json:"type"`
	Label   string `json:"label"`
	Value   string `json:"value"`
	Href    string `json:"href"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// IsEnabled treats a missing flag as enabled.
func (e ContactEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

var whitespace = regexp.MustCompile(`\s+`)

// RefreshHref recomputes the link of phone and email entries from their
// value. Other kinds keep the user supplied href.
func (e *ContactEntry) RefreshHref() {
	switch e.Type {
	case ContactPhone:
		e.Href = "tel:" + whitespace.ReplaceAllString(e.Value, "")
	case ContactEmail:
		e.Href = "mailto:" + strings.TrimSpace(e.Value)
	}
}

// ContactTheme drives every color of the contact card from a single hue.
type ContactTheme struct {
	Hue  int `json:"hue"`  // 0-360
	Glow int `json:"glow"` // 0-100 px
}

// Clamp brings Hue and Glow back into their ranges.
func (t *ContactTheme) Clamp() {
	t.Hue = min(max(t.Hue, 0), 360)
	t.Glow = min(max(t.Glow, 0), 100)
}

// ContactConfig is the configuration of the "contact" template.
type ContactConfig struct {
	Name     string         `json:"name"`
	Title    string         `json:"title"`
	Company  string         `json:"company"`
	Avatar   string         `json:"avatar"`
	Theme    ContactTheme   `json:"theme"`
	Contacts []ContactEntry `json:"contacts"`
}

func (c *ContactConfig) Type() TemplateType { return TemplateContact }

func (c *ContactConfig) Clone() Config {
	out := *c
	out.Contacts = make([]ContactEntry, len(c.Contacts))
	for i, e := range c.Contacts {
		if e.Enabled != nil {
			v := *e.Enabled
			e.Enabled = &v
		}
		out.Contacts[i] = e
	}
	return &out
}

// --- product ---

// MaxProductImages caps the product gallery.
const MaxProductImages = 5

// Tag is a small labelled badge on the product sheet.
type Tag struct {
	Icon  string `json:"icon"`
	Label string `json:"label"`
}

// ProductConfig is the configuration of the "product" template.
type ProductConfig struct {
	Title           string   `json:"title"`
	Subtitle        string   `json:"subtitle"`
	Price           string   `json:"price"`
	Currency        string   `json:"currency"`
	Description     string   `json:"description"`
	Images          []string `json:"images"`
	Tags            []Tag    `json:"tags"`
	Services        []string `json:"services"`
	PrimaryButton   Button   `json:"primaryButton"`
	SecondaryButton Button   `json:"secondaryButton"`
	Colors          Palette  `json:"colors"`
}

func (c *ProductConfig) Type() TemplateType { return TemplateProduct }

func (c *ProductConfig) Clone() Config {
	out := *c
	out.Images = append([]string(nil), c.Images...)
	out.Tags = append([]Tag(nil), c.Tags...)
	out.Services = append([]string(nil), c.Services...)
	if c.Images != nil && out.Images == nil {
		out.Images = []string{}
	}
	if c.Tags != nil && out.Tags == nil {
		out.Tags = []Tag{}
	}
	if c.Services != nil && out.Services == nil {
		out.Services = []string{}
	}
	return &out
}

// --- info ---

// InfoConfig is the configuration of the "info" panel template.
type InfoConfig struct {
	Title      string   `json:"title"`
	Subtitle   string   `json:"subtitle"`
	Icon       string   `json:"icon"`
	Image      string   `json:"image"`
	Paragraphs []string `json:"paragraphs"`
	Button     Button   `json:"button"`
	Colors     Palette  `json:"colors"`
}

func (c *InfoConfig) Type() TemplateType { return TemplateInfo }

func (c *InfoConfig) Clone() Config {
	out := *c
	out.Paragraphs = append([]string(nil), c.Paragraphs...)
	if c.Paragraphs != nil && out.Paragraphs == nil {
		out.Paragraphs = []string{}
	}
	return &out
}

// --- iframe ---

// IframeConfig is the configuration of the "iframe" template.
type IframeConfig struct {
	Title           string `json:"title"`
	URL             string `json:"url"`
	Width           int    `json:"width"`  // px
	Height          int    `json:"height"` // px
	AllowFullscreen bool   `json:"allowFullscreen"`
}

func (c *IframeConfig) Type() TemplateType { return TemplateIframe }

func (c *IframeConfig) Clone() Config {
	out := *c
	return &out
}

// --- youtube ---

// YoutubeConfig is the configuration of the "youtube" template.
type YoutubeConfig struct {
	Title    string `json:"title"`
	VideoID  string `json:"videoId"`
	Autoplay bool   `json:"autoplay"`
	Mute     bool   `json:"mute"`
	Loop     bool   `json:"loop"`
	Start    int    `json:"start"` // seconds
}

func (c *YoutubeConfig) Type() TemplateType { return TemplateYoutube }

func (c *YoutubeConfig) Clone() Config {
	out := *c
	return &out
}

var (
	youtubeID    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	youtubeInURL = regexp.MustCompile(`(?:youtu\.be/|v=|/embed/|/shorts/)([A-Za-z0-9_-]{11})`)
)

// NormalizeVideoID accepts a bare id or any common YouTube URL and returns
// the 11 character video id, or "" when none can be found.
func NormalizeVideoID(raw string) string {
	raw = strings.TrimSpace(raw)
	if youtubeID.MatchString(raw) {
		return raw
	}
	if m := youtubeInURL.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}
