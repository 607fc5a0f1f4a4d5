package dispatch

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"showroom-popup-builder/internal/model"
)

// instanceSuffix matches the decorations the 3D engine appends to duplicated
// or instanced objects: "chair.001", "chair_instance_3", "chair#2", "chair-copy".
var instanceSuffix = regexp.MustCompile(`(?:\.\d+|_instance_?\d+|#\d+|-copy\d*)$`)

// Normalize strips engine decoration from a raw scene object name so it can
// be looked up in the action table. Case is preserved.
func Normalize(raw string) string {
	name := strings.TrimSpace(raw)
	for {
		stripped := instanceSuffix.ReplaceAllString(name, "")
		if stripped == name || stripped == "" {
			return name
		}
		name = stripped
	}
}

// Table is the static click table keyed by normalized object name.
type Table map[string]model.ObjectAction

var validActions = map[string]bool{
	"":                    true,
	model.ActionPopup:     true,
	model.ActionUpload:    true,
	model.ActionURL:       true,
	model.ActionReloadPLV: true,
}

// ParseTable decodes a YAML action table and checks every entry.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse action table: %w", err)
	}
	if t == nil {
		t = Table{}
	}
	for name, a := range t {
		if !validActions[a.OnClick] {
			return nil, fmt.Errorf("object %q: unknown onClick %q", name, a.OnClick)
		}
		if a.OnClick == model.ActionURL && strings.TrimSpace(a.URL) == "" {
			return nil, fmt.Errorf("object %q: url action without url", name)
		}
	}
	return t, nil
}

// LoadTable reads a YAML action table from path.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read action table '%s': %w", path, err)
	}
	return ParseTable(data)
}

// Lookup returns the action of a normalized name.
func (t Table) Lookup(name string) (model.ObjectAction, bool) {
	a, ok := t[name]
	return a, ok
}

// Names lists the configured objects in sorted order.
func (t Table) Names() []string {
	out := make([]string, 0, len(t))
	for name := range t {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
