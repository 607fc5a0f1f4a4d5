// Package generator publishes generated popup artifacts to disk, laid out the
// way the scene expects to fetch them: {base}/{space_slug}/{object}-popup.js.
package generator

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/templates"
	"showroom-popup-builder/pkg/fsutils"
)

// Suffixes of the files written for one object.
const (
	ScriptSuffix   = "-popup.js"
	DocumentSuffix = "-popup.html"
)

// --- Slug Generation ---
var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
var multiHyphen = regexp.MustCompile(`-+`)

// Slug creates a URL-friendly space slug from a display name
// ("Atlantis City" -> "atlantis-city").
func Slug(name string) string {
	slug := strings.ToLower(name)
	slug = nonAlphanumeric.ReplaceAllString(slug, "-")
	slug = multiHyphen.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "space"
	}
	return slug
}

// Publisher writes popup scripts and standalone documents under BaseDir.
type Publisher struct {
	BaseDir string
	logger  *slog.Logger
}

// Published lists the files written by Publish.
type Published struct {
	Script   string
	Document string
}

// NewPublisher creates a publisher rooted at baseDir.
func NewPublisher(baseDir string, logger *slog.Logger) (*Publisher, error) {
	if err := fsutils.CreateDir(baseDir); err != nil {
		return nil, fmt.Errorf("failed to create publish directory '%s': %w", baseDir, err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{BaseDir: baseDir, logger: logger}, nil
}

// ScriptPath returns where the popup script of (space, object) lives.
func (p *Publisher) ScriptPath(space, object string) (string, error) {
	return p.path(space, object, ScriptSuffix)
}

// DocumentPath returns where the standalone HTML document of (space, object) lives.
func (p *Publisher) DocumentPath(space, object string) (string, error) {
	return p.path(space, object, DocumentSuffix)
}

func (p *Publisher) path(space, object, suffix string) (string, error) {
	s, err := fsutils.SafeSegment(space)
	if err != nil {
		return "", fmt.Errorf("invalid space slug: %w", err)
	}
	o, err := fsutils.SafeSegment(object)
	if err != nil {
		return "", fmt.Errorf("invalid object name: %w", err)
	}
	return filepath.Join(p.BaseDir, s, o+suffix), nil
}

// Publish writes the artifact's popup script and a standalone HTML document
// wrapping the same markup (used when a popup is shown in an iframe).
func (p *Publisher) Publish(space, object, title string, a model.Artifact) (Published, error) {
	if strings.TrimSpace(a.JS) == "" {
		return Published{}, fmt.Errorf("artifact for %s/%s has no script", space, object)
	}
	scriptPath, err := p.ScriptPath(space, object)
	if err != nil {
		return Published{}, err
	}
	docPath, err := p.DocumentPath(space, object)
	if err != nil {
		return Published{}, err
	}

	if err := fsutils.WriteToFile(scriptPath, []byte(a.JS)); err != nil {
		return Published{}, fmt.Errorf("failed to publish popup script for %s/%s: %w", space, object, err)
	}
	if title == "" {
		title = object
	}
	if err := fsutils.WriteToFile(docPath, []byte(templates.Document(title, a))); err != nil {
		return Published{}, fmt.Errorf("failed to publish popup document for %s/%s: %w", space, object, err)
	}

	p.logger.Info("Published popup artifact", "space", space, "object", object, "script", scriptPath)
	return Published{Script: scriptPath, Document: docPath}, nil
}

// ReadScript returns the published popup script of (space, object).
func (p *Publisher) ReadScript(space, object string) ([]byte, error) {
	path, err := p.ScriptPath(space, object)
	if err != nil {
		return nil, err
	}
	return fsutils.ReadFile(path)
}

// Remove deletes every published file of (space, object).
func (p *Publisher) Remove(space, object string) error {
	for _, suffix := range []string{ScriptSuffix, DocumentSuffix} {
		path, err := p.path(space, object, suffix)
		if err != nil {
			return err
		}
		if err := fsutils.RemoveFile(path); err != nil {
			return err
		}
	}
	p.logger.Info("Removed popup artifact", "space", space, "object", object)
	return nil
}
