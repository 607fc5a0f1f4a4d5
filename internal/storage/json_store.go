package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"showroom-popup-builder/internal/generator"
	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/pkg/fsutils"
)

// JSONStore implements Gateway using JSON files, one per object, stored as
// {BasePath}/{space_slug}/{object}.json. When a publisher is attached the
// generated popup script is written next to the scene's other assets.
type JSONStore struct {
	// BasePath is the directory holding one sub-directory per space.
	BasePath string

	publisher *generator.Publisher
	logger    *slog.Logger
	mu        sync.Mutex
}

// NewJSONStore creates a new JSONStore instance.
// It ensures the base storage directory exists.
func NewJSONStore(basePath string, publisher *generator.Publisher, logger *slog.Logger) (*JSONStore, error) {
	if err := fsutils.CreateDir(basePath); err != nil {
		return nil, fmt.Errorf("failed to create storage directory '%s': %w", basePath, err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &JSONStore{BasePath: basePath, publisher: publisher, logger: logger}, nil
}

// GetBasePath returns the base path of the JSON store.
func (js *JSONStore) GetBasePath() string {
	return js.BasePath
}

func (js *JSONStore) recordPath(space, object string) (string, error) {
	s, err := fsutils.SafeSegment(space)
	if err != nil {
		return "", fmt.Errorf("invalid space slug: %w", err)
	}
	o, err := fsutils.SafeSegment(object)
	if err != nil {
		return "", fmt.Errorf("invalid object name: %w", err)
	}
	return filepath.Join(js.BasePath, s, o+".json"), nil
}

// Load retrieves the stored template of target from its JSON file.
func (js *JSONStore) Load(ctx context.Context, target model.ObjectTarget) (*model.StoredTemplate, error) {
	rec, err := js.loadRecord(ctx, target.SpaceSlug, target.ID)
	if err != nil {
		return nil, err
	}
	tpl := rec.Template
	return &tpl, nil
}

// LoadArtifact returns the artifact generated on the last save of target.
func (js *JSONStore) LoadArtifact(ctx context.Context, target model.ObjectTarget) (model.Artifact, error) {
	rec, err := js.loadRecord(ctx, target.SpaceSlug, target.ID)
	if err != nil {
		return model.Artifact{}, err
	}
	return rec.Artifact, nil
}

func (js *JSONStore) loadRecord(ctx context.Context, space, object string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filePath, err := js.recordPath(space, object)
	if err != nil {
		return nil, err
	}

	data, err := fsutils.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, space, object)
		}
		return nil, fmt.Errorf("failed to read template file %s: %w", filePath, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template data from %s: %w", filePath, err)
	}
	return &rec, nil
}

// Save validates req, publishes its artifact (when a publisher is attached)
// and then writes the record. The record is written last so a failed publish
// leaves the previous record untouched.
func (js *JSONStore) Save(ctx context.Context, req SaveRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := js.recordPath(req.Target.SpaceSlug, req.Target.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	rec := Record{
		Target: req.Target,
		Template: model.StoredTemplate{
			TemplateType:   string(req.TemplateType),
			TemplateConfig: req.TemplateConfig,
			UpdatedAt:      now(),
		},
		Artifact: req.Artifact,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal template %s/%s: %w", req.Target.SpaceSlug, req.Target.ID, err)
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	if js.publisher != nil {
		if _, err := js.publisher.Publish(req.Target.SpaceSlug, req.Target.ID, req.Target.ID, req.Artifact); err != nil {
			return err
		}
	}
	if err := fsutils.WriteToFile(filePath, data); err != nil {
		return fmt.Errorf("failed to write template file %s: %w", filePath, err)
	}
	js.logger.Info("Saved popup template", "space", req.Target.SpaceSlug, "object", req.Target.ID, "type", req.TemplateType)
	return nil
}

// List returns every record of space sorted by object name. An empty space
// argument lists all spaces.
func (js *JSONStore) List(ctx context.Context, space string) ([]Record, error) {
	spaces := []string{space}
	if space == "" {
		entries, err := fsutils.ScanDir(js.BasePath)
		if err != nil {
			if os.IsNotExist(err) {
				return []Record{}, nil
			}
			return nil, fmt.Errorf("failed to read storage directory %s: %w", js.BasePath, err)
		}
		spaces = spaces[:0]
		for _, e := range entries {
			if e.IsDir() {
				spaces = append(spaces, e.Name())
			}
		}
	}

	records := []Record{}
	for _, s := range spaces {
		dir := filepath.Join(js.BasePath, s)
		files, err := fsutils.ScanDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read space directory %s: %w", dir, err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			rec, err := js.loadRecord(ctx, s, strings.TrimSuffix(f.Name(), ".json"))
			if err != nil {
				// One unreadable file should not hide the others.
				js.logger.Warn("Skipping unreadable template record", "space", s, "file", f.Name(), "error", err)
				continue
			}
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Target.SpaceSlug != records[j].Target.SpaceSlug {
			return records[i].Target.SpaceSlug < records[j].Target.SpaceSlug
		}
		return records[i].Target.ID < records[j].Target.ID
	})
	return records, nil
}

// Delete removes the object's record and its published artifact.
func (js *JSONStore) Delete(ctx context.Context, target model.ObjectTarget) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := js.recordPath(target.SpaceSlug, target.ID)
	if err != nil {
		return err
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	if !fsutils.FileExists(filePath) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, target.SpaceSlug, target.ID)
	}
	if err := fsutils.RemoveFile(filePath); err != nil {
		return err
	}
	if js.publisher != nil {
		if err := js.publisher.Remove(target.SpaceSlug, target.ID); err != nil {
			return err
		}
	}
	js.logger.Info("Deleted popup template", "space", target.SpaceSlug, "object", target.ID)
	return nil
}
