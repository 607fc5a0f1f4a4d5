// Package catalog manages the popups already configured for a space: listing
// them, (re)publishing their artifacts, archiving and deleting them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"showroom-popup-builder/internal/generator"
	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/storage"
	"showroom-popup-builder/internal/templates"
	"showroom-popup-builder/pkg/fsutils"
)

var (
	// ErrUnsupported is returned when the configured backend cannot list or
	// delete records (the remote API only loads and saves).
	ErrUnsupported = errors.New("operation not supported by storage backend")

	// ErrNoPublisher is returned by file operations when no local publish
	// directory is configured.
	ErrNoPublisher = errors.New("no publish directory configured")
)

// Entry is one configured object as shown by listings.
type Entry struct {
	Target       model.ObjectTarget `json:"target"`
	TemplateType string             `json:"template_type"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Published    bool               `json:"published"`
}

// Manager provides the catalog operations on top of a storage gateway and an
// optional artifact publisher.
type Manager struct {
	store      storage.Gateway
	registry   *templates.Registry
	publisher  *generator.Publisher
	removedDir string
	logger     *slog.Logger
	now        func() time.Time
}

// NewManager creates a Manager. removedDir receives archived artifacts; it
// defaults to a "removed" directory next to the publisher's base directory.
func NewManager(store storage.Gateway, registry *templates.Registry, publisher *generator.Publisher, removedDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if registry == nil {
		registry = templates.NewDefaultRegistry()
	}
	if removedDir == "" && publisher != nil {
		removedDir = filepath.Join(filepath.Dir(filepath.Clean(publisher.BaseDir)), "removed")
	}
	return &Manager{
		store:      store,
		registry:   registry,
		publisher:  publisher,
		removedDir: removedDir,
		logger:     logger,
		now:        time.Now,
	}
}

// RemovedDir returns the archive directory.
func (m *Manager) RemovedDir() string { return m.removedDir }

// List returns the configured objects of space (all spaces when empty).
func (m *Manager) List(ctx context.Context, space string) ([]Entry, error) {
	lister, ok := m.store.(storage.Lister)
	if !ok {
		return nil, fmt.Errorf("list: %w", ErrUnsupported)
	}
	records, err := lister.List(ctx, space)
	if err != nil {
		m.logger.Error("Error listing popup templates", "space", space, "error", err)
		return nil, fmt.Errorf("listing templates failed: %w", err)
	}
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, Entry{
			Target:       r.Target,
			TemplateType: r.Template.TemplateType,
			UpdatedAt:    r.Template.UpdatedAt,
			Published:    m.isPublished(r.Target),
		})
	}
	return entries, nil
}

func (m *Manager) isPublished(t model.ObjectTarget) bool {
	if m.publisher == nil {
		return false
	}
	path, err := m.publisher.ScriptPath(t.SpaceSlug, t.ID)
	return err == nil && fsutils.FileExists(path)
}

// Generate regenerates the artifact of target from its stored configuration.
func (m *Manager) Generate(ctx context.Context, target model.ObjectTarget) (model.TemplateType, model.Artifact, error) {
	stored, err := m.store.Load(ctx, target)
	if err != nil {
		return "", model.Artifact{}, err
	}
	t, err := model.ParseTemplateType(stored.TemplateType)
	if err != nil {
		return "", model.Artifact{}, err
	}
	def, ok := m.registry.Get(t)
	if !ok {
		return "", model.Artifact{}, fmt.Errorf("%w: %s", model.ErrUnknownTemplateType, t)
	}
	cfg, err := model.DecodeConfig(t, stored.TemplateConfig)
	if err != nil {
		return "", model.Artifact{}, fmt.Errorf("stored configuration of %s/%s is malformed: %w", target.SpaceSlug, target.ID, err)
	}
	a, err := def.GenerateArtifact(target.ID, cfg, m.now())
	if err != nil {
		return "", model.Artifact{}, fmt.Errorf("generating artifact for %s/%s failed: %w", target.SpaceSlug, target.ID, err)
	}
	return t, a, nil
}

// Publish regenerates target's artifact and writes it to the publish
// directory.
func (m *Manager) Publish(ctx context.Context, target model.ObjectTarget) (generator.Published, error) {
	if m.publisher == nil {
		return generator.Published{}, ErrNoPublisher
	}
	_, a, err := m.Generate(ctx, target)
	if err != nil {
		return generator.Published{}, err
	}
	return m.publisher.Publish(target.SpaceSlug, target.ID, target.ID, a)
}

// PublishAll republishes every configured object of space. Individual
// failures are logged and counted, they do not stop the run.
func (m *Manager) PublishAll(ctx context.Context, space string) (published int, err error) {
	entries, err := m.List(ctx, space)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		if _, err := m.Publish(ctx, e.Target); err != nil {
			m.logger.Error("Failed to publish popup", "space", e.Target.SpaceSlug, "object", e.Target.ID, "error", err)
			failed++
			continue
		}
		published++
	}
	m.logger.Info("Publish complete.", "published", published, "failures", failed)
	return published, nil
}

func suffixes() []string {
	return []string{generator.ScriptSuffix, generator.DocumentSuffix}
}

func (m *Manager) publishedPath(t model.ObjectTarget, suffix string) (string, error) {
	if suffix == generator.DocumentSuffix {
		return m.publisher.DocumentPath(t.SpaceSlug, t.ID)
	}
	return m.publisher.ScriptPath(t.SpaceSlug, t.ID)
}

func (m *Manager) archivePath(space, object, suffix string) (string, error) {
	s, err := fsutils.SafeSegment(space)
	if err != nil {
		return "", fmt.Errorf("invalid space slug: %w", err)
	}
	o, err := fsutils.SafeSegment(object)
	if err != nil {
		return "", fmt.Errorf("invalid object name: %w", err)
	}
	return filepath.Join(m.removedDir, s, o+suffix), nil
}

// Archive moves target's published files into the removed directory. The
// stored configuration is kept so the popup can be restored. Archiving an
// object that is not published is a no-op.
func (m *Manager) Archive(target model.ObjectTarget) error {
	if m.publisher == nil {
		return ErrNoPublisher
	}
	m.logger.Info("Archiving popup", "space", target.SpaceSlug, "object", target.ID)
	moved := 0
	for _, suffix := range suffixes() {
		from, err := m.publishedPath(target, suffix)
		if err != nil {
			return err
		}
		to, err := m.archivePath(target.SpaceSlug, target.ID, suffix)
		if err != nil {
			return err
		}
		if _, err := os.Stat(from); os.IsNotExist(err) {
			continue
		} else if err != nil {
			return fmt.Errorf("failed to check published file '%s': %w", from, err)
		}
		if err := fsutils.CreateDir(filepath.Dir(to)); err != nil {
			return fmt.Errorf("failed to create removed directory '%s': %w", filepath.Dir(to), err)
		}
		if err := os.Rename(from, to); err != nil {
			m.logger.Error("Failed to move popup file to removed location", "from", from, "to", to, "error", err)
			return fmt.Errorf("failed to archive %s/%s: %w", target.SpaceSlug, target.ID, err)
		}
		moved++
	}
	if moved == 0 {
		m.logger.Info("Popup is not published, nothing to archive.", "space", target.SpaceSlug, "object", target.ID)
	}
	return nil
}

// Restore moves archived files of target back into the publish directory.
func (m *Manager) Restore(target model.ObjectTarget) error {
	if m.publisher == nil {
		return ErrNoPublisher
	}
	restored := 0
	for _, suffix := range suffixes() {
		from, err := m.archivePath(target.SpaceSlug, target.ID, suffix)
		if err != nil {
			return err
		}
		if !fsutils.FileExists(from) {
			continue
		}
		to, err := m.publishedPath(target, suffix)
		if err != nil {
			return err
		}
		if err := fsutils.CreateDir(filepath.Dir(to)); err != nil {
			return err
		}
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("failed to restore %s/%s: %w", target.SpaceSlug, target.ID, err)
		}
		restored++
	}
	if restored == 0 {
		return fmt.Errorf("%w: nothing archived for %s/%s", storage.ErrNotFound, target.SpaceSlug, target.ID)
	}
	m.logger.Info("Restored popup", "space", target.SpaceSlug, "object", target.ID)
	return nil
}

// Delete removes target. A soft delete archives the published files; a
// forced delete removes the stored record, the published files and any
// archived copy.
func (m *Manager) Delete(ctx context.Context, target model.ObjectTarget, force bool) error {
	m.logger.Info("Processing delete request", "space", target.SpaceSlug, "object", target.ID, "force", force)
	if !force {
		return m.Archive(target)
	}

	deleter, ok := m.store.(storage.Deleter)
	if !ok {
		return fmt.Errorf("delete: %w", ErrUnsupported)
	}
	m.logger.Warn("Performing force delete", "space", target.SpaceSlug, "object", target.ID)

	var errs []error
	if err := deleter.Delete(ctx, target); err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.logger.Error("Error force deleting popup record", "space", target.SpaceSlug, "object", target.ID, "error", err)
		errs = append(errs, fmt.Errorf("failed to delete record: %w", err))
	}
	if m.publisher != nil {
		if err := m.publisher.Remove(target.SpaceSlug, target.ID); err != nil {
			errs = append(errs, err)
		}
		if err := m.removeArchived(target); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	m.logger.Info("Successfully force deleted popup", "space", target.SpaceSlug, "object", target.ID)
	return nil
}

func (m *Manager) removeArchived(target model.ObjectTarget) error {
	for _, suffix := range suffixes() {
		path, err := m.archivePath(target.SpaceSlug, target.ID, suffix)
		if err != nil {
			return err
		}
		if err := fsutils.RemoveFile(path); err != nil {
			return err
		}
	}
	return nil
}

// Archived lists the objects with archived files, sorted by space and name.
func (m *Manager) Archived() ([]model.ObjectTarget, error) {
	if m.removedDir == "" {
		return nil, ErrNoPublisher
	}
	spaces, err := fsutils.ScanDir(m.removedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.ObjectTarget{}, nil
		}
		return nil, fmt.Errorf("reading removed directory failed: %w", err)
	}
	seen := map[model.ObjectTarget]bool{}
	targets := []model.ObjectTarget{}
	for _, s := range spaces {
		if !s.IsDir() {
			continue
		}
		files, err := fsutils.ScanDir(filepath.Join(m.removedDir, s.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading removed directory failed: %w", err)
		}
		for _, f := range files {
			name := f.Name()
			for _, suffix := range suffixes() {
				if !strings.HasSuffix(name, suffix) {
					continue
				}
				t := model.ObjectTarget{SpaceSlug: s.Name(), ID: strings.TrimSuffix(name, suffix)}
				if !seen[t] {
					seen[t] = true
					targets = append(targets, t)
				}
			}
		}
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].SpaceSlug != targets[j].SpaceSlug {
			return targets[i].SpaceSlug < targets[j].SpaceSlug
		}
		return targets[i].ID < targets[j].ID
	})
	return targets, nil
}

// PurgeArchived permanently deletes every archived popup file. It returns
// the number of objects purged; individual failures are logged and skipped.
func (m *Manager) PurgeArchived() (purged int, err error) {
	m.logger.Info("Attempting to purge all archived popups...")
	targets, err := m.Archived()
	if err != nil {
		return 0, err
	}
	if len(targets) == 0 {
		m.logger.Info("No archived popups found. Nothing to purge.")
		return 0, nil
	}
	failed := 0
	for _, t := range targets {
		if err := m.removeArchived(t); err != nil {
			m.logger.Error("Failed to delete archived popup during purge", "space", t.SpaceSlug, "object", t.ID, "error", err)
			failed++
			continue
		}
		purged++
	}
	m.logger.Info("Purge complete.", "purgedCount", purged, "failures", failed)
	return purged, nil
}

// Export copies the published popups of space into dst, ready to be
// uploaded next to the scene assets.
func (m *Manager) Export(space, dst string) error {
	if m.publisher == nil {
		return ErrNoPublisher
	}
	s, err := fsutils.SafeSegment(space)
	if err != nil {
		return fmt.Errorf("invalid space slug: %w", err)
	}
	src := filepath.Join(m.publisher.BaseDir, s)
	if err := fsutils.CopyDir(src, dst); err != nil {
		return fmt.Errorf("exporting space %s failed: %w", s, err)
	}
	m.logger.Info("Exported popups", "space", s, "destination", dst)
	return nil
}
