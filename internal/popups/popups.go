// Package popups keeps the popup scripts loaded into a scene, keyed by object
// name, and reloads them after an editor save.
package popups

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"showroom-popup-builder/internal/model"
)

// ErrNotLoaded is returned when no popup is registered for an object.
var ErrNotLoaded = errors.New("popup not loaded")

// Handle is one loaded popup. Script registers the popup in the browser
// (window.atlantisPopups[ObjectID]) and exposes show, close and config.
type Handle struct {
	ObjectID  string
	SpaceSlug string
	Script    []byte
	Version   int64
	LoadedAt  time.Time
	// Revision is the digest reported by a Revisioner loader, zero otherwise.
	Revision uint64
}

// Loader fetches the published popup script of an object. version is a cache
// busting value; zero means any copy will do.
type Loader interface {
	Fetch(ctx context.Context, target model.ObjectTarget, version int64) ([]byte, error)
}

// Revisioner is implemented by loaders that read a local copy of the
// published scripts. Load asks them for the current revision on every call,
// so a popup saved, republished or archived by another process is seen
// without a restart.
type Revisioner interface {
	Revision(ctx context.Context, target model.ObjectTarget) (uint64, error)
}

// Service owns the loaded popups of one scene.
type Service struct {
	mu      sync.RWMutex
	handles map[string]*Handle

	space  string
	loader Loader
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// Options configures a Service.
type Options struct {
	// Space is used for loads that only know the object name.
	Space    string
	Loader   Loader
	Cache    Cache
	CacheTTL time.Duration
	Logger   *slog.Logger
	Clock    func() time.Time
}

// NewService creates an empty popup service.
func NewService(opts Options) *Service {
	s := &Service{
		handles: make(map[string]*Handle),
		space:   opts.Space,
		loader:  opts.Loader,
		cache:   opts.Cache,
		ttl:     opts.CacheTTL,
		logger:  opts.Logger,
		now:     opts.Clock,
	}
	if s.cache == nil {
		s.cache = NewMemoryCache()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Space returns the default space slug of the service.
func (s *Service) Space() string { return s.space }

// Get returns the loaded popup of objectID.
func (s *Service) Get(objectID string) (*Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[objectID]
	return h, ok
}

// IsLoaded reports whether objectID has a registered popup.
func (s *Service) IsLoaded(objectID string) bool {
	_, ok := s.Get(objectID)
	return ok
}

// Loaded lists the object names with a registered popup.
func (s *Service) Loaded() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.handles))
	for id := range s.handles {
		out = append(out, id)
	}
	return out
}

// Load registers the popup of objectID in the default space. Loaders that
// implement Revisioner are asked whether the registered script is still
// current; other loaders go through the shared cache first.
func (s *Service) Load(ctx context.Context, objectID string) (*Handle, error) {
	target := model.ObjectTarget{ID: objectID, SpaceSlug: s.space}
	if rv, ok := s.loader.(Revisioner); ok {
		return s.revalidate(ctx, rv, target)
	}
	if h, ok := s.Get(objectID); ok {
		return h, nil
	}

	key := cacheKey(target)
	if script, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("Popup cache read failed", "object", objectID, "error", err)
	} else if ok {
		return s.register(target, []byte(script), 0, 0), nil
	}
	return s.fetch(ctx, target, 0)
}

func (s *Service) revalidate(ctx context.Context, rv Revisioner, target model.ObjectTarget) (*Handle, error) {
	rev, err := rv.Revision(ctx, target)
	if err != nil {
		if _, ok := s.Get(target.ID); ok {
			s.logger.Info("Popup no longer published", "space", target.SpaceSlug, "object", target.ID)
			s.Forget(ctx, target)
		}
		return nil, fmt.Errorf("failed to load popup %s/%s: %w", target.SpaceSlug, target.ID, err)
	}
	h, ok := s.Get(target.ID)
	if !ok {
		return s.fetch(ctx, target, 0)
	}
	if h.Revision == rev {
		return h, nil
	}
	s.logger.Info("Popup changed since it was loaded", "space", target.SpaceSlug, "object", target.ID)
	return s.fetch(ctx, target, s.now().UnixMilli())
}

// Reload re-fetches the popup of target with a cache-busting version and
// replaces both the registered handle and the cached copy.
func (s *Service) Reload(ctx context.Context, target model.ObjectTarget) error {
	if target.SpaceSlug == "" {
		target.SpaceSlug = s.space
	}
	_, err := s.fetch(ctx, target, s.now().UnixMilli())
	return err
}

func (s *Service) fetch(ctx context.Context, target model.ObjectTarget, version int64) (*Handle, error) {
	if s.loader == nil {
		return nil, fmt.Errorf("%w: %s has no loader", ErrNotLoaded, target.ID)
	}
	script, err := s.loader.Fetch(ctx, target, version)
	if err != nil {
		return nil, fmt.Errorf("failed to load popup %s/%s: %w", target.SpaceSlug, target.ID, err)
	}
	if err := s.cache.Set(ctx, cacheKey(target), string(script), s.ttl); err != nil {
		s.logger.Warn("Popup cache write failed", "object", target.ID, "error", err)
	}
	var rev uint64
	if _, ok := s.loader.(Revisioner); ok {
		rev = Digest(script)
	}
	h := s.register(target, script, version, rev)
	s.logger.Info("Loaded popup", "space", target.SpaceSlug, "object", target.ID, "bytes", len(script), "version", version)
	return h, nil
}

func (s *Service) register(target model.ObjectTarget, script []byte, version int64, rev uint64) *Handle {
	h := &Handle{
		ObjectID:  target.ID,
		SpaceSlug: target.SpaceSlug,
		Script:    script,
		Version:   version,
		LoadedAt:  s.now(),
		Revision:  rev,
	}
	s.mu.Lock()
	s.handles[target.ID] = h
	s.mu.Unlock()
	return h
}

// Forget drops the registered popup and its cached copy so the next click
// loads a fresh one.
func (s *Service) Forget(ctx context.Context, target model.ObjectTarget) {
	if target.SpaceSlug == "" {
		target.SpaceSlug = s.space
	}
	s.mu.Lock()
	delete(s.handles, target.ID)
	s.mu.Unlock()
	if err := s.cache.Delete(ctx, cacheKey(target)); err != nil {
		s.logger.Warn("Popup cache delete failed", "object", target.ID, "error", err)
	}
}

func cacheKey(t model.ObjectTarget) string {
	return "popup:" + t.SpaceSlug + ":" + t.ID
}
