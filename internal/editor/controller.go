// Package editor owns the popup editor session: loading a template for a
// scene object, applying edits, re-rendering the affected regions and saving
// the configuration together with its generated artifact.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"showroom-popup-builder/internal/markup"
	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/storage"
	"showroom-popup-builder/internal/templates"
)

// DefaultRequestTimeout bounds every gateway call made by the editor.
const DefaultRequestTimeout = 15 * time.Second

// Options configures a Controller.
type Options struct {
	Registry       *templates.Registry
	Gateway        storage.Gateway
	Reloader       Reloader
	Observer       Observer
	Logger         *slog.Logger
	RequestTimeout time.Duration
	Clock          func() time.Time
}

// Controller drives one editor. At most one session is open at a time.
// State is guarded by mu; gateway calls run outside the lock.
type Controller struct {
	mu         sync.Mutex
	session    *Session
	generation uint64

	registry *templates.Registry
	gateway  storage.Gateway
	reloader Reloader
	observer Observer
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewController creates a controller. Registry and Gateway are required.
func NewController(opts Options) *Controller {
	c := &Controller{
		registry: opts.Registry,
		gateway:  opts.Gateway,
		reloader: opts.Reloader,
		observer: opts.Observer,
		logger:   opts.Logger,
		timeout:  opts.RequestTimeout,
		now:      opts.Clock,
	}
	if c.registry == nil {
		c.registry = templates.NewDefaultRegistry()
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.timeout <= 0 {
		c.timeout = DefaultRequestTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// IsOpen reports whether a session is open (or opening).
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Open starts a session for target. It is a no-op returning false when a
// session is already open. Load failures of any kind fall back to the
// default template and are reported in the status line only.
func (c *Controller) Open(ctx context.Context, target model.ObjectTarget) (bool, error) {
	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		return false, nil
	}
	c.generation++
	sessCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		Object:     target,
		Generation: c.generation,
		loading:    true,
		ctx:        sessCtx,
		cancel:     cancel,
		Status:     c.status(StatusInfo, "Loading…"),
	}
	c.session = s
	c.mu.Unlock()

	c.logger.Info("Opening editor", "space", target.SpaceSlug, "object", target.ID)

	loadCtx, cancelLoad := c.requestContext(ctx, sessCtx)
	stored, loadErr := c.gateway.Load(loadCtx, target)
	cancelLoad()

	t, cfg, status := c.resolveLoaded(target, stored, loadErr)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s {
		c.logger.Info("Discarding load result of a closed session", "object", target.ID)
		return false, ErrSessionClosed
	}
	s.TemplateType = t
	s.Config = cfg
	s.Status = status
	s.loading = false
	return true, nil
}

// resolveLoaded turns a gateway answer into the session's starting state.
func (c *Controller) resolveLoaded(target model.ObjectTarget, stored *model.StoredTemplate, loadErr error) (model.TemplateType, model.Config, Status) {
	fallback := func(level StatusLevel, msg string) (model.TemplateType, model.Config, Status) {
		return model.DefaultTemplateType, c.defaultConfig(model.DefaultTemplateType), c.status(level, msg)
	}

	switch {
	case errors.Is(loadErr, storage.ErrNotFound):
		c.observer.ObserveLoad("not_found")
		return fallback(StatusInfo, "No popup configured yet, starting from the contact template.")
	case loadErr != nil:
		c.observer.ObserveLoad("error")
		c.logger.Warn("Failed to load template, using defaults", "object", target.ID, "error", loadErr)
		return fallback(StatusWarning, "Could not load the saved popup, starting from defaults.")
	}

	t, err := model.ParseTemplateType(stored.TemplateType)
	if err != nil {
		c.observer.ObserveLoad("malformed")
		c.logger.Warn("Stored template has an unknown type, using defaults", "object", target.ID, "type", stored.TemplateType)
		return fallback(StatusWarning, "The saved popup uses an unknown template, starting from defaults.")
	}
	cfg, err := model.DecodeConfig(t, stored.TemplateConfig)
	if err != nil {
		c.observer.ObserveLoad("malformed")
		c.logger.Warn("Stored configuration is malformed, using defaults", "object", target.ID, "type", t, "error", err)
		return t, c.defaultConfig(t), c.status(StatusWarning, "The saved popup could not be read, starting from defaults.")
	}
	c.observer.ObserveLoad("ok")
	return t, cfg, c.status(StatusInfo, "Popup loaded.")
}

// defaultConfig falls back to the schema's zero value when the registry has
// no definition for t.
func (c *Controller) defaultConfig(t model.TemplateType) model.Config {
	if cfg, ok := c.registry.DefaultConfig(t); ok {
		return cfg
	}
	cfg, err := model.NewConfig(t)
	if err != nil {
		cfg, _ = model.NewConfig(model.DefaultTemplateType)
	}
	return cfg
}

// active returns the open, loaded session. Callers hold mu.
func (c *Controller) active() (*Session, error) {
	if c.session == nil {
		return nil, ErrNoSession
	}
	if c.session.loading {
		return nil, fmt.Errorf("%w: still loading", ErrNoSession)
	}
	return c.session, nil
}

var contactSmartLinkPath = regexp.MustCompile(`^contacts\.(\d+)\.(type|value)$`)

// Edit assigns value to the dotted path of the current configuration.
func (c *Controller) Edit(path string, value any) (Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.active()
	if err != nil {
		return Update{}, err
	}

	if _, ok := s.Config.(*model.YoutubeConfig); ok && path == "videoId" {
		// Keep what was typed when it is not (yet) a recognisable video.
		raw, _ := value.(string)
		if id := model.NormalizeVideoID(raw); id != "" {
			value = id
		}
	}

	if err := SetPath(s.Config, path, value); err != nil {
		return Update{}, err
	}

	if cc, ok := s.Config.(*model.ContactConfig); ok {
		if m := contactSmartLinkPath.FindStringSubmatch(path); m != nil {
			i, _ := strconv.Atoi(m[1])
			cc.Contacts[i].RefreshHref()
		}
		cc.Theme.Clamp()
	}

	c.touch(s)

	upd := Update{Form: FormFull, Preview: true}
	if def, ok := c.registry.Get(s.TemplateType); ok {
		form := c.renderForm(def, s)
		if sec, found := form.SectionFor(path); found {
			upd = Update{Form: FormSection, Section: sec.Key, Preview: true}
		}
	}
	return upd, nil
}

// SwitchType discards the current configuration and installs the defaults
// of t. Switching to the current type is a no-op.
func (c *Controller) SwitchType(t model.TemplateType) (Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.active()
	if err != nil {
		return Update{}, err
	}
	if t == s.TemplateType {
		return Update{}, nil
	}
	def, ok := c.registry.Get(t)
	if !ok {
		return Update{}, fmt.Errorf("%w: %q", model.ErrUnknownTemplateType, t)
	}

	s.TemplateType = t
	s.Config = def.DefaultConfig()
	s.Preview = templates.PreviewState{}
	c.generation++
	s.Generation = c.generation
	c.touch(s)
	return Update{Form: FormFull, Preview: true}, nil
}

// AddItem appends an empty entry to a list of the configuration.
func (c *Controller) AddItem(list string) (Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.active()
	if err != nil {
		return Update{}, err
	}
	le, err := c.listEditor(s)
	if err != nil {
		return Update{}, err
	}
	if err := le.AddItem(s.Config, list); err != nil {
		return Update{}, err
	}
	c.touch(s)
	return Update{Form: FormFull, Preview: true}, nil
}

// RemoveItem deletes entry index of a list of the configuration.
func (c *Controller) RemoveItem(list string, index int) (Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.active()
	if err != nil {
		return Update{}, err
	}
	le, err := c.listEditor(s)
	if err != nil {
		return Update{}, err
	}
	if err := le.RemoveItem(s.Config, list, index); err != nil {
		return Update{}, err
	}
	if p, ok := s.Config.(*model.ProductConfig); ok && s.Preview.ActiveImage >= len(p.Images) {
		s.Preview.ActiveImage = 0
	}
	c.touch(s)
	return Update{Form: FormFull, Preview: true}, nil
}

func (c *Controller) listEditor(s *Session) (templates.ListEditor, error) {
	def, ok := c.registry.Get(s.TemplateType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownTemplateType, s.TemplateType)
	}
	le, ok := def.(templates.ListEditor)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotListTemplate, s.TemplateType)
	}
	return le, nil
}

// SelectImage changes the gallery image shown in the preview. It is preview
// state only and does not mark the configuration as changed.
func (c *Controller) SelectImage(index int) (Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.active()
	if err != nil {
		return Update{}, err
	}
	p, ok := s.Config.(*model.ProductConfig)
	if !ok {
		return Update{}, fmt.Errorf("%s template has no gallery", s.TemplateType)
	}
	if index < 0 || index >= len(p.Images) {
		return Update{}, fmt.Errorf("image index %d out of range", index)
	}
	s.Preview.ActiveImage = index
	return Update{Preview: true}, nil
}

// touch marks the configuration as changed. Callers hold mu.
func (c *Controller) touch(s *Session) {
	s.HasUnsavedChanges = true
	s.revision++
}

// Save generates the artifact from a snapshot of the configuration and hands
// both to the gateway. Only one save runs per session; a concurrent call
// returns ErrSaveInFlight without reaching the gateway.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	s, err := c.active()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if s.IsSaving {
		c.mu.Unlock()
		return ErrSaveInFlight
	}
	s.IsSaving = true
	s.Status = c.status(StatusInfo, "Saving…")
	snapshot := s.Config.Clone()
	t := s.TemplateType
	target := s.Object
	rev := s.revision
	sessCtx := s.ctx
	c.mu.Unlock()

	started := c.now()
	req, err := c.buildSaveRequest(ctx, target, t, snapshot)
	if err == nil {
		saveCtx, cancel := c.requestContext(ctx, sessCtx)
		err = c.gateway.Save(saveCtx, req)
		cancel()
	}
	elapsed := c.now().Sub(started)

	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		c.observer.ObserveSave("discarded", elapsed)
		c.logger.Info("Discarding save result of a closed session", "object", target.ID, "error", err)
		if err != nil {
			return err
		}
		return ErrSessionClosed
	}
	s.IsSaving = false
	if err != nil {
		s.Status = c.status(StatusError, "Save failed: "+err.Error())
		c.mu.Unlock()
		c.observer.ObserveSave("error", elapsed)
		c.logger.Error("Failed to save popup template", "space", target.SpaceSlug, "object", target.ID, "error", err)
		return err
	}
	if s.revision == rev {
		s.HasUnsavedChanges = false
	}
	s.Status = c.status(StatusSuccess, "Saved.")
	c.mu.Unlock()

	c.observer.ObserveSave("ok", elapsed)
	c.logger.Info("Saved popup template", "space", target.SpaceSlug, "object", target.ID, "type", t, "elapsed", elapsed)

	if c.reloader != nil {
		reloadCtx, cancel := c.requestContext(ctx, sessCtx)
		rerr := c.reloader.Reload(reloadCtx, target)
		cancel()
		if rerr != nil {
			c.logger.Warn("Saved popup could not be reloaded in the scene", "object", target.ID, "error", rerr)
			c.mu.Lock()
			if c.session == s {
				s.Status = c.status(StatusWarning, "Saved, but the scene popup could not be refreshed.")
			}
			c.mu.Unlock()
		}
	}
	return nil
}

// buildSaveRequest runs every step that can fail before any I/O happens.
func (c *Controller) buildSaveRequest(ctx context.Context, target model.ObjectTarget, t model.TemplateType, cfg model.Config) (req storage.SaveRequest, err error) {
	def, ok := c.registry.Get(t)
	if !ok {
		return req, fmt.Errorf("%w: %q", model.ErrUnknownTemplateType, t)
	}
	defer func() {
		if r := recover(); r != nil {
			c.observer.ObserveRenderFailure(t)
			c.logger.Error("Template panicked while generating artifact", "type", t, "panic", r)
			err = fmt.Errorf("failed to generate %s popup: %v", t, r)
		}
	}()
	artifact, err := def.GenerateArtifact(target.ID, cfg, c.now())
	if err != nil {
		return req, fmt.Errorf("failed to generate %s popup: %w", t, err)
	}
	raw, err := model.EncodeConfig(cfg)
	if err != nil {
		return req, err
	}
	return storage.SaveRequest{
		Target:         target,
		TemplateType:   t,
		TemplateConfig: raw,
		Artifact:       artifact,
		AuthToken:      storage.AuthToken(ctx),
	}, nil
}

// Close ends the session. With unsaved changes confirm is asked first; a
// refusal (or a nil confirm) keeps the session and returns ErrDiscardRefused.
// Closing cancels the session's in-flight requests.
func (c *Controller) Close(confirm Confirmer) (bool, error) {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return true, nil
	}
	dirty := s.HasUnsavedChanges
	c.mu.Unlock()

	if dirty && (confirm == nil || !confirm.ConfirmDiscard()) {
		return false, ErrDiscardRefused
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s {
		return true, nil
	}
	s.cancel()
	c.session = nil
	c.logger.Info("Closed editor", "object", s.Object.ID, "discarded_changes", s.HasUnsavedChanges)
	return true, nil
}

// Snapshot returns a copy of the session state for inspection.
func (c *Controller) Snapshot() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	out := *c.session
	if out.Config != nil {
		out.Config = out.Config.Clone()
	}
	return out, true
}

// Render renders the whole editor: template picker data, form and preview.
func (c *Controller) Render() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{Templates: c.registry.List()}
	s := c.session
	if s == nil {
		return v
	}
	v.Open = true
	v.Loading = s.loading
	v.Object = s.Object
	v.TemplateType = s.TemplateType
	v.Status = s.Status
	v.HasUnsavedChanges = s.HasUnsavedChanges
	v.IsSaving = s.IsSaving
	v.Generation = s.Generation
	if s.loading {
		return v
	}
	if p, ok := s.Config.(*model.ProductConfig); ok {
		v.GalleryCount = len(p.Images)
	}

	def, ok := c.registry.Get(s.TemplateType)
	if !ok {
		v.Form = templates.Unavailable(s.TemplateType)
		v.Preview = templates.Unavailable(s.TemplateType)
		return v
	}
	v.Form = c.renderForm(def, s).Node()
	v.Preview = c.renderPreview(def, s)
	return v
}

// RenderSection renders one form section by key.
func (c *Controller) RenderSection(key string) (*markup.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.active()
	if err != nil {
		return nil, err
	}
	def, ok := c.registry.Get(s.TemplateType)
	if !ok {
		return templates.Unavailable(s.TemplateType), nil
	}
	sec, ok := c.renderForm(def, s).Section(key)
	if !ok {
		return nil, fmt.Errorf("unknown form section %q", key)
	}
	return sec.Node, nil
}

// RenderPreview renders the live preview of the current configuration.
func (c *Controller) RenderPreview() (*markup.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.active()
	if err != nil {
		return nil, err
	}
	def, ok := c.registry.Get(s.TemplateType)
	if !ok {
		return templates.Unavailable(s.TemplateType), nil
	}
	return c.renderPreview(def, s), nil
}

// renderForm isolates definition panics. Callers hold mu.
func (c *Controller) renderForm(def templates.Definition, s *Session) (form templates.Form) {
	defer func() {
		if r := recover(); r != nil {
			c.observer.ObserveRenderFailure(s.TemplateType)
			c.logger.Error("Template panicked while rendering form", "type", s.TemplateType, "panic", r)
			form = templates.Form{Sections: []templates.Section{{Key: "error", Node: templates.RenderFailed(s.TemplateType)}}}
		}
	}()
	return def.RenderForm(s.Config)
}

// renderPreview isolates definition panics. Callers hold mu.
func (c *Controller) renderPreview(def templates.Definition, s *Session) (n *markup.Node) {
	defer func() {
		if r := recover(); r != nil {
			c.observer.ObserveRenderFailure(s.TemplateType)
			c.logger.Error("Template panicked while rendering preview", "type", s.TemplateType, "panic", r)
			n = templates.RenderFailed(s.TemplateType)
		}
	}()
	return def.RenderPreview(s.Config, s.Preview)
}

// requestContext bounds a gateway call by the timeout, the session lifetime
// and the caller's context.
func (c *Controller) requestContext(caller, session context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(session, c.timeout)
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) status(level StatusLevel, msg string) Status {
	return Status{Level: level, Message: msg, At: c.now()}
}
