package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom-popup-builder/internal/markup"
	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/storage"
	"showroom-popup-builder/internal/templates"
)

type fakeGateway struct {
	mu      sync.Mutex
	stored  map[string]*model.StoredTemplate
	loadErr error
	saveErr error
	saves   []storage.SaveRequest

	// When block is set, Save waits for it (or for cancellation) after
	// signalling entered.
	block   chan struct{}
	entered chan struct{}
	// loadBlocks makes Load wait for cancellation.
	loadBlocks bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{stored: make(map[string]*model.StoredTemplate)}
}

func (g *fakeGateway) Load(ctx context.Context, target model.ObjectTarget) (*model.StoredTemplate, error) {
	if g.loadBlocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	st, ok := g.stored[target.ID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return st, nil
}

func (g *fakeGateway) Save(ctx context.Context, req storage.SaveRequest) error {
	g.mu.Lock()
	g.saves = append(g.saves, req)
	block, entered, saveErr := g.block, g.entered, g.saveErr
	g.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return saveErr
}

func (g *fakeGateway) saveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.saves)
}

type fakeReloader struct {
	mu      sync.Mutex
	targets []model.ObjectTarget
	err     error
}

func (r *fakeReloader) Reload(_ context.Context, target model.ObjectTarget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, target)
	return r.err
}

type countingObserver struct {
	mu       sync.Mutex
	loads    []string
	saves    []string
	failures int
}

func (o *countingObserver) ObserveLoad(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loads = append(o.loads, outcome)
}

func (o *countingObserver) ObserveSave(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.saves = append(o.saves, outcome)
}

func (o *countingObserver) ObserveRenderFailure(model.TemplateType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

var target = model.ObjectTarget{ID: "c1_obj", SpaceSlug: "atlantis", ZoneSlug: "hall"}

func newTestController(t *testing.T, g *fakeGateway) *Controller {
	t.Helper()
	return NewController(Options{Gateway: g, RequestTimeout: time.Second})
}

func openDefault(t *testing.T, c *Controller) {
	t.Helper()
	opened, err := c.Open(context.Background(), target)
	require.NoError(t, err)
	require.True(t, opened)
}

func TestDefaultContactScenario(t *testing.T) {
	g := newFakeGateway()
	c := newTestController(t, g)
	openDefault(t, c)

	s, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, model.TemplateContact, s.TemplateType)
	cc, ok := s.Config.(*model.ContactConfig)
	require.True(t, ok)
	assert.NotEmpty(t, cc.Contacts)
	assert.False(t, s.HasUnsavedChanges)

	view := c.Render()
	require.NotNil(t, view.Preview)
	assert.Contains(t, markup.Render(view.Preview), "Jean Dupont")

	require.NoError(t, c.Save(context.Background()))
	require.Equal(t, 1, g.saveCount())

	req := g.saves[0]
	assert.Equal(t, "c1_obj", req.Target.ID)
	assert.Equal(t, model.TemplateContact, req.TemplateType)
	got, err := model.DecodeConfig(model.TemplateContact, req.TemplateConfig)
	require.NoError(t, err)
	assert.Equal(t, templates.Contact{}.DefaultConfig(), got)
	assert.Contains(t, req.Artifact.JS, "c1_obj")
}

func TestOpenIsSingleFlight(t *testing.T) {
	c := newTestController(t, newFakeGateway())
	openDefault(t, c)

	opened, err := c.Open(context.Background(), model.ObjectTarget{ID: "other", SpaceSlug: "atlantis"})
	require.NoError(t, err)
	assert.False(t, opened)

	s, _ := c.Snapshot()
	assert.Equal(t, "c1_obj", s.Object.ID)
}

func TestOpenFallsBackToDefaults(t *testing.T) {
	testCases := []struct {
		name   string
		stored *model.StoredTemplate
		err    error
		level  StatusLevel
	}{
		{"not found", nil, nil, StatusInfo},
		{"network error", nil, errors.New("connection refused"), StatusWarning},
		{"unknown type", &model.StoredTemplate{TemplateType: "carousel", TemplateConfig: `{}`}, nil, StatusWarning},
		{"malformed json", &model.StoredTemplate{TemplateType: "contact", TemplateConfig: `{"name":`}, nil, StatusWarning},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := newFakeGateway()
			g.loadErr = tc.err
			if tc.stored != nil {
				g.stored[target.ID] = tc.stored
			}
			c := newTestController(t, g)
			openDefault(t, c)

			s, _ := c.Snapshot()
			assert.Equal(t, model.TemplateContact, s.TemplateType)
			assert.Equal(t, templates.Contact{}.DefaultConfig(), s.Config)
			assert.Equal(t, tc.level, s.Status.Level)
		})
	}
}

func TestOpenLoadsStoredTemplate(t *testing.T) {
	g := newFakeGateway()
	g.stored[target.ID] = &model.StoredTemplate{
		TemplateType:   "youtube",
		TemplateConfig: `{"title":"Launch","videoId":"dQw4w9WgXcQ","mute":true}`,
	}
	obs := &countingObserver{}
	c := NewController(Options{Gateway: g, Observer: obs})
	openDefault(t, c)

	s, _ := c.Snapshot()
	assert.Equal(t, model.TemplateYoutube, s.TemplateType)
	assert.Equal(t, &model.YoutubeConfig{Title: "Launch", VideoID: "dQw4w9WgXcQ", Mute: true}, s.Config)
	assert.Equal(t, []string{"ok"}, obs.loads)
}

func TestOpenTimesOut(t *testing.T) {
	g := newFakeGateway()
	g.loadBlocks = true
	c := NewController(Options{Gateway: g, RequestTimeout: 20 * time.Millisecond})
	openDefault(t, c)

	s, _ := c.Snapshot()
	assert.Equal(t, model.TemplateContact, s.TemplateType)
	assert.Equal(t, StatusWarning, s.Status.Level)
}

func TestOperationsNeedSession(t *testing.T) {
	c := newTestController(t, newFakeGateway())

	_, err := c.Edit("name", "x")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, c.Save(context.Background()), ErrNoSession)
	_, err = c.RenderPreview()
	assert.ErrorIs(t, err, ErrNoSession)

	closed, err := c.Close(nil)
	require.NoError(t, err)
	assert.True(t, closed)
	assert.False(t, c.Render().Open)
}

func TestEditSmartLink(t *testing.T) {
	c := newTestController(t, newFakeGateway())
	openDefault(t, c)

	upd, err := c.Edit("contacts.0.value", "06 12 34 56 78")
	require.NoError(t, err)
	assert.Equal(t, Update{Form: FormSection, Section: "contacts", Preview: true}, upd)

	_, err = c.Edit("contacts.2.type", "email")
	require.NoError(t, err)
	_, err = c.Edit("contacts.2.value", " a@b.com ")
	require.NoError(t, err)

	s, _ := c.Snapshot()
	cc := s.Config.(*model.ContactConfig)
	assert.Equal(t, "tel:0612345678", cc.Contacts[0].Href)
	assert.Equal(t, "mailto:a@b.com", cc.Contacts[2].Href)
	assert.True(t, s.HasUnsavedChanges)
}

func TestEditRejectsNonCanonicalContactIndex(t *testing.T) {
	c := newTestController(t, newFakeGateway())
	openDefault(t, c)

	for _, path := range []string{"contacts.+0.value", "contacts.00.value", "contacts.9.value", "contacts.-1.value"} {
		_, err := c.Edit(path, "06 12 34 56 78")
		assert.ErrorIs(t, err, ErrInvalidPath, path)
	}

	s, _ := c.Snapshot()
	cc := s.Config.(*model.ContactConfig)
	assert.Equal(t, "01 23 45 67 89", cc.Contacts[0].Value)
	assert.Equal(t, "tel:0123456789", cc.Contacts[0].Href)
	assert.False(t, s.HasUnsavedChanges)
}

func TestEditClampsContactTheme(t *testing.T) {
	c := newTestController(t, newFakeGateway())
	openDefault(t, c)

	_, err := c.Edit("theme.hue", "9999")
	require.NoError(t, err)
	_, err = c.Edit("theme.glow", "-40")
	require.NoError(t, err)

	s, _ := c.Snapshot()
	assert.Equal(t, model.ContactTheme{Hue: 360, Glow: 0}, s.Config.(*model.ContactConfig).Theme)
}

func TestEditTargetsSection(t *testing.T) {
	c := newTestController(t, newFakeGateway())
	openDefault(t, c)

	upd, err := c.Edit("theme.hue", "120")
	require.NoError(t, err)
	assert.Equal(t, FormSection, upd.Form)
	assert.Equal(t, "theme", upd.Section)

	sec, err := c.RenderSection("theme")
	require.NoError(t, err)
	assert.Contains(t, markup.Render(sec), `value="120"`)

	_, err = c.RenderSection("nope")
	assert.Error(t, err)

	_, err = c.Edit("nope", "x")
	assert.ErrorIs(t, err, ErrInvalidPath)
	s, _ := c.Snapshot()
	assert.True(t, s.HasUnsavedChanges)
}

func TestEditNormalizesYoutubeLinks(t *testing.T) {
	c := newTestController(t, newFakeGateway())
	openDefault(t, c)

	upd, err := c.SwitchType(model.TemplateYoutube)
	require.NoError(t, err)
	assert.Equal(t, FormFull, upd.Form)

	_, err = c.Edit("videoId", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10")
	require.NoError(t, err)
	s, _ := c.Snapshot()
	assert.Equal(t, "dQw4w9WgXcQ", s.Config.(*model.YoutubeConfig).VideoID)

	_, err = c.Edit("videoId", "not a video")
	require.NoError(t, err)
	s, _ = c.Snapshot()
	assert.Equal(t, "not a video", s.Config.(*model.YoutubeConfig).VideoID)
}

func TestSwitchTypeInstallsFreshDefaults(t *testing.T) {
	c := newTestController(t, newFakeGateway())
	openDefault(t, c)
	before, _ := c.Snapshot()

	_, err := c.Edit("name", "Changed")
	require.NoError(t, err)

	_, err = c.SwitchType(model.TemplateProduct)
	require.NoError(t, err)
	s, _ := c.Snapshot()
	assert.Equal(t, templates.Product{}.DefaultConfig(), s.Config)
	assert.Greater(t, s.Generation, before.Generation)
	assert.True(t, s.HasUnsavedChanges)

	upd, err := c.SwitchType(model.TemplateProduct)
	require.NoError(t, err)
	assert.Equal(t, Update{}, upd)

	_, err = c.SwitchType("carousel")
	assert.ErrorIs(t, err, model.ErrUnknownTemplateType)
}

func TestGalleryEditing(t *testing.T) {
	c := newTestController(t, newFakeGateway())
	openDefault(t, c)
	_, err := c.SwitchType(model.TemplateProduct)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err = c.AddItem("images")
	}
	assert.ErrorIs(t, err, templates.ErrGalleryFull)
	s, _ := c.Snapshot()
	assert.Len(t, s.Config.(*model.ProductConfig).Images, model.MaxProductImages)
	assert.Equal(t, model.MaxProductImages, c.Render().GalleryCount)

	upd, err := c.SelectImage(4)
	require.NoError(t, err)
	assert.Equal(t, Update{Preview: true}, upd)
	_, err = c.SelectImage(9)
	assert.Error(t, err)

	upd, err = c.RemoveItem("images", 4)
	require.NoError(t, err)
	assert.Equal(t, FormFull, upd.Form)
	s, _ = c.Snapshot()
	assert.Equal(t, 0, s.Preview.ActiveImage)
	assert.Len(t, s.Config.(*model.ProductConfig).Images, 4)

	_, err = c.SwitchType(model.TemplateIframe)
	require.NoError(t, err)
	_, err = c.AddItem("images")
	assert.ErrorIs(t, err, ErrNotListTemplate)
}

func TestSaveIsSingleFlight(t *testing.T) {
	g := newFakeGateway()
	g.block = make(chan struct{})
	g.entered = make(chan struct{}, 1)
	c := newTestController(t, g)
	openDefault(t, c)

	done := make(chan error, 1)
	go func() { done <- c.Save(context.Background()) }()
	<-g.entered

	assert.ErrorIs(t, c.Save(context.Background()), ErrSaveInFlight)
	assert.True(t, c.Render().IsSaving)

	close(g.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, g.saveCount())
	assert.False(t, c.Render().IsSaving)
}

func TestEditDuringSaveStaysUnsaved(t *testing.T) {
	g := newFakeGateway()
	g.block = make(chan struct{})
	g.entered = make(chan struct{}, 1)
	c := newTestController(t, g)
	openDefault(t, c)

	done := make(chan error, 1)
	go func() { done <- c.Save(context.Background()) }()
	<-g.entered

	_, err := c.Edit("name", "Typed while saving")
	require.NoError(t, err)
	close(g.block)
	require.NoError(t, <-done)

	s, _ := c.Snapshot()
	assert.True(t, s.HasUnsavedChanges)
	got, err := model.DecodeConfig(model.TemplateContact, g.saves[0].TemplateConfig)
	require.NoError(t, err)
	assert.Equal(t, "Jean Dupont", got.(*model.ContactConfig).Name)
}

func TestSaveFailureKeepsChanges(t *testing.T) {
	g := newFakeGateway()
	g.saveErr = errors.New("gateway said no")
	obs := &countingObserver{}
	c := NewController(Options{Gateway: g, Observer: obs})
	openDefault(t, c)
	_, err := c.Edit("name", "Ada")
	require.NoError(t, err)

	err = c.Save(context.Background())
	require.Error(t, err)

	s, _ := c.Snapshot()
	assert.True(t, s.HasUnsavedChanges)
	assert.False(t, s.IsSaving)
	assert.Equal(t, StatusError, s.Status.Level)
	assert.Equal(t, []string{"error"}, obs.saves)

	g.saveErr = nil
	require.NoError(t, c.Save(context.Background()))
	s, _ = c.Snapshot()
	assert.False(t, s.HasUnsavedChanges)
	assert.Equal(t, StatusSuccess, s.Status.Level)
}

func TestSaveTriggersReload(t *testing.T) {
	r := &fakeReloader{}
	c := NewController(Options{Gateway: newFakeGateway(), Reloader: r})
	openDefault(t, c)

	require.NoError(t, c.Save(context.Background()))
	assert.Equal(t, []model.ObjectTarget{target}, r.targets)

	r.err = errors.New("script not found")
	require.NoError(t, c.Save(context.Background()))
	s, _ := c.Snapshot()
	assert.Equal(t, StatusWarning, s.Status.Level)
}

func TestSavePassesAuthToken(t *testing.T) {
	g := newFakeGateway()
	c := newTestController(t, g)
	openDefault(t, c)

	require.NoError(t, c.Save(storage.WithAuthToken(context.Background(), "tok")))
	assert.Equal(t, "tok", g.saves[0].AuthToken)
}

func TestCloseRequiresConfirmation(t *testing.T) {
	c := newTestController(t, newFakeGateway())
	openDefault(t, c)
	_, err := c.Edit("name", "Ada")
	require.NoError(t, err)

	closed, err := c.Close(nil)
	assert.ErrorIs(t, err, ErrDiscardRefused)
	assert.False(t, closed)
	closed, err = c.Close(Confirmed(false))
	assert.ErrorIs(t, err, ErrDiscardRefused)
	assert.False(t, closed)
	assert.True(t, c.IsOpen())

	asked := false
	closed, err = c.Close(ConfirmFunc(func() bool { asked = true; return true }))
	require.NoError(t, err)
	assert.True(t, closed)
	assert.True(t, asked)

	openDefault(t, c)
	s, _ := c.Snapshot()
	assert.Equal(t, "Jean Dupont", s.Config.(*model.ContactConfig).Name)
	assert.False(t, s.HasUnsavedChanges)
}

func TestCloseWithoutChangesSkipsConfirmation(t *testing.T) {
	c := newTestController(t, newFakeGateway())
	openDefault(t, c)

	closed, err := c.Close(ConfirmFunc(func() bool {
		t.Fatal("confirmation must not be asked")
		return false
	}))
	require.NoError(t, err)
	assert.True(t, closed)
	assert.False(t, c.IsOpen())
}

func TestCloseCancelsInFlightSave(t *testing.T) {
	g := newFakeGateway()
	g.block = make(chan struct{})
	g.entered = make(chan struct{}, 1)
	c := newTestController(t, g)
	openDefault(t, c)

	done := make(chan error, 1)
	go func() { done <- c.Save(context.Background()) }()
	<-g.entered

	closed, err := c.Close(Confirmed(true))
	require.NoError(t, err)
	assert.True(t, closed)
	assert.ErrorIs(t, <-done, context.Canceled)

	g.block = nil
	g.entered = nil
	openDefault(t, c)
	s, _ := c.Snapshot()
	assert.False(t, s.IsSaving)
}

type brokenInfo struct{ templates.Info }

func (brokenInfo) RenderPreview(model.Config, templates.PreviewState) *markup.Node {
	panic("boom")
}

func (brokenInfo) GenerateArtifact(string, model.Config, time.Time) (model.Artifact, error) {
	panic("boom")
}

func TestBrokenTemplateIsIsolated(t *testing.T) {
	reg := templates.NewDefaultRegistry()
	reg.Register(brokenInfo{})
	g := newFakeGateway()
	obs := &countingObserver{}
	c := NewController(Options{Registry: reg, Gateway: g, Observer: obs})
	openDefault(t, c)

	_, err := c.SwitchType(model.TemplateInfo)
	require.NoError(t, err)

	view := c.Render()
	require.NotNil(t, view.Preview)
	assert.Contains(t, markup.Render(view.Preview), "could not be rendered")
	assert.NotNil(t, view.Form)

	assert.Error(t, c.Save(context.Background()))
	assert.Equal(t, 0, g.saveCount())
	assert.GreaterOrEqual(t, obs.failures, 2)

	_, err = c.SwitchType(model.TemplateContact)
	require.NoError(t, err)
	assert.Contains(t, markup.Render(c.Render().Preview), "Jean Dupont")
}

func TestUnregisteredTypeRendersPlaceholder(t *testing.T) {
	reg := templates.NewRegistry()
	reg.Register(templates.Contact{})
	g := newFakeGateway()
	g.stored[target.ID] = &model.StoredTemplate{TemplateType: "iframe", TemplateConfig: `{"url":"https://example.com"}`}
	c := NewController(Options{Registry: reg, Gateway: g})
	openDefault(t, c)

	view := c.Render()
	assert.Equal(t, model.TemplateIframe, view.TemplateType)
	assert.Contains(t, markup.Render(view.Preview), "unavailable")

	_, err := c.SwitchType(model.TemplateContact)
	require.NoError(t, err)
	assert.Contains(t, markup.Render(c.Render().Preview), "Jean Dupont")
}
