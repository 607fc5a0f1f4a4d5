package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom-popup-builder/internal/config"
	"showroom-popup-builder/internal/events"
	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/popups"
	"showroom-popup-builder/internal/storage"
	"showroom-popup-builder/internal/templates"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	root := t.TempDir()
	cfg.Storage.Path = filepath.Join(root, "templates")
	cfg.Storage.PublishPath = filepath.Join(root, "published")
	return cfg
}

func TestBuildLocalStack(t *testing.T) {
	cfg := testConfig(t)
	d, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer d.Close()

	assert.IsType(t, &storage.JSONStore{}, d.Store)
	assert.IsType(t, &events.NotifyingGateway{}, d.Gateway, "saves go through the notifier")
	assert.IsType(t, events.Nop{}, d.Events)
	assert.IsType(t, popups.PublisherLoader{}, d.loader())
	assert.Equal(t, filepath.Join(filepath.Dir(cfg.Storage.PublishPath), "removed"), d.Catalog.RemovedDir())

	cfgVal := templates.Contact{}.DefaultConfig()
	raw, err := model.EncodeConfig(cfgVal)
	require.NoError(t, err)
	a, err := templates.Contact{}.GenerateArtifact("c1_obj", cfgVal, time.Now())
	require.NoError(t, err)
	target := model.ObjectTarget{ID: "c1_obj", SpaceSlug: "atlantis"}
	require.NoError(t, d.Gateway.Save(context.Background(), storage.SaveRequest{
		Target: target, TemplateType: model.TemplateContact, TemplateConfig: raw, Artifact: a,
	}))

	h, err := d.Popups.Load(context.Background(), "c1_obj")
	require.NoError(t, err)
	assert.Equal(t, a.JS, string(h.Script))

	entries, err := d.Catalog.List(context.Background(), "atlantis")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Published)
}

func TestBuildRemoteUsesHTTPLoader(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = storage.BackendRemote
	cfg.API.BaseURL = "http://api.invalid"
	d, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer d.Close()

	assert.IsType(t, &popups.HTTPLoader{}, d.loader())
}

func TestBuildRejectsBadStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "ftp"
	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestBuildWithoutPublishDirReadsStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.PublishPath = ""
	d, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer d.Close()

	assert.IsType(t, popups.StoreLoader{}, d.loader())
}

// saveContact stores a contact popup named name for c1_obj through d.
func saveContact(t *testing.T, d *Deps, name string) {
	t.Helper()
	cfg := templates.Contact{}.DefaultConfig().(*model.ContactConfig)
	cfg.Name = name
	raw, err := model.EncodeConfig(cfg)
	require.NoError(t, err)
	a, err := templates.Contact{}.GenerateArtifact("c1_obj", cfg, time.Now())
	require.NoError(t, err)
	require.NoError(t, d.Gateway.Save(context.Background(), storage.SaveRequest{
		Target:         model.ObjectTarget{ID: "c1_obj", SpaceSlug: d.Config.Popups.Space},
		TemplateType:   model.TemplateContact,
		TemplateConfig: raw,
		Artifact:       a,
	}))
}

// buildPair builds an admin and a scene process on the same configuration.
func buildPair(t *testing.T, cfg *config.Config) (admin, scene *Deps) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	admin, err := Build(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = admin.Close() })
	scene, err = Build(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = scene.Close() })
	return admin, scene
}

func TestSceneSeesSavesFromAnotherProcess(t *testing.T) {
	ctx := context.Background()
	admin, scene := buildPair(t, testConfig(t))

	saveContact(t, admin, "First Name")
	h, err := scene.Popups.Load(ctx, "c1_obj")
	require.NoError(t, err)
	assert.Contains(t, string(h.Script), "First Name")
	assert.Zero(t, h.Version)

	saveContact(t, admin, "Second Name")
	h, err = scene.Popups.Load(ctx, "c1_obj")
	require.NoError(t, err)
	assert.Contains(t, string(h.Script), "Second Name")
	assert.NotContains(t, string(h.Script), "First Name")
	assert.NotZero(t, h.Version, "a changed script gets a cache-busting version")

	again, err := scene.Popups.Load(ctx, "c1_obj")
	require.NoError(t, err)
	assert.Same(t, h, again, "an unchanged script keeps its handle")
}

func TestSQLBackendPublishesForTheScene(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = storage.BackendSQL
	cfg.Storage.SQLDSN = filepath.Join(t.TempDir(), "popups.db")
	admin, scene := buildPair(t, cfg)

	saveContact(t, admin, "First Name")
	saveContact(t, admin, "Second Name")
	h, err := scene.Popups.Load(context.Background(), "c1_obj")
	require.NoError(t, err)
	assert.Contains(t, string(h.Script), "Second Name")
}

func TestArchivedPopupIsNotServed(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	admin, scene := buildPair(t, cfg)
	target := model.ObjectTarget{ID: "c1_obj", SpaceSlug: cfg.Popups.Space}

	saveContact(t, admin, "First Name")
	_, err := scene.Popups.Load(ctx, "c1_obj")
	require.NoError(t, err)

	require.NoError(t, admin.Catalog.Delete(ctx, target, false))
	_, err = scene.Popups.Load(ctx, "c1_obj")
	assert.ErrorIs(t, err, popups.ErrNotLoaded)
	assert.False(t, scene.Popups.IsLoaded("c1_obj"), "the running scene drops the archived popup")

	fresh, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	defer fresh.Close()
	_, err = fresh.Popups.Load(ctx, "c1_obj")
	assert.ErrorIs(t, err, popups.ErrNotLoaded)

	require.NoError(t, admin.Catalog.Restore(target))
	h, err := scene.Popups.Load(ctx, "c1_obj")
	require.NoError(t, err)
	assert.Contains(t, string(h.Script), "First Name")
}
