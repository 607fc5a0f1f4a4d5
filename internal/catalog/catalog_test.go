package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom-popup-builder/internal/generator"
	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/storage"
	"showroom-popup-builder/internal/templates"
)

type fixture struct {
	root      string
	store     *storage.JSONStore
	publisher *generator.Publisher
	manager   *Manager
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	publisher, err := generator.NewPublisher(filepath.Join(root, "published"), nil)
	require.NoError(t, err)
	store, err := storage.NewJSONStore(filepath.Join(root, "templates"), publisher, nil)
	require.NoError(t, err)
	return fixture{
		root:      root,
		store:     store,
		publisher: publisher,
		manager:   NewManager(store, nil, publisher, "", nil),
	}
}

func (f fixture) save(t *testing.T, space, object string, def templates.Definition) model.ObjectTarget {
	t.Helper()
	cfg := def.DefaultConfig()
	raw, err := model.EncodeConfig(cfg)
	require.NoError(t, err)
	a, err := def.GenerateArtifact(object, cfg, time.Now())
	require.NoError(t, err)
	target := model.ObjectTarget{ID: object, SpaceSlug: space}
	require.NoError(t, f.store.Save(context.Background(), storage.SaveRequest{
		Target:         target,
		TemplateType:   cfg.Type(),
		TemplateConfig: raw,
		Artifact:       a,
	}))
	return target
}

func (f fixture) scriptPath(t *testing.T, target model.ObjectTarget) string {
	t.Helper()
	p, err := f.publisher.ScriptPath(target.SpaceSlug, target.ID)
	require.NoError(t, err)
	return p
}

func TestListAndGenerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.save(t, "atlantis", "c1_obj", templates.Contact{})
	info := f.save(t, "atlantis", "b2_obj", templates.Info{})
	f.save(t, "expo", "stand_1", templates.Youtube{})

	entries, err := f.manager.List(ctx, "atlantis")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b2_obj", entries[0].Target.ID)
	assert.Equal(t, "info", entries[0].TemplateType)
	assert.True(t, entries[0].Published)

	all, err := f.manager.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	typ, a, err := f.manager.Generate(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, model.TemplateInfo, typ)
	assert.Contains(t, a.JS, "atlantisPopups")

	_, _, err = f.manager.Generate(ctx, model.ObjectTarget{ID: "nothing", SpaceSlug: "atlantis"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestArchiveRestoreAndPurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := f.save(t, "atlantis", "c1_obj", templates.Contact{})
	script := f.scriptPath(t, target)
	require.FileExists(t, script)

	require.NoError(t, f.manager.Delete(ctx, target, false))
	assert.NoFileExists(t, script)
	assert.FileExists(t, filepath.Join(f.root, "removed", "atlantis", "c1_obj"+generator.ScriptSuffix))
	assert.FileExists(t, filepath.Join(f.root, "removed", "atlantis", "c1_obj"+generator.DocumentSuffix))

	// The configuration survives a soft delete.
	_, err := f.store.Load(ctx, target)
	require.NoError(t, err)
	entries, err := f.manager.List(ctx, "atlantis")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Published)

	// Archiving twice is harmless.
	require.NoError(t, f.manager.Archive(target))

	archived, err := f.manager.Archived()
	require.NoError(t, err)
	assert.Equal(t, []model.ObjectTarget{target}, archived)

	require.NoError(t, f.manager.Restore(target))
	assert.FileExists(t, script)
	assert.ErrorIs(t, f.manager.Restore(target), storage.ErrNotFound)

	require.NoError(t, f.manager.Archive(target))
	n, err := f.manager.PurgeArchived()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	archived, err = f.manager.Archived()
	require.NoError(t, err)
	assert.Empty(t, archived)

	n, err = f.manager.PurgeArchived()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestForceDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := f.save(t, "atlantis", "c1_obj", templates.Contact{})

	require.NoError(t, f.manager.Delete(ctx, target, true))
	_, err := f.store.Load(ctx, target)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoFileExists(t, f.scriptPath(t, target))

	// Deleting what is already gone is not an error.
	assert.NoError(t, f.manager.Delete(ctx, target, true))
}

func TestPublishAllAndExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.save(t, "atlantis", "c1_obj", templates.Contact{})
	b := f.save(t, "atlantis", "p1_obj", templates.Product{})
	require.NoError(t, f.publisher.Remove(a.SpaceSlug, a.ID))
	require.NoError(t, f.publisher.Remove(b.SpaceSlug, b.ID))

	n, err := f.manager.PublishAll(ctx, "atlantis")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, f.scriptPath(t, a))

	dst := filepath.Join(t.TempDir(), "export")
	require.NoError(t, f.manager.Export("atlantis", dst))
	assert.FileExists(t, filepath.Join(dst, "c1_obj"+generator.ScriptSuffix))
	assert.FileExists(t, filepath.Join(dst, "p1_obj"+generator.DocumentSuffix))

	assert.Error(t, f.manager.Export("../etc", dst))
}

type loadOnly struct{ storage.Gateway }

func TestUnsupportedBackend(t *testing.T) {
	f := newFixture(t)
	m := NewManager(loadOnly{f.store}, nil, nil, "", nil)

	_, err := m.List(context.Background(), "atlantis")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, m.Delete(context.Background(), model.ObjectTarget{ID: "x", SpaceSlug: "atlantis"}, true), ErrUnsupported)
	assert.ErrorIs(t, m.Archive(model.ObjectTarget{ID: "x", SpaceSlug: "atlantis"}), ErrNoPublisher)
	_, err = m.Publish(context.Background(), model.ObjectTarget{ID: "x", SpaceSlug: "atlantis"})
	assert.ErrorIs(t, err, ErrNoPublisher)
}
