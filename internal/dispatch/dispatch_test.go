package dispatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/popups"
	"showroom-popup-builder/internal/storage"
)

const tableYAML = `
c1_obj:
  onClick: popup
  zone: hall
  adminButtons: [edit, upload]
screen_main:
  onClick: upload
  zone: hall
  plv:
    shader: screen_mat
    format: "16:9"
door:
  onClick: url
  url: https://atlantis-city.com
panel:
  onClick: reload_plv
  plv:
    shader: panel_mat
empty_stand:
  zone: expo
`

type fakePopups struct {
	loadable map[string]bool
	loads    int
}

func (p *fakePopups) Load(_ context.Context, id string) (*popups.Handle, error) {
	p.loads++
	if !p.loadable[id] {
		return nil, popups.ErrNotLoaded
	}
	return &popups.Handle{ObjectID: id}, nil
}

type countingOracle struct {
	access model.Access
	err    error
	calls  int
}

func (o *countingOracle) CheckObjectAccess(context.Context, string) (model.Access, error) {
	o.calls++
	return o.access, o.err
}

func newTestDispatcher(t *testing.T, p *fakePopups) *Dispatcher {
	t.Helper()
	table, err := ParseTable([]byte(tableYAML))
	require.NoError(t, err)
	return New(Options{Table: table, Popups: p, Space: "atlantis"})
}

func commandTypes(r *Recorder) []string {
	var out []string
	for _, c := range r.Commands() {
		out = append(out, c.Type)
	}
	return out
}

func TestNormalize(t *testing.T) {
	testCases := map[string]string{
		"c1_obj":           "c1_obj",
		"  c1_obj ":        "c1_obj",
		"chair.001":        "chair",
		"chair_instance_3": "chair",
		"chair#2":          "chair",
		"chair-copy":       "chair",
		"chair-copy2.004":  "chair",
		"Screen_Main.002":  "Screen_Main",
		".001":             ".001",
		"stand_instance12": "stand",
		"booth_2":          "booth_2",
	}
	for raw, want := range testCases {
		assert.Equal(t, want, Normalize(raw), raw)
	}
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable([]byte(tableYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1_obj", "door", "empty_stand", "panel", "screen_main"}, table.Names())
	a, ok := table.Lookup("screen_main")
	require.True(t, ok)
	assert.Equal(t, &model.PLVConfig{Shader: "screen_mat", Format: "16:9"}, a.PLV)

	_, err = ParseTable([]byte("x:\n  onClick: explode\n"))
	assert.Error(t, err)
	_, err = ParseTable([]byte("x:\n  onClick: url\n"))
	assert.Error(t, err)

	empty, err := ParseTable(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	path := filepath.Join(t.TempDir(), "objects.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tableYAML), 0644))
	loaded, err := LoadTable(path)
	require.NoError(t, err)
	assert.Len(t, loaded, 5)
	_, err = LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestClickPopup(t *testing.T) {
	p := &fakePopups{loadable: map[string]bool{"c1_obj": true}}
	d := newTestDispatcher(t, p)

	visitor := &countingOracle{}
	ui := &Recorder{}
	res := d.Click(context.Background(), "c1_obj.001", visitor, ui)
	assert.Equal(t, Result{Object: "c1_obj", Action: model.ActionPopup, Outcome: OutcomeShown}, res)
	assert.Equal(t, []string{CmdShowPopup}, commandTypes(ui))
	assert.Equal(t, 1, p.loads)

	admin := &countingOracle{access: model.Access{CanEdit: true}}
	ui = &Recorder{}
	d.Click(context.Background(), "c1_obj", admin, ui)
	assert.Equal(t, 2, p.loads, "every click asks the service for a current popup")
	cmds := ui.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, CmdAdminButtons, cmds[1].Type)
	assert.Equal(t, []string{"edit"}, cmds[1].Buttons)
}

func TestClickUnconfiguredPopup(t *testing.T) {
	d := newTestDispatcher(t, &fakePopups{})

	ui := &Recorder{}
	res := d.Click(context.Background(), "c1_obj", &countingOracle{}, ui)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Empty(t, ui.Commands())

	ui = &Recorder{}
	res = d.Click(context.Background(), "c1_obj", &countingOracle{access: model.Access{CanUpload: true}}, ui)
	assert.Equal(t, OutcomeNotConfigured, res.Outcome)
	require.Len(t, ui.Commands(), 1)
	assert.Equal(t, CmdNotConfigured, ui.Commands()[0].Type)

	ui = &Recorder{}
	res = d.Click(context.Background(), "c1_obj", &countingOracle{err: errors.New("api down")}, ui)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Empty(t, ui.Commands())
}

func TestClickUploadRequiresPermission(t *testing.T) {
	d := newTestDispatcher(t, &fakePopups{})

	ui := &Recorder{}
	res := d.Click(context.Background(), "screen_main", &countingOracle{access: model.Access{CanEdit: true}}, ui)
	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.Empty(t, ui.Commands())

	ui = &Recorder{}
	res = d.Click(context.Background(), "screen_main", &countingOracle{access: model.Access{CanUpload: true}}, ui)
	assert.Equal(t, OutcomeUpload, res.Outcome)
	cmds := ui.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdOpenUpload, cmds[0].Type)
	assert.Equal(t, "screen_mat", cmds[0].Upload.PLV.Shader)
}

func TestClickURLSkipsOracle(t *testing.T) {
	d := newTestDispatcher(t, &fakePopups{})
	oracle := &countingOracle{}
	ui := &Recorder{}

	res := d.Click(context.Background(), "door", oracle, ui)
	assert.Equal(t, OutcomeURL, res.Outcome)
	assert.Equal(t, 0, oracle.calls)
	assert.Equal(t, "https://atlantis-city.com", ui.Commands()[0].URL)
}

// visitorUI exposes only the UI methods of a Recorder, so it is not a
// TextureReloader.
type visitorUI struct{ UI }

func TestClickReloadPLV(t *testing.T) {
	d := newTestDispatcher(t, &fakePopups{})

	ui := &Recorder{}
	res := d.Click(context.Background(), "panel", nil, ui)
	assert.Equal(t, OutcomeReloaded, res.Outcome)
	assert.Equal(t, []string{CmdReloadTextures}, commandTypes(ui))

	plain := visitorUI{&Recorder{}}
	res = d.Click(context.Background(), "panel", nil, plain)
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrNoReloader)
}

func TestClickUnsetAndUnknown(t *testing.T) {
	p := &fakePopups{loadable: map[string]bool{"kiosk": true}}
	d := newTestDispatcher(t, p)

	ui := &Recorder{}
	assert.Equal(t, OutcomeIgnored, d.Click(context.Background(), "empty_stand", &countingOracle{}, ui).Outcome)
	assert.Empty(t, ui.Commands())

	res := d.Click(context.Background(), "empty_stand", &countingOracle{access: model.Access{CanEdit: true}}, ui)
	assert.Equal(t, OutcomeNotConfigured, res.Outcome)

	ui = &Recorder{}
	res = d.Click(context.Background(), "kiosk#3", nil, ui)
	assert.Equal(t, OutcomeShown, res.Outcome)
	assert.Equal(t, "kiosk", ui.Commands()[0].Object)

	ui = &Recorder{}
	res = d.Click(context.Background(), "floor", nil, ui)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Empty(t, ui.Commands())
}

func TestAdminRequestsRecheckPermission(t *testing.T) {
	d := newTestDispatcher(t, &fakePopups{})
	oracle := &StaticOracle{}

	ui := &Recorder{}
	assert.ErrorIs(t, d.RequestEdit(context.Background(), "screen_main", oracle, ui), ErrDenied)
	assert.ErrorIs(t, d.RequestUpload(context.Background(), "screen_main", oracle, ui), ErrDenied)
	assert.Empty(t, ui.Commands())

	oracle.Grant("screen_main", model.Access{CanEdit: true, CanUpload: true})
	require.NoError(t, d.RequestEdit(context.Background(), "screen_main.001", oracle, ui))
	require.NoError(t, d.RequestUpload(context.Background(), "screen_main", oracle, ui))
	cmds := ui.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, &model.ObjectTarget{ID: "screen_main", SpaceSlug: "atlantis", ZoneSlug: "hall", ShaderName: "screen_mat", Format: "16:9"}, cmds[0].Target)
	assert.Equal(t, CmdOpenUpload, cmds[1].Type)

	assert.ErrorIs(t, d.RequestUpload(context.Background(), "nowhere", oracle, ui), ErrUnknownObject)
}

func TestHTTPOracle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/objects/access", r.URL.Path)
		assert.Equal(t, "atlantis", r.URL.Query().Get("space_slug"))
		switch r.Header.Get("Authorization") {
		case "Bearer admin":
			_, _ = w.Write([]byte(`{"success":true,"can_edit":true,"can_upload":false}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(`{"success":false,"error":"unknown token"}`))
		}
	}))
	defer srv.Close()
	o := NewHTTPOracle(srv.URL, "atlantis", srv.Client())

	a, err := o.CheckObjectAccess(storage.WithAuthToken(context.Background(), "admin"), "c1_obj")
	require.NoError(t, err)
	assert.Equal(t, model.Access{CanEdit: true}, a)

	a, err = o.CheckObjectAccess(context.Background(), "c1_obj")
	require.NoError(t, err)
	assert.False(t, a.Any(), "anonymous visitors have no rights")

	_, err = o.CheckObjectAccess(storage.WithAuthToken(context.Background(), "broken"), "c1_obj")
	assert.Error(t, err)
	_, err = o.CheckObjectAccess(storage.WithAuthToken(context.Background(), "other"), "c1_obj")
	assert.Error(t, err)
}
