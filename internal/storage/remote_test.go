package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/templates"
)

func TestRemoteLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/templates/load", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("object_name") {
		case "c1_obj":
			w.Write([]byte(`{"success":true,"exists":true,"template":{"template_type":"info","template_config":"{\"title\":\"Hi\"}"}}`))
		case "inline_obj":
			w.Write([]byte(`{"success":true,"exists":true,"template":{"template_type":"info","template_config":{"title":"Inline"}}}`))
		case "missing_obj":
			w.Write([]byte(`{"success":true,"exists":false}`))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	g := NewRemoteGateway(srv.URL+"/api/", srv.Client(), nil)
	ctx := WithAuthToken(context.Background(), "tok")

	got, err := g.Load(ctx, model.ObjectTarget{ID: "c1_obj", SpaceSlug: "atlantis"})
	require.NoError(t, err)
	assert.Equal(t, "info", got.TemplateType)
	assert.JSONEq(t, `{"title":"Hi"}`, got.TemplateConfig)

	got, err = g.Load(ctx, model.ObjectTarget{ID: "inline_obj", SpaceSlug: "atlantis"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Inline"}`, got.TemplateConfig)

	_, err = g.Load(ctx, model.ObjectTarget{ID: "missing_obj", SpaceSlug: "atlantis"})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = g.Load(ctx, model.ObjectTarget{ID: "other", SpaceSlug: "atlantis"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRemoteSave(t *testing.T) {
	var received saveBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/templates/save", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{"success":true,"data":{"id":12}}`))
	}))
	defer srv.Close()

	g := NewRemoteGateway(srv.URL, srv.Client(), nil)
	req := sampleRequest(t, "atlantis", "c1_obj", templates.Contact{})
	req.Target.ShaderName = "Screen_01"
	require.NoError(t, g.Save(WithAuthToken(context.Background(), "tok"), req))

	assert.Equal(t, "atlantis", received.SpaceSlug)
	assert.Equal(t, "hall-a", received.ZoneSlug)
	assert.Equal(t, "c1_obj", received.ObjectName)
	assert.Equal(t, "contact", received.TemplateType)
	assert.Equal(t, "Screen_01", received.ShaderName)
	assert.Equal(t, "tok", received.AuthToken)
	assert.Equal(t, req.Artifact.JS, received.GeneratedJS)

	cfg, err := model.DecodeConfig(model.TemplateContact, received.TemplateConfig)
	require.NoError(t, err)
	assert.Equal(t, templates.Contact{}.DefaultConfig(), cfg)
}

func TestRemoteSaveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body saveBody
		json.NewDecoder(r.Body).Decode(&body)
		if body.ObjectName == "denied_obj" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"success":false,"error":"forbidden"}`))
			return
		}
		w.Write([]byte(`{"success":false,"error":"quota exceeded"}`))
	}))
	defer srv.Close()

	g := NewRemoteGateway(srv.URL, srv.Client(), nil)

	err := g.Save(context.Background(), sampleRequest(t, "atlantis", "denied_obj", templates.Contact{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")

	err = g.Save(context.Background(), sampleRequest(t, "atlantis", "c1_obj", templates.Contact{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestRemoteSaveNeverSendsInvalidPayload(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	g := NewRemoteGateway(srv.URL, srv.Client(), nil)
	req := sampleRequest(t, "atlantis", "c1_obj", templates.Contact{})
	req.Artifact.JS = ""

	assert.True(t, errors.Is(g.Save(context.Background(), req), ErrInvalidPayload))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRemoteHonoursContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	g := NewRemoteGateway(srv.URL, srv.Client(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Load(ctx, model.ObjectTarget{ID: "c1_obj", SpaceSlug: "atlantis"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
