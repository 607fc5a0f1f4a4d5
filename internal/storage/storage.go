// Package storage holds the persistence gateway for popup templates and its
// backends: the remote PHP API (system of record), a local JSON store and a
// SQL store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"showroom-popup-builder/internal/model"
)

// ErrNotFound means the object has no persisted template yet. It is a normal
// outcome, callers fall back to the default template.
var ErrNotFound = errors.New("template not found")

// ErrInvalidPayload is returned before anything is persisted when a save
// request is incomplete or inconsistent.
var ErrInvalidPayload = errors.New("invalid save payload")

// Gateway defines the operations needed for persisting popup templates.
// This allows swapping implementations (remote API, JSON files, database).
type Gateway interface {
	// Load returns the stored template of target, or ErrNotFound.
	Load(ctx context.Context, target model.ObjectTarget) (*model.StoredTemplate, error)

	// Save validates the whole request and persists it in one step.
	Save(ctx context.Context, req SaveRequest) error
}

// Lister is implemented by backends that can enumerate their records.
type Lister interface {
	List(ctx context.Context, space string) ([]Record, error)
}

// Deleter is implemented by backends that can forget an object.
type Deleter interface {
	Delete(ctx context.Context, target model.ObjectTarget) error
}

// ArtifactReader is implemented by backends that keep the generated
// artifact next to the configuration.
type ArtifactReader interface {
	LoadArtifact(ctx context.Context, target model.ObjectTarget) (model.Artifact, error)
}

// SaveRequest is everything written for one object on save: the editable
// configuration and the artifact generated from it.
type SaveRequest struct {
	Target         model.ObjectTarget
	TemplateType   model.TemplateType
	TemplateConfig string
	Artifact       model.Artifact
	AuthToken      string
}

// Validate checks the request as a whole. Backends call it before touching
// storage so a broken request never leaves a partial write behind.
func (r SaveRequest) Validate() error {
	if strings.TrimSpace(r.Target.SpaceSlug) == "" || strings.TrimSpace(r.Target.ID) == "" {
		return fmt.Errorf("%w: space slug and object name are required", ErrInvalidPayload)
	}
	if _, err := model.ParseTemplateType(string(r.TemplateType)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if _, err := model.DecodeConfig(r.TemplateType, r.TemplateConfig); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(r.Artifact.HTML) == "" || strings.TrimSpace(r.Artifact.JS) == "" {
		return fmt.Errorf("%w: generated artifact is empty", ErrInvalidPayload)
	}
	return nil
}

// Record is one stored object as returned by Lister.
type Record struct {
	Target   model.ObjectTarget   `json:"target"`
	Template model.StoredTemplate `json:"template"`
	Artifact model.Artifact       `json:"artifact"`
}

type authTokenKey struct{}

// WithAuthToken attaches the caller's API token to ctx.
func WithAuthToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, authTokenKey{}, token)
}

// AuthToken returns the token attached with WithAuthToken, if any.
func AuthToken(ctx context.Context) string {
	token, _ := ctx.Value(authTokenKey{}).(string)
	return token
}

// AuthCookie carries the API token of browser sessions.
const AuthCookie = "auth_token"

// RequestContext returns the context of r with the caller's API token
// attached. The token comes from a Bearer Authorization header, or from the
// auth_token cookie when the request has no Authorization header. Other
// authorization schemes attach nothing.
func RequestContext(r *http.Request) context.Context {
	token := ""
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			token = strings.TrimSpace(value)
		}
	} else if c, err := r.Cookie(AuthCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		return r.Context()
	}
	return WithAuthToken(r.Context(), token)
}

func now() time.Time { return time.Now().UTC() }
