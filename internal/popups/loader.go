package popups

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"showroom-popup-builder/internal/generator"
	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/storage"
)

// maxScriptSize caps a fetched popup script.
const maxScriptSize = 4 << 20

// ErrScriptTooLarge is returned when a popup script exceeds maxScriptSize.
var ErrScriptTooLarge = errors.New("popup script too large")

// Digest is the revision of a script as reported by the local loaders.
func Digest(script []byte) uint64 {
	return xxhash.Sum64(script)
}

// HTTPLoader fetches scripts from {BaseURL}/{space}/{object}-popup.js.
type HTTPLoader struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPLoader creates a loader; a nil client selects http.DefaultClient.
func NewHTTPLoader(baseURL string, client *http.Client) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPLoader{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

// ScriptURL returns the script location of target, with a v query parameter
// when version is non-zero.
func (l *HTTPLoader) ScriptURL(target model.ObjectTarget, version int64) string {
	u := l.BaseURL + "/" + url.PathEscape(target.SpaceSlug) + "/" + url.PathEscape(target.ID) + generator.ScriptSuffix
	if version != 0 {
		u += "?v=" + strconv.FormatInt(version, 10)
	}
	return u
}

func (l *HTTPLoader) Fetch(ctx context.Context, target model.ObjectTarget, version int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.ScriptURL(target, version), nil)
	if err != nil {
		return nil, err
	}
	if version != 0 {
		req.Header.Set("Cache-Control", "no-cache")
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s answered %s", ErrNotLoaded, req.URL.Path, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxScriptSize {
		return nil, fmt.Errorf("%w: %s is over %d bytes", ErrScriptTooLarge, req.URL.Path, maxScriptSize)
	}
	return data, nil
}

// PublisherLoader reads scripts written by the local publisher.
type PublisherLoader struct {
	Publisher *generator.Publisher
}

func (l PublisherLoader) Fetch(ctx context.Context, target model.ObjectTarget, _ int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := l.Publisher.ReadScript(target.SpaceSlug, target.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotLoaded, err)
	}
	return data, nil
}

// Revision digests the published script; a missing file is ErrNotLoaded.
func (l PublisherLoader) Revision(ctx context.Context, target model.ObjectTarget) (uint64, error) {
	data, err := l.Fetch(ctx, target, 0)
	if err != nil {
		return 0, err
	}
	return Digest(data), nil
}

// StoreLoader reads the artifact kept by a local storage backend.
type StoreLoader struct {
	Reader storage.ArtifactReader
}

func (l StoreLoader) Fetch(ctx context.Context, target model.ObjectTarget, _ int64) ([]byte, error) {
	a, err := l.Reader.LoadArtifact(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotLoaded, err)
	}
	if a.JS == "" {
		return nil, fmt.Errorf("%w: %s/%s has no script", ErrNotLoaded, target.SpaceSlug, target.ID)
	}
	return []byte(a.JS), nil
}

// Revision digests the script of the stored artifact.
func (l StoreLoader) Revision(ctx context.Context, target model.ObjectTarget) (uint64, error) {
	data, err := l.Fetch(ctx, target, 0)
	if err != nil {
		return 0, err
	}
	return Digest(data), nil
}
