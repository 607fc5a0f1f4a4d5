package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/storage"
)

// Oracle answers which admin rights the current user holds on an object.
// The user is carried by ctx (storage.WithAuthToken).
type Oracle interface {
	CheckObjectAccess(ctx context.Context, objectID string) (model.Access, error)
}

// HTTPOracle asks the platform API.
type HTTPOracle struct {
	baseURL string
	space   string
	client  *http.Client
}

// NewHTTPOracle creates an oracle for the objects of space.
func NewHTTPOracle(baseURL, space string, client *http.Client) *HTTPOracle {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPOracle{baseURL: strings.TrimRight(baseURL, "/"), space: space, client: client}
}

type accessResponse struct {
	Success   bool   `json:"success"`
	CanEdit   bool   `json:"can_edit"`
	CanUpload bool   `json:"can_upload"`
	Error     string `json:"error,omitempty"`
}

func (o *HTTPOracle) CheckObjectAccess(ctx context.Context, objectID string) (model.Access, error) {
	token := storage.AuthToken(ctx)
	if token == "" {
		return model.Access{}, nil
	}
	q := url.Values{}
	q.Set("space_slug", o.space)
	q.Set("object_name", objectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/objects/access?"+q.Encode(), nil)
	if err != nil {
		return model.Access{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := o.client.Do(req)
	if err != nil {
		return model.Access{}, fmt.Errorf("failed to check access to %s: %w", objectID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return model.Access{}, fmt.Errorf("access check for %s answered status %d", objectID, resp.StatusCode)
	}
	var body accessResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Access{}, fmt.Errorf("failed to decode access response: %w", err)
	}
	if !body.Success {
		return model.Access{}, fmt.Errorf("access check for %s failed: %s", objectID, body.Error)
	}
	return model.Access{CanEdit: body.CanEdit, CanUpload: body.CanUpload}, nil
}

// StaticOracle grants fixed rights per object, with Default for the rest.
// It serves the CLI, local development and tests.
type StaticOracle struct {
	mu      sync.RWMutex
	Objects map[string]model.Access
	Default model.Access
}

func (o *StaticOracle) CheckObjectAccess(_ context.Context, objectID string) (model.Access, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if a, ok := o.Objects[objectID]; ok {
		return a, nil
	}
	return o.Default, nil
}

// Grant sets the rights on objectID.
func (o *StaticOracle) Grant(objectID string, a model.Access) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Objects == nil {
		o.Objects = make(map[string]model.Access)
	}
	o.Objects[objectID] = a
}
