package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"showroom-popup-builder/internal/model"
)

// RemoteGateway talks to the platform's PHP API, the system of record for
// popup templates.
type RemoteGateway struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewRemoteGateway creates a client for the API rooted at baseURL.
func NewRemoteGateway(baseURL string, client *http.Client, logger *slog.Logger) *RemoteGateway {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RemoteGateway{baseURL: strings.TrimRight(baseURL, "/"), client: client, logger: logger}
}

type loadResponse struct {
	Success  bool `json:"success"`
	Exists   bool `json:"exists"`
	Template *struct {
		TemplateType   string          `json:"template_type"`
		TemplateConfig json.RawMessage `json:"template_config"`
	} `json:"template"`
}

// Load fetches the stored template. exists:false and non-2xx answers are
// reported as ErrNotFound.
func (g *RemoteGateway) Load(ctx context.Context, target model.ObjectTarget) (*model.StoredTemplate, error) {
	q := url.Values{}
	q.Set("space_slug", target.SpaceSlug)
	q.Set("object_name", target.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/templates/load?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build load request: %w", err)
	}
	g.authorize(ctx, req)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s/%s: %w", target.SpaceSlug, target.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s/%s (status %d)", ErrNotFound, target.SpaceSlug, target.ID, resp.StatusCode)
	}

	var body loadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode load response for %s/%s: %w", target.SpaceSlug, target.ID, err)
	}
	if !body.Success || !body.Exists || body.Template == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, target.SpaceSlug, target.ID)
	}

	cfg, err := configString(body.Template.TemplateConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to read template_config of %s/%s: %w", target.SpaceSlug, target.ID, err)
	}
	return &model.StoredTemplate{TemplateType: body.Template.TemplateType, TemplateConfig: cfg}, nil
}

// configString accepts template_config both as the documented JSON string
// and as an inline object, which older API versions returned.
func configString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(trimmed), nil
}

type saveBody struct {
	SpaceSlug      string `json:"space_slug"`
	ZoneSlug       string `json:"zone_slug"`
	ObjectName     string `json:"object_name"`
	TemplateType   string `json:"template_type"`
	TemplateConfig string `json:"template_config"`
	ShaderName     string `json:"shader_name,omitempty"`
	Format         string `json:"format,omitempty"`
	AuthToken      string `json:"auth_token"`
	GeneratedHTML  string `json:"generated_html"`
	GeneratedCSS   string `json:"generated_css"`
	GeneratedJS    string `json:"generated_js"`
}

type saveResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Save posts the configuration together with the generated artifact. The API
// validates and stores the whole payload or nothing.
func (g *RemoteGateway) Save(ctx context.Context, req SaveRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	token := req.AuthToken
	if token == "" {
		token = AuthToken(ctx)
	}
	payload, err := json.Marshal(saveBody{
		SpaceSlug:      req.Target.SpaceSlug,
		ZoneSlug:       req.Target.ZoneSlug,
		ObjectName:     req.Target.ID,
		TemplateType:   string(req.TemplateType),
		TemplateConfig: req.TemplateConfig,
		ShaderName:     req.Target.ShaderName,
		Format:         req.Target.Format,
		AuthToken:      token,
		GeneratedHTML:  req.Artifact.HTML,
		GeneratedCSS:   req.Artifact.CSS,
		GeneratedJS:    req.Artifact.JS,
	})
	if err != nil {
		return fmt.Errorf("failed to encode save request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/templates/save", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build save request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	g.authorize(ctx, httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to save template %s/%s: %w", req.Target.SpaceSlug, req.Target.ID, err)
	}
	defer resp.Body.Close()

	var body saveResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if body.Error != "" {
			return fmt.Errorf("save rejected (status %d): %s", resp.StatusCode, body.Error)
		}
		return fmt.Errorf("save rejected (status %d)", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode save response: %w", decodeErr)
	}
	if !body.Success {
		if body.Error == "" {
			body.Error = "unknown error"
		}
		return fmt.Errorf("save rejected: %s", body.Error)
	}
	g.logger.Info("Saved popup template", "space", req.Target.SpaceSlug, "object", req.Target.ID, "type", req.TemplateType)
	return nil
}

func (g *RemoteGateway) authorize(ctx context.Context, req *http.Request) {
	if token := AuthToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
