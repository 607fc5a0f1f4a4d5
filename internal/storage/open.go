package storage

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"showroom-popup-builder/internal/generator"
)

// Backend names accepted by Open.
const (
	BackendRemote = "remote"
	BackendJSON   = "json"
	BackendSQL    = "sql"
)

// Options selects and configures a Gateway backend.
type Options struct {
	Backend string

	// remote
	APIBaseURL  string
	HTTPTimeout time.Duration

	// json and sql
	Publisher *generator.Publisher

	// json
	Path string

	// sql
	SQLDriver string
	SQLDSN    string
}

// Open builds the configured backend.
func Open(opts Options, logger *slog.Logger) (Gateway, error) {
	switch opts.Backend {
	case BackendRemote, "":
		if opts.APIBaseURL == "" {
			return nil, fmt.Errorf("remote storage requires api.base_url")
		}
		return NewRemoteGateway(opts.APIBaseURL, &http.Client{Timeout: opts.HTTPTimeout}, logger), nil
	case BackendJSON:
		return NewJSONStore(opts.Path, opts.Publisher, logger)
	case BackendSQL:
		s, err := OpenSQL(opts.SQLDriver, opts.SQLDSN, logger)
		if err != nil {
			return nil, err
		}
		s.publisher = opts.Publisher
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
}
