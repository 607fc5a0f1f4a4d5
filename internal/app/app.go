// Package app builds the dependencies shared by the admin server, the scene
// server and popupctl from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"showroom-popup-builder/internal/catalog"
	"showroom-popup-builder/internal/config"
	"showroom-popup-builder/internal/events"
	"showroom-popup-builder/internal/generator"
	"showroom-popup-builder/internal/popups"
	"showroom-popup-builder/internal/storage"
	"showroom-popup-builder/internal/templates"
)

// Deps holds the long-lived services. Close releases them in reverse order.
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Registry  *templates.Registry
	Publisher *generator.Publisher // nil unless storage.publish_path is set
	Store     storage.Gateway      // the backend itself
	Gateway   storage.Gateway      // Store, announcing saves on the event bus
	Events    events.Publisher
	Popups    *popups.Service
	Catalog   *catalog.Manager

	closers []io.Closer
}

// Build opens storage, the event publisher and the popup service.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Deps{Config: cfg, Logger: logger, Registry: templates.NewDefaultRegistry()}

	if cfg.Storage.PublishPath != "" {
		p, err := generator.NewPublisher(cfg.Storage.PublishPath, logger)
		if err != nil {
			return nil, err
		}
		d.Publisher = p
	}

	store, err := storage.Open(StorageOptions(cfg, d.Publisher), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	d.Store = store
	if c, ok := store.(io.Closer); ok {
		d.closers = append(d.closers, c)
	}

	pub, err := events.OpenPublisher(EventOptions(cfg), logger)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to open event publisher: %w", err)
	}
	d.Events = pub
	d.closers = append(d.closers, pub)
	d.Gateway = events.Notify(store, pub, logger)

	cache, err := openCache(ctx, cfg, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	if c, ok := cache.(io.Closer); ok {
		d.closers = append(d.closers, c)
	}
	d.Popups = popups.NewService(popups.Options{
		Space:    cfg.Popups.Space,
		Loader:   d.loader(),
		Cache:    cache,
		CacheTTL: cfg.Popups.CacheTTL,
		Logger:   logger,
	})

	removed := ""
	if cfg.Storage.PublishPath != "" {
		removed = filepath.Join(filepath.Dir(filepath.Clean(cfg.Storage.PublishPath)), "removed")
	}
	d.Catalog = catalog.NewManager(store, d.Registry, d.Publisher, removed, logger)
	return d, nil
}

// StorageOptions maps the configuration onto storage.Options.
func StorageOptions(cfg *config.Config, publisher *generator.Publisher) storage.Options {
	return storage.Options{
		Backend:     cfg.Storage.Backend,
		APIBaseURL:  cfg.API.BaseURL,
		HTTPTimeout: cfg.API.Timeout,
		Path:        cfg.Storage.Path,
		Publisher:   publisher,
		SQLDriver:   cfg.Storage.SQLDriver,
		SQLDSN:      cfg.Storage.SQLDSN,
	}
}

// EventOptions maps the configuration onto events.Options.
func EventOptions(cfg *config.Config) events.Options {
	return events.Options{
		Driver:   cfg.Events.Driver,
		Topic:    cfg.Events.Topic,
		Brokers:  cfg.Events.Brokers,
		GroupID:  cfg.Events.GroupID,
		Broker:   cfg.Events.Broker,
		ClientID: cfg.Events.ClientID,
		Username: cfg.Events.Username,
		Password: cfg.Events.Password,
		Timeout:  cfg.API.Timeout,
	}
}

// loader reads scripts from the publish directory when this process has
// one, since that is what archive and publish act on. Without one it reads
// the artifact kept by a local backend, and over HTTP otherwise.
func (d *Deps) loader() popups.Loader {
	if d.Config.Storage.Backend != storage.BackendRemote {
		if d.Publisher != nil {
			return popups.PublisherLoader{Publisher: d.Publisher}
		}
		if r, ok := d.Store.(storage.ArtifactReader); ok {
			return popups.StoreLoader{Reader: r}
		}
	}
	return popups.NewHTTPLoader(d.Config.Popups.BaseURL, &http.Client{Timeout: d.Config.API.Timeout})
}

func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (popups.Cache, error) {
	if cfg.Redis.Address == "" {
		return popups.NewMemoryCache(), nil
	}
	c, err := popups.NewRedisCache(ctx, popups.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		Database: cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Address, err)
	}
	logger.Info("Sharing popup scripts through redis", "address", cfg.Redis.Address)
	return c, nil
}

// Close releases everything Build opened.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
