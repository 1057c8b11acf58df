// Package backend opens the external store selected by configuration.
package backend

import (
	"fmt"
	"log/slog"

	"ritualsync/internal/config"
	"ritualsync/internal/external"
	"ritualsync/internal/external/airtable"
	"ritualsync/internal/external/sqlitestore"
	"ritualsync/internal/services"
)

// Handle is an open external store.
type Handle struct {
	external.Store
	// Name is the configured backend.
	Name string
	// Location describes where rows live, for status output.
	Location string
	close    func() error
}

// Close releases the store's resources.
func (h *Handle) Close() error {
	if h == nil || h.close == nil {
		return nil
	}
	return h.close()
}

// Open builds the store for cfg.External.Backend.
func Open(cfg *config.Config, logger *slog.Logger) (*Handle, error) {
	switch cfg.External.Backend {
	case config.BackendAirtable:
		client, err := airtable.New(airtable.Config{
			APIToken:          cfg.External.APIToken,
			BaseID:            cfg.External.BaseID,
			Table:             cfg.External.Table,
			View:              cfg.External.View,
			BaseURL:           cfg.External.BaseURL,
			PageSize:          cfg.External.PageSize,
			BatchSize:         cfg.External.BatchSize,
			RequestsPerSecond: float64(cfg.External.RequestsPerSecond),
			TimeoutSeconds:    cfg.External.TimeoutSeconds,
		}, airtable.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return &Handle{
			Store:    client,
			Name:     config.BackendAirtable,
			Location: fmt.Sprintf("%s/%s", cfg.External.BaseID, cfg.External.Table),
		}, nil
	case config.BackendSQLite:
		store, err := sqlitestore.Open(cfg.External.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Handle{
			Store:    store,
			Name:     config.BackendSQLite,
			Location: store.Path(),
			close:    store.Close,
		}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "backend", "open", fmt.Sprintf("unsupported backend %q", cfg.External.Backend), nil)
	}
}
