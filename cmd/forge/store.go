package main

import (
	"fmt"

	"github.com/marketforge/marketforge/internal/config"
	"github.com/marketforge/marketforge/internal/docstore"
)

// openStore opens the configured document store backend.
func openStore(cfg *config.Config) (docstore.Store, error) {
	switch cfg.Storage.Backend {
	case "", "sqlite":
		return docstore.NewSQLiteStore(cfg.Storage.SQLitePath)
	case "postgres":
		return docstore.NewPostgresStore(cfg.Storage.PostgresDSN)
	case "rest":
		return docstore.NewRESTStore(cfg.Storage.RESTBaseURL, cfg.Storage.RESTAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}
