package storage

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/skidline/racecore/internal/cache"
	"github.com/skidline/racecore/internal/config"
	"github.com/skidline/racecore/internal/logging"
	gormstorage "github.com/skidline/racecore/internal/storage/gorm"
	"github.com/skidline/racecore/internal/storage/memory"
	"github.com/skidline/racecore/internal/storage/postgres"
	sqlitestorage "github.com/skidline/racecore/internal/storage/sqlite"
	"github.com/skidline/racecore/internal/storage/websocket"
)

// Dependencies holds what the database-backed backends share.
type Dependencies struct {
	LogManager *logging.SlogManager
	// DBLog receives connection and fallback messages.
	DBLog zerolog.Logger
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	gormDeps := gormstorage.Dependencies{
		Cache:      cache.NewVehicleCache(),
		LogManager: deps.LogManager,
	}

	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.Postgres, cfg.SQLite.OutputDir, gormDeps, deps.DBLog), nil
	case "sqlite":
		b, err := sqlitestorage.New(cfg.SQLite, gormDeps)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "websocket":
		return websocket.New(websocket.Config{
			URL:    cfg.WebSocket.URL,
			Secret: cfg.WebSocket.Secret,
		}, deps.LogManager.Logger()), nil
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
