// Package postgres implements the storage.Backend interface on PostgreSQL.
// When the server is unreachable it records into an in-memory SQLite
// database and dumps it to disk instead.
package postgres

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/skidline/racecore/internal/config"
	"github.com/skidline/racecore/internal/database"
	gormstorage "github.com/skidline/racecore/internal/storage/gorm"
	sqlitestorage "github.com/skidline/racecore/internal/storage/sqlite"
	"github.com/skidline/racecore/pkg/core"
)

// Backend wraps the GORM backend with a postgres connection manager.
type Backend struct {
	*gormstorage.Backend
	cfg         config.PostgresConfig
	fallbackDir string
	manager     *database.Manager
}

// New creates a postgres backend. Nothing connects until Init.
func New(cfg config.PostgresConfig, fallbackDir string, deps gormstorage.Dependencies, log zerolog.Logger) *Backend {
	deps.DB = nil
	return &Backend{
		Backend:     gormstorage.New(deps),
		cfg:         cfg,
		fallbackDir: fallbackDir,
		manager:     database.NewManager(log),
	}
}

// Init connects, falling back to SQLite, then migrates and starts writing.
func (b *Backend) Init() error {
	fallback := ""
	if b.fallbackDir != "" {
		fallback = filepath.Join(b.fallbackDir, "fallback.db")
	}
	if err := b.manager.Connect(b.cfg, fallback); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	b.SetDB(b.manager.DB)
	return b.Backend.Init()
}

// StartRace records the race. The local fallback is named after it.
func (b *Backend) StartRace(race *core.Race, track *core.Track) error {
	if b.manager.ShouldSaveLocal && b.fallbackDir != "" {
		b.manager.SqliteFilePath = filepath.Join(b.fallbackDir, sqlitestorage.DumpFileName(race))
	}
	return b.Backend.StartRace(race, track)
}

// EndRace finalizes the race and dumps the local fallback, if any.
func (b *Backend) EndRace() error {
	if err := b.Backend.EndRace(); err != nil {
		return err
	}
	return b.dumpFallback()
}

// Close flushes, dumps the fallback and closes the connection.
func (b *Backend) Close() error {
	if err := b.Backend.Close(); err != nil {
		return err
	}
	if err := b.dumpFallback(); err != nil {
		return err
	}
	return b.manager.Close()
}

// Fallback reports whether rows go to the local SQLite database.
func (b *Backend) Fallback() bool {
	return b.manager.ShouldSaveLocal
}

func (b *Backend) dumpFallback() error {
	if !b.manager.ShouldSaveLocal || b.manager.SqliteFilePath == "" {
		return nil
	}
	return b.manager.DumpMemoryToDisk()
}
