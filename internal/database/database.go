// Package database opens and migrates the gorm databases that race
// recordings are written to.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/skidline/racecore/internal/config"
	"github.com/skidline/racecore/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNoDumpPath is returned when an in-memory database has nowhere to go.
var ErrNoDumpPath = errors.New("sqlite file path not set")

// Manager handles database connections and operations.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		IsValid:         false,
		ShouldSaveLocal: false,
		Logger:          log,
	}
}

// Connect establishes a postgres connection, falling back to an in-memory
// SQLite database dumped to fallbackPath if postgres is unreachable.
func (m *Manager) Connect(cfg config.PostgresConfig, fallbackPath string) error {
	var err error

	m.DB, err = OpenPostgres(cfg)
	if err == nil {
		m.SqlDB, err = m.DB.DB()
		if err == nil {
			err = m.SqlDB.Ping()
		}
	}
	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
		m.ShouldSaveLocal = true
		m.SqliteFilePath = fallbackPath
		m.DB, err = OpenSQLite("")
		if err != nil {
			m.IsValid = false
			return fmt.Errorf("failed to get local SQLite DB: %w", err)
		}
		m.SqlDB, err = m.DB.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
	} else {
		m.Logger.Info().Str("host", cfg.Host).Msg("Connected to database")
		m.SqlDB.SetMaxOpenConns(10)
	}

	m.IsValid = true
	return nil
}

// Setup migrates the schema.
func (m *Manager) Setup() error {
	m.Logger.Info().Str("dialect", m.DB.Dialector.Name()).Msg("Migrating schema")
	if err := Migrate(m.DB); err != nil {
		m.IsValid = false
		return err
	}
	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// DumpMemoryToDisk vacuums the local fallback database to its file.
func (m *Manager) DumpMemoryToDisk() error {
	if !m.ShouldSaveLocal {
		return nil
	}
	start := time.Now()
	if err := DumpMemoryDBToDisk(m.DB, m.SqliteFilePath); err != nil {
		return err
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Msg("Dumped memory DB to disk")
	return nil
}

// Close closes the underlying connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	m.IsValid = false
	return m.SqlDB.Close()
}

// PostgresDSN builds the connection string for cfg.
func PostgresDSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
	)
}

// OpenPostgres returns a connection to the Postgres database.
func OpenPostgres(cfg config.PostgresConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  PostgresDSN(cfg),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// OpenSQLite returns a connection to a SQLite database.
// If path is empty, uses a fresh shared in-memory database.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		// every in-memory database gets its own name so that two recorders in
		// one process never share tables
		dsn = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            path != "",
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// set PRAGMAS
	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	if path == "" {
		// shared-cache tables lock across connections, so a single
		// unprepared connection serializes the writer and the dump loop
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql interface: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// Migrate creates or updates every table. PostGIS is installed on postgres.
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec(`CREATE Extension IF NOT EXISTS postgis;`).Error; err != nil {
			return fmt.Errorf("failed to create PostGIS Extension: %w", err)
		}
	}
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DumpMemoryDBToDisk vacuums the database to a disk file, replacing any
// existing file.
func DumpMemoryDBToDisk(db *gorm.DB, sqliteFilePath string) error {
	if sqliteFilePath == "" {
		return ErrNoDumpPath
	}

	if err := os.MkdirAll(filepath.Dir(sqliteFilePath), 0o755); err != nil {
		return fmt.Errorf("error creating dump directory: %w", err)
	}

	// remove existing file if it exists
	if exists, err := os.Stat(sqliteFilePath); err == nil && exists != nil {
		if err := os.Remove(sqliteFilePath); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	err := db.Exec("VACUUM INTO '" + strings.ReplaceAll(sqliteFilePath, "'", "''") + "';").Error
	if err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}

	return nil
}

// GetBackupDBPaths returns paths to all .db files in the given directory.
func GetBackupDBPaths(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var dbPaths []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".db") {
			dbPaths = append(dbPaths, filepath.Join(dir, file.Name()))
		}
	}
	return dbPaths, nil
}
