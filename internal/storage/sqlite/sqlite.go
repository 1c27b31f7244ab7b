// Package sqlitestorage implements the storage.Backend interface using a
// SQLite database, by default in memory with periodic disk dumps via
// VACUUM INTO. It wraps the GORM backend via composition.
package sqlitestorage

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/skidline/racecore/internal/config"
	"github.com/skidline/racecore/internal/database"
	gormstorage "github.com/skidline/racecore/internal/storage/gorm"
	"github.com/skidline/racecore/pkg/core"

	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db  *gorm.DB
	cfg config.SQLiteConfig
	log func(string, string, string)

	mu       sync.Mutex
	dumpPath string
	stopChan chan struct{}
	loopDone chan struct{}
}

// New creates a new SQLite storage backend. An empty cfg.Path keeps the
// database in memory.
func New(cfg config.SQLiteConfig, deps gormstorage.Dependencies) (*Backend, error) {
	db, err := database.OpenSQLite(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	deps.DB = db

	gormBackend := gormstorage.New(deps)
	b := &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		stopChan: make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	if deps.LogManager != nil {
		b.log = deps.LogManager.WriteLog
	} else {
		b.log = func(string, string, string) {}
	}
	return b, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine
// for in-memory databases.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.Path == "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	} else {
		close(b.loopDone)
	}
	return nil
}

// StartRace records the race and picks the dump file for it.
func (b *Backend) StartRace(race *core.Race, track *core.Track) error {
	if err := b.Backend.StartRace(race, track); err != nil {
		return err
	}
	if b.cfg.Path == "" && b.cfg.OutputDir != "" {
		b.mu.Lock()
		b.dumpPath = filepath.Join(b.cfg.OutputDir, DumpFileName(race))
		b.mu.Unlock()
	}
	return nil
}

// EndRace finalizes the race and dumps the database.
func (b *Backend) EndRace() error {
	if err := b.Backend.EndRace(); err != nil {
		return err
	}
	return b.dump()
}

// Close stops the dump goroutine, closes the embedded GORM backend and
// writes a final dump.
func (b *Backend) Close() error {
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	<-b.loopDone

	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.dump()
}

// DumpPath returns the file the in-memory database is dumped to, empty
// before a race starts or for on-disk databases.
func (b *Backend) DumpPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dumpPath
}

func (b *Backend) dump() error {
	path := b.DumpPath()
	if path == "" {
		return nil
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, path); err != nil {
		return err
	}
	b.log("sqlite:dump", fmt.Sprintf("Dumped to %s in %s", path, time.Since(start)), "DEBUG")
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.loopDone)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.Flush()
			if err := b.dump(); err != nil {
				b.log("sqlite:dumpLoop", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
			}
		}
	}
}

// DumpFileName names the dump of a race after its name and start time.
func DumpFileName(race *core.Race) string {
	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(race.Name)
	return fmt.Sprintf("%s_%s.db", name, race.StartTime.Format("20060102_150405"))
}
