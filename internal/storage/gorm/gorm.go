// Package gormstorage implements the storage.Backend interface on any GORM
// database with internal queues and a background DB writer goroutine.
package gormstorage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skidline/racecore/internal/cache"
	"github.com/skidline/racecore/internal/database"
	"github.com/skidline/racecore/internal/logging"
	"github.com/skidline/racecore/internal/model"
	"github.com/skidline/racecore/internal/model/convert"
	"github.com/skidline/racecore/internal/queue"
	"github.com/skidline/racecore/pkg/core"

	"gorm.io/gorm"
)

// DefaultFlushInterval is how often queued rows are written.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	Cache      *cache.VehicleCache
	LogManager *logging.SlogManager
	// FlushInterval defaults to DefaultFlushInterval.
	FlushInterval time.Duration
	// Now stamps the race end. Defaults to time.Now.
	Now func() time.Time
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Vehicles            *queue.Queue[model.Vehicle]
	VehicleStates       *queue.Queue[model.VehicleState]
	Skidmarks           *queue.Queue[model.Skidmark]
	RecoveryTransitions *queue.Queue[model.RecoveryTransition]
	Laps                *queue.Queue[model.Lap]
}

func newQueues() *queues {
	return &queues{
		Vehicles:            queue.New[model.Vehicle](),
		VehicleStates:       queue.New[model.VehicleState](),
		Skidmarks:           queue.New[model.Skidmark](),
		RecoveryTransitions: queue.New[model.RecoveryTransition](),
		Laps:                queue.New[model.Lap](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps    Dependencies
	queues  *queues
	raceID  atomic.Uint64
	written cache.SafeCounter

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend. A nil DB keeps rows in the queues
// only.
func New(deps Dependencies) *Backend {
	if deps.Cache == nil {
		deps.Cache = cache.NewVehicleCache()
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Backend{
		deps: deps,
	}
}

// DB returns the database rows are written to.
func (b *Backend) DB() *gorm.DB { return b.deps.DB }

// SetDB attaches the database before Init.
func (b *Backend) SetDB(db *gorm.DB) { b.deps.DB = db }

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil {
		close(b.done)
		return nil
	}

	b.deps.LogManager.WriteLog("setupDB", "Migrating schema", "INFO")
	if err := database.Migrate(b.deps.DB); err != nil {
		close(b.done)
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.deps.LogManager.WriteLog("setupDB", "Database setup complete", "INFO")

	go b.writerLoop()
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	<-b.done
	b.Flush()
	return nil
}

// StartRace get-or-inserts the track and creates the race row.
func (b *Backend) StartRace(coreRace *core.Race, coreTrack *core.Track) error {
	b.deps.Cache.Reset()
	if b.deps.DB == nil {
		return nil
	}

	db := b.deps.DB
	log := b.deps.LogManager

	gormTrack, err := convert.CoreToTrack(*coreTrack)
	if err != nil {
		return err
	}
	if _, err := gormTrack.GetOrInsert(db); err != nil {
		log.WriteLog("StartRace", fmt.Sprintf("Failed to get or insert track: %v", err), "ERROR")
		return fmt.Errorf("failed to get or insert track: %w", err)
	}

	gormRace := convert.CoreToRace(*coreRace)
	gormRace.TrackID = gormTrack.ID
	if err := db.Create(&gormRace).Error; err != nil {
		return fmt.Errorf("failed to insert new race: %w", err)
	}

	// Assign DB-generated IDs back to core types
	coreRace.ID = gormRace.ID
	coreTrack.ID = gormTrack.ID

	b.raceID.Store(uint64(gormRace.ID))
	log.WriteLog("StartRace", fmt.Sprintf("Recording race %s on %s", coreRace.UUID, coreTrack.Name), "INFO")
	return nil
}

// SetRaceID sets the current race ID for the DB writer.
func (b *Backend) SetRaceID(id uint) {
	b.raceID.Store(uint64(id))
}

// RaceID returns the id of the race being recorded, 0 before StartRace.
func (b *Backend) RaceID() uint {
	return uint(b.raceID.Load())
}

// EndRace writes the queued rows and stores the end time and lap results.
func (b *Backend) EndRace() error {
	b.Flush()
	if b.deps.DB == nil || b.RaceID() == 0 {
		return nil
	}
	err := b.deps.DB.Model(&model.Race{}).
		Where("id = ?", b.RaceID()).
		Updates(map[string]any{
			"end_time": b.deps.Now(),
			"results":  convert.ResultsJSON(b.deps.Cache.Laps()),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to finalize race: %w", err)
	}
	return nil
}

// AddVehicle converts a core vehicle to GORM and pushes to the write queue.
func (b *Backend) AddVehicle(v *core.Vehicle) error {
	gormObj := convert.CoreToVehicle(*v)
	b.deps.Cache.AddVehicle(gormObj)
	b.queues.Vehicles.Push(gormObj)
	return nil
}

// RecordVehicleState converts and queues a vehicle state.
func (b *Backend) RecordVehicleState(s *core.VehicleState) error {
	state, err := convert.CoreToVehicleState(*s)
	if err != nil {
		return fmt.Errorf("vehicle %d tick %d: %w", s.VehicleID, s.Tick, err)
	}
	b.queues.VehicleStates.Push(state)
	return nil
}

// RecordSkidmark converts and queues a skid mark.
func (b *Backend) RecordSkidmark(s *core.Skidmark) error {
	mark, err := convert.CoreToSkidmark(*s)
	if err != nil {
		return fmt.Errorf("skidmark of vehicle %d: %w", s.VehicleID, err)
	}
	b.queues.Skidmarks.Push(mark)
	return nil
}

// RecordRecovery converts and queues a recovery transition.
func (b *Backend) RecordRecovery(t *core.RecoveryTransition) error {
	transition, err := convert.CoreToRecoveryTransition(*t)
	if err != nil {
		return fmt.Errorf("recovery transition of vehicle %d: %w", t.VehicleID, err)
	}
	b.queues.RecoveryTransitions.Push(transition)
	return nil
}

// RecordLap converts and queues a lap, and keeps the standings current.
func (b *Backend) RecordLap(l *core.LapEvent) error {
	b.deps.Cache.SetLaps(l.VehicleID, l.LapCount)
	b.queues.Laps.Push(convert.CoreToLap(*l))
	return nil
}

// Written returns the number of rows committed so far.
func (b *Backend) Written() int {
	return b.written.Value()
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches go back on the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string), prepare func([]T)) int {
	if q.Empty() {
		return 0
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if prepare != nil {
		prepare(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.Push(items...)
		return 0
	}

	if err := tx.Commit().Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error committing %s: %v", name, err), "ERROR")
		q.Push(items...)
		return 0
	}
	return len(items)
}

// Flush drains every queue into the database. Without a database it does
// nothing.
func (b *Backend) Flush() {
	if b.deps.DB == nil || b.queues == nil {
		return
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	db := b.deps.DB
	log := b.deps.LogManager.WriteLog

	// Read raceID once per write cycle
	raceID := uint(b.raceID.Load())

	n := writeQueue(db, b.queues.Vehicles, "vehicles", log, func(items []model.Vehicle) {
		for i := range items {
			items[i].RaceID = raceID
		}
	})
	n += writeQueue(db, b.queues.VehicleStates, "vehicle states", log, func(items []model.VehicleState) {
		for i := range items {
			items[i].RaceID = raceID
		}
	})
	n += writeQueue(db, b.queues.Skidmarks, "skidmarks", log, func(items []model.Skidmark) {
		for i := range items {
			items[i].RaceID = raceID
		}
	})
	n += writeQueue(db, b.queues.RecoveryTransitions, "recovery transitions", log, func(items []model.RecoveryTransition) {
		for i := range items {
			items[i].RaceID = raceID
		}
	})
	n += writeQueue(db, b.queues.Laps, "laps", log, func(items []model.Lap) {
		for i := range items {
			items[i].RaceID = raceID
		}
	})
	b.written.Add(n)
}

// writerLoop periodically drains queues into the DB until Close.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
