// Package memory keeps a race in memory and exports it as a JSON replay
// when the race ends.
package memory

import (
	"sync"

	"github.com/skidline/racecore/internal/config"
	v1 "github.com/skidline/racecore/internal/storage/memory/export/v1"
	"github.com/skidline/racecore/pkg/core"
)

// Backend stores race data in memory and exports to JSON
type Backend struct {
	cfg   config.MemoryConfig
	race  *core.Race
	track *core.Track

	vehicles    map[uint16]*v1.VehicleRecord // keyed by race-local id
	skidmarks   []core.Skidmark
	transitions []core.RecoveryTransition

	lastExportPath string
	lastExportMeta core.UploadMetadata
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		vehicles: make(map[uint16]*v1.VehicleRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRace begins recording a new race
func (b *Backend) StartRace(race *core.Race, track *core.Track) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.race = race
	b.track = track

	// Reset all collections
	b.vehicles = make(map[uint16]*v1.VehicleRecord)
	b.skidmarks = nil
	b.transitions = nil

	return nil
}

// EndRace finalizes and exports the race data
func (b *Backend) EndRace() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.race == nil {
		return nil
	}
	return b.exportJSON()
}

// AddVehicle registers a new vehicle
func (b *Backend) AddVehicle(v *core.Vehicle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.vehicles[v.ID] = &v1.VehicleRecord{
		Vehicle: *v,
		States:  make([]core.VehicleState, 0),
	}
	return nil
}

// GetVehicle looks up a vehicle by its race-local id
func (b *Backend) GetVehicle(id uint16) (*core.Vehicle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.vehicles[id]; ok {
		return &record.Vehicle, true
	}
	return nil, false
}

// RecordVehicleState records a vehicle state update
func (b *Backend) RecordVehicleState(s *core.VehicleState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.vehicles[s.VehicleID]; ok {
		record.States = append(record.States, *s)
	}
	return nil // silently ignore if vehicle not found
}

// RecordSkidmark records a skid mark
func (b *Backend) RecordSkidmark(s *core.Skidmark) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.skidmarks = append(b.skidmarks, *s)
	return nil
}

// RecordRecovery records a recovery state change
func (b *Backend) RecordRecovery(t *core.RecoveryTransition) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitions = append(b.transitions, *t)
	return nil
}

// RecordLap records a completed lap
func (b *Backend) RecordLap(l *core.LapEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.vehicles[l.VehicleID]; ok {
		record.Laps = append(record.Laps, *l)
	}
	return nil
}

// GetExportedFilePath returns the path of the last export, empty before the
// first race ends.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last export for upload.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMeta
}
