// Package storage defines the recording backends a race is written to.
package storage

import "github.com/skidline/racecore/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Race management
	StartRace(race *core.Race, track *core.Track) error
	EndRace() error

	// Vehicle registration
	AddVehicle(v *core.Vehicle) error

	// State recording
	RecordVehicleState(s *core.VehicleState) error

	// Event recording
	RecordSkidmark(s *core.Skidmark) error
	RecordRecovery(t *core.RecoveryTransition) error
	RecordLap(l *core.LapEvent) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the results server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
