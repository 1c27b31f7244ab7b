// pkg/core/events.go
package core

import (
	"time"
)

// Skidmark is emitted when a drift-enabled wheel slips past its lateral
// friction cap.
type Skidmark struct {
	VehicleID uint16
	Time      time.Time
	Tick      uint
	X         float64
	Y         float64
	Impulse   float64 // uncapped lateral impulse magnitude
}

// RecoveryTransition records a ground-collision handler state change.
type RecoveryTransition struct {
	VehicleID uint16
	Time      time.Time
	Tick      uint
	From      string
	To        string
	Position  OrientedPoint
	// DropPoint is set when entering the recovering state.
	DropPoint *OrientedPoint
	// Reset marks a forced return to normal on race restart.
	Reset bool
}

// LapEvent is emitted when a vehicle crosses the finish line.
type LapEvent struct {
	VehicleID uint16
	Time      time.Time
	Tick      uint
	LapCount  int
	LapTime   time.Duration
}
