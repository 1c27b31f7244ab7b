// pkg/core/vehicle.go
package core

import "time"

// Vehicle represents a racer's car registered in a race.
// ID is the race-local identifier assigned at spawn.
type Vehicle struct {
	ID         uint16 // race-local identifier
	JoinTime   time.Time
	JoinTick   uint
	Name       string
	Model      string
	WheelCount int
}

// VehicleState represents vehicle state at a simulation tick.
// VehicleID references the Vehicle's ID.
type VehicleState struct {
	VehicleID   uint16 // References Vehicle.ID
	Time        time.Time
	Tick        uint
	Position    OrientedPoint
	Speed       float64
	Z           float64
	Stopped     bool
	Recovery    string
	LapDistance float64
	LapCount    int
	StuckWheels int
	OnFinish    bool
}

// GameInput is the driver's intent for one tick.
// Direction is in [-1, 1], positive turns left.
type GameInput struct {
	Direction    float64
	Accelerating bool
	Braking      bool
}
