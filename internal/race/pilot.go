package race

import (
	"github.com/jakecoffman/cp"
	"github.com/skidline/racecore/internal/physics"
	"github.com/skidline/racecore/pkg/core"
)

// Pilot supplies driver input once per tick.
type Pilot interface {
	Input(r *Racer) core.GameInput
}

// PilotFunc adapts a function to Pilot.
type PilotFunc func(r *Racer) core.GameInput

func (f PilotFunc) Input(r *Racer) core.GameInput { return f(r) }

// AutoPilot follows the track centerline.
type AutoPilot struct {
	// LookAhead is how far along the track the aim point sits.
	LookAhead float64
	// FullLock is the heading error, in degrees, that gives full steering.
	FullLock float64
	// MaxSpeed lifts the throttle above this speed. 0 means always on.
	MaxSpeed float64
}

// NewAutoPilot returns a pilot with stock tuning.
func NewAutoPilot() *AutoPilot {
	return &AutoPilot{LookAhead: 4, FullLock: 30, MaxSpeed: 12}
}

func (a *AutoPilot) Input(r *Racer) core.GameInput {
	t := r.world.Track()
	aim := t.PointAt(r.Lap.LapDistance() + a.LookAhead)
	pos := r.Vehicle.Position()
	to := cp.Vector{X: aim.X, Y: aim.Y}.Sub(pos)
	if to.LengthSq() == 0 {
		return core.GameInput{Accelerating: true}
	}

	// Forward is the vehicle's local +Y axis.
	heading := to.ToAngle()*physics.RadToDeg - 90
	diff := physics.NormalizeAngle(heading - r.Vehicle.Angle())
	lock := a.FullLock
	if lock <= 0 {
		lock = 30
	}
	return core.GameInput{
		Direction:    cp.Clamp(diff/lock, -1, 1),
		Accelerating: a.MaxSpeed <= 0 || r.Vehicle.Speed() < a.MaxSpeed,
	}
}
