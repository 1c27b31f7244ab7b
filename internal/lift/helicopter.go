// Package lift implements the rescue helicopter that carries fallen vehicles
// back to the track.
package lift

import (
	"github.com/jakecoffman/cp"
)

// Settings tune the helicopter flight.
type Settings struct {
	// Speed in world units per second while approaching.
	Speed float64
	// Offset is where the helicopter appears, relative to the vehicle.
	Offset cp.Vector
	// ReadyDistance is how close to the end position counts as arrived.
	ReadyDistance float64
	// LeaveDuration is how long the helicopter stays visible after Leave.
	LeaveDuration float64
}

// DefaultSettings returns the stock flight tuning.
func DefaultSettings() Settings {
	return Settings{
		Speed:         30,
		Offset:        cp.Vector{X: -12, Y: 12},
		ReadyDistance: 0.5,
		LeaveDuration: 1,
	}
}

// Helicopter flies to a vehicle, follows it while it is moved, then leaves.
type Helicopter struct {
	settings Settings
	position cp.Vector
	angle    float64
	end      cp.Vector
	leaving  bool
	leftFor  float64
}

// New spawns a helicopter near a vehicle at pos with the vehicle angle.
func New(settings Settings, pos cp.Vector, angle float64) *Helicopter {
	return &Helicopter{
		settings: settings,
		position: pos.Add(settings.Offset),
		angle:    angle,
		end:      pos,
	}
}

// SetEndPosition updates where the helicopter is heading.
func (h *Helicopter) SetEndPosition(p cp.Vector) { h.end = p }

// IsReadyToRecover reports whether the helicopter is over its end position.
func (h *Helicopter) IsReadyToRecover() bool {
	return !h.leaving && h.position.Distance(h.end) <= h.settings.ReadyDistance
}

// SetPosition glues the helicopter to the carried vehicle.
func (h *Helicopter) SetPosition(p cp.Vector) {
	h.position = p
	h.end = p
}

// SetAngle sets the heading in degrees.
func (h *Helicopter) SetAngle(angle float64) { h.angle = angle }

// Leave releases the vehicle. Later calls do nothing.
func (h *Helicopter) Leave() {
	h.leaving = true
}

// Step advances the flight.
func (h *Helicopter) Step(delta float64) {
	if h.leaving {
		h.leftFor += delta
		h.position = h.position.Add(h.settings.Offset.Normalize().Mult(h.settings.Speed * delta))
		return
	}
	to := h.end.Sub(h.position)
	dist := to.Length()
	step := h.settings.Speed * delta
	if dist <= step {
		h.position = h.end
		return
	}
	h.position = h.position.Add(to.Mult(step / dist))
}

// Done reports whether the helicopter has flown off after leaving.
func (h *Helicopter) Done() bool {
	return h.leaving && h.leftFor >= h.settings.LeaveDuration
}

// Leaving reports whether Leave was called.
func (h *Helicopter) Leaving() bool { return h.leaving }

func (h *Helicopter) Position() cp.Vector { return h.position }

func (h *Helicopter) Angle() float64 { return h.angle }
