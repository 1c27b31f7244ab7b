package race

import (
	"time"

	"github.com/skidline/racecore/internal/recovery"
	"github.com/skidline/racecore/internal/track"
	"github.com/skidline/racecore/internal/vehicle"
	"github.com/skidline/racecore/pkg/core"
	"github.com/skidline/racecore/pkg/streaming"
)

// Racer is one vehicle in a race with its lap tracking and recovery.
type Racer struct {
	Name     string
	Vehicle  *vehicle.Vehicle
	Lap      *track.LapPosition
	Recovery *recovery.Handler
	// Pilot drives the vehicle. Nil leaves the last input in place.
	Pilot Pilot

	world    *World
	lapStart float64
}

func (r *Racer) ID() uint16 { return r.Vehicle.ID }

// State snapshots the racer for recording.
func (r *Racer) State() core.VehicleState {
	w := r.world
	return core.VehicleState{
		VehicleID:   r.ID(),
		Time:        w.deps.Now(),
		Tick:        w.tick,
		Position:    r.Vehicle.Pose(),
		Speed:       r.Vehicle.Speed(),
		Z:           r.Vehicle.Z(),
		Stopped:     r.Vehicle.IsStopped(),
		Recovery:    r.Recovery.State().String(),
		LapDistance: r.Lap.LapDistance(),
		LapCount:    r.Lap.LapCount(),
		StuckWheels: r.Vehicle.StuckWheels(),
		OnFinish:    r.Vehicle.IsOnFinished(),
	}
}

func (r *Racer) act(delta float64) {
	v := r.Vehicle
	if r.Pilot != nil && !v.IsStopped() {
		v.SetInput(r.Pilot.Input(r))
	}
	v.Act(delta)

	if !r.Lap.Update(v.Position()) {
		return
	}
	w := r.world
	now := w.elapsed + delta
	if r.Lap.LapCount() == 0 {
		// Left the grid: the first lap starts now.
		r.lapStart = now
		return
	}
	lapTime := time.Duration((now - r.lapStart) * float64(time.Second))
	w.publish(streaming.TypeLap, r.ID(), &core.LapEvent{
		VehicleID: r.ID(),
		Time:      w.deps.Now(),
		Tick:      w.tick,
		LapCount:  r.Lap.LapCount(),
		LapTime:   lapTime,
	})
	w.logger.Info("lap completed", "vehicle", r.ID(), "laps", r.Lap.LapCount(), "lapTime", lapTime)
	r.lapStart = now
}
