// Package race runs the fixed-timestep simulation of one race.
package race

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/skidline/racecore/internal/dispatcher"
	"github.com/skidline/racecore/internal/ground"
	"github.com/skidline/racecore/internal/lift"
	"github.com/skidline/racecore/internal/physics"
	"github.com/skidline/racecore/internal/queue"
	"github.com/skidline/racecore/internal/recovery"
	"github.com/skidline/racecore/internal/track"
	"github.com/skidline/racecore/internal/vehicle"
	"github.com/skidline/racecore/pkg/core"
	"github.com/skidline/racecore/pkg/streaming"
)

// ErrTrackRequired is returned when a world is created without a track.
var ErrTrackRequired = errors.New("track required")

// Config tunes a world.
type Config struct {
	// RecordEvery publishes vehicle states every N ticks. 0 disables.
	RecordEvery     uint
	SkidmarkHistory int
	// GridSpacing is the distance between starting slots along the track.
	GridSpacing float64
	Iterations  uint
	Lift        lift.Settings
	Vehicle     vehicle.Def
}

// DefaultConfig returns the stock world tuning.
func DefaultConfig() Config {
	return Config{
		RecordEvery:     6,
		SkidmarkHistory: 500,
		GridSpacing:     3,
		Iterations:      10,
		Lift:            lift.DefaultSettings(),
		Vehicle:         vehicle.DefaultDef(),
	}
}

// Dependencies holds the collaborators of a World.
type Dependencies struct {
	Ground ground.Query
	Track  *track.Track
	// Bus receives race events. Optional.
	Bus    *dispatcher.Dispatcher
	Logger *slog.Logger
	// Now stamps events. Defaults to time.Now.
	Now func() time.Time
}

// World owns the physics space and every racer in it.
type World struct {
	cfg    Config
	deps   Dependencies
	logger *slog.Logger

	space     *physics.Space
	racers    []*Racer
	lifts     []*lift.Helicopter
	skidmarks *queue.Queue[core.Skidmark]
	tick      uint
	elapsed   float64
}

// NewWorld creates an empty world on a track.
func NewWorld(cfg Config, deps Dependencies) (*World, error) {
	if deps.Track == nil {
		return nil, ErrTrackRequired
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = 10
	}
	return &World{
		cfg:       cfg,
		deps:      deps,
		logger:    deps.Logger,
		space:     physics.NewSpace(cfg.Iterations),
		skidmarks: queue.NewBounded[core.Skidmark](cfg.SkidmarkHistory),
	}, nil
}

// Track returns the world's track.
func (w *World) Track() *track.Track { return w.deps.Track }

// Tick returns the number of completed steps.
func (w *World) Tick() uint { return w.tick }

// Elapsed returns simulated seconds since the start.
func (w *World) Elapsed() float64 { return w.elapsed }

func (w *World) Racers() []*Racer { return w.racers }

// Lifts returns the helicopters currently flying.
func (w *World) Lifts() []*lift.Helicopter { return w.lifts }

// Skidmarks returns the most recent skid marks, oldest first.
func (w *World) Skidmarks() []core.Skidmark { return w.skidmarks.Items() }

// AddRacer spawns a vehicle on the next starting slot.
func (w *World) AddRacer(name string, pilot Pilot) (*Racer, error) {
	id := uint16(len(w.racers))
	pose := w.gridSlot(len(w.racers))

	r := &Racer{Name: name, Pilot: pilot, world: w}
	v, err := vehicle.New(w.space, w.deps.Ground, w.cfg.Vehicle, id, pose, func(at cp.Vector, impulse float64) {
		w.addSkidmark(id, at, impulse)
	})
	if err != nil {
		return nil, fmt.Errorf("building vehicle %d: %w", id, err)
	}
	r.Vehicle = v
	r.Lap = track.NewLapPosition(w.deps.Track)
	r.Lap.Update(r.Vehicle.Position())

	h, err := recovery.New(recovery.Dependencies{
		Vehicle: r.Vehicle,
		Lap:     r.Lap,
		Map:     w.deps.Track,
		NewLift: w.spawnLift,
		Logger:  w.logger.With("vehicle", id),
		OnTransition: func(t recovery.Transition) {
			w.onTransition(id, t)
		},
	})
	if err != nil {
		r.Vehicle.Destroy()
		return nil, fmt.Errorf("creating recovery handler: %w", err)
	}
	r.Recovery = h
	w.racers = append(w.racers, r)

	w.publish(streaming.TypeAddVehicle, id, &core.Vehicle{
		ID:         id,
		JoinTime:   w.deps.Now(),
		JoinTick:   w.tick,
		Name:       name,
		Model:      w.cfg.Vehicle.Name,
		WheelCount: r.Vehicle.WheelCount(),
	})
	w.logger.Info("racer added", "vehicle", id, "name", name)
	return r, nil
}

// Step advances the race by delta seconds. Wheels act for every racer before
// any recovery handler looks at them, and the physics step runs last.
func (w *World) Step(delta float64) {
	for _, r := range w.racers {
		r.act(delta)
	}
	for _, r := range w.racers {
		r.Recovery.Act(delta)
	}
	w.stepLifts(delta)
	w.space.Step(delta)

	w.tick++
	w.elapsed += delta
	if w.cfg.RecordEvery > 0 && w.tick%w.cfg.RecordEvery == 0 {
		for _, r := range w.racers {
			state := r.State()
			w.publish(streaming.TypeVehicleState, r.ID(), &state)
		}
	}
}

// Restart resets every racer to its starting slot, releasing any lift.
func (w *World) Restart() {
	for i, r := range w.racers {
		r.Recovery.Reset()
		r.Vehicle.Place(w.gridSlot(i))
		r.Lap.Reset()
		r.Lap.Update(r.Vehicle.Position())
		r.lapStart = 0
	}
	w.skidmarks.Clear()
	w.tick = 0
	w.elapsed = 0
	w.logger.Info("race restarted", "racers", len(w.racers))
}

func (w *World) gridSlot(i int) core.OrientedPoint {
	t := w.deps.Track
	pose := t.PointAt(-float64(i/2+1) * w.cfg.GridSpacing)
	// Alternate left and right of the centerline.
	side := 0.6
	if i%2 == 1 {
		side = -side
	}
	right := cp.ForAngle(pose.Angle * physics.DegToRad)
	pose.X += right.X * side
	pose.Y += right.Y * side
	return pose
}

func (w *World) spawnLift(pos cp.Vector, angle float64) recovery.LiftActor {
	h := lift.New(w.cfg.Lift, pos, angle)
	w.lifts = append(w.lifts, h)
	return h
}

func (w *World) stepLifts(delta float64) {
	live := w.lifts[:0]
	for _, h := range w.lifts {
		h.Step(delta)
		if !h.Done() {
			live = append(live, h)
		}
	}
	for i := len(live); i < len(w.lifts); i++ {
		w.lifts[i] = nil
	}
	w.lifts = live
}

func (w *World) addSkidmark(id uint16, at cp.Vector, impulse float64) {
	mark := core.Skidmark{
		VehicleID: id,
		Time:      w.deps.Now(),
		Tick:      w.tick,
		X:         at.X,
		Y:         at.Y,
		Impulse:   impulse,
	}
	w.skidmarks.Push(mark)
	w.publish(streaming.TypeSkidmark, id, &mark)
}

func (w *World) onTransition(id uint16, t recovery.Transition) {
	w.publish(streaming.TypeRecoveryTransition, id, &core.RecoveryTransition{
		VehicleID: id,
		Time:      w.deps.Now(),
		Tick:      w.tick,
		From:      t.From.String(),
		To:        t.To.String(),
		Position:  t.Position,
		DropPoint: t.DropPoint,
		Reset:     t.Reset,
	})
}

func (w *World) publish(eventType string, id uint16, payload any) {
	bus := w.deps.Bus
	if bus == nil || !bus.HasHandler(eventType) {
		return
	}
	err := bus.Dispatch(dispatcher.Event{
		Type:      eventType,
		VehicleID: id,
		Tick:      w.tick,
		Timestamp: w.deps.Now(),
		Payload:   payload,
	})
	if err != nil {
		w.logger.Debug("event not delivered", "type", eventType, "vehicle", id, "error", err)
	}
}
