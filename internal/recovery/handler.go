// Package recovery detects vehicles that fell off the track and carries them
// back onto it.
//
// A cycle runs Normal -> Falling -> Lifting -> Recovering -> Dropping ->
// Normal. While a cycle runs the vehicle is stopped, a lift actor is alive
// and the handler is the only writer of the vehicle body's velocity.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/skidline/racecore/internal/interp"
	"github.com/skidline/racecore/internal/physics"
	"github.com/skidline/racecore/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// LiftingDelay is the duration of both the lift and the drop animation.
	LiftingDelay = 0.5
	// MaxRecoveringSpeed caps the homing speed, in units per second.
	MaxRecoveringSpeed = 20.0
	// MaxRecoveringRotationSpeed caps the homing spin, in degrees per second.
	MaxRecoveringRotationSpeed = 720.0
	// PositionTolerance is how close to the drop point counts as arrived.
	PositionTolerance = 0.1
	// AngleTolerance is one degree, in radians.
	AngleTolerance = physics.DegToRad
	// MinDelta bounds the tick duration used as a divisor while homing.
	MinDelta = 1e-4
)

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("missing dependency")

// Vehicle is what the handler reads and drives.
type Vehicle interface {
	Position() cp.Vector
	// Angle in degrees.
	Angle() float64
	Body() physics.RigidBody
	WheelCount() int
	WheelGroundSpeed(i int) float64
	SetZ(z float64)
	SetStopped(stopped bool)
}

// LapPositioner reports how far along the current lap the vehicle is.
type LapPositioner interface {
	LapDistance() float64
}

// MapInfo picks drop points on the track.
type MapInfo interface {
	ValidPosition(p cp.Vector, lapDistance float64) core.OrientedPoint
}

// LiftActor is the rescue visual alive from Falling through Dropping.
type LiftActor interface {
	SetEndPosition(p cp.Vector)
	IsReadyToRecover() bool
	SetPosition(p cp.Vector)
	SetAngle(angle float64)
	Leave()
}

// LiftFactory spawns a lift actor at a vehicle pose, angle in degrees.
type LiftFactory func(pos cp.Vector, angle float64) LiftActor

// Transition describes a state change.
type Transition struct {
	From      State
	To        State
	Position  core.OrientedPoint
	DropPoint *core.OrientedPoint
	Reset     bool
	// Cycle is the simulated time spent since Falling began, set when
	// returning to Normal.
	Cycle float64
}

// TransitionFunc observes state changes.
type TransitionFunc func(Transition)

// Dependencies holds the collaborators of a Handler.
type Dependencies struct {
	Vehicle      Vehicle
	Lap          LapPositioner
	Map          MapInfo
	NewLift      LiftFactory
	Logger       *slog.Logger
	OnTransition TransitionFunc
}

// Handler is the ground-collision recovery state machine of one vehicle.
type Handler struct {
	deps   Dependencies
	logger *slog.Logger

	phase phase
	lift  LiftActor
	cycle float64

	transitions metric.Int64Counter
	durations   metric.Float64Histogram
	guarded     metric.Int64Counter
}

// New creates a handler in the Normal state.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(deps Dependencies) (*Handler, error) {
	switch {
	case deps.Vehicle == nil:
		return nil, fmt.Errorf("%w: vehicle", ErrMissingDependency)
	case deps.Lap == nil:
		return nil, fmt.Errorf("%w: lap position", ErrMissingDependency)
	case deps.Map == nil:
		return nil, fmt.Errorf("%w: map info", ErrMissingDependency)
	case deps.NewLift == nil:
		return nil, fmt.Errorf("%w: lift factory", ErrMissingDependency)
	}

	h := &Handler{
		deps:   deps,
		logger: deps.Logger,
		phase:  normalPhase{},
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	m := meter()
	var err error

	h.transitions, err = m.Int64Counter(
		"recovery.transitions",
		metric.WithDescription("Recovery state changes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}

	h.durations, err = m.Float64Histogram(
		"recovery.duration",
		metric.WithDescription("Simulated seconds from falling back to normal"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	h.guarded, err = m.Int64Counter(
		"recovery.guarded",
		metric.WithDescription("Ticks where a non-finite homing velocity was replaced by zero"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating guarded counter: %w", err)
	}

	return h, nil
}

// State returns the current state.
func (h *Handler) State() State { return h.phase.state() }

// Lift returns the live lift actor, nil in Normal.
func (h *Handler) Lift() LiftActor { return h.lift }

// DropPoint returns the target pose while Recovering.
func (h *Handler) DropPoint() (core.OrientedPoint, bool) {
	if p, ok := h.phase.(recoveringPhase); ok {
		return p.drop, true
	}
	return core.OrientedPoint{}, false
}

// Act advances the state machine by one tick. Wheels must have acted for
// this tick already.
func (h *Handler) Act(delta float64) {
	if h.State() != Normal {
		h.cycle += delta
	}
	switch p := h.phase.(type) {
	case normalPhase:
		h.actNormal()
	case fallingPhase:
		h.actFalling()
	case liftingPhase:
		h.actLifting(p, delta)
	case recoveringPhase:
		h.actRecovering(p, delta)
	case droppingPhase:
		h.actDropping(p, delta)
	}
}

// Reset returns to Normal from any state, releasing a live lift actor. Used
// when a race restarts or a vehicle is respawned.
func (h *Handler) Reset() {
	from := h.State()
	if h.lift != nil {
		h.lift.Leave()
		h.lift = nil
	}
	h.deps.Vehicle.SetZ(0)
	h.deps.Vehicle.SetStopped(false)
	h.cycle = 0
	if from == Normal {
		return
	}
	h.phase = normalPhase{}
	h.notify(Transition{From: from, To: Normal, Position: h.pose(), Reset: true})
}

func (h *Handler) actNormal() {
	wheels := h.deps.Vehicle.WheelCount()
	if wheels == 0 {
		return
	}
	stuck := 0
	for i := 0; i < wheels; i++ {
		if h.deps.Vehicle.WheelGroundSpeed(i) == 0 {
			stuck++
		}
	}
	if stuck >= wheels/2 {
		h.startFalling()
	}
}

func (h *Handler) startFalling() {
	v := h.deps.Vehicle
	h.lift = h.deps.NewLift(v.Position(), v.Angle())
	h.cycle = 0
	v.SetStopped(true)
	h.enter(fallingPhase{}, nil)
}

func (h *Handler) actFalling() {
	lift := h.mustLift()
	lift.SetEndPosition(h.deps.Vehicle.Position())
	if lift.IsReadyToRecover() {
		h.enter(liftingPhase{}, nil)
	}
}

func (h *Handler) actLifting(p liftingPhase, delta float64) {
	h.mustLift()
	p.elapsed += delta
	if p.elapsed >= LiftingDelay {
		p.elapsed = LiftingDelay
		h.deps.Vehicle.SetZ(interp.Pow2(1))
		h.startRecovering()
		return
	}
	h.phase = p
	h.deps.Vehicle.SetZ(interp.Pow2(p.elapsed / LiftingDelay))
}

func (h *Handler) startRecovering() {
	v := h.deps.Vehicle
	distance := h.deps.Lap.LapDistance()
	drop := h.deps.Map.ValidPosition(v.Body().WorldCenter(), distance)
	if !physics.Finite(drop.X, drop.Y, drop.Angle) {
		h.logger.Warn("non-finite drop point, recovering in place",
			"lapDistance", distance, "x", drop.X, "y", drop.Y, "angle", drop.Angle)
		pos := v.Body().Position()
		drop = core.OrientedPoint{X: pos.X, Y: pos.Y, Angle: v.Angle()}
	}
	h.enter(recoveringPhase{drop: drop}, &drop)
}

func (h *Handler) actRecovering(p recoveringPhase, delta float64) {
	lift := h.mustLift()
	v := h.deps.Vehicle
	body := v.Body()
	delta = math.Max(delta, MinDelta)

	target := cp.Vector{X: p.drop.X, Y: p.drop.Y}
	velocity := target.Sub(body.Position()).Mult(1 / delta)
	speed := velocity.Length()
	if speed > MaxRecoveringSpeed {
		velocity = velocity.Mult(MaxRecoveringSpeed / speed)
	}

	diff := physics.NormalizeAngle(p.drop.Angle - v.Angle())
	angular := cp.Clamp(diff/delta, -MaxRecoveringRotationSpeed, MaxRecoveringRotationSpeed) * physics.DegToRad

	if !physics.Finite(velocity.X, velocity.Y, speed, angular) {
		h.guarded.Add(context.Background(), 1)
		h.logger.Warn("non-finite recovery velocity, holding still",
			"speed", speed, "angular", angular, "delta", delta)
		body.SetLinearVelocity(cp.Vector{})
		body.SetAngularVelocity(0)
		return
	}

	posOK := speed*delta <= PositionTolerance
	angleOK := math.Abs(angular*delta) <= AngleTolerance

	if posOK {
		body.SetLinearVelocity(cp.Vector{})
		body.SetAngularVelocity(0)
		h.enter(droppingPhase{}, nil)
		return
	}

	body.SetLinearVelocity(velocity)
	if angleOK {
		body.SetAngularVelocity(0)
	} else {
		body.SetAngularVelocity(angular)
	}
	lift.SetPosition(v.Position())
	lift.SetAngle(v.Angle())
}

func (h *Handler) actDropping(p droppingPhase, delta float64) {
	lift := h.mustLift()
	v := h.deps.Vehicle
	p.elapsed += delta
	if p.elapsed >= LiftingDelay {
		lift.Leave()
		h.lift = nil
		v.SetZ(0)
		v.SetStopped(false)
		cycle := h.cycle
		h.cycle = 0
		h.durations.Record(context.Background(), cycle)
		h.phase = normalPhase{}
		h.notify(Transition{From: Dropping, To: Normal, Position: h.pose(), Cycle: cycle})
		return
	}
	h.phase = p
	v.SetZ(interp.Curve(interp.BounceOut).Apply(1, 0, p.elapsed/LiftingDelay))
}

// mustLift returns the live lift actor. Its absence between Falling and
// Dropping is a bug in this package.
func (h *Handler) mustLift() LiftActor {
	if h.lift == nil {
		panic(fmt.Sprintf("recovery: no lift actor in state %s", h.State()))
	}
	return h.lift
}

func (h *Handler) enter(next phase, drop *core.OrientedPoint) {
	from := h.State()
	h.phase = next
	h.notify(Transition{From: from, To: next.state(), Position: h.pose(), DropPoint: drop})
}

func (h *Handler) notify(t Transition) {
	h.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", t.From.String()),
		attribute.String("to", t.To.String()),
		attribute.Bool("reset", t.Reset),
	))
	h.logger.Debug("recovery transition",
		"from", t.From.String(),
		"to", t.To.String(),
		"x", t.Position.X,
		"y", t.Position.Y,
		"reset", t.Reset,
	)
	if h.deps.OnTransition != nil {
		h.deps.OnTransition(t)
	}
}

func (h *Handler) pose() core.OrientedPoint {
	p := h.deps.Vehicle.Position()
	return core.OrientedPoint{X: p.X, Y: p.Y, Angle: h.deps.Vehicle.Angle()}
}
