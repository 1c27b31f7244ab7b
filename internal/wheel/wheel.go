// Package wheel implements per-wheel tyre friction, drag and ground checks.
package wheel

import (
	"context"
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/skidline/racecore/internal/ground"
	"github.com/skidline/racecore/internal/physics"
	"go.opentelemetry.io/otel/metric"
)

const (
	// MaxLateralImpulse caps the sideways correction applied per tick.
	MaxLateralImpulse = 3.5
	// DragFactor is the rolling resistance on plain ground.
	DragFactor = 1.0
	// DriveForce is the force per unit of AdjustSpeed amount.
	DriveForce = 50.0
	// AngularDamping is the share of spin removed per tick.
	AngularDamping = 0.1
)

// SkidFunc receives the wheel center and the uncapped lateral impulse when a
// drifting wheel slips past its cap.
type SkidFunc func(at cp.Vector, impulse float64)

// Wheel owns one rigid body and the ground state under it.
type Wheel struct {
	body   physics.RigidBody
	ground ground.Query
	onSkid SkidFunc

	canDrift bool
	braking  bool

	groundSpeed   float64
	onFatalGround bool
	onFinished    bool

	skids metric.Int64Counter
}

// New creates a wheel over body. ground may be nil, meaning no ground data
// anywhere.
func New(body physics.RigidBody, g ground.Query, onSkid SkidFunc) (*Wheel, error) {
	skids, err := newMeter().Int64Counter("wheel.skidmarks",
		metric.WithDescription("Lateral slips past the friction cap"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skid counter: %w", err)
	}
	return &Wheel{
		body:        body,
		ground:      g,
		onSkid:      onSkid,
		groundSpeed: 1,
		skids:       skids,
	}, nil
}

// Body returns the wheel's rigid body.
func (w *Wheel) Body() physics.RigidBody { return w.body }

// Act runs the ground check and friction for one tick.
func (w *Wheel) Act(delta float64) {
	w.checkGround()
	w.updateFriction()
}

// AdjustSpeed pushes the wheel along its forward axis. Zero does nothing.
func (w *Wheel) AdjustSpeed(amount float64) {
	if amount == 0 {
		return
	}
	force := DriveForce * amount
	angle := w.body.Angle()*physics.DegToRad + math.Pi/2
	w.body.ApplyForce(cp.ForAngle(angle).Mult(force), w.body.WorldCenter(), true)
}

func (w *Wheel) SetBraking(braking bool) { w.braking = braking }

func (w *Wheel) SetCanDrift(canDrift bool) { w.canDrift = canDrift }

func (w *Wheel) CanDrift() bool { return w.canDrift }

// GroundSpeed is the max speed of the ground under the wheel, 1 when unknown.
// Zero means the wheel is stuck in a hole.
func (w *Wheel) GroundSpeed() float64 { return w.groundSpeed }

func (w *Wheel) IsOnFatalGround() bool { return w.onFatalGround }

func (w *Wheel) IsOnFinished() bool { return w.onFinished }

func (w *Wheel) checkGround() {
	w.onFatalGround = false
	w.onFinished = false
	w.groundSpeed = 1
	if w.ground == nil {
		return
	}
	info, ok := w.ground.QueryAt(w.body.WorldCenter())
	if !ok {
		return
	}
	w.groundSpeed = info.MaxSpeed
	w.onFatalGround = info.MaxSpeed == 0
	w.onFinished = info.Finish
	physics.ApplyDrag(w.body, (1-info.MaxSpeed)*DragFactor*4)
}

func (w *Wheel) updateFriction() {
	center := w.body.WorldCenter()

	impulse := physics.LateralVelocity(w.body).Mult(-w.body.Mass())
	maxImpulse := MaxLateralImpulse
	if w.braking {
		maxImpulse /= 2
	}
	if magnitude := impulse.Length(); magnitude > maxImpulse {
		if w.canDrift {
			w.skids.Add(context.Background(), 1)
			if w.onSkid != nil {
				w.onSkid(center, magnitude)
			}
		}
		impulse = impulse.Clamp(maxImpulse)
	}
	w.body.ApplyLinearImpulse(impulse, center, true)

	w.body.ApplyAngularImpulse(AngularDamping*w.body.Inertia()*-w.body.AngularVelocity(), true)

	physics.ApplyDrag(w.body, DragFactor)
}
