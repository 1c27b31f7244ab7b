// Package physics adapts the chipmunk rigid-body engine to the minimal
// surface the vehicle and recovery code drive.
package physics

import (
	"math"

	"github.com/jakecoffman/cp"
)

// RigidBody is the rigid-body surface used by wheels and recovery.
// Angle is in degrees, angular velocity in radians per second.
type RigidBody interface {
	Position() cp.Vector
	WorldCenter() cp.Vector
	Angle() float64
	LinearVelocity() cp.Vector
	SetLinearVelocity(v cp.Vector)
	AngularVelocity() float64
	SetAngularVelocity(w float64)
	Mass() float64
	Inertia() float64
	ApplyForce(force, point cp.Vector, wake bool)
	ApplyLinearImpulse(impulse, point cp.Vector, wake bool)
	ApplyAngularImpulse(impulse float64, wake bool)
}

// Body wraps a *cp.Body.
type Body struct {
	b *cp.Body
}

var _ RigidBody = (*Body)(nil)

// NewBody wraps an existing chipmunk body.
func NewBody(b *cp.Body) *Body {
	return &Body{b: b}
}

// CP exposes the wrapped body for joint construction.
func (b *Body) CP() *cp.Body { return b.b }

func (b *Body) Position() cp.Vector { return b.b.Position() }

func (b *Body) WorldCenter() cp.Vector {
	return b.b.LocalToWorld(b.b.CenterOfGravity())
}

func (b *Body) Angle() float64 { return b.b.Angle() * RadToDeg }

// SetTransform places the body, angle in degrees.
func (b *Body) SetTransform(p cp.Vector, angle float64) {
	b.b.SetPosition(p)
	b.b.SetAngle(angle * DegToRad)
}

func (b *Body) LinearVelocity() cp.Vector { return b.b.Velocity() }

func (b *Body) SetLinearVelocity(v cp.Vector) { b.b.SetVelocityVector(v) }

func (b *Body) AngularVelocity() float64 { return b.b.AngularVelocity() }

func (b *Body) SetAngularVelocity(w float64) { b.b.SetAngularVelocity(w) }

func (b *Body) Mass() float64 { return b.b.Mass() }

func (b *Body) Inertia() float64 { return b.b.Moment() }

// ApplyForce accumulates a force for the next step. Chipmunk always wakes
// the body, so wake only matters for other implementations.
func (b *Body) ApplyForce(force, point cp.Vector, wake bool) {
	b.b.ApplyForceAtWorldPoint(force, point)
}

func (b *Body) ApplyLinearImpulse(impulse, point cp.Vector, wake bool) {
	b.b.ApplyImpulseAtWorldPoint(impulse, point)
}

// ApplyAngularImpulse changes angular velocity by impulse / inertia.
func (b *Body) ApplyAngularImpulse(impulse float64, wake bool) {
	moment := b.b.Moment()
	if moment == 0 || math.IsInf(moment, 0) {
		return
	}
	if wake {
		b.b.Activate()
	}
	b.b.SetAngularVelocity(b.b.AngularVelocity() + impulse/moment)
}
