// Package physicstest provides a recording rigid body for tests.
package physicstest

import (
	"github.com/jakecoffman/cp"
	"github.com/skidline/racecore/internal/physics"
)

// Force is one recorded force or impulse application.
type Force struct {
	Vector cp.Vector
	At     cp.Vector
}

// Body is an in-memory physics.RigidBody. Forces and impulses are recorded,
// impulses also change velocity.
type Body struct {
	Pos     cp.Vector
	Deg     float64
	Vel     cp.Vector
	AngVel  float64
	M       float64
	I       float64
	Forces  []Force
	Impulse []Force
	Angular []float64
}

var _ physics.RigidBody = (*Body)(nil)

// New returns a unit-mass body at the origin.
func New() *Body {
	return &Body{M: 1, I: 1}
}

func (b *Body) Position() cp.Vector { return b.Pos }
func (b *Body) WorldCenter() cp.Vector { return b.Pos }
func (b *Body) Angle() float64 { return b.Deg }

func (b *Body) LinearVelocity() cp.Vector { return b.Vel }
func (b *Body) SetLinearVelocity(v cp.Vector) { b.Vel = v }
func (b *Body) AngularVelocity() float64 { return b.AngVel }
func (b *Body) SetAngularVelocity(w float64) { b.AngVel = w }
func (b *Body) Mass() float64 { return b.M }
func (b *Body) Inertia() float64 { return b.I }

func (b *Body) ApplyForce(force, point cp.Vector, wake bool) {
	b.Forces = append(b.Forces, Force{Vector: force, At: point})
}

func (b *Body) ApplyLinearImpulse(impulse, point cp.Vector, wake bool) {
	b.Impulse = append(b.Impulse, Force{Vector: impulse, At: point})
	b.Vel = b.Vel.Add(impulse.Mult(1 / b.M))
}

func (b *Body) ApplyAngularImpulse(impulse float64, wake bool) {
	b.Angular = append(b.Angular, impulse)
	b.AngVel += impulse / b.I
}

// Integrate moves the body by its velocity, like a physics step with no
// forces.
func (b *Body) Integrate(delta float64) {
	b.Pos = b.Pos.Add(b.Vel.Mult(delta))
	b.Deg += b.AngVel * physics.RadToDeg * delta
}
