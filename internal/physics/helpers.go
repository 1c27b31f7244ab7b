package physics

import (
	"math"

	"github.com/jakecoffman/cp"
)

const (
	DegToRad = math.Pi / 180
	RadToDeg = 180 / math.Pi
)

// worldVector rotates a local direction by the body angle.
func worldVector(body RigidBody, local cp.Vector) cp.Vector {
	return local.Rotate(cp.ForAngle(body.Angle() * DegToRad))
}

// LateralVelocity is the velocity component along the body's local X axis.
func LateralVelocity(body RigidBody) cp.Vector {
	normal := worldVector(body, cp.Vector{X: 1})
	return normal.Mult(normal.Dot(body.LinearVelocity()))
}

// ForwardVelocity is the velocity component along the body's local Y axis.
func ForwardVelocity(body RigidBody) cp.Vector {
	normal := worldVector(body, cp.Vector{Y: 1})
	return normal.Mult(normal.Dot(body.LinearVelocity()))
}

// ApplyDrag pushes against the current velocity, proportionally to factor.
func ApplyDrag(body RigidBody, factor float64) {
	force := body.LinearVelocity().Mult(-factor)
	body.ApplyForce(force, body.WorldCenter(), true)
}

// Finite reports whether every component is a real number.
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// NormalizeAngle maps degrees into [-180, 180).
func NormalizeAngle(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}
