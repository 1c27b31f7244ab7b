package physics

import (
	"math"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBody_AngleInDegrees(t *testing.T) {
	space := NewSpace(10)
	b := space.NewBox(cp.Vector{X: 1, Y: 2}, 90, 1, 2, 1, 1)

	assert.InDelta(t, 90, b.Angle(), 1e-9)
	assert.InDelta(t, 1, b.Position().X, 1e-9)
	assert.InDelta(t, 2, b.WorldCenter().Y, 1e-9)
	assert.InDelta(t, 2, b.Mass(), 1e-9)
}

func TestLateralVelocity_Axes(t *testing.T) {
	space := NewSpace(10)
	b := space.NewBox(cp.Vector{}, 0, 1, 1, 1, 1)
	b.SetLinearVelocity(cp.Vector{X: 3, Y: 4})

	lat := LateralVelocity(b)
	fwd := ForwardVelocity(b)
	assert.InDelta(t, 3, lat.X, 1e-9)
	assert.InDelta(t, 0, lat.Y, 1e-9)
	assert.InDelta(t, 0, fwd.X, 1e-9)
	assert.InDelta(t, 4, fwd.Y, 1e-9)
}

func TestLateralVelocity_Rotated(t *testing.T) {
	space := NewSpace(10)
	b := space.NewBox(cp.Vector{}, 90, 1, 1, 1, 1)
	b.SetLinearVelocity(cp.Vector{X: 3, Y: 4})

	// Local X points along world +Y after a quarter turn.
	lat := LateralVelocity(b)
	assert.InDelta(t, 0, lat.X, 1e-9)
	assert.InDelta(t, 4, lat.Y, 1e-9)
}

func TestApplyAngularImpulse(t *testing.T) {
	space := NewSpace(10)
	b := space.NewBox(cp.Vector{}, 0, 1, 1, 1, 1)
	inertia := b.Inertia()
	require.Greater(t, inertia, 0.0)

	b.ApplyAngularImpulse(inertia*2, true)
	assert.InDelta(t, 2, b.AngularVelocity(), 1e-9)
}

func TestApplyDrag_SlowsBody(t *testing.T) {
	space := NewSpace(10)
	b := space.NewBox(cp.Vector{}, 0, 1, 1, 1, 1)
	b.SetLinearVelocity(cp.Vector{X: 10})

	ApplyDrag(b, 1)
	space.Step(1.0 / 60)

	assert.Less(t, b.LinearVelocity().X, 10.0)
	assert.Greater(t, b.LinearVelocity().X, 0.0)
}

func TestSpace_RemoveBody(t *testing.T) {
	space := NewSpace(10)
	a := space.NewBox(cp.Vector{}, 0, 1, 1, 1, 1)
	b := space.NewBox(cp.Vector{X: 1}, 0, 1, 1, 1, 1)
	space.AddConstraint(cp.NewPivotJoint(a.CP(), b.CP(), cp.Vector{X: 0.5}))

	space.RemoveBody(b)
	assert.False(t, space.CP().ContainsBody(b.CP()))
	space.RemoveBody(a)
	assert.False(t, space.CP().ContainsBody(a.CP()))
}

func TestFinite(t *testing.T) {
	assert.True(t, Finite(1, 2, 3))
	assert.False(t, Finite(1, math.NaN()))
}

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, 0, NormalizeAngle(360), 1e-9)
	assert.InDelta(t, -90, NormalizeAngle(270), 1e-9)
	assert.InDelta(t, 90, NormalizeAngle(-270), 1e-9)
	assert.InDelta(t, -180, NormalizeAngle(180), 1e-9)
	assert.InDelta(t, 10, NormalizeAngle(730), 1e-9)
}
