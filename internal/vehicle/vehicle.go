// Package vehicle assembles a chassis and its wheels in the physics space.
package vehicle

import (
	"github.com/jakecoffman/cp"
	"github.com/skidline/racecore/internal/ground"
	"github.com/skidline/racecore/internal/physics"
	"github.com/skidline/racecore/internal/wheel"
	"github.com/skidline/racecore/pkg/core"
)

// WheelDef places one wheel relative to the chassis center.
type WheelDef struct {
	X, Y float64
	// Steer scales the steering angle; 0 for fixed wheels.
	Steer float64
	Drive bool
	Drift bool
}

// Def describes a vehicle model.
type Def struct {
	Name          string
	Width         float64
	Length        float64
	Density       float64
	WheelWidth    float64
	WheelLength   float64
	WheelDensity  float64
	MaxSteerAngle float64 // degrees
	BrakeSpeed    float64 // AdjustSpeed amount while braking, negative
	Wheels        []WheelDef
}

// DefaultDef is a four-wheel, front-steer, rear-drive car.
func DefaultDef() Def {
	return Def{
		Name:          "buggy",
		Width:         1,
		Length:        2,
		Density:       1,
		WheelWidth:    0.25,
		WheelLength:   0.5,
		WheelDensity:  1,
		MaxSteerAngle: 30,
		BrakeSpeed:    -0.5,
		Wheels: []WheelDef{
			{X: -0.5, Y: 0.7, Steer: 1, Drift: true},
			{X: 0.5, Y: 0.7, Steer: 1, Drift: true},
			{X: -0.5, Y: -0.7, Drive: true, Drift: true},
			{X: 0.5, Y: -0.7, Drive: true, Drift: true},
		},
	}
}

// WheelInfo ties a wheel to its chassis joints.
type WheelInfo struct {
	Wheel *wheel.Wheel
	Body  *physics.Body
	Def   WheelDef
	limit *cp.RotaryLimitJoint
}

// Vehicle is a chassis with wheels. Angles are in degrees.
type Vehicle struct {
	ID  uint16
	def Def

	space   *physics.Space
	body    *physics.Body
	wheels  []WheelInfo
	input   core.GameInput
	z       float64
	stopped bool
}

// New builds the vehicle in space at pose. group keeps its own parts from
// colliding with each other.
func New(space *physics.Space, g ground.Query, def Def, id uint16, pose core.OrientedPoint, onSkid wheel.SkidFunc) (*Vehicle, error) {
	pos := cp.Vector{X: pose.X, Y: pose.Y}
	group := uint(id) + 1
	v := &Vehicle{
		ID:    id,
		def:   def,
		space: space,
		body:  space.NewBox(pos, pose.Angle, def.Width, def.Length, def.Density, group),
	}

	for _, wd := range def.Wheels {
		local := cp.Vector{X: wd.X, Y: wd.Y}
		at := v.body.CP().LocalToWorld(local)
		wb := space.NewBox(at, pose.Angle, def.WheelWidth, def.WheelLength, def.WheelDensity, group)
		space.AddConstraint(cp.NewPivotJoint(v.body.CP(), wb.CP(), at))
		limit := space.AddConstraint(cp.NewRotaryLimitJoint(v.body.CP(), wb.CP(), 0, 0))

		w, err := wheel.New(wb, g, onSkid)
		if err != nil {
			space.RemoveBody(wb)
			v.Destroy()
			return nil, err
		}
		w.SetCanDrift(wd.Drift)
		v.wheels = append(v.wheels, WheelInfo{
			Wheel: w,
			Body:  wb,
			Def:   wd,
			limit: limit.Class.(*cp.RotaryLimitJoint),
		})
	}
	return v, nil
}

// Def returns the model the vehicle was built from.
func (v *Vehicle) Def() Def { return v.def }

// Body returns the chassis body.
func (v *Vehicle) Body() physics.RigidBody { return v.body }

func (v *Vehicle) Position() cp.Vector { return v.body.Position() }

func (v *Vehicle) Angle() float64 { return v.body.Angle() }

// Pose returns position and angle together.
func (v *Vehicle) Pose() core.OrientedPoint {
	p := v.body.Position()
	return core.OrientedPoint{X: p.X, Y: p.Y, Angle: v.body.Angle()}
}

// Speed is the chassis speed in units per second.
func (v *Vehicle) Speed() float64 { return v.body.LinearVelocity().Length() }

func (v *Vehicle) WheelInfos() []WheelInfo { return v.wheels }

func (v *Vehicle) WheelCount() int { return len(v.wheels) }

func (v *Vehicle) WheelGroundSpeed(i int) float64 { return v.wheels[i].Wheel.GroundSpeed() }

// StuckWheels counts wheels over a hole.
func (v *Vehicle) StuckWheels() int {
	n := 0
	for _, info := range v.wheels {
		if info.Wheel.GroundSpeed() == 0 {
			n++
		}
	}
	return n
}

// IsOnFinished reports whether any wheel is on the finish line.
func (v *Vehicle) IsOnFinished() bool {
	for _, info := range v.wheels {
		if info.Wheel.IsOnFinished() {
			return true
		}
	}
	return false
}

// SetZ sets the visual lift height, 0 on the ground.
func (v *Vehicle) SetZ(z float64) { v.z = z }

func (v *Vehicle) Z() float64 { return v.z }

// SetStopped hands body control to the recovery handler.
func (v *Vehicle) SetStopped(stopped bool) { v.stopped = stopped }

func (v *Vehicle) IsStopped() bool { return v.stopped }

// SetInput sets the driver intent for the next Act.
func (v *Vehicle) SetInput(input core.GameInput) { v.input = input }

func (v *Vehicle) Input() core.GameInput { return v.input }

// Act updates the wheels, then applies the driver input unless stopped.
func (v *Vehicle) Act(delta float64) {
	for _, info := range v.wheels {
		info.Wheel.Act(delta)
	}
	if v.stopped {
		return
	}

	speed := 0.0
	if v.input.Accelerating {
		speed = 1
	}
	if v.input.Braking {
		speed = v.def.BrakeSpeed
	}
	steer := cp.Clamp(v.input.Direction, -1, 1) * v.def.MaxSteerAngle * physics.DegToRad
	for _, info := range v.wheels {
		info.Wheel.SetBraking(v.input.Braking)
		if info.Def.Drive {
			info.Wheel.AdjustSpeed(speed)
		}
		angle := steer * info.Def.Steer
		info.limit.Min, info.limit.Max = angle, angle
	}
}

// Place teleports the vehicle and stops it.
func (v *Vehicle) Place(pose core.OrientedPoint) {
	pos := cp.Vector{X: pose.X, Y: pose.Y}
	v.body.SetTransform(pos, pose.Angle)
	v.body.SetLinearVelocity(cp.Vector{})
	v.body.SetAngularVelocity(0)
	for _, info := range v.wheels {
		at := v.body.CP().LocalToWorld(cp.Vector{X: info.Def.X, Y: info.Def.Y})
		info.Body.SetTransform(at, pose.Angle)
		info.Body.SetLinearVelocity(cp.Vector{})
		info.Body.SetAngularVelocity(0)
		info.limit.Min, info.limit.Max = 0, 0
	}
	v.input = core.GameInput{}
}

// Destroy removes the vehicle from its space.
func (v *Vehicle) Destroy() {
	for _, info := range v.wheels {
		v.space.RemoveBody(info.Body)
	}
	v.space.RemoveBody(v.body)
	v.wheels = nil
}
