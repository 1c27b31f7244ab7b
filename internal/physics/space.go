package physics

import (
	"github.com/jakecoffman/cp"
)

// Space owns the chipmunk space for a race. Top-down: no gravity.
type Space struct {
	space *cp.Space
}

// NewSpace creates a gravity-free space with the given solver iterations.
func NewSpace(iterations uint) *Space {
	s := cp.NewSpace()
	s.Iterations = iterations
	s.SetGravity(cp.Vector{})
	return &Space{space: s}
}

// CP exposes the underlying space.
func (s *Space) CP() *cp.Space { return s.space }

// NewBox adds a dynamic box body of the given size and density.
func (s *Space) NewBox(pos cp.Vector, angle, width, height, density float64, group uint) *Body {
	mass := width * height * density
	b := s.space.AddBody(cp.NewBody(mass, cp.MomentForBox(mass, width, height)))
	b.SetPosition(pos)
	b.SetAngle(angle * DegToRad)
	shape := s.space.AddShape(cp.NewBox(b, width, height, 0))
	shape.SetFriction(0.7)
	shape.SetFilter(cp.NewShapeFilter(group, cp.ALL_CATEGORIES, cp.ALL_CATEGORIES))
	return NewBody(b)
}

// AddConstraint adds a joint to the space.
func (s *Space) AddConstraint(c *cp.Constraint) *cp.Constraint {
	return s.space.AddConstraint(c)
}

// RemoveBody removes a body with its shapes and constraints.
func (s *Space) RemoveBody(b *Body) {
	body := b.CP()
	body.EachConstraint(func(c *cp.Constraint) {
		s.space.RemoveConstraint(c)
	})
	var shapes []*cp.Shape
	body.EachShape(func(shape *cp.Shape) {
		shapes = append(shapes, shape)
	})
	for _, shape := range shapes {
		s.space.RemoveShape(shape)
	}
	s.space.RemoveBody(body)
}

// Step advances the simulation.
func (s *Space) Step(delta float64) {
	s.space.Step(delta)
}
