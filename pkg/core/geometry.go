// pkg/core/geometry.go
package core

// OrientedPoint is a position with a heading in degrees.
type OrientedPoint struct {
	X     float64
	Y     float64
	Angle float64
}

// GroundInfo is what the ground under a point reports.
// MaxSpeed 0 marks a hole.
type GroundInfo struct {
	MaxSpeed float64
	Finish   bool
}
