package recovery

import "github.com/skidline/racecore/pkg/core"

// State names the phase of a recovery cycle.
type State int

const (
	Normal State = iota
	Falling
	Lifting
	Recovering
	Dropping
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case Falling:
		return "falling"
	case Lifting:
		return "lifting"
	case Recovering:
		return "recovering"
	case Dropping:
		return "dropping"
	}
	return "unknown"
}

// phase is the per-state payload. Each variant carries only what its state
// needs, so no timer survives a transition.
type phase interface {
	state() State
}

type normalPhase struct{}

type fallingPhase struct{}

type liftingPhase struct {
	elapsed float64
}

type recoveringPhase struct {
	drop core.OrientedPoint
}

type droppingPhase struct {
	elapsed float64
}

func (normalPhase) state() State { return Normal }
func (fallingPhase) state() State { return Falling }
func (liftingPhase) state() State { return Lifting }
func (recoveringPhase) state() State { return Recovering }
func (droppingPhase) state() State { return Dropping }
