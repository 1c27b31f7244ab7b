package track

import "github.com/jakecoffman/cp"

// LapPosition follows one vehicle's progress around a track.
type LapPosition struct {
	track    *Track
	distance float64
	laps     int
	best     int
	started  bool
}

// NewLapPosition starts tracking at lap distance zero, lap zero.
func NewLapPosition(t *Track) *LapPosition {
	return &LapPosition{track: t}
}

// Update projects the vehicle position onto the track. It returns true when
// the vehicle crosses the finish line forward into a lap it has not reached
// before. A first position in the back half of the track is a grid slot
// behind the line and starts the count at -1.
func (l *LapPosition) Update(p cp.Vector) bool {
	d := l.track.Project(p)
	half := l.track.Length() / 2
	if !l.started {
		l.distance, l.started = d, true
		if d > half {
			l.laps, l.best = -1, -1
		}
		return false
	}
	switch {
	case l.distance-d > half:
		l.laps++
	case d-l.distance > half:
		l.laps--
	}
	l.distance = d
	if l.laps <= l.best {
		return false
	}
	l.best = l.laps
	return true
}

// LapDistance returns the distance travelled since the last finish line.
func (l *LapPosition) LapDistance() float64 { return l.distance }

// LapCount returns completed laps. Driving backwards over the line removes
// one. It is -1 on the grid until the vehicle first crosses the line.
func (l *LapPosition) LapCount() int { return l.laps }

// Reset forgets progress.
func (l *LapPosition) Reset() {
	l.distance, l.laps, l.best, l.started = 0, 0, 0, false
}
