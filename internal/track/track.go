// Package track models the circuit centerline: how far along a lap a point
// is, and where a vehicle may be put back after leaving the road.
package track

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/skidline/racecore/internal/physics"
	"github.com/skidline/racecore/pkg/core"
)

// DefaultSearchWindow is how far from the lap distance, along the track, a
// drop point may be picked.
const DefaultSearchWindow = 30.0

// ErrInvalidPolyline is returned for centerlines that cannot form a lap.
var ErrInvalidPolyline = errors.New("invalid polyline")

// Track is a closed centerline.
type Track struct {
	Name         string
	Author       string
	SearchWindow float64

	line   geom.LineString
	points []cp.Vector
	// cum[i] is the arc length from points[0] to points[i].
	cum    []float64
	length float64
}

type trackFile struct {
	Name         string      `json:"name"`
	Author       string      `json:"author"`
	SearchWindow float64     `json:"searchWindow"`
	Centerline   [][]float64 `json:"centerline"`
}

// Parse reads the "name", "author", "searchWindow" and "centerline" keys of a
// track file.
func Parse(data []byte) (*Track, error) {
	var f trackFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse track JSON: %w", err)
	}
	ls, err := lineStringFromCoords(f.Centerline)
	if err != nil {
		return nil, err
	}
	t, err := New(ls)
	if err != nil {
		return nil, err
	}
	t.Name = f.Name
	t.Author = f.Author
	if f.SearchWindow > 0 {
		t.SearchWindow = f.SearchWindow
	}
	return t, nil
}

// New builds a track from a centerline. The line is closed if its ends
// differ.
func New(ls geom.LineString) (*Track, error) {
	seq := ls.Coordinates()
	n := seq.Length()
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidPolyline, n)
	}

	points := make([]cp.Vector, 0, n+1)
	for i := 0; i < n; i++ {
		xy := seq.GetXY(i)
		points = append(points, cp.Vector{X: xy.X, Y: xy.Y})
	}
	if !points[0].Near(points[len(points)-1], 1e-9) {
		points = append(points, points[0])
	}

	cum := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		cum[i] = cum[i-1] + points[i].Distance(points[i-1])
	}
	length := cum[len(cum)-1]
	if length <= 0 {
		return nil, fmt.Errorf("%w: zero length", ErrInvalidPolyline)
	}

	return &Track{
		SearchWindow: DefaultSearchWindow,
		line:         ls,
		points:       points,
		cum:          cum,
		length:       length,
	}, nil
}

// Length returns the lap length.
func (t *Track) Length() float64 { return t.length }

// LineString returns the centerline geometry.
func (t *Track) LineString() geom.LineString { return t.line }

// Start is the pose at lap distance zero.
func (t *Track) Start() core.OrientedPoint { return t.PointAt(0) }

// PointAt returns the centerline pose at a lap distance. Angle is the body
// angle, in degrees, of a vehicle facing along the track.
func (t *Track) PointAt(distance float64) core.OrientedPoint {
	d := t.wrap(distance)
	i := t.segmentAt(d)
	a, b := t.points[i], t.points[i+1]
	seg := t.cum[i+1] - t.cum[i]
	u := 0.0
	if seg > 0 {
		u = (d - t.cum[i]) / seg
	}
	p := a.Lerp(b, u)
	return core.OrientedPoint{X: p.X, Y: p.Y, Angle: t.segmentAngle(i)}
}

// Project returns the lap distance of the centerline point nearest to p.
func (t *Track) Project(p cp.Vector) float64 {
	best, bestDist := 0.0, math.Inf(1)
	for i := 0; i < len(t.points)-1; i++ {
		u, q := t.nearestOnSegment(i, p, 0, t.cum[i+1]-t.cum[i])
		if d := q.DistanceSq(p); d < bestDist {
			best, bestDist = t.cum[i]+u, d
		}
	}
	return t.wrap(best)
}

// ValidPosition returns the centerline pose nearest to p among those no
// further than SearchWindow from lapDistance along the track.
func (t *Track) ValidPosition(p cp.Vector, lapDistance float64) core.OrientedPoint {
	window := math.Min(t.SearchWindow, t.length/2)
	lo, hi := lapDistance-window, lapDistance+window

	found := false
	var best core.OrientedPoint
	bestDist := math.Inf(1)
	for i := 0; i < len(t.points)-1; i++ {
		segLen := t.cum[i+1] - t.cum[i]
		for _, k := range [...]float64{-1, 0, 1} {
			start := t.cum[i] + k*t.length
			from := math.Max(0, lo-start)
			to := math.Min(segLen, hi-start)
			if from > to {
				continue
			}
			_, q := t.nearestOnSegment(i, p, from, to)
			if d := q.DistanceSq(p); d < bestDist {
				found = true
				bestDist = d
				best = core.OrientedPoint{X: q.X, Y: q.Y, Angle: t.segmentAngle(i)}
			}
		}
	}
	if !found {
		return t.PointAt(lapDistance)
	}
	return best
}

// nearestOnSegment projects p onto segment i, limited to arc offsets
// [from, to] from the segment start.
func (t *Track) nearestOnSegment(i int, p cp.Vector, from, to float64) (float64, cp.Vector) {
	a, b := t.points[i], t.points[i+1]
	ab := b.Sub(a)
	segLen := ab.Length()
	if segLen == 0 {
		return 0, a
	}
	dir := ab.Mult(1 / segLen)
	u := cp.Clamp(p.Sub(a).Dot(dir), from, to)
	return u, a.Add(dir.Mult(u))
}

func (t *Track) segmentAngle(i int) float64 {
	heading := t.points[i+1].Sub(t.points[i]).ToAngle() * physics.RadToDeg
	return physics.NormalizeAngle(heading - 90)
}

func (t *Track) segmentAt(d float64) int {
	for i := 0; i < len(t.cum)-2; i++ {
		if d < t.cum[i+1] {
			return i
		}
	}
	return len(t.cum) - 2
}

func (t *Track) wrap(d float64) float64 {
	d = math.Mod(d, t.length)
	if d < 0 {
		d += t.length
	}
	return d
}
