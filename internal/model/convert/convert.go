// Package convert translates between the shared core types and the GORM models.
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/skidline/racecore/internal/model"
	"github.com/skidline/racecore/pkg/core"
	"gorm.io/datatypes"
)

func toPoint(x, y float64) (geom.Point, error) {
	p, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: x, Y: y}})
	if err != nil {
		return geom.Point{}, fmt.Errorf("position (%v, %v): %w", x, y, err)
	}
	return p, nil
}

func fromPoint(p geom.Point) (x, y float64) {
	coord, ok := p.Coordinates()
	if !ok {
		return 0, 0
	}
	return coord.XY.X, coord.XY.Y
}

// centerlineToLineString drops headings; they are derived from the geometry.
// Fewer than two points give an empty line.
func centerlineToLineString(points []core.OrientedPoint) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, nil
	}
	coords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		coords = append(coords, p.X, p.Y)
	}
	ls, err := geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("centerline: %w", err)
	}
	return ls, nil
}

func lineStringToCenterline(ls geom.LineString) []core.OrientedPoint {
	seq := ls.Coordinates()
	if seq.Length() == 0 {
		return nil
	}
	points := make([]core.OrientedPoint, seq.Length())
	for i := range points {
		pt := seq.GetXY(i)
		points[i] = core.OrientedPoint{X: pt.X, Y: pt.Y}
	}
	return points
}

// CoreToTrack converts a core.Track to a GORM model.Track.
func CoreToTrack(t core.Track) (model.Track, error) {
	centerline, err := centerlineToLineString(t.Centerline)
	if err != nil {
		return model.Track{}, fmt.Errorf("track %s: %w", t.Name, err)
	}
	return model.Track{
		Name:       t.Name,
		Author:     t.Author,
		Length:     t.Length,
		TileSize:   t.TileSize,
		Width:      t.Width,
		Height:     t.Height,
		Centerline: centerline,
	}, nil
}

// TrackToCore converts a GORM Track back. The start point is the first
// centerline vertex.
func TrackToCore(t model.Track) core.Track {
	out := core.Track{
		ID:         t.ID,
		Name:       t.Name,
		Author:     t.Author,
		Length:     t.Length,
		TileSize:   t.TileSize,
		Width:      t.Width,
		Height:     t.Height,
		Centerline: lineStringToCenterline(t.Centerline),
	}
	if len(out.Centerline) > 0 {
		out.StartPoint = out.Centerline[0]
	}
	return out
}

// CoreToRace converts a core.Race to a GORM model.Race. The track id is set
// by the caller.
func CoreToRace(r core.Race) model.Race {
	return model.Race{
		UUID:        r.UUID,
		Name:        r.Name,
		StartTime:   r.StartTime,
		TimeStep:    r.TimeStep,
		Laps:        r.Laps,
		Tag:         r.Tag,
		EngineBuild: r.EngineBuild,
		Results:     datatypes.JSON("{}"),
	}
}

// RaceToCore converts a GORM Race back. TrackName is left to the caller.
func RaceToCore(r model.Race) core.Race {
	return core.Race{
		ID:          r.ID,
		UUID:        r.UUID,
		Name:        r.Name,
		StartTime:   r.StartTime,
		TimeStep:    r.TimeStep,
		Laps:        r.Laps,
		Tag:         r.Tag,
		EngineBuild: r.EngineBuild,
	}
}

// ResultsJSON encodes completed laps per vehicle for model.Race.Results.
func ResultsJSON(laps map[uint16]int) datatypes.JSON {
	if len(laps) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(laps)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToVehicle converts a core.Vehicle to a GORM model.Vehicle.
// core.Vehicle.ID maps to GORM Vehicle.VehicleID.
func CoreToVehicle(v core.Vehicle) model.Vehicle {
	return model.Vehicle{
		VehicleID:  v.ID,
		JoinTime:   v.JoinTime,
		JoinTick:   v.JoinTick,
		Name:       v.Name,
		Model:      v.Model,
		WheelCount: v.WheelCount,
	}
}

// VehicleToCore converts a GORM Vehicle to a core.Vehicle.
func VehicleToCore(v model.Vehicle) core.Vehicle {
	return core.Vehicle{
		ID:         v.VehicleID,
		JoinTime:   v.JoinTime,
		JoinTick:   v.JoinTick,
		Name:       v.Name,
		Model:      v.Model,
		WheelCount: v.WheelCount,
	}
}

// CoreToVehicleState converts a core.VehicleState to a GORM model.VehicleState.
func CoreToVehicleState(s core.VehicleState) (model.VehicleState, error) {
	pos, err := toPoint(s.Position.X, s.Position.Y)
	if err != nil {
		return model.VehicleState{}, err
	}
	return model.VehicleState{
		Time:        s.Time,
		Tick:        s.Tick,
		VehicleID:   s.VehicleID,
		Position:    pos,
		Angle:       s.Position.Angle,
		Speed:       s.Speed,
		Z:           s.Z,
		Stopped:     s.Stopped,
		Recovery:    s.Recovery,
		LapDistance: s.LapDistance,
		LapCount:    s.LapCount,
		StuckWheels: s.StuckWheels,
		OnFinish:    s.OnFinish,
	}, nil
}

// VehicleStateToCore converts a GORM VehicleState to a core.VehicleState.
func VehicleStateToCore(s model.VehicleState) core.VehicleState {
	x, y := fromPoint(s.Position)
	return core.VehicleState{
		VehicleID:   s.VehicleID,
		Time:        s.Time,
		Tick:        s.Tick,
		Position:    core.OrientedPoint{X: x, Y: y, Angle: s.Angle},
		Speed:       s.Speed,
		Z:           s.Z,
		Stopped:     s.Stopped,
		Recovery:    s.Recovery,
		LapDistance: s.LapDistance,
		LapCount:    s.LapCount,
		StuckWheels: s.StuckWheels,
		OnFinish:    s.OnFinish,
	}
}

// CoreToSkidmark converts a core.Skidmark to a GORM model.Skidmark.
func CoreToSkidmark(s core.Skidmark) (model.Skidmark, error) {
	pos, err := toPoint(s.X, s.Y)
	if err != nil {
		return model.Skidmark{}, err
	}
	return model.Skidmark{
		Time:      s.Time,
		Tick:      s.Tick,
		VehicleID: s.VehicleID,
		Position:  pos,
		Impulse:   s.Impulse,
	}, nil
}

// SkidmarkToCore converts a GORM Skidmark back.
func SkidmarkToCore(s model.Skidmark) core.Skidmark {
	x, y := fromPoint(s.Position)
	return core.Skidmark{
		VehicleID: s.VehicleID,
		Time:      s.Time,
		Tick:      s.Tick,
		X:         x,
		Y:         y,
		Impulse:   s.Impulse,
	}
}

// CoreToRecoveryTransition converts a core.RecoveryTransition to a GORM
// model.RecoveryTransition. A nil drop point is stored as JSON null.
func CoreToRecoveryTransition(t core.RecoveryTransition) (model.RecoveryTransition, error) {
	pos, err := toPoint(t.Position.X, t.Position.Y)
	if err != nil {
		return model.RecoveryTransition{}, err
	}
	drop := datatypes.JSON("null")
	if t.DropPoint != nil {
		if data, err := json.Marshal(t.DropPoint); err == nil {
			drop = datatypes.JSON(data)
		}
	}
	return model.RecoveryTransition{
		Time:      t.Time,
		Tick:      t.Tick,
		VehicleID: t.VehicleID,
		FromState: t.From,
		ToState:   t.To,
		Position:  pos,
		Angle:     t.Position.Angle,
		DropPoint: drop,
		Reset:     t.Reset,
	}, nil
}

// RecoveryTransitionToCore converts a GORM RecoveryTransition back.
func RecoveryTransitionToCore(t model.RecoveryTransition) core.RecoveryTransition {
	x, y := fromPoint(t.Position)
	out := core.RecoveryTransition{
		VehicleID: t.VehicleID,
		Time:      t.Time,
		Tick:      t.Tick,
		From:      t.FromState,
		To:        t.ToState,
		Position:  core.OrientedPoint{X: x, Y: y, Angle: t.Angle},
		Reset:     t.Reset,
	}
	var drop *core.OrientedPoint
	if len(t.DropPoint) > 0 && json.Unmarshal(t.DropPoint, &drop) == nil {
		out.DropPoint = drop
	}
	return out
}

// CoreToLap converts a core.LapEvent to a GORM model.Lap.
func CoreToLap(l core.LapEvent) model.Lap {
	return model.Lap{
		Time:      l.Time,
		Tick:      l.Tick,
		VehicleID: l.VehicleID,
		LapCount:  l.LapCount,
		LapTimeMs: l.LapTime.Milliseconds(),
	}
}

// LapToCore converts a GORM Lap back.
func LapToCore(l model.Lap) core.LapEvent {
	return core.LapEvent{
		VehicleID: l.VehicleID,
		Time:      l.Time,
		Tick:      l.Tick,
		LapCount:  l.LapCount,
		LapTime:   time.Duration(l.LapTimeMs) * time.Millisecond,
	}
}
