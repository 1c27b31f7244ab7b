package v1

import (
	"math"
	"sort"
	"time"

	"github.com/skidline/racecore/pkg/core"
)

// RaceData contains all the data needed to build an export
type RaceData struct {
	Race     *core.Race
	Track    *core.Track
	Vehicles map[uint16]*VehicleRecord

	Skidmarks   []core.Skidmark
	Transitions []core.RecoveryTransition
}

// VehicleRecord groups a vehicle with all its time-series data
type VehicleRecord struct {
	Vehicle core.Vehicle
	States  []core.VehicleState
	Laps    []core.LapEvent
}

// Build creates an Export from the race data
func Build(data *RaceData) Export {
	export := Export{
		FormatVersion: FormatVersion,
		EngineBuild:   data.Race.EngineBuild,
		RaceUUID:      data.Race.UUID,
		RaceName:      data.Race.Name,
		StartTime:     data.Race.StartTime.UTC().Format(time.RFC3339),
		TimeStep:      data.Race.TimeStep,
		Laps:          data.Race.Laps,
		Tags:          data.Race.Tag,
		Vehicles:      make([]Vehicle, 0),
		Events:        make([][]any, 0),
		Standings:     make([]Standing, 0),
	}
	if data.Track != nil {
		export.Track = buildTrack(data.Track)
	}

	var maxTick uint = 0

	// Find max vehicle ID to size the vehicles array correctly
	// Replays look vehicles up by vehicles[id], so array index must equal ID
	var maxID uint16 = 0
	for id := range data.Vehicles {
		if id > maxID {
			maxID = id
		}
	}
	if len(data.Vehicles) > 0 {
		export.Vehicles = make([]Vehicle, maxID+1)
		for i := range export.Vehicles {
			export.Vehicles[i] = Vehicle{ID: uint16(i), Positions: [][]any{}, LapTimes: [][]any{}}
		}
	}

	for id, record := range data.Vehicles {
		v := Vehicle{
			ID:           id,
			Name:         record.Vehicle.Name,
			Model:        record.Vehicle.Model,
			WheelCount:   record.Vehicle.WheelCount,
			StartTickNum: record.Vehicle.JoinTick,
			Positions:    make([][]any, 0, len(record.States)),
			LapTimes:     make([][]any, 0, len(record.Laps)),
		}
		for _, s := range record.States {
			v.Positions = append(v.Positions, []any{
				s.Tick,
				round(s.Position.X),
				round(s.Position.Y),
				round(s.Position.Angle),
				round(s.Speed),
				round(s.Z),
				s.Recovery,
			})
			maxTick = max(maxTick, s.Tick)
		}
		for _, l := range record.Laps {
			v.LapTimes = append(v.LapTimes, []any{l.Tick, l.LapCount, l.LapTime.Milliseconds()})
			maxTick = max(maxTick, l.Tick)
			// [tick, "lap", vehicleId, lapCount, lapTimeMs]
			export.Events = append(export.Events, []any{l.Tick, "lap", id, l.LapCount, l.LapTime.Milliseconds()})
		}
		export.Vehicles[id] = v
	}

	// [tick, "skid", vehicleId, x, y, impulse]
	for _, s := range data.Skidmarks {
		export.Events = append(export.Events, []any{s.Tick, "skid", s.VehicleID, round(s.X), round(s.Y), round(s.Impulse)})
		maxTick = max(maxTick, s.Tick)
	}

	// [tick, "recovery", vehicleId, from, to, reset]
	for _, t := range data.Transitions {
		export.Events = append(export.Events, []any{t.Tick, "recovery", t.VehicleID, t.From, t.To, t.Reset})
		maxTick = max(maxTick, t.Tick)
	}

	sort.SliceStable(export.Events, func(i, j int) bool {
		return export.Events[i][0].(uint) < export.Events[j][0].(uint)
	})

	export.EndTick = maxTick
	export.Standings = buildStandings(data.Vehicles)
	return export
}

func buildTrack(t *core.Track) Track {
	out := Track{
		Name:       t.Name,
		Author:     t.Author,
		Length:     t.Length,
		TileSize:   t.TileSize,
		Width:      t.Width,
		Height:     t.Height,
		Centerline: make([][2]float64, 0, len(t.Centerline)),
	}
	for _, p := range t.Centerline {
		out.Centerline = append(out.Centerline, [2]float64{round(p.X), round(p.Y)})
	}
	return out
}

// buildStandings ranks vehicles by laps completed, then by total time.
func buildStandings(vehicles map[uint16]*VehicleRecord) []Standing {
	standings := make([]Standing, 0, len(vehicles))
	for id, record := range vehicles {
		s := Standing{VehicleID: id, Name: record.Vehicle.Name}
		for _, l := range record.Laps {
			ms := l.LapTime.Milliseconds()
			s.Laps = max(s.Laps, l.LapCount)
			s.TotalMs += ms
			if s.BestLapMs == 0 || ms < s.BestLapMs {
				s.BestLapMs = ms
			}
		}
		standings = append(standings, s)
	}
	sort.Slice(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Laps != b.Laps {
			return a.Laps > b.Laps
		}
		if a.TotalMs != b.TotalMs {
			return a.TotalMs < b.TotalMs
		}
		return a.VehicleID < b.VehicleID
	})
	for i := range standings {
		standings[i].Position = i + 1
	}
	return standings
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
