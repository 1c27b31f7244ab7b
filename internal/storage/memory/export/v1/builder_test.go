package v1

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/skidline/racecore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testData() *RaceData {
	return &RaceData{
		Race: &core.Race{UUID: "r-1", Name: "sprint", StartTime: start, TimeStep: 0.1, Laps: 2, Tag: "league", EngineBuild: "dev"},
		Track: &core.Track{Name: "oval", Length: 120, Centerline: []core.OrientedPoint{
			{X: 0, Y: 0}, {X: 40.12345, Y: 0},
		}},
		Vehicles: map[uint16]*VehicleRecord{
			0: {
				Vehicle: core.Vehicle{ID: 0, Name: "red", Model: "buggy", WheelCount: 4},
				States: []core.VehicleState{
					{VehicleID: 0, Tick: 6, Position: core.OrientedPoint{X: 1.23456, Y: -2, Angle: 90}, Speed: 3, Recovery: "normal"},
				},
				Laps: []core.LapEvent{
					{VehicleID: 0, Tick: 300, LapCount: 1, LapTime: 30 * time.Second},
					{VehicleID: 0, Tick: 580, LapCount: 2, LapTime: 28 * time.Second},
				},
			},
			2: {
				Vehicle: core.Vehicle{ID: 2, Name: "blue", Model: "buggy", WheelCount: 4, JoinTick: 12},
				Laps: []core.LapEvent{
					{VehicleID: 2, Tick: 310, LapCount: 1, LapTime: 31 * time.Second},
				},
			},
		},
		Skidmarks: []core.Skidmark{{VehicleID: 2, Tick: 40, X: 5, Y: 6, Impulse: 4.5}},
		Transitions: []core.RecoveryTransition{
			{VehicleID: 2, Tick: 90, From: "normal", To: "falling"},
		},
	}
}

func TestBuild_Header(t *testing.T) {
	e := Build(testData())

	assert.Equal(t, FormatVersion, e.FormatVersion)
	assert.Equal(t, "r-1", e.RaceUUID)
	assert.Equal(t, "sprint", e.RaceName)
	assert.Equal(t, "2026-05-01T12:00:00Z", e.StartTime)
	assert.Equal(t, "league", e.Tags)
	assert.Equal(t, uint(580), e.EndTick)
	assert.Equal(t, [][2]float64{{0, 0}, {40.123, 0}}, e.Track.Centerline)
}

func TestBuild_VehiclesIndexedByID(t *testing.T) {
	e := Build(testData())

	require.Len(t, e.Vehicles, 3)
	assert.Equal(t, "red", e.Vehicles[0].Name)
	assert.Equal(t, uint16(1), e.Vehicles[1].ID)
	assert.Empty(t, e.Vehicles[1].Name, "gap is a placeholder")
	assert.NotNil(t, e.Vehicles[1].Positions)
	assert.Equal(t, "blue", e.Vehicles[2].Name)
	assert.Equal(t, uint(12), e.Vehicles[2].StartTickNum)

	require.Len(t, e.Vehicles[0].Positions, 1)
	assert.Equal(t, []any{uint(6), 1.235, -2.0, 90.0, 3.0, 0.0, "normal"}, e.Vehicles[0].Positions[0])
	assert.Equal(t, []any{uint(580), 2, int64(28000)}, e.Vehicles[0].LapTimes[1])
}

func TestBuild_EventsSortedByTick(t *testing.T) {
	e := Build(testData())

	require.Len(t, e.Events, 5)
	var ticks []uint
	for _, ev := range e.Events {
		ticks = append(ticks, ev[0].(uint))
	}
	assert.Equal(t, []uint{40, 90, 300, 310, 580}, ticks)
	assert.Equal(t, "skid", e.Events[0][1])
	assert.Equal(t, []any{uint(90), "recovery", uint16(2), "normal", "falling", false}, e.Events[1])
}

func TestBuild_Standings(t *testing.T) {
	e := Build(testData())

	require.Len(t, e.Standings, 2)
	assert.Equal(t, Standing{Position: 1, VehicleID: 0, Name: "red", Laps: 2, BestLapMs: 28000, TotalMs: 58000}, e.Standings[0])
	assert.Equal(t, Standing{Position: 2, VehicleID: 2, Name: "blue", Laps: 1, BestLapMs: 31000, TotalMs: 31000}, e.Standings[1])
}

func TestBuild_Empty(t *testing.T) {
	e := Build(&RaceData{Race: &core.Race{Name: "empty"}})

	data, err := json.Marshal(e)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []any{}, decoded["vehicles"])
	assert.Equal(t, []any{}, decoded["events"])
	assert.Equal(t, []any{}, decoded["standings"])
}
