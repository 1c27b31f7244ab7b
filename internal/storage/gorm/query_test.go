package gormstorage

import (
	"testing"
	"time"

	"github.com/skidline/racecore/internal/model"
	v1 "github.com/skidline/racecore/internal/storage/memory/export/v1"
	"github.com/skidline/racecore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSample(t *testing.T, b *Backend) {
	t.Helper()
	race, track := testRace()
	require.NoError(t, b.StartRace(race, track))

	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 0, Name: "red", JoinTime: raceStart, WheelCount: 4}))
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Name: "blue", JoinTime: raceStart, WheelCount: 4}))
	for tick := uint(1); tick <= 6; tick++ {
		require.NoError(t, b.RecordVehicleState(&core.VehicleState{
			VehicleID: 0, Tick: tick, Time: raceStart,
			Position: core.OrientedPoint{X: float64(tick), Y: 2},
			Recovery: "normal",
		}))
	}
	require.NoError(t, b.RecordSkidmark(&core.Skidmark{VehicleID: 1, Tick: 3, Time: raceStart, X: 7, Y: 8, Impulse: 4}))
	require.NoError(t, b.RecordRecovery(&core.RecoveryTransition{VehicleID: 1, Tick: 4, Time: raceStart, From: "normal", To: "falling"}))
	require.NoError(t, b.RecordLap(&core.LapEvent{VehicleID: 0, Tick: 5, Time: raceStart, LapCount: 1, LapTime: 12 * time.Second}))
	require.NoError(t, b.EndRace())
}

func TestLoadRace(t *testing.T) {
	b := newSQLiteBackend(t)
	recordSample(t, b)

	data, err := LoadRace(b.DB(), "race-1")
	require.NoError(t, err)

	assert.Equal(t, "sprint", data.Race.Name)
	assert.True(t, data.Race.StartTime.Equal(raceStart), "start time %v", data.Race.StartTime)
	assert.Equal(t, "oval", data.Race.TrackName)
	assert.Equal(t, 3, data.Race.Laps)
	require.Len(t, data.Track.Centerline, 2)
	assert.Equal(t, 40.0, data.Track.Centerline[1].X)

	require.Len(t, data.Vehicles, 2)
	red := data.Vehicles[0]
	assert.Equal(t, "red", red.Vehicle.Name)
	require.Len(t, red.States, 6)
	assert.Equal(t, uint(1), red.States[0].Tick)
	assert.True(t, red.States[0].Time.Equal(raceStart))
	assert.True(t, red.Vehicle.JoinTime.Equal(raceStart))
	assert.Equal(t, 6.0, red.States[5].Position.X)
	require.Len(t, red.Laps, 1)
	assert.Equal(t, 12*time.Second, red.Laps[0].LapTime)

	require.Len(t, data.Skidmarks, 1)
	assert.Equal(t, 7.0, data.Skidmarks[0].X)
	require.Len(t, data.Transitions, 1)
	assert.Equal(t, "falling", data.Transitions[0].To)

	export := v1.Build(data)
	assert.Equal(t, "race-1", export.RaceUUID)
	assert.Len(t, export.Vehicles, 2)
}

func TestLoadRace_NotFound(t *testing.T) {
	b := newSQLiteBackend(t)
	_, err := LoadRace(b.DB(), "missing")
	assert.ErrorIs(t, err, ErrRaceNotFound)
}

func TestReduceRace(t *testing.T) {
	b := newSQLiteBackend(t)
	recordSample(t, b)

	deleted, err := ReduceRace(b.DB(), "race-1", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	var ticks []uint
	require.NoError(t, b.DB().Model(&model.VehicleState{}).Order("tick ASC").Pluck("tick", &ticks).Error)
	assert.Equal(t, []uint{3, 6}, ticks)
}

func TestReduceRace_KeepAll(t *testing.T) {
	b := newSQLiteBackend(t)
	deleted, err := ReduceRace(b.DB(), "anything", 1)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	_, err = ReduceRace(b.DB(), "missing", 5)
	assert.ErrorIs(t, err, ErrRaceNotFound)
}

func TestRaceTimesReadBack(t *testing.T) {
	b := newSQLiteBackend(t)
	recordSample(t, b)

	var race model.Race
	require.NoError(t, b.DB().Where("uuid = ?", "race-1").First(&race).Error)
	assert.True(t, race.StartTime.Equal(raceStart))
	require.NotNil(t, race.EndTime)
	assert.True(t, race.EndTime.Equal(raceStart.Add(time.Minute)))

	var lap model.Lap
	require.NoError(t, b.DB().First(&lap).Error)
	assert.True(t, lap.Time.Equal(raceStart))
}
