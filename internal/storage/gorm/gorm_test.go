package gormstorage

import (
	"math"
	"testing"
	"time"

	"github.com/skidline/racecore/internal/cache"
	"github.com/skidline/racecore/internal/database"
	"github.com/skidline/racecore/internal/logging"
	"github.com/skidline/racecore/internal/model"
	"github.com/skidline/racecore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var raceStart = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// newTestBackend creates a Backend with no DB (queue-only mode for unit testing).
func newTestBackend() *Backend {
	return New(Dependencies{
		Cache:      cache.NewVehicleCache(),
		LogManager: logging.NewSlogManager(),
	})
}

func newSQLiteBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSQLite("")
	require.NoError(t, err)
	b := New(Dependencies{
		DB:            db,
		FlushInterval: time.Hour,
		Now:           func() time.Time { return raceStart.Add(time.Minute) },
	})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func testRace() (*core.Race, *core.Track) {
	return &core.Race{UUID: "race-1", Name: "sprint", StartTime: raceStart, TimeStep: 1.0 / 60, Laps: 3},
		&core.Track{Name: "oval", Length: 120, Centerline: []core.OrientedPoint{{X: 0, Y: 0}, {X: 40, Y: 0}}}
}

func TestNew(t *testing.T) {
	b := New(Dependencies{})
	require.NotNil(t, b)
	assert.Equal(t, DefaultFlushInterval, b.deps.FlushInterval)
	assert.NotNil(t, b.deps.Cache)
}

func TestInitClose_NoDB(t *testing.T) {
	b := newTestBackend()

	require.NoError(t, b.Init())
	require.NotNil(t, b.queues)
	require.NotNil(t, b.stopChan)

	require.NoError(t, b.Close())
	// closing twice is harmless
	require.NoError(t, b.Close())
}

func TestRecord_QueuesToInternalQueue(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Name: "red"}))
	require.NoError(t, b.RecordVehicleState(&core.VehicleState{VehicleID: 1, Tick: 6}))
	require.NoError(t, b.RecordSkidmark(&core.Skidmark{VehicleID: 1, X: 1, Y: 2}))
	require.NoError(t, b.RecordRecovery(&core.RecoveryTransition{VehicleID: 1, From: "normal", To: "falling"}))
	require.NoError(t, b.RecordLap(&core.LapEvent{VehicleID: 1, LapCount: 1}))

	assert.Equal(t, 1, b.queues.Vehicles.Len())
	assert.Equal(t, 1, b.queues.VehicleStates.Len())
	assert.Equal(t, 1, b.queues.Skidmarks.Len())
	assert.Equal(t, 1, b.queues.RecoveryTransitions.Len())
	assert.Equal(t, 1, b.queues.Laps.Len())

	_, ok := b.deps.Cache.GetVehicle(1)
	assert.True(t, ok)
	assert.Equal(t, map[uint16]int{1: 1}, b.deps.Cache.Laps())
}

func TestRecord_NonFinitePositionRejected(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	nan := math.NaN()
	assert.Error(t, b.RecordVehicleState(&core.VehicleState{VehicleID: 1, Position: core.OrientedPoint{X: nan}}))
	assert.Error(t, b.RecordSkidmark(&core.Skidmark{VehicleID: 1, X: math.Inf(-1)}))
	assert.Error(t, b.RecordRecovery(&core.RecoveryTransition{VehicleID: 1, Position: core.OrientedPoint{Y: nan}}))

	assert.Zero(t, b.queues.VehicleStates.Len())
	assert.Zero(t, b.queues.Skidmarks.Len())
	assert.Zero(t, b.queues.RecoveryTransitions.Len())
}

func TestStartRace_DegenerateTrack(t *testing.T) {
	b := newSQLiteBackend(t)
	race, track := testRace()
	track.Centerline = []core.OrientedPoint{{X: 3, Y: 3}, {X: 3, Y: 3}}

	assert.Error(t, b.StartRace(race, track))
	assert.Zero(t, b.RaceID())
}

func TestStartRace_NoDB(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	b.deps.Cache.SetLaps(3, 2)
	race, track := testRace()
	require.NoError(t, b.StartRace(race, track))
	assert.Empty(t, b.deps.Cache.Laps(), "a new race starts with empty standings")
	assert.Equal(t, uint(0), b.RaceID())
	require.NoError(t, b.EndRace())
}

func TestStartRace_InsertsTrackAndRace(t *testing.T) {
	b := newSQLiteBackend(t)

	race, track := testRace()
	require.NoError(t, b.StartRace(race, track))
	assert.NotZero(t, race.ID)
	assert.NotZero(t, track.ID)
	assert.Equal(t, race.ID, b.RaceID())

	// the same track is reused by the next race
	next, sameTrack := testRace()
	next.UUID = "race-2"
	require.NoError(t, b.StartRace(next, sameTrack))
	assert.Equal(t, track.ID, sameTrack.ID)

	var count int64
	require.NoError(t, b.DB().Model(&model.Track{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFlush_StampsRaceID(t *testing.T) {
	b := newSQLiteBackend(t)
	race, track := testRace()
	require.NoError(t, b.StartRace(race, track))

	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 0, Name: "red", JoinTime: raceStart, WheelCount: 4}))
	require.NoError(t, b.RecordVehicleState(&core.VehicleState{VehicleID: 0, Tick: 6, Time: raceStart,
		Position: core.OrientedPoint{X: 3, Y: 4, Angle: 90}}))
	require.NoError(t, b.RecordSkidmark(&core.Skidmark{VehicleID: 0, Time: raceStart, X: 1, Y: 1, Impulse: 4}))
	drop := core.OrientedPoint{X: 5}
	require.NoError(t, b.RecordRecovery(&core.RecoveryTransition{VehicleID: 0, Time: raceStart, From: "lifting", To: "recovering", DropPoint: &drop}))
	require.NoError(t, b.RecordLap(&core.LapEvent{VehicleID: 0, Time: raceStart, LapCount: 1, LapTime: 30 * time.Second}))

	b.Flush()
	assert.Equal(t, 5, b.Written())
	assert.True(t, b.queues.VehicleStates.Empty())

	var states []model.VehicleState
	require.NoError(t, b.DB().Find(&states).Error)
	require.Len(t, states, 1)
	assert.Equal(t, race.ID, states[0].RaceID)
	assert.Equal(t, 90.0, states[0].Angle)

	var vehicles []model.Vehicle
	require.NoError(t, b.DB().Find(&vehicles).Error)
	require.Len(t, vehicles, 1)
	assert.Equal(t, race.ID, vehicles[0].RaceID)

	var laps []model.Lap
	require.NoError(t, b.DB().Find(&laps).Error)
	require.Len(t, laps, 1)
	assert.Equal(t, int64(30000), laps[0].LapTimeMs)
}

func TestEndRace_StoresResults(t *testing.T) {
	b := newSQLiteBackend(t)
	race, track := testRace()
	require.NoError(t, b.StartRace(race, track))

	require.NoError(t, b.RecordLap(&core.LapEvent{VehicleID: 0, LapCount: 2, Time: raceStart}))
	require.NoError(t, b.RecordLap(&core.LapEvent{VehicleID: 1, LapCount: 1, Time: raceStart}))
	require.NoError(t, b.EndRace())

	var stored model.Race
	require.NoError(t, b.DB().First(&stored, race.ID).Error)
	require.NotNil(t, stored.EndTime)
	assert.True(t, stored.EndTime.Equal(raceStart.Add(time.Minute)))
	assert.JSONEq(t, `{"0": 2, "1": 1}`, string(stored.Results))
}

func TestClose_FlushesQueues(t *testing.T) {
	db, err := database.OpenSQLite("")
	require.NoError(t, err)
	b := New(Dependencies{DB: db, FlushInterval: time.Hour})
	require.NoError(t, b.Init())

	race, track := testRace()
	require.NoError(t, b.StartRace(race, track))
	require.NoError(t, b.RecordSkidmark(&core.Skidmark{VehicleID: 2, Time: raceStart}))
	require.NoError(t, b.Close())

	var count int64
	require.NoError(t, db.Model(&model.Skidmark{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
