package main

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/skidline/racecore/internal/cache"
	"github.com/skidline/racecore/internal/config"
	"github.com/skidline/racecore/internal/dispatcher"
	"github.com/skidline/racecore/internal/logging"
	"github.com/skidline/racecore/internal/race"
	"github.com/skidline/racecore/internal/recorder"
	"github.com/skidline/racecore/internal/storage/memory"
	"github.com/skidline/racecore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleConfig() config.SimConfig {
	return config.SimConfig{
		TimeStep:    1.0 / 60,
		Duration:    2 * time.Second,
		Vehicles:    2,
		RecordEvery: 6,
		TrackFile:   "../../tracks/oval.json",
		GroundFile:  "../../tracks/oval.ground.json",
		Laps:        3,
		Tag:         "test",
	}
}

func TestHttpToWS(t *testing.T) {
	assert.Equal(t, "ws://localhost:5000/api", httpToWS("http://localhost:5000/api/"))
	assert.Equal(t, "wss://results.example", httpToWS("https://results.example"))
}

func TestLoadTrack_Sample(t *testing.T) {
	tr, g, err := loadTrack(sampleConfig())
	require.NoError(t, err)
	assert.Equal(t, "oval", tr.Name)
	assert.InDelta(t, 120.0, tr.Length(), 1e-9)

	ct := coreTrack(tr, g)
	assert.Equal(t, 14, ct.Width)
	assert.Equal(t, 9, ct.Height)
	assert.Equal(t, 4.0, ct.TileSize)
	require.NotEmpty(t, ct.Centerline)
	assert.Equal(t, 8.0, ct.Centerline[0].X)
	assert.Equal(t, tr.Start(), ct.StartPoint)

	// The start line sits on a finish tile.
	info, ok := g.QueryAt(cp.Vector{X: ct.StartPoint.X, Y: ct.StartPoint.Y})
	require.True(t, ok)
	assert.True(t, info.Finish)
}

func TestLoadTrack_Missing(t *testing.T) {
	cfg := sampleConfig()
	cfg.TrackFile = "missing.json"
	_, _, err := loadTrack(cfg)
	assert.Error(t, err)
}

func TestNewRace(t *testing.T) {
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r := newRace(sampleConfig(), &core.Track{Name: "oval"}, start)
	assert.Len(t, r.UUID, 36)
	assert.Equal(t, "oval 2026-05-01 12:00", r.Name)
	assert.Equal(t, 3, r.Laps)
	assert.Equal(t, CurrentVersion, r.EngineBuild)
}

func TestRaceFinished_NoLapLimit(t *testing.T) {
	tr, g, err := loadTrack(sampleConfig())
	require.NoError(t, err)
	w, err := race.NewWorld(race.DefaultConfig(), race.Dependencies{Ground: g, Track: tr})
	require.NoError(t, err)
	_, err = w.AddRacer("solo", nil)
	require.NoError(t, err)

	assert.False(t, raceFinished(w, 0))
	assert.False(t, raceFinished(w, 1))
}

func TestRunRace_Memory(t *testing.T) {
	Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	SlogManager = logging.NewSlogManager()

	var err error
	eventDispatcher, err = dispatcher.New(logging.NewEventLogger(logging.NewZerolog(os.Stderr, "error")))
	require.NoError(t, err)

	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	storageBackend = backend
	recorderManager = recorder.NewManager(recorder.Dependencies{Vehicles: cache.NewVehicleCache()}, backend)
	recorderManager.RegisterHandlers(eventDispatcher)

	require.NoError(t, runRace(context.Background(), sampleConfig()))

	path := backend.GetExportedFilePath()
	require.NotEmpty(t, path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	meta := backend.GetExportMetadata()
	assert.Equal(t, "oval", meta.TrackName)
	assert.Greater(t, meta.RaceDuration, 1.5)

	v, ok := backend.GetVehicle(1)
	require.True(t, ok)
	assert.Equal(t, "car-2", v.Name)
}

func TestRunRace_BadTimeStep(t *testing.T) {
	cfg := sampleConfig()
	cfg.TimeStep = 0
	assert.Error(t, runRace(context.Background(), cfg))
}

func TestRaceStatus(t *testing.T) {
	tr, g, err := loadTrack(sampleConfig())
	require.NoError(t, err)
	w, err := race.NewWorld(race.DefaultConfig(), race.Dependencies{Ground: g, Track: tr})
	require.NoError(t, err)
	_, err = w.AddRacer("solo", nil)
	require.NoError(t, err)
	w.Step(1.0 / 60)

	status := raceStatus(w, "r-1")
	assert.Equal(t, "r-1", status.RaceUUID)
	assert.Equal(t, uint(1), status.Tick)
	require.Len(t, status.Racers, 1)
	assert.Equal(t, "solo", status.Racers[0].Name)
	assert.Equal(t, "normal", status.Racers[0].Recovery)
	assert.Zero(t, status.Racers[0].Laps, "a racer still on the grid reports no laps")
}
