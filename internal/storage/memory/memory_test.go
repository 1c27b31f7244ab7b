package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skidline/racecore/internal/config"
	v1 "github.com/skidline/racecore/internal/storage/memory/export/v1"
	"github.com/skidline/racecore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func startRace(t *testing.T, b *Backend) {
	t.Helper()
	require.NoError(t, b.StartRace(
		&core.Race{UUID: "r-1", Name: "night sprint", StartTime: start, TimeStep: 0.5, Tag: "league"},
		&core.Track{Name: "oval"},
	))
}

func readExport(t *testing.T, path string, gz bool) v1.Export {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var export v1.Export
	if gz {
		r, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer r.Close()
		require.NoError(t, json.NewDecoder(r).Decode(&export))
	} else {
		require.NoError(t, json.NewDecoder(f).Decode(&export))
	}
	return export
}

func TestAddAndGetVehicle(t *testing.T) {
	b := New(config.MemoryConfig{})
	startRace(t, b)

	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 3, Name: "red"}))

	v, ok := b.GetVehicle(3)
	require.True(t, ok)
	assert.Equal(t, "red", v.Name)

	_, ok = b.GetVehicle(4)
	assert.False(t, ok)
}

func TestRecord_UnknownVehicleIgnored(t *testing.T) {
	b := New(config.MemoryConfig{})
	startRace(t, b)

	assert.NoError(t, b.RecordVehicleState(&core.VehicleState{VehicleID: 9}))
	assert.NoError(t, b.RecordLap(&core.LapEvent{VehicleID: 9}))
	assert.Empty(t, b.vehicles)
}

func TestStartRace_ResetsCollections(t *testing.T) {
	b := New(config.MemoryConfig{})
	startRace(t, b)
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 0}))
	require.NoError(t, b.RecordSkidmark(&core.Skidmark{}))
	require.NoError(t, b.RecordRecovery(&core.RecoveryTransition{}))

	startRace(t, b)

	assert.Empty(t, b.vehicles)
	assert.Empty(t, b.skidmarks)
	assert.Empty(t, b.transitions)
}

func TestEndRace_BeforeStart(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, b.EndRace())
	assert.Empty(t, b.GetExportedFilePath())
}

func TestEndRace_ExportsJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	startRace(t, b)

	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 0, Name: "red", Model: "buggy", WheelCount: 4}))
	require.NoError(t, b.RecordVehicleState(&core.VehicleState{VehicleID: 0, Tick: 6, Recovery: "normal"}))
	require.NoError(t, b.RecordVehicleState(&core.VehicleState{VehicleID: 0, Tick: 12, Recovery: "falling"}))
	require.NoError(t, b.RecordSkidmark(&core.Skidmark{VehicleID: 0, Tick: 8, X: 1, Y: 2, Impulse: 4}))
	require.NoError(t, b.RecordRecovery(&core.RecoveryTransition{VehicleID: 0, Tick: 12, From: "normal", To: "falling"}))
	require.NoError(t, b.RecordLap(&core.LapEvent{VehicleID: 0, Tick: 20, LapCount: 1, LapTime: 10 * time.Second}))
	require.NoError(t, b.EndRace())

	path := b.GetExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "night_sprint_20260501_120000.json"), path)

	export := readExport(t, path, false)
	assert.Equal(t, "night sprint", export.RaceName)
	assert.Equal(t, "oval", export.Track.Name)
	assert.Equal(t, uint(20), export.EndTick)
	require.Len(t, export.Vehicles, 1)
	assert.Len(t, export.Vehicles[0].Positions, 2)
	assert.Len(t, export.Events, 3)
	require.Len(t, export.Standings, 1)
	assert.Equal(t, 1, export.Standings[0].Laps)

	assert.Equal(t, core.UploadMetadata{
		RaceUUID:     "r-1",
		TrackName:    "oval",
		RaceName:     "night sprint",
		RaceDuration: 10,
		Tag:          "league",
		Vehicles:     1,
		Winner:       "red",
		Laps:         1,
		BestLapMs:    10000,
	}, b.GetExportMetadata())
}

func TestEndRace_Gzip(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: filepath.Join(dir, "nested"), CompressOutput: true})
	startRace(t, b)
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Name: "blue"}))
	require.NoError(t, b.EndRace())

	path := b.GetExportedFilePath()
	assert.Equal(t, ".gz", filepath.Ext(path))

	export := readExport(t, path, true)
	require.Len(t, export.Vehicles, 2)
	assert.Equal(t, "blue", export.Vehicles[1].Name)
}

func TestExportFileName(t *testing.T) {
	race := &core.Race{Name: "cup: round 1/2", StartTime: start}
	assert.Equal(t, "cup__round_1_2_20260501_120000.json", ExportFileName(race, false))
	assert.Equal(t, "cup__round_1_2_20260501_120000.json.gz", ExportFileName(race, true))
}

func TestWriteExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json.gz")
	require.NoError(t, WriteExport(path, v1.Export{RaceName: "sprint", EndTick: 9}, true))

	export := readExport(t, path, true)
	assert.Equal(t, "sprint", export.RaceName)
	assert.Equal(t, uint(9), export.EndTick)

	assert.Error(t, WriteExport(filepath.Join(t.TempDir(), "missing", "out.json"), v1.Export{}, false))
}
