package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/skidline/racecore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric/noop"
)

func newFileProvider(t *testing.T) (*Provider, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	p, err := New(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "racesim",
		Version:      "1.2.3",
		BatchTimeout: time.Second,
		LogWriter:    &buf,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p, &buf
}

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), Config{})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.Equal(t, noop.Meter{}, p.Meter("racesim"))
	p.RaceFinished(context.Background(), core.UploadMetadata{RaceUUID: "r-1"})
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	p.RaceFinished(context.Background(), core.UploadMetadata{})
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutSinks(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true, ServiceName: "racesim"})
	assert.ErrorIs(t, err, ErrNoSink)
}

func TestNew_FileExporter(t *testing.T) {
	p, buf := newFileProvider(t)
	require.True(t, p.Enabled())
	require.NotNil(t, p.LoggerProvider())

	var rec log.Record
	rec.SetBody(log.StringValue("lap completed"))
	p.LoggerProvider().Logger("test").Emit(context.Background(), rec)

	require.NoError(t, p.Flush(context.Background()))
	assert.Contains(t, buf.String(), "lap completed")
	assert.Contains(t, buf.String(), "racesim")
	assert.Contains(t, buf.String(), "1.2.3")
}

func TestRaceFinished(t *testing.T) {
	p, buf := newFileProvider(t)

	p.RaceFinished(context.Background(), core.UploadMetadata{
		RaceUUID:     "r-7",
		RaceName:     "Sprint",
		TrackName:    "oval",
		RaceDuration: 92.5,
		Vehicles:     4,
		Winner:       "car-2",
		Laps:         3,
		BestLapMs:    28750,
	})
	require.NoError(t, p.Flush(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "race finished")
	for _, want := range []string{"race.uuid", "r-7", "race.track", "oval", "race.winner", "car-2", "race.best_lap_ms", "28750"} {
		assert.Contains(t, out, want)
	}
}

func TestRaceFinished_NoWinner(t *testing.T) {
	p, buf := newFileProvider(t)

	p.RaceFinished(context.Background(), core.UploadMetadata{RaceUUID: "r-8", Vehicles: 2})
	require.NoError(t, p.Flush(context.Background()))

	assert.Contains(t, buf.String(), "r-8")
	assert.NotContains(t, buf.String(), "race.winner")
}
