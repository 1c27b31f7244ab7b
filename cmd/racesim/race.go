package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jakecoffman/cp"
	"github.com/skidline/racecore/internal/config"
	"github.com/skidline/racecore/internal/ground"
	"github.com/skidline/racecore/internal/monitor"
	"github.com/skidline/racecore/internal/race"
	"github.com/skidline/racecore/internal/track"
	"github.com/skidline/racecore/pkg/core"
)

// loadTrack reads the centerline and ground files named in cfg.
func loadTrack(cfg config.SimConfig) (*track.Track, *ground.TileMap, error) {
	data, err := os.ReadFile(cfg.TrackFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read track file: %w", err)
	}
	t, err := track.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load track %s: %w", cfg.TrackFile, err)
	}

	data, err = os.ReadFile(cfg.GroundFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read ground file: %w", err)
	}
	g, err := ground.ParseTileMap(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load ground %s: %w", cfg.GroundFile, err)
	}
	return t, g, nil
}

// coreTrack describes a loaded track for recording.
func coreTrack(t *track.Track, g *ground.TileMap) *core.Track {
	width, height := g.Size()
	out := &core.Track{
		Name:       t.Name,
		Author:     t.Author,
		Length:     t.Length(),
		TileSize:   g.TileSize(),
		Width:      width,
		Height:     height,
		StartPoint: t.Start(),
	}

	seq := t.LineString().Coordinates()
	out.Centerline = make([]core.OrientedPoint, 0, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		xy := seq.GetXY(i)
		pose := t.PointAt(t.Project(cp.Vector{X: xy.X, Y: xy.Y}))
		out.Centerline = append(out.Centerline, core.OrientedPoint{X: xy.X, Y: xy.Y, Angle: pose.Angle})
	}
	return out
}

func newRace(cfg config.SimConfig, t *core.Track, start time.Time) *core.Race {
	return &core.Race{
		UUID:        uuid.NewString(),
		Name:        fmt.Sprintf("%s %s", t.Name, start.Format("2006-01-02 15:04")),
		TrackName:   t.Name,
		StartTime:   start,
		TimeStep:    cfg.TimeStep,
		Laps:        cfg.Laps,
		Tag:         cfg.Tag,
		EngineBuild: CurrentVersion,
	}
}

// raceFinished reports whether the leader has completed laps. laps <= 0
// races until the time limit.
func raceFinished(w *race.World, laps int) bool {
	if laps <= 0 {
		return false
	}
	for _, r := range w.Racers() {
		if r.Lap.LapCount() >= laps {
			return true
		}
	}
	return false
}

// statusEvery is how many ticks pass between status snapshots.
const statusEvery = 30

func raceStatus(w *race.World, raceUUID string) monitor.Status {
	status := monitor.Status{
		Time:     time.Now(),
		RaceUUID: raceUUID,
		Tick:     w.Tick(),
		Elapsed:  w.Elapsed(),
		Racers:   make([]monitor.RacerStatus, 0, len(w.Racers())),
	}
	for _, r := range w.Racers() {
		status.Racers = append(status.Racers, monitor.RacerStatus{
			ID:       r.ID(),
			Name:     r.Name,
			Recovery: r.Recovery.State().String(),
			Laps:     max(r.Lap.LapCount(), 0),
			Speed:    r.Vehicle.Speed(),
		})
	}
	return status
}

// runRace simulates one race at a fixed timestep, as fast as possible, until
// the laps are done, the duration elapses or ctx is cancelled.
func runRace(ctx context.Context, cfg config.SimConfig) error {
	if cfg.TimeStep <= 0 {
		return fmt.Errorf("sim.timeStep must be positive, got %v", cfg.TimeStep)
	}

	t, g, err := loadTrack(cfg)
	if err != nil {
		return err
	}
	ct := coreTrack(t, g)
	r := newRace(cfg, ct, time.Now())
	RaceContext.SetRace(r, ct)

	if err := storageBackend.StartRace(r, ct); err != nil {
		return fmt.Errorf("failed to start race: %w", err)
	}
	recorderManager.Reset()

	worldCfg := race.DefaultConfig()
	worldCfg.RecordEvery = cfg.RecordEvery
	world, err := race.NewWorld(worldCfg, race.Dependencies{
		Ground: g,
		Track:  t,
		Bus:    eventDispatcher,
		Logger: Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create world: %w", err)
	}

	for i := 0; i < cfg.Vehicles; i++ {
		if _, err := world.AddRacer(fmt.Sprintf("car-%d", i+1), race.NewAutoPilot()); err != nil {
			return fmt.Errorf("failed to add racer %d: %w", i+1, err)
		}
	}
	Logger.Info("Race started", "race", r.UUID, "track", t.Name, "racers", cfg.Vehicles, "laps", cfg.Laps)

	wallStart := time.Now()
	limit := cfg.Duration.Seconds()
loop:
	for world.Elapsed() < limit && !raceFinished(world, cfg.Laps) {
		select {
		case <-ctx.Done():
			Logger.Warn("Race interrupted", "tick", world.Tick())
			break loop
		default:
		}
		world.Step(cfg.TimeStep)
		RaceContext.SetTick(world.Tick())
		if monitorService != nil && world.Tick()%statusEvery == 0 {
			monitorService.Publish(raceStatus(world, r.UUID))
		}
	}
	if monitorService != nil {
		monitorService.Publish(raceStatus(world, r.UUID))
	}

	Logger.Info("Race finished",
		"ticks", world.Tick(),
		"simulated", time.Duration(world.Elapsed()*float64(time.Second)),
		"wall", time.Since(wallStart),
	)

	// All buffered events must reach the backend before it finalizes.
	eventDispatcher.Close()
	if err := storageBackend.EndRace(); err != nil {
		return fmt.Errorf("failed to end race: %w", err)
	}
	for id, laps := range recorderManager.Laps() {
		Logger.Info("Result", "vehicle", id, "laps", laps)
	}

	uploadRecording()
	return nil
}
