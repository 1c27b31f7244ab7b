package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/skidline/racecore/internal/api"
	"github.com/skidline/racecore/internal/cache"
	"github.com/skidline/racecore/internal/config"
	"github.com/skidline/racecore/internal/influx"
	"github.com/skidline/racecore/internal/recorder"
	"github.com/skidline/racecore/internal/storage"
	"github.com/spf13/viper"
)

func initStorage(ctx context.Context) error {
	storageCfg := config.GetStorageConfig()
	if storageCfg.Type == "websocket" && storageCfg.WebSocket.URL == "" {
		storageCfg.WebSocket.URL = httpToWS(viper.GetString("api.serverUrl")) + "/ws/race"
	}

	backend, err := storage.NewBackend(storageCfg, storage.Dependencies{
		LogManager: SlogManager,
		DBLog:      EventLog,
	})
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	storageBackend = backend
	if err := storageBackend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return err
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	deps := recorder.Dependencies{
		Vehicles:   cache.NewVehicleCache(),
		LogManager: SlogManager,
		RaceUUID:   func() string { return RaceContext.GetRace().UUID },
	}
	if telemetry := initInflux(ctx); telemetry != nil {
		deps.Telemetry = telemetry
	}

	recorderManager = recorder.NewManager(deps, storageBackend)
	recorderManager.RegisterHandlers(eventDispatcher)
	Logger.Info("Recorder handlers registered with dispatcher")
	return nil
}

// initInflux returns nil when telemetry is disabled or cannot be written
// anywhere.
func initInflux(ctx context.Context) *influx.Manager {
	influxCfg := config.GetInfluxConfig()
	m := influx.NewManager(EventLog, backupPath("telemetry.lp.gz"))
	if err := m.Connect(ctx, influxCfg); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			Logger.Error("Failed to set up InfluxDB", "error", err)
		}
		return nil
	}
	influxManager = m
	return m
}

// closeStorage drains pending events before the backend is finalized.
func closeStorage() {
	if eventDispatcher != nil {
		eventDispatcher.Close()
	}
	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Error("Failed to close InfluxDB manager", "error", err)
		}
	}
}

// uploadRecording reports the finished export to OTel and sends it to the
// results server when the backend produced one.
func uploadRecording() {
	up, ok := storageBackend.(storage.Uploadable)
	if !ok {
		return
	}
	path := up.GetExportedFilePath()
	if path == "" {
		return
	}

	meta := up.GetExportMetadata()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	OTelProvider.RaceFinished(ctx, meta)
	if err := OTelProvider.Flush(ctx); err != nil {
		Logger.Warn("Failed to flush OTel logs", "error", err)
	}

	serverURL := viper.GetString("api.serverUrl")
	apiKey := viper.GetString("api.apiKey")
	if serverURL == "" || apiKey == "" {
		Logger.Info("Results server not configured, keeping recording local", "path", path)
		return
	}
	if err := api.Validate(meta); err != nil {
		Logger.Warn("Recording not uploadable, keeping it local", "path", path, "error", err)
		return
	}

	client := api.New(serverURL, apiKey)
	if err := client.Healthcheck(ctx); err != nil {
		Logger.Warn("Results server is offline", "error", err)
		return
	}
	receipt, err := client.Upload(ctx, path, meta)
	if err != nil {
		Logger.Error("Failed to upload recording", "path", path, "error", err)
		return
	}
	Logger.Info("Uploaded recording", "path", path, "race", meta.RaceUUID, "id", receipt.ID, "url", receipt.URL)
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
