package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/skidline/racecore/internal/config"
	"github.com/skidline/racecore/internal/dispatcher"
	"github.com/skidline/racecore/internal/influx"
	"github.com/skidline/racecore/internal/logging"
	"github.com/skidline/racecore/internal/monitor"
	intOtel "github.com/skidline/racecore/internal/otel"
	"github.com/skidline/racecore/internal/recorder"
	"github.com/skidline/racecore/internal/session"
	"github.com/skidline/racecore/internal/storage"

	"github.com/spf13/viper"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	BinaryName string = "racesim"
)

// ConfigDirEnv overrides the directory holding racesim.cfg.json.
const ConfigDirEnv = "RACESIM_CONFIG_DIR"

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// EventLog is the zerolog logger of the event bus and database layer
	EventLog zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFilePath string
	LogFile     *os.File

	SessionStartTime time.Time = time.Now()

	// RaceContext is the race currently simulated, attached to every log record
	RaceContext *session.Context = session.NewContext()

	// Services
	eventDispatcher *dispatcher.Dispatcher
	recorderManager *recorder.Manager
	storageBackend  storage.Backend
	influxManager   *influx.Manager
	monitorService  *monitor.Service
)

func main() {
	configDir := os.Getenv(ConfigDirEnv)
	if configDir == "" {
		configDir = "."
	}

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil, nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", configDir)
	}

	args := os.Args[1:]
	command := "run"
	if len(args) > 0 {
		command = strings.ToLower(args[0])
		args = args[1:]
	}

	var err error
	switch command {
	case "run":
		err = run()
	case "export":
		err = exportRaces(args)
	case "reduce":
		err = reduceRaces(args)
	case "version":
		fmt.Printf("%s %s (built %s)\n", BinaryName, CurrentVersion, BuildDate)
	default:
		err = fmt.Errorf("unknown command %q, expected run, export, reduce or version", command)
	}

	if err != nil {
		Logger.Error("racesim failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func run() error {
	EventLog = logging.NewZerolog(os.Stdout, viper.GetString("logLevel"))
	if err := setupLogging(); err != nil {
		Logger.Warn("Failed to set up file logging, continuing on stdout", "error", err)
	}
	defer shutdownLogging()

	Logger.Info("Starting up...", "version", CurrentVersion, "build", BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	eventDispatcher, err = dispatcher.New(logging.NewEventLogger(EventLog))
	if err != nil {
		return fmt.Errorf("failed to create event dispatcher: %w", err)
	}

	if err := initStorage(ctx); err != nil {
		return err
	}
	defer closeStorage()

	monitorService = monitor.NewService(monitor.Dependencies{
		LogManager: SlogManager,
		StatusPath: filepath.Join(viper.GetString("logsDir"), "status.json"),
	})
	if err := monitorService.Start(); err != nil {
		Logger.Warn("Failed to start status monitor", "error", err)
	}
	defer monitorService.Stop()

	return runRace(ctx, config.GetSimConfig())
}

// setupLogging moves logging to a per-session file, adding OTel and GELF
// sinks when configured.
func setupLogging() error {
	logLevel := viper.GetString("logLevel")
	logsDir := viper.GetString("logsDir")

	// create logs dir if it doesn't exist
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}

	LogFilePath = logging.LogFilePath(logsDir, BinaryName, SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		_ = os.Rename(LogFilePath, LogFilePath+".old")
	}

	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to create/open log file %s: %w", LogFilePath, err)
	}

	// OTel exports into the session log file, so it starts after the file exists.
	otelCfg := config.GetOTelConfig()
	OTelProvider, err = intOtel.New(context.Background(), intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		Version:      CurrentVersion,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    LogFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		Logger.Error("Failed to initialize OTel provider", "error", err)
	}

	var gelfSink io.Writer
	if viper.GetBool("graylog.enabled") {
		w, err := logging.OpenGELF(viper.GetString("graylog.address"), BinaryName)
		if err != nil {
			Logger.Warn("Failed to connect to Graylog", "error", err)
		} else {
			gelfSink = w
		}
	}

	SlogManager.SetRaceSource(RaceContext)
	SlogManager.Setup(LogFile, logLevel, OTelProvider.LoggerProvider(), gelfSink)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)

	EventLog = logging.NewZerolog(LogFile, logLevel)
	return nil
}

func shutdownLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SlogManager.Flush(ctx); err != nil {
		Logger.Warn("Failed to flush logs", "error", err)
	}
	if err := OTelProvider.Shutdown(ctx); err != nil {
		Logger.Warn("Failed to shut down OTel provider", "error", err)
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

// backupPath places a file next to the session log.
func backupPath(name string) string {
	dir := viper.GetString("logsDir")
	return filepath.Join(dir, fmt.Sprintf("%s.%s", SessionStartTime.Format("20060102_150405"), name))
}
