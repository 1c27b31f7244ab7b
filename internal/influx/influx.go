// Package influx writes race telemetry to InfluxDB, or to a gzipped
// line-protocol backup file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/skidline/racecore/internal/config"
	"github.com/skidline/racecore/pkg/core"
)

// ErrDisabled is returned by Connect when influx is switched off.
var ErrDisabled = errors.New("influx is disabled")

// Measurement names.
const (
	MeasurementVehicleState = "vehicle_state"
	MeasurementLap          = "lap"
	MeasurementRecovery     = "recovery"
)

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	backupFile *os.File
	mu         sync.Mutex
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		IsValid:    false,
		Logger:     log,
		BackupPath: backupPath,
	}
}

// URL is the server address built from cfg.
func URL(cfg config.InfluxConfig) string {
	return fmt.Sprintf("%s://%s:%s", cfg.Protocol, cfg.Host, cfg.Port)
}

// Connect establishes a connection to InfluxDB. An unreachable server
// switches to the backup file.
func (m *Manager) Connect(ctx context.Context, cfg config.InfluxConfig) error {
	if !cfg.Enabled {
		return ErrDisabled
	}
	m.cfg = cfg

	m.Client = influxdb2.NewClientWithOptions(
		URL(cfg),
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)

	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %w", err)
			}
			m.backupFile = file
			m.BackupWriter = gzip.NewWriter(file)
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure bucket exists with 90 day retention
	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client or backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	m.IsValid = false
	if m.BackupWriter == nil {
		return nil
	}
	err := m.BackupWriter.Close()
	if cerr := m.backupFile.Close(); err == nil {
		err = cerr
	}
	m.BackupWriter = nil
	return err
}

// VehicleStatePoint describes a vehicle snapshot.
func VehicleStatePoint(raceUUID string, s *core.VehicleState) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementVehicleState,
		map[string]string{
			"race":     raceUUID,
			"vehicle":  fmt.Sprint(s.VehicleID),
			"recovery": s.Recovery,
		},
		map[string]any{
			"tick":        int64(s.Tick),
			"x":           s.Position.X,
			"y":           s.Position.Y,
			"angle":       s.Position.Angle,
			"speed":       s.Speed,
			"z":           s.Z,
			"lapDistance": s.LapDistance,
			"lapCount":    s.LapCount,
			"stuckWheels": s.StuckWheels,
		},
		s.Time,
	)
}

// LapPoint describes a completed lap.
func LapPoint(raceUUID string, l *core.LapEvent) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementLap,
		map[string]string{
			"race":    raceUUID,
			"vehicle": fmt.Sprint(l.VehicleID),
		},
		map[string]any{
			"tick":     int64(l.Tick),
			"lapCount": l.LapCount,
			"lapTime":  l.LapTime.Seconds(),
		},
		l.Time,
	)
}

// RecoveryPoint describes a recovery state change.
func RecoveryPoint(raceUUID string, t *core.RecoveryTransition) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementRecovery,
		map[string]string{
			"race":    raceUUID,
			"vehicle": fmt.Sprint(t.VehicleID),
			"from":    t.From,
			"to":      t.To,
		},
		map[string]any{
			"tick":  int64(t.Tick),
			"x":     t.Position.X,
			"y":     t.Position.Y,
			"reset": t.Reset,
		},
		t.Time,
	)
}
