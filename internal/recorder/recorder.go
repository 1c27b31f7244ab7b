// Package recorder forwards race events from the dispatcher to a storage
// backend and, optionally, to InfluxDB telemetry.
package recorder

import (
	"errors"
	"fmt"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/skidline/racecore/internal/cache"
	"github.com/skidline/racecore/internal/dispatcher"
	"github.com/skidline/racecore/internal/influx"
	"github.com/skidline/racecore/internal/logging"
	"github.com/skidline/racecore/internal/model/convert"
	"github.com/skidline/racecore/internal/storage"
	"github.com/skidline/racecore/pkg/core"
	"github.com/skidline/racecore/pkg/streaming"
)

// ErrTooEarlyForStateAssociation is returned when state data arrives before
// its vehicle is registered.
var ErrTooEarlyForStateAssociation = errors.New("too early for state association")

// ErrUnexpectedPayload is returned when an event carries the wrong payload type.
var ErrUnexpectedPayload = errors.New("unexpected payload")

// PointWriter accepts telemetry points. *influx.Manager satisfies it.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the recorder.
type Dependencies struct {
	Vehicles   *cache.VehicleCache
	LogManager *logging.SlogManager
	// Telemetry is optional.
	Telemetry PointWriter
	// RaceUUID tags telemetry points.
	RaceUUID func() string
}

// Manager routes events into the backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
}

// NewManager creates a new recorder.
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Vehicles == nil {
		deps.Vehicles = cache.NewVehicleCache()
	}
	if deps.RaceUUID == nil {
		deps.RaceUUID = func() string { return "" }
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Vehicle creation - sync (need to cache before states arrive)
	d.Register(streaming.TypeAddVehicle, m.handleAddVehicle, dispatcher.Logged())

	// High-volume updates - buffered
	d.Register(streaming.TypeVehicleState, m.handleVehicleState, dispatcher.Buffered(10000), dispatcher.Logged())
	d.Register(streaming.TypeSkidmark, m.handleSkidmark, dispatcher.Buffered(5000))

	// Rare but must not be lost
	d.Register(streaming.TypeRecoveryTransition, m.handleRecovery, dispatcher.Buffered(1000), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(streaming.TypeLap, m.handleLap, dispatcher.Buffered(100), dispatcher.Blocking(), dispatcher.Logged())
}

// Reset forgets the registered vehicles, for a new race.
func (m *Manager) Reset() {
	m.deps.Vehicles.Reset()
}

func payload[T any](e dispatcher.Event) (*T, error) {
	p, ok := e.Payload.(*T)
	if !ok || p == nil {
		return nil, fmt.Errorf("%w for %s: %T", ErrUnexpectedPayload, e.Type, e.Payload)
	}
	return p, nil
}

func (m *Manager) handleAddVehicle(e dispatcher.Event) error {
	v, err := payload[core.Vehicle](e)
	if err != nil {
		return err
	}

	m.deps.Vehicles.AddVehicle(convert.CoreToVehicle(*v))
	if err := m.backend.AddVehicle(v); err != nil {
		return fmt.Errorf("failed to add vehicle: %w", err)
	}
	return nil
}

func (m *Manager) handleVehicleState(e dispatcher.Event) error {
	s, err := payload[core.VehicleState](e)
	if err != nil {
		return err
	}

	// Validate vehicle exists in cache
	if _, ok := m.deps.Vehicles.GetVehicle(s.VehicleID); !ok {
		return ErrTooEarlyForStateAssociation
	}

	if err := m.backend.RecordVehicleState(s); err != nil {
		return fmt.Errorf("failed to record vehicle state: %w", err)
	}
	writeTelemetry(m, influx.VehicleStatePoint, s)
	return nil
}

func (m *Manager) handleSkidmark(e dispatcher.Event) error {
	s, err := payload[core.Skidmark](e)
	if err != nil {
		return err
	}
	if err := m.backend.RecordSkidmark(s); err != nil {
		return fmt.Errorf("failed to record skidmark: %w", err)
	}
	return nil
}

func (m *Manager) handleRecovery(e dispatcher.Event) error {
	t, err := payload[core.RecoveryTransition](e)
	if err != nil {
		return err
	}
	if err := m.backend.RecordRecovery(t); err != nil {
		return fmt.Errorf("failed to record recovery transition: %w", err)
	}
	writeTelemetry(m, influx.RecoveryPoint, t)
	return nil
}

func (m *Manager) handleLap(e dispatcher.Event) error {
	l, err := payload[core.LapEvent](e)
	if err != nil {
		return err
	}

	m.deps.Vehicles.SetLaps(l.VehicleID, l.LapCount)
	if err := m.backend.RecordLap(l); err != nil {
		return fmt.Errorf("failed to record lap: %w", err)
	}
	writeTelemetry(m, influx.LapPoint, l)

	if v, ok := m.deps.Vehicles.GetVehicle(l.VehicleID); ok && m.deps.LogManager != nil {
		m.deps.LogManager.WriteLog("recorder", fmt.Sprintf("%s completed lap %d in %s", v.Name, l.LapCount, l.LapTime), "INFO")
	}
	return nil
}

// Laps returns the highest lap count seen per vehicle.
func (m *Manager) Laps() map[uint16]int {
	return m.deps.Vehicles.Laps()
}

// writeTelemetry is best effort; a failed point is logged and dropped.
func writeTelemetry[T any](m *Manager, build func(string, *T) *influxdb2_write.Point, v *T) {
	if m.deps.Telemetry == nil {
		return
	}
	if err := m.deps.Telemetry.WritePoint(build(m.deps.RaceUUID(), v)); err != nil && m.deps.LogManager != nil {
		m.deps.LogManager.WriteLog("recorder", "telemetry write failed: "+err.Error(), "WARN")
	}
}
