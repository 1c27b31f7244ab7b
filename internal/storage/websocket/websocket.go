// Package websocket streams a race to a live server as it is simulated.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/skidline/racecore/pkg/core"
	"github.com/skidline/racecore/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams race data over WebSocket.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config

	mu       sync.Mutex
	raceUUID string
	laps     map[uint16]int
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "websocket")),
		cfg:  cfg,
		laps: make(map[uint16]int),
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns how many messages were discarded because the server could
// not keep up.
func (b *Backend) Dropped() int {
	return b.conn.droppedCount()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and queues it without
// waiting for an ack. Only vehicle states may be dropped.
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.send(data, msgType == streaming.TypeVehicleState)
}

// StartRace sends race and track data and waits for server ack.
func (b *Backend) StartRace(race *core.Race, track *core.Track) error {
	data, err := marshalEnvelope(streaming.TypeStartRace, streaming.StartRacePayload{Race: race, Track: track})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.raceUUID = race.UUID
	b.laps = make(map[uint16]int)
	b.mu.Unlock()

	b.conn.setStart(data)
	return b.conn.sendAndWait(data, streaming.TypeStartRace, ackTimeout)
}

// EndRace sends the standings and waits for server ack.
func (b *Backend) EndRace() error {
	b.mu.Lock()
	payload := streaming.EndRacePayload{RaceUUID: b.raceUUID, Laps: b.laps}
	b.laps = make(map[uint16]int)
	b.mu.Unlock()

	data, err := marshalEnvelope(streaming.TypeEndRace, payload)
	if err == nil {
		err = b.conn.sendAndWait(data, streaming.TypeEndRace, ackTimeout)
	}

	b.conn.setStart(nil)
	return err
}

func (b *Backend) AddVehicle(v *core.Vehicle) error {
	return b.sendEnvelope(streaming.TypeAddVehicle, v)
}

func (b *Backend) RecordVehicleState(s *core.VehicleState) error {
	return b.sendEnvelope(streaming.TypeVehicleState, s)
}

func (b *Backend) RecordSkidmark(s *core.Skidmark) error {
	return b.sendEnvelope(streaming.TypeSkidmark, s)
}

func (b *Backend) RecordRecovery(t *core.RecoveryTransition) error {
	return b.sendEnvelope(streaming.TypeRecoveryTransition, t)
}

// RecordLap sends the lap and keeps the standings for end_race.
func (b *Backend) RecordLap(l *core.LapEvent) error {
	b.mu.Lock()
	if l.LapCount > b.laps[l.VehicleID] {
		b.laps[l.VehicleID] = l.LapCount
	}
	b.mu.Unlock()
	return b.sendEnvelope(streaming.TypeLap, l)
}
