package streaming

import (
	"encoding/json"

	"github.com/skidline/racecore/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRace          = "start_race"
	TypeEndRace            = "end_race"
	TypeAddVehicle         = "add_vehicle"
	TypeVehicleState       = "vehicle_state"
	TypeSkidmark           = "skidmark"
	TypeRecoveryTransition = "recovery_transition"
	TypeLap                = "lap"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRacePayload carries race and track data.
type StartRacePayload struct {
	Race  *core.Race  `json:"race"`
	Track *core.Track `json:"track"`
}

// EndRacePayload carries the final standings.
type EndRacePayload struct {
	RaceUUID string         `json:"raceUuid"`
	Laps     map[uint16]int `json:"laps"`
}
