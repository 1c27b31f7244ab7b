// Package v1 contains the v1 replay format for recorded races.
package v1

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	FormatVersion int        `json:"formatVersion"`
	EngineBuild   string     `json:"engineBuild"`
	RaceUUID      string     `json:"raceUuid"`
	RaceName      string     `json:"raceName"`
	StartTime     string     `json:"startTime"`
	TimeStep      float64    `json:"timeStep"`
	Laps          int        `json:"laps"`
	Tags          string     `json:"tags"`
	EndTick       uint       `json:"endTick"`
	Track         Track      `json:"track"`
	Vehicles      []Vehicle  `json:"vehicles"`
	Events        [][]any    `json:"events"`
	Standings     []Standing `json:"standings"`
}

// Track is the circuit geometry needed to draw a replay
type Track struct {
	Name       string       `json:"name"`
	Author     string       `json:"author,omitempty"`
	Length     float64      `json:"length"`
	TileSize   float64      `json:"tileSize"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	Centerline [][2]float64 `json:"centerline"`
}

// Vehicle is one racer. Index in Export.Vehicles equals ID.
type Vehicle struct {
	ID           uint16 `json:"id"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	WheelCount   int    `json:"wheelCount"`
	StartTickNum uint   `json:"startTickNum"`
	// Positions entries are [tick, x, y, angle, speed, z, recovery]
	Positions [][]any `json:"positions"`
	// LapTimes entries are [tick, lapCount, lapTimeMs]
	LapTimes [][]any `json:"lapTimes"`
}

// Standing is the final result of one vehicle
type Standing struct {
	Position  int    `json:"position"`
	VehicleID uint16 `json:"vehicleId"`
	Name      string `json:"name"`
	Laps      int    `json:"laps"`
	BestLapMs int64  `json:"bestLapMs"`
	// TotalMs is the sum of completed lap times
	TotalMs int64 `json:"totalMs"`
}
