// pkg/core/race.go
package core

import "time"

// Track describes the circuit a race runs on.
type Track struct {
	ID         uint
	Name       string
	Author     string
	Length     float64
	TileSize   float64
	Width      int
	Height     int
	StartPoint OrientedPoint
	Centerline []OrientedPoint
}

// Race represents a recorded race session.
type Race struct {
	ID          uint
	UUID        string
	Name        string
	TrackName   string
	StartTime   time.Time
	TimeStep    float64
	Laps        int
	Tag         string
	EngineBuild string
}

// UploadMetadata describes a recording sent to the results server.
type UploadMetadata struct {
	RaceUUID  string
	TrackName string
	RaceName  string
	// RaceDuration is simulated seconds.
	RaceDuration float64
	Tag          string
	Vehicles     int
	// Winner and Laps come from the first standing.
	Winner    string
	Laps      int
	BestLapMs int64
}
