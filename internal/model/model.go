package model

import (
	"errors"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Track{},
	&Race{},
	&Vehicle{},
	&VehicleState{},
	&Skidmark{},
	&RecoveryTransition{},
	&Lap{},
}

// Track is a circuit. Tracks are shared between races by name.
type Track struct {
	gorm.Model
	Name       string          `json:"name" gorm:"size:127;uniqueIndex"`
	Author     string          `json:"author" gorm:"size:127"`
	Length     float64         `json:"length"`
	TileSize   float64         `json:"tileSize"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Centerline geom.LineString `json:"centerline"`
	Races      []Race
}

func (*Track) TableName() string {
	return "tracks"
}

// GetOrInsert loads the track with the same name, inserting it if missing.
func (t *Track) GetOrInsert(db *gorm.DB) (
	created bool,
	err error,
) {
	var existing Track
	err = db.Where("name = ?", t.Name).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = db.Create(t).Error
			return true, err
		}
		return false, err
	}
	// overwrite with db record if found
	*t = existing
	return false, nil
}

// Race is one recorded simulation run
type Race struct {
	gorm.Model
	UUID        string         `json:"uuid" gorm:"size:36;uniqueIndex"`
	Name        string         `json:"name" gorm:"size:200"`
	TrackID     uint           `json:"trackId"`
	Track       Track          `gorm:"foreignkey:TrackID"`
	StartTime   time.Time      `json:"startTime" gorm:"index:idx_race_start"`
	EndTime     *time.Time     `json:"endTime"`
	TimeStep    float64        `json:"timeStep"`
	Laps        int            `json:"laps"`
	Tag         string         `json:"tag" gorm:"size:127"`
	EngineBuild string         `json:"engineBuild" gorm:"size:64"`
	Results     datatypes.JSON `json:"results"` // completed laps per vehicle, set when the race ends
}

func (*Race) TableName() string {
	return "races"
}

// Vehicle is a racer registered in a race.
// Uses composite primary key (RaceID, VehicleID) - VehicleID is the race-local id
type Vehicle struct {
	RaceID     uint      `json:"raceId" gorm:"primaryKey;autoIncrement:false"`
	VehicleID  uint16    `json:"vehicleId" gorm:"primaryKey;autoIncrement:false"`
	Race       Race      `gorm:"foreignkey:RaceID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt  time.Time `json:"createdAt"`
	JoinTime   time.Time `json:"joinTime" gorm:"NOT NULL"`
	JoinTick   uint      `json:"joinTick"`
	Name       string    `json:"name" gorm:"size:64"`
	Model      string    `json:"model" gorm:"size:64"`
	WheelCount int       `json:"wheelCount"`
}

func (*Vehicle) TableName() string {
	return "vehicles"
}

// VehicleState is a periodic snapshot of a vehicle
type VehicleState struct {
	ID          uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time  `json:"time"`
	RaceID      uint       `json:"raceId" gorm:"index:idx_vehiclestate_race_id"`
	Tick        uint       `json:"tick" gorm:"index:idx_vehiclestate_tick"`
	VehicleID   uint16     `json:"vehicleId" gorm:"index:idx_vehiclestate_vehicle_id"`
	Position    geom.Point `json:"position"`
	Angle       float64    `json:"angle"` // degrees
	Speed       float64    `json:"speed"`
	Z           float64    `json:"z"` // lift height, 0 on the ground
	Stopped     bool       `json:"stopped"`
	Recovery    string     `json:"recovery" gorm:"size:16"`
	LapDistance float64    `json:"lapDistance"`
	LapCount    int        `json:"lapCount"`
	StuckWheels int        `json:"stuckWheels"`
	OnFinish    bool       `json:"onFinish"`
}

func (*VehicleState) TableName() string {
	return "vehicle_states"
}

// Skidmark is a drifting wheel's mark on the ground
type Skidmark struct {
	ID        uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time  `json:"time"`
	RaceID    uint       `json:"raceId" gorm:"index:idx_skidmark_race_id"`
	Tick      uint       `json:"tick"`
	VehicleID uint16     `json:"vehicleId"`
	Position  geom.Point `json:"position"`
	Impulse   float64    `json:"impulse"`
}

func (*Skidmark) TableName() string {
	return "skidmarks"
}

// RecoveryTransition is a state change of the fall recovery of a vehicle
type RecoveryTransition struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time      `json:"time"`
	RaceID    uint           `json:"raceId" gorm:"index:idx_recovery_race_id"`
	Tick      uint           `json:"tick"`
	VehicleID uint16         `json:"vehicleId" gorm:"index:idx_recovery_vehicle_id"`
	FromState string         `json:"from" gorm:"size:16"`
	ToState   string         `json:"to" gorm:"size:16"`
	Position  geom.Point     `json:"position"`
	Angle     float64        `json:"angle"`
	DropPoint datatypes.JSON `json:"dropPoint"` // {"X","Y","Angle"} when entering recovering
	Reset     bool           `json:"reset"`
}

func (*RecoveryTransition) TableName() string {
	return "recovery_transitions"
}

// Lap is a finish line crossing
type Lap struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	RaceID    uint      `json:"raceId" gorm:"index:idx_lap_race_id"`
	Tick      uint      `json:"tick"`
	VehicleID uint16    `json:"vehicleId"`
	LapCount  int       `json:"lapCount"`
	LapTimeMs int64     `json:"lapTimeMs"`
}

func (*Lap) TableName() string {
	return "laps"
}
