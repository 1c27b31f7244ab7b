package gormstorage

import (
	"errors"
	"fmt"

	"github.com/skidline/racecore/internal/model"
	"github.com/skidline/racecore/internal/model/convert"
	v1 "github.com/skidline/racecore/internal/storage/memory/export/v1"
	"github.com/skidline/racecore/pkg/core"

	"gorm.io/gorm"
)

// ErrRaceNotFound is returned when no race has the requested uuid.
var ErrRaceNotFound = errors.New("race not found")

// LoadRace reads a recorded race back into export form. Rows are ordered by
// tick.
func LoadRace(db *gorm.DB, raceUUID string) (*v1.RaceData, error) {
	var race model.Race
	err := db.Where("uuid = ?", raceUUID).First(&race).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRaceNotFound, raceUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting race: %w", err)
	}

	var track model.Track
	if err := db.First(&track, race.TrackID).Error; err != nil {
		return nil, fmt.Errorf("error getting track: %w", err)
	}

	coreRace := convert.RaceToCore(race)
	coreTrack := convert.TrackToCore(track)
	coreRace.TrackName = coreTrack.Name
	data := &v1.RaceData{
		Race:     &coreRace,
		Track:    &coreTrack,
		Vehicles: make(map[uint16]*v1.VehicleRecord),
	}

	var vehicles []model.Vehicle
	if err := db.Where("race_id = ?", race.ID).Order("vehicle_id ASC").Find(&vehicles).Error; err != nil {
		return nil, fmt.Errorf("error getting vehicles: %w", err)
	}
	for _, v := range vehicles {
		data.Vehicles[v.VehicleID] = &v1.VehicleRecord{Vehicle: convert.VehicleToCore(v)}
	}

	var states []model.VehicleState
	if err := db.Where("race_id = ?", race.ID).Order("tick ASC").Find(&states).Error; err != nil {
		return nil, fmt.Errorf("error getting vehicle states: %w", err)
	}
	for _, s := range states {
		if rec, ok := data.Vehicles[s.VehicleID]; ok {
			rec.States = append(rec.States, convert.VehicleStateToCore(s))
		}
	}

	var laps []model.Lap
	if err := db.Where("race_id = ?", race.ID).Order("tick ASC").Find(&laps).Error; err != nil {
		return nil, fmt.Errorf("error getting laps: %w", err)
	}
	for _, l := range laps {
		if rec, ok := data.Vehicles[l.VehicleID]; ok {
			rec.Laps = append(rec.Laps, convert.LapToCore(l))
		}
	}

	var skids []model.Skidmark
	if err := db.Where("race_id = ?", race.ID).Order("tick ASC").Find(&skids).Error; err != nil {
		return nil, fmt.Errorf("error getting skidmarks: %w", err)
	}
	data.Skidmarks = make([]core.Skidmark, 0, len(skids))
	for _, s := range skids {
		data.Skidmarks = append(data.Skidmarks, convert.SkidmarkToCore(s))
	}

	var transitions []model.RecoveryTransition
	if err := db.Where("race_id = ?", race.ID).Order("tick ASC").Find(&transitions).Error; err != nil {
		return nil, fmt.Errorf("error getting recovery transitions: %w", err)
	}
	data.Transitions = make([]core.RecoveryTransition, 0, len(transitions))
	for _, t := range transitions {
		data.Transitions = append(data.Transitions, convert.RecoveryTransitionToCore(t))
	}

	return data, nil
}

// ReduceRace thins the stored vehicle states of a race, keeping only ticks
// that are a multiple of keepEvery. It returns the number of deleted rows.
func ReduceRace(db *gorm.DB, raceUUID string, keepEvery uint) (int64, error) {
	if keepEvery < 2 {
		return 0, nil
	}

	var race model.Race
	err := db.Where("uuid = ?", raceUUID).First(&race).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrRaceNotFound, raceUUID)
	}
	if err != nil {
		return 0, fmt.Errorf("error getting race: %w", err)
	}

	res := db.Where("race_id = ? AND tick % ? != 0", race.ID, keepEvery).Delete(&model.VehicleState{})
	if res.Error != nil {
		return 0, fmt.Errorf("error deleting vehicle states: %w", res.Error)
	}
	return res.RowsAffected, nil
}
