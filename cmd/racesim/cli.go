package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skidline/racecore/internal/config"
	"github.com/skidline/racecore/internal/database"
	gormstorage "github.com/skidline/racecore/internal/storage/gorm"
	"github.com/skidline/racecore/internal/storage/memory"
	v1 "github.com/skidline/racecore/internal/storage/memory/export/v1"

	"gorm.io/gorm"
)

// openRecordings opens the database named by args: a leading *.db argument
// selects a SQLite file, otherwise the configured postgres server is used.
// The remaining arguments are returned.
func openRecordings(args []string) (*gorm.DB, []string, error) {
	if len(args) > 0 && strings.HasSuffix(strings.ToLower(args[0]), ".db") {
		if _, err := os.Stat(args[0]); err != nil {
			return nil, nil, fmt.Errorf("sqlite file: %w", err)
		}
		db, err := database.OpenSQLite(args[0])
		if err != nil {
			return nil, nil, err
		}
		return db, args[1:], nil
	}

	db, err := database.OpenPostgres(config.GetStorageConfig().Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, args, nil
}

// exportRaces writes the JSON replay of each race uuid to the memory output
// dir.
func exportRaces(args []string) error {
	db, raceUUIDs, err := openRecordings(args)
	if err != nil {
		return err
	}
	if len(raceUUIDs) == 0 {
		return fmt.Errorf("no race uuids provided")
	}

	memCfg := config.GetStorageConfig().Memory
	if err := os.MkdirAll(memCfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, raceUUID := range raceUUIDs {
		txStart := time.Now()
		data, err := gormstorage.LoadRace(db, raceUUID)
		if err != nil {
			return err
		}

		fileName := filepath.Join(memCfg.OutputDir, memory.ExportFileName(data.Race, memCfg.CompressOutput))
		if err := memory.WriteExport(fileName, v1.Build(data), memCfg.CompressOutput); err != nil {
			return fmt.Errorf("error writing race %s: %w", raceUUID, err)
		}
		Logger.Info("Wrote race data", "race", raceUUID, "path", fileName, "duration", time.Since(txStart))
	}
	return nil
}

// reduceRaces thins the stored vehicle states of each race to one per five
// recording intervals.
func reduceRaces(args []string) error {
	db, raceUUIDs, err := openRecordings(args)
	if err != nil {
		return err
	}
	if len(raceUUIDs) == 0 {
		return fmt.Errorf("no race uuids provided")
	}

	keepEvery := config.GetSimConfig().RecordEvery * 5
	for _, raceUUID := range raceUUIDs {
		txStart := time.Now()
		deleted, err := gormstorage.ReduceRace(db, raceUUID, keepEvery)
		if err != nil {
			return err
		}
		Logger.Info("Reduced race", "race", raceUUID, "deleted", deleted, "duration", time.Since(txStart))
	}

	if db.Dialector.Name() == "sqlite" {
		if err := db.Exec("VACUUM").Error; err != nil {
			return fmt.Errorf("error running VACUUM: %w", err)
		}
	}
	return nil
}
