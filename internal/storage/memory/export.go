package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/skidline/racecore/internal/storage/memory/export/v1"
	"github.com/skidline/racecore/pkg/core"
)

// exportJSON writes the race data to a JSON file, gzipped when configured
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	outputPath := filepath.Join(b.cfg.OutputDir, ExportFileName(b.race, b.cfg.CompressOutput))

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := WriteExport(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastExportMeta = exportMetadata(export, b.race.TimeStep)
	return nil
}

// exportMetadata summarizes an export for the results server.
func exportMetadata(export v1.Export, timeStep float64) core.UploadMetadata {
	meta := core.UploadMetadata{
		RaceUUID:     export.RaceUUID,
		TrackName:    export.Track.Name,
		RaceName:     export.RaceName,
		RaceDuration: float64(export.EndTick) * timeStep,
		Tag:          export.Tags,
		Vehicles:     len(export.Vehicles),
	}
	if len(export.Standings) > 0 {
		meta.Winner = export.Standings[0].Name
		meta.Laps = export.Standings[0].Laps
	}
	for _, s := range export.Standings {
		if s.BestLapMs > 0 && (meta.BestLapMs == 0 || s.BestLapMs < meta.BestLapMs) {
			meta.BestLapMs = s.BestLapMs
		}
	}
	return meta
}

func (b *Backend) buildExport() v1.Export {
	return v1.Build(&v1.RaceData{
		Race:        b.race,
		Track:       b.track,
		Vehicles:    b.vehicles,
		Skidmarks:   b.skidmarks,
		Transitions: b.transitions,
	})
}

// ExportFileName names the export of race: race name and start time, with
// path-unsafe characters replaced.
func ExportFileName(race *core.Race, compress bool) string {
	raceName := strings.ReplaceAll(race.Name, " ", "_")
	raceName = strings.ReplaceAll(raceName, ":", "_")
	raceName = strings.ReplaceAll(raceName, "/", "_")
	timestamp := race.StartTime.Format("20060102_150405")

	if compress {
		return fmt.Sprintf("%s_%s.json.gz", raceName, timestamp)
	}
	return fmt.Sprintf("%s_%s.json", raceName, timestamp)
}

// WriteExport writes data as JSON to path, gzipped when compress is set.
func WriteExport(path string, data v1.Export, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if !compress {
		return json.NewEncoder(f).Encode(data)
	}

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		_ = gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
