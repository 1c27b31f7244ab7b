package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	raceStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name       string
		logsDir    string
		binaryName string
		want       string
	}{
		{
			name:       "basic path",
			logsDir:    "racelogs",
			binaryName: "racesim",
			want:       filepath.Join("racelogs", "racesim.20260212_213836.log"),
		},
		{
			name:       "relative path with dot",
			logsDir:    "./racelogs",
			binaryName: "racesim",
			want:       filepath.Join(".", "racelogs", "racesim.20260212_213836.log"),
		},
		{
			name:       "absolute path",
			logsDir:    filepath.Join("/var", "log", "racesim"),
			binaryName: "racesim",
			want:       filepath.Join("/var", "log", "racesim", "racesim.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.binaryName, raceStart)
			assert.Equal(t, tt.want, got)
		})
	}
}
