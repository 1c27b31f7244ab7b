// Package monitor periodically writes the latest race status to a file.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/skidline/racecore/internal/logging"
)

// DefaultInterval is how often the status file is rewritten.
const DefaultInterval = time.Second

// RacerStatus is one racer in a status snapshot.
type RacerStatus struct {
	ID       uint16  `json:"id"`
	Name     string  `json:"name"`
	Recovery string  `json:"recovery"`
	Laps     int     `json:"laps"`
	Speed    float64 `json:"speed"`
}

// Status is a snapshot of the running race.
type Status struct {
	Time     time.Time     `json:"time"`
	RaceUUID string        `json:"raceUuid"`
	Tick     uint          `json:"tick"`
	Elapsed  float64       `json:"elapsed"`
	Racers   []RacerStatus `json:"racers"`
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	StatusPath string
	// Interval defaults to DefaultInterval.
	Interval time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	latest    *Status
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Publish replaces the snapshot written on the next interval. The simulation
// loop calls it; the monitor never reads the world directly.
func (s *Service) Publish(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &status
}

// Latest returns the last published snapshot.
func (s *Service) Latest() (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Status{}, false
	}
	return *s.latest, true
}

// WriteStatus writes the last snapshot to the status file. It is a no-op
// before the first Publish.
func (s *Service) WriteStatus() error {
	status, ok := s.Latest()
	if !ok {
		return nil
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding status: %w", err)
	}
	if err := os.WriteFile(s.deps.StatusPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(s.done)
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "path", s.deps.StatusPath)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing final status", "error", err)
				}
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the final write.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
