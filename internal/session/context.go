// Package session holds the race currently being simulated.
package session

import (
	"sync"

	"github.com/skidline/racecore/pkg/core"
)

// Context holds the current race and track
type Context struct {
	mu    sync.RWMutex
	Race  *core.Race
	Track *core.Track
	tick  uint
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		Race:  &core.Race{Name: "No race loaded"},
		Track: &core.Track{Name: "No track loaded"},
	}
}

// GetRace returns the current race
func (c *Context) GetRace() *core.Race {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Race
}

// GetTrack returns the current track
func (c *Context) GetTrack() *core.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Track
}

// SetRace sets the current race and track and rewinds the tick.
func (c *Context) SetRace(race *core.Race, track *core.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Race = race
	c.Track = track
	c.tick = 0
}

// SetTick records the last simulated tick.
func (c *Context) SetTick(tick uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick = tick
}

func (c *Context) Tick() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tick
}

// RaceID returns the uuid of the current race, empty before one is loaded.
func (c *Context) RaceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Race == nil {
		return ""
	}
	return c.Race.UUID
}
