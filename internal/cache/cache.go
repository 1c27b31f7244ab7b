package cache

import (
	"sync"

	"github.com/skidline/racecore/internal/model"
)

// VehicleCache caches vehicles when they are registered to avoid subsequent db reads.
// Writers check it on every state row, so lookups must not hit the database.
type VehicleCache struct {
	m        sync.Mutex
	Vehicles map[uint16]model.Vehicle
	laps     map[uint16]int
}

func NewVehicleCache() *VehicleCache {
	return &VehicleCache{
		m:        sync.Mutex{},
		Vehicles: make(map[uint16]model.Vehicle),
		laps:     make(map[uint16]int),
	}
}

func (c *VehicleCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.Vehicles = make(map[uint16]model.Vehicle)
	c.laps = make(map[uint16]int)
}

func (c *VehicleCache) Lock() {
	c.m.Lock()
}

func (c *VehicleCache) Unlock() {
	c.m.Unlock()
}

func (c *VehicleCache) GetVehicle(id uint16) (model.Vehicle, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if v, ok := c.Vehicles[id]; ok {
		return v, true
	}
	return model.Vehicle{}, false
}

func (c *VehicleCache) AddVehicle(v model.Vehicle) {
	c.m.Lock()
	defer c.m.Unlock()
	c.Vehicles[v.VehicleID] = v
}

// SetLaps records the latest completed lap count of a vehicle. Counts never
// go backwards.
func (c *VehicleCache) SetLaps(id uint16, laps int) {
	c.m.Lock()
	defer c.m.Unlock()
	if laps > c.laps[id] {
		c.laps[id] = laps
	}
}

// Laps returns a copy of the completed lap counts.
func (c *VehicleCache) Laps() map[uint16]int {
	c.m.Lock()
	defer c.m.Unlock()
	out := make(map[uint16]int, len(c.laps))
	for id, n := range c.laps {
		out[id] = n
	}
	return out
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

// Add increases the counter by n.
func (c *SafeCounter) Add(n int) {
	c.mu.Lock()
	c.v += n
	c.mu.Unlock()
}
