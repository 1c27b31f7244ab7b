// Package ground answers "what is under this point" for wheels.
package ground

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/skidline/racecore/pkg/core"
)

// Query returns ground properties at a world position. ok is false when
// nothing is known about that position.
type Query interface {
	QueryAt(p cp.Vector) (info core.GroundInfo, ok bool)
}

// ErrInvalidTileMap is returned for malformed tile grids.
var ErrInvalidTileMap = errors.New("invalid tile map")

// Tile is the legend entry for one map character.
type Tile struct {
	MaxSpeed *float64 `json:"maxSpeed,omitempty"`
	Finish   bool     `json:"finish,omitempty"`
}

// TileMap is a fixed grid of tiles. Rows are listed top to bottom; world Y
// grows upward from the bottom edge of the grid.
type TileMap struct {
	tileSize float64
	width    int
	height   int
	cells    []*Tile
}

var _ Query = (*TileMap)(nil)

type tileMapFile struct {
	TileSize float64         `json:"tileSize"`
	Rows     []string        `json:"rows"`
	Legend   map[string]Tile `json:"legend"`
}

// ParseTileMap reads the "tileSize", "rows" and "legend" keys of a track
// file. Characters missing from the legend are empty cells.
func ParseTileMap(data []byte) (*TileMap, error) {
	var f tileMapFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse tile map JSON: %w", err)
	}
	if f.TileSize <= 0 {
		return nil, fmt.Errorf("%w: tileSize must be positive, got %v", ErrInvalidTileMap, f.TileSize)
	}
	if len(f.Rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidTileMap)
	}

	width := len([]rune(f.Rows[0]))
	m := &TileMap{
		tileSize: f.TileSize,
		width:    width,
		height:   len(f.Rows),
		cells:    make([]*Tile, width*len(f.Rows)),
	}
	for r, row := range f.Rows {
		runes := []rune(row)
		if len(runes) != width {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidTileMap, r, len(runes), width)
		}
		for c, ch := range runes {
			tile, ok := f.Legend[string(ch)]
			if !ok {
				continue
			}
			m.cells[r*width+c] = &tile
		}
	}
	return m, nil
}

// QueryAt implements Query. A tile without a max speed runs at full speed.
func (m *TileMap) QueryAt(p cp.Vector) (core.GroundInfo, bool) {
	tile := m.tileAt(p)
	if tile == nil {
		return core.GroundInfo{}, false
	}
	info := core.GroundInfo{MaxSpeed: 1, Finish: tile.Finish}
	if tile.MaxSpeed != nil {
		info.MaxSpeed = *tile.MaxSpeed
	}
	return info, true
}

func (m *TileMap) tileAt(p cp.Vector) *Tile {
	col := int(math.Floor(p.X / m.tileSize))
	row := m.height - 1 - int(math.Floor(p.Y/m.tileSize))
	if col < 0 || col >= m.width || row < 0 || row >= m.height {
		return nil
	}
	return m.cells[row*m.width+col]
}

// Size returns the grid dimensions in tiles.
func (m *TileMap) Size() (width, height int) { return m.width, m.height }

// TileSize returns the edge length of one tile in world units.
func (m *TileMap) TileSize() float64 { return m.tileSize }
