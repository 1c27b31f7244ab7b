package track

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// ParsePolyline parses a JSON array of coordinates into a geom.LineString.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParsePolyline(input []byte) (geom.LineString, error) {
	var coords [][]float64
	if err := json.Unmarshal(input, &coords); err != nil {
		return geom.LineString{}, fmt.Errorf("failed to parse polyline JSON: %w", err)
	}
	return lineStringFromCoords(coords)
}

func lineStringFromCoords(coords [][]float64) (geom.LineString, error) {
	if len(coords) < 2 {
		return geom.LineString{}, fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidPolyline, len(coords))
	}

	flatCoords := make([]float64, 0, len(coords)*2)
	for i, coord := range coords {
		if len(coord) < 2 {
			return geom.LineString{}, fmt.Errorf("%w: coordinate %d has insufficient values", ErrInvalidPolyline, i)
		}
		flatCoords = append(flatCoords, coord[0], coord[1])
	}

	ls, err := geom.NewLineString(geom.NewSequence(flatCoords, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("%w: %v", ErrInvalidPolyline, err)
	}
	return ls, nil
}
