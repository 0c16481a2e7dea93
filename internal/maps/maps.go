// Package maps loads room-map files: a JSON document with the room
// size and named tile layers. The "solid" layer drives collision;
// the NOTHING tile kind marks a passable cell.
package maps

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Nothing is the tile kind of an empty (passable) cell.
const Nothing = "NOTHING"

// SolidLayer is the layer consulted for collision checks.
const SolidLayer = "solid"

type roomFile struct {
	Size   [2]int32              `json:"size"`
	Layers map[string][][]string `json:"layers"`
}

// Room is the immutable tile grid of one room, loaded once.
type Room struct {
	ID     int64
	Name   string
	Height int32
	Width  int32

	layers map[string][][]string
}

// Load reads the map file for a room from dir/fileName.
func Load(dir, fileName string, id int64, name string) (*Room, error) {
	path := filepath.Join(dir, fileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading room map %s: %w", path, err)
	}
	return Parse(data, id, name)
}

// Parse builds a Room from raw map-file bytes.
func Parse(data []byte, id int64, name string) (*Room, error) {
	var rf roomFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing room map for %q: %w", name, err)
	}
	height, width := rf.Size[0], rf.Size[1]
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("parsing room map for %q: bad size %dx%d", name, height, width)
	}
	for layer, grid := range rf.Layers {
		if int32(len(grid)) != height {
			return nil, fmt.Errorf("parsing room map for %q: layer %q has %d rows, want %d", name, layer, len(grid), height)
		}
		for y, row := range grid {
			if int32(len(row)) != width {
				return nil, fmt.Errorf("parsing room map for %q: layer %q row %d has %d cells, want %d", name, layer, y, len(row), width)
			}
		}
	}
	return &Room{
		ID:     id,
		Name:   name,
		Height: height,
		Width:  width,
		layers: rf.Layers,
	}, nil
}

// InBounds reports whether (y, x) lies inside the grid.
func (r *Room) InBounds(y, x int32) bool {
	return y >= 0 && y < r.Height && x >= 0 && x < r.Width
}

// At returns the tile kind at (y, x) on the named layer. Cells on
// missing layers read as NOTHING.
func (r *Room) At(layer string, y, x int32) string {
	grid, ok := r.layers[layer]
	if !ok {
		return Nothing
	}
	return grid[y][x]
}

// Passable reports whether (y, x) is in bounds and free of solids.
func (r *Room) Passable(y, x int32) bool {
	return r.InBounds(y, x) && r.At(SolidLayer, y, x) == Nothing
}
