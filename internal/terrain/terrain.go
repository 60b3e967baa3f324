// Package terrain models the tile world the pathfinders move over: a map
// measured in game units, divided into rectangular parcels that each carry a
// terrain kind.
package terrain

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"pathfinder/internal/geom"
)

// ErrInvalidSize is returned when map or parcel dimensions are not positive
// or the map is smaller than one parcel.
var ErrInvalidSize = errors.New("invalid map size")

// Kind classifies the terrain of a parcel
type Kind int

const (
	Grass Kind = iota
	Water
	Desert
)

// String returns the terrain name
func (k Kind) String() string {
	switch k {
	case Grass:
		return "grass"
	case Water:
		return "water"
	case Desert:
		return "desert"
	default:
		return "unknown"
	}
}

// Lethal reports whether a pathfinder entering this terrain dies
func (k Kind) Lethal() bool {
	return k == Water
}

// ParseKind converts a terrain name back into a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "grass":
		return Grass, nil
	case "water":
		return Water, nil
	case "desert":
		return Desert, nil
	}
	return Grass, fmt.Errorf("unknown terrain kind %q", s)
}

// Parcel is the coordinate of a parcel in the parcel grid
type Parcel struct {
	X, Y int
}

// String provides a string representation of Parcel
func (p Parcel) String() string {
	return fmt.Sprintf("[%d,%d]", p.X, p.Y)
}

// Map is a grid of parcels covering width x height game units
type Map struct {
	id           string
	width        int // game units
	height       int // game units
	parcelWidth  int // game units per parcel
	parcelHeight int // game units per parcel
	cols, rows   int // parcels
	parcels      []Kind
}

// New creates a map of grass parcels. The id identifies the map for state
// that is shared per map, such as the hazard field.
func New(id string, width, height, parcelWidth, parcelHeight int) (*Map, error) {
	if width <= 0 || height <= 0 || parcelWidth <= 0 || parcelHeight <= 0 {
		return nil, fmt.Errorf("%w: %dx%d with %dx%d parcels", ErrInvalidSize, width, height, parcelWidth, parcelHeight)
	}
	cols := width / parcelWidth
	rows := height / parcelHeight
	if cols == 0 || rows == 0 {
		return nil, fmt.Errorf("%w: %dx%d map holds no %dx%d parcel", ErrInvalidSize, width, height, parcelWidth, parcelHeight)
	}
	return &Map{
		id:           id,
		width:        width,
		height:       height,
		parcelWidth:  parcelWidth,
		parcelHeight: parcelHeight,
		cols:         cols,
		rows:         rows,
		parcels:      make([]Kind, cols*rows),
	}, nil
}

func (m *Map) ID() string  { return m.id }
func (m *Map) Width() int  { return m.width }
func (m *Map) Height() int { return m.height }

// Cols returns the width of the map in parcels
func (m *Map) Cols() int { return m.cols }

// Rows returns the height of the map in parcels
func (m *Map) Rows() int { return m.rows }

// Bounds returns the extent of the map in game units
func (m *Map) Bounds() orb.Bound {
	return orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{float64(m.width), float64(m.height)}}
}

// ParcelOf converts a game position to the parcel containing it
func (m *Map) ParcelOf(p orb.Point) Parcel {
	c := geom.Floor(p)
	return Parcel{X: floorDiv(c.X, m.parcelWidth), Y: floorDiv(c.Y, m.parcelHeight)}
}

// ParcelCenter returns the centre of a parcel in game units
func (m *Map) ParcelCenter(pc Parcel) orb.Point {
	return orb.Point{
		(float64(pc.X) + 0.5) * float64(m.parcelWidth),
		(float64(pc.Y) + 0.5) * float64(m.parcelHeight),
	}
}

// InBounds reports whether the parcel lies on the map
func (m *Map) InBounds(pc Parcel) bool {
	return pc.X >= 0 && pc.X < m.cols && pc.Y >= 0 && pc.Y < m.rows
}

// TerrainAt returns the terrain of a parcel, or false if it is off the map
func (m *Map) TerrainAt(pc Parcel) (Kind, bool) {
	if !m.InBounds(pc) {
		return Grass, false
	}
	return m.parcels[pc.Y*m.cols+pc.X], true
}

// SetTerrain changes the terrain of a parcel
func (m *Map) SetTerrain(pc Parcel, k Kind) error {
	if !m.InBounds(pc) {
		return fmt.Errorf("parcel %s outside %dx%d map", pc, m.cols, m.rows)
	}
	m.parcels[pc.Y*m.cols+pc.X] = k
	return nil
}

// Count returns the number of parcels of the given kind
func (m *Map) Count(k Kind) int {
	n := 0
	for _, kind := range m.parcels {
		if kind == k {
			n++
		}
	}
	return n
}

// Clamp clips a game position to the map, keeping it at least one unit
// inside the far edges.
func (m *Map) Clamp(p orb.Point) orb.Point {
	if p[0] < 0 {
		p[0] = 0
	} else if p[0] >= float64(m.width) {
		p[0] = float64(m.width - 1)
	}
	if p[1] < 0 {
		p[1] = 0
	} else if p[1] >= float64(m.height) {
		p[1] = float64(m.height - 1)
	}
	return p
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
