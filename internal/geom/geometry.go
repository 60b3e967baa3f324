package geom

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// snapEpsilon absorbs float drift so a coordinate such as 4.999999999999999
// still lands on cell 5.
const snapEpsilon = 1e-9

// Cell is an integer map-unit coordinate
type Cell struct {
	X, Y int
}

// String provides a string representation of Cell
func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Point returns the cell's origin as a continuous position
func (c Cell) Point() orb.Point {
	return orb.Point{float64(c.X), float64(c.Y)}
}

// Floor discretises a continuous position to the cell containing it
func Floor(p orb.Point) Cell {
	return Cell{
		X: int(math.Floor(p[0] + snapEpsilon)),
		Y: int(math.Floor(p[1] + snapEpsilon)),
	}
}

// Distance calculates Euclidean distance between two points
func Distance(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}

// Length returns the magnitude of vector v
func Length(v orb.Point) float64 {
	return math.Hypot(v[0], v[1])
}

// Add returns a + b
func Add(a, b orb.Point) orb.Point {
	return orb.Point{a[0] + b[0], a[1] + b[1]}
}

// Sub returns a - b
func Sub(a, b orb.Point) orb.Point {
	return orb.Point{a[0] - b[0], a[1] - b[1]}
}

// Scale multiplies v by f
func Scale(v orb.Point, f float64) orb.Point {
	return orb.Point{v[0] * f, v[1] * f}
}

// Rotate rotates the vector v by degrees. Positive angles rotate clockwise
// in screen coordinates (y pointing down).
func Rotate(v orb.Point, degrees int) orb.Point {
	a := float64(degrees) * math.Pi / 180.0
	sin, cos := math.Sincos(a)
	return orb.Point{
		v[0]*cos + v[1]*sin,
		v[1]*cos - v[0]*sin,
	}
}
