package terrain

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// pointTolerance is the half-size of the query box used for point lookups
const pointTolerance = 1e-6

// zoneEntry wraps a zone polygon for R-tree storage
type zoneEntry struct {
	zone orb.Polygon
	bbox rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (z *zoneEntry) Bounds() rtreego.Rect {
	return z.bbox
}

// ZoneIndex answers point-in-zone queries over a set of polygons
type ZoneIndex struct {
	tree *rtreego.Rtree
	size int
}

// NewZoneIndex creates a new spatial index. Zones with an empty or
// degenerate bounding box are skipped.
func NewZoneIndex(zones []orb.Polygon) *ZoneIndex {
	tree := rtreego.NewTree(2, 25, 50) // 2D, min 25, max 50 entries per node

	size := 0
	for _, zone := range zones {
		if len(zone) == 0 || len(zone[0]) < 3 {
			continue
		}
		bbox, err := boundToRect(zone.Bound())
		if err != nil {
			continue
		}
		tree.Insert(&zoneEntry{zone: zone, bbox: bbox})
		size++
	}

	return &ZoneIndex{tree: tree, size: size}
}

// Len returns the number of indexed zones
func (zi *ZoneIndex) Len() int {
	return zi.size
}

// Contains reports whether p lies inside any indexed zone
func (zi *ZoneIndex) Contains(p orb.Point) bool {
	query, err := rtreego.NewRect(
		rtreego.Point{p[0] - pointTolerance, p[1] - pointTolerance},
		[]float64{2 * pointTolerance, 2 * pointTolerance},
	)
	if err != nil {
		return false
	}

	for _, item := range zi.tree.SearchIntersect(query) {
		if planar.PolygonContains(item.(*zoneEntry).zone, p) {
			return true
		}
	}
	return false
}

// PaintZones sets every parcel whose centre lies inside an indexed zone to
// kind k and returns the number of parcels painted.
func (m *Map) PaintZones(zi *ZoneIndex, k Kind) int {
	if zi == nil || zi.Len() == 0 {
		return 0
	}
	painted := 0
	for y := 0; y < m.rows; y++ {
		for x := 0; x < m.cols; x++ {
			pc := Parcel{X: x, Y: y}
			if zi.Contains(m.ParcelCenter(pc)) {
				m.parcels[y*m.cols+x] = k
				painted++
			}
		}
	}
	return painted
}

// boundToRect converts an orb bound to an R-tree rectangle
func boundToRect(b orb.Bound) (rtreego.Rect, error) {
	return rtreego.NewRect(
		rtreego.Point{b.Min[0], b.Min[1]},
		[]float64{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1]},
	)
}
