package terrain

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// DropContainedZones removes zones that lie fully inside another zone.
// Painting parcels from the remaining zones gives the same result with
// fewer containment checks.
func DropContainedZones(zones []orb.Polygon) []orb.Polygon {
	if len(zones) <= 1 {
		return zones
	}

	contained := make([]bool, len(zones))
	for i := range zones {
		if contained[i] {
			continue
		}
		for j := range zones {
			if i == j || contained[j] {
				continue
			}
			if zoneContainedIn(zones[i], zones[j]) {
				contained[i] = true
				break
			}
			if zoneContainedIn(zones[j], zones[i]) {
				contained[j] = true
			}
		}
	}

	result := make([]orb.Polygon, 0, len(zones))
	for i, zone := range zones {
		if !contained[i] {
			result = append(result, zone)
		}
	}
	return result
}

// zoneContainedIn checks if the outer ring of a lies inside b
func zoneContainedIn(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 || len(a[0]) == 0 {
		return false
	}

	// Quick bounding box check first
	ab, bb := a.Bound(), b.Bound()
	if ab.Min[0] < bb.Min[0] || ab.Max[0] > bb.Max[0] || ab.Min[1] < bb.Min[1] || ab.Max[1] > bb.Max[1] {
		return false
	}

	for _, vertex := range a[0] {
		if !planar.PolygonContains(b, vertex) && !onRing(b[0], vertex) {
			return false
		}
	}
	return true
}

func onRing(r orb.Ring, p orb.Point) bool {
	for _, v := range r {
		if v.Equal(p) {
			return true
		}
	}
	return false
}

// SimplifyZones reduces zone complexity with Douglas-Peucker. A zone whose
// outer ring would collapse below a triangle is kept as is.
func SimplifyZones(zones []orb.Polygon, epsilon float64) []orb.Polygon {
	if epsilon <= 0 {
		return zones
	}

	simplifier := simplify.DouglasPeucker(epsilon)
	simplified := make([]orb.Polygon, len(zones))
	for i, zone := range zones {
		simplified[i] = zone
		result, ok := simplifier.Simplify(zone.Clone()).(orb.Polygon)
		if ok && len(result) > 0 && len(result[0]) >= 4 {
			simplified[i] = result
		}
	}
	return simplified
}
