package director

import (
	"math/rand/v2"

	"github.com/paulmach/orb"

	"pathfinder/internal/geom"
	"pathfinder/internal/hazard"
)

// LookAheadDirector heads straight for the target and only compares that
// move with stepping a quarter turn left or right. It gets stuck in local
// minima easily.
type LookAheadDirector struct {
	opts    options
	hazards *hazard.Registry
	rng     *rand.Rand
}

// NewLookAheadDirector creates a director breaking ties with rng
func NewLookAheadDirector(hazards *hazard.Registry, rng *rand.Rand, opts ...Option) *LookAheadDirector {
	if hazards == nil {
		hazards = hazard.NewRegistry()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	return &LookAheadDirector{opts: buildOptions(opts), hazards: hazards, rng: rng}
}

func (l *LookAheadDirector) DetermineDirection(pos orb.Point, target geom.Cell, m Map, maxSpeed float64) (orb.Point, bool) {
	if geom.Floor(pos) == target {
		return orb.Point{}, false
	}

	direction := geom.Sub(target.Point(), pos)
	if distance := geom.Length(direction); distance > maxSpeed {
		direction = geom.Scale(direction, maxSpeed/distance)
	}

	field := l.hazards.For(m)
	left := geom.Rotate(direction, -90)
	right := geom.Rotate(direction, 90)
	costAhead := l.moveCost(pos, direction, m, field)
	costLeft := l.moveCost(pos, left, m, field)
	costRight := l.moveCost(pos, right, m, field)

	if costAhead > costLeft || costAhead > costRight {
		l.opts.logger.Debug("ahead is costlier",
			"ahead", costAhead, "left", costLeft, "right", costRight)
		switch {
		case costLeft < costRight:
			direction = left
		case costRight < costLeft:
			direction = right
		case l.rng.IntN(2) == 0:
			direction = left
		default:
			direction = right
		}
	}
	return direction, true
}

func (l *LookAheadDirector) moveCost(pos, dir orb.Point, m Map, field *hazard.Field) float64 {
	dst := geom.Add(pos, dir)
	return float64(field.Penalty(m.ParcelOf(dst)))*1000 + geom.Distance(pos, dst)
}

func (l *LookAheadDirector) Died(ev DeathEvent) {
	pc := ev.Map.ParcelOf(ev.Position)
	if l.hazards.For(ev.Map).Increment(pc) {
		l.opts.metrics.Death(StrategyLookAhead)
	}
}
