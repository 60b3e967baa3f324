package director

import (
	"github.com/paulmach/orb"

	"pathfinder/internal/geom"
	"pathfinder/internal/hazard"
	"pathfinder/internal/search"
)

// SearchDirector steers with the incremental node-graph search. A target
// change or a move to another map starts a new search episode.
type SearchDirector struct {
	opts    options
	hazards *hazard.Registry
	driver  *search.Driver
	mapID   string
}

func NewSearchDirector(hazards *hazard.Registry, opts ...Option) *SearchDirector {
	if hazards == nil {
		hazards = hazard.NewRegistry()
	}
	return &SearchDirector{opts: buildOptions(opts), hazards: hazards}
}

func (s *SearchDirector) DetermineDirection(pos orb.Point, target geom.Cell, m Map, maxSpeed float64) (orb.Point, bool) {
	if s.driver == nil || s.mapID != m.ID() {
		s.driver = search.NewDriver(s.hazards.For(m),
			search.WithConfig(s.opts.search),
			search.WithLogger(s.opts.logger),
			search.WithMetrics(s.opts.metrics))
		s.mapID = m.ID()
	}
	return s.driver.Step(pos, target, m, maxSpeed)
}

// Died records the death in the hazard field of the map it happened on
func (s *SearchDirector) Died(ev DeathEvent) {
	pc := ev.Map.ParcelOf(ev.Position)
	if !s.hazards.For(ev.Map).Increment(pc) {
		s.opts.logger.Warn("death outside map ignored", "agent", ev.Agent, "parcel", pc.String())
		return
	}
	s.opts.metrics.Death(StrategySearch)
	s.opts.logger.Debug("death recorded", "agent", ev.Agent, "parcel", pc.String())
}

// Driver returns the search driver of the current episode, or nil before
// the first step
func (s *SearchDirector) Driver() *search.Driver {
	return s.driver
}
