// Package director holds the movement strategies a pathfinder can be driven by.
package director

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/paulmach/orb"

	"pathfinder/internal/geom"
	"pathfinder/internal/hazard"
	"pathfinder/internal/metrics"
	"pathfinder/internal/search"
)

// Strategy names
const (
	StrategySearch    = "search"
	StrategyLookAhead = "lookahead"
)

// ErrUnknownStrategy is returned for strategy names the factory cannot build
var ErrUnknownStrategy = errors.New("unknown strategy")

// Map is what a director needs to know about the map it steers on
type Map interface {
	search.Terrain
	hazard.Grid
}

// Director decides where an agent moves next. It is called once per tick
// and returns false when the agent should stay put.
type Director interface {
	DetermineDirection(pos orb.Point, target geom.Cell, m Map, maxSpeed float64) (orb.Point, bool)
}

// DeathEvent describes an agent dying
type DeathEvent struct {
	Agent    string
	Position orb.Point
	Map      Map
}

// DeathListener is notified when an agent dies
type DeathListener interface {
	Died(ev DeathEvent)
}

type options struct {
	logger  *slog.Logger
	metrics *metrics.Search
	search  search.Config
}

// Option configures directors built by a Factory
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Search) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSearchConfig sets the cost model of search directors
func WithSearchConfig(cfg search.Config) Option {
	return func(o *options) {
		o.search = cfg
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.DiscardHandler),
		search: search.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Factory builds directors by strategy name. Directors of the same strategy
// share one hazard registry, so deaths reported to any of them steer all
// the others away.
type Factory struct {
	opts    []Option
	hazards map[string]*hazard.Registry

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFactory creates a factory. Search directors use searchHazards, which
// may be pre-loaded with a snapshot; look-ahead directors get a registry of
// their own. seed drives the look-ahead tie-breaks.
func NewFactory(searchHazards *hazard.Registry, seed uint64, opts ...Option) *Factory {
	if searchHazards == nil {
		searchHazards = hazard.NewRegistry()
	}
	return &Factory{
		opts: opts,
		hazards: map[string]*hazard.Registry{
			StrategySearch:    searchHazards,
			StrategyLookAhead: hazard.NewRegistry(),
		},
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// New returns a fresh director for strategy
func (f *Factory) New(strategy string) (Director, error) {
	switch strategy {
	case StrategySearch:
		return NewSearchDirector(f.hazards[StrategySearch], f.opts...), nil
	case StrategyLookAhead:
		f.mu.Lock()
		rng := rand.New(rand.NewPCG(f.rng.Uint64(), f.rng.Uint64()))
		f.mu.Unlock()
		return NewLookAheadDirector(f.hazards[StrategyLookAhead], rng, f.opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// Hazards returns the registry shared by directors of strategy
func (f *Factory) Hazards(strategy string) (*hazard.Registry, bool) {
	r, ok := f.hazards[strategy]
	return r, ok
}
