// Package agent implements pathfinders: objects that walk a map toward a
// target under the control of a director and die when they enter water.
package agent

import (
	"log/slog"

	"github.com/paulmach/orb"

	"pathfinder/internal/director"
	"pathfinder/internal/geom"
)

// DefaultSpeed is the distance a pathfinder covers per tick
const DefaultSpeed = 5

// World is the map a pathfinder lives on
type World interface {
	director.Map
	Clamp(p orb.Point) orb.Point
}

// NewDirector creates the director for a new target
type NewDirector func() (director.Director, error)

// PathFinder is a single agent. It is not safe for concurrent use.
type PathFinder struct {
	name        string
	world       World
	pos         orb.Point
	speed       float64
	newDirector NewDirector
	logger      *slog.Logger

	target    geom.Cell
	hasTarget bool
	director  director.Director
	listeners []director.DeathListener

	dead    bool
	arrived bool
	ticks   int
	path    []orb.Point
}

// Option configures a PathFinder
type Option func(*PathFinder)

func WithSpeed(speed float64) Option {
	return func(p *PathFinder) {
		if speed > 0 {
			p.speed = speed
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *PathFinder) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDeathListener registers l to be told when the pathfinder dies
func WithDeathListener(l director.DeathListener) Option {
	return func(p *PathFinder) {
		p.listeners = append(p.listeners, l)
	}
}

// New places a pathfinder at start. newDirector is called every time the
// pathfinder gets a new target.
func New(name string, world World, start orb.Point, newDirector NewDirector, opts ...Option) *PathFinder {
	p := &PathFinder{
		name:        name,
		world:       world,
		pos:         world.Clamp(start),
		speed:       DefaultSpeed,
		newDirector: newDirector,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("agent", name)
	p.path = []orb.Point{p.pos}
	return p
}

// SetTarget sends the pathfinder to target. A target different from the
// current one gets a fresh director.
func (p *PathFinder) SetTarget(target geom.Cell) error {
	if p.hasTarget && p.target == target && p.director != nil {
		return nil
	}
	d, err := p.newDirector()
	if err != nil {
		return err
	}
	p.target = target
	p.hasTarget = true
	p.arrived = false
	p.director = d
	return nil
}

// Target returns the current target, if any
func (p *PathFinder) Target() (geom.Cell, bool) {
	return p.target, p.hasTarget
}

// ClearTarget stops the pathfinder and drops its director
func (p *PathFinder) ClearTarget() {
	p.hasTarget = false
	p.director = nil
}

// Tick moves the pathfinder one step. It reports whether it moved.
func (p *PathFinder) Tick() bool {
	if p.dead || !p.hasTarget || p.director == nil {
		return false
	}
	p.ticks++

	direction, ok := p.director.DetermineDirection(p.pos, p.target, p.world, p.speed)
	if !ok {
		if geom.Floor(p.pos) == p.target {
			p.reached()
		}
		return false
	}

	p.pos = p.world.Clamp(geom.Add(p.pos, direction))
	p.path = append(p.path, p.pos)

	if kind, ok := p.world.TerrainAt(p.world.ParcelOf(p.pos)); ok && kind.Lethal() {
		p.die()
		return true
	}
	if geom.Floor(p.pos) == p.target {
		p.reached()
	}
	return true
}

func (p *PathFinder) reached() {
	p.logger.Info("reached target", "target", p.target.String(), "ticks", p.ticks)
	p.arrived = true
	p.ClearTarget()
}

func (p *PathFinder) die() {
	p.logger.Info("died in water", "position", geom.Floor(p.pos).String(), "ticks", p.ticks)
	p.dead = true

	ev := director.DeathEvent{Agent: p.name, Position: p.pos, Map: p.world}
	if l, ok := p.director.(director.DeathListener); ok {
		l.Died(ev)
	}
	for _, l := range p.listeners {
		l.Died(ev)
	}
}

func (p *PathFinder) Name() string { return p.name }

func (p *PathFinder) Position() orb.Point { return p.pos }

func (p *PathFinder) Speed() float64 { return p.speed }

func (p *PathFinder) Alive() bool { return !p.dead }

// Arrived reports whether the pathfinder reached its last target
func (p *PathFinder) Arrived() bool { return p.arrived }

// Done reports whether the pathfinder has nothing left to do
func (p *PathFinder) Done() bool { return p.dead || !p.hasTarget }

// Ticks returns the number of ticks spent under a director
func (p *PathFinder) Ticks() int { return p.ticks }

// Path returns every position the pathfinder has stood on
func (p *PathFinder) Path() []orb.Point {
	out := make([]orb.Point, len(p.path))
	copy(out, p.path)
	return out
}

// Director returns the current director, nil without a target
func (p *PathFinder) Director() director.Director { return p.director }
