// Package sim drives pathfinders over a map tick by tick.
//
// Agents are spawned in waves. A wave starts once every agent of the
// previous one has arrived or died, so later waves walk a map whose hazard
// field already remembers where their predecessors drowned.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"pathfinder/internal/agent"
	"pathfinder/internal/director"
	"pathfinder/internal/geom"
)

// ErrNoAgents is returned when a run is configured without any agent
var ErrNoAgents = errors.New("no agents to simulate")

// Config describes the agents of a run
type Config struct {
	Strategy string
	Speed    float64
	Start    orb.Point
	Target   geom.Cell
	Waves    int
	PerWave  int
	Parallel bool
}

// Factory creates directors by strategy name
type Factory interface {
	New(strategy string) (director.Director, error)
}

// Universe owns the agents of one run
type Universe struct {
	cfg     Config
	world   agent.World
	factory Factory
	logger  *slog.Logger

	agents []*member
	wave   int
	tick   int
	deaths atomic.Int64
}

type member struct {
	*agent.PathFinder
	wave int
}

// Option configures a Universe
type Option func(*Universe)

func WithLogger(logger *slog.Logger) Option {
	return func(u *Universe) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// New creates an empty universe over world
func New(world agent.World, factory Factory, cfg Config, opts ...Option) (*Universe, error) {
	if cfg.Waves < 1 || cfg.PerWave < 1 {
		return nil, fmt.Errorf("%w: %d waves of %d", ErrNoAgents, cfg.Waves, cfg.PerWave)
	}
	if _, err := factory.New(cfg.Strategy); err != nil {
		return nil, fmt.Errorf("strategy %q: %w", cfg.Strategy, err)
	}
	u := &Universe{
		cfg:     cfg,
		world:   world,
		factory: factory,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// Died counts agent deaths; Universe listens on every agent it spawns
func (u *Universe) Died(ev director.DeathEvent) {
	u.deaths.Add(1)
	u.logger.Debug("agent died", "agent", ev.Agent, "cell", geom.Floor(ev.Position).String())
}

// Spawn starts the next wave. It returns false when all waves have run.
func (u *Universe) Spawn() (bool, error) {
	if u.wave >= u.cfg.Waves {
		return false, nil
	}
	u.wave++
	for i := 0; i < u.cfg.PerWave; i++ {
		name := fmt.Sprintf("%s-%d-%d", u.cfg.Strategy, u.wave, i+1)
		p := agent.New(name, u.world, u.cfg.Start,
			func() (director.Director, error) { return u.factory.New(u.cfg.Strategy) },
			agent.WithSpeed(u.cfg.Speed),
			agent.WithLogger(u.logger),
			agent.WithDeathListener(u))
		if err := p.SetTarget(u.cfg.Target); err != nil {
			return false, fmt.Errorf("spawn %s: %w", name, err)
		}
		u.agents = append(u.agents, &member{PathFinder: p, wave: u.wave})
	}
	u.logger.Info("wave spawned", "wave", u.wave, "agents", u.cfg.PerWave)
	return true, nil
}

// Tick moves every active agent once
func (u *Universe) Tick(ctx context.Context) error {
	u.tick++
	active := u.active()
	if !u.cfg.Parallel {
		for _, m := range active {
			if err := ctx.Err(); err != nil {
				return err
			}
			m.Tick()
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, m := range active {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m.Tick()
			return nil
		})
	}
	return g.Wait()
}

func (u *Universe) active() []*member {
	var out []*member
	for _, m := range u.agents {
		if !m.Done() {
			out = append(out, m)
		}
	}
	return out
}

// Run spawns waves and ticks until every wave is done or maxTicks have
// passed. A cancelled context stops the run and is reported as its error
// along with the partial report.
func (u *Universe) Run(ctx context.Context, maxTicks int) (*Report, error) {
	id := uuid.NewString()
	u.logger.Info("run started", "run", id, "strategy", u.cfg.Strategy,
		"start", geom.Floor(u.cfg.Start).String(), "target", u.cfg.Target.String(),
		"waves", u.cfg.Waves, "per_wave", u.cfg.PerWave, "parallel", u.cfg.Parallel)

	var runErr error
	for u.tick < maxTicks {
		if len(u.active()) == 0 {
			more, err := u.Spawn()
			if err != nil {
				runErr = err
				break
			}
			if !more {
				break
			}
		}
		if err := u.Tick(ctx); err != nil {
			runErr = err
			break
		}
	}

	report := u.report(id)
	u.logger.Info("run finished", "run", id, "ticks", report.Ticks,
		"arrived", report.Arrived, "died", report.Died, "stranded", report.Stranded)
	return report, runErr
}

func (u *Universe) report(id string) *Report {
	r := &Report{
		ID:       id,
		MapID:    u.world.ID(),
		Strategy: u.cfg.Strategy,
		Ticks:    u.tick,
		Waves:    u.wave,
		Deaths:   u.deaths.Load(),
	}
	for _, m := range u.agents {
		a := AgentReport{
			Name:     m.Name(),
			Wave:     m.wave,
			Arrived:  m.Arrived(),
			Dead:     !m.Alive(),
			Ticks:    m.Ticks(),
			Position: m.Position(),
			Path:     m.Path(),
		}
		switch {
		case a.Arrived:
			r.Arrived++
		case a.Dead:
			r.Died++
		default:
			r.Stranded++
		}
		r.Agents = append(r.Agents, a)
	}
	return r
}

// Ticks returns the number of ticks run so far
func (u *Universe) Ticks() int { return u.tick }
