package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pathfinder/internal/config"
	"pathfinder/internal/director"
	"pathfinder/internal/hazard"
	"pathfinder/internal/metrics"
	"pathfinder/internal/search"
	"pathfinder/internal/terrain"
)

// buildWorld creates the map and paints its water
func buildWorld(cfg config.MapConfig, logger *slog.Logger) (*terrain.Map, error) {
	world, err := terrain.New(cfg.ID, cfg.Width, cfg.Height, cfg.ParcelWidth, cfg.ParcelHeight)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Water {
		if err := world.SetTerrain(terrain.Parcel{X: w.X, Y: w.Y}, terrain.Water); err != nil {
			return nil, err
		}
	}

	if cfg.WaterZones != "" {
		zones, err := terrain.LoadZones(cfg.WaterZones, logger)
		if err != nil {
			return nil, fmt.Errorf("load water zones: %w", err)
		}
		loaded := len(zones)
		zones = terrain.DropContainedZones(zones)
		if cfg.SimplifyEpsilon > 0 {
			zones = terrain.SimplifyZones(zones, cfg.SimplifyEpsilon)
		}
		painted := world.PaintZones(terrain.NewZoneIndex(zones), terrain.Water)
		logger.Info("water zones painted", "loaded", loaded, "kept", len(zones), "parcels", painted)
	}

	logger.Info("map ready", "map", world.ID(), "width", world.Width(), "height", world.Height(),
		"parcels", world.Cols()*world.Rows(), "water", world.Count(terrain.Water))
	return world, nil
}

func searchConfig(cfg config.SearchConfig) search.Config {
	return search.Config{
		ExpansionsPerStep:  cfg.ExpansionsPerStep,
		HeuristicWeight:    cfg.HeuristicWeight,
		HazardPenalty:      cfg.HazardPenalty,
		LethalPenalty:      cfg.WaterPenalty,
		OutOfBoundsPenalty: cfg.OutOfBoundsPenalty,
	}
}

// loadHazards installs the configured snapshot into reg for world. A
// missing snapshot file leaves reg empty.
func loadHazards(cfg config.HazardConfig, world *terrain.Map, reg *hazard.Registry, logger *slog.Logger) error {
	if cfg.Snapshot == "" {
		return nil
	}

	field, err := hazard.LoadField(cfg.Snapshot)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("no hazard snapshot yet", "file", cfg.Snapshot)
		return nil
	}
	if err != nil {
		return err
	}
	if err := reg.Adopt(world, field); err != nil {
		return err
	}
	logger.Info("hazard snapshot loaded", "file", cfg.Snapshot, "deaths", field.Total())
	return nil
}

// newMetrics creates a registry with the search counters and the runtime
// collectors
func newMetrics() (*prometheus.Registry, *metrics.Search) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewSearch(reg)
}

// newFactory builds the director factory with the hazard snapshot loaded
// into the registry of the configured strategy
func newFactory(cfg config.Config, world *terrain.Map, m *metrics.Search, logger *slog.Logger) (*director.Factory, error) {
	factory := director.NewFactory(nil, cfg.Agents.Seed,
		director.WithSearchConfig(searchConfig(cfg.Search)),
		director.WithMetrics(m),
		director.WithLogger(logger))

	reg, ok := factory.Hazards(cfg.Agents.Strategy)
	if !ok {
		return nil, fmt.Errorf("%w: %q", director.ErrUnknownStrategy, cfg.Agents.Strategy)
	}
	if err := loadHazards(cfg.Hazard, world, reg, logger); err != nil {
		return nil, err
	}
	return factory, nil
}
