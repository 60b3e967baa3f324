// Package config loads the simulator configuration from YAML, the
// environment and built-in defaults, in increasing order of precedence:
// defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Environment overrides
const (
	EnvLogLevel   = "PATHSIM_LOG_LEVEL"
	EnvMaxTicks   = "PATHSIM_MAX_TICKS"
	EnvServerAddr = "PATHSIM_SERVER_ADDR"
)

type Config struct {
	Map    MapConfig    `yaml:"map"`
	Search SearchConfig `yaml:"search"`
	Agents AgentsConfig `yaml:"agents"`
	Sim    SimConfig    `yaml:"sim"`
	Hazard HazardConfig `yaml:"hazard"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

// Cell is a map cell in whole map units
type Cell struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Point is a continuous map position
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type MapConfig struct {
	ID           string `yaml:"id" validate:"required"`
	Width        int    `yaml:"width" validate:"gt=0"`
	Height       int    `yaml:"height" validate:"gt=0"`
	ParcelWidth  int    `yaml:"parcel_width" validate:"gt=0"`
	ParcelHeight int    `yaml:"parcel_height" validate:"gt=0"`
	// Water lists parcels, not cells
	Water []Cell `yaml:"water"`
	// WaterZones is a GeoJSON file or directory of polygons painted as water
	WaterZones      string  `yaml:"water_zones"`
	SimplifyEpsilon float64 `yaml:"simplify_epsilon" validate:"gte=0"`
}

type SearchConfig struct {
	ExpansionsPerStep  int     `yaml:"expansions_per_step" validate:"gte=0"`
	HeuristicWeight    float64 `yaml:"heuristic_weight" validate:"gte=0"`
	HazardPenalty      float64 `yaml:"hazard_penalty" validate:"gte=0"`
	WaterPenalty       float64 `yaml:"water_penalty" validate:"gte=0"`
	OutOfBoundsPenalty float64 `yaml:"out_of_bounds_penalty" validate:"gte=0"`
}

type AgentsConfig struct {
	Strategy string  `yaml:"strategy" validate:"oneof=search lookahead"`
	Speed    float64 `yaml:"speed" validate:"gt=0"`
	Start    Point   `yaml:"start"`
	Target   Cell    `yaml:"target"`
	Waves    int     `yaml:"waves" validate:"gte=1"`
	PerWave  int     `yaml:"per_wave" validate:"gte=1"`
	Seed     uint64  `yaml:"seed"`
}

type SimConfig struct {
	MaxTicks int  `yaml:"max_ticks" validate:"gt=0"`
	Parallel bool `yaml:"parallel"`
}

type HazardConfig struct {
	// Snapshot is loaded before a run when it exists
	Snapshot string `yaml:"snapshot"`
	// Save writes the field back to Snapshot after a run
	Save bool `yaml:"save"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Default returns the built-in configuration: a 100x100 open map and a
// single search agent crossing it diagonally.
func Default() Config {
	return Config{
		Map: MapConfig{
			ID:           "default",
			Width:        100,
			Height:       100,
			ParcelWidth:  1,
			ParcelHeight: 1,
		},
		Search: SearchConfig{
			ExpansionsPerStep:  500,
			HeuristicWeight:    2,
			HazardPenalty:      1000,
			WaterPenalty:       1000,
			OutOfBoundsPenalty: 100000,
		},
		Agents: AgentsConfig{
			Strategy: "search",
			Speed:    5,
			Start:    Point{X: 0, Y: 0},
			Target:   Cell{X: 90, Y: 90},
			Waves:    1,
			PerWave:  1,
			Seed:     1,
		},
		Sim:    SimConfig{MaxTicks: 1000},
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvMaxTicks); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvMaxTicks, v, err)
		}
		cfg.Sim.MaxTicks = n
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		cfg.Server.Addr = v
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that the agents start and target
// on the map.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Map.Width%c.Map.ParcelWidth != 0 || c.Map.Height%c.Map.ParcelHeight != 0 {
		return fmt.Errorf("%w: map %dx%d is not a whole number of %dx%d parcels",
			ErrInvalidConfig, c.Map.Width, c.Map.Height, c.Map.ParcelWidth, c.Map.ParcelHeight)
	}
	if !c.onMap(c.Agents.Start.X, c.Agents.Start.Y) {
		return fmt.Errorf("%w: start (%g,%g) is off the map", ErrInvalidConfig, c.Agents.Start.X, c.Agents.Start.Y)
	}
	if !c.onMap(float64(c.Agents.Target.X), float64(c.Agents.Target.Y)) {
		return fmt.Errorf("%w: target [%d,%d] is off the map", ErrInvalidConfig, c.Agents.Target.X, c.Agents.Target.Y)
	}
	for _, w := range c.Map.Water {
		if w.X < 0 || w.Y < 0 || w.X >= c.Map.Width/c.Map.ParcelWidth || w.Y >= c.Map.Height/c.Map.ParcelHeight {
			return fmt.Errorf("%w: water parcel [%d,%d] is off the map", ErrInvalidConfig, w.X, w.Y)
		}
	}
	return nil
}

func (c Config) onMap(x, y float64) bool {
	return x >= 0 && y >= 0 && x < float64(c.Map.Width) && y < float64(c.Map.Height)
}
