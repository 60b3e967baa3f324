package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pathsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500, cfg.Search.ExpansionsPerStep)
	assert.Equal(t, 2.0, cfg.Search.HeuristicWeight)
	assert.Equal(t, 100000.0, cfg.Search.OutOfBoundsPenalty)
	assert.Equal(t, 5.0, cfg.Agents.Speed)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
map:
  id: lake
  width: 20
  height: 10
  water:
    - {x: 4, y: 4}
    - {x: 5, y: 4}
agents:
  strategy: lookahead
  start: {x: 1.5, y: 2}
  target: {x: 18, y: 8}
  waves: 3
sim:
  parallel: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lake", cfg.Map.ID)
	assert.Equal(t, 20, cfg.Map.Width)
	assert.Equal(t, 1, cfg.Map.ParcelWidth)
	assert.Equal(t, []Cell{{4, 4}, {5, 4}}, cfg.Map.Water)
	assert.Equal(t, "lookahead", cfg.Agents.Strategy)
	assert.Equal(t, Point{1.5, 2}, cfg.Agents.Start)
	assert.Equal(t, Cell{18, 8}, cfg.Agents.Target)
	assert.Equal(t, 3, cfg.Agents.Waves)
	assert.Equal(t, 1, cfg.Agents.PerWave)
	assert.True(t, cfg.Sim.Parallel)
	assert.Equal(t, 1000, cfg.Sim.MaxTicks)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvMaxTicks, "42")
	t.Setenv(EnvServerAddr, "127.0.0.1:9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 42, cfg.Sim.MaxTicks)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "map: [unclosed"))
	assert.Error(t, err)

	t.Setenv(EnvMaxTicks, "many")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown strategy", func(c *Config) { c.Agents.Strategy = "teleport" }},
		{"zero speed", func(c *Config) { c.Agents.Speed = 0 }},
		{"no waves", func(c *Config) { c.Agents.Waves = 0 }},
		{"empty map id", func(c *Config) { c.Map.ID = "" }},
		{"negative width", func(c *Config) { c.Map.Width = -1 }},
		{"uneven parcels", func(c *Config) { c.Map.ParcelWidth = 3 }},
		{"start off map", func(c *Config) { c.Agents.Start = Point{-1, 5} }},
		{"target off map", func(c *Config) { c.Agents.Target = Cell{100, 5} }},
		{"water off map", func(c *Config) { c.Map.Water = []Cell{{0, 100}} }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"zero max ticks", func(c *Config) { c.Sim.MaxTicks = 0 }},
		{"no server addr", func(c *Config) { c.Server.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
