package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/config"
	"pathfinder/internal/hazard"
	"pathfinder/internal/logging"
	"pathfinder/internal/sim"
	"pathfinder/internal/terrain"
)

const lakeZone = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {}, "geometry": {"type": "Polygon",
      "coordinates": [[[4,4],[7,4],[7,7],[4,7],[4,4]]]}},
    {"type": "Feature", "properties": {}, "geometry": {"type": "Polygon",
      "coordinates": [[[5,5],[6,5],[6,6],[5,6],[5,5]]]}}
  ]
}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "hazard.json")
	cfgPath := filepath.Join(dir, "pathsim.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
map:
  id: field
  width: 10
  height: 10
  water:
    - {x: 3, y: 3}
agents:
  strategy: lookahead
  start: {x: 0, y: 0}
  target: {x: 5, y: 5}
  waves: 2
  per_wave: 1
sim:
  max_ticks: 30
hazard:
  snapshot: `+snapshot+`
  save: true
`), 0o644))

	paths := filepath.Join(dir, "paths.geojson")
	out, err := execute(t, "run", "-c", cfgPath, "--geojson", paths)
	require.NoError(t, err)

	var report sim.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "field", report.MapID)
	assert.Equal(t, "lookahead", report.Strategy)
	assert.Equal(t, 2, report.Waves)
	require.Len(t, report.Agents, 2)
	assert.True(t, report.Agents[0].Dead)
	assert.Equal(t, int64(report.Died), report.Deaths)

	field, err := hazard.LoadField(snapshot)
	require.NoError(t, err)
	assert.Equal(t, report.Deaths, field.Total())
	assert.GreaterOrEqual(t, field.Penalty(terrain.Parcel{X: 3, Y: 3}), 1)

	data, err := os.ReadFile(paths)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestRunCommand_ReportFile(t *testing.T) {
	report := filepath.Join(t.TempDir(), "report.json")
	t.Setenv(config.EnvMaxTicks, "5")

	out, err := execute(t, "run", "-o", report, "--log-level", "error")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var r sim.Report
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, 5, r.Ticks)
	assert.Equal(t, 1, r.Stranded)
}

func TestRunCommand_BadConfig(t *testing.T) {
	_, err := execute(t, "run", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = execute(t, "run", "--log-level", "loud")
	assert.Error(t, err)
}

func TestBuildWorld_WaterZones(t *testing.T) {
	zones := filepath.Join(t.TempDir(), "lake.geojson")
	require.NoError(t, os.WriteFile(zones, []byte(lakeZone), 0o644))

	world, err := buildWorld(config.MapConfig{
		ID: "lake", Width: 10, Height: 10, ParcelWidth: 1, ParcelHeight: 1,
		Water:      []config.Cell{{X: 0, Y: 9}},
		WaterZones: zones,
	}, logging.Discard())
	require.NoError(t, err)

	// a 3x3 block of parcel centres from the lake plus the explicit cell
	assert.Equal(t, 10, world.Count(terrain.Water))
	kind, _ := world.TerrainAt(terrain.Parcel{X: 5, Y: 5})
	assert.Equal(t, terrain.Water, kind)
}

func TestLoadHazards(t *testing.T) {
	world, err := terrain.New("h", 4, 4, 1, 1)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "hazard.json")

	reg := hazard.NewRegistry()
	require.NoError(t, loadHazards(config.HazardConfig{Snapshot: path}, world, reg, logging.Discard()))
	assert.Zero(t, reg.For(world).Total())

	f := hazard.NewField(4, 4)
	f.Increment(terrain.Parcel{X: 1, Y: 2})
	require.NoError(t, f.Save(path))
	require.NoError(t, loadHazards(config.HazardConfig{Snapshot: path}, world, reg, logging.Discard()))
	assert.Equal(t, 1, reg.For(world).Penalty(terrain.Parcel{X: 1, Y: 2}))

	small, err := terrain.New("h", 2, 2, 1, 1)
	require.NoError(t, err)
	err = loadHazards(config.HazardConfig{Snapshot: path}, small, hazard.NewRegistry(), logging.Discard())
	assert.ErrorIs(t, err, hazard.ErrDimensionMismatch)
}
