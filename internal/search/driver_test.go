package search

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/geom"
	"pathfinder/internal/hazard"
	"pathfinder/internal/metrics"
	"pathfinder/internal/terrain"
)

func openMap(t *testing.T) *terrain.Map {
	t.Helper()
	m, err := terrain.New("test", 10, 10, 1, 1)
	require.NoError(t, err)
	return m
}

// walk steps d until it arrives or gives up and returns every position the
// agent stood on, start included.
func walk(t *testing.T, d *Driver, m *terrain.Map, start orb.Point, target geom.Cell, speed float64) []orb.Point {
	t.Helper()
	pos := start
	visited := []orb.Point{pos}
	for tick := 0; tick < 50; tick++ {
		if geom.Floor(pos) == target {
			return visited
		}
		v, ok := d.Step(pos, target, m, speed)
		if ok {
			pos = geom.Add(pos, v)
			visited = append(visited, pos)
		}
		require.NotEqual(t, Exhausted, d.Phase())
	}
	t.Fatalf("did not reach %s, stopped at %v", target, pos)
	return nil
}

func cellsOf(points []orb.Point) []geom.Cell {
	cells := make([]geom.Cell, len(points))
	for i, p := range points {
		cells[i] = geom.Floor(p)
	}
	return cells
}

func TestDriver_StepAtTargetDoesNothing(t *testing.T) {
	d := NewDriver(nil)
	v, ok := d.Step(orb.Point{5.2, 5.7}, geom.Cell{X: 5, Y: 5}, openMap(t), 5)

	assert.False(t, ok)
	assert.Equal(t, orb.Point{}, v)
	assert.Equal(t, 0, d.NodeCount())
	assert.Equal(t, Idle, d.Phase())
	assert.Empty(t, d.Episode())
}

func TestDriver_OpenMap(t *testing.T) {
	m := openMap(t)
	d := NewDriver(hazard.NewField(m.Cols(), m.Rows()))
	target := geom.Cell{X: 5, Y: 5}
	start := orb.Point{0, 0}

	// first call only searches
	_, ok := d.Step(start, target, m, 5)
	assert.False(t, ok)
	assert.Equal(t, Searching, d.Phase())
	assert.NotEmpty(t, d.Episode())
	assert.Equal(t, int64(2), d.Stats().Expansions)
	assert.Equal(t, int64(14), d.Stats().Created)
	assert.Equal(t, 15, d.NodeCount())

	v, ok := d.Step(start, target, m, 5)
	require.True(t, ok)
	assert.InDelta(t, 3.5355, v[0], 1e-3)
	assert.InDelta(t, 3.5355, v[1], 1e-3)
	assert.Equal(t, Advancing, d.Phase())

	solution := d.Solution()
	require.Len(t, solution, 2)
	assert.Equal(t, target, geom.Floor(solution[1]))

	pos := geom.Add(start, v)
	v, ok = d.Step(pos, target, m, 5)
	require.True(t, ok)
	assert.InDelta(t, 1.4645, v[0], 1e-3)
	assert.InDelta(t, 1.4645, v[1], 1e-3)
	assert.Equal(t, Arrived, d.Phase())

	pos = geom.Add(pos, v)
	assert.Equal(t, target, geom.Floor(pos))
	_, ok = d.Step(pos, target, m, 5)
	assert.False(t, ok)
	assert.Equal(t, Arrived, d.Phase())
}

func TestDriver_MovesNeverExceedSpeed(t *testing.T) {
	m := openMap(t)
	d := NewDriver(nil)
	path := walk(t, d, m, orb.Point{0.5, 9.5}, geom.Cell{X: 9, Y: 0}, 3)

	for i := 1; i < len(path); i++ {
		assert.LessOrEqual(t, geom.Distance(path[i-1], path[i]), 3+1e-9)
	}
}

func TestDriver_AvoidsWater(t *testing.T) {
	m := openMap(t)
	require.NoError(t, m.SetTerrain(terrain.Parcel{X: 3, Y: 3}, terrain.Water))

	d := NewDriver(hazard.NewField(m.Cols(), m.Rows()))
	path := walk(t, d, m, orb.Point{0, 0}, geom.Cell{X: 5, Y: 5}, 5)

	assert.NotContains(t, cellsOf(path), geom.Cell{X: 3, Y: 3})
	assert.Equal(t, geom.Cell{X: 5, Y: 5}, geom.Floor(path[len(path)-1]))
}

func TestDriver_LearnsFromDeaths(t *testing.T) {
	m := openMap(t)
	field := hazard.NewField(m.Cols(), m.Rows())
	target := geom.Cell{X: 5, Y: 5}

	first := walk(t, NewDriver(field), m, orb.Point{0, 0}, target, 5)
	assert.Contains(t, cellsOf(first), geom.Cell{X: 3, Y: 3})

	field.Increment(terrain.Parcel{X: 3, Y: 3})

	second := walk(t, NewDriver(field), m, orb.Point{0, 0}, target, 5)
	assert.NotContains(t, cellsOf(second), geom.Cell{X: 3, Y: 3})
}

func TestDriver_MoveCost(t *testing.T) {
	m := openMap(t)
	field := hazard.NewField(m.Cols(), m.Rows())
	d := NewDriver(field)
	from := orb.Point{1, 1}

	assert.InDelta(t, 5.0, d.MoveCost(from, orb.Point{4, 5}, m), 1e-9)

	before := d.MoveCost(from, orb.Point{4.5, 5.5}, m)
	field.Increment(terrain.Parcel{X: 4, Y: 5})
	after := d.MoveCost(from, orb.Point{4.5, 5.5}, m)
	assert.InDelta(t, 1000.0, after-before, 1e-9)

	require.NoError(t, m.SetTerrain(terrain.Parcel{X: 2, Y: 1}, terrain.Water))
	assert.InDelta(t, 1001.0, d.MoveCost(from, orb.Point{2, 1}, m), 1e-9)

	assert.InDelta(t, 100002.0, d.MoveCost(from, orb.Point{-1, 1}, m), 1e-9)
}

func TestDriver_TreeInvariants(t *testing.T) {
	m := openMap(t)
	require.NoError(t, m.SetTerrain(terrain.Parcel{X: 4, Y: 4}, terrain.Water))
	d := NewDriver(nil)
	_, _ = d.Step(orb.Point{0.5, 0.5}, geom.Cell{X: 8, Y: 8}, m, 2)

	require.Greater(t, d.NodeCount(), 1)
	for id := NodeID(0); int(id) < d.NodeCount(); id++ {
		n, ok := d.Node(id)
		require.True(t, ok)
		if n.Parent == NoNode {
			continue
		}
		parent, _ := d.Node(n.Parent)
		assert.GreaterOrEqual(t, n.Cost, parent.Cost)
		assert.NotEqual(t, parent.Cell(), n.Cell())
		if parent.Parent != NoNode {
			grand, _ := d.Node(parent.Parent)
			assert.NotEqual(t, grand.Cell(), n.Cell())
		}
	}
	_, ok := d.Node(NodeID(d.NodeCount()))
	assert.False(t, ok)
}

func TestDriver_Deterministic(t *testing.T) {
	m := openMap(t)
	require.NoError(t, m.SetTerrain(terrain.Parcel{X: 5, Y: 6}, terrain.Water))
	require.NoError(t, m.SetTerrain(terrain.Parcel{X: 6, Y: 5}, terrain.Water))
	target := geom.Cell{X: 8, Y: 7}

	a := NewDriver(nil)
	b := NewDriver(nil)
	pathA := walk(t, a, m, orb.Point{1.5, 2.5}, target, 2.5)
	pathB := walk(t, b, m, orb.Point{1.5, 2.5}, target, 2.5)

	assert.Equal(t, pathA, pathB)
	assert.Equal(t, a.Stats(), b.Stats())
}

func TestDriver_TargetChangeStartsNewEpisode(t *testing.T) {
	m := openMap(t)
	d := NewDriver(nil)
	_, _ = d.Step(orb.Point{0, 0}, geom.Cell{X: 5, Y: 5}, m, 5)
	first := d.Episode()
	require.NotEmpty(t, first)

	_, _ = d.Step(orb.Point{0, 0}, geom.Cell{X: 7, Y: 2}, m, 5)
	assert.NotEqual(t, first, d.Episode())
	assert.Equal(t, geom.Cell{X: 7, Y: 2}, d.Target())

	root, ok := d.Root()
	require.True(t, ok)
	assert.Equal(t, orb.Point{0, 0}, root.Position)
	assert.Equal(t, NoNode, root.Parent)
}

func TestDriver_ExhaustedWhenNothingLeft(t *testing.T) {
	m := openMap(t)
	d := NewDriver(nil)
	target := geom.Cell{X: 5, Y: 5}
	d.target = target
	d.episode = "stuck"
	d.root = d.nodes.add(orb.Point{0, 0}, NoNode, 0)
	d.nodes.get(d.root).Evaluated = true

	v, ok := d.Step(orb.Point{0, 0}, target, m, 5)
	assert.False(t, ok)
	assert.Equal(t, orb.Point{}, v)
	assert.Equal(t, Exhausted, d.Phase())
}

func TestDriver_ScanFindsCheapestUnevaluated(t *testing.T) {
	d := NewDriver(nil)
	d.target = geom.Cell{X: 10, Y: 0}
	root := d.nodes.add(orb.Point{0, 0}, NoNode, 0)
	near := d.nodes.add(orb.Point{8, 0}, root, 8)
	far := d.nodes.add(orb.Point{0, 8}, root, 8)
	d.nodes.get(root).Children[0] = far
	d.nodes.get(root).Children[1] = near
	d.nodes.get(root).Evaluated = true
	d.root = root

	assert.Equal(t, near, d.bestCandidate())

	d.nodes.get(near).Evaluated = true
	d.nodes.get(far).Evaluated = true
	assert.Equal(t, NoNode, d.bestCandidate())
}

func TestDriver_DetachCutsSubtree(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := NewDriver(nil, WithMetrics(metrics.NewSearch(reg)))
	root := d.nodes.add(orb.Point{0, 0}, NoNode, 0)
	a := d.nodes.add(orb.Point{1, 0}, root, 1)
	b := d.nodes.add(orb.Point{2, 0}, a, 2)
	c := d.nodes.add(orb.Point{2, 1}, a, 3)
	d.nodes.get(root).Children[3] = a
	d.nodes.get(a).Children[2] = b
	d.nodes.get(a).Children[4] = c
	d.index.Insert(geom.Cell{X: 1, Y: 0}, a)
	d.root = root

	require.Equal(t, 4, d.CountNodes())
	d.detach(a)

	assert.Equal(t, NoNode, d.nodes.get(root).Children[3])
	assert.Equal(t, int64(3), d.Stats().Cut)
	assert.Equal(t, 1, d.CountNodes())

	// the detached node keeps its parent link and index entry
	assert.Equal(t, root, d.nodes.get(a).Parent)
	id, ok := d.index.Lookup(geom.Cell{X: 1, Y: 0})
	assert.True(t, ok)
	assert.Equal(t, a, id)
}

func TestDriver_ResetClearsEpisode(t *testing.T) {
	m := openMap(t)
	d := NewDriver(nil, WithConfig(Config{
		ExpansionsPerStep:  10,
		HeuristicWeight:    2,
		HazardPenalty:      1000,
		LethalPenalty:      1000,
		OutOfBoundsPenalty: 100000,
	}))
	_, _ = d.Step(orb.Point{0, 0}, geom.Cell{X: 9, Y: 9}, m, 1)
	require.NotZero(t, d.NodeCount())
	assert.LessOrEqual(t, d.Stats().Expansions, int64(11))

	d.Reset()
	assert.Equal(t, 0, d.NodeCount())
	assert.Equal(t, 0, d.CountNodes())
	assert.Equal(t, 0, d.FrontierLen())
	assert.Equal(t, Idle, d.Phase())
	assert.Nil(t, d.Solution())
	_, ok := d.Root()
	assert.False(t, ok)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "searching", Searching.String())
	assert.Equal(t, "advancing", Advancing.String())
	assert.Equal(t, "arrived", Arrived.String())
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
