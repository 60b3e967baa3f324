// Package search implements an incremental path search that interleaves
// exploring a node graph with moving along it.
//
// A Driver is stepped once per simulation tick. While no node has reached
// the target it expands a bounded number of the most promising nodes and
// reports no movement. Once a node at the target exists, each step consumes
// one way-point of that route and returns the vector to it.
//
// Costs combine distance travelled, the shared hazard field and lethal
// terrain. The heuristic is twice the straight-line distance, which favours
// fast greedy progress over guaranteed shortest paths.
package search

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"pathfinder/internal/geom"
	"pathfinder/internal/hazard"
	"pathfinder/internal/metrics"
	"pathfinder/internal/terrain"
)

// Terrain is the part of the map the driver consults when pricing moves
type Terrain interface {
	ParcelOf(p orb.Point) terrain.Parcel
	TerrainAt(pc terrain.Parcel) (terrain.Kind, bool)
}

// Config tunes the cost model and the per-step work bound
type Config struct {
	ExpansionsPerStep  int
	HeuristicWeight    float64
	HazardPenalty      float64 // per recorded death
	LethalPenalty      float64
	OutOfBoundsPenalty float64
}

// DefaultConfig returns the standard cost model
func DefaultConfig() Config {
	return Config{
		ExpansionsPerStep:  500,
		HeuristicWeight:    2,
		HazardPenalty:      1000,
		LethalPenalty:      1000,
		OutOfBoundsPenalty: 100000,
	}
}

// Phase is the state of the current episode
type Phase int

const (
	Idle Phase = iota
	Searching
	Advancing
	Arrived
	Exhausted
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Searching:
		return metrics.PhaseSearching
	case Advancing:
		return metrics.PhaseAdvancing
	case Arrived:
		return metrics.PhaseArrived
	case Exhausted:
		return metrics.PhaseExhausted
	default:
		return "unknown"
	}
}

// Stats counts what happened to candidate nodes during an episode
type Stats struct {
	Created    int64
	Redundant  int64 // position already on the path back to the root
	Expensive  int64 // an equal or cheaper route to the position exists
	Cut        int64 // detached when a cheaper route was found
	Expansions int64
}

// Driver runs one search episode at a time for one agent. It is not safe
// for concurrent use; only the hazard field is shared.
type Driver struct {
	cfg     Config
	hazard  *hazard.Field
	logger  *slog.Logger
	metrics *metrics.Search

	episode  string
	nodes    arena
	index    *NodeIndex
	frontier *Frontier
	root     NodeID
	goal     NodeID
	target   geom.Cell
	phase    Phase
	stats    Stats
}

// Option configures a Driver
type Option func(*Driver)

// WithConfig replaces the default cost model
func WithConfig(cfg Config) Option {
	return func(d *Driver) {
		d.cfg = cfg
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Search) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// NewDriver creates an idle driver pricing hazards from field. A nil field
// prices every parcel as hazard free.
func NewDriver(field *hazard.Field, opts ...Option) *Driver {
	d := &Driver{
		cfg:    DefaultConfig(),
		hazard: field,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cfg.ExpansionsPerStep < 0 {
		d.cfg.ExpansionsPerStep = 0
	}
	d.Reset()
	return d
}

// Reset abandons the current episode
func (d *Driver) Reset() {
	d.episode = ""
	d.nodes = arena{}
	d.index = NewNodeIndex()
	d.frontier = NewFrontier()
	d.root = NoNode
	d.goal = NoNode
	d.target = geom.Cell{}
	d.phase = Idle
	d.stats = Stats{}
}

// Step advances the episode toward target by one tick. It returns the
// vector to move by and true, or false when the agent should not move:
// it is already at target, or the search needs more ticks.
func (d *Driver) Step(pos orb.Point, target geom.Cell, m Terrain, maxSpeed float64) (orb.Point, bool) {
	if geom.Floor(pos) == target {
		if d.root != NoNode {
			d.phase = Arrived
		}
		d.metrics.Step(metrics.PhaseArrived)
		return orb.Point{}, false
	}

	if d.root != NoNode && target != d.target {
		d.logger.Debug("target changed, starting new episode",
			"episode", d.episode, "old_target", d.target.String(), "new_target", target.String())
		d.Reset()
	}

	if d.root == NoNode {
		d.target = target
		d.episode = uuid.NewString()
		d.root = d.nodes.add(pos, NoNode, 0)
		d.nodes.get(d.root).PotentialCost = d.heuristic(pos, target.Point())
		d.index.Insert(geom.Floor(pos), d.root)
		d.phase = Searching
		d.logger.Debug("episode started", "episode", d.episode,
			"start", geom.Floor(pos).String(), "target", target.String())
	}

	if d.nodes.get(d.root).Cell() == target {
		d.phase = Arrived
		d.metrics.Step(metrics.PhaseArrived)
		return orb.Point{}, false
	}

	best := d.bestCandidate()
	if best == NoNode {
		d.exhausted()
		return orb.Point{}, false
	}
	if d.nodes.get(best).Cell() == target {
		return d.advance(best)
	}

	d.phase = Searching
	d.metrics.Step(metrics.PhaseSearching)
	d.expand(best, target, m, maxSpeed)
	for i := 0; i < d.cfg.ExpansionsPerStep; i++ {
		best = d.bestCandidate()
		if best == NoNode || d.nodes.get(best).Cell() == target {
			break
		}
		d.expand(best, target, m, maxSpeed)
	}
	return orb.Point{}, false
}

func (d *Driver) exhausted() {
	if d.phase != Exhausted {
		d.logger.Warn("search space exhausted", "episode", d.episode,
			"target", d.target.String(), "nodes", d.nodes.len())
	}
	d.phase = Exhausted
	d.metrics.Step(metrics.PhaseExhausted)
}

// advance walks back from the goal node to the way-point after the root,
// makes it the new root and returns the vector to it.
func (d *Driver) advance(goal NodeID) (orb.Point, bool) {
	if d.goal == NoNode {
		d.logger.Info("found target", "episode", d.episode, "target", d.target.String(),
			"nodes_created", d.stats.Created, "nodes_redundant", d.stats.Redundant,
			"nodes_in_use", d.nodes.countNodes(d.root))
	}
	d.goal = goal

	cur := goal
	for {
		n := d.nodes.get(cur)
		n.OnBestPath = true
		if n.Parent == d.root {
			break
		}
		if n.Parent == NoNode {
			// goal lies in a detached or bypassed branch; drop it and keep searching
			d.logger.Debug("goal not reachable from root", "episode", d.episode, "node", goal)
			d.nodes.get(goal).Evaluated = true
			d.frontier.Remove(goal)
			d.goal = NoNode
			d.phase = Searching
			d.metrics.Step(metrics.PhaseSearching)
			return orb.Point{}, false
		}
		cur = n.Parent
	}

	waypoint := d.nodes.get(cur)
	vector := geom.Sub(waypoint.Position, d.nodes.get(d.root).Position)
	d.root = cur

	if waypoint.Cell() == d.target {
		d.phase = Arrived
	} else {
		d.phase = Advancing
	}
	d.metrics.Step(metrics.PhaseAdvancing)
	return vector, true
}

// bestCandidate returns the unevaluated node with the lowest potential cost
func (d *Driver) bestCandidate() NodeID {
	if id, ok := d.frontier.PeekMin(); ok {
		return id
	}
	return d.scanSubtree(d.root)
}

// scanSubtree searches the tree below id for the cheapest unevaluated node.
// Only needed before the first expansion has filled the frontier.
func (d *Driver) scanSubtree(id NodeID) NodeID {
	if id == NoNode {
		return NoNode
	}
	targetPt := d.target.Point()
	result := NoNode
	var minCost float64

	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := d.nodes.get(cur)
		if !n.Evaluated {
			cost := n.Cost + d.heuristic(n.Position, targetPt)
			if result == NoNode || cost < minCost {
				result, minCost = cur, cost
			}
		}
		for slot := Directions - 1; slot >= 0; slot-- {
			if child := n.Children[slot]; child != NoNode {
				stack = append(stack, child)
			}
		}
	}
	return result
}

// expand creates the children of node id, one per direction around its
// heading, and marks it evaluated.
func (d *Driver) expand(id NodeID, target geom.Cell, m Terrain, maxSpeed float64) {
	n := *d.nodes.get(id)
	targetPt := target.Point()
	distanceToTarget := geom.Distance(n.Position, targetPt)

	var direction orb.Point
	var distance float64
	if n.Parent == NoNode {
		direction = geom.Sub(targetPt, n.Position)
		distance = distanceToTarget
	} else {
		// keep going straight ahead from the previous move
		direction = geom.Sub(n.Position, d.nodes.get(n.Parent).Position)
		distance = geom.Length(direction)
		if distance > 0 && distance < maxSpeed {
			direction = geom.Scale(direction, maxSpeed/distance)
			distance = maxSpeed
		}
	}
	if distance > maxSpeed {
		direction = geom.Scale(direction, maxSpeed/distance)
		distance = maxSpeed
	}
	if distance > distanceToTarget {
		direction = geom.Scale(direction, distanceToTarget/distance)
	}

	direction = geom.Rotate(direction, -segmentAngle*((segments-1)/2))
	for slot := 0; slot < Directions; slot++ {
		next := geom.Add(n.Position, direction)
		cell := geom.Floor(next)
		if d.nodes.onPath(cell, id) {
			d.stats.Redundant++
			d.metrics.NodeRedundant()
		} else {
			cost := n.Cost + d.MoveCost(n.Position, next, m)
			if existing, ok := d.index.Lookup(cell); ok {
				if cost < d.nodes.get(existing).Cost {
					d.detach(existing)
				} else {
					d.stats.Expensive++
					d.metrics.NodeExpensive()
				}
			} else {
				child := d.createNode(next, id, cost)
				d.nodes.get(child).PotentialCost = cost + d.heuristic(next, targetPt)
				d.nodes.get(id).Children[slot] = child
				d.index.Insert(cell, child)
				d.frontier.Insert(child, d.nodes.get(child).PotentialCost)
			}
		}
		direction = geom.Rotate(direction, segmentAngle)
	}

	d.nodes.get(id).Evaluated = true
	d.frontier.Remove(id)
	d.stats.Expansions++
	d.metrics.Expanded()
}

func (d *Driver) createNode(pos orb.Point, parent NodeID, cost float64) NodeID {
	if d.stats.Created%1000 == 0 && d.logger.Enabled(context.Background(), slog.LevelDebug) {
		d.logger.Debug("createNode", "episode", d.episode,
			"created", d.stats.Created, "cut", d.stats.Cut,
			"left", d.nodes.countNodes(d.root),
			"redundant", d.stats.Redundant, "expensive", d.stats.Expensive)
	}
	d.stats.Created++
	d.metrics.NodeCreated()
	return d.nodes.add(pos, parent, cost)
}

// detach unlinks id from its parent's child slot. The node keeps its index
// and frontier entries and its own parent link; it is merely no longer
// reachable from the root.
func (d *Driver) detach(id NodeID) {
	parent := d.nodes.get(id).Parent
	if parent == NoNode {
		return
	}
	p := d.nodes.get(parent)
	for slot, child := range p.Children {
		if child == id {
			p.Children[slot] = NoNode
			cut := d.nodes.countNodes(id)
			d.stats.Cut += int64(cut)
			d.metrics.NodesCut(cut)
		}
	}
}

func (d *Driver) heuristic(p, target orb.Point) float64 {
	return d.cfg.HeuristicWeight * geom.Distance(p, target)
}

// MoveCost prices a move from one position to another: the distance plus
// penalties for recorded deaths and lethal terrain at the destination, or a
// flat penalty when the destination is off the map.
func (d *Driver) MoveCost(from, to orb.Point, m Terrain) float64 {
	cost := geom.Distance(from, to)

	pc := m.ParcelOf(to)
	kind, ok := m.TerrainAt(pc)
	if !ok {
		return cost + d.cfg.OutOfBoundsPenalty
	}
	if d.hazard != nil {
		cost += float64(d.hazard.Penalty(pc)) * d.cfg.HazardPenalty
	}
	if kind.Lethal() {
		cost += d.cfg.LethalPenalty
	}
	return cost
}

func (d *Driver) Phase() Phase { return d.phase }

// Episode returns the id of the current episode, empty when idle
func (d *Driver) Episode() string { return d.episode }

func (d *Driver) Stats() Stats { return d.stats }

// NodeCount returns the number of nodes created this episode, detached ones included
func (d *Driver) NodeCount() int { return d.nodes.len() }

func (d *Driver) Target() geom.Cell { return d.target }

// Root returns the node the agent currently stands on
func (d *Driver) Root() (Node, bool) {
	if d.root == NoNode {
		return Node{}, false
	}
	return *d.nodes.get(d.root), true
}

// Node returns a copy of node id
func (d *Driver) Node(id NodeID) (Node, bool) {
	if !d.nodes.valid(id) {
		return Node{}, false
	}
	return *d.nodes.get(id), true
}

// CountNodes returns the number of nodes reachable from the root
func (d *Driver) CountNodes() int {
	if d.root == NoNode {
		return 0
	}
	return d.nodes.countNodes(d.root)
}

// FrontierLen returns the number of nodes waiting to be expanded
func (d *Driver) FrontierLen() int {
	return d.frontier.Len()
}

// Solution returns the remaining route from the root to the target, root
// first, once a node at the target has been found.
func (d *Driver) Solution() []orb.Point {
	if d.goal == NoNode || d.root == NoNode {
		return nil
	}
	var path []orb.Point
	for cur := d.goal; cur != NoNode; cur = d.nodes.get(cur).Parent {
		path = append(path, d.nodes.get(cur).Position)
		if cur == d.root {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
