package search

import (
	"github.com/paulmach/orb"

	"pathfinder/internal/geom"
)

// NodeID addresses a node in the driver's arena. IDs stay valid for the
// whole episode, including for nodes detached from the tree.
type NodeID int32

// NoNode marks an empty parent or child link
const NoNode NodeID = -1

// Directions is the number of child slots per node: eight compass
// directions minus the reversal of the move that reached the node.
const Directions = segments - 1

const (
	segments     = 8
	segmentAngle = 360 / segments
)

// Node is an explored map position in the search tree.
//
//	      3
//	   2     4
//	1     o     5
//	   0     6
//
// Slot 3 continues straight ahead; the missing eighth slot would point back
// where the node came from.
type Node struct {
	Position      orb.Point
	Parent        NodeID
	Cost          float64 // from the search root via Parent
	PotentialCost float64 // Cost plus heuristic estimate to the target
	Children      [Directions]NodeID
	Evaluated     bool
	OnBestPath    bool
}

// Cell returns the discretised position of the node
func (n *Node) Cell() geom.Cell {
	return geom.Floor(n.Position)
}

// arena owns every node of an episode
type arena struct {
	nodes []Node
}

func (a *arena) add(pos orb.Point, parent NodeID, cost float64) NodeID {
	n := Node{Position: pos, Parent: parent, Cost: cost}
	for i := range n.Children {
		n.Children[i] = NoNode
	}
	a.nodes = append(a.nodes, n)
	return NodeID(len(a.nodes) - 1)
}

// get returns a pointer that is only valid until the next add
func (a *arena) get(id NodeID) *Node {
	return &a.nodes[id]
}

func (a *arena) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(a.nodes)
}

func (a *arena) len() int {
	return len(a.nodes)
}

// countNodes counts the nodes reachable from id through child links
func (a *arena) countNodes(id NodeID) int {
	if !a.valid(id) {
		return 0
	}
	count := 0
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		for _, child := range a.nodes[cur].Children {
			if child != NoNode {
				stack = append(stack, child)
			}
		}
	}
	return count
}

// onPath reports whether a node at cell lies on the path from id back to
// the start of the tree
func (a *arena) onPath(cell geom.Cell, id NodeID) bool {
	for cur := id; cur != NoNode; cur = a.nodes[cur].Parent {
		if a.nodes[cur].Cell() == cell {
			return true
		}
	}
	return false
}
