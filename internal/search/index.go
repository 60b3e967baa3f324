package search

import "pathfinder/internal/geom"

// NodeIndex maps a discretised position to the node occupying it within one
// episode.
type NodeIndex struct {
	byCell map[geom.Cell]NodeID
}

// NewNodeIndex creates an empty index
func NewNodeIndex() *NodeIndex {
	return &NodeIndex{byCell: make(map[geom.Cell]NodeID)}
}

func (ni *NodeIndex) Lookup(c geom.Cell) (NodeID, bool) {
	id, ok := ni.byCell[c]
	return id, ok
}

// Insert registers id at c, replacing any previous entry
func (ni *NodeIndex) Insert(c geom.Cell, id NodeID) {
	ni.byCell[c] = id
}

func (ni *NodeIndex) Erase(c geom.Cell) {
	delete(ni.byCell, c)
}

func (ni *NodeIndex) Len() int {
	return len(ni.byCell)
}
