package search

import (
	"container/heap"
)

// frontierItem is a node waiting in the frontier
type frontierItem struct {
	node     NodeID
	priority float64
	seq      uint64 // insertion order, breaks priority ties
	index    int    // index in the heap
}

// frontierHeap implements heap.Interface ordered by priority, then seq
type frontierHeap []*frontierItem

func (h frontierHeap) Len() int { return len(h) }

func (h frontierHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h frontierHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *frontierHeap) Push(x interface{}) {
	item := x.(*frontierItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *frontierHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// Frontier holds the unevaluated nodes of an episode, cheapest first.
// Nodes of equal priority come out in insertion order.
type Frontier struct {
	heap  frontierHeap
	items map[NodeID]*frontierItem
	seq   uint64
}

// NewFrontier creates an empty frontier
func NewFrontier() *Frontier {
	return &Frontier{items: make(map[NodeID]*frontierItem)}
}

// Insert adds node with the given priority. Inserting a node that is already
// present updates its priority and keeps its original tie-break position.
func (f *Frontier) Insert(node NodeID, priority float64) {
	if item, ok := f.items[node]; ok {
		item.priority = priority
		heap.Fix(&f.heap, item.index)
		return
	}
	item := &frontierItem{node: node, priority: priority, seq: f.seq}
	f.seq++
	heap.Push(&f.heap, item)
	f.items[node] = item
}

// PeekMin returns the cheapest node without removing it
func (f *Frontier) PeekMin() (NodeID, bool) {
	if len(f.heap) == 0 {
		return NoNode, false
	}
	return f.heap[0].node, true
}

// Priority returns the priority node was inserted with
func (f *Frontier) Priority(node NodeID) (float64, bool) {
	item, ok := f.items[node]
	if !ok {
		return 0, false
	}
	return item.priority, true
}

// Remove takes node out of the frontier; absent nodes are ignored
func (f *Frontier) Remove(node NodeID) {
	item, ok := f.items[node]
	if !ok {
		return
	}
	heap.Remove(&f.heap, item.index)
	delete(f.items, node)
}

func (f *Frontier) Contains(node NodeID) bool {
	_, ok := f.items[node]
	return ok
}

func (f *Frontier) Len() int { return len(f.heap) }

func (f *Frontier) IsEmpty() bool { return len(f.heap) == 0 }
