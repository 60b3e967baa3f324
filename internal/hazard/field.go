// Package hazard keeps per-parcel death counters that bias future searches
// away from places where pathfinders have died.
//
// Counters only ever grow. Increments are atomic so agents ticked on
// separate goroutines can report deaths concurrently; readers may observe a
// slightly stale count, which is fine for a cost heuristic.
package hazard

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"pathfinder/internal/terrain"
)

// OutOfBounds is the penalty reported for parcels off the map
const OutOfBounds = math.MaxInt32

// ErrDimensionMismatch is returned when a field does not fit the map it is
// attached to.
var ErrDimensionMismatch = errors.New("hazard field dimensions do not match map")

// Field is a grid of death counters, one per parcel
type Field struct {
	cols, rows int
	counts     []atomic.Int32
}

// NewField creates an empty field of cols x rows parcels
func NewField(cols, rows int) *Field {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	return &Field{cols: cols, rows: rows, counts: make([]atomic.Int32, cols*rows)}
}

func (f *Field) Cols() int { return f.cols }
func (f *Field) Rows() int { return f.rows }

func (f *Field) index(pc terrain.Parcel) (int, bool) {
	if pc.X < 0 || pc.X >= f.cols || pc.Y < 0 || pc.Y >= f.rows {
		return 0, false
	}
	return pc.Y*f.cols + pc.X, true
}

// Increment records one death at pc. Deaths off the field are ignored and
// reported as false.
func (f *Field) Increment(pc terrain.Parcel) bool {
	i, ok := f.index(pc)
	if !ok {
		return false
	}
	f.counts[i].Add(1)
	return true
}

// Penalty returns the number of deaths recorded at pc, or OutOfBounds
func (f *Field) Penalty(pc terrain.Parcel) int {
	i, ok := f.index(pc)
	if !ok {
		return OutOfBounds
	}
	return int(f.counts[i].Load())
}

// Total returns the number of deaths recorded over the whole field
func (f *Field) Total() int64 {
	var total int64
	for i := range f.counts {
		total += int64(f.counts[i].Load())
	}
	return total
}

// Snapshot is the serialised form of a Field
type Snapshot struct {
	Cols   int     `json:"cols"`
	Rows   int     `json:"rows"`
	Counts []int32 `json:"counts"`
}

// Snapshot copies the current counters
func (f *Field) Snapshot() Snapshot {
	s := Snapshot{Cols: f.cols, Rows: f.rows, Counts: make([]int32, len(f.counts))}
	for i := range f.counts {
		s.Counts[i] = f.counts[i].Load()
	}
	return s
}

// FromSnapshot rebuilds a field from a snapshot
func FromSnapshot(s Snapshot) (*Field, error) {
	if s.Cols < 0 || s.Rows < 0 || len(s.Counts) != s.Cols*s.Rows {
		return nil, fmt.Errorf("%w: %dx%d with %d counters", ErrDimensionMismatch, s.Cols, s.Rows, len(s.Counts))
	}
	f := NewField(s.Cols, s.Rows)
	for i, c := range s.Counts {
		if c < 0 {
			return nil, fmt.Errorf("negative counter %d at index %d", c, i)
		}
		f.counts[i].Store(c)
	}
	return f, nil
}

// Save serializes the field to a JSON file
func (f *Field) Save(path string) error {
	data, err := json.MarshalIndent(f.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal hazard field: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// LoadField deserializes a field from a JSON file
func LoadField(path string) (*Field, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hazard field: %w", err)
	}
	return FromSnapshot(s)
}

// Grid is what a Registry needs to know about a map
type Grid interface {
	ID() string
	Cols() int
	Rows() int
}

// Registry hands out one Field per map identity. Every search over the same
// map shares that map's field.
type Registry struct {
	mu     sync.Mutex
	fields map[string]*Field
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{fields: make(map[string]*Field)}
}

// For returns the field of map m, creating it on first use
func (r *Registry) For(m Grid) *Field {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.fields[m.ID()]
	if !ok {
		f = NewField(m.Cols(), m.Rows())
		r.fields[m.ID()] = f
	}
	return f
}

// Adopt installs f as the field of map m, typically after LoadField
func (r *Registry) Adopt(m Grid, f *Field) error {
	if f.Cols() != m.Cols() || f.Rows() != m.Rows() {
		return fmt.Errorf("%w: field %dx%d, map %q %dx%d",
			ErrDimensionMismatch, f.Cols(), f.Rows(), m.ID(), m.Cols(), m.Rows())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[m.ID()] = f
	return nil
}
