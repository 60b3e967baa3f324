// Package metrics exposes search diagnostics as prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Step phases reported by the search driver
const (
	PhaseSearching = "searching"
	PhaseAdvancing = "advancing"
	PhaseArrived   = "arrived"
	PhaseExhausted = "exhausted"
)

// Search groups the counters of the incremental search. A nil *Search is
// valid and records nothing.
type Search struct {
	nodesCreated   prometheus.Counter
	nodesRedundant prometheus.Counter
	nodesExpensive prometheus.Counter
	nodesCut       prometheus.Counter
	expansions     prometheus.Counter
	steps          *prometheus.CounterVec
	deaths         *prometheus.CounterVec
}

// NewSearch creates the counters and registers them with reg
func NewSearch(reg prometheus.Registerer) *Search {
	factory := promauto.With(reg)
	return &Search{
		nodesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "pathfinder_nodes_created_total",
			Help: "Search nodes created by expansion",
		}),
		nodesRedundant: factory.NewCounter(prometheus.CounterOpts{
			Name: "pathfinder_nodes_redundant_total",
			Help: "Candidate nodes skipped because their position is already on the path back to the root",
		}),
		nodesExpensive: factory.NewCounter(prometheus.CounterOpts{
			Name: "pathfinder_nodes_expensive_total",
			Help: "Candidate nodes skipped because a cheaper or equal route to their position exists",
		}),
		nodesCut: factory.NewCounter(prometheus.CounterOpts{
			Name: "pathfinder_nodes_cut_total",
			Help: "Nodes detached from the search tree when a cheaper route was found",
		}),
		expansions: factory.NewCounter(prometheus.CounterOpts{
			Name: "pathfinder_expansions_total",
			Help: "Search nodes expanded",
		}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_steps_total",
			Help: "Driver steps by phase",
		}, []string{"phase"}),
		deaths: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_deaths_total",
			Help: "Pathfinder deaths recorded into a hazard field, by strategy",
		}, []string{"strategy"}),
	}
}

func (s *Search) NodeCreated() {
	if s != nil {
		s.nodesCreated.Inc()
	}
}

func (s *Search) NodeRedundant() {
	if s != nil {
		s.nodesRedundant.Inc()
	}
}

func (s *Search) NodeExpensive() {
	if s != nil {
		s.nodesExpensive.Inc()
	}
}

func (s *Search) NodesCut(n int) {
	if s != nil {
		s.nodesCut.Add(float64(n))
	}
}

func (s *Search) Expanded() {
	if s != nil {
		s.expansions.Inc()
	}
}

func (s *Search) Step(phase string) {
	if s != nil {
		s.steps.WithLabelValues(phase).Inc()
	}
}

func (s *Search) Death(strategy string) {
	if s != nil {
		s.deaths.WithLabelValues(strategy).Inc()
	}
}
