package dependency

import (
	"devservices/internal/config"

	"k8s.io/apimachinery/pkg/util/sets"
)

// CheckModes normalises the requested modes (none means the default mode) and
// fails with a GraphError listing the available modes when one is unknown.
func CheckModes(service string, modes map[string][]string, requested []string) ([]string, error) {
	if len(requested) == 0 {
		requested = []string{config.DefaultMode}
	}
	want := sets.New[string](requested...)
	available := sets.KeySet(modes)

	for _, mode := range sets.List(want) {
		if !available.Has(mode) {
			return nil, &GraphError{
				Kind:           ErrModeNotFound,
				Service:        service,
				Mode:           mode,
				AvailableModes: sets.List(available),
			}
		}
	}
	return sets.List(want), nil
}

// Selection is the part of a graph needed by a set of active modes.
type Selection struct {
	Service string
	Modes   []string
	Nodes   map[NodeID]bool
	graph   *Graph
}

// Select returns the union of the requested modes' dependencies, closed over
// depends-on edges.
func Select(g *Graph, service string, modes map[string][]string, requested []string) (*Selection, error) {
	checked, err := CheckModes(service, modes, requested)
	if err != nil {
		return nil, err
	}

	var roots []NodeID
	for _, mode := range checked {
		for _, name := range modes[mode] {
			id, ok := g.Root(name)
			if !ok {
				return nil, &GraphError{Kind: ErrMissingDependency, Service: service, Dependency: name, Mode: mode}
			}
			roots = append(roots, id)
		}
	}

	return &Selection{
		Service: service,
		Modes:   checked,
		Nodes:   g.Closure(roots...),
		graph:   g,
	}, nil
}

// Graph returns the graph the selection was taken from.
func (s *Selection) Graph() *Graph {
	return s.graph
}

// Has reports whether id is part of the selection.
func (s *Selection) Has(id NodeID) bool {
	return s.Nodes[id]
}

// IDs returns the selected node IDs, sorted.
func (s *Selection) IDs() []NodeID {
	ids := make([]NodeID, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Layers returns the startup order.
func (s *Selection) Layers() [][]NodeID {
	return s.graph.Layers(s.Nodes)
}

// ReverseLayers returns the teardown order.
func (s *Selection) ReverseLayers() [][]NodeID {
	return s.graph.ReverseLayers(s.Nodes)
}
