package dependency

import (
	"slices"
	"sort"

	"devservices/internal/config"
)

// NodeID is the unique identifier for a node inside a dependency graph, e.g.
// "sentry/redis" or "snuba@master/clickhouse".
type NodeID string

// Node is a resolved dependency together with its dependency list.
type Node struct {
	ID          NodeID
	Name        string
	Kind        config.DependencyKind
	Description string

	// Project is the name of the service whose config defines the unit. It is
	// used as the compose project and the supervisor daemon name.
	Project      string
	RepoPath     string
	ConfigPath   string
	ProgramsPath string

	// Unit is the compose service started for the container runtime. It is
	// empty for a remote whose selected mode does not list the remote itself.
	Unit string
	// Program is the supervisor program for the local runtime, if any.
	Program *config.Program
	Remote  *config.RemoteConfig

	DependsOn []NodeID
	// Referrers counts the distinct edges and roots that reach the node.
	Referrers int
	// Modes lists the remote modes expanded into this node.
	Modes []string
}

// Runnable reports whether starting the node involves an adapter call under
// the given runtime selection. Remote nodes without a unit only group their
// children.
func (n *Node) Runnable(local bool) bool {
	switch n.Kind {
	case config.KindLocal:
		return n.Unit != ""
	case config.KindSupervisor:
		return n.Program != nil
	case config.KindRemote:
		if local {
			return n.Program != nil
		}
		return n.Unit != ""
	default:
		return false
	}
}

// Toggleable reports whether the node can switch between container and local
// execution.
func (n *Node) Toggleable() bool {
	switch n.Kind {
	case config.KindRemote:
		return true
	case config.KindLocal, config.KindSupervisor:
		return false
	default:
		return false
	}
}

// Graph answers dependency queries. It is not thread-safe; it is built once
// and then only read.
type Graph struct {
	nodes map[NodeID]*Node
	roots map[string]NodeID
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[NodeID]*Node),
		roots: make(map[string]NodeID),
	}
}

// AddNode adds (or replaces) a node in the graph.
func (g *Graph) AddNode(n Node) {
	if g.nodes == nil {
		g.nodes = make(map[NodeID]*Node)
	}
	copied := n
	copied.DependsOn = slices.Clone(n.DependsOn)
	g.nodes[n.ID] = &copied
}

// Get returns a pointer to the stored node or nil if it does not exist.
func (g *Graph) Get(id NodeID) *Node {
	return g.nodes[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// IDs returns every node ID, sorted.
func (g *Graph) IDs() []NodeID {
	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// SetRoot records that the top-level dependency name resolves to id.
func (g *Graph) SetRoot(name string, id NodeID) {
	if g.roots == nil {
		g.roots = make(map[string]NodeID)
	}
	g.roots[name] = id
}

// Root returns the node a top-level dependency name resolved to.
func (g *Graph) Root(name string) (NodeID, bool) {
	id, ok := g.roots[name]
	return id, ok
}

// Dependencies returns a slice of immediate dependency IDs for the given node.
func (g *Graph) Dependencies(id NodeID) []NodeID {
	if n, ok := g.nodes[id]; ok {
		return slices.Clone(n.DependsOn)
	}
	return nil
}

// Dependents returns all node IDs that have a direct dependency on the given
// node, sorted.
func (g *Graph) Dependents(id NodeID) []NodeID {
	var res []NodeID
	for _, n := range g.nodes {
		if slices.Contains(n.DependsOn, id) {
			res = append(res, n.ID)
		}
	}
	sortIDs(res)
	return res
}

// Closure returns the given nodes plus everything they transitively depend on.
func (g *Graph) Closure(ids ...NodeID) map[NodeID]bool {
	seen := make(map[NodeID]bool)
	var walk func(NodeID)
	walk = func(id NodeID) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, dep := range g.Dependencies(id) {
			walk(dep)
		}
	}
	for _, id := range ids {
		walk(id)
	}
	return seen
}

// Layers splits the subset into topological layers: every node's dependencies
// inside the subset sit in earlier layers. Each layer is sorted. The subset
// must be acyclic, which graphs produced by Builder always are.
func (g *Graph) Layers(subset map[NodeID]bool) [][]NodeID {
	placed := make(map[NodeID]bool, len(subset))
	var layers [][]NodeID

	for len(placed) < len(subset) {
		var layer []NodeID
		for id := range subset {
			if placed[id] {
				continue
			}
			ready := true
			for _, dep := range g.Dependencies(id) {
				if subset[dep] && !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				layer = append(layer, id)
			}
		}
		if len(layer) == 0 {
			// Only reachable with a cycle inside the subset.
			break
		}
		sortIDs(layer)
		for _, id := range layer {
			placed[id] = true
		}
		layers = append(layers, layer)
	}
	return layers
}

// ReverseLayers returns Layers in teardown order, dependents first.
func (g *Graph) ReverseLayers(subset map[NodeID]bool) [][]NodeID {
	layers := g.Layers(subset)
	slices.Reverse(layers)
	return layers
}

func sortIDs(ids []NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
