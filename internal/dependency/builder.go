package dependency

import (
	"context"
	"errors"
	"slices"

	"devservices/internal/config"
	"devservices/pkg/logging"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Resolver returns the service config of a remote dependency, fetching the
// repository if needed.
type Resolver func(ctx context.Context, remote config.RemoteConfig) (*config.Service, error)

// Builder turns a service's declarations into a Graph.
type Builder struct {
	resolve Resolver
}

// NewBuilder creates a builder that resolves remotes through resolve.
func NewBuilder(resolve Resolver) *Builder {
	return &Builder{resolve: resolve}
}

type color int

const (
	white color = iota
	gray
	black
)

// origin is the config a dependency was declared in. key is the service name
// for the top-level service and repo@branch for fetched remotes.
type origin struct {
	key string
	svc *config.Service
}

type walker struct {
	ctx     context.Context
	resolve Resolver
	graph   *Graph
	colors  map[NodeID]color
	stack   []NodeID
	remotes map[string]*config.Service
}

// Build resolves the dependencies declared by the given modes of svc. With no
// modes every declared mode is built.
func (b *Builder) Build(ctx context.Context, svc *config.Service, modes []string) (*Graph, error) {
	if len(modes) == 0 {
		modes = svc.ModeNames()
	} else {
		checked, err := CheckModes(svc.Name, svc.Modes, modes)
		if err != nil {
			return nil, err
		}
		modes = checked
	}

	names := sets.New[string]()
	for _, mode := range modes {
		names.Insert(svc.Modes[mode]...)
	}

	w := &walker{
		ctx:     ctx,
		resolve: b.resolve,
		graph:   New(),
		colors:  make(map[NodeID]color),
		remotes: make(map[string]*config.Service),
	}
	top := origin{key: svc.Name, svc: svc}

	for _, name := range sets.List(names) {
		dep, ok := svc.Dependencies[name]
		if !ok {
			return nil, &GraphError{Kind: ErrMissingDependency, Service: svc.Name, Dependency: name}
		}
		id, err := w.visit(top, dep)
		if err != nil {
			return nil, err
		}
		w.graph.SetRoot(name, id)
	}

	logging.Debug("Graph", "Built graph for %s (modes %v): %d nodes", svc.Name, modes, w.graph.Len())
	return w.graph, nil
}

// IDFor returns the node ID of a dependency declared at the top level of
// service. Remote dependencies get the same ID from every service.
func IDFor(service string, dep config.Dependency) NodeID {
	return nodeID(origin{key: service}, dep)
}

func nodeID(o origin, dep config.Dependency) NodeID {
	if dep.Kind == config.KindRemote && dep.Remote != nil {
		return NodeID(dep.Remote.Key() + "/" + dep.Name)
	}
	return NodeID(o.key + "/" + dep.Name)
}

func (w *walker) visit(o origin, dep config.Dependency) (NodeID, error) {
	if err := w.ctx.Err(); err != nil {
		return "", err
	}

	id := nodeID(o, dep)
	switch w.colors[id] {
	case gray:
		return "", w.cycle(id)
	case black:
		n := w.graph.Get(id)
		n.Referrers++
		if dep.Kind == config.KindRemote && !slices.Contains(n.Modes, dep.Remote.SelectedMode()) {
			w.enter(id)
			defer w.leave(id)
			if err := w.expandRemote(o, id, dep); err != nil {
				return "", err
			}
		}
		return id, nil
	}

	w.enter(id)
	defer w.leave(id)

	node := &Node{
		ID:          id,
		Name:        dep.Name,
		Kind:        dep.Kind,
		Description: dep.Description,
		Project:     o.svc.Name,
		RepoPath:    o.svc.RepoPath,
		ConfigPath:  o.svc.ConfigPath,
		Referrers:   1,
	}
	w.graph.nodes[id] = node

	switch dep.Kind {
	case config.KindLocal:
		node.Unit = dep.Name
	case config.KindSupervisor:
		if p, ok := o.svc.Programs[dep.Name]; ok {
			node.Program = &p
		}
		node.ProgramsPath = o.svc.ProgramsPath
	case config.KindRemote:
		remote := *dep.Remote
		node.Remote = &remote
		if err := w.expandRemote(o, id, dep); err != nil {
			return "", err
		}
	default:
		return "", &GraphError{Kind: ErrMissingDependency, Service: o.svc.Name, Dependency: dep.Name,
			Err: errors.New("unknown dependency kind")}
	}
	return id, nil
}

// expandRemote fetches the remote config and recurses into its selected mode.
func (w *walker) expandRemote(o origin, id NodeID, dep config.Dependency) error {
	remoteSvc, err := w.remoteService(o, dep)
	if err != nil {
		return err
	}

	mode := dep.Remote.SelectedMode()
	entries, ok := remoteSvc.Modes[mode]
	if !ok {
		return &GraphError{
			Kind:           ErrModeNotFound,
			Service:        remoteSvc.Name,
			Dependency:     dep.Name,
			Mode:           mode,
			AvailableModes: remoteSvc.ModeNames(),
		}
	}

	n := w.graph.Get(id)
	n.Project = remoteSvc.Name
	n.RepoPath = remoteSvc.RepoPath
	n.ConfigPath = remoteSvc.ConfigPath
	n.ProgramsPath = remoteSvc.ProgramsPath
	n.Modes = append(n.Modes, mode)
	if p, ok := remoteSvc.Programs[dep.Name]; ok {
		n.Program = &p
	}

	inner := origin{key: dep.Remote.Key(), svc: remoteSvc}
	for _, name := range entries {
		child, ok := remoteSvc.Dependencies[name]
		if !ok {
			return &GraphError{Kind: ErrMissingDependency, Service: remoteSvc.Name, Dependency: name}
		}
		if nodeID(inner, child) == id {
			// The remote lists itself: its own unit, not an edge.
			if child.Kind == config.KindLocal {
				n.Unit = name
			}
			continue
		}
		childID, err := w.visit(inner, child)
		if err != nil {
			return err
		}
		if !slices.Contains(n.DependsOn, childID) {
			n.DependsOn = append(n.DependsOn, childID)
		}
	}
	return nil
}

func (w *walker) remoteService(o origin, dep config.Dependency) (*config.Service, error) {
	key := dep.Remote.Key()
	if svc, ok := w.remotes[key]; ok {
		return svc, nil
	}
	if w.resolve == nil {
		return nil, &GraphError{Kind: ErrUnreachable, Service: o.svc.Name, Dependency: dep.Name,
			Err: errors.New("no resolver configured for remote dependencies")}
	}

	logging.Debug("Graph", "Resolving remote %s for %s", key, dep.Name)
	svc, err := w.resolve(w.ctx, *dep.Remote)
	if err != nil {
		var graphErr *GraphError
		if errors.As(err, &graphErr) {
			return nil, err
		}
		return nil, &GraphError{Kind: ErrUnreachable, Service: o.svc.Name, Dependency: dep.Name, Err: err}
	}
	w.remotes[key] = svc
	return svc, nil
}

func (w *walker) enter(id NodeID) {
	w.colors[id] = gray
	w.stack = append(w.stack, id)
}

func (w *walker) leave(id NodeID) {
	w.colors[id] = black
	w.stack = w.stack[:len(w.stack)-1]
}

func (w *walker) cycle(id NodeID) error {
	start := slices.Index(w.stack, id)
	path := slices.Clone(w.stack[start:])
	path = append(path, id)
	return &GraphError{Kind: ErrCycle, Dependency: string(id), Path: path}
}
