package orchestrator

import (
	"context"
	"fmt"

	"devservices/internal/config"
	"devservices/internal/dependency"
	"devservices/internal/state"
	"devservices/pkg/logging"
)

const toggleSubsystem = "Toggle"

// Toggle switches a remote dependency of svc between the container and the
// local runtime. An empty to flips the current runtime. A running dependency
// is stopped under the old runtime and started under the new one; otherwise
// only the stored preference changes.
func (o *Orchestrator) Toggle(ctx context.Context, svc *config.Service, name string, to state.Runtime) (*DependencyResult, error) {
	dep, ok := svc.Dependencies[name]
	if !ok {
		return nil, &dependency.GraphError{Kind: dependency.ErrMissingDependency, Service: svc.Name, Dependency: name}
	}
	switch dep.Kind {
	case config.KindRemote:
	case config.KindLocal:
		return nil, fmt.Errorf("%w: %s only runs as a container", ErrNotToggleable, name)
	case config.KindSupervisor:
		return nil, fmt.Errorf("%w: %s only runs as a local program", ErrNotToggleable, name)
	default:
		return nil, fmt.Errorf("%w: %s has unknown kind %q", ErrNotToggleable, name, dep.Kind)
	}

	key := string(dependency.IDFor(svc.Name, dep))
	rec, exists, err := o.store.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	current := state.RuntimeContainer
	if exists {
		current = rec.Runtime
	} else if pref, ok, err := o.store.Runtime(ctx, key); err != nil {
		return nil, err
	} else if ok {
		current = pref
	}
	if to == "" {
		to = current.Opposite()
	}

	res := &DependencyResult{Key: key, Name: name, Runtime: to, Status: state.StatusNotRunning, Action: ActionNoop}
	if exists {
		res.Status, res.Referrers = rec.Status, rec.Referrers
	}
	if to == current {
		logging.Info(toggleSubsystem, "%s already uses the %s runtime", name, to)
		res.Runtime = current
		return res, nil
	}

	target := rec.Target
	if !exists || target.Project == "" {
		g, err := o.builder.Build(ctx, svc, nil)
		if err != nil {
			return nil, err
		}
		n := g.Get(dependency.NodeID(key))
		if n == nil {
			return nil, fmt.Errorf("%s is not part of any mode of %s", name, svc.Name)
		}
		target = targetFor(n)
	}
	if !grouping(target) && !runnable(target, to) {
		return nil, fmt.Errorf("%w: %s has no %s unit", ErrNotToggleable, name, to)
	}

	active := exists && rec.Status.Active()
	if !active {
		if err := o.store.SetRuntime(ctx, key, to); err != nil {
			return nil, err
		}
		if exists {
			rec.Runtime = to
			if err := o.store.Upsert(ctx, rec); err != nil {
				return nil, err
			}
		}
		logging.Info(toggleSubsystem, "%s will use the %s runtime", name, to)
		res.Action = ActionToggled
		return res, nil
	}

	logging.Info(toggleSubsystem, "Switching %s from %s to %s", name, current, to)
	if err := o.stopRecord(ctx, svc.Name, &rec); err != nil {
		res.Status, res.Runtime, res.Action, res.Err, res.Error = rec.Status, current, ActionFailed, err, err.Error()
		return res, nil
	}
	if err := o.store.SetRuntime(ctx, key, to); err != nil {
		return nil, err
	}

	out := o.startUnit(ctx, svc.Name, rec, target, to, UpOptions{})
	if out.Action == ActionStarted {
		out.Action = ActionToggled
	}
	out.Referrers = rec.Referrers
	if out.Err != nil {
		out.Error = out.Err.Error()
	}
	return &out, nil
}
