package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"devservices/internal/state"
	"devservices/pkg/logging"

	"k8s.io/apimachinery/pkg/util/sets"
)

// ErrNothingToReset is returned when a dependency has no containers or no
// volumes to reset.
var ErrNothingToReset = errors.New("nothing to reset")

// Reset wipes the data of the compose service called name. Every service
// whose running dependencies include it is brought down first, then its
// containers and their volumes are removed. The next up starts it fresh.
func (o *Orchestrator) Reset(ctx context.Context, name string) (*Result, error) {
	containers, err := o.containers.ServiceContainers(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, fmt.Errorf("%w: no containers found for %s", ErrNothingToReset, name)
	}
	volumes, err := o.containers.ContainerVolumes(ctx, containers)
	if err != nil {
		return nil, err
	}
	if len(volumes) == 0 {
		return nil, fmt.Errorf("%w: no volumes found for %s", ErrNothingToReset, name)
	}

	users, key, err := o.servicesUsing(ctx, name)
	if err != nil {
		return nil, err
	}

	result := newResult(name, "reset", nil)
	byKey := make(map[string]DependencyResult)
	failed := false
	for _, service := range users {
		logging.Warn(subsystem, "Bringing down %s in order to safely reset %s", service, name)
		res, err := o.down(ctx, service, nil, nil)
		if err != nil {
			return nil, err
		}
		for _, d := range res.Dependencies {
			byKey[d.Key] = d
			failed = failed || d.Action == ActionFailed
		}
	}

	target := DependencyResult{Key: key, Name: name, Runtime: state.RuntimeContainer, Status: state.StatusNotRunning, Action: ActionReset}
	switch {
	case failed:
		target.Action, target.Status = ActionSkipped, ""
		target.Err = fmt.Errorf("%s was not reset because bringing down its users failed", name)
	case ctx.Err() != nil:
		target.Action, target.Status, target.Err = ActionFailed, "", ctx.Err()
	default:
		if err := o.containers.RemoveContainers(ctx, containers, volumes); err != nil {
			target.Action, target.Status = ActionFailed, ""
			target.Err = &AdapterError{Dependency: name, Runtime: state.RuntimeContainer, Op: "reset", Err: err}
		} else {
			logging.Info(subsystem, "Removed volumes %v of %s", volumes, name)
		}
	}
	byKey[key] = target

	for _, d := range byKey {
		result.add(d)
	}
	result.sort()
	return result, nil
}

// servicesUsing returns the services holding claims on a dependency whose
// compose service is name, and the key of that dependency (name when none
// is recorded).
func (o *Orchestrator) servicesUsing(ctx context.Context, name string) ([]string, string, error) {
	recs, err := o.store.List(ctx, "")
	if err != nil {
		return nil, "", err
	}
	keys := sets.New[string]()
	for _, rec := range recs {
		if rec.Runtime == state.RuntimeContainer && (rec.Target.Unit == name || (rec.Target.Unit == "" && rec.Name == name)) {
			keys.Insert(rec.Key)
		}
	}
	key := name
	if keys.Len() == 1 {
		key = keys.UnsortedList()[0]
	}

	claims, err := o.store.Claims(ctx, "")
	if err != nil {
		return nil, "", err
	}
	users := sets.New[string]()
	for _, c := range claims {
		if keys.Has(c.Key) {
			users.Insert(c.Service)
		}
	}
	return sets.List(users), key, nil
}
