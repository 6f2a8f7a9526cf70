package orchestrator

import (
	"context"
	"sort"

	"devservices/internal/config"
	"devservices/internal/dependency"
	"devservices/internal/state"
	"devservices/pkg/logging"

	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Down releases the claims svc holds for modes (all active modes when empty)
// and stops, dependents first, every dependency left without referrers.
// Containers are stopped, never removed.
func (o *Orchestrator) Down(ctx context.Context, svc *config.Service, modes []string) (*Result, error) {
	if len(modes) > 0 {
		if _, err := dependency.CheckModes(svc.Name, svc.Modes, modes); err != nil {
			return nil, err
		}
	}
	return o.down(ctx, svc.Name, modes, nil)
}

func (o *Orchestrator) down(ctx context.Context, service string, modes []string, keep map[string]bool) (*Result, error) {
	if len(modes) == 0 {
		active, err := o.store.ActiveModes(ctx, service)
		if err != nil {
			return nil, err
		}
		modes = active
	}
	result := newResult(service, "down", modes)
	if len(modes) == 0 {
		logging.Info(subsystem, "%s has no active modes, nothing to stop", service)
		return result, nil
	}

	release, err := o.claimedModes(ctx, service, sets.New(modes...))
	if err != nil {
		return nil, err
	}

	stop := make(map[string]state.Record)
	for _, key := range sortedKeys(release) {
		refs, err := o.store.Release(ctx, service, key, release[key])
		if err != nil {
			return nil, err
		}
		rec, ok, err := o.store.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if refs > 0 || keep[key] {
			logging.Debug(subsystem, "Keeping %s (%d referrers)", key, refs)
			result.add(DependencyResult{
				Key:       key,
				Name:      rec.Name,
				Status:    rec.Status,
				Runtime:   rec.Runtime,
				Action:    ActionKept,
				Referrers: refs,
			})
			continue
		}
		stop[key] = rec
	}

	o.stopAll(ctx, service, stop, result)
	o.reclaimFailed(ctx, service, release, result)
	result.sort()
	logging.Info(subsystem, "Down of %s finished: %s", service, result.Outcome())
	return result, nil
}

// reclaimFailed restores the claims of dependencies whose stop failed, so the
// unit stays listed under the service and a later down retries it.
func (o *Orchestrator) reclaimFailed(ctx context.Context, service string, released map[string][]string, result *Result) {
	wctx := context.WithoutCancel(ctx)
	for i := range result.Dependencies {
		d := &result.Dependencies[i]
		modes, ok := released[d.Key]
		if d.Action != ActionFailed || !ok {
			continue
		}
		refs, err := o.store.Claim(wctx, service, d.Key, d.Name, modes)
		if err != nil {
			logging.Error(subsystem, err, "Failed to restore claims of %s", d.Key)
			continue
		}
		d.Referrers = refs
	}
}

// claimedModes maps each key service claims to the claimed modes in want.
func (o *Orchestrator) claimedModes(ctx context.Context, service string, want sets.Set[string]) (map[string][]string, error) {
	claims, err := o.store.Claims(ctx, service)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string][]string)
	for _, c := range claims {
		if want == nil || want.Has(c.Mode) {
			byKey[c.Key] = append(byKey[c.Key], c.Mode)
		}
	}
	return byKey, nil
}

// stopAll stops recs in reverse dependency order using the edges persisted
// in each record's target.
func (o *Orchestrator) stopAll(ctx context.Context, service string, recs map[string]state.Record, result *Result) {
	g := dependency.New()
	subset := make(map[dependency.NodeID]bool, len(recs))
	for key, rec := range recs {
		n := dependency.Node{ID: dependency.NodeID(key), Name: rec.Name}
		for _, d := range rec.Target.DependsOn {
			n.DependsOn = append(n.DependsOn, dependency.NodeID(d))
		}
		g.AddNode(n)
		subset[n.ID] = true
	}

	for _, layer := range g.ReverseLayers(subset) {
		results := make([]DependencyResult, len(layer))
		var eg errgroup.Group
		eg.SetLimit(o.workers)
		for i, id := range layer {
			eg.Go(func() error {
				results[i] = o.stopOne(ctx, service, recs[string(id)])
				return nil
			})
		}
		_ = eg.Wait()
		for _, r := range results {
			result.add(r)
		}
	}
}

func (o *Orchestrator) stopOne(ctx context.Context, service string, rec state.Record) DependencyResult {
	res := DependencyResult{Key: rec.Key, Name: rec.Name, Runtime: rec.Runtime, Action: ActionStopped}
	if !rec.Status.Active() {
		res.Action = ActionNoop
	} else if err := o.stopRecord(ctx, service, &rec); err != nil {
		res.Status, res.Action, res.Err = rec.Status, ActionFailed, err
		return res
	}

	if err := o.store.Delete(context.WithoutCancel(ctx), rec.Key); err != nil {
		logging.Warn(subsystem, "Failed to delete record %s: %v", rec.Key, err)
	}
	res.Status = state.StatusNotRunning
	return res
}

// Purge stops and removes everything devservices created for service, or
// for every service when service is empty: containers, volumes, networks,
// supervisor daemons and state. A full purge also empties the remote cache.
// Every step is attempted; failures are aggregated.
func (o *Orchestrator) Purge(ctx context.Context, service string) (*Result, error) {
	result := newResult(service, "purge", nil)
	var errs []error

	if service == "" {
		recs, err := o.store.List(ctx, "")
		if err != nil {
			errs = append(errs, err)
		}
		all := make(map[string]state.Record, len(recs))
		for _, rec := range recs {
			all[rec.Key] = rec
		}
		o.stopAll(ctx, "", all, result)

		logging.Info(subsystem, "Purging all devservices resources")
		errs = append(errs,
			o.containers.Purge(ctx, ""),
			o.programs.Purge(ctx, ""),
			o.store.Clear(ctx, ""),
		)
		if o.cache != nil {
			errs = append(errs, o.cache.Clean())
		}
	} else {
		errs = append(errs, o.purgeService(ctx, service, result)...)
	}

	for i := range result.Dependencies {
		if d := &result.Dependencies[i]; d.Action == ActionStopped || d.Action == ActionNoop {
			d.Action = ActionPurged
		}
	}
	result.sort()
	return result, utilerrors.NewAggregate(errs)
}

func (o *Orchestrator) purgeService(ctx context.Context, service string, result *Result) []error {
	var errs []error
	release, err := o.claimedModes(ctx, service, nil)
	if err != nil {
		return []error{err}
	}

	stop := make(map[string]state.Record)
	projects := sets.New(service)
	for _, key := range sortedKeys(release) {
		refs, err := o.store.Release(ctx, service, key, release[key])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rec, ok, err := o.store.Lookup(ctx, key)
		if err != nil || !ok {
			continue
		}
		if refs > 0 {
			result.add(DependencyResult{Key: key, Name: rec.Name, Status: rec.Status, Runtime: rec.Runtime, Action: ActionKept, Referrers: refs})
			continue
		}
		stop[key] = rec
		if rec.Target.Project != "" {
			projects.Insert(rec.Target.Project)
		}
	}
	o.stopAll(ctx, service, stop, result)

	// Projects still used by another service's running dependency survive.
	remaining, err := o.store.List(ctx, "")
	if err != nil {
		errs = append(errs, err)
	}
	for _, rec := range remaining {
		if rec.Referrers > 0 {
			projects.Delete(rec.Target.Project)
		}
	}
	for _, project := range sets.List(projects) {
		logging.Info(subsystem, "Purging resources of %s", project)
		errs = append(errs, o.containers.Purge(ctx, project), o.programs.Purge(ctx, project))
	}
	errs = append(errs, o.store.Clear(ctx, service))
	return errs
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
