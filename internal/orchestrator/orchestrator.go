package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"devservices/internal/config"
	"devservices/internal/dependency"
	"devservices/internal/health"
	"devservices/internal/retry"
	"devservices/internal/state"
	"devservices/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/sets"
)

const subsystem = "Orchestrator"

// Orchestrator brings service dependencies up and down and keeps the state
// store in step with what the adapters report.
type Orchestrator struct {
	store      state.Store
	containers ContainerRuntime
	programs   ProgramRunner
	builder    *dependency.Builder
	gate       *health.Gate
	cache      Cache

	workers int
	strict  bool
	pull    retry.Policy

	// Process identity for starting claims.
	pid      int
	newRunID func() string
	alive    func(pid int) bool

	// State change event subscribers
	stateChangeSubscribers []chan<- StateChangedEvent

	mu sync.RWMutex
}

// Config holds the configuration for the orchestrator.
type Config struct {
	Store      state.Store      // Required
	Containers ContainerRuntime // Required
	Programs   ProgramRunner    // Required
	Resolver   dependency.Resolver
	Gate       *health.Gate
	Cache      Cache // Optional: cleaned by a full purge

	Workers int
	// StrictHealth turns health timeouts into failures that abort later layers.
	StrictHealth bool
	PullPolicy   retry.Policy
}

// New creates a new orchestrator.
func New(cfg Config) *Orchestrator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = config.DefaultWorkers
	}
	gate := cfg.Gate
	if gate == nil {
		gate = health.NewGate(config.DefaultHealthTimeout, config.DefaultHealthInterval)
	}
	pull := cfg.PullPolicy
	if pull.MaxAttempts == 0 {
		pull = retry.Once
	}

	return &Orchestrator{
		store:                  cfg.Store,
		containers:             cfg.Containers,
		programs:               cfg.Programs,
		builder:                dependency.NewBuilder(cfg.Resolver),
		gate:                   gate,
		cache:                  cfg.Cache,
		workers:                workers,
		strict:                 cfg.StrictHealth,
		pull:                   pull,
		pid:                    os.Getpid(),
		newRunID:               uuid.NewString,
		alive:                  processAlive,
		stateChangeSubscribers: make([]chan<- StateChangedEvent, 0),
	}
}

// UpOptions tune a single Up call.
type UpOptions struct {
	// Exclusive releases the service's active modes that were not requested.
	Exclusive bool
	// SkipPull starts containers with whatever image is present.
	SkipPull bool
	// HealthTimeout overrides the gate's default timeout.
	HealthTimeout time.Duration
}

type plan struct {
	svc       *config.Service
	selection *dependency.Selection
	// modesOf lists, per node, the requested modes whose closure includes it.
	modesOf map[dependency.NodeID][]string
}

// Plan resolves the dependency selection of svc for modes without touching
// any state.
func (o *Orchestrator) Plan(ctx context.Context, svc *config.Service, modes []string) (*dependency.Selection, error) {
	p, err := o.plan(ctx, svc, modes)
	if err != nil {
		return nil, err
	}
	return p.selection, nil
}

func (o *Orchestrator) plan(ctx context.Context, svc *config.Service, modes []string) (*plan, error) {
	checked, err := dependency.CheckModes(svc.Name, svc.Modes, modes)
	if err != nil {
		return nil, err
	}
	g, err := o.builder.Build(ctx, svc, checked)
	if err != nil {
		return nil, err
	}
	sel, err := dependency.Select(g, svc.Name, svc.Modes, checked)
	if err != nil {
		return nil, err
	}

	modesOf := make(map[dependency.NodeID][]string, len(sel.Nodes))
	for _, mode := range checked {
		single, err := dependency.Select(g, svc.Name, svc.Modes, []string{mode})
		if err != nil {
			return nil, err
		}
		for _, id := range single.IDs() {
			modesOf[id] = append(modesOf[id], mode)
		}
	}
	return &plan{svc: svc, selection: sel, modesOf: modesOf}, nil
}

// Up starts the dependencies of the requested modes of svc, layer by layer.
// Config, graph and mode errors are returned before any state is changed.
// Per-dependency failures are reported in the Result.
func (o *Orchestrator) Up(ctx context.Context, svc *config.Service, modes []string, opts UpOptions) (*Result, error) {
	p, err := o.plan(ctx, svc, modes)
	if err != nil {
		return nil, err
	}
	result := newResult(svc.Name, "up", p.selection.Modes)
	logging.Info(subsystem, "Starting %s (modes %v): %d dependencies", svc.Name, p.selection.Modes, len(p.selection.Nodes))

	if err := o.Reconcile(ctx); err != nil {
		logging.Warn(subsystem, "Failed to reconcile interrupted runs: %v", err)
	}
	if err := o.prepare(ctx, p); err != nil {
		return nil, err
	}

	if opts.Exclusive {
		if err := o.releaseOtherModes(ctx, p, result); err != nil {
			return nil, err
		}
	}

	runID := o.newRunID()
	keys := make([]string, 0, len(p.selection.Nodes))
	for _, id := range p.selection.IDs() {
		keys = append(keys, string(id))
	}
	if err := o.store.MarkStarting(ctx, runID, o.pid, keys); err != nil {
		return nil, fmt.Errorf("failed to record starting claims: %w", err)
	}
	defer func() {
		if err := o.store.FinishStarting(context.WithoutCancel(ctx), runID); err != nil {
			logging.Warn(subsystem, "Failed to release starting claims of run %s: %v", runID, err)
		}
	}()

	var abort error
	for i, layer := range p.selection.Layers() {
		if abort == nil && ctx.Err() != nil {
			abort = ctx.Err()
		}
		if abort != nil {
			for _, id := range layer {
				n := p.selection.Graph().Get(id)
				result.add(DependencyResult{
					Key:    string(id),
					Name:   n.Name,
					Status: state.StatusNotRunning,
					Action: ActionSkipped,
					Err:    fmt.Errorf("%s: %w", n.Name, abort),
				})
			}
			continue
		}

		logging.Debug(subsystem, "Layer %d: %v", i, layer)
		var failed, timedOut int
		for _, r := range o.runLayer(ctx, p, layer, opts) {
			result.add(r)
			if r.Err != nil {
				failed++
			}
			if r.Warning != "" || errors.As(r.Err, new(*health.TimeoutError)) {
				timedOut++
			}
		}
		switch {
		case failed == len(layer):
			abort = ErrSkipped
		case o.strict && timedOut > 0:
			abort = ErrSkipped
		}
	}

	result.sort()
	logging.Info(subsystem, "Up of %s finished: %s", svc.Name, result.Outcome())
	return result, ctx.Err()
}

// prepare runs the container engine checks when the selection has any
// container work.
func (o *Orchestrator) prepare(ctx context.Context, p *plan) error {
	pr, ok := o.containers.(preparer)
	if !ok {
		return nil
	}
	needed := false
	for _, id := range p.selection.IDs() {
		n := p.selection.Graph().Get(id)
		if n.Kind != config.KindSupervisor && n.Unit != "" {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}
	if err := pr.CheckVersion(ctx); err != nil {
		return err
	}
	return pr.EnsureNetwork(ctx)
}

// releaseOtherModes runs the down path for the active modes that were not
// requested. Dependencies the new selection still needs are kept running.
func (o *Orchestrator) releaseOtherModes(ctx context.Context, p *plan, result *Result) error {
	active, err := o.store.ActiveModes(ctx, p.svc.Name)
	if err != nil {
		return err
	}
	stale := sets.New(active...).Difference(sets.New(p.selection.Modes...))
	if stale.Len() == 0 {
		return nil
	}
	logging.Info(subsystem, "Releasing modes %v of %s", sets.List(stale), p.svc.Name)

	keep := make(map[string]bool, len(p.selection.Nodes))
	for id := range p.selection.Nodes {
		keep[string(id)] = true
	}
	down, err := o.down(ctx, p.svc.Name, sets.List(stale), keep)
	if err != nil {
		return err
	}
	for _, d := range down.Dependencies {
		if d.Action == ActionStopped || d.Err != nil {
			result.add(d)
		}
	}
	return nil
}

func (o *Orchestrator) runLayer(ctx context.Context, p *plan, layer []dependency.NodeID, opts UpOptions) []DependencyResult {
	results := make([]DependencyResult, len(layer))
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, id := range layer {
		g.Go(func() error {
			results[i] = o.upNode(ctx, p, p.selection.Graph().Get(id), opts)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) desiredRuntime(ctx context.Context, n *dependency.Node) (state.Runtime, error) {
	switch n.Kind {
	case config.KindLocal:
		return state.RuntimeContainer, nil
	case config.KindSupervisor:
		return state.RuntimeLocal, nil
	case config.KindRemote:
		rt, ok, err := o.store.Runtime(ctx, string(n.ID))
		if err != nil {
			return "", err
		}
		if ok {
			return rt, nil
		}
		return state.RuntimeContainer, nil
	default:
		return "", fmt.Errorf("unknown dependency kind %q", n.Kind)
	}
}

func (o *Orchestrator) upNode(ctx context.Context, p *plan, n *dependency.Node, opts UpOptions) DependencyResult {
	key := string(n.ID)
	res := DependencyResult{Key: key, Name: n.Name, Status: state.StatusNotRunning}

	refs, err := o.store.Claim(ctx, p.svc.Name, key, n.Name, p.modesOf[n.ID])
	if err != nil {
		res.Action, res.Err = ActionFailed, err
		return res
	}
	res.Referrers = refs

	rt, err := o.desiredRuntime(ctx, n)
	if err != nil {
		res.Action, res.Err = ActionFailed, err
		return res
	}
	res.Runtime = rt

	rec, ok, err := o.store.Lookup(ctx, key)
	if err != nil {
		res.Action, res.Err = ActionFailed, err
		return res
	}
	if !ok {
		rec = state.Record{Key: key, Name: n.Name, Status: state.StatusNotRunning}
	}

	target := targetFor(n)
	action := ActionStarted
	if rec.Status == state.StatusHealthy {
		if rec.Runtime == rt && o.stillHealthy(ctx, rec) {
			rec.Target = target
			if err := o.store.Upsert(ctx, rec); err != nil {
				logging.Warn(subsystem, "Failed to refresh %s: %v", key, err)
			}
			res.Status, res.Action = state.StatusHealthy, ActionAlreadyRunning
			logging.Debug(subsystem, "%s already healthy, leaving it alone", key)
			return res
		}
		if rec.Runtime != rt {
			logging.Info(subsystem, "%s runs as %s, restarting as %s", n.Name, rec.Runtime, rt)
			if err := o.stopRecord(ctx, p.svc.Name, &rec); err != nil {
				res.Status, res.Action, res.Err = rec.Status, ActionFailed, err
				return res
			}
			action = ActionRestarted
		}
	}

	out := o.startUnit(ctx, p.svc.Name, rec, target, rt, opts)
	if out.Action == ActionStarted {
		out.Action = action
	}
	out.Referrers = refs
	return out
}

// stillHealthy checks a record the store believes healthy once.
func (o *Orchestrator) stillHealthy(ctx context.Context, rec state.Record) bool {
	if grouping(rec.Target) {
		return true
	}
	if rec.Handle == "" {
		return false
	}
	status, err := o.statusCheck(rec.Runtime, rec.Handle)(ctx)
	if err != nil {
		logging.Debug(subsystem, "Status check of %s failed: %v", rec.Key, err)
		return false
	}
	return status == health.StatusHealthy || status == health.StatusUnknown
}

// startUnit launches rec under rt and waits for it to become healthy.
func (o *Orchestrator) startUnit(ctx context.Context, service string, rec state.Record, target state.Target, rt state.Runtime, opts UpOptions) DependencyResult {
	rec.Runtime = rt
	rec.Target = target
	rec.Handle = ""
	res := DependencyResult{Key: rec.Key, Name: rec.Name, Runtime: rt, Action: ActionStarted}
	// Writes after the adapter call must land even when ctx is cancelled.
	wctx := context.WithoutCancel(ctx)

	if grouping(target) {
		o.setStatus(ctx, service, &rec, state.StatusHealthy, nil)
		res.Status = rec.Status
		return res
	}
	if !runnable(target, rt) {
		err := &AdapterError{Dependency: rec.Name, Runtime: rt, Op: "start", Err: fmt.Errorf("no %s unit defined", rt)}
		o.setStatus(ctx, service, &rec, state.StatusNotRunning, err)
		res.Status, res.Action, res.Err = rec.Status, ActionFailed, err
		return res
	}

	o.setStatus(ctx, service, &rec, state.StatusStarting, nil)
	handle, err := o.launch(ctx, target, rt, opts.SkipPull)
	rec.Handle = handle
	if err != nil {
		if ctx.Err() != nil {
			o.setStatus(wctx, service, &rec, state.StatusStarting, ctx.Err())
			res.Status, res.Action, res.Err = rec.Status, ActionFailed, ctx.Err()
			return res
		}
		adapterErr := &AdapterError{Dependency: rec.Name, Runtime: rt, Op: "start", Err: err}
		status := state.StatusNotRunning
		if handle != "" {
			status = state.StatusUnhealthy
		}
		logging.Error(subsystem, err, "Failed to start %s", rec.Name)
		o.setStatus(wctx, service, &rec, status, adapterErr)
		res.Status, res.Action, res.Err = rec.Status, ActionFailed, adapterErr
		return res
	}
	o.setStatus(wctx, service, &rec, state.StatusStarting, nil)

	err = o.gate.AwaitHealthy(ctx, rec.Name, o.statusCheck(rt, handle), opts.HealthTimeout)
	var timeout *health.TimeoutError
	switch {
	case err == nil:
		o.setStatus(wctx, service, &rec, state.StatusHealthy, nil)
	case errors.As(err, &timeout):
		o.setStatus(wctx, service, &rec, state.StatusUnhealthy, err)
		if o.strict {
			res.Action, res.Err = ActionFailed, err
		} else {
			logging.Warn(subsystem, "%v", err)
			res.Warning = err.Error()
		}
	case ctx.Err() != nil:
		o.setStatus(wctx, service, &rec, state.StatusStarting, err)
		res.Action, res.Err = ActionFailed, ctx.Err()
	default:
		o.setStatus(wctx, service, &rec, state.StatusUnhealthy, err)
		res.Action, res.Err = ActionFailed, &AdapterError{Dependency: rec.Name, Runtime: rt, Op: "health check", Err: err}
	}
	res.Status = rec.Status
	return res
}

func (o *Orchestrator) launch(ctx context.Context, t state.Target, rt state.Runtime, skipPull bool) (string, error) {
	if rt == state.RuntimeLocal {
		return o.programs.Start(ctx, programSpec(t))
	}

	d := descriptor(t)
	if !skipPull {
		err := o.pull.Named("pull "+t.Unit).Do(ctx, func(ctx context.Context) error {
			return o.containers.Pull(ctx, d)
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logging.Warn(subsystem, "Pull of %s failed, starting with the local image: %v", t.Unit, err)
		}
	}
	return o.containers.Start(ctx, d)
}

func (o *Orchestrator) statusCheck(rt state.Runtime, handle string) health.StatusCheck {
	return func(ctx context.Context) (health.Status, error) {
		if rt == state.RuntimeLocal {
			return o.programs.Health(ctx, handle)
		}
		return o.containers.Health(ctx, handle)
	}
}

// stopRecord stops an active record through its adapter. It leaves the
// record not_running, or unhealthy when the stop failed.
func (o *Orchestrator) stopRecord(ctx context.Context, service string, rec *state.Record) error {
	if !rec.Status.Active() {
		return nil
	}
	wctx := context.WithoutCancel(ctx)
	o.setStatus(ctx, service, rec, state.StatusStopping, nil)

	var err error
	switch {
	case grouping(rec.Target):
	case rec.Runtime == state.RuntimeLocal:
		handle := rec.Handle
		if handle == "" {
			handle = programSpec(rec.Target).Handle()
		}
		err = o.programs.Stop(ctx, handle)
	default:
		err = o.containers.Stop(ctx, descriptor(rec.Target), rec.Handle)
	}
	if err != nil {
		adapterErr := &AdapterError{Dependency: rec.Name, Runtime: rec.Runtime, Op: "stop", Err: err}
		o.setStatus(wctx, service, rec, state.StatusUnhealthy, adapterErr)
		return adapterErr
	}
	rec.Handle = ""
	o.setStatus(wctx, service, rec, state.StatusNotRunning, nil)
	return nil
}

func (o *Orchestrator) setStatus(ctx context.Context, service string, rec *state.Record, status state.Status, cause error) {
	old := rec.Status
	rec.Status = status
	if err := o.store.Upsert(ctx, *rec); err != nil {
		logging.Error(subsystem, err, "Failed to persist %s as %s", rec.Key, status)
	}
	if old != status {
		o.publishStateChangeEvent(service, *rec, old, cause)
	}
}
