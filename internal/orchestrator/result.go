package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"devservices/internal/state"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// ErrSkipped marks dependencies that were not attempted because an earlier
// layer failed.
var ErrSkipped = errors.New("skipped: an earlier layer failed")

// ErrNotToggleable is returned when toggling a dependency that only has one runtime.
var ErrNotToggleable = errors.New("dependency cannot be toggled")

// Action is what the engine did to one dependency.
type Action string

const (
	ActionStarted        Action = "started"
	ActionAlreadyRunning Action = "already_running"
	ActionRestarted      Action = "restarted"
	ActionToggled        Action = "toggled"
	ActionStopped        Action = "stopped"
	ActionKept           Action = "kept"
	ActionSkipped        Action = "skipped"
	ActionFailed         Action = "failed"
	ActionNoop           Action = "noop"
	ActionPurged         Action = "purged"
	ActionReset          Action = "reset"
)

// Outcome summarises a Result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// AdapterError is a start, stop or health failure of one dependency.
type AdapterError struct {
	Dependency string
	Runtime    state.Runtime
	Op         string
	Err        error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("failed to %s %s (%s): %v", e.Op, e.Dependency, e.Runtime, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// DependencyResult is the outcome for one dependency.
type DependencyResult struct {
	Key       string        `json:"key" yaml:"key"`
	Name      string        `json:"name" yaml:"name"`
	Status    state.Status  `json:"status" yaml:"status"`
	Runtime   state.Runtime `json:"runtime,omitempty" yaml:"runtime,omitempty"`
	Action    Action        `json:"action" yaml:"action"`
	Referrers int           `json:"referrers" yaml:"referrers"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	// Warning carries soft failures such as a health timeout.
	Warning string `json:"warning,omitempty" yaml:"warning,omitempty"`

	Err error `json:"-" yaml:"-"`
}

// Result aggregates the per-dependency outcomes of one operation.
type Result struct {
	Service      string             `json:"service" yaml:"service"`
	Operation    string             `json:"operation" yaml:"operation"`
	Modes        []string           `json:"modes,omitempty" yaml:"modes,omitempty"`
	Dependencies []DependencyResult `json:"dependencies" yaml:"dependencies"`
}

func newResult(service, op string, modes []string) *Result {
	return &Result{Service: service, Operation: op, Modes: modes}
}

func (r *Result) add(d DependencyResult) {
	if d.Err != nil && d.Error == "" {
		d.Error = d.Err.Error()
	}
	r.Dependencies = append(r.Dependencies, d)
}

func (r *Result) sort() {
	sort.SliceStable(r.Dependencies, func(i, j int) bool {
		a, b := r.Dependencies[i], r.Dependencies[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Key < b.Key
	})
}

// Outcome is success when nothing failed or warned, failure when every
// dependency failed and partial otherwise.
func (r *Result) Outcome() Outcome {
	var failed, warned int
	for _, d := range r.Dependencies {
		switch {
		case d.Err != nil || d.Error != "":
			failed++
		case d.Warning != "":
			warned++
		}
	}
	switch {
	case failed == 0 && warned == 0:
		return OutcomeSuccess
	case failed == len(r.Dependencies):
		return OutcomeFailure
	default:
		return OutcomePartial
	}
}

// Err aggregates the per-dependency errors, nil when there are none.
func (r *Result) Err() error {
	var errs []error
	for _, d := range r.Dependencies {
		if d.Err != nil {
			errs = append(errs, d.Err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

// Get returns the result of the dependency called name.
func (r *Result) Get(name string) (DependencyResult, bool) {
	for _, d := range r.Dependencies {
		if d.Name == name {
			return d, true
		}
	}
	return DependencyResult{}, false
}

// MarshalJSON encodes the result together with its outcome.
func (r *Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		Outcome Outcome `json:"outcome"`
	}{plain(*r), r.Outcome()})
}
