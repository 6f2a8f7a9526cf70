package orchestrator

import (
	"context"
	"errors"
	"os"
	"syscall"

	"devservices/internal/health"
	"devservices/internal/state"
	"devservices/pkg/logging"
)

// Reconcile settles records left in starting by runs whose process is gone.
// Each such record is checked once: healthy units stay, the rest are reset to
// not_running.
func (o *Orchestrator) Reconcile(ctx context.Context) error {
	claims, err := o.store.StartingClaims(ctx)
	if err != nil {
		return err
	}

	runs := make(map[string][]state.StartingClaim)
	var order []string
	for _, c := range claims {
		if _, ok := runs[c.RunID]; !ok {
			order = append(order, c.RunID)
		}
		runs[c.RunID] = append(runs[c.RunID], c)
	}

	for _, runID := range order {
		pid := runs[runID][0].PID
		if pid == o.pid || o.alive(pid) {
			continue
		}
		logging.Info(subsystem, "Reconciling interrupted run %s (pid %d)", runID, pid)
		for _, c := range runs[runID] {
			rec, ok, err := o.store.Lookup(ctx, c.Key)
			if err != nil {
				return err
			}
			if !ok || rec.Status != state.StatusStarting {
				continue
			}
			next := state.StatusNotRunning
			if rec.Handle != "" {
				status, err := o.statusCheck(rec.Runtime, rec.Handle)(ctx)
				if err == nil && (status == health.StatusHealthy || status == health.StatusUnknown) {
					next = state.StatusHealthy
				}
			}
			o.setStatus(ctx, "", &rec, next, nil)
		}
		if err := o.store.FinishStarting(ctx, runID); err != nil {
			return err
		}
	}
	return nil
}

// processAlive reports whether pid is a live process. EPERM means it exists
// under another user.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
