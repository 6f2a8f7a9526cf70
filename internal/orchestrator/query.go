package orchestrator

import (
	"context"
	"fmt"

	"devservices/internal/state"
)

// Status returns the records claimed by service sorted by dependency name,
// or every record when service is empty.
func (o *Orchestrator) Status(ctx context.Context, service string) ([]state.Record, error) {
	return o.store.List(ctx, service)
}

// Logs returns the last tail lines of output of a dependency of service.
func (o *Orchestrator) Logs(ctx context.Context, service, name string, tail int) (string, error) {
	recs, err := o.store.List(ctx, service)
	if err != nil {
		return "", err
	}
	for _, rec := range recs {
		if rec.Name != name {
			continue
		}
		switch {
		case grouping(rec.Target):
			return "", fmt.Errorf("%s has no unit of its own to show logs for", name)
		case rec.Runtime == state.RuntimeLocal:
			handle := rec.Handle
			if handle == "" {
				handle = programSpec(rec.Target).Handle()
			}
			return o.programs.Logs(ctx, handle, tail)
		default:
			return o.containers.Logs(ctx, descriptor(rec.Target), tail)
		}
	}
	return "", fmt.Errorf("dependency %s of %s has not been started", name, service)
}
