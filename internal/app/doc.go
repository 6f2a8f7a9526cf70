// Package app wires devservices together for a single CLI invocation.
//
// NewApplication loads the tool settings, initializes logging, opens the
// state database and builds the orchestrator with its adapters:
//
//   - containers: docker compose through internal/containerizer, created on
//     first use so read-only commands work without a docker daemon
//   - programs: supervisord through internal/supervisor
//   - remotes: sparse git checkouts through internal/fetcher
//
// Example usage:
//
//	application, err := app.NewApplication(app.NewConfig(debug, ""))
//	if err != nil {
//	    return err
//	}
//	defer application.Close()
//	svc, err := application.ResolveService(name)
package app
