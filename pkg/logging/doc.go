// Package logging provides the structured logging used throughout devservices.
//
// It is a thin layer over log/slog that tags every entry with a subsystem so
// that output from the graph builder, the orchestrator and the adapters can be
// told apart when running with --debug.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Orchestrator", "Starting %d dependencies", n)
//	logging.Debug("Docker", "Running docker %s", strings.Join(args, " "))
//	logging.Error("State", err, "Failed to persist record for %s", key)
//
// Logs are diagnostics; user-facing command output is written by the cli
// package to stdout. Until InitForCLI is called, entries below warning level
// are dropped.
//
// # Subsystems
//
//   - Config: service config loading and discovery
//   - Graph: dependency graph construction and mode resolution
//   - Orchestrator: up/down/purge execution
//   - Toggle: runtime switches
//   - State: the SQLite runtime state store
//   - Health: readiness polling
//   - Fetcher: remote dependency checkout
//   - Docker: container runtime adapter
//   - Supervisor: supervisord adapter
//   - MCP: the stdio tool server
package logging
