// Package orchestrator is the engine behind up, down, toggle and purge.
//
// # Up
//
// Up resolves the requested modes into a dependency selection, splits it into
// topological layers and starts each layer through a bounded worker pool.
// Layers are separated by a barrier, so a dependency is only attempted once
// everything it depends on has been attempted. Each dependency moves
// not_running -> starting -> healthy|unhealthy in the state store.
//
// A dependency that is already healthy under the same runtime is not started
// again; the calling service only adds its claim. Claims are per
// (service, mode), and the number of claims on a dependency is its referrer
// count.
//
// Health timeouts are soft by default: the dependency is marked unhealthy and
// reported as a warning. With StrictHealth they fail the dependency and stop
// later layers. Later layers are also skipped when every dependency of a layer
// failed.
//
// # Down and Purge
//
// Down releases claims and stops, dependents first, whatever no longer has a
// referrer. It only stops; Purge removes containers, volumes, networks,
// supervisor daemons and state.
//
// # Events
//
// Status transitions are published to SubscribeToStateChanges subscribers,
// which the CLI uses for progress output.
package orchestrator
