// Package dependency builds the dependency graph of a service and projects it
// onto the modes requested by the user.
//
// Nodes are resolved dependencies. Local compose services and supervisor
// programs are identified by their owning service ("sentry/redis"); anything
// defined by a fetched remote repository is identified by the checkout
// ("snuba@master/clickhouse"), so a dependency reached through several
// services or modes is represented once and carries a referrer count.
//
// Edges point from a node to what it depends on. The builder walks the
// declared dependencies of the requested modes, fetching remote configs
// through a Resolver and recursing into the remote's selected mode. Cycles are
// detected with a white/gray/black walk and reported with the full path; a
// remote listing itself in its own mode is folded into the remote node rather
// than producing a self-loop.
//
// Select computes the induced subgraph of one or more modes, and Layers
// splits it into topological layers, dependencies first.
package dependency
