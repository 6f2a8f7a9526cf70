// Package cli renders devservices results for the terminal.
//
// Every command result can be printed in one of four formats:
//
//   - table: rounded go-pretty tables with colored status cells
//   - plain: kubectl-style columns for grep, awk and cut
//   - json and yaml: the structured result, for scripts
//
// Long running operations show a spinner on stderr that follows the
// orchestrator's state change events.
package cli
