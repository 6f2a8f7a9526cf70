// Package mcpserver exposes devservices operations as MCP tools over stdio so
// AI assistants can bring dependencies up, inspect them and tear them down.
//
// Every tool answers with JSON text; failures are returned as tool errors
// rather than protocol errors so the assistant can read them.
package mcpserver
