// Package dispatch holds module-level metadata shared by the CLI and
// the MCP server.
package dispatch

// Version is the dispatch release version.
const Version = "0.2.0"
