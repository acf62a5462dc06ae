//go:build windows

package main

import "os"

// shutdownSignals cancel a running sweep, watch or MCP session.
// Windows has no SIGTERM; only Ctrl+C is delivered.
var shutdownSignals = []os.Signal{os.Interrupt}
