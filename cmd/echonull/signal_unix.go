//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals cancel a running sweep, watch or MCP session.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
