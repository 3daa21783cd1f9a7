//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

// resumeSignals wake the guard. SIGCONT is the closest a headless
// process gets to a resume event.
var resumeSignals = []os.Signal{syscall.SIGCONT}
