// Package ilog gates verbose build/search tracing behind a switch so normal
// runs stay quiet while diagnosing a stuck build only needs an env var.
package ilog

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	out     io.Writer
	enabled bool
)

func init() {
	if os.Getenv("SPIMIDX_DEBUG") != "" {
		enabled = true
		out = os.Stderr
	}
}

// SetOutput redirects verbose output. Passing nil disables it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	enabled = w != nil
}

// Enabled reports whether verbose logging is currently active.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Logf writes a verbose trace line. No-op unless enabled.
func Logf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled || out == nil {
		return
	}
	fmt.Fprintf(out, format+"\n", args...)
}
