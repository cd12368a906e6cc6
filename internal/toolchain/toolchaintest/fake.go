// Package toolchaintest provides a scripted toolchain.Runner for tests.
package toolchaintest

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Call is one recorded tool invocation.
type Call struct {
	Tool string
	Args []string
}

// Flag returns the value of a --name=value argument.
func (c Call) Flag(name string) (string, bool) {
	prefix := "--" + name + "="
	for _, a := range c.Args {
		if v, ok := strings.CutPrefix(a, prefix); ok {
			return v, true
		}
	}
	return "", false
}

// Runner records invocations and runs the handler registered for each tool.
type Runner struct {
	mu       sync.Mutex
	handlers map[string]func(args []string) error
	calls    []Call
}

// NewRunner returns a Runner with no handlers.
func NewRunner() *Runner {
	return &Runner{handlers: make(map[string]func([]string) error)}
}

// Handle sets the behaviour of tool. A nil handler succeeds without effect.
func (r *Runner) Handle(tool string, h func(args []string) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		h = func([]string) error { return nil }
	}
	r.handlers[tool] = h
}

// Run implements toolchain.Runner.
func (r *Runner) Run(ctx context.Context, tool string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.calls = append(r.calls, Call{Tool: tool, Args: append([]string(nil), args...)})
	h, ok := r.handlers[tool]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("unexpected tool %s", tool)
	}
	return h(args)
}

// Calls returns the recorded invocations in order.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}
