package runner

import (
	"context"
	"errors"
	"sync"

	"gemfield/fault"
)

// Fake records commands instead of running them. Fail decides, per command,
// whether it exits non-zero.
type Fake struct {
	mu       sync.Mutex
	Commands []Command
	Fail     func(c Command) bool
	// OnRun runs before the result is returned, e.g. to create expected files.
	OnRun func(c Command)
}

func (f *Fake) Run(ctx context.Context, c Command) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.Tool(c.String(), err)
	}
	f.mu.Lock()
	f.Commands = append(f.Commands, c)
	f.mu.Unlock()

	if f.OnRun != nil {
		f.OnRun(c)
	}
	if f.Fail != nil && f.Fail(c) {
		return &Result{ExitCode: 1, Stderr: "fake failure"}, fault.Tool(c.String(), errors.New("exit status 1"))
	}
	return &Result{}, nil
}

// Lines returns the recorded commands as strings, in call order.
func (f *Fake) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Commands))
	for i, c := range f.Commands {
		out[i] = c.String()
	}
	return out
}
