// Package runner invokes the external mesher, converter and solver and turns
// their exit status into errors.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"gemfield/fault"

	log "github.com/sirupsen/logrus"
)

const waitDelay = 2 * time.Second

// Command is one external tool invocation.
type Command struct {
	Program string
	Args    []string
	// working directory, empty for the current one
	Dir string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Program + " " + strings.Join(c.Args, " "))
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Exec runs commands as child processes.
type Exec struct {
	// Timeout bounds every invocation; zero means no limit.
	Timeout time.Duration
	// Echo, when set, receives the live stdout and stderr of the tool.
	Echo io.Writer
}

func NewExec(timeout time.Duration, echo io.Writer) *Exec {
	return &Exec{Timeout: timeout, Echo: echo}
}

func (e *Exec) Run(ctx context.Context, c Command) (*Result, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Program, c.Args...)
	cmd.Dir = c.Dir
	// grandchildren may keep the output pipes open after a kill
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	if e.Echo != nil {
		cmd.Stdout = io.MultiWriter(&stdout, e.Echo)
		cmd.Stderr = io.MultiWriter(&stderr, e.Echo)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
	}

	entry := log.WithFields(log.Fields{
		"program": c.Program,
		"args":    strings.Join(c.Args, " "),
		"dir":     c.Dir,
		"exit":    res.ExitCode,
		"elapsed": res.Duration.Round(time.Millisecond).String(),
	})
	if err == nil {
		entry.Debug("tool finished")
		return res, nil
	}
	entry.Warn("tool failed")

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return res, fault.Tool(c.String(), fmt.Errorf("timed out after %s", e.Timeout))
		}
		return res, fault.Tool(c.String(), ctxErr)
	}
	if res.ExitCode > 0 {
		return res, fault.Tool(c.String(), fmt.Errorf("exit status %d: %s", res.ExitCode, Tail(res.Stderr, 5)))
	}
	return res, fault.Tool(c.String(), err)
}

// Tail returns the last n non-empty lines of s, joined by "; ".
func Tail(s string, n int) string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
