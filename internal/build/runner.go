package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// Command is one external process invocation.
type Command struct {
	Dir  string
	Env  map[string]string
	Name string
	Args []string
}

// String renders the argv for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the structured outcome of a finished process.
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Runner executes a command synchronously. A non-zero exit is reported through
// Result.ExitCode with a nil error; err is reserved for processes that could not be
// started or were interrupted.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands on the host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Result{}, errors.New("command name is required")
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return Result{}, fmt.Errorf("build tool not found: %w", err)
	}

	proc := exec.CommandContext(ctx, bin, cmd.Args...)
	proc.Dir = cmd.Dir
	proc.Env = mergeEnv(os.Environ(), cmd.Env)
	var out bytes.Buffer
	proc.Stdout = &out
	proc.Stderr = &out

	started := time.Now()
	err = proc.Run()
	result := Result{Output: out.String(), Duration: time.Since(started)}
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, err
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := append([]string(nil), base...)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}
