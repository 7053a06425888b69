// Package build triggers the external cross-compilation toolchain.
//
// The toolchain is invoked once for the whole architecture set and must finish
// before anything downstream runs. A non-zero exit, or a zero exit that leaves no
// staging directory behind, is a BuildFailure.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/animus-labs/nativepack/internal/config"
	"github.com/animus-labs/nativepack/internal/domain"
)

// Outcome is the structured result of one build invocation.
type Outcome struct {
	Command    Command
	Result     Result
	StagingDir string
}

// Invoker runs the configured build command.
type Invoker struct {
	project config.Project
	runner  Runner
	logger  *slog.Logger
}

func NewInvoker(project config.Project, runner Runner, logger *slog.Logger) *Invoker {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{project: project.Clone(), runner: runner, logger: logger}
}

// Command builds the argv for the given targets:
// command..., targetFlag <arch> per target, outputFlag <staging>, args...
func (i *Invoker) Command(targets []domain.TargetArchitecture) Command {
	b := i.project.Build
	args := append([]string(nil), b.Command[1:]...)
	for _, t := range targets {
		args = append(args, b.TargetFlag, t.Name)
	}
	args = append(args, b.OutputFlag, i.StagingDir())
	args = append(args, b.Args...)
	dir := i.project.Path(b.Dir)
	if dir == "" {
		dir = i.project.BaseDir
	}
	return Command{Dir: dir, Env: b.Env, Name: b.Command[0], Args: args}
}

// StagingDir is the absolute staging directory the toolchain writes into.
func (i *Invoker) StagingDir() string {
	return i.project.Path(i.project.Build.StagingDir)
}

// Invoke runs the build for every target and blocks until it completes.
func (i *Invoker) Invoke(ctx context.Context, targets []domain.TargetArchitecture) (Outcome, error) {
	if len(targets) == 0 {
		return Outcome{}, &domain.BuildError{ExitCode: -1, Err: errors.New("no target architectures")}
	}
	staging := i.StagingDir()
	// Toolchains expect the output directory to exist.
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return Outcome{}, &domain.BuildError{ExitCode: -1, Err: fmt.Errorf("ensure staging dir: %w", err)}
	}
	if timeout := i.project.Build.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := i.Command(targets)
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name)
	}
	i.logger.Info("native build started", "command", cmd.String(), "targets", strings.Join(names, ","), "staging_dir", staging)

	result, err := i.runner.Run(ctx, cmd)
	outcome := Outcome{Command: cmd, Result: result, StagingDir: staging}
	if err != nil {
		return outcome, &domain.BuildError{ExitCode: result.ExitCode, Output: result.Output, Err: err}
	}
	if result.ExitCode != 0 {
		return outcome, &domain.BuildError{ExitCode: result.ExitCode, Output: result.Output}
	}
	entries, readErr := os.ReadDir(staging)
	if readErr != nil {
		return outcome, &domain.BuildError{ExitCode: 0, Output: result.Output, Err: fmt.Errorf("read staging dir: %w", readErr)}
	}
	if len(entries) == 0 {
		return outcome, &domain.BuildError{ExitCode: 0, Output: result.Output, Err: fmt.Errorf("build left no outputs in %s", staging)}
	}
	i.logger.Info("native build finished", "duration", result.Duration.String())
	return outcome, nil
}
