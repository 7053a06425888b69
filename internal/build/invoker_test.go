package build

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/animus-labs/nativepack/internal/config"
	"github.com/animus-labs/nativepack/internal/domain"
)

// stubRunner records invocations. A successful run drops one file into the -o
// directory unless empty is set.
type stubRunner struct {
	calls  []Command
	result Result
	err    error
	empty  bool
}

func (s *stubRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	s.calls = append(s.calls, cmd)
	if s.err != nil || s.result.ExitCode != 0 || s.empty {
		return s.result, s.err
	}
	for i := 0; i < len(cmd.Args)-1; i++ {
		if cmd.Args[i] == "-o" {
			if err := os.WriteFile(filepath.Join(cmd.Args[i+1], "libcore.so"), []byte("ELF"), 0o644); err != nil {
				return Result{}, err
			}
		}
	}
	return s.result, s.err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func testProject(t *testing.T) config.Project {
	t.Helper()
	return config.Project{
		Identity: config.Identity{Group: "g", Artifact: "a", Version: "1.0.0"},
		Architectures: []config.Architecture{
			{Name: "arm64-v8a"},
			{Name: "x86_64"},
		},
		Build: config.Build{
			Command:    []string{"cargo", "ndk"},
			TargetFlag: "-t",
			OutputFlag: "-o",
			Args:       []string{"build", "--release"},
			StagingDir: "staging",
		},
		BaseDir: t.TempDir(),
	}
}

func TestInvokeRunsSingleCommandForAllTargets(t *testing.T) {
	project := testProject(t)
	runner := &stubRunner{}
	inv := NewInvoker(project, runner, newTestLogger())

	outcome, err := inv.Invoke(context.Background(), project.TargetArchitectures())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected one invocation, got %d", len(runner.calls))
	}
	staging := filepath.Join(project.BaseDir, "staging")
	want := []string{"ndk", "-t", "arm64-v8a", "-t", "x86_64", "-o", staging, "build", "--release"}
	if got := runner.calls[0].Args; !reflect.DeepEqual(got, want) {
		t.Fatalf("args=%v, want %v", got, want)
	}
	if runner.calls[0].Name != "cargo" {
		t.Fatalf("name=%q", runner.calls[0].Name)
	}
	if outcome.StagingDir != staging {
		t.Fatalf("StagingDir=%q", outcome.StagingDir)
	}
}

func TestInvokeNonZeroExitIsBuildFailure(t *testing.T) {
	project := testProject(t)
	runner := &stubRunner{result: Result{ExitCode: 101, Output: "error: linker failed"}}
	inv := NewInvoker(project, runner, newTestLogger())

	_, err := inv.Invoke(context.Background(), project.TargetArchitectures())
	if !errors.Is(err, domain.ErrBuildFailure) {
		t.Fatalf("expected build failure, got %v", err)
	}
	var buildErr *domain.BuildError
	if !errors.As(err, &buildErr) || buildErr.ExitCode != 101 {
		t.Fatalf("expected exit code 101, got %+v", buildErr)
	}
}

func TestInvokeStartErrorIsBuildFailure(t *testing.T) {
	project := testProject(t)
	cause := errors.New("exec: \"cargo\": executable file not found")
	inv := NewInvoker(project, &stubRunner{err: cause}, newTestLogger())

	_, err := inv.Invoke(context.Background(), project.TargetArchitectures())
	if !errors.Is(err, domain.ErrBuildFailure) || !errors.Is(err, cause) {
		t.Fatalf("expected build failure wrapping cause, got %v", err)
	}
}

func TestInvokeWithoutOutputsIsBuildFailure(t *testing.T) {
	project := testProject(t)
	inv := NewInvoker(project, &stubRunner{empty: true}, newTestLogger())

	_, err := inv.Invoke(context.Background(), project.TargetArchitectures())
	var buildErr *domain.BuildError
	if !errors.As(err, &buildErr) || buildErr.ExitCode != 0 {
		t.Fatalf("expected build failure with exit 0, got %v", err)
	}
}

func TestInvokeRequiresTargets(t *testing.T) {
	inv := NewInvoker(testProject(t), &stubRunner{}, newTestLogger())
	if _, err := inv.Invoke(context.Background(), nil); !errors.Is(err, domain.ErrBuildFailure) {
		t.Fatalf("expected build failure, got %v", err)
	}
}

func TestExecRunnerReportsExitCode(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo building; exit 3"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("ExitCode=%d, want 3", res.ExitCode)
	}
	if res.Output != "building\n" {
		t.Fatalf("Output=%q", res.Output)
	}
}

func TestExecRunnerPassesEnv(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "printf %s \"$NATIVEPACK_TEST_VALUE\""},
		Env:  map[string]string{"NATIVEPACK_TEST_VALUE": "abi"},
	})
	if err != nil || res.ExitCode != 0 {
		t.Fatalf("unexpected result %+v err=%v", res, err)
	}
	if res.Output != "abi" {
		t.Fatalf("Output=%q", res.Output)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	if _, err := (ExecRunner{}).Run(context.Background(), Command{Name: "nativepack-no-such-tool"}); err == nil {
		t.Fatalf("expected lookup error")
	}
}
