package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/animus-labs/nativepack/internal/build"
	"github.com/animus-labs/nativepack/internal/config"
	"github.com/animus-labs/nativepack/internal/credentials"
	"github.com/animus-labs/nativepack/internal/domain"
	"github.com/animus-labs/nativepack/internal/events"
	"github.com/animus-labs/nativepack/internal/ledger"
	"github.com/animus-labs/nativepack/internal/publish"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

// stubRunner emulates the toolchain: it writes one library per -t target into the
// -o directory, except for architectures listed in skip.
type stubRunner struct {
	exitCode int
	skip     map[string]bool
	calls    int
}

func (s *stubRunner) Run(_ context.Context, cmd build.Command) (build.Result, error) {
	s.calls++
	if s.exitCode != 0 {
		return build.Result{ExitCode: s.exitCode, Output: "error: linker `aarch64-linux-android-clang` not found"}, nil
	}
	var targets []string
	out := ""
	for i := 0; i < len(cmd.Args)-1; i++ {
		switch cmd.Args[i] {
		case "-t":
			targets = append(targets, cmd.Args[i+1])
		case "-o":
			out = cmd.Args[i+1]
		}
	}
	for _, arch := range targets {
		if s.skip[arch] {
			continue
		}
		dir := filepath.Join(out, arch)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return build.Result{}, err
		}
		if err := os.WriteFile(filepath.Join(dir, "libcore.so"), []byte("ELF "+arch), 0o644); err != nil {
			return build.Result{}, err
		}
	}
	return build.Result{ExitCode: 0}, nil
}

type stubUploader struct {
	kind string
	fail map[string]error
}

func (s *stubUploader) Kind() string { return s.kind }

func (s *stubUploader) Upload(_ context.Context, ep domain.RepositoryEndpoint, _ *domain.Credential, unit publish.Unit) error {
	if err := unit.Validate(); err != nil {
		return err
	}
	return s.fail[ep.Name]
}

func testProject(t *testing.T, archs ...string) config.Project {
	t.Helper()
	project := config.Project{
		Identity: config.Identity{Group: "co.example", Artifact: "sync-core", Version: "2.1.0", Packaging: "aar"},
		Build: config.Build{
			Command:    []string{"cargo", "ndk"},
			TargetFlag: "-t",
			OutputFlag: "-o",
			Args:       []string{"build", "--release"},
			StagingDir: "build/staging",
		},
		Package:     config.PackageLayout{Dir: "build/package", PayloadPrefix: "jni"},
		Credentials: config.Credentials{File: "local.properties", Prefix: "publish."},
		Publish: config.Publish{Endpoints: []config.Endpoint{
			{Name: "public", Kind: "file", URL: "repo", Auth: "none"},
			{Name: "private", Kind: "maven", URL: "https://maven.example.com/releases", Auth: "basic"},
		}},
		BaseDir: t.TempDir(),
	}
	for _, a := range archs {
		project.Architectures = append(project.Architectures, config.Architecture{Name: a})
	}
	return project
}

func newPipeline(t *testing.T, project config.Project, runner build.Runner, opts ...Option) (*Pipeline, *ledger.Memory, *events.Recorder) {
	t.Helper()
	mem := ledger.NewMemory()
	rec := &events.Recorder{}
	base := []Option{
		WithLogger(newTestLogger()),
		WithClock(fixedClock()),
		WithRunner(runner),
		WithResolver(credentials.NewResolver("publish.", credentials.MapSource{})),
		WithLedger(mem),
		WithNotifier(rec),
		WithRunID("run-1"),
	}
	p, err := New(project, append(base, opts...)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p, mem, rec
}

func TestRunPublicAndPrivateEndpoints(t *testing.T) {
	project := testProject(t, "arch1", "arch2")
	p, mem, rec := newPipeline(t, project, &stubRunner{})

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.State != domain.RunStateDone {
		t.Fatalf("expected done, got %s", report.State)
	}
	if len(report.Package.Artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(report.Package.Artifacts))
	}
	if len(report.Published()) != 1 || report.Published()[0].Endpoint.Name != "public" {
		t.Fatalf("expected public published, got %+v", report.Endpoints)
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Endpoint.Name != "private" {
		t.Fatalf("expected private failed, got %+v", failed)
	}
	var mce *domain.MissingCredentialError
	if !errors.As(failed[0].Err, &mce) || mce.Key != "publish.private.username" {
		t.Fatalf("expected missing credential, got %v", failed[0].Err)
	}
	if report.Descriptor.Version() != "2.1.0" || len(report.DescriptorSHA256) != 64 {
		t.Fatalf("unexpected descriptor %s %q", report.Descriptor.Version(), report.DescriptorSHA256)
	}

	published := filepath.Join(project.BaseDir, "repo", "co", "example", "sync-core", "2.1.0")
	for _, name := range []string{"sync-core-2.1.0.aar", "sync-core-2.1.0.pom", "sync-core-2.1.0.json"} {
		if _, err := os.Stat(filepath.Join(published, name)); err != nil {
			t.Fatalf("expected %s published: %v", name, err)
		}
	}

	run, err := mem.Run("run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.State != "done" || run.DescriptorSHA256 != report.DescriptorSHA256 {
		t.Fatalf("unexpected ledger run %+v", run)
	}
	eps := mem.Endpoints("run-1")
	if len(eps) != 2 || eps[0].State != "failed" || eps[1].State != "published" {
		t.Fatalf("unexpected ledger endpoints %+v", eps)
	}

	var states []string
	for _, ev := range rec.Events() {
		if ev.Type == events.TypeRunState {
			states = append(states, ev.State)
		}
	}
	if strings.Join(states, ",") != "building,assembling,descriptor_ready,publishing,done" {
		t.Fatalf("unexpected run states %v", states)
	}
}

func TestRunBuildFailureAborts(t *testing.T) {
	project := testProject(t, "arch1", "arch2")
	p, mem, _ := newPipeline(t, project, &stubRunner{exitCode: 101})

	report, err := p.Run(context.Background())
	if !errors.Is(err, domain.ErrBuildFailure) {
		t.Fatalf("expected build failure, got %v", err)
	}
	var be *domain.BuildError
	if !errors.As(err, &be) || be.ExitCode != 101 {
		t.Fatalf("expected exit code 101, got %v", err)
	}
	if report.State != domain.RunStateAborted {
		t.Fatalf("expected aborted, got %s", report.State)
	}
	if len(report.Endpoints) != 0 {
		t.Fatalf("expected no publish attempts, got %+v", report.Endpoints)
	}
	if run, _ := mem.Run("run-1"); run.State != "aborted" || run.Error == "" {
		t.Fatalf("unexpected ledger run %+v", run)
	}
}

func TestRunMissingArtifactAborts(t *testing.T) {
	project := testProject(t, "arch1", "arch2")
	p, _, _ := newPipeline(t, project, &stubRunner{skip: map[string]bool{"arch2": true}})

	report, err := p.Run(context.Background())
	var mae *domain.MissingArtifactError
	if !errors.As(err, &mae) || mae.Architecture != "arch2" {
		t.Fatalf("expected missing artifact arch2, got %v", err)
	}
	if report.State != domain.RunStateAborted {
		t.Fatalf("expected aborted, got %s", report.State)
	}
	if _, err := os.Stat(filepath.Join(project.BaseDir, "repo")); !os.IsNotExist(err) {
		t.Fatalf("expected nothing published, stat err=%v", err)
	}
}

func TestRunPackagesOneBinaryPerArchitecture(t *testing.T) {
	all := []string{"armeabi-v7a", "arm64-v8a", "x86", "x86_64"}
	for n := 1; n <= len(all); n++ {
		project := testProject(t, all[:n]...)
		project.Publish.Endpoints = project.Publish.Endpoints[:1]
		p, _, _ := newPipeline(t, project, &stubRunner{})
		report, err := p.Run(context.Background())
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if len(report.Package.Artifacts) != n {
			t.Fatalf("n=%d: expected %d artifacts, got %d", n, n, len(report.Package.Artifacts))
		}
		for _, a := range report.Package.Artifacts {
			if a.Version != "2.1.0" {
				t.Fatalf("n=%d: artifact %s has version %q", n, a.Architecture, a.Version)
			}
		}
	}
}

func TestRunEndpointFailureDoesNotCascade(t *testing.T) {
	project := testProject(t, "arch1")
	project.Publish.Endpoints = []config.Endpoint{
		{Name: "a", Kind: "maven", URL: "https://a.example.com", Auth: "none"},
		{Name: "b", Kind: "maven", URL: "https://b.example.com", Auth: "none"},
	}
	uploader := &stubUploader{kind: "maven", fail: map[string]error{"a": fmt.Errorf("status 502")}}
	p, _, _ := newPipeline(t, project, &stubRunner{}, WithUploaders(uploader))

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.State != domain.RunStateDone {
		t.Fatalf("expected done, got %s", report.State)
	}
	if report.Endpoints[0].State != domain.EndpointFailed || !errors.Is(report.Endpoints[0].Err, domain.ErrPublishFailure) {
		t.Fatalf("expected a failed, got %+v", report.Endpoints[0])
	}
	if !report.Endpoints[1].Published() {
		t.Fatalf("expected b published, got %+v", report.Endpoints[1])
	}
}

func TestDescribeIsIdempotent(t *testing.T) {
	project := testProject(t, "arch1")
	p, _, _ := newPipeline(t, project, &stubRunner{})
	_, first, err := p.Describe()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, second, err := p.Describe()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected identical descriptor bytes")
	}
}

func TestNewLoadsCredentialFile(t *testing.T) {
	project := testProject(t, "arch1")
	if err := os.WriteFile(filepath.Join(project.BaseDir, "local.properties"), []byte("publish.private.username=alice\npublish.private.password=s3cret\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	uploader := &stubUploader{kind: "maven"}
	p, err := New(project, WithLogger(newTestLogger()), WithRunner(&stubRunner{}), WithUploaders(uploader))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Failed()) != 0 {
		t.Fatalf("expected all endpoints published, got %+v", report.Failed())
	}
	if p.RunID() == "" || report.RunID != p.RunID() {
		t.Fatalf("expected generated run id, got %q", report.RunID)
	}
}
