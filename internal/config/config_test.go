package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/animus-labs/nativepack/internal/domain"
)

const minimalYAML = `
project:
  group: co.example
  artifact: sync-core
  version: 1.2.3
architectures:
  - name: arm64-v8a
  - name: x86_64
    output: out/{arch}/libcore.so
build:
  command: [cargo, ndk]
  timeout: 10m
publish:
  endpoints:
    - name: local
      kind: file
      url: build/repo
    - name: bucket
      kind: s3
      url: s3://minio:9000/releases
    - name: central
      kind: maven
      url: https://repo.example.com/releases
      auth: basic
`

func TestDefaultProjectYAMLParses(t *testing.T) {
	project, err := Parse([]byte(DefaultProjectYAML), "/work")
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	if len(project.TargetArchitectures()) != 4 {
		t.Fatalf("expected 4 architectures, got %d", len(project.TargetArchitectures()))
	}
	if project.Signing.Enabled {
		t.Fatalf("signing must be disabled by default")
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	project, err := Parse([]byte(minimalYAML), "/work")
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	if project.Identity.Packaging != DefaultPackaging {
		t.Fatalf("Packaging=%q", project.Identity.Packaging)
	}
	if project.Build.StagingDir != DefaultStagingDir || project.Build.TargetFlag != "-t" {
		t.Fatalf("unexpected build defaults: %+v", project.Build)
	}
	if project.Build.Timeout != 10*time.Minute {
		t.Fatalf("Timeout=%v", project.Build.Timeout)
	}
	if project.Credentials.Prefix != DefaultCredentialsPrefix {
		t.Fatalf("Prefix=%q", project.Credentials.Prefix)
	}
	if got := project.Path(project.Build.StagingDir); got != filepath.Join("/work", DefaultStagingDir) {
		t.Fatalf("Path()=%q", got)
	}

	endpoints := project.Endpoints()
	want := map[string]domain.AuthMode{"local": domain.AuthNone, "bucket": domain.AuthS3, "central": domain.AuthBasic}
	for _, ep := range endpoints {
		if ep.Auth != want[ep.Name] {
			t.Fatalf("endpoint %s auth=%q, want %q", ep.Name, ep.Auth, want[ep.Name])
		}
	}
	archs := project.TargetArchitectures()
	if archs[1].Pattern() != "out/x86_64/libcore.so" {
		t.Fatalf("Pattern()=%q", archs[1].Pattern())
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "missing version",
			mutate:  func(s string) string { return strings.Replace(s, "version: 1.2.3", "", 1) },
			wantErr: "project.version",
		},
		{
			name:    "duplicate architecture",
			mutate:  func(s string) string { return strings.Replace(s, "name: x86_64", "name: arm64-v8a", 1) },
			wantErr: "duplicate architecture",
		},
		{
			name:    "unknown kind",
			mutate:  func(s string) string { return strings.Replace(s, "kind: maven", "kind: ftp", 1) },
			wantErr: "unknown kind",
		},
		{
			name:    "unknown auth",
			mutate:  func(s string) string { return strings.Replace(s, "auth: basic", "auth: kerberos", 1) },
			wantErr: "unknown auth",
		},
		{
			name:    "duplicate endpoint",
			mutate:  func(s string) string { return strings.Replace(s, "name: bucket", "name: local", 1) },
			wantErr: "duplicate endpoint",
		},
		{
			name:    "missing build command",
			mutate:  func(s string) string { return strings.Replace(s, "command: [cargo, ndk]", "command: []", 1) },
			wantErr: "build.command",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.mutate(minimalYAML)), "/work")
			if err == nil {
				t.Fatalf("Parse() expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Parse() err=%v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadIgnoresVersionFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultPath)
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("NATIVEPACK_VERSION", "2.0.0-rc1")
	project, err := Load(path)
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if project.Version() != "1.2.3" {
		t.Fatalf("Version()=%q, want the project file version", project.Version())
	}
	if project.DescriptorFields().Version != project.Version() {
		t.Fatalf("descriptor fields must carry the project version")
	}
	if project.BaseDir != dir {
		t.Fatalf("BaseDir=%q, want %q", project.BaseDir, dir)
	}
}

func TestLoadPublishParallelOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("NATIVEPACK_PUBLISH_PARALLEL", "true")
	project, err := Load(path)
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if !project.Publish.Parallel {
		t.Fatalf("expected parallel publishing from env")
	}
	t.Setenv("NATIVEPACK_PUBLISH_PARALLEL", "sometimes")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid bool")
	}
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	project, err := Parse([]byte(minimalYAML), "")
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	clone := project.Clone()
	clone.Architectures[0].Name = "mips"
	clone.Build.Command[0] = "make"
	if project.Architectures[0].Name != "arm64-v8a" || project.Build.Command[0] != "cargo" {
		t.Fatalf("Clone() shares backing arrays")
	}
}

func TestLibraryNameSetsDefaultOutputPattern(t *testing.T) {
	body := strings.Replace(minimalYAML, "architectures:", "library:\n  name: libsync\narchitectures:", 1)
	project, err := Parse([]byte(body), "/work")
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	archs := project.TargetArchitectures()
	if archs[0].Pattern() != "arm64-v8a/libsync.so" {
		t.Fatalf("Pattern()=%q", archs[0].Pattern())
	}
	if archs[1].Pattern() != "out/x86_64/libcore.so" {
		t.Fatalf("explicit output must win, got %q", archs[1].Pattern())
	}

	plain, err := Parse([]byte(minimalYAML), "/work")
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	if got := plain.TargetArchitectures()[0].Pattern(); got != "arm64-v8a/*.so" {
		t.Fatalf("Pattern()=%q", got)
	}
}
