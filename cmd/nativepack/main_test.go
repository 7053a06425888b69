package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testProjectYAML = `project:
  group: co.example
  artifact: sync-core
  version: 3.0.0
architectures:
  - name: arm64
build:
  command: [sh, -c, 'mkdir -p "$3/$1" && printf ELF > "$3/$1/libcore.so"']
publish:
  endpoints:
    - name: local
      kind: file
      url: repo
    - name: private
      kind: maven
      url: https://maven.example.com/releases
      auth: basic
`

func writeProject(t *testing.T, body string) string {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("NATIVEPACK_KAFKA_BROKERS", "")
	t.Setenv("PUBLISH_PRIVATE_USERNAME", "")
	t.Setenv("PUBLISH_PRIVATE_PASSWORD", "")
	path := filepath.Join(t.TempDir(), "nativepack.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExitCode(t *testing.T) {
	if exitCode(nil) != 0 {
		t.Fatalf("expected 0 for nil")
	}
	if exitCode(configError(errors.New("bad"))) != 2 {
		t.Fatalf("expected 2 for config errors")
	}
	if exitCode(runtimeError(errors.New("bad"))) != 1 {
		t.Fatalf("expected 1 for runtime errors")
	}
	if exitCode(errors.New("plain")) != 1 {
		t.Fatalf("expected 1 for plain errors")
	}
}

func TestMissingProjectIsConfigError(t *testing.T) {
	code, _, stderr := runCLI("descriptor", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	if code != 2 {
		t.Fatalf("expected exit 2, got %d (%s)", code, stderr)
	}
}

func TestUnknownFlagIsConfigError(t *testing.T) {
	code, _, _ := runCLI("run", "--no-such-flag")
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestDescriptorCommand(t *testing.T) {
	path := writeProject(t, testProjectYAML)
	code, stdout, stderr := runCLI("descriptor", "--config", path)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, `"version": "3.0.0"`) {
		t.Fatalf("unexpected descriptor output: %s", stdout)
	}
	code, stdout, _ = runCLI("descriptor", "--pom", "--config", path)
	if code != 0 || !strings.Contains(stdout, "<artifactId>sync-core</artifactId>") {
		t.Fatalf("unexpected pom output (%d): %s", code, stdout)
	}
}

func TestInitWritesStarterProject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nativepack.yaml")
	code, _, stderr := runCLI("init", "--config", path)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	code, _, _ = runCLI("init", "--config", path)
	if code != 2 {
		t.Fatalf("expected exit 2 when file exists, got %d", code)
	}
	code, stdout, stderr := runCLI("endpoints", "--config", path)
	if code != 0 {
		t.Fatalf("expected starter project to load, got %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "sonatype") || !strings.Contains(stdout, "basic") {
		t.Fatalf("unexpected endpoints output: %s", stdout)
	}
}

func TestCredentialsCommandMasksValues(t *testing.T) {
	path := writeProject(t, testProjectYAML)
	props := "publish.private.username=alice\npublish.private.password=hunter2hunter2\n"
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "local.properties"), []byte(props), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	code, stdout, stderr := runCLI("credentials", "--config", path)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if strings.Contains(stdout, "hunter2hunter2") {
		t.Fatalf("secret leaked: %s", stdout)
	}
	if !strings.Contains(stdout, "publish.private.password") || !strings.Contains(stdout, "resolved") {
		t.Fatalf("unexpected output: %s", stdout)
	}
}

func TestRunWithMissingCredential(t *testing.T) {
	path := writeProject(t, testProjectYAML)
	code, stdout, stderr := runCLI("run", "--config", path)
	if code != 1 {
		t.Fatalf("expected exit 1 with a failed endpoint, got %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "done") || !strings.Contains(stdout, "missing credential") {
		t.Fatalf("unexpected report: %s", stdout)
	}
	published := filepath.Join(filepath.Dir(path), "repo", "co", "example", "sync-core", "3.0.0", "sync-core-3.0.0.aar")
	if _, err := os.Stat(published); err != nil {
		t.Fatalf("expected local endpoint published: %v", err)
	}

	code, _, stderr = runCLI("run", "--allow-partial", "--config", path)
	if code != 0 {
		t.Fatalf("expected exit 0 with --allow-partial, got %d: %s", code, stderr)
	}
}

func TestRunBuildFailureExitsOne(t *testing.T) {
	body := strings.Replace(testProjectYAML, `command: [sh, -c, 'mkdir -p "$3/$1" && printf ELF > "$3/$1/libcore.so"']`, `command: [sh, -c, 'echo boom >&2; exit 3']`, 1)
	path := writeProject(t, body)
	code, stdout, _ := runCLI("run", "--config", path)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stdout, "aborted") {
		t.Fatalf("expected aborted report: %s", stdout)
	}
}
