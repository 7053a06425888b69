// Package config loads the nativepack project file.
//
// A project file declares the library identity, the fixed architecture set, the
// external build command, and the publish endpoints. The loaded Project is treated
// as an immutable value: stages receive a copy at construction and never consult
// process-wide state afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/animus-labs/nativepack/internal/domain"
	"github.com/animus-labs/nativepack/internal/platform/env"
)

const (
	// DefaultPath is the project file looked up when none is given.
	DefaultPath = "nativepack.yaml"

	DefaultStagingDir        = "build/staging"
	DefaultPackageDir        = "build/package"
	DefaultPayloadPrefix     = "jni"
	DefaultPackaging         = "aar"
	DefaultCredentialsFile   = "local.properties"
	DefaultCredentialsPrefix = "publish."
	DefaultTargetFlag        = "-t"
	DefaultOutputFlag        = "-o"
)

// Endpoint kinds understood by the publisher.
const (
	KindMaven = "maven"
	KindS3    = "s3"
	KindFile  = "file"
)

// DefaultProjectYAML is written by `nativepack init`.
const DefaultProjectYAML = `# nativepack project configuration
project:
  group: com.example
  artifact: native-core
  version: 0.1.0
  name: Native Core
  description: Prebuilt native library packaged for Android.
  url: https://example.com/native-core
  licenses:
    - name: Apache-2.0
      url: https://www.apache.org/licenses/LICENSE-2.0.txt
  scm:
    url: https://github.com/example/native-core
    connection: scm:git:github.com/example/native-core.git
    developerConnection: scm:git:ssh://github.com/example/native-core.git
  developers:
    - id: maintainer
      name: Example Maintainer
      email: maintainer@example.com

library:
  name: native_core

architectures:
  - name: armeabi-v7a
  - name: arm64-v8a
  - name: x86
  - name: x86_64

build:
  command: [cargo, ndk]
  targetFlag: -t
  outputFlag: -o
  args: [build, --release]
  stagingDir: build/staging

credentials:
  # git-ignored key=value file; only keys with the prefix are imported
  file: local.properties
  prefix: publish.

publish:
  endpoints:
    - name: local
      kind: file
      url: build/repo
    - name: sonatype
      kind: maven
      url: https://s01.oss.sonatype.org/service/local/staging/deploy/maven2
      auth: basic

signing:
  enabled: false
`

// License is a license reference in the project file.
type License struct {
	Name         string `yaml:"name"`
	URL          string `yaml:"url,omitempty"`
	Distribution string `yaml:"distribution,omitempty"`
}

// SCM declares source-control provenance.
type SCM struct {
	URL                 string `yaml:"url,omitempty"`
	Connection          string `yaml:"connection,omitempty"`
	DeveloperConnection string `yaml:"developerConnection,omitempty"`
}

// Developer declares a maintainer.
type Developer struct {
	ID           string `yaml:"id,omitempty"`
	Name         string `yaml:"name,omitempty"`
	Email        string `yaml:"email,omitempty"`
	Organization string `yaml:"organization,omitempty"`
}

// Identity is the release identity shared by the descriptor and every artifact.
type Identity struct {
	Group       string      `yaml:"group"`
	Artifact    string      `yaml:"artifact"`
	Version     string      `yaml:"version"`
	Name        string      `yaml:"name,omitempty"`
	Description string      `yaml:"description,omitempty"`
	URL         string      `yaml:"url,omitempty"`
	Packaging   string      `yaml:"packaging,omitempty"`
	Licenses    []License   `yaml:"licenses,omitempty"`
	SCM         SCM         `yaml:"scm,omitempty"`
	Developers  []Developer `yaml:"developers,omitempty"`
}

// Library names the native binary being packaged.
type Library struct {
	Name string `yaml:"name,omitempty"`
}

// OutputPattern is the staging glob for architectures that declare no output:
// {arch}/lib<name>.so when a name is set, any shared object otherwise.
func (l Library) OutputPattern() string {
	name := strings.TrimSpace(l.Name)
	if name == "" {
		return ""
	}
	return domain.ArchPlaceholder + "/lib" + strings.TrimPrefix(name, "lib") + ".so"
}

// Architecture is one declared build target.
type Architecture struct {
	Name   string `yaml:"name"`
	Output string `yaml:"output,omitempty"`
}

// Build configures the external cross-compilation command.
type Build struct {
	Command    []string          `yaml:"command"`
	TargetFlag string            `yaml:"targetFlag,omitempty"`
	OutputFlag string            `yaml:"outputFlag,omitempty"`
	Args       []string          `yaml:"args,omitempty"`
	Dir        string            `yaml:"dir,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"`
	StagingDir string            `yaml:"stagingDir,omitempty"`
	Timeout    time.Duration     `yaml:"timeout,omitempty"`
}

// PackageLayout configures where the payload and archive are written.
type PackageLayout struct {
	Dir           string `yaml:"dir,omitempty"`
	PayloadPrefix string `yaml:"payloadPrefix,omitempty"`
}

// Credentials configures the local override file.
type Credentials struct {
	File   string `yaml:"file,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
}

// Endpoint declares one publish target.
type Endpoint struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	URL         string `yaml:"url"`
	Auth        string `yaml:"auth,omitempty"`
	UsernameKey string `yaml:"usernameKey,omitempty"`
	SecretKey   string `yaml:"secretKey,omitempty"`
	Bucket      string `yaml:"bucket,omitempty"`
	Region      string `yaml:"region,omitempty"`
	Prefix      string `yaml:"prefix,omitempty"`
}

// Publish lists endpoints.
type Publish struct {
	Parallel  bool       `yaml:"parallel,omitempty"`
	Endpoints []Endpoint `yaml:"endpoints"`
}

// Signing toggles the optional signing stage.
type Signing struct {
	Enabled       bool   `yaml:"enabled"`
	KeyKey        string `yaml:"keyKey,omitempty"`
	PassphraseKey string `yaml:"passphraseKey,omitempty"`
}

// Project models nativepack.yaml.
type Project struct {
	Identity      Identity       `yaml:"project"`
	Library       Library        `yaml:"library,omitempty"`
	Architectures []Architecture `yaml:"architectures"`
	Build         Build          `yaml:"build"`
	Package       PackageLayout  `yaml:"package,omitempty"`
	Credentials   Credentials    `yaml:"credentials,omitempty"`
	Publish       Publish        `yaml:"publish"`
	Signing       Signing        `yaml:"signing,omitempty"`

	// BaseDir anchors relative paths; it is the directory of the project file.
	BaseDir string `yaml:"-"`
}

// Load reads a project file, applies defaults and NATIVEPACK_* overrides, and
// validates the result.
func Load(path string) (Project, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Project{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Project{}, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	project, err := decode(data)
	if err != nil {
		return Project{}, err
	}
	project.BaseDir = filepath.Dir(abs)
	if err := project.applyEnv(); err != nil {
		return Project{}, err
	}
	project.applyDefaults()
	if err := project.Validate(); err != nil {
		return Project{}, err
	}
	return project, nil
}

// Parse decodes a project file body without consulting the environment.
func Parse(data []byte, baseDir string) (Project, error) {
	project, err := decode(data)
	if err != nil {
		return Project{}, err
	}
	project.BaseDir = baseDir
	project.applyDefaults()
	if err := project.Validate(); err != nil {
		return Project{}, err
	}
	return project, nil
}

func decode(data []byte) (Project, error) {
	var project Project
	if err := yaml.Unmarshal(data, &project); err != nil {
		return Project{}, fmt.Errorf("config: parse: %w", err)
	}
	return project, nil
}

func (p *Project) applyEnv() error {
	timeout, err := env.Duration("NATIVEPACK_BUILD_TIMEOUT", p.Build.Timeout)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	p.Build.Timeout = timeout
	parallel, err := env.Bool("NATIVEPACK_PUBLISH_PARALLEL", p.Publish.Parallel)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	p.Publish.Parallel = parallel
	return nil
}

func (p *Project) applyDefaults() {
	if p.Identity.Packaging == "" {
		p.Identity.Packaging = DefaultPackaging
	}
	if p.Build.TargetFlag == "" {
		p.Build.TargetFlag = DefaultTargetFlag
	}
	if p.Build.OutputFlag == "" {
		p.Build.OutputFlag = DefaultOutputFlag
	}
	if p.Build.StagingDir == "" {
		p.Build.StagingDir = DefaultStagingDir
	}
	if p.Package.Dir == "" {
		p.Package.Dir = DefaultPackageDir
	}
	if p.Package.PayloadPrefix == "" {
		p.Package.PayloadPrefix = DefaultPayloadPrefix
	}
	if p.Credentials.File == "" {
		p.Credentials.File = DefaultCredentialsFile
	}
	if p.Credentials.Prefix == "" {
		p.Credentials.Prefix = DefaultCredentialsPrefix
	}
	if p.Signing.KeyKey == "" {
		p.Signing.KeyKey = p.Credentials.Prefix + "signing.key"
	}
	if p.Signing.PassphraseKey == "" {
		p.Signing.PassphraseKey = p.Credentials.Prefix + "signing.password"
	}
	for i := range p.Publish.Endpoints {
		ep := &p.Publish.Endpoints[i]
		ep.Kind = strings.ToLower(strings.TrimSpace(ep.Kind))
		if ep.Auth == "" {
			switch ep.Kind {
			case KindS3:
				ep.Auth = string(domain.AuthS3)
			case KindFile:
				ep.Auth = string(domain.AuthNone)
			}
		}
	}
}

// Validate rejects incomplete or contradictory project files.
func (p Project) Validate() error {
	if strings.TrimSpace(p.Identity.Group) == "" {
		return errors.New("config: project.group is required")
	}
	if strings.TrimSpace(p.Identity.Artifact) == "" {
		return errors.New("config: project.artifact is required")
	}
	if strings.TrimSpace(p.Identity.Version) == "" {
		return errors.New("config: project.version is required")
	}
	if len(p.Architectures) == 0 {
		return errors.New("config: at least one architecture is required")
	}
	seen := make(map[string]struct{}, len(p.Architectures))
	for _, arch := range p.TargetArchitectures() {
		if err := arch.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if _, dup := seen[arch.Name]; dup {
			return fmt.Errorf("config: duplicate architecture %q", arch.Name)
		}
		seen[arch.Name] = struct{}{}
	}
	if len(p.Build.Command) == 0 || strings.TrimSpace(p.Build.Command[0]) == "" {
		return errors.New("config: build.command is required")
	}
	if p.Build.Timeout < 0 {
		return errors.New("config: build.timeout must be >= 0")
	}
	names := make(map[string]struct{}, len(p.Publish.Endpoints))
	for _, ep := range p.Endpoints() {
		if err := ep.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		switch ep.Kind {
		case KindMaven, KindS3, KindFile:
		default:
			return fmt.Errorf("config: endpoint %s: unknown kind %q", ep.Name, ep.Kind)
		}
		if ep.Kind == KindS3 && ep.Auth != domain.AuthS3 && ep.Auth != domain.AuthNone {
			return fmt.Errorf("config: endpoint %s: s3 endpoints use auth s3 or none", ep.Name)
		}
		if _, dup := names[ep.Name]; dup {
			return fmt.Errorf("config: duplicate endpoint %q", ep.Name)
		}
		names[ep.Name] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy so a stage can hold the value without sharing slices.
func (p Project) Clone() Project {
	out := p
	out.Identity.Licenses = append([]License(nil), p.Identity.Licenses...)
	out.Identity.Developers = append([]Developer(nil), p.Identity.Developers...)
	out.Architectures = append([]Architecture(nil), p.Architectures...)
	out.Build.Command = append([]string(nil), p.Build.Command...)
	out.Build.Args = append([]string(nil), p.Build.Args...)
	if p.Build.Env != nil {
		out.Build.Env = make(map[string]string, len(p.Build.Env))
		for k, v := range p.Build.Env {
			out.Build.Env[k] = v
		}
	}
	out.Publish.Endpoints = append([]Endpoint(nil), p.Publish.Endpoints...)
	return out
}

// Path resolves a project-relative path against BaseDir.
func (p Project) Path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) || p.BaseDir == "" {
		return rel
	}
	return filepath.Join(p.BaseDir, rel)
}

// TargetArchitectures returns the declared architectures in declaration order.
func (p Project) TargetArchitectures() []domain.TargetArchitecture {
	out := make([]domain.TargetArchitecture, 0, len(p.Architectures))
	fallback := p.Library.OutputPattern()
	for _, a := range p.Architectures {
		pattern := strings.TrimSpace(a.Output)
		if pattern == "" {
			pattern = fallback
		}
		out = append(out, domain.TargetArchitecture{
			Name:          strings.TrimSpace(a.Name),
			OutputPattern: pattern,
		})
	}
	return out
}

// Endpoints returns the declared publish endpoints.
func (p Project) Endpoints() []domain.RepositoryEndpoint {
	out := make([]domain.RepositoryEndpoint, 0, len(p.Publish.Endpoints))
	for _, e := range p.Publish.Endpoints {
		out = append(out, domain.RepositoryEndpoint{
			Name:        strings.TrimSpace(e.Name),
			Kind:        strings.ToLower(strings.TrimSpace(e.Kind)),
			URL:         strings.TrimSpace(e.URL),
			Auth:        domain.NormalizeAuthMode(e.Auth),
			UsernameKey: strings.TrimSpace(e.UsernameKey),
			SecretKey:   strings.TrimSpace(e.SecretKey),
			Bucket:      strings.TrimSpace(e.Bucket),
			Region:      strings.TrimSpace(e.Region),
			Prefix:      strings.Trim(strings.TrimSpace(e.Prefix), "/"),
		})
	}
	return out
}

// DescriptorFields maps the identity block onto descriptor input.
func (p Project) DescriptorFields() domain.DescriptorFields {
	id := p.Identity
	fields := domain.DescriptorFields{
		GroupID:     strings.TrimSpace(id.Group),
		ArtifactID:  strings.TrimSpace(id.Artifact),
		Version:     strings.TrimSpace(id.Version),
		Name:        strings.TrimSpace(id.Name),
		Description: strings.TrimSpace(id.Description),
		URL:         strings.TrimSpace(id.URL),
		Packaging:   strings.TrimSpace(id.Packaging),
		SCM: domain.SCM{
			URL:                 strings.TrimSpace(id.SCM.URL),
			Connection:          strings.TrimSpace(id.SCM.Connection),
			DeveloperConnection: strings.TrimSpace(id.SCM.DeveloperConnection),
		},
	}
	for _, l := range id.Licenses {
		fields.Licenses = append(fields.Licenses, domain.License{
			Name:         strings.TrimSpace(l.Name),
			URL:          strings.TrimSpace(l.URL),
			Distribution: strings.TrimSpace(l.Distribution),
		})
	}
	for _, d := range id.Developers {
		fields.Developers = append(fields.Developers, domain.Developer{
			ID:           strings.TrimSpace(d.ID),
			Name:         strings.TrimSpace(d.Name),
			Email:        strings.TrimSpace(d.Email),
			Organization: strings.TrimSpace(d.Organization),
		})
	}
	return fields
}

// Version is the single version value used for artifacts and the descriptor.
func (p Project) Version() string {
	return strings.TrimSpace(p.Identity.Version)
}
