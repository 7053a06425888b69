package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ArchPlaceholder is replaced by the architecture name inside output patterns.
const ArchPlaceholder = "{arch}"

// DefaultOutputPattern locates a per-architecture output under the staging directory.
const DefaultOutputPattern = ArchPlaceholder + "/*.so"

// TargetArchitecture is one build target (instruction set / ABI) the native library
// is compiled for.
type TargetArchitecture struct {
	Name          string
	OutputPattern string
}

// Pattern returns the staging-relative glob with the architecture name expanded.
func (t TargetArchitecture) Pattern() string {
	pattern := strings.TrimSpace(t.OutputPattern)
	if pattern == "" {
		pattern = DefaultOutputPattern
	}
	return strings.ReplaceAll(pattern, ArchPlaceholder, t.Name)
}

func (t TargetArchitecture) Validate() error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return errors.New("architecture name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("architecture name %q must be a single path segment", name)
	}
	return nil
}

// Artifact is one compiled binary for one TargetArchitecture, placed in the package.
type Artifact struct {
	Architecture string
	SourcePath   string
	PackagePath  string
	Version      string
	SHA256       string
	SizeBytes    int64
}

// Package is the assembled payload for a single run.
type Package struct {
	Root        string
	Version     string
	Artifacts   []Artifact
	ArchivePath string
}

// Artifact returns the artifact assembled for arch.
func (p Package) Artifact(arch string) (Artifact, bool) {
	for _, a := range p.Artifacts {
		if a.Architecture == arch {
			return a, true
		}
	}
	return Artifact{}, false
}

// CheckVersionConsistency enforces that every artifact carries the descriptor version.
func CheckVersionConsistency(descriptor PublicationDescriptor, artifacts []Artifact) error {
	version := descriptor.Version()
	if strings.TrimSpace(version) == "" {
		return errors.New("descriptor version is required")
	}
	for _, a := range artifacts {
		if a.Version != version {
			return fmt.Errorf("artifact %s labelled %q, descriptor version is %q", a.Architecture, a.Version, version)
		}
	}
	return nil
}
