// Package assemble collects per-architecture build outputs into the package payload
// and writes the distributable archive.
package assemble

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/animus-labs/nativepack/internal/config"
	"github.com/animus-labs/nativepack/internal/domain"
)

// Assembler places exactly one staged output per architecture into the payload.
type Assembler struct {
	project config.Project
	logger  *slog.Logger
}

func New(project config.Project, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{project: project.Clone(), logger: logger}
}

// PayloadDir is where binaries are laid out before archiving.
func (a *Assembler) PayloadDir() string {
	return filepath.Join(a.project.Path(a.project.Package.Dir), "payload")
}

// Assemble scans stagingDir and copies each architecture's output to
// <payloadPrefix>/<arch>/<file> in a freshly recreated payload directory. It fails
// with MissingArtifact for the first architecture, in declaration order, that has no
// match or more than one.
func (a *Assembler) Assemble(targets []domain.TargetArchitecture, stagingDir string) (domain.Package, error) {
	sources := make(map[string]string, len(targets))
	for _, target := range targets {
		matches, err := a.matches(stagingDir, target)
		if err != nil {
			return domain.Package{}, err
		}
		if len(matches) != 1 {
			return domain.Package{}, &domain.MissingArtifactError{Architecture: target.Name, Matches: matches}
		}
		sources[target.Name] = matches[0]
	}

	root := a.PayloadDir()
	if err := os.RemoveAll(root); err != nil {
		return domain.Package{}, fmt.Errorf("assemble: reset payload: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return domain.Package{}, fmt.Errorf("assemble: create payload: %w", err)
	}

	version := a.project.Version()
	pkg := domain.Package{Root: root, Version: version}
	for _, target := range targets {
		src := sources[target.Name]
		rel := filepath.ToSlash(filepath.Join(a.project.Package.PayloadPrefix, target.Name, filepath.Base(src)))
		sum, size, err := copyFile(src, filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return domain.Package{}, fmt.Errorf("assemble: %s: %w", target.Name, err)
		}
		pkg.Artifacts = append(pkg.Artifacts, domain.Artifact{
			Architecture: target.Name,
			SourcePath:   src,
			PackagePath:  rel,
			Version:      version,
			SHA256:       sum,
			SizeBytes:    size,
		})
		a.logger.Info("artifact assembled", "arch", target.Name, "path", rel, "size", size)
	}
	return pkg, nil
}

func (a *Assembler) matches(stagingDir string, target domain.TargetArchitecture) ([]string, error) {
	pattern := filepath.Join(stagingDir, filepath.FromSlash(target.Pattern()))
	found, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("assemble: %s: bad output pattern %q: %w", target.Name, target.Pattern(), err)
	}
	var files []string
	for _, path := range found {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

func copyFile(src, dst string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", 0, err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, err
	}
	hash := sha256.New()
	size, copyErr := io.Copy(io.MultiWriter(out, hash), in)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}
