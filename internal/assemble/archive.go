package assemble

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/animus-labs/nativepack/internal/domain"
)

// DescriptorEntry is where the publication descriptor lives inside the archive.
const DescriptorEntry = "META-INF/nativepack/publication.json"

// archiveEpoch pins entry timestamps so identical inputs give identical archives.
var archiveEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// ArchiveName is the distributable file name for a descriptor.
func ArchiveName(descriptor domain.PublicationDescriptor) string {
	return descriptor.BaseName() + "." + descriptor.Packaging()
}

// Pack writes the distributable archive next to the payload and records its path on
// the returned package. Entries are sorted and timestamps fixed.
func (a *Assembler) Pack(pkg domain.Package, descriptor domain.PublicationDescriptor, descriptorJSON []byte) (domain.Package, error) {
	if err := domain.CheckVersionConsistency(descriptor, pkg.Artifacts); err != nil {
		return pkg, fmt.Errorf("pack: %w", err)
	}
	for _, target := range a.project.TargetArchitectures() {
		if _, ok := pkg.Artifact(target.Name); !ok {
			return pkg, &domain.MissingArtifactError{Architecture: target.Name}
		}
	}
	dir := a.project.Path(a.project.Package.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkg, fmt.Errorf("pack: ensure package dir: %w", err)
	}
	path := filepath.Join(dir, ArchiveName(descriptor))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return pkg, fmt.Errorf("pack: create archive: %w", err)
	}
	if err := writeArchive(f, pkg, descriptorJSON); err != nil {
		_ = f.Close()
		return pkg, fmt.Errorf("pack: %w", err)
	}
	if err := f.Close(); err != nil {
		return pkg, fmt.Errorf("pack: close archive: %w", err)
	}
	pkg.ArchivePath = path
	a.logger.Info("package archived", "path", path, "artifacts", len(pkg.Artifacts))
	return pkg, nil
}

func writeArchive(w io.Writer, pkg domain.Package, descriptorJSON []byte) error {
	artifacts := append([]domain.Artifact(nil), pkg.Artifacts...)
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].PackagePath < artifacts[j].PackagePath })

	zw := zip.NewWriter(w)
	for _, artifact := range artifacts {
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     artifact.PackagePath,
			Method:   zip.Deflate,
			Modified: archiveEpoch,
		})
		if err != nil {
			return fmt.Errorf("add %s: %w", artifact.PackagePath, err)
		}
		src, err := os.Open(filepath.Join(pkg.Root, filepath.FromSlash(artifact.PackagePath)))
		if err != nil {
			return fmt.Errorf("open %s: %w", artifact.PackagePath, err)
		}
		_, err = io.Copy(entry, src)
		_ = src.Close()
		if err != nil {
			return fmt.Errorf("write %s: %w", artifact.PackagePath, err)
		}
	}
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     DescriptorEntry,
		Method:   zip.Deflate,
		Modified: archiveEpoch,
	})
	if err != nil {
		return fmt.Errorf("add descriptor: %w", err)
	}
	if _, err := entry.Write(descriptorJSON); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	return zw.Close()
}
