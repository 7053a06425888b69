// Package publish uploads a release to independent repository endpoints.
package publish

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/animus-labs/nativepack/internal/domain"
)

// File is one local file published under Name in the version directory.
type File struct {
	Name        string
	Path        string
	ContentType string
}

// Unit is everything published for one version. It is uploaded as one logical unit
// per endpoint and is never mutated after construction.
type Unit struct {
	Descriptor domain.PublicationDescriptor
	Files      []File
}

// VersionDir is the Maven-style directory for the unit:
// group/as/path/artifact/version.
func (u Unit) VersionDir() string {
	group := strings.ReplaceAll(u.Descriptor.GroupID(), ".", "/")
	return path.Join(group, u.Descriptor.ArtifactID(), u.Descriptor.Version())
}

// RemotePath places a file name inside VersionDir.
func (u Unit) RemotePath(name string) string {
	return path.Join(u.VersionDir(), name)
}

func (u Unit) Validate() error {
	if u.Descriptor.IsZero() {
		return fmt.Errorf("publish: unit has no descriptor")
	}
	if len(u.Files) == 0 {
		return fmt.Errorf("publish: unit has no files")
	}
	return nil
}

// NewUnit writes the POM and descriptor JSON beside the archive and returns the unit
// describing all three.
func NewUnit(descriptor domain.PublicationDescriptor, archivePath string, descriptorJSON, pom []byte) (Unit, error) {
	if strings.TrimSpace(archivePath) == "" {
		return Unit{}, fmt.Errorf("publish: archive path is required")
	}
	dir := filepath.Dir(archivePath)
	base := descriptor.BaseName()
	pomPath := filepath.Join(dir, base+".pom")
	if err := os.WriteFile(pomPath, pom, 0o644); err != nil {
		return Unit{}, fmt.Errorf("publish: write pom: %w", err)
	}
	jsonPath := filepath.Join(dir, base+".json")
	if err := os.WriteFile(jsonPath, descriptorJSON, 0o644); err != nil {
		return Unit{}, fmt.Errorf("publish: write descriptor: %w", err)
	}
	return Unit{
		Descriptor: descriptor,
		Files: []File{
			{Name: filepath.Base(archivePath), Path: archivePath, ContentType: "application/zip"},
			{Name: base + ".pom", Path: pomPath, ContentType: "application/xml"},
			{Name: base + ".json", Path: jsonPath, ContentType: "application/json"},
		},
	}, nil
}

// Checksums are the digests published beside every file.
type Checksums struct {
	MD5    string
	SHA1   string
	SHA256 string
}

// Extensions maps checksum file suffixes to values.
func (c Checksums) Extensions() [][2]string {
	return [][2]string{{".md5", c.MD5}, {".sha1", c.SHA1}, {".sha256", c.SHA256}}
}

func checksumFile(p string) (Checksums, error) {
	f, err := os.Open(p)
	if err != nil {
		return Checksums{}, err
	}
	defer f.Close()
	m, s1, s256 := md5.New(), sha1.New(), sha256.New()
	if _, err := io.Copy(io.MultiWriter(m, s1, s256), f); err != nil {
		return Checksums{}, err
	}
	return Checksums{
		MD5:    hex.EncodeToString(m.Sum(nil)),
		SHA1:   hex.EncodeToString(s1.Sum(nil)),
		SHA256: hex.EncodeToString(s256.Sum(nil)),
	}, nil
}
