package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/animus-labs/nativepack/internal/domain"
)

// FileUploader copies the unit into a local Maven-layout directory.
type FileUploader struct {
	baseDir string
}

// NewFileUploader resolves relative endpoint URLs against baseDir.
func NewFileUploader(baseDir string) *FileUploader {
	return &FileUploader{baseDir: baseDir}
}

func (*FileUploader) Kind() string { return "file" }

func (u *FileUploader) Upload(ctx context.Context, ep domain.RepositoryEndpoint, _ *domain.Credential, unit Unit) error {
	root, err := u.root(ep.URL)
	if err != nil {
		return err
	}
	dir := filepath.Join(root, filepath.FromSlash(unit.VersionDir()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure %s: %w", dir, err)
	}
	for _, file := range unit.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(file.Path)
		if err != nil {
			return fmt.Errorf("read %s: %w", file.Name, err)
		}
		if err := writeImmutable(filepath.Join(dir, file.Name), data); err != nil {
			return err
		}
		sums, err := checksumFile(file.Path)
		if err != nil {
			return fmt.Errorf("checksum %s: %w", file.Name, err)
		}
		for _, sum := range sums.Extensions() {
			if err := writeImmutable(filepath.Join(dir, file.Name+sum[0]), []byte(sum[1])); err != nil {
				return err
			}
		}
	}
	return nil
}

func (u *FileUploader) root(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "file:") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", raw, err)
		}
		raw = parsed.Path
	}
	if raw == "" {
		return "", fmt.Errorf("empty repository path")
	}
	if !filepath.IsAbs(raw) && u.baseDir != "" {
		raw = filepath.Join(u.baseDir, raw)
	}
	return raw, nil
}

// writeImmutable refuses to replace an existing file with different content.
func writeImmutable(path string, data []byte) error {
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		if bytes.Equal(existing, data) {
			return nil
		}
		return fmt.Errorf("%s already published with different content", filepath.Base(path))
	case !os.IsNotExist(err):
		return fmt.Errorf("read %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
