package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/animus-labs/nativepack/internal/domain"
	"github.com/animus-labs/nativepack/internal/platform/objectstore"
)

// StoreFactory opens an object store for an endpoint configuration.
type StoreFactory func(cfg objectstore.Config) (objectstore.Store, error)

// S3Uploader writes the unit into an S3-compatible bucket.
type S3Uploader struct {
	open StoreFactory
}

// NewS3Uploader uses MinIO-backed stores unless open is set.
func NewS3Uploader(open StoreFactory) *S3Uploader {
	if open == nil {
		open = func(cfg objectstore.Config) (objectstore.Store, error) {
			return objectstore.NewMinioStore(cfg)
		}
	}
	return &S3Uploader{open: open}
}

func (*S3Uploader) Kind() string { return "s3" }

// StoreConfig derives the store configuration from the endpoint URL, explicit
// bucket/region/prefix fields, and the resolved credential.
func StoreConfig(ep domain.RepositoryEndpoint, cred *domain.Credential) (objectstore.Config, error) {
	cfg, err := objectstore.ParseURL(ep.URL)
	if err != nil {
		return objectstore.Config{}, err
	}
	if ep.Bucket != "" {
		cfg.Bucket = ep.Bucket
	}
	if ep.Prefix != "" {
		cfg.Prefix = ep.Prefix
	}
	cfg.Region = ep.Region
	if cred != nil {
		cfg.AccessKey = cred.Username
		cfg.SecretKey = cred.Secret
	}
	return cfg, cfg.Validate()
}

func (u *S3Uploader) Upload(ctx context.Context, ep domain.RepositoryEndpoint, cred *domain.Credential, unit Unit) error {
	cfg, err := StoreConfig(ep, cred)
	if err != nil {
		return err
	}
	store, err := u.open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := store.CheckBucket(ctx, cfg.Bucket); err != nil {
		return err
	}
	for _, file := range unit.Files {
		key := cfg.Key(unit.RemotePath(file.Name))
		sums, err := checksumFile(file.Path)
		if err != nil {
			return fmt.Errorf("checksum %s: %w", file.Name, err)
		}
		existing, err := store.Stat(ctx, cfg.Bucket, key)
		switch {
		case err == nil:
			if sameContent(existing, sums) {
				continue
			}
			return fmt.Errorf("%s already published with different content", key)
		case !errors.Is(err, objectstore.ErrNotFound):
			return fmt.Errorf("stat %s: %w", key, err)
		}
		if err := putLocal(ctx, store, cfg.Bucket, key, file, sums); err != nil {
			return err
		}
	}
	return nil
}

// metaSHA256 is the user-metadata key holding the object's sha256.
const metaSHA256 = "sha256"

// sameContent compares by the recorded sha256, falling back to a single-part ETag
// for objects written without it.
func sameContent(existing objectstore.ObjectInfo, sums Checksums) bool {
	if v := existing.Metadata[metaSHA256]; v != "" {
		return strings.EqualFold(v, sums.SHA256)
	}
	return strings.EqualFold(strings.Trim(existing.ETag, `"`), sums.MD5)
}

func putLocal(ctx context.Context, store objectstore.Store, bucket, key string, file File, sums Checksums) error {
	f, err := os.Open(file.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", file.Name, err)
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := objectstore.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{metaSHA256: sums.SHA256},
	}
	if err := store.Put(ctx, bucket, key, f, info.Size(), opts); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
