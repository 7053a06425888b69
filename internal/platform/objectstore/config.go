package objectstore

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Config addresses one S3-compatible bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// ParseURL splits s3://host[:port]/bucket/prefix. http:// and https:// select the
// scheme explicitly; s3:// implies TLS.
func ParseURL(raw string) (Config, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Config{}, fmt.Errorf("objectstore: parse url: %w", err)
	}
	var cfg Config
	switch strings.ToLower(u.Scheme) {
	case "s3", "https":
		cfg.UseSSL = true
	case "http":
	default:
		return Config{}, fmt.Errorf("objectstore: unsupported scheme %q", u.Scheme)
	}
	cfg.Endpoint = u.Host
	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(parts) > 0 {
		cfg.Bucket = parts[0]
	}
	if len(parts) == 2 {
		cfg.Prefix = strings.Trim(parts[1], "/")
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("objectstore: endpoint is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("objectstore: bucket is required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return errors.New("objectstore: access key and secret key must be set together")
	}
	return nil
}

// Key joins the configured prefix with a relative object path.
func (c Config) Key(rel string) string {
	rel = strings.TrimLeft(rel, "/")
	if c.Prefix == "" {
		return rel
	}
	return c.Prefix + "/" + rel
}
