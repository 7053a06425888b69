package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/animus-labs/nativepack/internal/domain"
)

// MavenUploader PUTs files into a Maven-layout HTTP repository.
type MavenUploader struct {
	client *http.Client
}

func NewMavenUploader(client *http.Client) *MavenUploader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &MavenUploader{client: client}
}

func (*MavenUploader) Kind() string { return "maven" }

func (u *MavenUploader) Upload(ctx context.Context, ep domain.RepositoryEndpoint, cred *domain.Credential, unit Unit) error {
	client := u.client
	if ep.Auth == domain.AuthBearer {
		if cred == nil {
			return fmt.Errorf("bearer auth without credential")
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, u.client)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.Secret, TokenType: "Bearer"}))
	}
	base := strings.TrimRight(ep.URL, "/")
	for _, file := range unit.Files {
		sums, err := checksumFile(file.Path)
		if err != nil {
			return fmt.Errorf("checksum %s: %w", file.Name, err)
		}
		target := base + "/" + unit.RemotePath(file.Name)
		if err := u.putFile(ctx, client, ep, cred, target, file); err != nil {
			return err
		}
		for _, sum := range sums.Extensions() {
			body := []byte(sum[1])
			if err := u.put(ctx, client, ep, cred, target+sum[0], bytes.NewReader(body), int64(len(body)), "text/plain"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (u *MavenUploader) putFile(ctx context.Context, client *http.Client, ep domain.RepositoryEndpoint, cred *domain.Credential, target string, file File) error {
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
	return u.put(ctx, client, ep, cred, target, f, info.Size(), contentType)
}

func (u *MavenUploader) put(ctx context.Context, client *http.Client, ep domain.RepositoryEndpoint, cred *domain.Credential, target string, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)
	if ep.Auth == domain.AuthBasic && cred != nil {
		req.SetBasicAuth(cred.Username, cred.Secret)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("put %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("put %s: status %d: %s", target, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
