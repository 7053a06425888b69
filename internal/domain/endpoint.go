package domain

import (
	"errors"
	"fmt"
	"strings"
)

// AuthMode names how an endpoint authenticates uploads.
type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthBasic  AuthMode = "basic"
	AuthBearer AuthMode = "bearer"
	AuthS3     AuthMode = "s3"
)

// NormalizeAuthMode maps free-form values to canonical auth modes.
func NormalizeAuthMode(value string) AuthMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(AuthNone):
		return AuthNone
	case string(AuthBasic), "password":
		return AuthBasic
	case string(AuthBearer), "token":
		return AuthBearer
	case string(AuthS3), "static":
		return AuthS3
	default:
		return ""
	}
}

// Credential is a username/secret pair scoped to a named endpoint.
type Credential struct {
	Endpoint string
	Username string
	Secret   string
}

// RepositoryEndpoint is a named remote destination capable of receiving a release.
type RepositoryEndpoint struct {
	Name string
	Kind string
	URL  string
	Auth AuthMode

	// UsernameKey and SecretKey override the credential keys derived from Name.
	UsernameKey string
	SecretKey   string

	// Object-store endpoints.
	Bucket string
	Region string
	Prefix string
}

// RequiresCredential reports whether publishing needs a resolved credential.
func (e RepositoryEndpoint) RequiresCredential() bool {
	return e.Auth != "" && e.Auth != AuthNone
}

// RequiresUsername reports whether the credential must carry a username.
func (e RepositoryEndpoint) RequiresUsername() bool {
	return e.Auth == AuthBasic || e.Auth == AuthS3
}

func (e RepositoryEndpoint) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("endpoint name is required")
	}
	if strings.TrimSpace(e.Kind) == "" {
		return fmt.Errorf("endpoint %s: kind is required", e.Name)
	}
	if strings.TrimSpace(e.URL) == "" {
		return fmt.Errorf("endpoint %s: url is required", e.Name)
	}
	if e.Auth == "" {
		return fmt.Errorf("endpoint %s: unknown auth mode", e.Name)
	}
	return nil
}
