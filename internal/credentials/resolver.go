package credentials

import (
	"fmt"
	"strings"

	"github.com/animus-labs/nativepack/internal/config"
	"github.com/animus-labs/nativepack/internal/domain"
)

// Resolver consults sources in order.
type Resolver struct {
	prefix  string
	sources []Source
}

func NewResolver(prefix string, sources ...Source) *Resolver {
	return &Resolver{prefix: prefix, sources: append([]Source(nil), sources...)}
}

// FromProject wires the override file named in the project, then the environment.
func FromProject(project config.Project, lookupEnv func(string) (string, bool)) (*Resolver, error) {
	file, err := LoadFile(project.Path(project.Credentials.File), project.Credentials.Prefix)
	if err != nil {
		return nil, err
	}
	return NewResolver(project.Credentials.Prefix, file, NewEnvSource(lookupEnv)), nil
}

// Lookup returns the first non-empty value and the name of the source it came from.
func (r *Resolver) Lookup(key string) (value, source string, ok bool) {
	if r == nil {
		return "", "", false
	}
	for _, src := range r.sources {
		if v, found := src.Lookup(key); found && strings.TrimSpace(v) != "" {
			return v, src.Name(), true
		}
	}
	return "", "", false
}

// Keys returns the username and secret keys for an endpoint.
func (r *Resolver) Keys(ep domain.RepositoryEndpoint) (username, secret string) {
	prefix := ""
	if r != nil {
		prefix = r.prefix
	}
	username = strings.TrimSpace(ep.UsernameKey)
	if username == "" {
		username = fmt.Sprintf("%s%s.username", prefix, ep.Name)
	}
	secret = strings.TrimSpace(ep.SecretKey)
	if secret == "" {
		secret = fmt.Sprintf("%s%s.password", prefix, ep.Name)
	}
	return username, secret
}

// ForEndpoint resolves the credential an endpoint needs. Endpoints without auth get
// nil and no error.
func (r *Resolver) ForEndpoint(ep domain.RepositoryEndpoint) (*domain.Credential, error) {
	if !ep.RequiresCredential() {
		return nil, nil
	}
	userKey, secretKey := r.Keys(ep)
	cred := &domain.Credential{Endpoint: ep.Name}
	if ep.RequiresUsername() {
		user, _, ok := r.Lookup(userKey)
		if !ok {
			return nil, &domain.MissingCredentialError{Endpoint: ep.Name, Key: userKey}
		}
		cred.Username = user
	}
	secret, _, ok := r.Lookup(secretKey)
	if !ok {
		return nil, &domain.MissingCredentialError{Endpoint: ep.Name, Key: secretKey}
	}
	cred.Secret = secret
	return cred, nil
}

// Resolution describes where one key resolved, for operator display.
type Resolution struct {
	Endpoint string
	Key      string
	Source   string
	Found    bool
	Masked   string
}

// Describe reports the resolution state of every key the endpoints need, without
// exposing values.
func (r *Resolver) Describe(endpoints []domain.RepositoryEndpoint) []Resolution {
	var out []Resolution
	for _, ep := range endpoints {
		if !ep.RequiresCredential() {
			continue
		}
		userKey, secretKey := r.Keys(ep)
		keys := []string{secretKey}
		if ep.RequiresUsername() {
			keys = []string{userKey, secretKey}
		}
		for _, key := range keys {
			v, src, ok := r.Lookup(key)
			res := Resolution{Endpoint: ep.Name, Key: key, Source: src, Found: ok}
			if ok {
				res.Masked = Mask(v)
			}
			out = append(out, res)
		}
	}
	return out
}

// Mask hides a secret, keeping at most two leading characters of longer values.
func Mask(value string) string {
	if len(value) <= 6 {
		return "******"
	}
	return value[:2] + "******"
}
