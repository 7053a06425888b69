// Package credentials resolves named secrets for authenticated endpoints.
//
// Sources are consulted in order and the first hit wins: the git-ignored override
// file first, then the process environment. Nothing here fails because a secret is
// absent; that only becomes an error when a publish actually needs the value.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-ini/ini"
)

// Source is one place a credential value may come from.
type Source interface {
	Name() string
	Lookup(key string) (string, bool)
}

// FileSource holds prefixed keys read from a key=value override file.
type FileSource struct {
	path   string
	values map[string]string
}

// LoadFile reads a properties-style override file and keeps only keys that start
// with prefix. A missing file yields an empty source.
func LoadFile(path, prefix string) (*FileSource, error) {
	src := &FileSource{path: path, values: map[string]string{}}
	if strings.TrimSpace(path) == "" {
		return src, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return src, nil
		}
		return nil, fmt.Errorf("credentials: stat %s: %w", path, err)
	}
	// Properties files carry unrelated build settings; only prefixed key=value lines
	// matter. Secrets may contain '#' or ';' and keep their quotes.
	file, err := ini.LoadSources(ini.LoadOptions{
		SkipUnrecognizableLines: true,
		PreserveSurroundedQuote: true,
		IgnoreInlineComment:     true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("credentials: parse %s: %w", path, err)
	}
	// A [name] line has no meaning in a properties file, so keys keep their own names
	// whichever section the parser put them in.
	for _, section := range file.Sections() {
		for _, key := range section.Keys() {
			name := key.Name()
			if prefix != "" && !strings.HasPrefix(name, prefix) {
				continue
			}
			if strings.TrimSpace(key.Value()) == "" {
				continue
			}
			src.values[name] = key.Value()
		}
	}
	return src, nil
}

func (s *FileSource) Name() string {
	if s.path == "" {
		return "file"
	}
	return "file:" + s.path
}

func (s *FileSource) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys lists the retained keys, unordered.
func (s *FileSource) Keys() []string {
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	return out
}

// EnvSource reads credentials from environment variables named after the key.
type EnvSource struct {
	lookup func(string) (string, bool)
}

// NewEnvSource uses lookup, or os.LookupEnv when nil.
func NewEnvSource(lookup func(string) (string, bool)) EnvSource {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return EnvSource{lookup: lookup}
}

func (EnvSource) Name() string { return "env" }

func (s EnvSource) Lookup(key string) (string, bool) {
	lookup := s.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(EnvKey(key))
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// EnvKey maps a credential key to its environment variable name:
// publish.sonatype.username becomes PUBLISH_SONATYPE_USERNAME.
func EnvKey(key string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(strings.TrimSpace(key)))
}

// MapSource is an in-memory source.
type MapSource map[string]string

func (MapSource) Name() string { return "map" }

func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
