package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBuildFailure      = errors.New("build failure")
	ErrMissingArtifact   = errors.New("missing artifact")
	ErrMissingCredential = errors.New("missing credential")
	ErrPublishFailure    = errors.New("publish failure")
)

// BuildError reports a failed native build invocation. It is fatal to the run.
type BuildError struct {
	ExitCode int
	Output   string
	Err      error
}

func (e *BuildError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: exit status %d", ErrBuildFailure, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if tail := lastLines(e.Output, 5); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *BuildError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBuildFailure}
	}
	return []error{ErrBuildFailure, e.Err}
}

// MissingArtifactError reports an architecture with zero or several staged outputs.
type MissingArtifactError struct {
	Architecture string
	Matches      []string
}

func (e *MissingArtifactError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Matches) > 1 {
		return fmt.Sprintf("%s(%q): ambiguous outputs %s", ErrMissingArtifact, e.Architecture, strings.Join(e.Matches, ", "))
	}
	return fmt.Sprintf("%s(%q)", ErrMissingArtifact, e.Architecture)
}

func (e *MissingArtifactError) Unwrap() error { return ErrMissingArtifact }

// MissingCredentialError reports a credential key that no source could resolve at
// the time an authenticated publish was attempted.
type MissingCredentialError struct {
	Endpoint string
	Key      string
}

func (e *MissingCredentialError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: endpoint %s needs %q", ErrMissingCredential, e.Endpoint, e.Key)
}

func (e *MissingCredentialError) Unwrap() error { return ErrMissingCredential }

// PublishError reports a failed upload to one endpoint. It never cascades.
type PublishError struct {
	Endpoint string
	Err      error
}

func (e *PublishError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: endpoint %s", ErrPublishFailure, e.Endpoint)
	}
	return fmt.Sprintf("%s: endpoint %s: %v", ErrPublishFailure, e.Endpoint, e.Err)
}

func (e *PublishError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPublishFailure}
	}
	return []error{ErrPublishFailure, e.Err}
}

func lastLines(text string, n int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
