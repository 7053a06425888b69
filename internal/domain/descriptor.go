package domain

import (
	"errors"
	"strings"
)

// License references the licensing terms a release is published under.
type License struct {
	Name         string
	URL          string
	Distribution string
}

// SCM holds source-control locations for provenance.
type SCM struct {
	URL                 string
	Connection          string
	DeveloperConnection string
}

// Developer identifies a developer or maintainer.
type Developer struct {
	ID           string
	Name         string
	Email        string
	Organization string
}

// DescriptorFields is the input used to construct a PublicationDescriptor.
type DescriptorFields struct {
	GroupID     string
	ArtifactID  string
	Version     string
	Name        string
	Description string
	URL         string
	Packaging   string
	Licenses    []License
	SCM         SCM
	Developers  []Developer
}

// PublicationDescriptor is immutable release metadata. It is created once per run
// and exposes copies only.
type PublicationDescriptor struct {
	fields DescriptorFields
}

// NewPublicationDescriptor validates fields and freezes them into a descriptor.
func NewPublicationDescriptor(fields DescriptorFields) (PublicationDescriptor, error) {
	if strings.TrimSpace(fields.GroupID) == "" {
		return PublicationDescriptor{}, errors.New("group id is required")
	}
	if strings.TrimSpace(fields.ArtifactID) == "" {
		return PublicationDescriptor{}, errors.New("artifact id is required")
	}
	if strings.TrimSpace(fields.Version) == "" {
		return PublicationDescriptor{}, errors.New("version is required")
	}
	return PublicationDescriptor{fields: cloneFields(fields)}, nil
}

func (d PublicationDescriptor) GroupID() string     { return d.fields.GroupID }
func (d PublicationDescriptor) ArtifactID() string  { return d.fields.ArtifactID }
func (d PublicationDescriptor) Version() string     { return d.fields.Version }
func (d PublicationDescriptor) Name() string        { return d.fields.Name }
func (d PublicationDescriptor) Description() string { return d.fields.Description }
func (d PublicationDescriptor) URL() string         { return d.fields.URL }
func (d PublicationDescriptor) Packaging() string   { return d.fields.Packaging }
func (d PublicationDescriptor) SCM() SCM            { return d.fields.SCM }

func (d PublicationDescriptor) Licenses() []License {
	return append([]License(nil), d.fields.Licenses...)
}

func (d PublicationDescriptor) Developers() []Developer {
	return append([]Developer(nil), d.fields.Developers...)
}

// Fields returns a copy of the descriptor contents.
func (d PublicationDescriptor) Fields() DescriptorFields {
	return cloneFields(d.fields)
}

// IsZero reports whether the descriptor was never constructed.
func (d PublicationDescriptor) IsZero() bool {
	return d.fields.GroupID == "" && d.fields.ArtifactID == "" && d.fields.Version == ""
}

// Coordinates returns group:artifact:version.
func (d PublicationDescriptor) Coordinates() string {
	return d.fields.GroupID + ":" + d.fields.ArtifactID + ":" + d.fields.Version
}

// BaseName is the file stem used for every published file of this release.
func (d PublicationDescriptor) BaseName() string {
	return d.fields.ArtifactID + "-" + d.fields.Version
}

func cloneFields(in DescriptorFields) DescriptorFields {
	out := in
	out.Licenses = append([]License(nil), in.Licenses...)
	out.Developers = append([]Developer(nil), in.Developers...)
	return out
}
