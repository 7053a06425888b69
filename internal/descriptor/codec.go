package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/animus-labs/nativepack/internal/domain"
)

// Marshal serializes a descriptor with stable field names and order.
func Marshal(d domain.PublicationDescriptor) ([]byte, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("descriptor: empty descriptor")
	}
	f := d.Fields()
	payload := descriptorPayload{
		Schema:      SchemaVersion,
		GroupID:     f.GroupID,
		ArtifactID:  f.ArtifactID,
		Version:     f.Version,
		Packaging:   f.Packaging,
		Name:        f.Name,
		Description: f.Description,
		URL:         f.URL,
		Licenses:    make([]licensePayload, 0, len(f.Licenses)),
		SCM: scmPayload{
			URL:                 f.SCM.URL,
			Connection:          f.SCM.Connection,
			DeveloperConnection: f.SCM.DeveloperConnection,
		},
		Developers: make([]developerPayload, 0, len(f.Developers)),
	}
	for _, l := range f.Licenses {
		payload.Licenses = append(payload.Licenses, licensePayload{Name: l.Name, URL: l.URL, Distribution: l.Distribution})
	}
	for _, dev := range f.Developers {
		payload.Developers = append(payload.Developers, developerPayload{
			ID:           dev.ID,
			Name:         dev.Name,
			Email:        dev.Email,
			Organization: dev.Organization,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("descriptor: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses descriptor JSON back into a domain descriptor.
func Unmarshal(raw []byte) (domain.PublicationDescriptor, error) {
	var payload descriptorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.PublicationDescriptor{}, fmt.Errorf("descriptor: decode: %w", err)
	}
	if payload.Schema != SchemaVersion {
		return domain.PublicationDescriptor{}, fmt.Errorf("descriptor: unsupported schema %d", payload.Schema)
	}
	fields := domain.DescriptorFields{
		GroupID:     payload.GroupID,
		ArtifactID:  payload.ArtifactID,
		Version:     payload.Version,
		Packaging:   payload.Packaging,
		Name:        payload.Name,
		Description: payload.Description,
		URL:         payload.URL,
		SCM: domain.SCM{
			URL:                 payload.SCM.URL,
			Connection:          payload.SCM.Connection,
			DeveloperConnection: payload.SCM.DeveloperConnection,
		},
	}
	for _, l := range payload.Licenses {
		fields.Licenses = append(fields.Licenses, domain.License{Name: l.Name, URL: l.URL, Distribution: l.Distribution})
	}
	for _, dev := range payload.Developers {
		fields.Developers = append(fields.Developers, domain.Developer{
			ID:           dev.ID,
			Name:         dev.Name,
			Email:        dev.Email,
			Organization: dev.Organization,
		})
	}
	return domain.NewPublicationDescriptor(fields)
}

type descriptorPayload struct {
	Schema      int                `json:"schema"`
	GroupID     string             `json:"groupId"`
	ArtifactID  string             `json:"artifactId"`
	Version     string             `json:"version"`
	Packaging   string             `json:"packaging"`
	Name        string             `json:"name,omitempty"`
	Description string             `json:"description,omitempty"`
	URL         string             `json:"url,omitempty"`
	Licenses    []licensePayload   `json:"licenses"`
	SCM         scmPayload         `json:"scm"`
	Developers  []developerPayload `json:"developers"`
}

type licensePayload struct {
	Name         string `json:"name"`
	URL          string `json:"url,omitempty"`
	Distribution string `json:"distribution,omitempty"`
}

type scmPayload struct {
	URL                 string `json:"url,omitempty"`
	Connection          string `json:"connection,omitempty"`
	DeveloperConnection string `json:"developerConnection,omitempty"`
}

type developerPayload struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Organization string `json:"organization,omitempty"`
}
