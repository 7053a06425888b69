package descriptor

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/animus-labs/nativepack/internal/domain"
)

// RenderPOM renders a Maven 4.0.0 POM for repository endpoints.
func RenderPOM(d domain.PublicationDescriptor) ([]byte, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("descriptor: empty descriptor")
	}
	f := d.Fields()
	doc := pomProject{
		Xmlns:          "http://maven.apache.org/POM/4.0.0",
		XmlnsXSI:       "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: "http://maven.apache.org/POM/4.0.0 https://maven.apache.org/xsd/maven-4.0.0.xsd",
		ModelVersion:   "4.0.0",
		GroupID:        f.GroupID,
		ArtifactID:     f.ArtifactID,
		Version:        f.Version,
		Packaging:      f.Packaging,
		Name:           f.Name,
		Description:    f.Description,
		URL:            f.URL,
	}
	for _, l := range f.Licenses {
		doc.Licenses = append(doc.Licenses, pomLicense{Name: l.Name, URL: l.URL, Distribution: l.Distribution})
	}
	for _, dev := range f.Developers {
		doc.Developers = append(doc.Developers, pomDeveloper{
			ID:           dev.ID,
			Name:         dev.Name,
			Email:        dev.Email,
			Organization: dev.Organization,
		})
	}
	if f.SCM != (domain.SCM{}) {
		doc.SCM = &pomSCM{
			URL:                 f.SCM.URL,
			Connection:          f.SCM.Connection,
			DeveloperConnection: f.SCM.DeveloperConnection,
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("descriptor: encode pom: %w", err)
	}
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

type pomProject struct {
	XMLName        xml.Name       `xml:"project"`
	Xmlns          string         `xml:"xmlns,attr"`
	XmlnsXSI       string         `xml:"xmlns:xsi,attr"`
	SchemaLocation string         `xml:"xsi:schemaLocation,attr"`
	ModelVersion   string         `xml:"modelVersion"`
	GroupID        string         `xml:"groupId"`
	ArtifactID     string         `xml:"artifactId"`
	Version        string         `xml:"version"`
	Packaging      string         `xml:"packaging,omitempty"`
	Name           string         `xml:"name,omitempty"`
	Description    string         `xml:"description,omitempty"`
	URL            string         `xml:"url,omitempty"`
	Licenses       []pomLicense   `xml:"licenses>license,omitempty"`
	Developers     []pomDeveloper `xml:"developers>developer,omitempty"`
	SCM            *pomSCM        `xml:"scm,omitempty"`
}

type pomLicense struct {
	Name         string `xml:"name"`
	URL          string `xml:"url,omitempty"`
	Distribution string `xml:"distribution,omitempty"`
}

type pomDeveloper struct {
	ID           string `xml:"id,omitempty"`
	Name         string `xml:"name,omitempty"`
	Email        string `xml:"email,omitempty"`
	Organization string `xml:"organization,omitempty"`
}

type pomSCM struct {
	URL                 string `xml:"url,omitempty"`
	Connection          string `xml:"connection,omitempty"`
	DeveloperConnection string `xml:"developerConnection,omitempty"`
}
