// Package descriptor builds the immutable publication descriptor and its encodings.
//
// Everything here is a pure function of the project configuration: no clocks, no
// environment, no I/O. Building twice from the same configuration yields
// byte-identical output.
package descriptor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/animus-labs/nativepack/internal/config"
	"github.com/animus-labs/nativepack/internal/domain"
)

// SchemaVersion identifies the descriptor JSON layout.
const SchemaVersion = 1

// Build derives the descriptor from project configuration. The version comes from
// the same configuration value the assembler labels artifacts with.
func Build(project config.Project) (domain.PublicationDescriptor, error) {
	d, err := domain.NewPublicationDescriptor(project.DescriptorFields())
	if err != nil {
		return domain.PublicationDescriptor{}, fmt.Errorf("descriptor: %w", err)
	}
	return d, nil
}

// Fingerprint is the sha256 of canonical descriptor bytes.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
