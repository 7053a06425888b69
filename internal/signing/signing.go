// Package signing produces detached signatures for published files. It is disabled
// unless the project turns it on.
package signing

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/packet"

	"github.com/animus-labs/nativepack/internal/config"
	"github.com/animus-labs/nativepack/internal/domain"
	"github.com/animus-labs/nativepack/internal/publish"
)

// SignatureSuffix is appended to the signed file name.
const SignatureSuffix = ".asc"

// Signer writes a detached signature for path and returns the signature path.
type Signer interface {
	Enabled() bool
	Sign(path string) (string, error)
}

// Noop signs nothing.
type Noop struct{}

func (Noop) Enabled() bool { return false }
func (Noop) Sign(string) (string, error) { return "", nil }

// Lookup resolves a named secret.
type Lookup interface {
	Lookup(key string) (value, source string, ok bool)
}

// FromProject returns Noop when signing is disabled, otherwise an OpenPGP signer
// whose key and passphrase come from secrets.
func FromProject(project config.Project, secrets Lookup) (Signer, error) {
	if !project.Signing.Enabled {
		return Noop{}, nil
	}
	key, _, ok := secrets.Lookup(project.Signing.KeyKey)
	if !ok {
		return nil, &domain.MissingCredentialError{Endpoint: "signing", Key: project.Signing.KeyKey}
	}
	pass, _, _ := secrets.Lookup(project.Signing.PassphraseKey)
	if !strings.Contains(key, "-----BEGIN") {
		data, err := os.ReadFile(project.Path(strings.TrimSpace(key)))
		if err != nil {
			return nil, fmt.Errorf("signing: read key: %w", err)
		}
		key = string(data)
	}
	return NewOpenPGP(key, pass)
}

// OpenPGP writes ASCII-armored detached signatures.
type OpenPGP struct {
	entity *openpgp.Entity
	config *packet.Config
}

func NewOpenPGP(armoredKey, passphrase string) (*OpenPGP, error) {
	ring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredKey))
	if err != nil {
		return nil, fmt.Errorf("signing: read key ring: %w", err)
	}
	var entity *openpgp.Entity
	for _, e := range ring {
		if e.PrivateKey != nil {
			entity = e
			break
		}
	}
	if entity == nil {
		return nil, errors.New("signing: key ring has no private key")
	}
	if entity.PrivateKey.Encrypted {
		if err := entity.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
			return nil, fmt.Errorf("signing: decrypt key: %w", err)
		}
	}
	for _, sub := range entity.Subkeys {
		if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
			if err := sub.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
				return nil, fmt.Errorf("signing: decrypt subkey: %w", err)
			}
		}
	}
	return &OpenPGP{entity: entity}, nil
}

func (*OpenPGP) Enabled() bool { return true }

func (s *OpenPGP) Sign(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("signing: open %s: %w", path, err)
	}
	defer in.Close()
	sigPath := path + SignatureSuffix
	out, err := os.Create(sigPath)
	if err != nil {
		return "", fmt.Errorf("signing: create %s: %w", sigPath, err)
	}
	if err := openpgp.ArmoredDetachSign(out, s.entity, in, s.config); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("signing: sign %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("signing: close %s: %w", sigPath, err)
	}
	return sigPath, nil
}

// SignUnit appends a signature file for every file in unit.
func SignUnit(signer Signer, unit publish.Unit) (publish.Unit, error) {
	if signer == nil || !signer.Enabled() {
		return unit, nil
	}
	signed := publish.Unit{Descriptor: unit.Descriptor, Files: append([]publish.File(nil), unit.Files...)}
	for _, f := range unit.Files {
		sig, err := signer.Sign(f.Path)
		if err != nil {
			return unit, err
		}
		signed.Files = append(signed.Files, publish.File{
			Name:        f.Name + SignatureSuffix,
			Path:        sig,
			ContentType: "application/pgp-signature",
		})
	}
	return signed, nil
}
