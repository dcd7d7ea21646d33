// Package pkcs12store keeps imported PKCS#12 identities in a local vault
// directory and exposes the vault as a certificate plugin.
package pkcs12store

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
)

// Identity is a certificate held in the vault.
type Identity struct {
	ID             string
	FriendlyName   string
	Cert           *x509.Certificate
	Chain          []*x509.Certificate
	Fingerprint256 [32]byte
	// HasKey is set when the vault holds a private key for the certificate
	// that decrypts with the vault password.
	HasKey bool
}

type Store interface {
	List(ctx context.Context) ([]Identity, error)
	Import(ctx context.Context, name string, r io.Reader, password []byte) (*Identity, error)
	ImportCertificate(ctx context.Context, name string, data []byte) (*Identity, error)
	Delete(ctx context.Context, id string) error
	Exists(fingerprint [32]byte) bool
}

var ErrNotFound = errors.New("identity not found")
