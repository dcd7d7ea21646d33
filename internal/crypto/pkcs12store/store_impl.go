package pkcs12store

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

var _ Store = (*FileStore)(nil)

// FileStore is a Store backed by a directory of JSON metadata files and
// sealed private keys.
type FileStore struct {
	mu      sync.Mutex
	dir     string
	vaultPW []byte
}

type IdentityMeta struct {
	ID             string   `json:"id"`
	FriendlyName   string   `json:"friendlyName"`
	CertPEM        string   `json:"certPem"`
	ChainPEM       []string `json:"chainPem"`
	FingerprintHex string   `json:"fingerprintHex"`
}

func NewFileStore(dir string, vaultPW []byte) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	return &FileStore{
		dir:     dir,
		vaultPW: vaultPW,
	}, nil
}

// Dir returns the vault directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) metaPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) keyPath(id string) string {
	return filepath.Join(s.dir, id+".key.enc")
}

func (s *FileStore) List(ctx context.Context) ([]Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(ctx)
}

func (s *FileStore) list(ctx context.Context) ([]Identity, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store dir: %w", err)
	}

	var identities []Identity
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		meta, err := s.readMeta(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}

		certBlock, _ := pem.Decode([]byte(meta.CertPEM))
		if certBlock == nil {
			continue
		}
		cert, err := x509.ParseCertificate(certBlock.Bytes)
		if err != nil {
			continue
		}

		var chain []*x509.Certificate
		for _, pemStr := range meta.ChainPEM {
			block, _ := pem.Decode([]byte(pemStr))
			if block != nil {
				c, _ := x509.ParseCertificate(block.Bytes)
				if c != nil {
					chain = append(chain, c)
				}
			}
		}

		identities = append(identities, Identity{
			ID:             meta.ID,
			FriendlyName:   meta.FriendlyName,
			Cert:           cert,
			Chain:          chain,
			Fingerprint256: Fingerprint(cert),
			HasKey:         s.hasUsableKey(meta.ID),
		})
	}
	return identities, nil
}

func (s *FileStore) readMeta(path string) (IdentityMeta, error) {
	var meta IdentityMeta
	metaBytes, err := os.ReadFile(path)
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(metaBytes, &meta)
	return meta, err
}

// hasUsableKey reports whether the identity's key file exists and opens with
// the vault password.
func (s *FileStore) hasUsableKey(id string) bool {
	encryptedKey, err := os.ReadFile(s.keyPath(id))
	if err != nil {
		return false
	}
	privKeyBytes, err := DecryptData(encryptedKey, s.vaultPW)
	if err != nil {
		return false
	}
	_, err = x509.ParsePKCS8PrivateKey(privKeyBytes)
	return err == nil
}

func (s *FileStore) Import(ctx context.Context, name string, r io.Reader, password []byte) (*Identity, error) {
	signer, cert, chain, err := ParsePKCS12(r, string(password))
	if err != nil {
		return nil, fmt.Errorf("import failed: %w", err)
	}

	privKeyBytes, err := x509.MarshalPKCS8PrivateKey(signer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	encryptedKey, err := EncryptData(privKeyBytes, s.vaultPW)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt private key: %w", err)
	}

	return s.save(name, cert, chain, encryptedKey)
}

// ImportCertificate stores a PEM or DER certificate without a private key.
func (s *FileStore) ImportCertificate(ctx context.Context, name string, data []byte) (*Identity, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("import failed: %w: PEM block %q", ErrImportUnsupported, block.Type)
		}
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("import failed: %w: %v", ErrImportInvalidFile, err)
	}
	return s.save(name, cert, nil, nil)
}

func (s *FileStore) save(name string, cert *x509.Certificate, chain []*x509.Certificate, encryptedKey []byte) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := Fingerprint(cert)
	if s.exists(fp) {
		return nil, fmt.Errorf("import failed: %w", ErrImportDuplicate)
	}
	if name == "" {
		name = cert.Subject.CommonName
	}

	id := uuid.New().String()
	keyPath := s.keyPath(id)
	if encryptedKey != nil {
		if err := os.WriteFile(keyPath, encryptedKey, 0600); err != nil {
			return nil, fmt.Errorf("failed to save encrypted key: %w", err)
		}
	}

	certPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}))
	var chainPEM []string
	for _, c := range chain {
		chainPEM = append(chainPEM, string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})))
	}

	meta := IdentityMeta{
		ID:             id,
		FriendlyName:   name,
		CertPEM:        certPEM,
		ChainPEM:       chainPEM,
		FingerprintHex: fmt.Sprintf("%x", fp),
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		os.Remove(keyPath)
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(id), metaBytes, 0600); err != nil {
		os.Remove(keyPath)
		return nil, fmt.Errorf("failed to save metadata: %w", err)
	}

	return &Identity{
		ID:             id,
		FriendlyName:   name,
		Cert:           cert,
		Chain:          chain,
		Fingerprint256: fp,
		HasKey:         encryptedKey != nil,
	}, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.metaPath(id)); os.IsNotExist(err) {
		return ErrNotFound
	}
	if err := os.Remove(s.metaPath(id)); err != nil {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	if err := os.Remove(s.keyPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

func (s *FileStore) Exists(fingerprint [32]byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists(fingerprint)
}

func (s *FileStore) exists(fingerprint [32]byte) bool {
	entries, _ := os.ReadDir(s.dir)
	fpHex := fmt.Sprintf("%x", fingerprint)
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		meta, err := s.readMeta(filepath.Join(s.dir, entry.Name()))
		if err == nil && meta.FingerprintHex == fpHex {
			return true
		}
	}
	return false
}
