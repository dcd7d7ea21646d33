package pkcs12store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Sealed key layout: salt | nonce | AES-256-GCM ciphertext.
const (
	vaultSaltSize   = 16
	vaultNonceSize  = 12
	vaultKeySize    = 32
	vaultIterations = 4096
)

var errSealedTooShort = errors.New("sealed data too short")

func vaultAEAD(password, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(password, salt, vaultIterations, vaultKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptData seals data with a key derived from the vault password.
func EncryptData(data, password []byte) ([]byte, error) {
	salt := make([]byte, vaultSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	gcm, err := vaultAEAD(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	out := append(salt, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// DecryptData opens data sealed by EncryptData.
func DecryptData(data, password []byte) ([]byte, error) {
	if len(data) < vaultSaltSize+vaultNonceSize {
		return nil, errSealedTooShort
	}
	salt := data[:vaultSaltSize]
	nonce := data[vaultSaltSize : vaultSaltSize+vaultNonceSize]
	gcm, err := vaultAEAD(password, salt)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, data[vaultSaltSize+vaultNonceSize:], nil)
}
