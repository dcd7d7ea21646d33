package pkcs12store

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"strings"

	"software.sslmate.com/src/go-pkcs12"
)

// Fingerprint returns the SHA-256 fingerprint for a certificate.
func Fingerprint(cert *x509.Certificate) [32]byte {
	return sha256.Sum256(cert.Raw)
}

type decodeChainFunc func(pfxData []byte, password string) (privateKey interface{}, certificate *x509.Certificate, caCerts []*x509.Certificate, err error)

// ParsePKCS12 parses a PKCS#12/PFX identity and returns signer and certificate chain.
// Password-less exports are accepted even when a password was typed.
func ParsePKCS12(r io.Reader, password string) (crypto.Signer, *x509.Certificate, []*x509.Certificate, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, nil, err
	}

	priv, cert, chain, err := decodeWithPasswords(pkcs12.DecodeChain, data, password)
	if err != nil {
		return nil, nil, nil, err
	}
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: parsed private key does not support signing", ErrImportUnsupported)
	}
	return signer, cert, chain, nil
}

func decodeWithPasswords(decode decodeChainFunc, data []byte, userPassword string) (interface{}, *x509.Certificate, []*x509.Certificate, error) {
	passwords := []string{userPassword}
	if userPassword != "" {
		passwords = append(passwords, "")
	}

	var (
		hasIncorrectPassword bool
		firstOtherErr        error
	)
	for _, pass := range passwords {
		priv, cert, chain, err := decode(data, pass)
		if err == nil {
			return priv, cert, chain, nil
		}
		if isIncorrectPasswordError(err) {
			hasIncorrectPassword = true
		} else if firstOtherErr == nil {
			firstOtherErr = err
		}
	}

	if firstOtherErr != nil {
		if isLikelyInvalidFileError(firstOtherErr) {
			return nil, nil, nil, fmt.Errorf("%w: %v", ErrImportInvalidFile, firstOtherErr)
		}
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrImportUnsupported, firstOtherErr)
	}
	if hasIncorrectPassword {
		if strings.TrimSpace(userPassword) == "" {
			return nil, nil, nil, fmt.Errorf("%w", ErrImportPasswordRequired)
		}
		return nil, nil, nil, fmt.Errorf("%w", ErrImportWrongPassword)
	}
	return nil, nil, nil, errors.New("unknown parse error")
}
