package pkcs12store

import (
	"errors"
	"strings"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

var (
	ErrImportPasswordRequired = errors.New("certificate password required")
	ErrImportWrongPassword    = errors.New("certificate password incorrect")
	ErrImportInvalidFile      = errors.New("invalid certificate file")
	ErrImportUnsupported      = errors.New("unsupported certificate format")
	ErrImportDuplicate        = errors.New("certificate already exists")
)

var friendlyImportMessages = []struct {
	err error
	msg string
}{
	{ErrImportPasswordRequired, "This certificate requires a password. Pass it with --password and try again."},
	{ErrImportWrongPassword, "The certificate password is incorrect."},
	{ErrImportDuplicate, "This certificate is already in the vault."},
	{ErrImportInvalidFile, "The file is not a valid .p12/.pfx or PEM certificate, or it is corrupted."},
	{ErrImportUnsupported, "The certificate uses an unsupported format or key type."},
}

// FriendlyImportError returns a user-facing message for an import failure.
func FriendlyImportError(err error) string {
	for _, m := range friendlyImportMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "Certificate import failed. Please verify the file and password."
}

func isIncorrectPasswordError(err error) bool {
	if errors.Is(err, pkcs12.ErrIncorrectPassword) || errors.Is(err, pkcs12.ErrDecryption) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "decryption password incorrect") ||
		strings.Contains(msg, "incorrect padding")
}

func isLikelyInvalidFileError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not der") ||
		strings.Contains(msg, "syntax error") ||
		strings.Contains(msg, "structure error") ||
		strings.Contains(msg, "trailing data") ||
		strings.Contains(msg, "certificate missing") ||
		strings.Contains(msg, "private key missing") ||
		strings.Contains(msg, "error reading p12 data")
}
