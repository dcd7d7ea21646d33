// Package certlist retrieves the signing certificates of the current user
// from a plugin, keeps the last good list in a cache and translates plugin
// failures into messages a user can act on.
package certlist

import (
	"time"

	"github.com/vocdoni/gofirma/usercerts/internal/crypto/certs"
	"github.com/vocdoni/gofirma/usercerts/internal/plugin"
)

// Certificate is a certificate the user can sign with.
type Certificate struct {
	// Handle is the plugin's own handle. It is owned by the plugin.
	Handle plugin.Certificate `json:"-"`

	Name        string    `json:"name"`
	IssuerName  string    `json:"issuerName"`
	SubjectName string    `json:"subjectName"`
	Thumbprint  string    `json:"thumbprint"`
	ValidFrom   time.Time `json:"validFrom"`
	ValidTo     time.Time `json:"validTo"`
}

// IsValid reports whether now falls inside the validity window.
func (c Certificate) IsValid(now time.Time) bool {
	return !now.Before(c.ValidFrom) && !now.After(c.ValidTo)
}

// OwnerInfo returns the subject name as titled attributes.
func (c Certificate) OwnerInfo() []certs.TaggedAttribute {
	return certs.TaggedInfo(c.SubjectName)
}

// IssuerInfo returns the issuer name as titled attributes.
func (c Certificate) IssuerInfo() []certs.TaggedAttribute {
	return certs.TaggedInfo(c.IssuerName)
}
