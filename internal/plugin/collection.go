package plugin

import (
	"context"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"strings"
	"time"
)

// Entry is a certificate as a backend found it, with the extended properties
// the backend could establish for it.
type Entry struct {
	Cert       *x509.Certificate
	Properties map[PropertyID]bool
}

// HasProperty reports whether the entry carries the property.
func (e Entry) HasProperty(id PropertyID) bool {
	return e.Properties[id]
}

// Thumbprint returns the upper-case hex SHA-1 of a certificate's DER encoding.
func Thumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

type collection struct {
	entries []Entry
	now     func() time.Time
}

// NewCollection returns a Certificates implementation over entries. Backends
// use it so they share one set of Find semantics. A nil clock means time.Now.
func NewCollection(entries []Entry, now func() time.Time) Certificates {
	if now == nil {
		now = time.Now
	}
	return &collection{entries: entries, now: now}
}

func (c *collection) Find(ctx context.Context, findType FindType, args ...any) (Certificates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keep func(Entry) bool
	switch findType {
	case FindTimeValid:
		at := c.now()
		if len(args) > 0 {
			t, ok := args[0].(time.Time)
			if !ok {
				return nil, Errorf(CodeInvalidParameter, "time-valid filter expects a time argument")
			}
			at = t
		}
		keep = func(e Entry) bool {
			return !at.Before(e.Cert.NotBefore) && !at.After(e.Cert.NotAfter)
		}
	case FindExtendedProperty:
		if len(args) == 0 {
			return nil, Errorf(CodeInvalidParameter, "extended property filter expects a property id")
		}
		id, ok := args[0].(PropertyID)
		if !ok {
			return nil, Errorf(CodeInvalidParameter, "extended property filter expects a property id")
		}
		keep = func(e Entry) bool { return e.HasProperty(id) }
	case FindSHA1Hash:
		want, ok := stringArg(args)
		if !ok {
			return nil, Errorf(CodeInvalidParameter, "hash filter expects a thumbprint")
		}
		want = NormalizeThumbprint(want)
		keep = func(e Entry) bool { return Thumbprint(e.Cert) == want }
	case FindSubjectName:
		want, ok := stringArg(args)
		if !ok {
			return nil, Errorf(CodeInvalidParameter, "subject filter expects a name")
		}
		want = strings.ToLower(want)
		keep = func(e Entry) bool {
			return strings.Contains(strings.ToLower(e.Cert.Subject.String()), want)
		}
	default:
		return nil, Errorf(CodeInvalidParameter, "unsupported find type %d", findType)
	}

	var out []Entry
	for _, e := range c.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return &collection{entries: out, now: c.now}, nil
}

func (c *collection) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(c.entries), nil
}

func (c *collection) Item(ctx context.Context, index int) (Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 1 || index > len(c.entries) {
		return nil, Errorf(CodeInvalidIndex, "certificate index %d out of range", index)
	}
	return &X509Certificate{Cert: c.entries[index-1].Cert}, nil
}

func stringArg(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok && s != ""
}

// NormalizeThumbprint upper-cases a thumbprint and drops separators users tend
// to paste along with it.
func NormalizeThumbprint(s string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '-', '\t':
			return -1
		}
		return r
	}, s))
}

// X509Certificate is a certificate handle backed by a parsed certificate.
type X509Certificate struct {
	Cert *x509.Certificate
}

func (h *X509Certificate) SubjectName(ctx context.Context) (string, error) {
	return h.Cert.Subject.String(), ctx.Err()
}

func (h *X509Certificate) IssuerName(ctx context.Context) (string, error) {
	return h.Cert.Issuer.String(), ctx.Err()
}

func (h *X509Certificate) Thumbprint(ctx context.Context) (string, error) {
	return Thumbprint(h.Cert), ctx.Err()
}

func (h *X509Certificate) ValidFromDate(ctx context.Context) (time.Time, error) {
	return h.Cert.NotBefore, ctx.Err()
}

func (h *X509Certificate) ValidToDate(ctx context.Context) (time.Time, error) {
	return h.Cert.NotAfter, ctx.Err()
}
