// Package systemstore exposes the certificate stores owned by the operating
// system and by NSS databases as certificate plugins.
package systemstore

import (
	"context"
	"crypto/x509"
	"errors"
	"time"

	"github.com/vocdoni/gofirma/usercerts/internal/plugin"
)

type scanFunc func(ctx context.Context) ([]plugin.Entry, error)

// scanStore is the store object shared by the system backends. Open reads the
// whole store and Certificates serves that snapshot until Close.
type scanStore struct {
	name    string
	scan    scanFunc
	now     func() time.Time
	entries []plugin.Entry
	opened  bool
}

func (s *scanStore) Open(ctx context.Context, location plugin.Location, name string, mode plugin.OpenMode) error {
	if location != plugin.CurrentUserStore || name != plugin.MyStore {
		return plugin.Errorf(plugin.CodeStoreNotFound, "%s has no store %q at location %d", s.name, name, location)
	}
	entries, err := s.scan(ctx)
	if err != nil {
		var perr *plugin.Error
		if errors.As(err, &perr) {
			return err
		}
		return &plugin.Error{Code: plugin.CodeStoreNotFound, Message: s.name + " could not be read", Err: err}
	}
	s.entries = entries
	s.opened = true
	return nil
}

func (s *scanStore) Certificates(ctx context.Context) (plugin.Certificates, error) {
	if !s.opened {
		return nil, plugin.Errorf(plugin.CodeStoreClosed, "store is not open")
	}
	return plugin.NewCollection(s.entries, s.now), nil
}

func (s *scanStore) Close(ctx context.Context) error {
	s.opened = false
	s.entries = nil
	return nil
}

func entryFor(cert *x509.Certificate, hasKey bool) plugin.Entry {
	return plugin.Entry{
		Cert:       cert,
		Properties: map[plugin.PropertyID]bool{plugin.PropKeyProvInfo: hasKey},
	}
}
