// Package plugin describes the object model a certificate signing plugin
// exposes: a store that can be opened, a filterable collection of certificate
// handles and the handles themselves. Constant values follow CAPICOM, which
// every plugin backend in this module speaks.
package plugin

import (
	"context"
	"time"
)

// Location selects which store family Open targets.
type Location int

const (
	MemoryStore       Location = 0
	LocalMachineStore Location = 1
	CurrentUserStore  Location = 2
)

// MyStore is the personal store of a location, the one holding identities
// with private keys.
const MyStore = "My"

// OpenMode is the access requested when opening a store.
type OpenMode int

const (
	StoreOpenReadOnly       OpenMode = 0
	StoreOpenReadWrite      OpenMode = 1
	StoreOpenMaximumAllowed OpenMode = 2
)

// FindType selects the filter applied by Certificates.Find.
type FindType int

const (
	FindSHA1Hash         FindType = 0
	FindSubjectName      FindType = 1
	FindExtendedProperty FindType = 6
	FindTimeValid        FindType = 9
)

// PropertyID names an extended certificate property.
type PropertyID int

// PropKeyProvInfo marks a certificate with an associated private key provider.
const PropKeyProvInfo PropertyID = 2

// Plugin is a loaded signing plugin.
type Plugin interface {
	// Version reports the plugin version as a semantic version string.
	Version(ctx context.Context) (string, error)
	// CreateStore constructs a new, unopened store object.
	CreateStore(ctx context.Context) (Store, error)
}

// Store is a certificate store object. It must be opened before
// Certificates is called and closed by whoever created it.
type Store interface {
	Open(ctx context.Context, location Location, name string, mode OpenMode) error
	Certificates(ctx context.Context) (Certificates, error)
	Close(ctx context.Context) error
}

// Certificates is a collection of certificate handles. Item indexes are
// 1-based.
type Certificates interface {
	Find(ctx context.Context, findType FindType, args ...any) (Certificates, error)
	Count(ctx context.Context) (int, error)
	Item(ctx context.Context, index int) (Certificate, error)
}

// Certificate is a plugin-owned certificate handle. Every property read goes
// through the plugin and may fail.
type Certificate interface {
	SubjectName(ctx context.Context) (string, error)
	IssuerName(ctx context.Context) (string, error)
	Thumbprint(ctx context.Context) (string, error)
	ValidFromDate(ctx context.Context) (time.Time, error)
	ValidToDate(ctx context.Context) (time.Time, error)
}
