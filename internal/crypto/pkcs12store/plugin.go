package pkcs12store

import (
	"context"
	"time"

	"github.com/vocdoni/gofirma/usercerts/internal/plugin"
)

// PluginVersion is the version the vault reports as a plugin.
const PluginVersion = "1.2.0"

var _ plugin.Plugin = (*FileStore)(nil)

func (s *FileStore) Version(ctx context.Context) (string, error) {
	return PluginVersion, ctx.Err()
}

// CreateStore returns a store object over the vault. Only the current user's
// personal store exists.
func (s *FileStore) CreateStore(ctx context.Context) (plugin.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &vaultStore{fs: s}, nil
}

type vaultStore struct {
	fs     *FileStore
	opened bool
	// now is the clock handed to collections; nil means time.Now.
	now func() time.Time
}

func (v *vaultStore) Open(ctx context.Context, location plugin.Location, name string, mode plugin.OpenMode) error {
	if location != plugin.CurrentUserStore || name != plugin.MyStore {
		return plugin.Errorf(plugin.CodeStoreNotFound, "vault has no store %q at location %d", name, location)
	}
	if _, err := v.fs.List(ctx); err != nil {
		return &plugin.Error{Code: plugin.CodeStoreNotFound, Message: "vault directory is not readable", Err: err}
	}
	v.opened = true
	return nil
}

func (v *vaultStore) Certificates(ctx context.Context) (plugin.Certificates, error) {
	if !v.opened {
		return nil, plugin.Errorf(plugin.CodeStoreClosed, "store is not open")
	}
	ids, err := v.fs.List(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]plugin.Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, plugin.Entry{
			Cert:       id.Cert,
			Properties: map[plugin.PropertyID]bool{plugin.PropKeyProvInfo: id.HasKey},
		})
	}
	return plugin.NewCollection(entries, v.now), nil
}

func (v *vaultStore) Close(ctx context.Context) error {
	v.opened = false
	return nil
}
