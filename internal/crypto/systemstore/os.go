package systemstore

import (
	"context"
	"runtime"

	"github.com/vocdoni/gofirma/usercerts/internal/plugin"
)

// OSPluginVersion is the version reported by the system store backend.
const OSPluginVersion = "2.0.0"

var _ plugin.Plugin = (*OSStore)(nil)

// OSStore is the current user's certificate store of the operating system
// (Keychain on macOS, the "My" system store on Windows).
type OSStore struct {
	Label string
}

// OSAvailable reports whether this build can read the system store.
func OSAvailable() bool {
	return osAvailable
}

func (s *OSStore) Version(ctx context.Context) (string, error) {
	return OSPluginVersion, ctx.Err()
}

func (s *OSStore) CreateStore(ctx context.Context) (plugin.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !osAvailable {
		return nil, plugin.Errorf(plugin.CodeNotSupported, "system certificate store is not supported on %s", runtime.GOOS)
	}
	name := s.Label
	if name == "" {
		name = "system store"
	}
	return &scanStore{name: name, scan: scanOS}, nil
}
