//go:build !cgo || !(darwin || windows)

package systemstore

import (
	"context"

	"github.com/vocdoni/gofirma/usercerts/internal/plugin"
)

const osAvailable = false

func scanOS(ctx context.Context) ([]plugin.Entry, error) {
	return nil, plugin.Errorf(plugin.CodeNotSupported, "system certificate store is not available in this build")
}
