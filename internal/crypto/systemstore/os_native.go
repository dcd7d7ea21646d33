//go:build (darwin || windows) && cgo

package systemstore

import (
	"context"
	"fmt"

	"github.com/github/smimesign/certstore"

	"github.com/vocdoni/gofirma/usercerts/internal/plugin"
)

const osAvailable = true

func scanOS(ctx context.Context) ([]plugin.Entry, error) {
	st, err := certstore.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open system store: %w", err)
	}
	defer st.Close()

	identities, err := st.Identities()
	if err != nil {
		return nil, fmt.Errorf("failed to list system identities: %w", err)
	}
	defer func() {
		for _, id := range identities {
			id.Close()
		}
	}()

	var entries []plugin.Entry
	for _, id := range identities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cert, err := id.Certificate()
		if err != nil {
			continue
		}
		signer, err := id.Signer()
		entries = append(entries, entryFor(cert, err == nil && signer != nil))
	}
	return entries, nil
}
