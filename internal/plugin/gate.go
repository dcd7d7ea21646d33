package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/vocdoni/gofirma/usercerts/internal/version"
)

// Loader hands out a plugin once it is ready to take calls.
type Loader interface {
	Ready(ctx context.Context) (Plugin, error)
}

// Gate loads a plugin on first use and remembers it. A failed load is not
// remembered, so the next Ready call tries again.
type Gate struct {
	Load       func(ctx context.Context) (Plugin, error)
	MinVersion string

	mu     sync.Mutex
	loaded Plugin
}

// NewGate returns a gate over load that rejects plugins older than minVersion.
// An empty minVersion accepts any version.
func NewGate(load func(ctx context.Context) (Plugin, error), minVersion string) *Gate {
	return &Gate{Load: load, MinVersion: minVersion}
}

// Static returns a loader that is always ready with p.
func Static(p Plugin) Loader {
	return NewGate(func(context.Context) (Plugin, error) { return p, nil }, "")
}

func (g *Gate) Ready(ctx context.Context) (Plugin, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.loaded != nil {
		return g.loaded, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.Load == nil {
		return nil, Errorf(CodeNotReady, "no plugin configured")
	}

	p, err := g.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load plugin: %w", err)
	}
	if p == nil {
		return nil, Errorf(CodeNotReady, "plugin did not load")
	}

	if g.MinVersion != "" {
		v, err := p.Version(ctx)
		if err != nil {
			return nil, fmt.Errorf("read plugin version: %w", err)
		}
		if !version.Valid(v) {
			return nil, Errorf(CodeNotReady, "plugin reported an unreadable version %q", v)
		}
		if version.IsOutdated(v, g.MinVersion) {
			return nil, Errorf(CodeNotReady, "plugin version %s is older than required %s", v, g.MinVersion)
		}
	}

	g.loaded = p
	return p, nil
}
