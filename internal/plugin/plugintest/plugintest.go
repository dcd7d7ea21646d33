// Package plugintest provides a scripted plugin for tests: it serves a fixed
// set of entries, counts calls and fails on demand.
package plugintest

import (
	"context"
	"sync"
	"time"

	"github.com/vocdoni/gofirma/usercerts/internal/plugin"
)

// Op names a plugin call.
type Op string

const (
	OpVersion      Op = "Version"
	OpCreateStore  Op = "CreateStore"
	OpOpen         Op = "Open"
	OpCertificates Op = "Certificates"
	OpFind         Op = "Find"
	OpCount        Op = "Count"
	OpItem         Op = "Item"
	OpProperty     Op = "Property"
	OpClose        Op = "Close"
)

// Plugin is a scripted plugin.Plugin. Fields may be changed between
// retrievals; calls lock the plugin.
type Plugin struct {
	mu sync.Mutex

	VersionString string
	Entries       []plugin.Entry
	Now           func() time.Time

	// Errors makes the named call fail.
	Errors map[Op]error
	// NilCollection makes Certificates return no collection at all.
	NilCollection bool
	// FailItem makes property reads on the item with this 1-based index
	// fail with ItemErr.
	FailItem int
	ItemErr  error

	calls map[Op]int
	// OpenArgs records the parameters of the last Open call.
	OpenArgs OpenArgs
}

// OpenArgs are the parameters passed to Store.Open.
type OpenArgs struct {
	Location plugin.Location
	Name     string
	Mode     plugin.OpenMode
}

// New returns a plugin serving entries.
func New(entries ...plugin.Entry) *Plugin {
	return &Plugin{VersionString: "2.0.0", Entries: entries}
}

// Fail makes op fail with err.
func (p *Plugin) Fail(op Op, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Errors == nil {
		p.Errors = make(map[Op]error)
	}
	p.Errors[op] = err
}

// Clear removes all scripted failures.
func (p *Plugin) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Errors = nil
	p.FailItem = 0
	p.ItemErr = nil
	p.NilCollection = false
}

// Calls returns how many times op was called.
func (p *Plugin) Calls(op Op) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// TotalCalls returns the number of calls of any kind.
func (p *Plugin) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func (p *Plugin) record(op Op) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[Op]int)
	}
	p.calls[op]++
	return p.Errors[op]
}

func (p *Plugin) Version(ctx context.Context) (string, error) {
	if err := p.record(OpVersion); err != nil {
		return "", err
	}
	return p.VersionString, nil
}

func (p *Plugin) CreateStore(ctx context.Context) (plugin.Store, error) {
	if err := p.record(OpCreateStore); err != nil {
		return nil, err
	}
	return &store{p: p}, nil
}

type store struct {
	p      *Plugin
	opened bool
}

func (s *store) Open(ctx context.Context, location plugin.Location, name string, mode plugin.OpenMode) error {
	if err := s.p.record(OpOpen); err != nil {
		return err
	}
	s.p.mu.Lock()
	s.p.OpenArgs = OpenArgs{Location: location, Name: name, Mode: mode}
	s.p.mu.Unlock()
	s.opened = true
	return nil
}

func (s *store) Certificates(ctx context.Context) (plugin.Certificates, error) {
	if err := s.p.record(OpCertificates); err != nil {
		return nil, err
	}
	if !s.opened {
		return nil, plugin.Errorf(plugin.CodeStoreClosed, "store is not open")
	}
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if s.p.NilCollection {
		return nil, nil
	}
	entries := append([]plugin.Entry(nil), s.p.Entries...)
	return &collection{p: s.p, inner: plugin.NewCollection(entries, s.p.Now)}, nil
}

func (s *store) Close(ctx context.Context) error {
	s.opened = false
	return s.p.record(OpClose)
}

type collection struct {
	p     *Plugin
	inner plugin.Certificates
}

func (c *collection) Find(ctx context.Context, findType plugin.FindType, args ...any) (plugin.Certificates, error) {
	if err := c.p.record(OpFind); err != nil {
		return nil, err
	}
	inner, err := c.inner.Find(ctx, findType, args...)
	if err != nil {
		return nil, err
	}
	return &collection{p: c.p, inner: inner}, nil
}

func (c *collection) Count(ctx context.Context) (int, error) {
	if err := c.p.record(OpCount); err != nil {
		return 0, err
	}
	return c.inner.Count(ctx)
}

func (c *collection) Item(ctx context.Context, index int) (plugin.Certificate, error) {
	if err := c.p.record(OpItem); err != nil {
		return nil, err
	}
	h, err := c.inner.Item(ctx, index)
	if err != nil {
		return nil, err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	var fail error
	if c.p.FailItem == index {
		fail = c.p.ItemErr
	}
	return &handle{p: c.p, inner: h, fail: fail}, nil
}

type handle struct {
	p     *Plugin
	inner plugin.Certificate
	fail  error
}

func (h *handle) read() error {
	if err := h.p.record(OpProperty); err != nil {
		return err
	}
	return h.fail
}

func (h *handle) SubjectName(ctx context.Context) (string, error) {
	if err := h.read(); err != nil {
		return "", err
	}
	return h.inner.SubjectName(ctx)
}

func (h *handle) IssuerName(ctx context.Context) (string, error) {
	if err := h.read(); err != nil {
		return "", err
	}
	return h.inner.IssuerName(ctx)
}

func (h *handle) Thumbprint(ctx context.Context) (string, error) {
	if err := h.read(); err != nil {
		return "", err
	}
	return h.inner.Thumbprint(ctx)
}

func (h *handle) ValidFromDate(ctx context.Context) (time.Time, error) {
	if err := h.read(); err != nil {
		return time.Time{}, err
	}
	return h.inner.ValidFromDate(ctx)
}

func (h *handle) ValidToDate(ctx context.Context) (time.Time, error) {
	if err := h.read(); err != nil {
		return time.Time{}, err
	}
	return h.inner.ValidToDate(ctx)
}
