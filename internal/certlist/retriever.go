package certlist

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vocdoni/gofirma/usercerts/internal/crypto/certs"
	"github.com/vocdoni/gofirma/usercerts/internal/plugin"
)

// Retriever lists the current user's signing certificates through a plugin.
type Retriever struct {
	loader plugin.Loader
	cache  *Cache
	msgs   Messages
	log    logrus.FieldLogger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger plugin failures are reported to.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Retriever) { r.log = log }
}

// WithMessages sets the language of fallback error messages.
func WithMessages(m Messages) Option {
	return func(r *Retriever) { r.msgs = m }
}

// NewRetriever returns a retriever that reaches the plugin through loader and
// keeps its results in cache.
func NewRetriever(loader plugin.Loader, cache *Cache, opts ...Option) *Retriever {
	r := &Retriever{
		loader: loader,
		cache:  cache,
		msgs:   NewMessages(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewCache()
	}
	if r.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		r.log = l
	}
	return r
}

// Get returns the user's certificates. Unless forceRefresh is set, a cached
// list is returned as is without touching the plugin. A failed retrieval
// leaves the cache as it was.
func (r *Retriever) Get(ctx context.Context, forceRefresh bool) ([]Certificate, error) {
	if !forceRefresh {
		if list, ok := r.cache.Get(); ok {
			return list, nil
		}
	}

	list, err := r.retrieve(ctx)
	if err != nil {
		return nil, err
	}
	r.cache.Set(list)
	return list, nil
}

// Reset drops the cached list.
func (r *Retriever) Reset() {
	r.cache.Reset()
}

// Find returns the certificate with the given thumbprint.
func (r *Retriever) Find(ctx context.Context, thumbprint string) (Certificate, error) {
	list, err := r.Get(ctx, false)
	if err != nil {
		return Certificate{}, err
	}
	want := plugin.NormalizeThumbprint(thumbprint)
	for _, c := range list {
		if plugin.NormalizeThumbprint(c.Thumbprint) == want {
			return c, nil
		}
	}
	return Certificate{}, &Error{Kind: ErrNotFound, Message: r.msgs.Fallback(ErrNotFound)}
}

func (r *Retriever) retrieve(ctx context.Context) ([]Certificate, error) {
	log := r.log.WithField("retrieval", uuid.NewString())

	fail := func(kind error, cause error, what string) error {
		log.WithError(cause).Errorf("certificate retrieval: %s", what)
		return newError(kind, cause, r.msgs)
	}

	p, err := r.loader.Ready(ctx)
	if err != nil {
		return nil, fail(ErrPluginUnavailable, err, "plugin not ready")
	}

	if err := ctx.Err(); err != nil {
		return nil, fail(ErrStoreAccess, err, "create store")
	}
	store, err := p.CreateStore(ctx)
	if err != nil {
		return nil, fail(ErrStoreAccess, err, "create store")
	}
	defer func() {
		// The store was created by us; it is closed on every path.
		if cerr := store.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.WithError(cerr).Warn("certificate retrieval: close store")
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, fail(ErrStoreOpen, err, "open store")
	}
	if err := store.Open(ctx, plugin.CurrentUserStore, plugin.MyStore, plugin.StoreOpenMaximumAllowed); err != nil {
		return nil, fail(ErrStoreOpen, err, "open store")
	}

	found, count, err := usableCertificates(ctx, store)
	if err != nil {
		return nil, fail(ErrCertificateList, err, "list certificates")
	}
	if count == 0 {
		log.Warn("certificate retrieval: no usable certificates in store")
		return nil, newError(ErrNoCertificates, nil, r.msgs)
	}
	log.WithField("count", count).Debug("certificate retrieval: usable certificates found")

	list := make([]Certificate, 0, count)
	for i := count; i > 0; i-- {
		c, err := mapCertificate(ctx, found, i)
		if err != nil {
			return nil, fail(ErrCertificateProcessing, err, fmt.Sprintf("map certificate %d", i))
		}
		list = append(list, c)
	}

	return list, nil
}

// usableCertificates narrows the store to time-valid certificates that have a
// private key provider. A store without a collection has none.
func usableCertificates(ctx context.Context, store plugin.Store) (plugin.Certificates, int, error) {
	all, err := store.Certificates(ctx)
	if err != nil {
		return nil, 0, err
	}
	if all == nil {
		return nil, 0, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	valid, err := all.Find(ctx, plugin.FindTimeValid)
	if err != nil {
		return nil, 0, err
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	keyed, err := valid.Find(ctx, plugin.FindExtendedProperty, plugin.PropKeyProvInfo)
	if err != nil {
		return nil, 0, err
	}

	count, err := keyed.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return keyed, count, nil
}

func mapCertificate(ctx context.Context, found plugin.Certificates, index int) (Certificate, error) {
	if err := ctx.Err(); err != nil {
		return Certificate{}, err
	}
	h, err := found.Item(ctx, index)
	if err != nil {
		return Certificate{}, err
	}

	c := Certificate{Handle: h}
	if c.SubjectName, err = h.SubjectName(ctx); err != nil {
		return Certificate{}, err
	}
	if c.IssuerName, err = h.IssuerName(ctx); err != nil {
		return Certificate{}, err
	}
	if c.Thumbprint, err = h.Thumbprint(ctx); err != nil {
		return Certificate{}, err
	}
	if c.ValidFrom, err = h.ValidFromDate(ctx); err != nil {
		return Certificate{}, err
	}
	if c.ValidTo, err = h.ValidToDate(ctx); err != nil {
		return Certificate{}, err
	}
	c.Name = certs.CommonName(c.SubjectName)
	return c, nil
}
