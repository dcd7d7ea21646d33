package certlist

import (
	"context"
	"crypto/x509/pkix"
	"errors"
	"testing"
	"time"

	"github.com/github/fakeca"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocdoni/gofirma/usercerts/internal/plugin"
	"github.com/vocdoni/gofirma/usercerts/internal/plugin/plugintest"
)

var keyed = map[plugin.PropertyID]bool{plugin.PropKeyProvInfo: true}

func entry(cn string, notBefore, notAfter time.Time, props map[plugin.PropertyID]bool) plugin.Entry {
	id := fakeca.New(
		fakeca.Subject(pkix.Name{CommonName: cn, Organization: []string{"usercerts"}, Country: []string{"ES"}}),
		fakeca.NotBefore(notBefore),
		fakeca.NotAfter(notAfter),
	)
	return plugin.Entry{Cert: id.Certificate, Properties: props}
}

func validEntry(cn string) plugin.Entry {
	return entry(cn, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour), keyed)
}

func newRetriever(p *plugintest.Plugin) *Retriever {
	return NewRetriever(plugin.Static(p), NewCache())
}

func names(list []Certificate) []string {
	var out []string
	for _, c := range list {
		out = append(out, c.Name)
	}
	return out
}

func TestGetFiltersExpiredAndKeyless(t *testing.T) {
	p := plugintest.New(
		validEntry("alice"),
		entry("expired", time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour), keyed),
		validEntry("bob"),
		entry("keyless", time.Now().Add(-time.Hour), time.Now().Add(time.Hour), nil),
	)
	r := newRetriever(p)

	list, err := r.Get(context.Background(), false)
	require.NoError(t, err)
	// Entries are consumed from the last index to the first.
	assert.Equal(t, []string{"bob", "alice"}, names(list))
	for _, c := range list {
		assert.Len(t, c.Thumbprint, 40)
		assert.Contains(t, c.SubjectName, "CN="+c.Name)
		assert.True(t, c.IsValid(time.Now()))
		assert.NotNil(t, c.Handle)
	}

	assert.Equal(t, plugintest.OpenArgs{
		Location: plugin.CurrentUserStore,
		Name:     plugin.MyStore,
		Mode:     plugin.StoreOpenMaximumAllowed,
	}, p.OpenArgs)
	assert.Equal(t, 1, p.Calls(plugintest.OpClose))
}

func TestGetThreeEntriesOneExpired(t *testing.T) {
	p := plugintest.New(
		validEntry("first"),
		entry("old", time.Now().AddDate(-2, 0, 0), time.Now().AddDate(-1, 0, 0), keyed),
		validEntry("third"),
	)

	list, err := newRetriever(p).Get(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, c := range list {
		assert.NotEmpty(t, c.Thumbprint)
		assert.NotEmpty(t, c.Name)
	}
}

func TestGetReturnsCachedListWithoutPluginCalls(t *testing.T) {
	p := plugintest.New(validEntry("alice"), validEntry("bob"))
	r := newRetriever(p)

	first, err := r.Get(context.Background(), false)
	require.NoError(t, err)
	calls := p.TotalCalls()

	second, err := r.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, calls, p.TotalCalls())
	require.Len(t, second, len(first))
	assert.Same(t, &first[0], &second[0])
}

func TestGetForceRefreshRequeries(t *testing.T) {
	p := plugintest.New(validEntry("alice"))
	r := newRetriever(p)

	_, err := r.Get(context.Background(), false)
	require.NoError(t, err)

	p.Entries = append(p.Entries, validEntry("bob"))
	list, err := r.Get(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, names(list))
	assert.Equal(t, 2, p.Calls(plugintest.OpCreateStore))

	cached, err := r.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Same(t, &list[0], &cached[0])

	r.Reset()
	_, err = r.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Calls(plugintest.OpCreateStore))
}

func TestGetNoCertificatesKeepsCache(t *testing.T) {
	p := plugintest.New(validEntry("alice"))
	r := newRetriever(p)

	before, err := r.Get(context.Background(), false)
	require.NoError(t, err)

	p.Entries = []plugin.Entry{entry("keyless", time.Now().Add(-time.Hour), time.Now().Add(time.Hour), nil)}
	_, err = r.Get(context.Background(), true)
	require.ErrorIs(t, err, ErrNoCertificates)
	assert.Equal(t, "No certificates available", err.Error())
	assert.Equal(t, 2, p.Calls(plugintest.OpClose))

	after, err := r.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Same(t, &before[0], &after[0])
}

func TestGetNoCertificatesWithoutCollection(t *testing.T) {
	p := plugintest.New(validEntry("alice"))
	p.NilCollection = true

	_, err := newRetriever(p).Get(context.Background(), false)
	require.ErrorIs(t, err, ErrNoCertificates)
	assert.Zero(t, p.Calls(plugintest.OpFind))
}

func TestGetMappingFailureIsAtomic(t *testing.T) {
	p := plugintest.New(validEntry("alice"), validEntry("bob"), validEntry("carol"))
	r := newRetriever(p)

	before, err := r.Get(context.Background(), false)
	require.NoError(t, err)

	p.FailItem = 1
	p.ItemErr = errors.New("0x8009000D")
	_, err = r.Get(context.Background(), true)
	require.ErrorIs(t, err, ErrCertificateProcessing)
	assert.Equal(t, "Error processing certificates", err.Error())
	assert.Equal(t, 2, p.Calls(plugintest.OpClose))

	after, ok := r.cache.Get()
	require.True(t, ok)
	assert.Same(t, &before[0], &after[0])
	assert.Equal(t, []string{"carol", "bob", "alice"}, names(after))
}

func TestGetMappingFailureWithoutCache(t *testing.T) {
	p := plugintest.New(validEntry("alice"), validEntry("bob"))
	p.FailItem = 2
	p.ItemErr = plugin.Errorf(plugin.CodeInvalidIndex, "Certificate handle is no longer valid")
	r := newRetriever(p)

	_, err := r.Get(context.Background(), false)
	require.ErrorIs(t, err, ErrCertificateProcessing)
	assert.Equal(t, "Certificate handle is no longer valid.", err.Error())

	_, ok := r.cache.Get()
	assert.False(t, ok)
}

func TestGetErrorKinds(t *testing.T) {
	tests := []struct {
		op       plugintest.Op
		kind     error
		fallback string
		closes   int
	}{
		{op: plugintest.OpVersion, kind: ErrPluginUnavailable, fallback: "The signing plugin is not available"},
		{op: plugintest.OpCreateStore, kind: ErrStoreAccess, fallback: "Error accessing the certificate store"},
		{op: plugintest.OpOpen, kind: ErrStoreOpen, fallback: "Error opening the certificate store", closes: 1},
		{op: plugintest.OpCertificates, kind: ErrCertificateList, fallback: "Error retrieving the certificate list", closes: 1},
		{op: plugintest.OpFind, kind: ErrCertificateList, fallback: "Error retrieving the certificate list", closes: 1},
		{op: plugintest.OpCount, kind: ErrCertificateList, fallback: "Error retrieving the certificate list", closes: 1},
		{op: plugintest.OpItem, kind: ErrCertificateProcessing, fallback: "Error processing certificates", closes: 1},
		{op: plugintest.OpProperty, kind: ErrCertificateProcessing, fallback: "Error processing certificates", closes: 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			p := plugintest.New(validEntry("alice"))
			native := &plugin.Error{Code: 0x80090016}
			p.Fail(tt.op, native)
			loader := plugin.NewGate(func(context.Context) (plugin.Plugin, error) { return p, nil }, "1.0.0")
			r := NewRetriever(loader, nil)

			list, err := r.Get(context.Background(), false)
			require.Nil(t, list)
			require.ErrorIs(t, err, tt.kind)
			require.ErrorIs(t, err, native)
			assert.Equal(t, tt.fallback, err.Error())
			assert.Equal(t, tt.closes, p.Calls(plugintest.OpClose))

			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.kind, cerr.Kind)
		})
	}
}

func TestGetPrefersPluginMessage(t *testing.T) {
	p := plugintest.New(validEntry("alice"))
	p.Fail(plugintest.OpOpen, plugin.Errorf(0x80090016, "Набор ключей не существует (0x80090016)"))

	_, err := newRetriever(p).Get(context.Background(), false)
	require.ErrorIs(t, err, ErrStoreOpen)
	assert.Equal(t, "Набор ключей не существует.", err.Error())
}

func TestGetLocalizedFallback(t *testing.T) {
	p := plugintest.New()
	r := NewRetriever(plugin.Static(p), NewCache(), WithMessages(NewMessages("ru-RU")))

	_, err := r.Get(context.Background(), false)
	require.ErrorIs(t, err, ErrNoCertificates)
	assert.Equal(t, "Нет доступных сертификатов", err.Error())
}

func TestGetCloseFailureDoesNotMaskResult(t *testing.T) {
	p := plugintest.New(validEntry("alice"))
	p.Fail(plugintest.OpClose, errors.New("close failed"))

	list, err := newRetriever(p).Get(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetCancelled(t *testing.T) {
	p := plugintest.New(validEntry("alice"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRetriever(p).Get(ctx, false)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.Calls(plugintest.OpCreateStore))
}

func TestGetForeignErrorUsesFallback(t *testing.T) {
	p := plugintest.New(validEntry("alice"))
	p.Fail(plugintest.OpCreateStore, errors.New("failed to create store dir: permission denied"))
	r := NewRetriever(plugin.Static(p), NewCache(), WithMessages(NewMessages("ru")))

	_, err := r.Get(context.Background(), false)
	require.ErrorIs(t, err, ErrStoreAccess)
	assert.Equal(t, "Ошибка при попытке доступа к хранилищу", err.Error())
}

func TestGetCancelledUsesFallback(t *testing.T) {
	p := plugintest.New(validEntry("alice"))
	msgs := NewMessages("ru")
	r := NewRetriever(plugin.Static(p), NewCache(), WithMessages(msgs))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Get(ctx, false)
	require.ErrorIs(t, err, context.Canceled)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, msgs.Fallback(cerr.Kind), err.Error())
	assert.NotContains(t, err.Error(), "context canceled")
}

func TestGetUsesPluginClock(t *testing.T) {
	future := time.Now().AddDate(5, 0, 0)
	p := plugintest.New(entry("later", future.Add(-time.Hour), future.Add(time.Hour), keyed))
	r := newRetriever(p)

	_, err := r.Get(context.Background(), false)
	require.ErrorIs(t, err, ErrNoCertificates)

	p.Now = func() time.Time { return future }
	list, err := r.Get(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"later"}, names(list))
}

func TestGetRecoversAfterFailure(t *testing.T) {
	p := plugintest.New(validEntry("alice"))
	p.Fail(plugintest.OpOpen, &plugin.Error{Code: plugin.CodeStoreNotFound})
	p.FailItem = 1
	p.ItemErr = errors.New("unreachable")
	r := newRetriever(p)

	_, err := r.Get(context.Background(), false)
	require.ErrorIs(t, err, ErrStoreOpen)
	_, ok := r.cache.Get()
	assert.False(t, ok)

	p.Clear()
	list, err := r.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names(list))
	assert.Equal(t, 2, p.Calls(plugintest.OpCreateStore))
}

func TestFind(t *testing.T) {
	alice := validEntry("alice")
	p := plugintest.New(alice, validEntry("bob"))
	r := newRetriever(p)

	tp := plugin.Thumbprint(alice.Cert)
	c, err := r.Find(context.Background(), " "+tp[:2]+":"+tp[2:]+" ")
	require.NoError(t, err)
	assert.Equal(t, "alice", c.Name)
	assert.Equal(t, 1, p.Calls(plugintest.OpCreateStore))

	_, err = r.Find(context.Background(), "00")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, p.Calls(plugintest.OpCreateStore))
}
