package systemstore

import (
	"context"
	"crypto/x509/pkix"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/github/fakeca"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocdoni/gofirma/usercerts/internal/plugin"
)

func newCert(t *testing.T, cn string) *fakeca.Identity {
	t.Helper()
	return fakeca.New(fakeca.Subject(pkix.Name{CommonName: cn}),
		fakeca.NotBefore(time.Now().Add(-time.Hour)),
		fakeca.NotAfter(time.Now().Add(time.Hour)),
	)
}

func codeOf(t *testing.T, err error) uint32 {
	t.Helper()
	var perr *plugin.Error
	require.ErrorAs(t, err, &perr)
	return perr.Code
}

func TestScanStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	keyed := newCert(t, "keyed")
	bare := newCert(t, "bare")
	scans := 0
	st := &scanStore{name: "test store", scan: func(context.Context) ([]plugin.Entry, error) {
		scans++
		return []plugin.Entry{entryFor(keyed.Certificate, true), entryFor(bare.Certificate, false)}, nil
	}}

	_, err := st.Certificates(ctx)
	assert.Equal(t, plugin.CodeStoreClosed, codeOf(t, err))

	err = st.Open(ctx, plugin.CurrentUserStore, "Root", plugin.StoreOpenMaximumAllowed)
	assert.Equal(t, plugin.CodeStoreNotFound, codeOf(t, err))
	assert.Zero(t, scans)

	require.NoError(t, st.Open(ctx, plugin.CurrentUserStore, plugin.MyStore, plugin.StoreOpenMaximumAllowed))
	certs, err := st.Certificates(ctx)
	require.NoError(t, err)
	usable, err := certs.Find(ctx, plugin.FindExtendedProperty, plugin.PropKeyProvInfo)
	require.NoError(t, err)
	n, err := usable.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, st.Close(ctx))
	_, err = st.Certificates(ctx)
	assert.Equal(t, plugin.CodeStoreClosed, codeOf(t, err))
}

func TestScanStoreOpenErrors(t *testing.T) {
	ctx := context.Background()

	st := &scanStore{name: "broken", scan: func(context.Context) ([]plugin.Entry, error) {
		return nil, errors.New("permission denied")
	}}
	err := st.Open(ctx, plugin.CurrentUserStore, plugin.MyStore, plugin.StoreOpenMaximumAllowed)
	assert.Equal(t, plugin.CodeStoreNotFound, codeOf(t, err))
	assert.Equal(t, "broken could not be read.", plugin.ExtractMessage(err))
	assert.ErrorContains(t, err, "broken")

	native := plugin.Errorf(plugin.CodeNotSupported, "no keychain")
	st = &scanStore{name: "native", scan: func(context.Context) ([]plugin.Entry, error) {
		return nil, native
	}}
	err = st.Open(ctx, plugin.CurrentUserStore, plugin.MyStore, plugin.StoreOpenMaximumAllowed)
	assert.Same(t, native, err)
}

func TestDecodeNSSObjects(t *testing.T) {
	keyed := newCert(t, "nss keyed")
	bare := newCert(t, "nss bare")
	payload, err := json.Marshal([]nssObject{
		encodeNSSObject("keyed", 1, keyed.Certificate.Raw, true),
		{Label: "garbage", CertPEM: "not pem"},
		encodeNSSObject("bare", 2, bare.Certificate.Raw, false),
	})
	require.NoError(t, err)

	entries, err := decodeNSSObjects(payload)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Cert.Equal(keyed.Certificate))
	assert.True(t, entries[0].HasProperty(plugin.PropKeyProvInfo))
	assert.False(t, entries[1].HasProperty(plugin.PropKeyProvInfo))

	_, err = decodeNSSObjects([]byte("{"))
	require.Error(t, err)
}

func TestNSSStoreWithoutLibrary(t *testing.T) {
	s := &NSSStore{ProfileDir: t.TempDir()}
	_, err := s.CreateStore(context.Background())
	assert.Equal(t, plugin.CodeNotSupported, codeOf(t, err))

	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NSSPluginVersion, v)
}

func TestOSStoreUnsupported(t *testing.T) {
	if OSAvailable() {
		t.Skip("system store available in this build")
	}
	_, err := (&OSStore{}).CreateStore(context.Background())
	assert.Equal(t, plugin.CodeNotSupported, codeOf(t, err))
}

func mkProfile(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cert9.db"), nil, 0o600))
}

func TestDiscoverNSSStores(t *testing.T) {
	home := t.TempDir()
	base := filepath.Join(home, "firefox")
	mkProfile(t, filepath.Join(home, ".pki", "nssdb"))
	mkProfile(t, filepath.Join(base, "aaa.default"))
	mkProfile(t, filepath.Join(base, "bbb.work"))
	mkProfile(t, filepath.Join(base, "ccc.unlisted"))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "no-db"), 0o700))

	ini := `[Profile0]
Name=default
IsRelative=1
Path=aaa.default
Default=1

[Profile1]
Name=work
IsRelative=1
Path=bbb.work

[Install4F96D1932A9F858E]
Default=bbb.work
Locked=1
`
	require.NoError(t, os.WriteFile(filepath.Join(base, "profiles.ini"), []byte(ini), 0o600))

	stores := discoverNSSStores("/lib/softokn3", home, []string{base})
	require.Len(t, stores, 4)

	var dirs, labels []string
	for _, s := range stores {
		assert.Equal(t, "/lib/softokn3", s.LibPath)
		dirs = append(dirs, filepath.Base(s.ProfileDir))
		labels = append(labels, s.Label)
	}
	assert.Equal(t, []string{"nssdb", "bbb.work", "aaa.default", "ccc.unlisted"}, dirs)
	assert.Equal(t, []string{"System NSS", "Firefox Active Profile", "Firefox Profile 2", "Firefox Profile 3"}, labels)
}

func TestReadINI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compatibility.ini")
	require.NoError(t, os.WriteFile(path, []byte("; comment\n[Compatibility]\nLastPlatformDir = /opt/firefox\nbroken line\n"), 0o600))

	sections, err := readINI(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/firefox", sections["compatibility"]["lastplatformdir"])

	_, err = readINI(filepath.Join(t.TempDir(), "missing.ini"))
	require.Error(t, err)
}
