// Package app wires the configured certificate backend, the retrieval cache
// and logging together for the command line front end.
package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vocdoni/gofirma/usercerts/internal/certlist"
	"github.com/vocdoni/gofirma/usercerts/internal/config"
	"github.com/vocdoni/gofirma/usercerts/internal/crypto/pkcs12store"
	"github.com/vocdoni/gofirma/usercerts/internal/crypto/systemstore"
	"github.com/vocdoni/gofirma/usercerts/internal/plugin"
)

// App owns the state shared by the commands of one process.
type App struct {
	Config    *config.Config
	Log       *logrus.Logger
	Cache     *certlist.Cache
	Retriever *certlist.Retriever

	mu    sync.Mutex
	vault *pkcs12store.FileStore
}

// New builds the application for cfg. Logs go to logOut.
func New(cfg *config.Config, logOut io.Writer) (*App, error) {
	log, err := NewLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config: cfg,
		Log:    log,
		Cache:  certlist.NewCache(),
	}
	gate := plugin.NewGate(a.loadPlugin, cfg.Plugin.MinVersion)
	a.Retriever = certlist.NewRetriever(gate, a.Cache,
		certlist.WithLogger(log.WithField("backend", cfg.Backend)),
		certlist.WithMessages(certlist.NewMessages(cfg.Lang)),
	)
	return a, nil
}

// NewLogger returns a logrus logger configured by c.
func NewLogger(c config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

func (a *App) loadPlugin(ctx context.Context) (plugin.Plugin, error) {
	switch a.Config.Backend {
	case config.BackendPKCS12:
		return a.Vault()
	case config.BackendOS:
		return &systemstore.OSStore{Label: "System"}, nil
	case config.BackendNSS:
		return a.nssStore()
	default:
		return nil, fmt.Errorf("unknown backend: %s", a.Config.Backend)
	}
}

func (a *App) nssStore() (*systemstore.NSSStore, error) {
	c := a.Config.NSS
	log := a.Log.WithField("backend", config.BackendNSS)
	if c.Profile != "" {
		lib := c.Lib
		if lib == "" {
			lib = systemstore.FindNSSLib()
		}
		return &systemstore.NSSStore{LibPath: lib, ProfileDir: c.Profile, Label: c.Label, Log: log}, nil
	}

	stores := systemstore.DiscoverNSSStores()
	if len(stores) == 0 {
		return nil, plugin.Errorf(plugin.CodeNotReady, "no NSS database found")
	}
	s := stores[0]
	if c.Lib != "" {
		s.LibPath = c.Lib
	}
	s.Log = log
	log.WithField("store", s.Label).Debug("using discovered NSS database")
	return s, nil
}

// Vault returns the pkcs12 vault, creating its directory on first use.
func (a *App) Vault() (*pkcs12store.FileStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.vault != nil {
		return a.vault, nil
	}
	pw := a.Config.PKCS12.VaultPassword
	if pw == "" {
		pw = config.DefaultVaultPassword
	}
	fs, err := pkcs12store.NewFileStore(a.Config.PKCS12.Dir, []byte(pw))
	if err != nil {
		return nil, err
	}
	a.vault = fs
	return fs, nil
}

// Certificates returns the usable certificates of the configured backend.
func (a *App) Certificates(ctx context.Context, refresh bool) ([]certlist.Certificate, error) {
	return a.Retriever.Get(ctx, refresh)
}

// Certificate returns the usable certificate with the given thumbprint.
func (a *App) Certificate(ctx context.Context, thumbprint string) (certlist.Certificate, error) {
	return a.Retriever.Find(ctx, thumbprint)
}

// Import adds a PKCS#12 bundle, or a PEM/DER certificate without key, to the
// vault and drops the cached list.
func (a *App) Import(ctx context.Context, path, name string, password []byte) (*pkcs12store.Identity, error) {
	vault, err := a.Vault()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var id *pkcs12store.Identity
	switch strings.ToLower(filepath.Ext(path)) {
	case ".p12", ".pfx":
		id, err = vault.Import(ctx, name, bytes.NewReader(data), password)
	default:
		id, err = vault.ImportCertificate(ctx, name, data)
	}
	if err != nil {
		a.Log.WithError(err).WithField("file", path).Warn("certificate import failed")
		return nil, err
	}
	a.Log.WithFields(logrus.Fields{"id": id.ID, "name": id.FriendlyName, "hasKey": id.HasKey}).Info("certificate imported")
	a.Retriever.Reset()
	return id, nil
}

// Delete removes the vault identity whose certificate has the given SHA-1
// thumbprint and drops the cached list. Expired and keyless identities can be
// deleted too.
func (a *App) Delete(ctx context.Context, thumbprint string) (*pkcs12store.Identity, error) {
	vault, err := a.Vault()
	if err != nil {
		return nil, err
	}
	ids, err := vault.List(ctx)
	if err != nil {
		return nil, err
	}
	want := plugin.NormalizeThumbprint(thumbprint)
	for i := range ids {
		id := &ids[i]
		if plugin.Thumbprint(id.Cert) != want {
			continue
		}
		if err := vault.Delete(ctx, id.ID); err != nil {
			a.Log.WithError(err).WithField("id", id.ID).Warn("certificate delete failed")
			return nil, err
		}
		a.Log.WithFields(logrus.Fields{"id": id.ID, "name": id.FriendlyName}).Info("certificate deleted")
		a.Retriever.Reset()
		return id, nil
	}
	return nil, fmt.Errorf("%s: %w", want, pkcs12store.ErrNotFound)
}

// Backend describes one certificate backend.
type Backend struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Available   bool   `json:"available" yaml:"available"`
}

// Backends lists the backends and whether this build supports them.
func Backends() []Backend {
	return []Backend{
		{Name: config.BackendPKCS12, Description: "PKCS#12 vault (" + pkcs12store.PluginVersion + ")", Available: true},
		{Name: config.BackendOS, Description: "operating system store (" + systemstore.OSPluginVersion + ")", Available: systemstore.OSAvailable()},
		{Name: config.BackendNSS, Description: "NSS databases (" + systemstore.NSSPluginVersion + ")", Available: systemstore.NSSAvailable()},
	}
}
