package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(New(), newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, BackendPKCS12, cfg.Backend)
	assert.Equal(t, "en", cfg.Lang)
	assert.Equal(t, filepath.Join(home, ".usercerts", "store"), cfg.PKCS12.Dir)
	assert.Equal(t, DefaultVaultPassword, cfg.PKCS12.VaultPassword)
	assert.Equal(t, "NSS", cfg.NSS.Label)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Plugin.MinVersion)
}

func TestLoadPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	file := `backend: nss
lang: ru
plugin:
  min_version: "2.0.0"
nss:
  label: Firefox
log:
  level: info
`
	require.NoError(t, os.WriteFile(filepath.Join(home, ".usercerts.yaml"), []byte(file), 0o600))
	t.Setenv("USERCERTS_LOG_LEVEL", "debug")
	t.Setenv("USERCERTS_PKCS12_VAULT_PASSWORD", "from-env")

	cfg, err := Load(New(), newFlags(t, "--backend", "os"))
	require.NoError(t, err)
	assert.Equal(t, BackendOS, cfg.Backend, "flag beats file")
	assert.Equal(t, "debug", cfg.Log.Level, "env beats file")
	assert.Equal(t, "ru", cfg.Lang)
	assert.Equal(t, "2.0.0", cfg.Plugin.MinVersion)
	assert.Equal(t, "Firefox", cfg.NSS.Label)
	assert.Equal(t, "from-env", cfg.PKCS12.VaultPassword)
}

func TestLoadExplicitConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pkcs12:\n  dir: /srv/vault\n"), 0o600))

	cfg, err := Load(New(), newFlags(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, "/srv/vault", cfg.PKCS12.Dir)

	_, err = Load(New(), newFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Backend: BackendPKCS12,
			PKCS12:  PKCS12Config{Dir: "/tmp/vault"},
			Log:     LogConfig{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Backend = "tpm2" }, "unknown backend"},
		{"missing vault dir", func(c *Config) { c.PKCS12.Dir = "" }, "pkcs12.dir"},
		{"vault dir unused by os backend", func(c *Config) { c.Backend = BackendOS; c.PKCS12.Dir = "" }, ""},
		{"bad min version", func(c *Config) { c.Plugin.MinVersion = "latest" }, "min_version"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
