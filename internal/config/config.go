// Package config loads the usercerts configuration from defaults, an
// optional YAML file, USERCERTS_* environment variables and command line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vocdoni/gofirma/usercerts/internal/version"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "USERCERTS"

// Backend names.
const (
	BackendPKCS12 = "pkcs12"
	BackendOS     = "os"
	BackendNSS    = "nss"
)

// DefaultVaultPassword seals vault keys when no password is configured.
const DefaultVaultPassword = "default-vault-password"

// Config holds the settings of the usercerts tool.
type Config struct {
	// Backend selects the certificate plugin (pkcs12, os, nss).
	Backend string `mapstructure:"backend"`

	// Lang is the BCP 47 language of fallback error messages.
	Lang string `mapstructure:"lang"`

	Plugin PluginConfig `mapstructure:"plugin"`
	PKCS12 PKCS12Config `mapstructure:"pkcs12"`
	NSS    NSSConfig    `mapstructure:"nss"`
	Log    LogConfig    `mapstructure:"log"`
}

type PluginConfig struct {
	// MinVersion is the lowest plugin version accepted. Empty accepts any.
	MinVersion string `mapstructure:"min_version"`
}

type PKCS12Config struct {
	Dir           string `mapstructure:"dir"`
	VaultPassword string `mapstructure:"vault_password"`
}

type NSSConfig struct {
	// Lib overrides the discovered softoken library.
	Lib string `mapstructure:"lib"`
	// Profile selects one NSS database. Empty uses the first discovered one.
	Profile string `mapstructure:"profile"`
	Label   string `mapstructure:"label"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"backend":     "backend",
	"lang":        "lang",
	"pkcs12-dir":  "pkcs12.dir",
	"nss-lib":     "nss.lib",
	"nss-profile": "nss.profile",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	home, _ := os.UserHomeDir()

	v.SetDefault("backend", BackendPKCS12)
	v.SetDefault("lang", "en")
	v.SetDefault("plugin.min_version", "")
	v.SetDefault("pkcs12.dir", filepath.Join(home, ".usercerts", "store"))
	v.SetDefault("pkcs12.vault_password", DefaultVaultPassword)
	v.SetDefault("nss.lib", "")
	v.SetDefault("nss.profile", "")
	v.SetDefault("nss.label", "NSS")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default is $HOME/.usercerts.yaml)")
	fs.String("backend", BackendPKCS12, "certificate backend (pkcs12, os, nss)")
	fs.String("lang", "en", "language of error messages (en, ru, es)")
	fs.String("pkcs12-dir", "", "vault directory of the pkcs12 backend")
	fs.String("nss-lib", "", "NSS softoken library")
	fs.String("nss-profile", "", "NSS database directory")
	fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	fs.String("log-format", "text", "log format (text, json)")
}

// Load reads the configuration. Flags in fs that were set on the command line
// override every other source.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var configFile string
	if f := fs.Lookup("config"); f != nil {
		configFile = f.Value.String()
	}
	if err := readConfigFile(v, configFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.SetConfigName(".usercerts")
	v.SetConfigType("yaml")
	v.AddConfigPath(home)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Validate checks the values that have a fixed set of choices.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendPKCS12, BackendOS, BackendNSS:
	default:
		return fmt.Errorf("unknown backend: %s", c.Backend)
	}
	if c.Backend == BackendPKCS12 && c.PKCS12.Dir == "" {
		return errors.New("pkcs12.dir is required")
	}
	if c.Plugin.MinVersion != "" && !version.Valid(c.Plugin.MinVersion) {
		return fmt.Errorf("plugin.min_version %q is not a version", c.Plugin.MinVersion)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %s", c.Log.Format)
	}
	return nil
}
