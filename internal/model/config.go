package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variables that override
// configuration keys, e.g. MAILSETUP_SETUP_REQUIRED_DOMAIN.
const EnvPrefix = "MAILSETUP"

// SetupConfig holds settings for the account-setup wizard itself.
type SetupConfig struct {
	// AppName is shown in the welcome screen and wizard header.
	AppName string `mapstructure:"app_name" yaml:"app_name"`

	// RequiredDomain is the only domain accepted for account addresses.
	// An empty value accepts any domain.
	RequiredDomain string `mapstructure:"required_domain" yaml:"required_domain"`
}

// DiscoveryConfig holds settings for mail server auto-discovery.
type DiscoveryConfig struct {
	// TimeoutSec bounds a whole discovery lookup.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// AutoconfigURLs are provider autoconfig locations. "{domain}" is
	// replaced with the address domain.
	AutoconfigURLs []string `mapstructure:"autoconfig_urls" yaml:"autoconfig_urls"`

	// ISPDBURL is the base URL of the provider database; the domain is
	// appended as the last path segment.
	ISPDBURL string `mapstructure:"ispdb_url" yaml:"ispdb_url"`

	// DNSServer is the resolver used for SRV lookups (host:port). When empty
	// the system resolver configuration is used.
	DNSServer string `mapstructure:"dns_server" yaml:"dns_server"`

	// DemoDomain selects the built-in demo provider for matching addresses.
	DemoDomain string `mapstructure:"demo_domain" yaml:"demo_domain"`
}

// OAuthProviderConfig describes an OAuth 2.0 authorization server for a set
// of IMAP hostnames.
type OAuthProviderConfig struct {
	Name         string   `mapstructure:"name" yaml:"name"`
	Hostnames    []string `mapstructure:"hostnames" yaml:"hostnames"`
	ClientID     string   `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string   `mapstructure:"client_secret" yaml:"client_secret"`
	AuthURL      string   `mapstructure:"auth_url" yaml:"auth_url"`
	TokenURL     string   `mapstructure:"token_url" yaml:"token_url"`
	Scopes       []string `mapstructure:"scopes" yaml:"scopes"`

	// RedirectPort is the loopback port for the authorization callback.
	// Zero picks a free port.
	RedirectPort int `mapstructure:"redirect_port" yaml:"redirect_port"`
}

// OAuthConfig holds the OAuth providers known to the wizard.
type OAuthConfig struct {
	Providers []OAuthProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Path is the SQLite database file holding the account setup state.
	Path string `mapstructure:"path" yaml:"path"`

	// KeyringDir is used by the encrypted-file keyring backend.
	KeyringDir string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Empty disables logging.
	Level string `mapstructure:"level" yaml:"level"`

	// File receives log output. Logging to the terminal would corrupt the
	// TUI, so an empty File disables logging while the wizard runs.
	File string `mapstructure:"file" yaml:"file"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Setup     SetupConfig     `mapstructure:"setup" yaml:"setup"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	OAuth     OAuthConfig     `mapstructure:"oauth" yaml:"oauth"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailsetup/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailsetup")
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "mailsetup")
}

var defaultAutoconfigURLs = []string{
	"https://autoconfig.{domain}/mail/config-v1.1.xml",
	"https://{domain}/.well-known/autoconfig/mail/config-v1.1.xml",
}

// setDefaults registers every scalar key so that environment overrides
// are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("setup.app_name", "Correo EducaMadrid")
	v.SetDefault("setup.required_domain", "educa.madrid.org")
	v.SetDefault("discovery.timeout_sec", 20)
	v.SetDefault("discovery.autoconfig_urls", defaultAutoconfigURLs)
	v.SetDefault("discovery.ispdb_url", "https://autoconfig.thunderbird.net/v1.1")
	v.SetDefault("discovery.dns_server", "")
	v.SetDefault("discovery.demo_domain", "example.com")
	v.SetDefault("store.path", filepath.Join(dataDir(), "account.db"))
	v.SetDefault("store.keyring_dir", filepath.Join(configDir(), "credentials"))
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.file", "")
	v.SetDefault("display.theme", "default")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values from a .env file in the working directory and MAILSETUP_*
// environment variables override the file. If the file does not exist,
// defaults are used.
func LoadConfig(path string) (*AppConfig, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Discovery.TimeoutSec <= 0 {
		cfg.Discovery.TimeoutSec = 20
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("setup", cfg.Setup)
	v.Set("discovery", cfg.Discovery)
	v.Set("oauth", cfg.OAuth)
	v.Set("store", cfg.Store)
	v.Set("logging", cfg.Logging)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
