package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/nso-bridge/nsoctl/pkg/nso/account"
	"github.com/nso-bridge/nsoctl/pkg/nso/coral"
	"github.com/nso-bridge/nsoctl/pkg/nso/flapg"
	"github.com/nso-bridge/nsoctl/pkg/secretstore"
)

const (
	VersionV1 = "v1"
)

type Config struct {
	Version   string    `yaml:"version"`
	Account   Account   `yaml:"account,omitempty"`
	Endpoints Endpoints `yaml:"endpoints,omitempty"`
	Settings  Settings  `yaml:"settings,omitempty"`
}

type Account struct {
	ClientID      string `yaml:"client-id,omitempty"`
	DeviceGUID    string `yaml:"device-guid,omitempty"`
	Language      string `yaml:"language,omitempty"`
	AppVersion    string `yaml:"app-version,omitempty"`
	ClientVersion string `yaml:"client-version,omitempty"`
}

type Endpoints struct {
	Accounts              string `yaml:"accounts,omitempty"`
	AccountsAPI           string `yaml:"accounts-api,omitempty"`
	Coral                 string `yaml:"coral,omitempty"`
	Flapg                 string `yaml:"flapg,omitempty"`
	CAFile                string `yaml:"ca-file,omitempty"`
	InsecureSkipTLSVerify bool   `yaml:"insecure-skip-tls-verify,omitempty"`
}

type Settings struct {
	OutputFormat string `yaml:"output-format,omitempty"`
	TokenStorage string `yaml:"token-storage,omitempty"`
	TokenFile    string `yaml:"token-file,omitempty"`
	Timeout      string `yaml:"timeout,omitempty"`
	MetricsFile  string `yaml:"metrics-file,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: VersionV1,
		Account: Account{
			ClientID:      account.DefaultClientID,
			Language:      account.DefaultLanguage,
			AppVersion:    coral.DefaultAppVersion,
			ClientVersion: account.DefaultClientVersion,
		},
		Endpoints: Endpoints{
			Accounts:    account.DefaultAccountsURL,
			AccountsAPI: account.DefaultAccountsAPIURL,
			Coral:       coral.DefaultBaseURL,
			Flapg:       flapg.DefaultEndpoint,
		},
		Settings: Settings{
			OutputFormat: "table",
			TokenStorage: secretstore.BackendKeyring,
			Timeout:      "30s",
		},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

// WithDefaults returns a copy with every empty field taken from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&c.Version, def.Version)
	fill(&c.Account.ClientID, def.Account.ClientID)
	fill(&c.Account.Language, def.Account.Language)
	fill(&c.Account.AppVersion, def.Account.AppVersion)
	fill(&c.Account.ClientVersion, def.Account.ClientVersion)
	fill(&c.Endpoints.Accounts, def.Endpoints.Accounts)
	fill(&c.Endpoints.AccountsAPI, def.Endpoints.AccountsAPI)
	fill(&c.Endpoints.Coral, def.Endpoints.Coral)
	fill(&c.Endpoints.Flapg, def.Endpoints.Flapg)
	fill(&c.Settings.OutputFormat, def.Settings.OutputFormat)
	fill(&c.Settings.TokenStorage, def.Settings.TokenStorage)
	fill(&c.Settings.Timeout, def.Settings.Timeout)
	return c
}

// TimeoutDuration parses Settings.Timeout; empty means zero.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Settings.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Settings.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Settings.Timeout, err)
	}
	return d, nil
}

// TokenFilePath returns the bbolt file for file token storage.
func (c *Config) TokenFilePath() string {
	if path := strings.TrimSpace(c.Settings.TokenFile); path != "" {
		return path
	}
	return DefaultTokenPath()
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	for name, raw := range map[string]string{
		"endpoints.accounts":     c.Endpoints.Accounts,
		"endpoints.accounts-api": c.Endpoints.AccountsAPI,
		"endpoints.coral":        c.Endpoints.Coral,
		"endpoints.flapg":        c.Endpoints.Flapg,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute url: %q", name, raw)
		}
	}
	switch c.Settings.TokenStorage {
	case "", secretstore.BackendKeyring, secretstore.BackendMemory, secretstore.BackendFile:
	default:
		return fmt.Errorf("unsupported token storage: %s", c.Settings.TokenStorage)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// field maps a dotted key to the string it addresses.
func (c *Config) field(key string) (*string, error) {
	switch key {
	case "account.client-id":
		return &c.Account.ClientID, nil
	case "account.device-guid":
		return &c.Account.DeviceGUID, nil
	case "account.language":
		return &c.Account.Language, nil
	case "account.app-version":
		return &c.Account.AppVersion, nil
	case "account.client-version":
		return &c.Account.ClientVersion, nil
	case "endpoints.accounts":
		return &c.Endpoints.Accounts, nil
	case "endpoints.accounts-api":
		return &c.Endpoints.AccountsAPI, nil
	case "endpoints.coral":
		return &c.Endpoints.Coral, nil
	case "endpoints.flapg":
		return &c.Endpoints.Flapg, nil
	case "endpoints.ca-file":
		return &c.Endpoints.CAFile, nil
	case "settings.output-format":
		return &c.Settings.OutputFormat, nil
	case "settings.token-storage":
		return &c.Settings.TokenStorage, nil
	case "settings.token-file":
		return &c.Settings.TokenFile, nil
	case "settings.timeout":
		return &c.Settings.Timeout, nil
	case "settings.metrics-file":
		return &c.Settings.MetricsFile, nil
	}
	return nil, fmt.Errorf("unknown config key: %s", key)
}

// Keys lists every key accepted by Get and Set.
func Keys() []string {
	keys := []string{
		"account.client-id", "account.device-guid", "account.language", "account.app-version", "account.client-version",
		"endpoints.accounts", "endpoints.accounts-api", "endpoints.coral", "endpoints.flapg", "endpoints.ca-file",
		"endpoints.insecure-skip-tls-verify",
		"settings.output-format", "settings.token-storage", "settings.token-file", "settings.timeout", "settings.metrics-file",
	}
	sort.Strings(keys)
	return keys
}

func (c *Config) Get(key string) (string, error) {
	if key == "endpoints.insecure-skip-tls-verify" {
		return strconv.FormatBool(c.Endpoints.InsecureSkipTLSVerify), nil
	}
	f, err := c.field(key)
	if err != nil {
		return "", err
	}
	return *f, nil
}

func (c *Config) Set(key, value string) error {
	if key == "endpoints.insecure-skip-tls-verify" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q for %s", value, key)
		}
		c.Endpoints.InsecureSkipTLSVerify = b
		return nil
	}
	f, err := c.field(key)
	if err != nil {
		return err
	}
	*f = value
	return nil
}
