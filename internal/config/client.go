// ABOUTME: Configuration loading for the folio reader CLI
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvClientConfigPath names the environment variable overriding the client config path.
const EnvClientConfigPath = "FOLIO_CLIENT_CONFIG"

// ClientConfig is the reader CLI configuration.
type ClientConfig struct {
	Gateway  ClientGatewayConfig `toml:"gateway"`
	Storage  ClientStorageConfig `toml:"storage"`
	Tracking Tracking            `toml:"tracking"`
	Logging  LoggingConfig       `toml:"logging"`
}

// ClientGatewayConfig locates the gateway. An empty token reads anonymously.
type ClientGatewayConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`

	Timeout        time.Duration `toml:"-"`
	LookupCacheTTL time.Duration `toml:"-"`

	TimeoutRaw        string `toml:"timeout"`
	LookupCacheTTLRaw string `toml:"lookup_cache_ttl"`
}

// ClientStorageConfig locates the anonymous local store.
type ClientStorageConfig struct {
	DataDir  string `toml:"data_dir"`
	ClientID string `toml:"client_id"`
}

// ClientDefaults returns a ClientConfig with every optional setting filled in.
func ClientDefaults() ClientConfig {
	return ClientConfig{
		Gateway: ClientGatewayConfig{
			URL:            "http://127.0.0.1:8080",
			Timeout:        10 * time.Second,
			LookupCacheTTL: 5 * time.Minute,
		},
		Storage:  ClientStorageConfig{DataDir: DataDir()},
		Tracking: DefaultTracking(),
		Logging:  LoggingConfig{Level: "info"},
	}
}

// DefaultClientPath returns $FOLIO_CLIENT_CONFIG, else
// $XDG_CONFIG_HOME/folio/client.toml.
func DefaultClientPath() string {
	if p := os.Getenv(EnvClientConfigPath); p != "" {
		return p
	}
	return filepath.Join(configHome(), "folio", "client.toml")
}

// DataDir returns the folio data directory: $XDG_DATA_HOME/folio, else
// ~/.local/share/folio.
func DataDir() string {
	return filepath.Join(dataHome(), "folio")
}

func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// LoadClient reads the client config at path. A missing file yields the
// defaults.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := ClientDefaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if _, err := toml.Decode(expandEnvVars(string(data)), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SaveClient writes cfg to path, creating parent directories.
func SaveClient(path string, cfg *ClientConfig) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that required config fields are present and valid.
func (c *ClientConfig) Validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gateway.url must use http or https scheme")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if err := c.Tracking.TrackerConfig().Validate(); err != nil {
		return fmt.Errorf("tracking: %w", err)
	}
	return nil
}

func (c *ClientConfig) parseDurations() error {
	var err error

	if c.Gateway.TimeoutRaw != "" {
		c.Gateway.Timeout, err = time.ParseDuration(c.Gateway.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", c.Gateway.TimeoutRaw, err)
		}
	}

	if c.Gateway.LookupCacheTTLRaw != "" {
		c.Gateway.LookupCacheTTL, err = time.ParseDuration(c.Gateway.LookupCacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing lookup_cache_ttl %q: %w", c.Gateway.LookupCacheTTLRaw, err)
		}
	}

	return c.Tracking.ParseDurations()
}
