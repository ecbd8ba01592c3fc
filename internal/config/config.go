// Package config provides configuration management for the catalog-sync CLI.
//
// It implements the disciplined Viper pattern where Viper stays contained
// in this package and the rest of the codebase receives explicit Config structs.
// Configuration sources are resolved in this order: flags > env > config file > defaults.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the explicit configuration struct
// This is what the rest of the codebase sees
type Config struct {
	Source         SourceConfig
	Target         TargetConfig
	ControlPlaneID string
	MappingFile    string
	HTTPTimeout    time.Duration
	Verbosity      int
	Trace          bool

	// SecretManagerEndpoint points secret references at a Secret Manager
	// emulator instead of the real API
	SecretManagerEndpoint string
}

// SourceConfig holds the control-plane search API connection
type SourceConfig struct {
	Host  string
	Token string
}

// TargetConfig holds the catalog API connection
type TargetConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
}

// Init initializes viper with defaults and config file paths
func Init() error {
	// Set config file name and type
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Add config file search paths
	viper.AddConfigPath("$HOME/.catalog-sync")
	viper.AddConfigPath(".")

	// Set defaults
	viper.SetDefault("source-host", "")
	viper.SetDefault("source-token", "")
	viper.SetDefault("target-url", "https://api.getport.io/v1")
	viper.SetDefault("target-client-id", "")
	viper.SetDefault("target-client-secret", "")
	viper.SetDefault("control-plane-id", "")
	viper.SetDefault("mapping-file", "")
	viper.SetDefault("http-timeout", "0s")
	viper.SetDefault("secret-manager-endpoint", "")
	viper.SetDefault("verbosity", 0)
	viper.SetDefault("trace", false)

	// Bind environment variables with prefix
	viper.SetEnvPrefix("CATALOG_SYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return nil
}

// Load reads from all sources and returns explicit Config
func Load() (*Config, error) {
	cfg := &Config{
		Source: SourceConfig{
			Host:  strings.TrimRight(viper.GetString("source-host"), "/"),
			Token: viper.GetString("source-token"),
		},
		Target: TargetConfig{
			BaseURL:      strings.TrimRight(viper.GetString("target-url"), "/"),
			ClientID:     viper.GetString("target-client-id"),
			ClientSecret: viper.GetString("target-client-secret"),
		},
		ControlPlaneID:        viper.GetString("control-plane-id"),
		MappingFile:           viper.GetString("mapping-file"),
		HTTPTimeout:           viper.GetDuration("http-timeout"),
		SecretManagerEndpoint: viper.GetString("secret-manager-endpoint"),
		Verbosity:             viper.GetInt("verbosity"),
		Trace:                 viper.GetBool("trace"),
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures config is sane
func (c *Config) Validate() error {
	if err := validateURL("source-host", c.Source.Host); err != nil {
		return err
	}

	if err := validateURL("target-url", c.Target.BaseURL); err != nil {
		return err
	}

	if blank(c.Source.Token) {
		return fmt.Errorf("source-token is required")
	}

	if blank(c.Target.ClientID) || blank(c.Target.ClientSecret) {
		return fmt.Errorf("target-client-id and target-client-secret are required")
	}

	if blank(c.ControlPlaneID) {
		return fmt.Errorf("control-plane-id is required")
	}

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("invalid http-timeout: %s", c.HTTPTimeout)
	}

	if c.Verbosity < 0 {
		return fmt.Errorf("invalid verbosity: %d", c.Verbosity)
	}

	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func validateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s: %s (must be an absolute http or https URL)", key, raw)
	}

	return nil
}

// SaveAs writes current config to path. An existing file is only
// replaced when overwrite is set.
func SaveAs(path string, overwrite bool) error {
	if overwrite {
		return viper.WriteConfigAs(path)
	}
	return viper.SafeWriteConfigAs(path)
}

// Display shows current config (for catalog-sync config get)
func Display() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = "(not found)"
	}

	mappingFile := cfg.MappingFile
	if mappingFile == "" {
		mappingFile = "(built-in)"
	}

	timeout := cfg.HTTPTimeout.String()
	if cfg.HTTPTimeout == 0 {
		timeout = "none"
	}

	secretEndpoint := cfg.SecretManagerEndpoint
	if secretEndpoint == "" {
		secretEndpoint = "(Google API)"
	}

	return fmt.Sprintf(`Configuration:
  source-host:              %s
  source-token:             %s
  target-url:               %s
  target-client-id:         %s
  target-client-secret:     %s
  control-plane-id:         %s
  mapping-file:             %s
  http-timeout:             %s
  verbosity:                %d
  trace:                    %t
  secret-manager-endpoint:  %s

Sources:
  Config file:              %s
  Environment:              CATALOG_SYNC_*
  Flags:                    (per command)
`,
		cfg.Source.Host,
		Mask(cfg.Source.Token),
		cfg.Target.BaseURL,
		cfg.Target.ClientID,
		Mask(cfg.Target.ClientSecret),
		cfg.ControlPlaneID,
		mappingFile,
		timeout,
		cfg.Verbosity,
		cfg.Trace,
		secretEndpoint,
		configFile,
	), nil
}

// Mask hides all but the last four characters of a secret
func Mask(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	if strings.HasPrefix(secret, "gcpsm://") {
		return secret
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
