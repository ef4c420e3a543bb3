// Package config loads engine configuration with the precedence
// process environment > .env file > JSON config file > defaults.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	conduiterrors "conduit/internal/errors"
)

// Config holds every recognized option.
type Config struct {
	ModelName  string `json:"model_name"`
	APIBaseURL string `json:"api_base_url"`
	APIKey     string `json:"api_key"`

	SSHHost    string `json:"ssh_host"`
	SSHUser    string `json:"ssh_user"`
	SSHKeyPath string `json:"ssh_key_path"`

	LogLevel string `json:"log_level"`

	MaxRetries               int `json:"max_retries"`
	TimeoutSeconds           int `json:"timeout_seconds"`
	ConnectionPoolSize       int `json:"connection_pool_size"`
	ConnectionTimeoutSeconds int `json:"connection_timeout_seconds"`

	PluginDiscoveryPaths []string `json:"plugin_discovery_paths"`

	BridgeHost string `json:"bridge_host"`
	BridgePort int    `json:"bridge_port"`
}

// Default returns the built-in defaults, the lowest precedence layer.
func Default() *Config {
	return &Config{
		ModelName:                "gpt-4o-mini",
		APIBaseURL:               "https://api.openai.com/v1",
		LogLevel:                 "info",
		MaxRetries:               3,
		TimeoutSeconds:           30,
		ConnectionPoolSize:       5,
		ConnectionTimeoutSeconds: 300,
		PluginDiscoveryPaths:     []string{"examples/plugins", "plugins"},
		BridgeHost:               "127.0.0.1",
		BridgePort:               8765,
	}
}

// Load builds the effective configuration. configPath may be empty, in which
// case ./conduit.json and ~/.conduit.json are probed.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if path := resolveConfigFile(configPath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &conduiterrors.ConfigError{Option: "config_file", Err: err}
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, &conduiterrors.ConfigError{Option: "config_file", Err: err}
		}
	}

	// godotenv never overrides variables already present in the process
	// environment, which is exactly the precedence the engine wants.
	_ = godotenv.Load()

	cfg.applyEnv()

	if cfg.SSHKeyPath != "" {
		if _, err := os.Stat(cfg.SSHKeyPath); err != nil {
			return nil, &conduiterrors.ConfigError{Option: "ssh_key_path", Err: err}
		}
	}
	return cfg, nil
}

func resolveConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("conduit.json"); err == nil {
		return "conduit.json"
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".conduit.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	setString(&c.ModelName, "CONDUIT_MODEL_NAME")
	setString(&c.APIBaseURL, "CONDUIT_API_BASE_URL")
	setString(&c.APIKey, "CONDUIT_API_KEY")
	setString(&c.SSHHost, "CONDUIT_SSH_HOST")
	setString(&c.SSHUser, "CONDUIT_SSH_USER")
	setString(&c.SSHKeyPath, "CONDUIT_SSH_KEY_PATH")
	setString(&c.LogLevel, "CONDUIT_LOG_LEVEL")
	setInt(&c.MaxRetries, "CONDUIT_MAX_RETRIES")
	setInt(&c.TimeoutSeconds, "CONDUIT_TIMEOUT_SECONDS")
	setInt(&c.ConnectionPoolSize, "CONDUIT_CONNECTION_POOL_SIZE")
	setInt(&c.ConnectionTimeoutSeconds, "CONDUIT_CONNECTION_TIMEOUT_SECONDS")
	setString(&c.BridgeHost, "CONDUIT_BRIDGE_HOST")
	setInt(&c.BridgePort, "CONDUIT_BRIDGE_PORT")

	if raw, ok := os.LookupEnv("CONDUIT_PLUGIN_DISCOVERY_PATHS"); ok && raw != "" {
		var paths []string
		for _, p := range strings.Split(raw, string(os.PathListSeparator)) {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		if len(paths) > 0 {
			c.PluginDiscoveryPaths = paths
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Snapshot returns a loggable view of the configuration. Secrets are
// redacted, never echoed.
func (c *Config) Snapshot() map[string]any {
	apiKey := ""
	if c.APIKey != "" {
		apiKey = "***redacted***"
	}
	return map[string]any{
		"model_name":                 c.ModelName,
		"api_base_url":               c.APIBaseURL,
		"api_key":                    apiKey,
		"ssh_host":                   c.SSHHost,
		"ssh_user":                   c.SSHUser,
		"ssh_key_path":               c.SSHKeyPath,
		"log_level":                  c.LogLevel,
		"max_retries":                c.MaxRetries,
		"timeout_seconds":            c.TimeoutSeconds,
		"connection_pool_size":       c.ConnectionPoolSize,
		"connection_timeout_seconds": c.ConnectionTimeoutSeconds,
		"plugin_discovery_paths":     append([]string(nil), c.PluginDiscoveryPaths...),
		"bridge_host":                c.BridgeHost,
		"bridge_port":                c.BridgePort,
	}
}
