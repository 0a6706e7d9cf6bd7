// Package config loads the two configuration surfaces hookshot reads:
// a server-wide TOML manifest (secret, hostname, per-repo environment
// injection), decoded with pelletier/go-toml/v2, and the small set of
// process-level environment knobs that point at it, loaded with
// envconfig+godotenv.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultPort = 1469
)

// EnvMap is env[owner][repo][refName] -> (string -> string), read once
// at startup and shared read-only thereafter.
type EnvMap map[string]map[string]map[string]map[string]string

// ServerConfig is hookshot's global runtime configuration. It's
// immutable once Load returns.
type ServerConfig struct {
	Secret       string `toml:"secret"`
	Hostname     string `toml:"hostname"`
	Port         int    `toml:"port"`
	CheckoutRoot string `toml:"checkout_root"`
	LogRoot      string `toml:"log_root"`
	QueueLimit   int    `toml:"queue_limit"`
	Env          EnvMap `toml:"-"`
}

type rawServerConfig struct {
	Config struct {
		Secret       string `toml:"secret"`
		Hostname     string `toml:"hostname"`
		Port         int    `toml:"port"`
		CheckoutRoot string `toml:"checkout_root"`
		LogRoot      string `toml:"log_root"`
		QueueLimit   int    `toml:"queue_limit"`
	} `toml:"config"`
	Env map[string]map[string]map[string]map[string]string `toml:"env"`
}

// Load reads and validates a ServerConfig from a TOML file at path.
func Load(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: could not read %s: %w", path, err)
	}

	var raw rawServerConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: could not parse %s: %w", path, err)
	}

	cfg := &ServerConfig{
		Secret:       raw.Config.Secret,
		Hostname:     raw.Config.Hostname,
		Port:         raw.Config.Port,
		CheckoutRoot: raw.Config.CheckoutRoot,
		LogRoot:      raw.Config.LogRoot,
		QueueLimit:   raw.Config.QueueLimit,
		Env:          raw.Env,
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.CheckoutRoot == "" {
		cfg.CheckoutRoot = filepath.Join(xdgDataHome(), "hookshot", "checkouts")
	}
	if cfg.LogRoot == "" {
		cfg.LogRoot = filepath.Join(xdgDataHome(), "hookshot", "logs")
	}

	return cfg, cfg.validate()
}

func (c *ServerConfig) validate() error {
	if c.Secret == "" {
		return fmt.Errorf("config: 'secret' is required")
	}
	if c.Hostname == "" {
		return fmt.Errorf("config: 'hostname' is required")
	}
	if c.QueueLimit < 0 {
		return fmt.Errorf("config: 'queue_limit' must not be negative")
	}
	if err := os.MkdirAll(c.CheckoutRoot, 0o755); err != nil {
		return fmt.Errorf("config: checkout_root %q: %w", c.CheckoutRoot, err)
	}
	if err := os.MkdirAll(c.LogRoot, 0o755); err != nil {
		return fmt.Errorf("config: log_root %q: %w", c.LogRoot, err)
	}
	return nil
}

// ResolveEnv looks up the env overrides configured for a given
// (owner, repo, refName), returning an empty, non-nil map if none
// were configured.
func (c *ServerConfig) ResolveEnv(owner, repo, refName string) map[string]string {
	if byRepo, ok := c.Env[owner]; ok {
		if byRef, ok := byRepo[repo]; ok {
			if env, ok := byRef[refName]; ok {
				return env
			}
		}
	}
	return map[string]string{}
}

func xdgDataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".local/share"
	}
	return filepath.Join(home, ".local", "share")
}
