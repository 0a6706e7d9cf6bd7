package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// CLIConfig is the small set of process-level environment knobs that
// tell hookshot where its server TOML lives and whether to skip
// signature verification entirely.
type CLIConfig struct {
	ConfigPath string `envconfig:"HOOKSHOT_CONFIG"`
	Insecure   string `envconfig:"HOOKSHOT_INSECURE"`
}

// LoadCLIConfig reads HOOKSHOT_CONFIG/HOOKSHOT_INSECURE from the
// environment, loading a .env file first if one is present, for local
// development convenience.
func LoadCLIConfig() (*CLIConfig, error) {
	_ = godotenv.Load()

	var cfg CLIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsInsecure reports whether the HOOKSHOT_INSECURE value turns on
// insecure mode: "true", "t", or "1", case-insensitively.
func (c *CLIConfig) IsInsecure() bool {
	switch strings.ToLower(c.Insecure) {
	case "true", "t", "1":
		return true
	default:
		return false
	}
}
