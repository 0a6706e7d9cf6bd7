package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hookshot.toml")
	contents := `
[config]
secret   = "s3cr3t"
hostname = "deploy.example.com"

[env.acme.widgets.master]
DEPLOY_ENV = "production"
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != defaultPort {
		t.Fatalf("got port %d, want default %d", cfg.Port, defaultPort)
	}
	env := cfg.ResolveEnv("acme", "widgets", "master")
	if env["DEPLOY_ENV"] != "production" {
		t.Fatalf("unexpected env: %+v", env)
	}
	if got := cfg.ResolveEnv("nope", "nope", "nope"); len(got) != 0 {
		t.Fatalf("expected empty map for unknown ref, got %+v", got)
	}
}

func TestLoadRequiresSecretAndHostname(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hookshot.toml")
	if err := os.WriteFile(path, []byte("[config]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing secret/hostname")
	}
}

func TestLoadCLIConfigInsecure(t *testing.T) {
	t.Setenv("HOOKSHOT_INSECURE", "1")
	t.Setenv("HOOKSHOT_CONFIG", "/etc/hookshot.toml")

	cfg, err := LoadCLIConfig()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.IsInsecure() {
		t.Fatal("expected insecure mode to be on")
	}
	if cfg.ConfigPath != "/etc/hookshot.toml" {
		t.Fatalf("got %q", cfg.ConfigPath)
	}
}
