package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/invoicedash/errors"
)

// TestExtensions verifies that unknown top-level keys are captured and decodable
func TestExtensions(t *testing.T) {
	yamlContent := []byte(`
version: "1.0"
client:
  url: ws://example.test:3001/socket

logging:
  level: debug
  report_caller: true
`)

	cfg, err := LoadFromBytes(yamlContent, FormatYAML)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if _, ok := cfg.Extensions["logging"]; !ok {
		t.Fatal("Expected 'logging' extension to be present")
	}

	type loggingConfig struct {
		Level        string `yaml:"level"`
		ReportCaller bool   `yaml:"report_caller"`
	}

	var lc loggingConfig
	if err := cfg.UnmarshalExtension("logging", &lc); err != nil {
		t.Fatalf("Failed to unmarshal logging extension: %v", err)
	}
	if lc.Level != "debug" || !lc.ReportCaller {
		t.Errorf("Unexpected logging extension: %+v", lc)
	}

	if cfg.Client.URL != "ws://example.test:3001/socket" {
		t.Errorf("Expected client url to be preserved, got %q", cfg.Client.URL)
	}

	// Missing extension leaves the target untouched
	var missing loggingConfig
	if err := cfg.UnmarshalExtension("nope", &missing); err != nil {
		t.Errorf("Missing extension should not error: %v", err)
	}
}

func TestLoadFromBytesAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`version: "1.0"`), FormatYAML)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Addr != DefaultServerAddr {
		t.Errorf("Expected addr %q, got %q", DefaultServerAddr, cfg.Server.Addr)
	}
	if cfg.Client.ReconnectAttempts != 5 {
		t.Errorf("Expected 5 reconnect attempts, got %d", cfg.Client.ReconnectAttempts)
	}
	if cfg.Client.ReconnectDelay().Seconds() != 1 {
		t.Errorf("Expected 1s reconnect delay, got %v", cfg.Client.ReconnectDelay())
	}
	if cfg.Server.InvoiceUpdateInterval().Seconds() != 15 {
		t.Errorf("Expected 15s update interval, got %v", cfg.Server.InvoiceUpdateInterval())
	}
	if cfg.Store.MaxActivities != DefaultMaxActivities {
		t.Errorf("Expected max activities %d, got %d", DefaultMaxActivities, cfg.Store.MaxActivities)
	}
}

func TestLoadFromBytesTOML(t *testing.T) {
	tomlContent := []byte(`
version = "1.0"

[server]
addr = ":4001"
activity_chance = 0.25

[logging]
level = "warn"
`)

	cfg, err := LoadFromBytes(tomlContent, FormatTOML)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Server.Addr != ":4001" {
		t.Errorf("Expected addr ':4001', got %q", cfg.Server.Addr)
	}
	if cfg.Server.ActivityChance != 0.25 {
		t.Errorf("Expected activity chance 0.25, got %v", cfg.Server.ActivityChance)
	}
	if _, ok := cfg.Extensions["logging"]; !ok {
		t.Error("Expected TOML 'logging' table to be captured as an extension")
	}
	if _, ok := cfg.Extensions["server"]; ok {
		t.Error("Known keys must not be captured as extensions")
	}
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("INVOICEDASH_TEST_ADDR", ":5005")

	cfg, err := LoadFromBytes([]byte(`
server:
  addr: ${INVOICEDASH_TEST_ADDR}
auth:
  token_secret: ${INVOICEDASH_TEST_UNSET:-fallback}
`), FormatYAML)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Addr != ":5005" {
		t.Errorf("Expected expanded addr, got %q", cfg.Server.Addr)
	}
	if cfg.Auth.TokenSecret != "fallback" {
		t.Errorf("Expected default value, got %q", cfg.Auth.TokenSecret)
	}
}

func TestLoadFromBytesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "server: [unclosed"},
		{"unknown server key", "server:\n  port: 3001\n"},
		{"chance above one", "server:\n  invoice_create_chance: 2\n"},
		{"http client url", "client:\n  url: http://localhost:3001\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.content), FormatYAML)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !errors.Is(err, errors.ErrCodeConfigInvalid) {
				t.Errorf("Expected CONFIG_INVALID, got %v", err)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(root, "invoicedash.yml")
	if err := os.WriteFile(configPath, []byte("version: \"1.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := FindConfigFile(nested)
	if err != nil {
		t.Fatalf("FindConfigFile failed: %v", err)
	}
	if found != configPath {
		t.Errorf("Expected %q, got %q", configPath, found)
	}

	cfg, err := LoadFrom(nested)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Version != "1.0" {
		t.Errorf("Expected version 1.0, got %q", cfg.Version)
	}
}

func TestFindConfigFileXDGFallback(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	path := filepath.Join(xdg, "invoicedash", "invoicedash.yml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("version: \"1.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := FindConfigFile(t.TempDir())
	if err != nil {
		t.Fatalf("FindConfigFile failed: %v", err)
	}
	if found != path {
		t.Errorf("Expected XDG path %q, got %q", path, found)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "invoicedash.yml"))
	if !errors.Is(err, errors.ErrCodeConfigNotFound) {
		t.Fatalf("Expected CONFIG_NOT_FOUND, got %v", err)
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Client.URL != DefaultClientURL {
		t.Errorf("Expected default client url, got %q", cfg.Client.URL)
	}

	// An explicit path must exist
	if _, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Expected an error for an explicit missing path")
	}
}

func TestFormatForPath(t *testing.T) {
	if FormatForPath("x/invoicedash.TOML") != FormatTOML {
		t.Error("Expected TOML for .TOML")
	}
	if FormatForPath("invoicedash.yml") != FormatYAML {
		t.Error("Expected YAML for .yml")
	}
}
