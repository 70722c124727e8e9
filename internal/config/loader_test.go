package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// setupTestHome points HOME at a temp dir and returns the allowed config
// directory inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvConfigPath, "")

	configDir := filepath.Join(home, ".config", "vecsearch")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	return configDir
}

func writeConfig(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	// WriteFile is subject to umask; force the mode under test.
	if err := os.Chmod(path, perm); err != nil {
		t.Fatalf("Failed to chmod test config: %v", err)
	}
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	configDir := setupTestHome(t)
	configPath := filepath.Join(configDir, "config.yaml")

	writeConfig(t, configPath, `server:
  host: 127.0.0.1
  http_port: 9191
  shutdown_timeout: 3s
  rate_limit: 50
persistence:
  path: /var/lib/vecsearch/store.json
  compress: true
  load_on_start: true
  autosave_interval: 1m
search:
  default_top_k: 10
logging:
  level: debug
  format: console
telemetry:
  enabled: true
  service_name: vecsearch-test
  sample_rate: 0.25
`, 0600)

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9191 {
		t.Errorf("Server = %+v, want 127.0.0.1:9191", cfg.Server)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 3*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 3s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.RateLimit != 50 {
		t.Errorf("Server.RateLimit = %v, want 50", cfg.Server.RateLimit)
	}
	if cfg.Persistence.Path != "/var/lib/vecsearch/store.json" || !cfg.Persistence.Compress || !cfg.Persistence.LoadOnStart {
		t.Errorf("Persistence = %+v", cfg.Persistence)
	}
	if cfg.Persistence.AutosaveInterval.Duration() != time.Minute {
		t.Errorf("Persistence.AutosaveInterval = %v, want 1m", cfg.Persistence.AutosaveInterval)
	}
	if cfg.Search.DefaultTopK != 10 {
		t.Errorf("Search.DefaultTopK = %d, want 10", cfg.Search.DefaultTopK)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.ServiceName != "vecsearch-test" || cfg.Telemetry.SampleRate != 0.25 {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
	// Unset fields fall back to defaults.
	if cfg.Embeddings.Provider != "bytes" {
		t.Errorf("Embeddings.Provider = %q, want bytes", cfg.Embeddings.Provider)
	}
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	configDir := setupTestHome(t)
	configPath := filepath.Join(configDir, "config.yaml")

	writeConfig(t, configPath, `server:
  http_port: 9090
persistence:
  path: yaml.json
`, 0600)

	t.Setenv("VECSEARCH_SERVER_HTTP_PORT", "7777")
	t.Setenv("VECSEARCH_PERSISTENCE_PATH", "env.json")
	t.Setenv("VECSEARCH_PERSISTENCE_SAVE_ON_SHUTDOWN", "true")
	t.Setenv("VECSEARCH_SEARCH_DEFAULT_TOP_K", "3")
	t.Setenv("VECSEARCH_SERVER_SHUTDOWN_TIMEOUT", "2s")

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 (from env override)", cfg.Server.Port)
	}
	if cfg.Persistence.Path != "env.json" {
		t.Errorf("Persistence.Path = %q, want env.json", cfg.Persistence.Path)
	}
	if !cfg.Persistence.SaveOnShutdown {
		t.Error("Persistence.SaveOnShutdown = false, want true")
	}
	if cfg.Search.DefaultTopK != 3 {
		t.Errorf("Search.DefaultTopK = %d, want 3", cfg.Search.DefaultTopK)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 2*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 2s", cfg.Server.ShutdownTimeout)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"VECSEARCH_SERVER_HTTP_PORT":          "server.http_port",
		"VECSEARCH_PERSISTENCE_LOAD_ON_START": "persistence.load_on_start",
		"VECSEARCH_TELEMETRY_ENABLED":         "telemetry.enabled",
		"VECSEARCH_CONFIG":                    "config",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadWithFile_DefaultPath(t *testing.T) {
	configDir := setupTestHome(t)
	writeConfig(t, filepath.Join(configDir, "config.yaml"), "server:\n  http_port: 8181\n", 0600)

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile(\"\") error = %v, want nil", err)
	}
	if cfg.Server.Port != 8181 {
		t.Errorf("Server.Port = %d, want 8181 from default path", cfg.Server.Port)
	}
}

func TestLoadWithFile_EnvConfigPath(t *testing.T) {
	configDir := setupTestHome(t)
	path := filepath.Join(configDir, "alt.yaml")
	writeConfig(t, path, "search:\n  default_top_k: 7\n", 0400)
	t.Setenv(EnvConfigPath, path)

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}
	if cfg.Search.DefaultTopK != 7 {
		t.Errorf("Search.DefaultTopK = %d, want 7", cfg.Search.DefaultTopK)
	}
}

func TestLoadWithFile_MissingFile(t *testing.T) {
	configDir := setupTestHome(t)

	cfg, err := LoadWithFile(filepath.Join(configDir, "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil for missing file", err)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, DefaultPort)
	}
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	configDir := setupTestHome(t)
	configPath := filepath.Join(configDir, "config.yaml")
	writeConfig(t, configPath, "server:\n  http_port: [unclosed\n", 0600)

	if _, err := LoadWithFile(configPath); err == nil {
		t.Error("LoadWithFile() error = nil, want error for invalid YAML")
	}
}

func TestLoadWithFile_Validation(t *testing.T) {
	configDir := setupTestHome(t)
	configPath := filepath.Join(configDir, "config.yaml")
	writeConfig(t, configPath, "server:\n  http_port: 99999\n", 0600)

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Fatal("LoadWithFile() error = nil, want validation error")
	}
	if !strings.Contains(err.Error(), "server port") {
		t.Errorf("error = %v, want server port validation error", err)
	}
}

func TestLoadWithFile_PathTraversal(t *testing.T) {
	setupTestHome(t)

	_, err := LoadWithFile("/tmp/evil.yaml")
	if err == nil {
		t.Fatal("LoadWithFile() error = nil, want path validation error")
	}
	if !strings.Contains(err.Error(), "must be in ~/.config/vecsearch/ or /etc/vecsearch/") {
		t.Errorf("error = %v, want path validation message", err)
	}
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	configDir := setupTestHome(t)

	for _, perm := range []os.FileMode{0644, 0666, 0640} {
		configPath := filepath.Join(configDir, "config.yaml")
		writeConfig(t, configPath, "server:\n  http_port: 9090\n", perm)

		_, err := LoadWithFile(configPath)
		if err == nil {
			t.Errorf("LoadWithFile() with %v = nil, want permission error", perm)
			continue
		}
		if !strings.Contains(err.Error(), "insecure config file permissions") {
			t.Errorf("error = %v, want permission error", err)
		}
	}
}

func TestLoadWithFile_FileTooLarge(t *testing.T) {
	configDir := setupTestHome(t)
	configPath := filepath.Join(configDir, "config.yaml")

	content := "# " + string(bytes.Repeat([]byte("x"), maxConfigFileSize)) + "\n"
	writeConfig(t, configPath, content, 0600)

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Fatal("LoadWithFile() error = nil, want size error")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("error = %v, want size error", err)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir() = %v", err)
	}

	info, err := os.Stat(filepath.Join(home, ".config", "vecsearch"))
	if err != nil {
		t.Fatalf("config dir missing: %v", err)
	}
	if !info.IsDir() {
		t.Error("config path is not a directory")
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0700 {
		t.Errorf("config dir perm = %v, want 0700", info.Mode().Perm())
	}
}
