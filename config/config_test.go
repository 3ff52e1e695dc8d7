package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validConfig returns a default config with the credentials Validate requires.
func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Toggl.APIToken = "test-token"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.App.Name != "daylytics" {
		t.Errorf("expected app name daylytics, got %s", cfg.App.Name)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.PathPrefix != "/api/v1" {
		t.Errorf("expected path prefix /api/v1, got %s", cfg.Server.PathPrefix)
	}
	if cfg.Toggl.BaseURL != "https://api.track.toggl.com" {
		t.Errorf("expected Toggl base URL https://api.track.toggl.com, got %s", cfg.Toggl.BaseURL)
	}
	if cfg.Toggl.Timezone != "America/Los_Angeles" {
		t.Errorf("expected timezone America/Los_Angeles, got %s", cfg.Toggl.Timezone)
	}
	if cfg.Toggl.Source != "api" {
		t.Errorf("expected source api, got %s", cfg.Toggl.Source)
	}
	if cfg.Metrics.Backend != "csv" {
		t.Errorf("expected metrics backend csv, got %s", cfg.Metrics.Backend)
	}
	if cfg.LLM.DisableRuleFallback {
		t.Error("expected rule fallback enabled by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config with api token",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "valid config with email and password",
			modify: func(c *Config) {
				c.Toggl.APIToken = ""
				c.Toggl.Email = "user@example.com"
				c.Toggl.Password = "secret"
			},
			wantErr: false,
		},
		{
			name:    "missing app name",
			modify:  func(c *Config) { c.App.Name = "" },
			wantErr: true,
		},
		{
			name:    "port too low",
			modify:  func(c *Config) { c.Server.Port = 0 },
			wantErr: true,
		},
		{
			name:    "port too high",
			modify:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name: "api source without credentials",
			modify: func(c *Config) {
				c.Toggl.APIToken = ""
				c.Toggl.Email = ""
				c.Toggl.Password = ""
			},
			wantErr: true,
		},
		{
			name: "api source with email but no password",
			modify: func(c *Config) {
				c.Toggl.APIToken = ""
				c.Toggl.Email = "user@example.com"
			},
			wantErr: true,
		},
		{
			name: "export source without globs",
			modify: func(c *Config) {
				c.Toggl.Source = "export"
			},
			wantErr: true,
		},
		{
			name: "export source with globs",
			modify: func(c *Config) {
				c.Toggl.Source = "export"
				c.Toggl.ExportGlobs = []string{"exports/*.csv"}
			},
			wantErr: false,
		},
		{
			name:    "unknown source",
			modify:  func(c *Config) { c.Toggl.Source = "scraper" },
			wantErr: true,
		},
		{
			name:    "invalid timezone",
			modify:  func(c *Config) { c.Toggl.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name:    "unknown metrics backend",
			modify:  func(c *Config) { c.Metrics.Backend = "statsd" },
			wantErr: true,
		},
		{
			name: "pushgateway backend without URL",
			modify: func(c *Config) {
				c.Metrics.Backend = "pushgateway"
			},
			wantErr: true,
		},
		{
			name: "pushgateway backend with URL",
			modify: func(c *Config) {
				c.Metrics.Backend = "pushgateway"
				c.Metrics.PushgatewayURL = "http://localhost:9091"
			},
			wantErr: false,
		},
		{
			name:    "csv backend without path",
			modify:  func(c *Config) { c.Metrics.CSVPath = "" },
			wantErr: true,
		},
		{
			name:    "missing rules path",
			modify:  func(c *Config) { c.Rules.Path = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
app:
  name: "test-app"
  debug: true
server:
  port: 9090
toggl:
  api_token: "tok-123"
  workspace_id: 42
  timeout: 45s
metrics:
  backend: "pushgateway"
  pushgateway_url: "http://pushgw:9091"
events:
  url: "nats://test:4222"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.App.Name != "test-app" {
		t.Errorf("expected app name test-app, got %s", cfg.App.Name)
	}
	if !cfg.App.Debug {
		t.Error("expected debug true")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Toggl.APIToken != "tok-123" {
		t.Errorf("expected API token tok-123, got %s", cfg.Toggl.APIToken)
	}
	if cfg.Toggl.WorkspaceID != 42 {
		t.Errorf("expected workspace 42, got %d", cfg.Toggl.WorkspaceID)
	}
	if cfg.Toggl.Timeout != 45*time.Second {
		t.Errorf("expected timeout 45s, got %v", cfg.Toggl.Timeout)
	}
	// Defaults survive for fields the file does not set
	if cfg.Toggl.BaseURL != "https://api.track.toggl.com" {
		t.Errorf("expected default Toggl base URL, got %s", cfg.Toggl.BaseURL)
	}
	if cfg.Metrics.Backend != "pushgateway" {
		t.Errorf("expected backend pushgateway, got %s", cfg.Metrics.Backend)
	}
	if cfg.Metrics.PushgatewayURL != "http://pushgw:9091" {
		t.Errorf("expected pushgateway URL http://pushgw:9091, got %s", cfg.Metrics.PushgatewayURL)
	}
	if cfg.Events.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.Events.URL)
	}
}

func TestLoadFromFileExpandsEnv(t *testing.T) {
	t.Setenv("DAYLYTICS_TEST_TOKEN", "from-env")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
toggl:
  api_token: "${DAYLYTICS_TEST_TOKEN}"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Toggl.APIToken != "from-env" {
		t.Errorf("expected expanded token from-env, got %s", cfg.Toggl.APIToken)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		App: AppConfig{
			Name: "override-app",
		},
		Toggl: TogglConfig{
			APIToken: "override-token",
		},
		Metrics: MetricsConfig{
			Backend: "pushgateway",
		},
	}

	base.Merge(override)

	if base.App.Name != "override-app" {
		t.Errorf("expected app name override-app, got %s", base.App.Name)
	}
	if base.Toggl.APIToken != "override-token" {
		t.Errorf("expected token override-token, got %s", base.Toggl.APIToken)
	}
	if base.Metrics.Backend != "pushgateway" {
		t.Errorf("expected backend pushgateway, got %s", base.Metrics.Backend)
	}
	// Fields the override did not set remain from base
	if base.Server.Port != 8080 {
		t.Errorf("expected port to remain 8080, got %d", base.Server.Port)
	}
	if base.Toggl.BaseURL != "https://api.track.toggl.com" {
		t.Errorf("expected base URL to remain default, got %s", base.Toggl.BaseURL)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.App.Name = "saved-app"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.App.Name != "saved-app" {
		t.Errorf("expected app name saved-app, got %s", loaded.App.Name)
	}
}

func TestApplyEnvOverridesCredentials(t *testing.T) {
	t.Setenv("DAYLYTICS_TOGGL_API_TOKEN", "env-token")
	t.Setenv("DAYLYTICS_NATS_URL", "nats://env:4222")

	cfg := DefaultConfig()
	applyEnv(cfg)

	if cfg.Toggl.APIToken != "env-token" {
		t.Errorf("expected token env-token, got %s", cfg.Toggl.APIToken)
	}
	if cfg.Events.URL != "nats://env:4222" {
		t.Errorf("expected NATS URL nats://env:4222, got %s", cfg.Events.URL)
	}
}

func TestLoaderLayering(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	// User layer sets the port and a token.
	userPath := filepath.Join(home, UserConfigPath)
	if err := os.MkdirAll(filepath.Dir(userPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(userPath, []byte("server:\n  port: 9001\ntoggl:\n  api_token: user-token\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Project layer overrides the port, found from a nested directory.
	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte("server:\n  port: 9002\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(project, "reports", "august")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	// Environment overrides the token.
	t.Setenv("DAYLYTICS_TOGGL_API_TOKEN", "env-token")

	cfg, err := NewLoader(nil).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9002 {
		t.Errorf("project layer should win over user layer, got port %d", cfg.Server.Port)
	}
	if cfg.Toggl.APIToken != "env-token" {
		t.Errorf("environment should win over files, got token %s", cfg.Toggl.APIToken)
	}
	if cfg.App.Name != "daylytics" {
		t.Errorf("defaults should fill unset fields, got app name %s", cfg.App.Name)
	}
}

func TestLoaderSkipsMalformedLayer(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	userPath := filepath.Join(home, UserConfigPath)
	if err := os.MkdirAll(filepath.Dir(userPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(userPath, []byte("server: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(t.TempDir())

	cfg, err := NewLoader(nil).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("broken optional layer should be skipped, got port %d", cfg.Server.Port)
	}
}

func TestLoaderLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explicit.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DAYLYTICS_TOGGL_EMAIL", "env@example.com")

	cfg, err := NewLoader(nil).LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Toggl.Email != "env@example.com" {
		t.Errorf("expected env email overlay, got %s", cfg.Toggl.Email)
	}

	if _, err := NewLoader(nil).LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing explicit file")
	}
}

func TestEnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	loader := NewLoader(nil)
	path, err := loader.EnsureUserConfig()
	if err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}
	if want := filepath.Join(home, UserConfigPath); path != want {
		t.Errorf("expected path %s, got %s", want, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file to exist: %v", err)
	}

	// A second call must leave an edited file alone.
	if err := os.WriteFile(path, []byte("app:\n  name: custom\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loader.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig() second call error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "app:\n  name: custom\n" {
		t.Error("existing user config should not be rewritten")
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 9000}
	if got := s.Addr(); got != "127.0.0.1:9000" {
		t.Errorf("expected 127.0.0.1:9000, got %s", got)
	}
}
