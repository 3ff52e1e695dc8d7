package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is found by walking up from the working
	// directory, so a checkout can carry its own settings.
	ProjectConfigFile = "daylytics.yaml"

	// UserConfigPath is the per-user file, relative to $HOME.
	UserConfigPath = ".config/daylytics/config.yaml"
)

// Loader assembles configuration in layers, lowest precedence first:
// built-in defaults, the user file, a project file, then DAYLYTICS_*
// environment variables for credentials. Validation is left to the
// caller, which knows whether the run needs credentials at all.
type Loader struct {
	logger *slog.Logger
}

func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load builds the effective configuration from every layer.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.mergeLayer(cfg, l.userConfigPath(), "user")
	l.mergeLayer(cfg, findProjectConfig(), "project")
	applyEnv(cfg)
	return cfg, nil
}

// LoadFile builds configuration from defaults plus one explicit file,
// skipping the user and project layers. Unlike those layers, a missing
// or malformed explicit file is an error.
func (l *Loader) LoadFile(path string) (*Config, error) {
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// mergeLayer overlays one optional file. Absent files are normal;
// unreadable or malformed ones are logged and skipped so a broken user
// file cannot take down every command.
func (l *Loader) mergeLayer(cfg *Config, path, layer string) {
	if path == "" {
		return
	}
	overlay, err := LoadFromFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("skipping config layer", "layer", layer, "path", path, "error", err)
		}
		return
	}
	l.logger.Debug("merged config layer", "layer", layer, "path", path)
	cfg.Merge(overlay)
}

// EnsureUserConfig writes a default user config file if none exists,
// for first runs.
func (l *Loader) EnsureUserConfig() (string, error) {
	path := l.userConfigPath()
	if path == "" {
		return "", errors.New("cannot locate home directory")
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := DefaultConfig().SaveToFile(path); err != nil {
		return "", err
	}
	l.logger.Info("created user config", "path", path)
	return path, nil
}

func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigPath)
}

// applyEnv overlays credentials and connection URLs from the
// environment. These always win over files, so tokens never have to be
// written to disk.
func applyEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"DAYLYTICS_TOGGL_API_TOKEN", &cfg.Toggl.APIToken},
		{"DAYLYTICS_TOGGL_EMAIL", &cfg.Toggl.Email},
		{"DAYLYTICS_TOGGL_PASSWORD", &cfg.Toggl.Password},
		{"DAYLYTICS_DATABASE_URL", &cfg.App.DatabaseURL},
		{"DAYLYTICS_NATS_URL", &cfg.Events.URL},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// findProjectConfig walks from the working directory toward the
// filesystem root looking for a project file.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
