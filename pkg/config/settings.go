// Package config loads and watches the server settings file.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Settings holds the runtime-tunable server settings. The file is
// optional; a missing file yields the zero value.
type Settings struct {
	RBAC struct {
		// Enabled toggles permission enforcement. When false every
		// request passes and responses are never redacted.
		Enabled bool `yaml:"enabled"`
	} `yaml:"rbac"`
}

// LoadSettings reads and parses the settings file.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return s, nil
}

// WatchSettings reloads the settings file whenever it changes and
// passes the result to onChange. It blocks until ctx is cancelled.
// Parse failures are logged and the previous settings stay in effect.
func WatchSettings(ctx context.Context, path string, logger *slog.Logger, onChange func(Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				logger.Error("settings reload failed", "path", path, "error", err)
				continue
			}
			if len(data) == 0 {
				// Writers truncate before writing; the zero-length state
				// is transient and the content write fires its own event.
				// Delivering it would flip every toggle to its zero value.
				continue
			}
			var settings Settings
			if err := yaml.Unmarshal(data, &settings); err != nil {
				logger.Error("settings reload failed", "path", path, "error", err)
				continue
			}
			logger.Info("settings reloaded", "path", path, "rbac_enabled", settings.RBAC.Enabled)
			onChange(settings)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("settings watcher error", "error", err)
		}
	}
}
