package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// WatchLogLevel re-reads the config file whenever it changes on disk and
// invokes onChange with the new logging.level. It is a no-op when no config
// file is in use. Only the log level is hot-reloaded; every other setting
// requires a restart.
func WatchLogLevel(configPath string, onChange func(level string)) error {
	v, err := newViper(configPath)
	if err != nil {
		return err
	}
	if v.ConfigFileUsed() == "" {
		return nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := v.GetString("logging.level")
		if !validLogLevel(level) {
			slog.Warn("ignoring invalid log level from config reload", "file", e.Name, "level", level)
			return
		}
		slog.Info("config file changed, applying log level", "file", e.Name, "level", level)
		onChange(level)
	})
	v.WatchConfig()
	return nil
}

func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
