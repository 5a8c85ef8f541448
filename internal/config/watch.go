package config

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Watch polls path every interval and calls fn with the freshly loaded
// configuration whenever the file's modification time or size changes. A
// reload that fails is logged and the previous configuration stays in
// effect. Watch returns when ctx is done.
func Watch(ctx context.Context, path string, interval time.Duration, fn func(*Config), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "config", "path", path)
	if interval <= 0 {
		interval = time.Second
	}

	last, err := os.Stat(path)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		info, err := os.Stat(path)
		if err != nil {
			logger.Warn("config stat failed", "error", err)
			continue
		}
		if info.ModTime().Equal(last.ModTime()) && info.Size() == last.Size() {
			continue
		}
		last = info

		logger.Info("configuration file changed, reloading")
		cfg, err := Load(path)
		if err != nil {
			logger.Error("config reload failed, keeping previous configuration", "error", err)
			continue
		}
		fn(cfg)
	}
}
