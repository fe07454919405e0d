package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
)

// StartLogRetentionCleaner deletes *.log files in logDir older than retentionDays,
// once immediately and then daily until ctx is done.
func StartLogRetentionCleaner(ctx context.Context, retentionDays int, logDir string) {
	if retentionDays <= 0 || strings.TrimSpace(logDir) == "" {
		Logger.Debug("log retention disabled",
			zap.Int("log_retention_days", retentionDays),
			zap.String("log_dir", logDir))
		return
	}

	sweep := func() {
		if err := deleteExpiredLogFiles(retentionDays, logDir, time.Now()); err != nil {
			Logger.Warn("log retention sweep failed", zap.Error(err))
		}
	}
	sweep()

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()

	Logger.Info("log retention cleaner started",
		zap.Int("log_retention_days", retentionDays),
		zap.String("log_dir", logDir))
}

func deleteExpiredLogFiles(retentionDays int, logDir string, now time.Time) error {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "read log directory")
	}

	cutoff := now.UTC().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".log") {
			continue
		}

		fullPath := filepath.Join(logDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			Logger.Warn("skip log file without metadata", zap.String("log_path", fullPath), zap.Error(err))
			continue
		}
		if !info.ModTime().UTC().Before(cutoff) {
			continue
		}

		if err := os.Remove(fullPath); err != nil {
			Logger.Warn("failed to delete expired log file", zap.String("log_path", fullPath), zap.Error(err))
			continue
		}
		Logger.Info("deleted expired log file", zap.String("log_path", fullPath))
	}

	return nil
}
