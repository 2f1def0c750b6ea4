// Package startup provides utilities for application startup tasks.
package startup

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pixelharbor/mediaworker/internal/pipeline"
)

// CleanupOrphanedWorkDirs removes per-job work directories left under the
// temp root by a crashed worker. Only directories matching the pipeline's
// work dir prefix and older than maxAge are touched: a concurrent worker
// on the same host may be mid-job in a fresh one.
//
// Returns the number of directories removed.
func CleanupOrphanedWorkDirs(logger *slog.Logger, tempRoot string, maxAge time.Duration) (int, error) {
	if _, err := os.Stat(tempRoot); os.IsNotExist(err) {
		logger.Debug("temp root does not exist, skipping cleanup",
			"path", tempRoot,
		)
		return 0, nil
	}

	entries, err := os.ReadDir(tempRoot)
	if err != nil {
		logger.Error("failed to read temp root for cleanup",
			"path", tempRoot,
			"error", err,
		)
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if !strings.HasPrefix(entry.Name(), pipeline.WorkDirPrefix) {
			continue
		}

		dirPath := filepath.Join(tempRoot, entry.Name())

		info, err := entry.Info()
		if err != nil {
			logger.Warn("failed to stat work dir, skipping",
				"path", dirPath,
				"error", err,
			)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			logger.Warn("failed to remove orphaned work dir",
				"path", dirPath,
				"error", err,
			)
			continue
		}

		logger.Info("removed orphaned work dir",
			"path", dirPath,
			"age", time.Since(info.ModTime()).Round(time.Second).String(),
		)
		removed++
	}

	return removed, nil
}
