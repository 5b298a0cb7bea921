package cron

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"protevent/config"
	"protevent/database"
)

// StartCleanupCron schedules a daily retention sweep that removes export
// folders and history rows older than the configured number of days.
func StartCleanupCron(cfg *config.Config, db database.Database) {
	if cfg.RetentionDays <= 0 {
		log.Println("Export retention cleanup disabled (UPEM_RETENTION_DAYS <= 0)")
		return
	}

	go func() {
		// Small startup delay so the first sweep doesn't race initial wiring
		time.Sleep(10 * time.Second)
		runCleanup(cfg, db)

		schedule := cron.New()
		_, err := schedule.AddFunc("@daily", func() {
			runCleanup(cfg, db)
		})
		if err != nil {
			log.Printf("Error scheduling cleanup cron: %v", err)
			return
		}
		schedule.Start()
		log.Printf("Export cleanup cron started - retention %d days", cfg.RetentionDays)
	}()
}

// runCleanup removes aged export folders and database rows.
func runCleanup(cfg *config.Config, db database.Database) {
	cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
	log.Printf("Running export cleanup, removing exports older than %s", cutoff.Format("2006-01-02"))

	removed := cleanupFolders(cfg.DownloadsPath, cutoff)
	if removed > 0 {
		log.Printf("Export cleanup removed %d folder(s)", removed)
	}

	if db != nil {
		rows, err := db.DeleteExportsBefore(cutoff)
		if err != nil {
			log.Printf("Error deleting old export records: %v", err)
		} else if rows > 0 {
			log.Printf("Export cleanup removed %d history row(s)", rows)
		}
	}
}

// cleanupFolders deletes per-identifier export directories whose latest
// content is older than cutoff. Returns how many were removed.
func cleanupFolders(downloadsPath string, cutoff time.Time) int {
	entries, err := os.ReadDir(downloadsPath)
	if err != nil {
		log.Printf("Error reading downloads directory for cleanup: %v", err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(downloadsPath, entry.Name())
		newest, err := newestModTime(dir)
		if err != nil {
			log.Printf("Error inspecting %s for cleanup: %v", dir, err)
			continue
		}
		if newest.Before(cutoff) {
			if err := os.RemoveAll(dir); err != nil {
				log.Printf("Error removing old export folder %s: %v", dir, err)
				continue
			}
			removed++
		}
	}
	return removed
}

// newestModTime returns the most recent modification time under dir,
// falling back to the directory's own time when empty.
func newestModTime(dir string) (time.Time, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return time.Time{}, err
	}
	newest := info.ModTime()

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.ModTime().After(newest) {
			newest = fi.ModTime()
		}
		return nil
	})
	return newest, err
}
