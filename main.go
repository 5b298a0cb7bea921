package main

import (
	"log"

	"github.com/joho/godotenv"

	"protevent/api"
	"protevent/combiner"
	"protevent/config"
	"protevent/cron"
	"protevent/database"
	"protevent/events"
	"protevent/export"
	"protevent/monitoring"
	"protevent/signaling"
	"protevent/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.LoadConfig()
	if err := cfg.CheckRequired(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	log.Println("All required environment variables are set. Proceeding with startup...")

	config.EnsurePaths(cfg)

	// Export history database
	db, err := database.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite database: %v", err)
	}
	defer db.Close()

	// Optional upload of merged clips to R2
	var uploader export.Uploader
	if cfg.R2Enabled {
		r2, err := storage.NewR2Storage(storage.R2Config{
			AccessKey: cfg.R2AccessKey,
			SecretKey: cfg.R2SecretKey,
			AccountID: cfg.R2AccountID,
			Bucket:    cfg.R2Bucket,
			Endpoint:  cfg.R2Endpoint,
			Region:    cfg.R2Region,
			BaseURL:   cfg.R2BaseURL,
		})
		if err != nil {
			log.Fatalf("Failed to initialize R2 storage: %v", err)
		}
		uploader = r2
	}

	// Export pipeline: archiver with retries, then segment combination
	invoker := export.NewProtectArchiver(cfg.ProtectAddress, cfg.ProtectUsername, cfg.ProtectPassword, cfg.ExportTimeout)
	retry := export.RetryPolicy{MaxRetries: cfg.MaxRetries, Delay: cfg.RetryDelay}
	comb := combiner.New(cfg.MergeTolerance, cfg.KeepSplitFiles)
	pipeline := export.NewPipeline(invoker, retry, comb, db, uploader, cfg.DownloadsPath, cfg.ExportConcurrency)

	// Event registry with per-event export timers
	registry := events.NewRegistry(cfg.Timezone, pipeline.Run)

	// Background status reporter
	reporter := events.NewReporter(registry, cfg.LogInterval)
	reporter.Start()

	// Resource monitoring and retention cleanup
	monitoring.StartMonitoring(cfg.MonitorInterval, cfg.DownloadsPath)
	cron.StartCleanupCron(&cfg, db)

	// Optional serial motion trigger
	if cfg.SerialPort != "" {
		dispatcher := signaling.NewDispatcher(registry, cfg.SerialCameras, cfg.DefaultPastMinutes, cfg.DefaultFutureMinutes)
		trigger := signaling.NewSerialTrigger(cfg.SerialPort, cfg.SerialBaud, dispatcher.HandleSignal)
		if err := trigger.Connect(); err != nil {
			log.Printf("Warning: failed to connect serial trigger on %s: %v", cfg.SerialPort, err)
		} else {
			defer trigger.Close()
			log.Printf("Serial motion trigger listening on %s", cfg.SerialPort)
		}
	}

	// HTTP API, blocking
	server := api.NewServer(cfg, registry, db)
	server.Start()
}
