package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taguhoiya/mansion-watch-scraper-sub000/api"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/config"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/httputil"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/logging"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/scheduler"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/scraper"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/services"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/storage"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/webhook"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/workers"
)

var (
	scrapeURL  = flag.String("scrape-url", "", "Scrape a single listing URL and exit")
	scrapeUser = flag.String("user", "", "Subscriber id to attach to a one-shot scrape")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogFile, cfg.LogMaxSize)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting mansion-watch scraper...")
	log.Printf("Source: %s (%s)", cfg.Source.Name, cfg.Source.AllowedHost)

	clients := httputil.NewClients()
	ctx := context.Background()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()

	if err := pgStore.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	log.Println("Connected to Postgres")

	sqliteStore, err := storage.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("Job trace database: %s", cfg.SQLitePath)

	var images *workers.ImagePipeline
	if cfg.ObjectStore.AccessKeyID != "" {
		uploader, err := storage.NewS3Uploader(ctx, cfg.ObjectStore)
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
		images = workers.NewImagePipeline(uploader, pgStore, clients.Images, cfg.Images, cfg.Source.Referer, cfg.ObjectStore.Folder)
		log.Printf("Object storage: %s/%s", cfg.ObjectStore.Bucket, cfg.ObjectStore.Folder)
	} else {
		log.Println("No object storage credentials, image ingestion disabled")
	}

	spider := scraper.NewSpider(clients.Scraping, cfg.Source)
	pipeline := services.NewPipeline(pgStore)
	orchestrator := scraper.NewOrchestrator(spider, pipeline, images, sqliteStore, cfg.JobTimeout)

	if cfg.WebhookURL != "" {
		orchestrator.SetNotifier(webhook.NewNotifier(cfg.WebhookURL))
		log.Println("Outbound notifier configured")
	}

	// One-shot mode
	if *scrapeURL != "" {
		if err := orchestrator.RunJob(ctx, *scrapeURL, *scrapeUser); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg.Scheduler, orchestrator, pgStore)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	server := api.NewServer(cfg.APIAddr, pgStore, sqliteStore, orchestrator)
	server.Start()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: API shutdown: %v", err)
	}
	log.Println("Goodbye!")
}
