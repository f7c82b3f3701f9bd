package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edvin/sitehelper/internal/api"
	"github.com/edvin/sitehelper/internal/config"
	"github.com/edvin/sitehelper/internal/core"
	"github.com/edvin/sitehelper/internal/db"
	"github.com/edvin/sitehelper/internal/email"
	"github.com/edvin/sitehelper/internal/llm"
	"github.com/edvin/sitehelper/internal/logging"
	"github.com/edvin/sitehelper/internal/metrics"
	"github.com/edvin/sitehelper/internal/scraper"
	"github.com/edvin/sitehelper/internal/storage"
)

const resendBaseURL = "https://api.resend.com"

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "publish-widget" {
		publishWidget(os.Args[2:])
		return
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	services := core.NewServices(pool, logger, core.Deps{
		Email:     email.NewClient(resendBaseURL, cfg.ResendAPIKey, cfg.EmailFromName, cfg.EmailFromAddr),
		LLM:       llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel),
		Scraper:   scraper.New(),
		AppURL:    cfg.AppURL,
		JWTSecret: cfg.JWTSecret,
		JWTIssuer: cfg.JWTIssuer,
	})
	defer services.Close()

	srv := api.NewServer(logger, pool, cfg, services)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}

// publishWidget uploads the embeddable widget script to the public bucket.
func publishWidget(args []string) {
	fs := flag.NewFlagSet("publish-widget", flag.ExitOnError)
	file := fs.String("file", "widget/sitehelper-widget.js", "Widget script to upload")
	key := fs.String("key", "widget.js", "Object key in the widget bucket")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.WidgetBucket == "" {
		fmt.Fprintln(os.Stderr, "error: WIDGET_BUCKET is required")
		os.Exit(1)
	}

	body, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to read %s: %v\n", *file, err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)
	publisher := storage.NewS3Publisher(logger, cfg.S3Endpoint, cfg.S3Region,
		cfg.S3AccessKeyID, cfg.S3SecretAccessKey, cfg.WidgetBucket)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := publisher.EnsureBucket(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to ensure bucket: %v\n", err)
		os.Exit(1)
	}
	if err := publisher.PublishWidget(ctx, *key, body, "application/javascript"); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to publish widget: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("published %s to s3://%s/%s (%d bytes)\n", *file, cfg.WidgetBucket, *key, len(body))
}
