package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/btq-lab/batch-watcher/internal/api"
	"github.com/btq-lab/batch-watcher/internal/config"
	"github.com/btq-lab/batch-watcher/internal/notifications"
	"github.com/btq-lab/batch-watcher/internal/poller"
	"github.com/btq-lab/batch-watcher/internal/registry"
	"github.com/btq-lab/batch-watcher/internal/slurm"
	"github.com/btq-lab/batch-watcher/pkg/templates"
	"github.com/dimiro1/banner"
	"github.com/joho/godotenv"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

const bannerText = `
{{ .Title "Batch Watcher" "" 0 }}
{{ .AnsiBackground.BrightBlue }}{{ .AnsiColor.White }}
{{ .AnsiReset }}
`

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Printf("No .env or .env.local file found. Using environment variables.\n")
		}
	}

	banner.Init(colorable.NewColorableStdout(), true, true, strings.NewReader(bannerText))

	configPath := flag.String("config", "config/config.json", "path to config file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          false,
		DisableTimestamp:       false,
		TimestampFormat:        "2006-01-02T15:04:05-07:00",
		DisableLevelTruncation: false,
		PadLevelText:           false,
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	slurmTimeout, err := time.ParseDuration(cfg.Slurm.Timeout)
	if err != nil {
		logger.Fatalf("Invalid slurm timeout: %v", err)
	}

	client := slurm.NewClient(logger, slurmTimeout)
	info := client.Detect()

	reg := registry.NewJobRegistry(client, logger)

	slack, err := notifications.NewSlackService(logger)
	if err != nil {
		logger.Warnf("Failed to initialize Slack service: %v", err)
	}
	notifier := notifications.NewNotificationService(slack, logger)

	handler := api.NewHandler(reg, client, notifier, logger, cfg)

	interval, err := time.ParseDuration(cfg.Poller.Interval)
	if err != nil {
		logger.Fatalf("Invalid poller interval: %v", err)
	}
	p := poller.New(reg, notifier, logger, interval)

	go p.Start()

	var templateNames []string
	if file, err := templates.Load(cfg.Templates.Path); err != nil {
		logger.Warnf("Failed to load job templates: %v", err)
	} else {
		templateNames = file.Names()
	}

	startupNotifier := notifications.NewStartupNotifier(slack, logger)
	go startupNotifier.NotifyStartup(info, templateNames)

	if err := handler.Scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	server := api.NewServer(handler, cfg.Server.Port)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	logger.Infof("Server started on port %s - Press Ctrl+C to stop.", cfg.Server.Port)

	<-stop
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p.Stop()
	handler.Scheduler.Stop()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}

	logger.Info("Server stopped")
}
