package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return errors.New("unsupported log format: " + format)
	}

	if strings.TrimSpace(level) == "" {
		level = "info"
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(parsed)
	return nil
}

func main() {
	var (
		configDir string
		logLevel  string
		logFormat string
	)
	flag.StringVar(&configDir, "config-dir", ".", "directory with optional .env file")
	flag.StringVar(&logLevel, "log-level", os.Getenv("STOREFRONT_LOG_LEVEL"), "log level: debug|info|warn|error")
	flag.StringVar(&logFormat, "log-format", os.Getenv("STOREFRONT_LOG_FORMAT"), "log format: text|json")
	flag.Parse()

	if err := setupLogger(logLevel, logFormat); err != nil {
		log.WithError(err).Fatal("некорректные настройки логирования")
	}

	cfg, err := app.LoadConfig(configDir)
	if err != nil {
		log.WithError(err).Fatal("не удалось загрузить конфигурацию")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"version":        version.String(),
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"backend_url":    cfg.BackendURL,
		"storage_driver": cfg.StorageDriver,
	}).Info("запускаем витрину")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("витрина остановлена")
}
