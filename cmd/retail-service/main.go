package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/rms/internal/app"
	"github.com/vladislavdragonenkov/rms/internal/version"
)

const (
	envMetricsAddr         = "RMS_METRICS_ADDR"
	envStorageDriver       = "RMS_STORAGE_DRIVER"
	envPostgresDSN         = "RMS_POSTGRES_DSN"
	envPostgresAutoMigrate = "RMS_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers        = "RMS_KAFKA_BROKERS"
	envOutboxPollInterval  = "RMS_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "RMS_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "RMS_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "RMS_OUTBOX_RETRY_DELAY"
	envActivityQueueSize   = "RMS_ACTIVITY_QUEUE_SIZE"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

type lookupFn func(key string) (string, bool)

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Непарсящиеся значения не прерывают запуск: возвращаются как warnings,
// а поле остаётся со значением по умолчанию.
func readConfigFromEnv(lookup lookupFn) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	if v, ok := lookup(envMetricsAddr); ok && strings.TrimSpace(v) != "" {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}
	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = app.StorageDriver(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(envPostgresDSN); ok && strings.TrimSpace(v) != "" {
		cfg.PostgresDSN = strings.TrimSpace(v)
		// Заданный DSN переключает хранилище, если драйвер не задан явно.
		if _, explicit := lookup(envStorageDriver); !explicit {
			cfg.StorageDriver = app.StorageDriverPostgres
		}
	}
	if v, ok := lookup(envPostgresAutoMigrate); ok {
		if parsed, err := parseBool(v); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envPostgresAutoMigrate, err))
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = strings.TrimSpace(v)
	}
	if v, ok := lookup(envOutboxPollInterval); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(v)); err != nil || parsed <= 0 {
			warnings = append(warnings, fmt.Sprintf("%s: invalid duration %q", envOutboxPollInterval, v))
		} else {
			cfg.OutboxPollInterval = parsed
		}
	}
	if v, ok := lookup(envOutboxRetryDelay); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(v)); err != nil || parsed < 0 {
			warnings = append(warnings, fmt.Sprintf("%s: invalid duration %q", envOutboxRetryDelay, v))
		} else {
			cfg.OutboxRetryDelay = parsed
		}
	}
	for _, intOpt := range []struct {
		env    string
		target *int
	}{
		{envOutboxBatchSize, &cfg.OutboxBatchSize},
		{envOutboxMaxAttempts, &cfg.OutboxMaxAttempts},
		{envActivityQueueSize, &cfg.ActivityQueueSize},
	} {
		if v, ok := lookup(intOpt.env); ok {
			if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err != nil || parsed <= 0 {
				warnings = append(warnings, fmt.Sprintf("%s: invalid positive integer %q", intOpt.env, v))
			} else {
				*intOpt.target = parsed
			}
		}
	}

	return cfg, warnings
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", v)
	}
}

func main() {
	setupLogger()

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"kafka":        cfg.KafkaBrokers != "",
		"version":      version.GetVersion(),
	}).Info("запускаем retail service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("retail service остановлен")
}
