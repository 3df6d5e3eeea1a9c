package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/rms/internal/health"
	"github.com/vladislavdragonenkov/rms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/rms/internal/service/activity"
	"github.com/vladislavdragonenkov/rms/internal/service/order"
	"github.com/vladislavdragonenkov/rms/internal/service/outbox"
	"github.com/vladislavdragonenkov/rms/internal/service/warehouse"
	"github.com/vladislavdragonenkov/rms/internal/version"
)

// App агрегирует собранные сервисы ядра. Транспортный слой (HTTP/gRPC
// контроллеры, авторизация) живёт вне этого модуля и работает с App
// через поля Warehouse и Orders.
type App struct {
	Warehouse warehouse.Service
	Orders    order.Service

	cfg      Config
	deps     *Dependencies
	activity *activity.Logger
	producer *kafka.Producer
	worker   *outbox.Worker
	logger   *log.Entry
}

// NewApp собирает зависимости и сервисы согласно конфигурации.
func NewApp(ctx context.Context, cfg Config) (*App, error) {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Kafka опционален: без брокеров события копятся в outbox.
	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}

	activityOptions := []activity.Option{
		activity.WithLogger(logger.WithField("component", "activity")),
	}
	if cfg.ActivityQueueSize > 0 {
		activityOptions = append(activityOptions, activity.WithQueueSize(cfg.ActivityQueueSize))
	}
	activityLogger := activity.NewLogger(deps.Activity, activityOptions...)

	var worker *outbox.Worker
	if producer != nil {
		worker = outbox.NewWorker(
			deps.Outbox,
			kafka.NewOutboxPublisher(producer),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
	}

	return &App{
		Warehouse: warehouse.NewService(
			deps.Products,
			deps.Assignments,
			deps.Requests,
			deps.Outbox,
			activityLogger,
			logger.WithField("component", "warehouse"),
		),
		Orders: order.NewService(
			deps.Orders,
			deps.Products,
			deps.Payments,
			deps.Outbox,
			activityLogger,
			logger.WithField("component", "order"),
		),
		cfg:      cfg,
		deps:     deps,
		activity: activityLogger,
		producer: producer,
		worker:   worker,
		logger:   logger,
	}, nil
}

// Close останавливает фоновые компоненты и освобождает ресурсы.
// Работающий outbox-воркер останавливается отменой контекста в Run.
func (a *App) Close() {
	a.activity.Close()
	closeKafka(a.producer, a.logger)
	a.deps.Close()
}

// Run собирает приложение и блокируется до отмены контекста:
// запускает outbox-воркер, HTTP-сервер метрик и health-пробы.
func Run(ctx context.Context, cfg Config) error {
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if app.deps.Store != nil {
		healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func() error {
			return app.deps.Store.Ping(ctx)
		}))
	}
	if app.producer == nil {
		healthHandler.RegisterChecker("kafka",
			healthcheck.NewStaticChecker("kafka", healthcheck.StatusDegraded, "kafka disabled"))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, app.logger, healthHandler)

	var wg sync.WaitGroup
	if app.worker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.worker.Run(ctx)
		}()
		app.logger.Info("outbox worker started")
	}

	app.logger.WithFields(log.Fields{
		"storage": cfg.StorageDriver,
		"kafka":   app.producer != nil,
		"version": version.GetVersion(),
	}).Info("retail service is ready")

	<-ctx.Done()
	app.logger.Info("получен сигнал остановки, останавливаем сервис")

	wg.Wait()
	shutdownHTTP(metricsSrv, app.logger)

	return ctx.Err()
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
