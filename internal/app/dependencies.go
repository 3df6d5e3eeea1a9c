package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/rms/internal/domain"
	"github.com/vladislavdragonenkov/rms/internal/storage/memory"
	"github.com/vladislavdragonenkov/rms/internal/storage/postgres"
)

// Dependencies содержит репозитории приложения поверх выбранного хранилища.
type Dependencies struct {
	Products    domain.ProductRepository
	Assignments domain.AssignmentRepository
	Requests    domain.AssignmentRequestRepository
	Orders      domain.OrderRepository
	Payments    domain.PaymentRepository
	Activity    domain.ActivityRepository
	Outbox      domain.OutboxRepository

	// Store ненулевой только для postgres-хранилища.
	Store  *postgres.Store
	Logger *log.Entry
}

// NewDependencies создаёт репозитории согласно cfg.StorageDriver.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		logger.Info("using in-memory storage")
		return &Dependencies{
			Products:    memory.NewProductRepository(),
			Assignments: memory.NewAssignmentRepository(),
			Requests:    memory.NewAssignmentRequestRepository(),
			Orders:      memory.NewOrderRepository(),
			Payments:    memory.NewPaymentRepository(),
			Activity:    memory.NewActivityRepository(),
			Outbox:      memory.NewOutboxRepository(),
			Logger:      logger,
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires a DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		logger.Info("using postgres storage")
		return &Dependencies{
			Products:    postgres.NewProductRepository(store),
			Assignments: postgres.NewAssignmentRepository(store),
			Requests:    postgres.NewAssignmentRequestRepository(store),
			Orders:      postgres.NewOrderRepository(store),
			Payments:    postgres.NewPaymentRepository(store),
			Activity:    postgres.NewActivityRepository(store),
			Outbox:      postgres.NewOutboxRepository(store),
			Store:       store,
			Logger:      logger,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() {
	if d == nil || d.Store == nil {
		return
	}
	if err := d.Store.Close(); err != nil {
		d.Logger.WithError(err).Warn("failed to close postgres store")
	}
}
