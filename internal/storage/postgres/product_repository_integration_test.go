package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

func TestProductRepository_PostgresCreateGetAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	product := sampleProduct("product-1", now)

	if err := repo.Create(product); err != nil {
		t.Fatalf("create product: %v", err)
	}

	got, err := repo.Get(product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Name != product.Name || got.TotalStock != product.TotalStock || got.AvailableStock != product.AvailableStock {
		t.Fatalf("unexpected product payload: %+v", got)
	}

	got.Name = "renamed"
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Save(got); err != nil {
		t.Fatalf("save product: %v", err)
	}

	updated, err := repo.Get(product.ID)
	if err != nil {
		t.Fatalf("get updated product: %v", err)
	}
	if updated.Name != "renamed" {
		t.Fatalf("unexpected name after save: %s", updated.Name)
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("unexpected version after save: got=%d want=%d", updated.Version, got.Version+1)
	}

	stale := updated
	stale.Version = 42
	if err := repo.Save(stale); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on stale save, got %v", err)
	}
}

func TestProductRepository_PostgresAdjustAvailable(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	product := sampleProduct("product-adjust", now)
	if err := repo.Create(product); err != nil {
		t.Fatalf("create product: %v", err)
	}

	after, err := repo.AdjustAvailable(product.ID, -30)
	if err != nil {
		t.Fatalf("adjust available: %v", err)
	}
	if after.AvailableStock != 70 {
		t.Fatalf("unexpected available stock: got=%d want=70", after.AvailableStock)
	}

	_, err = repo.AdjustAvailable(product.ID, -100)
	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 70 || insufficient.Requested != 100 {
		t.Fatalf("unexpected shortage details: %+v", insufficient)
	}

	// Возврат не поднимает остаток выше total_stock.
	after, err = repo.AdjustAvailable(product.ID, 500)
	if err != nil {
		t.Fatalf("adjust available up: %v", err)
	}
	if after.AvailableStock != product.TotalStock {
		t.Fatalf("available exceeded total: got=%d want=%d", after.AvailableStock, product.TotalStock)
	}

	if _, err := repo.AdjustAvailable("missing-product", -1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductRepository_PostgresDecrementAvailableAll(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	first := sampleProduct("product-dec-1", now)
	second := sampleProduct("product-dec-2", now)
	second.TotalStock = 5
	second.AvailableStock = 5

	if err := repo.Create(first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := repo.Create(second); err != nil {
		t.Fatalf("create second: %v", err)
	}

	// Вторая позиция не проходит: списание не должно затронуть первую.
	err := repo.DecrementAvailableAll([]domain.StockDecrement{
		{ProductID: first.ID, Qty: 10},
		{ProductID: second.ID, Qty: 6},
	})
	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}

	got, err := repo.Get(first.ID)
	if err != nil {
		t.Fatalf("get first after failed batch: %v", err)
	}
	if got.AvailableStock != first.AvailableStock {
		t.Fatalf("partial decrement leaked: got=%d want=%d", got.AvailableStock, first.AvailableStock)
	}

	if err := repo.DecrementAvailableAll([]domain.StockDecrement{
		{ProductID: first.ID, Qty: 10},
		{ProductID: second.ID, Qty: 5},
	}); err != nil {
		t.Fatalf("decrement all: %v", err)
	}

	got, err = repo.Get(second.ID)
	if err != nil {
		t.Fatalf("get second after batch: %v", err)
	}
	if got.AvailableStock != 0 {
		t.Fatalf("unexpected second stock: got=%d want=0", got.AvailableStock)
	}
}

func sampleProduct(id string, createdAt time.Time) domain.Product {
	return domain.Product{
		ID:             id,
		Name:           "sample product",
		SKU:            "SKU-" + id,
		PriceMinor:     1500,
		TotalStock:     100,
		AvailableStock: 100,
		WarehouseID:    "warehouse-1",
		CategoryID:     "category-1",
		Version:        0,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}
