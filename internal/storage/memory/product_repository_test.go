package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/rms/internal/domain"
	"github.com/vladislavdragonenkov/rms/internal/storage/memory"
)

func newProduct(id string, available int32) domain.Product {
	now := time.Now().UTC()
	return domain.Product{
		ID:             id,
		Name:           "product " + id,
		SKU:            "sku-" + id,
		PriceMinor:     1000,
		TotalStock:     available,
		AvailableStock: available,
		WarehouseID:    "warehouse-1",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestProductRepository_CreateGet(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct("product-1", 100)

	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(product.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.AvailableStock != 100 {
		t.Fatalf("expected available 100, got %d", stored.AvailableStock)
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductRepository_SaveVersionConflict(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct("product-1", 100)
	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.Save(product); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	// Повторное сохранение со старой версией должно конфликтовать.
	if err := repo.Save(product); !domain.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestProductRepository_AdjustAvailable(t *testing.T) {
	repo := memory.NewProductRepository()
	if err := repo.Create(newProduct("product-1", 100)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	product, err := repo.AdjustAvailable("product-1", -30)
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if product.AvailableStock != 70 {
		t.Fatalf("expected available 70, got %d", product.AvailableStock)
	}

	_, err = repo.AdjustAvailable("product-1", -71)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 70 || stockErr.Requested != 71 {
		t.Fatalf("unexpected quantities in error: %+v", stockErr)
	}

	// Возврат остатка не выводит его выше TotalStock.
	product, err = repo.AdjustAvailable("product-1", 1000)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if product.AvailableStock != 100 {
		t.Fatalf("expected available capped at 100, got %d", product.AvailableStock)
	}
}

func TestProductRepository_DecrementAvailableAll(t *testing.T) {
	repo := memory.NewProductRepository()
	if err := repo.Create(newProduct("product-1", 10)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(newProduct("product-2", 3)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Второе списание не проходит по остатку, первое не должно примениться.
	err := repo.DecrementAvailableAll([]domain.StockDecrement{
		{ProductID: "product-1", Qty: 5},
		{ProductID: "product-2", Qty: 5},
	})
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductID != "product-2" || stockErr.Available != 3 || stockErr.Requested != 5 {
		t.Fatalf("unexpected error detail: %+v", stockErr)
	}

	p1, _ := repo.Get("product-1")
	if p1.AvailableStock != 10 {
		t.Fatalf("all-or-nothing violated: product-1 available %d", p1.AvailableStock)
	}

	// Успешный сценарий списывает обе позиции.
	if err := repo.DecrementAvailableAll([]domain.StockDecrement{
		{ProductID: "product-1", Qty: 5},
		{ProductID: "product-2", Qty: 3},
	}); err != nil {
		t.Fatalf("decrement failed: %v", err)
	}

	p1, _ = repo.Get("product-1")
	p2, _ := repo.Get("product-2")
	if p1.AvailableStock != 5 || p2.AvailableStock != 0 {
		t.Fatalf("unexpected stock after decrement: p1=%d p2=%d", p1.AvailableStock, p2.AvailableStock)
	}
}
