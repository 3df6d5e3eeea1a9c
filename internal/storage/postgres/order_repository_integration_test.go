package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

func TestOrderRepository_PostgresCreateGetListAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleStoredOrder("order-1", "shop-1", now.Add(-2*time.Minute))
	order2 := sampleStoredOrder("order-2", "shop-1", now.Add(-time.Minute))

	if err := repo.Create(order1); err != nil {
		t.Fatalf("create order1: %v", err)
	}
	if err := repo.Create(order2); err != nil {
		t.Fatalf("create order2: %v", err)
	}

	got, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.CustomerName != order1.CustomerName || got.Status != order1.Status || got.TotalMinor != order1.TotalMinor {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if len(got.Items) != len(order1.Items) {
		t.Fatalf("unexpected items count: got=%d want=%d", len(got.Items), len(order1.Items))
	}

	listed, err := repo.ListByShop("shop-1", 1)
	if err != nil {
		t.Fatalf("list by shop with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	all, err := repo.ListByShop("shop-1", 0)
	if err != nil {
		t.Fatalf("list by shop without limit: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}

	got.Status = domain.OrderStatusPaid
	got.PaymentStatus = domain.PaymentClassPaid
	got.PaidMinor = got.TotalMinor
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Save(got); err != nil {
		t.Fatalf("save order: %v", err)
	}

	updated, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get updated order: %v", err)
	}
	if updated.Status != domain.OrderStatusPaid || updated.PaidMinor != updated.TotalMinor {
		t.Fatalf("unexpected order after save: %+v", updated)
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("unexpected version after save: got=%d want=%d", updated.Version, got.Version+1)
	}
	if len(updated.Items) != len(order1.Items) {
		t.Fatalf("items changed on save: got=%d want=%d", len(updated.Items), len(order1.Items))
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	base := sampleStoredOrder("order-errors", "shop-2", now)

	if _, err := repo.Get("missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if err := repo.Save(base); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on save missing, got %v", err)
	}

	if err := repo.Create(base); err != nil {
		t.Fatalf("create base order: %v", err)
	}

	stale := base
	stale.Status = domain.OrderStatusPaid
	stale.UpdatedAt = now.Add(time.Minute)
	stale.Version = 42
	if err := repo.Save(stale); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on stale save, got %v", err)
	}
}

func sampleStoredOrder(id, shopID string, createdAt time.Time) domain.Order {
	items := []domain.OrderItem{
		{
			ID:         id + "-item-1",
			ProductID:  "product-1",
			Qty:        2,
			PriceMinor: 150,
			CreatedAt:  createdAt,
		},
	}

	return domain.Order{
		ID:            id,
		CustomerName:  "customer",
		ShopID:        shopID,
		Status:        domain.OrderStatusCreated,
		PaymentStatus: domain.PaymentClassUnpaid,
		TotalMinor:    300,
		PaidMinor:     0,
		Items:         items,
		Version:       0,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}
