package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/rms/internal/domain"
	"github.com/vladislavdragonenkov/rms/internal/storage/memory"
)

func newAssignment(id, productID, shopID string, qty int32) domain.Assignment {
	now := time.Now().UTC()
	return domain.Assignment{
		ID:           id,
		ProductID:    productID,
		ShopID:       shopID,
		WarehouseID:  "warehouse-1",
		Quantity:     qty,
		AvailableQty: qty,
		AssignedBy:   "keeper-1",
		AssignedAt:   now,
		UpdatedAt:    now,
	}
}

func TestAssignmentRepository_CreateAndFind(t *testing.T) {
	repo := memory.NewAssignmentRepository()
	assignment := newAssignment("a-1", "product-1", "shop-1", 30)

	if err := repo.Create(assignment); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	found, err := repo.FindByProductShop("product-1", "shop-1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found.ID != "a-1" {
		t.Fatalf("expected a-1, got %s", found.ID)
	}

	if _, err := repo.FindByProductShop("product-1", "shop-2"); !errors.Is(err, domain.ErrAssignmentNotFound) {
		t.Fatalf("expected ErrAssignmentNotFound, got %v", err)
	}
}

// Пара (product, shop) уникальна: второе закрепление отклоняется,
// вызывающий код обязан слить количества в существующее.
func TestAssignmentRepository_UniquePair(t *testing.T) {
	repo := memory.NewAssignmentRepository()
	if err := repo.Create(newAssignment("a-1", "product-1", "shop-1", 30)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err := repo.Create(newAssignment("a-2", "product-1", "shop-1", 20))
	if !errors.Is(err, domain.ErrAssignmentExists) {
		t.Fatalf("expected ErrAssignmentExists, got %v", err)
	}

	// Другой магазин — другая пара, создание проходит.
	if err := repo.Create(newAssignment("a-3", "product-1", "shop-2", 20)); err != nil {
		t.Fatalf("create for another shop failed: %v", err)
	}
}

func TestAssignmentRepository_SaveVersionConflict(t *testing.T) {
	repo := memory.NewAssignmentRepository()
	assignment := newAssignment("a-1", "product-1", "shop-1", 30)
	if err := repo.Create(assignment); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.Save(assignment); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := repo.Save(assignment); !domain.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	stored, err := repo.Get("a-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Version != 1 {
		t.Fatalf("expected version 1, got %d", stored.Version)
	}
}

func TestAssignmentRepository_ListByShop(t *testing.T) {
	repo := memory.NewAssignmentRepository()
	if err := repo.Create(newAssignment("a-1", "product-1", "shop-1", 30)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(newAssignment("a-2", "product-2", "shop-1", 10)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(newAssignment("a-3", "product-1", "shop-2", 5)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	list, err := repo.ListByShop("shop-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(list))
	}
}
