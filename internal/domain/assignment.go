package domain

import "time"

// InventoryAction описывает тип движения товара в магазине.
type InventoryAction string

const (
	// InventoryActionSale — продажа: часть доступного остатка переходит в проданный.
	InventoryActionSale InventoryAction = "sale"
	// InventoryActionReturn — возврат: проданный товар возвращается в доступный остаток.
	InventoryActionReturn InventoryAction = "return"
	// InventoryActionAdjustment — ручная корректировка: проданное количество задаётся абсолютным значением.
	InventoryActionAdjustment InventoryAction = "adjustment"
)

// Assignment описывает закрепление товара за магазином.
// На пару (ProductID, ShopID) существует не более одной записи: повторное
// назначение сливается в существующую (restock), а не создаёт дубликат.
type Assignment struct {
	ID          string
	ProductID   string
	ShopID      string
	WarehouseID string
	// Quantity — накопленное количество, когда-либо назначенное магазину.
	Quantity int32
	// AvailableQty — доступный к продаже остаток в магазине.
	AvailableQty int32
	// SoldQty — накопленное проданное количество.
	SoldQty    int32
	AssignedBy string
	AssignedAt time.Time
	Version    int64
	UpdatedAt  time.Time
}

// ValidateInvariants проверяет инварианты закрепления.
// Главный из них: AvailableQty + SoldQty == Quantity — леджер не теряет
// и не создаёт количество.
func (a *Assignment) ValidateInvariants() []error {
	var errs []error

	if a.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if a.ShopID == "" {
		errs = append(errs, ErrShopIDRequired)
	}
	if a.Quantity < 0 || a.AvailableQty < 0 || a.SoldQty < 0 {
		errs = append(errs, ErrAssignmentQtyNegative)
	}
	if a.AvailableQty+a.SoldQty != a.Quantity {
		errs = append(errs, ErrAssignmentUnbalanced)
	}

	return errs
}

// InventoryChange фиксирует результат применения действия к закреплению.
type InventoryChange struct {
	Action          InventoryAction
	Delta           int32
	SoldBefore      int32
	SoldAfter       int32
	AvailableBefore int32
	AvailableAfter  int32
}

// ApplyInventoryAction применяет действие к закреплению и возвращает описание
// изменения. Все три ветки сохраняют баланс AvailableQty + SoldQty == Quantity.
func (a *Assignment) ApplyInventoryAction(action InventoryAction, qty int32) (InventoryChange, error) {
	change := InventoryChange{
		Action:          action,
		Delta:           qty,
		SoldBefore:      a.SoldQty,
		AvailableBefore: a.AvailableQty,
	}

	switch action {
	case InventoryActionSale:
		if qty <= 0 {
			return InventoryChange{}, ErrQtyInvalid
		}
		if qty > a.AvailableQty {
			return InventoryChange{}, &ShopQuantityError{
				AssignmentID: a.ID,
				Action:       action,
				Limit:        a.AvailableQty,
				Requested:    qty,
			}
		}
		a.SoldQty += qty
		a.AvailableQty -= qty
	case InventoryActionReturn:
		if qty <= 0 {
			return InventoryChange{}, ErrQtyInvalid
		}
		if qty > a.SoldQty {
			return InventoryChange{}, &ShopQuantityError{
				AssignmentID: a.ID,
				Action:       action,
				Limit:        a.SoldQty,
				Requested:    qty,
			}
		}
		a.SoldQty -= qty
		a.AvailableQty += qty
	case InventoryActionAdjustment:
		// Корректировка задаёт проданное количество абсолютным значением.
		if qty < 0 || qty > a.Quantity {
			return InventoryChange{}, &ShopQuantityError{
				AssignmentID: a.ID,
				Action:       action,
				Limit:        a.Quantity,
				Requested:    qty,
			}
		}
		change.Delta = qty - a.SoldQty
		a.SoldQty = qty
		a.AvailableQty = a.Quantity - qty
	default:
		return InventoryChange{}, ErrInventoryActionUnknown
	}

	change.SoldAfter = a.SoldQty
	change.AvailableAfter = a.AvailableQty
	return change, nil
}

// Merge добавляет новое назначение к существующему (restock).
// Количества накапливаются, метаданные перезаписываются последним вызовом.
func (a *Assignment) Merge(qty int32, warehouseID, assignedBy string, at time.Time) {
	a.Quantity += qty
	a.AvailableQty += qty
	a.WarehouseID = warehouseID
	a.AssignedBy = assignedBy
	a.AssignedAt = at
	a.UpdatedAt = at
}
