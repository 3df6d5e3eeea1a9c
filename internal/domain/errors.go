package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего имени клиента в заказе.
	ErrCustomerRequired = errors.New("customer_name is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_minor must be non-negative")
	// Ошибка отрицательной оплаченной суммы.
	ErrPaidNegative = errors.New("paid_minor must be non-negative")
	// Ошибка при некорректном количестве в позиции заказа (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// Ошибка отсутствующего идентификатора заказа в платеже.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка неположительной суммы платежа.
	ErrPaymentAmountInvalid = errors.New("payment amount must be greater than zero")
	// Ошибка отсутствующего имени товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отсутствующего склада у товара.
	ErrWarehouseRequired = errors.New("warehouse_id is required")
	// Ошибка отрицательной цены товара.
	ErrPriceNegative = errors.New("price_minor must be non-negative")
	// Ошибка отрицательного общего остатка.
	ErrTotalStockNegative = errors.New("total_stock must be non-negative")
	// Ошибка выхода доступного остатка за пределы 0..total_stock.
	ErrAvailableStockOutOfRange = errors.New("available_stock must be within 0..total_stock")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка отсутствующего идентификатора магазина.
	ErrShopIDRequired = errors.New("shop_id is required")
	// Ошибка неположительного количества в операции движения товара.
	ErrQtyInvalid = errors.New("qty must be greater than zero")
	// Ошибка отрицательных количеств в закреплении.
	ErrAssignmentQtyNegative = errors.New("assignment quantities must be non-negative")
	// Ошибка нарушения баланса закрепления: available + sold != quantity.
	ErrAssignmentUnbalanced = errors.New("assignment available + sold must equal quantity")
	// Ошибка неизвестного действия леджера.
	ErrInventoryActionUnknown = errors.New("unknown inventory action")
	// Ошибка повторного решения по уже рассмотренной заявке.
	ErrRequestReviewed = errors.New("assignment request already reviewed")
	// Ошибка перехода, запрещённого текущим статусом заказа.
	ErrOrderStatusInvalid = errors.New("operation is not allowed in current order status")

	// ErrProductNotFound возвращается, если товар не найден в репозитории.
	ErrProductNotFound = errors.New("product not found")
	// ErrAssignmentNotFound возвращается, если закрепление не найдено.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrRequestNotFound возвращается, если заявка на закрепление не найдена.
	ErrRequestNotFound = errors.New("assignment request not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")

	// ErrVersionConflict сигнализирует о конфликте версий при сохранении (optimistic locking).
	ErrVersionConflict = errors.New("version conflict")
	// ErrAssignmentExists возвращается при попытке создать второе закрепление
	// на пару (product, shop); вызывающий код должен слить количества в существующее.
	ErrAssignmentExists = errors.New("assignment already exists for product and shop")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// InsufficientStockError — на складе меньше товара, чем запрошено.
// Сообщение содержит оба количества: это часть контракта с фронтендом.
type InsufficientStockError struct {
	ProductID string
	Available int32
	Requested int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// ShopQuantityError — действие леджера вышло за допустимую границу.
type ShopQuantityError struct {
	AssignmentID string
	Action       InventoryAction
	Limit        int32
	Requested    int32
}

func (e *ShopQuantityError) Error() string {
	switch e.Action {
	case InventoryActionSale:
		return fmt.Sprintf("cannot sell %d units from assignment %s: available %d, requested %d",
			e.Requested, e.AssignmentID, e.Limit, e.Requested)
	case InventoryActionReturn:
		return fmt.Sprintf("cannot return %d units to assignment %s: sold %d, requested %d",
			e.Requested, e.AssignmentID, e.Limit, e.Requested)
	default:
		return fmt.Sprintf("adjustment for assignment %s out of range: limit %d, requested %d",
			e.AssignmentID, e.Limit, e.Requested)
	}
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsNotFound относит ошибку к классу «сущность не найдена» (404 на внешнем слое).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsValidation относит ошибку к классу доменных нарушений (400 на внешнем слое).
// Инфраструктурные ошибки сюда осознанно не попадают и остаются 500-классом.
func IsValidation(err error) bool {
	var stockErr *InsufficientStockError
	var shopErr *ShopQuantityError
	if errors.As(err, &stockErr) || errors.As(err, &shopErr) {
		return true
	}
	for _, sentinel := range []error{
		ErrCustomerRequired, ErrItemsRequired, ErrAmountNegative, ErrPaidNegative,
		ErrItemQtyInvalid, ErrItemPriceInvalid, ErrAmountMismatch,
		ErrOrderIDRequired, ErrPaymentAmountInvalid,
		ErrProductNameRequired, ErrWarehouseRequired, ErrPriceNegative,
		ErrTotalStockNegative, ErrAvailableStockOutOfRange,
		ErrProductIDRequired, ErrShopIDRequired, ErrQtyInvalid,
		ErrAssignmentQtyNegative, ErrAssignmentUnbalanced,
		ErrInventoryActionUnknown, ErrRequestReviewed, ErrOrderStatusInvalid,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
