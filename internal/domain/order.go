package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusCreated — заказ создан, оплата не начата.
	OrderStatusCreated OrderStatus = "created"
	// OrderStatusPendingPayment — оплата начата, но не покрывает сумму заказа.
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	// OrderStatusPaid — оплата покрывает сумму заказа.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusAssignedPackager — заказу назначен упаковщик.
	OrderStatusAssignedPackager OrderStatus = "assigned_packager"
	// OrderStatusPackaged — заказ упакован и ждёт выдачи.
	OrderStatusPackaged OrderStatus = "packaged"
	// OrderStatusPickedUp — заказ забран для доставки.
	OrderStatusPickedUp OrderStatus = "picked_up"
	// OrderStatusDelivered — терминальный статус: выдача подтверждена, остатки списаны.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCanceled — боковая ветка: заказ отменён до выдачи.
	OrderStatusCanceled OrderStatus = "canceled"
)

// OrderItem представляет одну позицию заказа.
// Позиции неизменяемы после создания заказа.
type OrderItem struct {
	ID         string
	ProductID  string
	Qty        int32
	PriceMinor int64
	CreatedAt  time.Time
}

// Order агрегирует состояние заказа, его позиции и участников конвейера.
// Роли (Attendee/Receptionist/Packager/Storekeeper) фиксируют, кто выполнил
// соответствующий шаг; пустая строка означает «шаг ещё не выполнялся».
type Order struct {
	ID             string
	CustomerName   string
	ShopID         string
	Status         OrderStatus
	PaymentStatus  PaymentClass
	PaymentMethod  string
	TotalMinor     int64
	PaidMinor      int64
	AttendeeID     string
	ReceptionistID string
	PackagerID     string
	StorekeeperID  string
	Items          []OrderItem
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerName == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.ShopID == "" {
		errs = append(errs, ErrShopIDRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if o.PaidMinor < 0 {
		errs = append(errs, ErrPaidNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.PriceMinor
	}
	if calc != o.TotalMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// IsTerminal сообщает, завершён ли жизненный цикл заказа.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusDelivered || o.Status == OrderStatusCanceled
}

// CanAssignPackager проверяет, допускает ли текущий статус назначение упаковщика.
// Назначение разрешено только после полной оплаты; повторное назначение допустимо.
func (o *Order) CanAssignPackager() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusAssignedPackager
}

// CanRelease проверяет, допускает ли текущий статус выдачу заказа.
// Выдача возможна только из оплаченных не-терминальных статусов.
func (o *Order) CanRelease() bool {
	switch o.Status {
	case OrderStatusPaid, OrderStatusAssignedPackager, OrderStatusPackaged, OrderStatusPickedUp:
		return true
	default:
		return false
	}
}
