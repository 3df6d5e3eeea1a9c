package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/rms/internal/domain"
	"github.com/vladislavdragonenkov/rms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/rms/internal/metrics"
)

const (
	maxRetries = 3
	baseDelay  = 10 * time.Millisecond
)

// Service описывает жизненный цикл заказа: создание, оплату, конвейер
// упаковки и выдачу со списанием остатков.
type Service interface {
	Create(input CreateInput) (domain.Order, error)
	Get(orderID string) (domain.Order, error)
	ListByShop(shopID string, limit int) ([]domain.Order, error)

	UpdatePayment(orderID string, status domain.PaymentClass, method, receptionistID string) (domain.Order, error)
	RecordPayment(orderID string, amountMinor int64, method, reference, notes, recordedBy string) (PaymentResult, error)
	PaymentStatus(orderID string) (domain.PaymentSummary, error)
	Payments(orderID string) ([]domain.Payment, error)

	AssignPackager(orderID, packagerID, assignedBy string) (domain.Order, error)
	MarkPackaged(orderID, packagerID string) (domain.Order, error)
	MarkPickedUp(orderID, actorID string) (domain.Order, error)
	Release(orderID, storekeeperID string) (domain.Order, error)
	Cancel(orderID, canceledBy, reason string) (domain.Order, error)
}

// CreateInput — параметры создания заказа.
type CreateInput struct {
	CustomerName  string
	ShopID        string
	PaymentMethod string
	AttendeeID    string
	Items         []ItemInput
}

// ItemInput — одна позиция создаваемого заказа.
type ItemInput struct {
	ProductID  string
	Qty        int32
	PriceMinor int64
}

// PaymentResult — итог фиксации платежа.
type PaymentResult struct {
	Order   domain.Order
	Payment domain.Payment
	Summary domain.PaymentSummary
}

type service struct {
	orders   domain.OrderRepository
	products domain.ProductRepository
	payments domain.PaymentRepository
	outbox   domain.OutboxRepository
	activity domain.ActivityLogger
	logger   *log.Entry
	metrics  *metrics.InventoryMetrics
}

// NewService создаёт рабочий экземпляр сервиса заказов.
func NewService(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	payments domain.PaymentRepository,
	outbox domain.OutboxRepository,
	activity domain.ActivityLogger,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "order")
	}
	return &service{
		orders:   orders,
		products: products,
		payments: payments,
		outbox:   outbox,
		activity: activity,
		logger:   logger,
		metrics:  metrics.NewInventoryMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	payments domain.PaymentRepository,
	outbox domain.OutboxRepository,
	activity domain.ActivityLogger,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "order")
	}
	return &service{
		orders:   orders,
		products: products,
		payments: payments,
		outbox:   outbox,
		activity: activity,
		logger:   logger,
		metrics:  nil, // Отключаем метрики для тестов
	}
}

// Create строит заказ с позициями. Остатки на этом шаге не трогаются:
// товар списывается только при выдаче.
func (s *service) Create(input CreateInput) (domain.Order, error) {
	start := time.Now()
	defer s.observeOp("create_order", start)

	now := time.Now().UTC()

	items := make([]domain.OrderItem, 0, len(input.Items))
	var total int64
	for _, item := range input.Items {
		items = append(items, domain.OrderItem{
			ID:         uuid.NewString(),
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
			CreatedAt:  now,
		})
		total += int64(item.Qty) * item.PriceMinor
	}

	order := domain.Order{
		ID:            uuid.NewString(),
		CustomerName:  input.CustomerName,
		ShopID:        input.ShopID,
		Status:        domain.OrderStatusCreated,
		PaymentStatus: domain.PaymentClassUnpaid,
		PaymentMethod: input.PaymentMethod,
		TotalMinor:    total,
		AttendeeID:    input.AttendeeID,
		Items:         items,
		Version:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errs[0]
	}

	if err := s.orders.Create(order); err != nil {
		return domain.Order{}, err
	}

	s.logActivity(input.AttendeeID, "create_order", fmt.Sprintf(
		"order=%s shop=%s items=%d total_minor=%d", order.ID, order.ShopID, len(items), total))
	s.emitOrderEvent(kafka.EventTypeOrderCreated, order, map[string]interface{}{
		"items_count": len(items),
		"total_minor": total,
	})

	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"shop_id":     order.ShopID,
		"total_minor": total,
	}).Info("order created")

	return order, nil
}

func (s *service) Get(orderID string) (domain.Order, error) {
	return s.orders.Get(orderID)
}

func (s *service) ListByShop(shopID string, limit int) ([]domain.Order, error) {
	if shopID == "" {
		return nil, domain.ErrShopIDRequired
	}
	return s.orders.ListByShop(shopID, limit)
}

// UpdatePayment — административная правка платёжных полей заказа.
// Пара (total, paid) не сверяется: за согласованность отвечает RecordPayment.
func (s *service) UpdatePayment(orderID string, status domain.PaymentClass, method, receptionistID string) (domain.Order, error) {
	start := time.Now()
	defer s.observeOp("update_payment", start)

	return s.mutateWithRetry(orderID, func(order *domain.Order) error {
		if order.IsTerminal() {
			return domain.ErrOrderStatusInvalid
		}
		if status != "" {
			order.PaymentStatus = status
		}
		if method != "" {
			order.PaymentMethod = method
		}
		if receptionistID != "" {
			order.ReceptionistID = receptionistID
		}
		return nil
	}, func(order domain.Order) {
		s.logActivity(receptionistID, "update_payment", fmt.Sprintf(
			"order=%s payment_status=%s method=%s", orderID, order.PaymentStatus, order.PaymentMethod))
	})
}

// RecordPayment фиксирует платёж и пересчитывает платёжное состояние заказа.
// Когда оплата покрывает сумму, заказ из created/pending_payment
// продвигается в paid автоматически.
func (s *service) RecordPayment(orderID string, amountMinor int64, method, reference, notes, recordedBy string) (PaymentResult, error) {
	start := time.Now()
	defer s.observeOp("record_payment", start)

	payment := domain.Payment{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		AmountMinor: amountMinor,
		Method:      method,
		Reference:   reference,
		Notes:       notes,
		RecordedBy:  recordedBy,
		RecordedAt:  time.Now().UTC(),
	}
	if errs := payment.Validate(); len(errs) > 0 {
		return PaymentResult{}, errs[0]
	}

	var (
		summary    domain.PaymentSummary
		becamePaid bool
		prevStatus domain.OrderStatus
	)
	order, err := s.mutateWithRetry(orderID, func(order *domain.Order) error {
		if order.IsTerminal() {
			return domain.ErrOrderStatusInvalid
		}

		prevStatus = order.Status
		order.PaidMinor += amountMinor
		if method != "" {
			order.PaymentMethod = method
		}

		summary = domain.SummarizePayment(order.TotalMinor, order.PaidMinor, order.Status)
		order.PaymentStatus = summary.Class

		becamePaid = false
		switch order.Status {
		case domain.OrderStatusCreated, domain.OrderStatusPendingPayment:
			if summary.CanProceed {
				order.Status = domain.OrderStatusPaid
				becamePaid = true
			} else {
				order.Status = domain.OrderStatusPendingPayment
			}
		}
		return nil
	}, nil)
	if err != nil {
		return PaymentResult{}, err
	}

	if err := s.payments.Append(payment); err != nil {
		// Возвращаем заказ к состоянию до платежа: сумма и статус заказа
		// не должны расходиться со списком платежей.
		if _, compErr := s.mutateWithRetry(orderID, func(order *domain.Order) error {
			order.PaidMinor -= amountMinor
			switch order.Status {
			case domain.OrderStatusPaid, domain.OrderStatusPendingPayment:
				order.Status = prevStatus
			}
			rolled := domain.SummarizePayment(order.TotalMinor, order.PaidMinor, order.Status)
			order.PaymentStatus = rolled.Class
			return nil
		}, nil); compErr != nil {
			s.logger.WithError(compErr).WithFields(log.Fields{
				"order_id":   orderID,
				"payment_id": payment.ID,
			}).Error("failed to roll back order after payment append failure")
		}
		return PaymentResult{}, fmt.Errorf("append payment: %w", err)
	}

	// Сводка в ответе считается от итогового статуса заказа.
	summary = domain.SummarizePayment(order.TotalMinor, order.PaidMinor, order.Status)

	if s.metrics != nil {
		s.metrics.RecordPayment()
	}
	s.logActivity(recordedBy, "record_payment", fmt.Sprintf(
		"order=%s amount_minor=%d paid_minor=%d class=%s", orderID, amountMinor, order.PaidMinor, summary.Class))
	if becamePaid {
		s.emitOrderEvent(kafka.EventTypeOrderPaid, order, map[string]interface{}{
			"paid_minor":  order.PaidMinor,
			"total_minor": order.TotalMinor,
		})
	}

	return PaymentResult{Order: order, Payment: payment, Summary: summary}, nil
}

// PaymentStatus возвращает расчётную сводку по оплате заказа.
func (s *service) PaymentStatus(orderID string) (domain.PaymentSummary, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.PaymentSummary{}, err
	}
	return domain.SummarizePayment(order.TotalMinor, order.PaidMinor, order.Status), nil
}

// Payments возвращает зафиксированные платежи по заказу.
func (s *service) Payments(orderID string) ([]domain.Payment, error) {
	if _, err := s.orders.Get(orderID); err != nil {
		return nil, err
	}
	return s.payments.ListByOrder(orderID)
}

// AssignPackager назначает упаковщика. Разрешено только после полной
// оплаты; повторное назначение заменяет упаковщика.
func (s *service) AssignPackager(orderID, packagerID, assignedBy string) (domain.Order, error) {
	start := time.Now()
	defer s.observeOp("assign_packager", start)

	return s.mutateWithRetry(orderID, func(order *domain.Order) error {
		if !order.CanAssignPackager() {
			return domain.ErrOrderStatusInvalid
		}
		order.PackagerID = packagerID
		order.Status = domain.OrderStatusAssignedPackager
		return nil
	}, func(order domain.Order) {
		s.logActivity(assignedBy, "assign_packager", fmt.Sprintf(
			"order=%s packager=%s", orderID, packagerID))
		s.emitOrderEvent(kafka.EventTypeOrderPackaged, order, map[string]interface{}{
			"packager_id": packagerID,
		})
	})
}

// MarkPackaged отмечает заказ упакованным.
func (s *service) MarkPackaged(orderID, packagerID string) (domain.Order, error) {
	start := time.Now()
	defer s.observeOp("mark_packaged", start)

	return s.mutateWithRetry(orderID, func(order *domain.Order) error {
		if order.Status != domain.OrderStatusAssignedPackager {
			return domain.ErrOrderStatusInvalid
		}
		if packagerID != "" {
			order.PackagerID = packagerID
		}
		order.Status = domain.OrderStatusPackaged
		return nil
	}, func(order domain.Order) {
		s.logActivity(packagerID, "mark_packaged", "order="+orderID)
	})
}

// MarkPickedUp отмечает заказ забранным для доставки.
func (s *service) MarkPickedUp(orderID, actorID string) (domain.Order, error) {
	start := time.Now()
	defer s.observeOp("mark_picked_up", start)

	return s.mutateWithRetry(orderID, func(order *domain.Order) error {
		if order.Status != domain.OrderStatusPackaged {
			return domain.ErrOrderStatusInvalid
		}
		order.Status = domain.OrderStatusPickedUp
		return nil
	}, func(order domain.Order) {
		s.logActivity(actorID, "mark_picked_up", "order="+orderID)
	})
}

// Release выдаёт заказ: списывает складские остатки по всем позициям
// всё-или-ничего и переводит заказ в терминальный delivered.
// При нехватке хотя бы одной позиции остатки не меняются вовсе.
func (s *service) Release(orderID, storekeeperID string) (domain.Order, error) {
	start := time.Now()
	defer s.observeOp("release_order", start)

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.CanRelease() {
		return domain.Order{}, domain.ErrOrderStatusInvalid
	}

	decs := aggregateDecrements(order.Items)
	if err := s.products.DecrementAvailableAll(decs); err != nil {
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) {
			s.logger.WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": insufficient.ProductID,
				"available":  insufficient.Available,
				"requested":  insufficient.Requested,
			}).Warn("not enough warehouse stock to release order")
			if s.metrics != nil {
				s.metrics.RecordInsufficientStock()
			}
		}
		return domain.Order{}, err
	}

	released, err := s.mutateWithRetry(orderID, func(order *domain.Order) error {
		if !order.CanRelease() {
			return domain.ErrOrderStatusInvalid
		}
		order.Status = domain.OrderStatusDelivered
		order.StorekeeperID = storekeeperID
		return nil
	}, nil)
	if err != nil {
		// Списание уже выполнено: возвращаем остатки обратно.
		for _, dec := range decs {
			if _, compErr := s.products.AdjustAvailable(dec.ProductID, dec.Qty); compErr != nil {
				s.logger.WithError(compErr).WithFields(log.Fields{
					"order_id":   orderID,
					"product_id": dec.ProductID,
					"qty":        dec.Qty,
				}).Error("failed to compensate stock after release failure")
			}
		}
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderReleased()
	}
	s.logActivity(storekeeperID, "release_order", fmt.Sprintf(
		"order=%s items=%d", orderID, len(order.Items)))
	s.emitOrderEvent(kafka.EventTypeOrderReleased, released, map[string]interface{}{
		"storekeeper_id": storekeeperID,
		"items_count":    len(order.Items),
	})

	s.logger.WithFields(log.Fields{
		"order_id":       orderID,
		"storekeeper_id": storekeeperID,
	}).Info("order released")

	return released, nil
}

// Cancel отменяет заказ из любого нетерминального статуса.
// Остатки не возвращаются: товар движется только при выдаче,
// которую отмена исключает.
func (s *service) Cancel(orderID, canceledBy, reason string) (domain.Order, error) {
	start := time.Now()
	defer s.observeOp("cancel_order", start)

	return s.mutateWithRetry(orderID, func(order *domain.Order) error {
		if order.IsTerminal() {
			return domain.ErrOrderStatusInvalid
		}
		order.Status = domain.OrderStatusCanceled
		return nil
	}, func(order domain.Order) {
		if s.metrics != nil {
			s.metrics.RecordOrderCanceled()
		}
		s.logActivity(canceledBy, "cancel_order", fmt.Sprintf(
			"order=%s reason=%s", orderID, reason))
		metadata := map[string]interface{}{}
		if reason != "" {
			metadata["reason"] = reason
		}
		s.emitOrderEvent(kafka.EventTypeOrderCanceled, order, metadata)
	})
}

// mutateWithRetry загружает заказ, применяет mutate и сохраняет результат,
// повторяя попытку при конфликте версий. onSuccess вызывается один раз
// после успешного сохранения.
func (s *service) mutateWithRetry(orderID string, mutate func(*domain.Order) error, onSuccess func(domain.Order)) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := mutate(&order); err != nil {
			return domain.Order{}, err
		}
		order.UpdatedAt = time.Now().UTC()

		saveErr := s.orders.Save(order)
		if saveErr == nil {
			order.Version++
			if onSuccess != nil {
				onSuccess(order)
			}
			return order, nil
		}
		if !domain.IsVersionConflict(saveErr) || attempt >= maxRetries-1 {
			return domain.Order{}, saveErr
		}

		s.logger.WithFields(log.Fields{
			"order_id": orderID,
			"attempt":  attempt + 1,
			"version":  order.Version,
		}).Warn("version conflict detected, retrying")

		fresh, loadErr := s.orders.Get(orderID)
		if loadErr != nil {
			return domain.Order{}, loadErr
		}
		order = fresh

		time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
	}

	return domain.Order{}, domain.ErrVersionConflict
}

// aggregateDecrements сворачивает позиции заказа в список списаний,
// суммируя повторы одного товара.
func aggregateDecrements(items []domain.OrderItem) []domain.StockDecrement {
	index := make(map[string]int, len(items))
	decs := make([]domain.StockDecrement, 0, len(items))

	for _, item := range items {
		if pos, ok := index[item.ProductID]; ok {
			decs[pos].Qty += item.Qty
			continue
		}
		index[item.ProductID] = len(decs)
		decs = append(decs, domain.StockDecrement{ProductID: item.ProductID, Qty: item.Qty})
	}

	return decs
}

func (s *service) observeOp(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordOpDuration(op, time.Since(start))
	}
}

func (s *service) logActivity(userID, action, details string) {
	if s.activity == nil {
		return
	}
	s.activity.Append(userID, action, details)
}

func (s *service) emitOrderEvent(eventType kafka.EventType, order domain.Order, metadata map[string]interface{}) {
	if s.outbox == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.ShopID, string(order.Status), metadata)
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	} else if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}

var _ Service = (*service)(nil)
