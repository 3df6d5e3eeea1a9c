package warehouse

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

// Service описывает операции склада: закрепление товара за магазинами,
// движение товара внутри магазина и заявки кладовщиков.
type Service interface {
	AssignProductToShop(productID, shopID, warehouseID string, qty int32, assignedBy string) (AssignResult, error)
	UpdateShopInventory(assignmentID string, action domain.InventoryAction, qty int32, notes, actorID string) (UpdateResult, error)
	ListShopInventory(shopID string) ([]domain.Assignment, error)

	SubmitAssignmentRequest(productID, shopID string, qty int32, requestedBy string) (domain.AssignmentRequest, error)
	ApproveAssignmentRequest(requestID, reviewedBy, notes string) (AssignResult, error)
	RejectAssignmentRequest(requestID, reviewedBy, notes string) (domain.AssignmentRequest, error)
	ListPendingRequests(limit int) ([]domain.AssignmentRequest, error)
}

// AssignResult — итог закрепления товара за магазином.
type AssignResult struct {
	Assignment domain.Assignment
	// IsRestock — true, если закрепление уже существовало и было пополнено.
	IsRestock bool
	// WarehouseStockAfter — доступный складской остаток товара после списания.
	WarehouseStockAfter int32
}

// UpdateResult — итог движения товара в магазине.
type UpdateResult struct {
	Assignment domain.Assignment
	Change     domain.InventoryChange
}

type service struct {
	products    domain.ProductRepository
	assignments domain.AssignmentRepository
	requests    domain.AssignmentRequestRepository
	outbox      domain.OutboxRepository
	activity    domain.ActivityLogger
	logger      *log.Entry
	metrics     *metrics.InventoryMetrics
}

// NewService создаёт рабочий экземпляр складского сервиса.
func NewService(
	products domain.ProductRepository,
	assignments domain.AssignmentRepository,
	requests domain.AssignmentRequestRepository,
	outbox domain.OutboxRepository,
	activity domain.ActivityLogger,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "warehouse")
	}
	return &service{
		products:    products,
		assignments: assignments,
		requests:    requests,
		outbox:      outbox,
		activity:    activity,
		logger:      logger,
		metrics:     metrics.NewInventoryMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	products domain.ProductRepository,
	assignments domain.AssignmentRepository,
	requests domain.AssignmentRequestRepository,
	outbox domain.OutboxRepository,
	activity domain.ActivityLogger,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "warehouse")
	}
	return &service{
		products:    products,
		assignments: assignments,
		requests:    requests,
		outbox:      outbox,
		activity:    activity,
		logger:      logger,
		metrics:     nil, // Отключаем метрики для тестов
	}
}

// AssignProductToShop закрепляет qty единиц товара за магазином.
// Складской остаток списывается первым атомарным шагом; если закрепление
// после этого сохранить не удалось, списание компенсируется обратно.
// Повторное назначение той же пары (product, shop) сливается в существующую
// запись: количества накапливаются, а метаданные (склад, кто назначил)
// перезаписываются последним вызовом. Пустой warehouseID заменяется складом,
// на котором числится товар.
func (s *service) AssignProductToShop(productID, shopID, warehouseID string, qty int32, assignedBy string) (AssignResult, error) {
	start := time.Now()
	defer s.observeOp("assign_product", start)

	if productID == "" {
		return AssignResult{}, domain.ErrProductIDRequired
	}
	if shopID == "" {
		return AssignResult{}, domain.ErrShopIDRequired
	}
	if qty <= 0 {
		return AssignResult{}, domain.ErrQtyInvalid
	}

	product, err := s.products.AdjustAvailable(productID, -qty)
	if err != nil {
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) {
			s.logger.WithFields(log.Fields{
				"product_id": productID,
				"shop_id":    shopID,
				"available":  insufficient.Available,
				"requested":  insufficient.Requested,
			}).Warn("not enough warehouse stock for assignment")
			if s.metrics != nil {
				s.metrics.RecordInsufficientStock()
			}
		}
		return AssignResult{}, err
	}

	if warehouseID == "" {
		warehouseID = product.WarehouseID
	}

	now := time.Now().UTC()
	assignment, isRestock, err := s.upsertAssignment(productID, shopID, qty, warehouseID, assignedBy, now)
	if err != nil {
		// Возвращаем списанный остаток обратно на склад.
		if _, compErr := s.products.AdjustAvailable(productID, qty); compErr != nil {
			s.logger.WithError(compErr).WithFields(log.Fields{
				"product_id": productID,
				"qty":        qty,
			}).Error("failed to compensate warehouse stock after assignment failure")
		}
		return AssignResult{}, err
	}

	kind := "assign"
	eventType := kafka.EventTypeStockAssigned
	if isRestock {
		kind = "restock"
		eventType = kafka.EventTypeStockRestocked
	}

	if s.metrics != nil {
		s.metrics.RecordAssignment(kind)
	}
	s.logActivity(assignedBy, "assign_product", fmt.Sprintf(
		"product=%s shop=%s qty=%d kind=%s", productID, shopID, qty, kind))
	s.emitStockEvent(eventType, assignment, map[string]interface{}{
		"qty":                   qty,
		"assigned_by":           assignedBy,
		"warehouse_stock_after": product.AvailableStock,
	})

	s.logger.WithFields(log.Fields{
		"product_id":    productID,
		"shop_id":       shopID,
		"assignment_id": assignment.ID,
		"qty":           qty,
		"restock":       isRestock,
	}).Info("product assigned to shop")

	return AssignResult{
		Assignment:          assignment,
		IsRestock:           isRestock,
		WarehouseStockAfter: product.AvailableStock,
	}, nil
}

// upsertAssignment создаёт закрепление или пополняет существующее.
// Конфликты версий и гонка двух одновременных первых назначений
// разрешаются повторными попытками.
func (s *service) upsertAssignment(productID, shopID string, qty int32, warehouseID, assignedBy string, now time.Time) (domain.Assignment, bool, error) {
	existing, err := s.assignments.FindByProductShop(productID, shopID)
	if err == nil {
		merged, mergeErr := s.mergeWithRetry(existing, qty, warehouseID, assignedBy, now)
		return merged, true, mergeErr
	}
	if !errors.Is(err, domain.ErrAssignmentNotFound) {
		return domain.Assignment{}, false, err
	}

	fresh := domain.Assignment{
		ID:           uuid.NewString(),
		ProductID:    productID,
		ShopID:       shopID,
		WarehouseID:  warehouseID,
		Quantity:     qty,
		AvailableQty: qty,
		SoldQty:      0,
		AssignedBy:   assignedBy,
		AssignedAt:   now,
		Version:      0,
		UpdatedAt:    now,
	}

	createErr := s.assignments.Create(fresh)
	if createErr == nil {
		return fresh, false, nil
	}
	if !errors.Is(createErr, domain.ErrAssignmentExists) {
		return domain.Assignment{}, false, createErr
	}

	// Пара успела появиться между Find и Create: дозагружаем и сливаем.
	existing, err = s.assignments.FindByProductShop(productID, shopID)
	if err != nil {
		return domain.Assignment{}, false, err
	}
	merged, mergeErr := s.mergeWithRetry(existing, qty, warehouseID, assignedBy, now)
	return merged, true, mergeErr
}

func (s *service) mergeWithRetry(assignment domain.Assignment, qty int32, warehouseID, assignedBy string, now time.Time) (domain.Assignment, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		assignment.Merge(qty, warehouseID, assignedBy, now)

		err := s.assignments.Save(assignment)
		if err == nil {
			assignment.Version++
			return assignment, nil
		}
		if !domain.IsVersionConflict(err) || attempt >= maxRetries-1 {
			return domain.Assignment{}, err
		}

		s.logger.WithFields(log.Fields{
			"assignment_id": assignment.ID,
			"attempt":       attempt + 1,
			"version":       assignment.Version,
		}).Warn("version conflict detected, retrying")

		fresh, loadErr := s.assignments.Get(assignment.ID)
		if loadErr != nil {
			return domain.Assignment{}, loadErr
		}
		assignment = fresh

		time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
	}

	return domain.Assignment{}, domain.ErrVersionConflict
}

// UpdateShopInventory применяет движение товара к закреплению: продажу,
// возврат или ручную корректировку проданного количества. Необязательный
// комментарий notes попадает в журнал действий вместе с самим движением.
func (s *service) UpdateShopInventory(assignmentID string, action domain.InventoryAction, qty int32, notes, actorID string) (UpdateResult, error) {
	start := time.Now()
	defer s.observeOp("update_inventory", start)

	assignment, err := s.assignments.Get(assignmentID)
	if err != nil {
		return UpdateResult{}, err
	}

	var change domain.InventoryChange
	for attempt := 0; attempt < maxRetries; attempt++ {
		change, err = assignment.ApplyInventoryAction(action, qty)
		if err != nil {
			if s.metrics != nil {
				var qtyErr *domain.ShopQuantityError
				if errors.As(err, &qtyErr) {
					s.metrics.RecordInsufficientStock()
				}
			}
			return UpdateResult{}, err
		}

		assignment.UpdatedAt = time.Now().UTC()
		saveErr := s.assignments.Save(assignment)
		if saveErr == nil {
			assignment.Version++
			break
		}
		if !domain.IsVersionConflict(saveErr) || attempt >= maxRetries-1 {
			return UpdateResult{}, saveErr
		}

		s.logger.WithFields(log.Fields{
			"assignment_id": assignmentID,
			"attempt":       attempt + 1,
			"version":       assignment.Version,
		}).Warn("version conflict detected, retrying")

		// Перечитываем и применяем действие к свежему состоянию заново.
		fresh, loadErr := s.assignments.Get(assignmentID)
		if loadErr != nil {
			return UpdateResult{}, loadErr
		}
		assignment = fresh

		time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
	}

	if s.metrics != nil {
		s.metrics.RecordInventoryAction(string(action))
	}
	details := fmt.Sprintf(
		"assignment=%s action=%s qty=%d sold=%d available=%d",
		assignmentID, action, qty, assignment.SoldQty, assignment.AvailableQty)
	if notes != "" {
		details += " notes=" + notes
	}
	s.logActivity(actorID, "update_inventory", details)
	s.emitStockEvent(kafka.EventTypeStockAdjusted, assignment, map[string]interface{}{
		"action":           string(action),
		"qty":              qty,
		"delta":            change.Delta,
		"sold_before":      change.SoldBefore,
		"sold_after":       change.SoldAfter,
		"available_before": change.AvailableBefore,
		"available_after":  change.AvailableAfter,
		"actor_id":         actorID,
	})

	return UpdateResult{Assignment: assignment, Change: change}, nil
}

// ListShopInventory возвращает все закрепления магазина.
func (s *service) ListShopInventory(shopID string) ([]domain.Assignment, error) {
	if shopID == "" {
		return nil, domain.ErrShopIDRequired
	}
	return s.assignments.ListByShop(shopID)
}

// SubmitAssignmentRequest регистрирует заявку кладовщика на закрепление.
// Движение товара на этом шаге не выполняется.
func (s *service) SubmitAssignmentRequest(productID, shopID string, qty int32, requestedBy string) (domain.AssignmentRequest, error) {
	start := time.Now()
	defer s.observeOp("submit_request", start)

	request := domain.AssignmentRequest{
		ID:          uuid.NewString(),
		ProductID:   productID,
		ShopID:      shopID,
		Qty:         qty,
		Status:      domain.RequestStatusPending,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	}
	if errs := request.Validate(); len(errs) > 0 {
		return domain.AssignmentRequest{}, errs[0]
	}

	// Заявка фиксирует склад товара на момент подачи.
	product, err := s.products.Get(productID)
	if err != nil {
		return domain.AssignmentRequest{}, err
	}
	request.WarehouseID = product.WarehouseID

	if err := s.requests.Create(request); err != nil {
		return domain.AssignmentRequest{}, err
	}

	s.logActivity(requestedBy, "submit_assignment_request", fmt.Sprintf(
		"request=%s product=%s shop=%s qty=%d", request.ID, productID, shopID, qty))

	s.logger.WithFields(log.Fields{
		"request_id": request.ID,
		"product_id": productID,
		"shop_id":    shopID,
		"qty":        qty,
	}).Info("assignment request submitted")

	return request, nil
}

// ApproveAssignmentRequest одобряет заявку и выполняет закрепление.
// Если закрепление не удалось, заявка остаётся pending и может быть
// рассмотрена повторно после устранения причины.
func (s *service) ApproveAssignmentRequest(requestID, reviewedBy, notes string) (AssignResult, error) {
	start := time.Now()
	defer s.observeOp("approve_request", start)

	request, err := s.requests.Get(requestID)
	if err != nil {
		return AssignResult{}, err
	}
	if request.IsReviewed() {
		return AssignResult{}, domain.ErrRequestReviewed
	}

	result, err := s.AssignProductToShop(request.ProductID, request.ShopID, request.WarehouseID, request.Qty, reviewedBy)
	if err != nil {
		s.logger.WithError(err).WithField("request_id", requestID).Warn("assignment for approved request failed, request stays pending")
		return AssignResult{}, err
	}

	request.Status = domain.RequestStatusApproved
	request.ReviewedBy = reviewedBy
	request.ReviewedAt = time.Now().UTC()
	request.ReviewNotes = notes
	if err := s.requests.Save(request); err != nil {
		// Закрепление уже выполнено; потерянный review-штамп хуже, чем
		// двойная попытка, поэтому ошибку отдаём наверх.
		s.logger.WithError(err).WithField("request_id", requestID).Error("failed to stamp approved request")
		return result, err
	}

	s.logActivity(reviewedBy, "approve_assignment_request", fmt.Sprintf(
		"request=%s assignment=%s", requestID, result.Assignment.ID))
	s.emitRequestEvent(kafka.EventTypeRequestApproved, request, reviewedBy)

	return result, nil
}

// RejectAssignmentRequest отклоняет заявку. Движение товара не выполняется.
func (s *service) RejectAssignmentRequest(requestID, reviewedBy, notes string) (domain.AssignmentRequest, error) {
	start := time.Now()
	defer s.observeOp("reject_request", start)

	request, err := s.requests.Get(requestID)
	if err != nil {
		return domain.AssignmentRequest{}, err
	}
	if request.IsReviewed() {
		return domain.AssignmentRequest{}, domain.ErrRequestReviewed
	}

	request.Status = domain.RequestStatusRejected
	request.ReviewedBy = reviewedBy
	request.ReviewedAt = time.Now().UTC()
	request.ReviewNotes = notes
	if err := s.requests.Save(request); err != nil {
		return domain.AssignmentRequest{}, err
	}
	request.Version++

	s.logActivity(reviewedBy, "reject_assignment_request", fmt.Sprintf(
		"request=%s notes=%s", requestID, notes))
	s.emitRequestEvent(kafka.EventTypeRequestRejected, request, reviewedBy)

	return request, nil
}

// ListPendingRequests возвращает заявки, ожидающие решения.
func (s *service) ListPendingRequests(limit int) ([]domain.AssignmentRequest, error) {
	return s.requests.ListPending(limit)
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

func (s *service) emitStockEvent(eventType kafka.EventType, assignment domain.Assignment, metadata map[string]interface{}) {
	if s.outbox == nil {
		return
	}

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["quantity"] = assignment.Quantity
	metadata["available_qty"] = assignment.AvailableQty
	metadata["sold_qty"] = assignment.SoldQty

	event := kafka.NewStockEvent(eventType, assignment.ProductID, assignment.ShopID, assignment.ID, metadata)
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"assignment_id": assignment.ID,
			"event":         eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "assignment",
		AggregateID:   assignment.ID,
		EventType:     string(eventType),
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"assignment_id": assignment.ID,
			"event":         eventType,
		}).Error("enqueue event failed")
	} else if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}

func (s *service) emitRequestEvent(eventType kafka.EventType, request domain.AssignmentRequest, reviewedBy string) {
	if s.outbox == nil {
		return
	}

	event := kafka.NewStockEvent(eventType, request.ProductID, request.ShopID, "", map[string]interface{}{
		"request_id":  request.ID,
		"qty":         request.Qty,
		"status":      string(request.Status),
		"reviewed_by": reviewedBy,
	})
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithField("request_id", request.ID).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "assignment_request",
		AggregateID:   request.ID,
		EventType:     string(eventType),
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithField("request_id", request.ID).Error("enqueue event failed")
	} else if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}

var _ Service = (*service)(nil)
