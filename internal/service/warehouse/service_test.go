package warehouse

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/rms/internal/domain"
	"github.com/vladislavdragonenkov/rms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/rms/internal/storage/memory"
)

func TestService_AssignProductToShop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 100)

	result, err := env.service.AssignProductToShop("product-1", "shop-1", "warehouse-1", 30, "attendee-1")
	require.NoError(t, err)

	assert.False(t, result.IsRestock)
	assert.Equal(t, int32(70), result.WarehouseStockAfter)
	assert.Equal(t, int32(30), result.Assignment.Quantity)
	assert.Equal(t, int32(30), result.Assignment.AvailableQty)
	assert.Equal(t, int32(0), result.Assignment.SoldQty)
	assert.Equal(t, "attendee-1", result.Assignment.AssignedBy)

	product, err := env.products.Get("product-1")
	require.NoError(t, err)
	assert.Equal(t, int32(70), product.AvailableStock)

	assert.Contains(t, env.activity.actions(), "assign_product")
	require.Len(t, env.outbox.AllPending(), 1)
	assert.Equal(t, "stock.assigned", env.outbox.AllPending()[0].EventType)
}

func TestService_AssignProductToShop_InsufficientStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 5)

	_, err := env.service.AssignProductToShop("product-1", "shop-1", "warehouse-1", 10, "attendee-1")

	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int32(5), insufficient.Available)
	assert.Equal(t, int32(10), insufficient.Requested)
	assert.Contains(t, err.Error(), "available 5")
	assert.Contains(t, err.Error(), "requested 10")

	// Ничего не изменилось.
	product, getErr := env.products.Get("product-1")
	require.NoError(t, getErr)
	assert.Equal(t, int32(5), product.AvailableStock)
	_, findErr := env.assignments.FindByProductShop("product-1", "shop-1")
	assert.ErrorIs(t, findErr, domain.ErrAssignmentNotFound)
	assert.Empty(t, env.outbox.AllPending())
}

func TestService_AssignProductToShop_RestockMergesIntoSingleRow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 100)

	first, err := env.service.AssignProductToShop("product-1", "shop-1", "warehouse-1", 30, "attendee-1")
	require.NoError(t, err)

	second, err := env.service.AssignProductToShop("product-1", "shop-1", "warehouse-1", 20, "attendee-2")
	require.NoError(t, err)

	assert.True(t, second.IsRestock)
	assert.Equal(t, first.Assignment.ID, second.Assignment.ID, "restock must merge into the existing row")
	assert.Equal(t, int32(50), second.Assignment.Quantity)
	assert.Equal(t, int32(50), second.Assignment.AvailableQty)
	assert.Equal(t, "attendee-2", second.Assignment.AssignedBy)
	assert.Equal(t, int32(50), second.WarehouseStockAfter)

	listed, err := env.service.ListShopInventory("shop-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	events := env.outbox.AllPending()
	require.Len(t, events, 2)
	assert.Equal(t, "stock.restocked", events[1].EventType)
}

func TestService_AssignProductToShop_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 100)

	_, err := env.service.AssignProductToShop("product-1", "shop-1", "warehouse-1", 0, "attendee-1")
	assert.ErrorIs(t, err, domain.ErrQtyInvalid)

	_, err = env.service.AssignProductToShop("", "shop-1", "warehouse-1", 1, "attendee-1")
	assert.ErrorIs(t, err, domain.ErrProductIDRequired)

	_, err = env.service.AssignProductToShop("product-1", "", "warehouse-1", 1, "attendee-1")
	assert.ErrorIs(t, err, domain.ErrShopIDRequired)

	_, err = env.service.AssignProductToShop("missing", "shop-1", "warehouse-1", 1, "attendee-1")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestService_AssignProductToShop_LatestCallOverwritesWarehouse(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 100)

	first, err := env.service.AssignProductToShop("product-1", "shop-1", "warehouse-1", 30, "attendee-1")
	require.NoError(t, err)
	assert.Equal(t, "warehouse-1", first.Assignment.WarehouseID)

	// Пополнение с другого склада перезаписывает метаданные закрепления.
	second, err := env.service.AssignProductToShop("product-1", "shop-1", "warehouse-2", 20, "attendee-2")
	require.NoError(t, err)
	assert.Equal(t, first.Assignment.ID, second.Assignment.ID)
	assert.Equal(t, "warehouse-2", second.Assignment.WarehouseID)
	assert.Equal(t, "attendee-2", second.Assignment.AssignedBy)
	assert.Equal(t, int32(50), second.Assignment.Quantity)
}

func TestService_AssignProductToShop_EmptyWarehouseFallsBackToProduct(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 100)

	result, err := env.service.AssignProductToShop("product-1", "shop-1", "", 10, "attendee-1")
	require.NoError(t, err)
	assert.Equal(t, "warehouse-1", result.Assignment.WarehouseID)
}

func TestService_UpdateShopInventory_SaleReturnAdjustment(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 100)
	assigned, err := env.service.AssignProductToShop("product-1", "shop-1", "warehouse-1", 40, "attendee-1")
	require.NoError(t, err)
	id := assigned.Assignment.ID

	sale, err := env.service.UpdateShopInventory(id, domain.InventoryActionSale, 15, "", "shop-user-1")
	require.NoError(t, err)
	assert.Equal(t, int32(15), sale.Assignment.SoldQty)
	assert.Equal(t, int32(25), sale.Assignment.AvailableQty)
	assert.Equal(t, int32(15), sale.Change.Delta)

	ret, err := env.service.UpdateShopInventory(id, domain.InventoryActionReturn, 5, "", "shop-user-1")
	require.NoError(t, err)
	assert.Equal(t, int32(10), ret.Assignment.SoldQty)
	assert.Equal(t, int32(30), ret.Assignment.AvailableQty)

	// Корректировка задаёт проданное количество абсолютным значением.
	adj, err := env.service.UpdateShopInventory(id, domain.InventoryActionAdjustment, 33, "", "shop-user-1")
	require.NoError(t, err)
	assert.Equal(t, int32(33), adj.Assignment.SoldQty)
	assert.Equal(t, int32(7), adj.Assignment.AvailableQty)
	assert.Equal(t, int32(23), adj.Change.Delta)

	// Баланс леджера сохраняется каждым действием.
	stored, err := env.assignments.Get(id)
	require.NoError(t, err)
	assert.Empty(t, stored.ValidateInvariants())
}

func TestService_UpdateShopInventory_QuantityErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 100)
	assigned, err := env.service.AssignProductToShop("product-1", "shop-1", "warehouse-1", 10, "attendee-1")
	require.NoError(t, err)
	id := assigned.Assignment.ID

	_, err = env.service.UpdateShopInventory(id, domain.InventoryActionSale, 11, "", "shop-user-1")
	var qtyErr *domain.ShopQuantityError
	require.ErrorAs(t, err, &qtyErr)
	assert.Equal(t, int32(10), qtyErr.Limit)
	assert.Equal(t, int32(11), qtyErr.Requested)

	_, err = env.service.UpdateShopInventory(id, domain.InventoryActionReturn, 1, "", "shop-user-1")
	require.ErrorAs(t, err, &qtyErr)

	_, err = env.service.UpdateShopInventory(id, domain.InventoryAction("unknown"), 1, "", "shop-user-1")
	assert.ErrorIs(t, err, domain.ErrInventoryActionUnknown)

	_, err = env.service.UpdateShopInventory("missing", domain.InventoryActionSale, 1, "", "shop-user-1")
	assert.ErrorIs(t, err, domain.ErrAssignmentNotFound)

	// Неудачные действия не меняют закрепление.
	stored, getErr := env.assignments.Get(id)
	require.NoError(t, getErr)
	assert.Equal(t, int32(0), stored.SoldQty)
	assert.Equal(t, int32(10), stored.AvailableQty)
}

func TestService_UpdateShopInventory_NotesLandInActivityLog(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 100)

	assigned, err := env.service.AssignProductToShop("product-1", "shop-1", "warehouse-1", 20, "attendee-1")
	require.NoError(t, err)
	id := assigned.Assignment.ID

	_, err = env.service.UpdateShopInventory(id, domain.InventoryActionSale, 3, "display stand refill", "shop-user-1")
	require.NoError(t, err)

	details := env.activity.detailsFor("update_inventory")
	require.Len(t, details, 1)
	assert.Contains(t, details[0], "notes=display stand refill")

	// Без комментария запись журнала его не содержит.
	_, err = env.service.UpdateShopInventory(id, domain.InventoryActionSale, 1, "", "shop-user-1")
	require.NoError(t, err)

	details = env.activity.detailsFor("update_inventory")
	require.Len(t, details, 2)
	assert.NotContains(t, details[1], "notes=")
}

func TestService_StockEventsCarryTypedPayload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 100)

	assigned, err := env.service.AssignProductToShop("product-1", "shop-1", "warehouse-1", 30, "attendee-1")
	require.NoError(t, err)

	events := env.outbox.AllPending()
	require.Len(t, events, 1)

	var event kafka.StockEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &event))
	assert.Equal(t, kafka.EventTypeStockAssigned, event.EventType)
	assert.Equal(t, "product-1", event.ProductID)
	assert.Equal(t, "shop-1", event.ShopID)
	assert.Equal(t, assigned.Assignment.ID, event.AssignmentID)
	assert.False(t, event.Timestamp.IsZero())
	assert.EqualValues(t, 30, event.Metadata["quantity"])
	assert.EqualValues(t, 30, event.Metadata["available_qty"])
	assert.Equal(t, "attendee-1", event.Metadata["assigned_by"])
}

func TestService_AssignmentRequestLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 100)

	request, err := env.service.SubmitAssignmentRequest("product-1", "shop-1", 25, "storekeeper-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, request.Status)
	assert.Equal(t, "warehouse-1", request.WarehouseID)

	pending, err := env.service.ListPendingRequests(0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	result, err := env.service.ApproveAssignmentRequest(request.ID, "manager-1", "ok")
	require.NoError(t, err)
	assert.Equal(t, int32(25), result.Assignment.Quantity)
	assert.Equal(t, int32(75), result.WarehouseStockAfter)

	reviewed, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, reviewed.Status)
	assert.Equal(t, "manager-1", reviewed.ReviewedBy)
	assert.False(t, reviewed.ReviewedAt.IsZero())

	// Повторное решение по той же заявке запрещено.
	_, err = env.service.ApproveAssignmentRequest(request.ID, "manager-2", "")
	assert.ErrorIs(t, err, domain.ErrRequestReviewed)
	_, err = env.service.RejectAssignmentRequest(request.ID, "manager-2", "")
	assert.ErrorIs(t, err, domain.ErrRequestReviewed)
}

func TestService_ApproveAssignmentRequest_FailureKeepsRequestPending(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 10)

	request, err := env.service.SubmitAssignmentRequest("product-1", "shop-1", 25, "storekeeper-1")
	require.NoError(t, err)

	_, err = env.service.ApproveAssignmentRequest(request.ID, "manager-1", "")
	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	stored, getErr := env.requests.Get(request.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.RequestStatusPending, stored.Status, "failed approval must keep the request pending")

	// После пополнения склада заявку можно одобрить повторно.
	product, err := env.products.Get("product-1")
	require.NoError(t, err)
	product.TotalStock = 100
	product.AvailableStock = 100
	require.NoError(t, env.products.Save(product))

	_, err = env.service.ApproveAssignmentRequest(request.ID, "manager-1", "retry")
	require.NoError(t, err)
}

func TestService_RejectAssignmentRequest_NoStockMovement(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 50)

	request, err := env.service.SubmitAssignmentRequest("product-1", "shop-1", 20, "storekeeper-1")
	require.NoError(t, err)

	rejected, err := env.service.RejectAssignmentRequest(request.ID, "manager-1", "not needed")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusRejected, rejected.Status)
	assert.Equal(t, "not needed", rejected.ReviewNotes)

	product, err := env.products.Get("product-1")
	require.NoError(t, err)
	assert.Equal(t, int32(50), product.AvailableStock, "rejection must not move stock")
	_, findErr := env.assignments.FindByProductShop("product-1", "shop-1")
	assert.ErrorIs(t, findErr, domain.ErrAssignmentNotFound)
}

func TestService_SubmitAssignmentRequest_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 50)

	_, err := env.service.SubmitAssignmentRequest("product-1", "shop-1", 0, "storekeeper-1")
	assert.ErrorIs(t, err, domain.ErrQtyInvalid)

	_, err = env.service.SubmitAssignmentRequest("missing", "shop-1", 1, "storekeeper-1")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

type testEnv struct {
	t           *testing.T
	service     Service
	products    domain.ProductRepository
	assignments domain.AssignmentRepository
	requests    domain.AssignmentRequestRepository
	outbox      interface {
		domain.OutboxRepository
		AllPending() []domain.OutboxMessage
	}
	activity *recordingActivityLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	products := memory.NewProductRepository()
	assignments := memory.NewAssignmentRepository()
	requests := memory.NewAssignmentRequestRepository()
	outbox := memory.NewOutboxRepository()
	activity := &recordingActivityLogger{}

	return &testEnv{
		t:           t,
		service:     NewServiceWithoutMetrics(products, assignments, requests, outbox, activity, nil),
		products:    products,
		assignments: assignments,
		requests:    requests,
		outbox:      outbox,
		activity:    activity,
	}
}

func (e *testEnv) createProduct(id string, stock int32) {
	e.t.Helper()

	now := time.Now().UTC()
	err := e.products.Create(domain.Product{
		ID:             id,
		Name:           "product " + id,
		SKU:            "SKU-" + id,
		PriceMinor:     1000,
		TotalStock:     stock,
		AvailableStock: stock,
		WarehouseID:    "warehouse-1",
		CategoryID:     "category-1",
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	require.NoError(e.t, err)
}

type recordedActivity struct {
	userID  string
	action  string
	details string
}

type recordingActivityLogger struct {
	mu      sync.Mutex
	entries []recordedActivity
}

var _ domain.ActivityLogger = (*recordingActivityLogger)(nil)

func (r *recordingActivityLogger) Append(userID, action, details string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recordedActivity{userID: userID, action: action, details: details})
}

func (r *recordingActivityLogger) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	actions := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		actions = append(actions, entry.action)
	}
	return actions
}

func (r *recordingActivityLogger) detailsFor(action string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var details []string
	for _, entry := range r.entries {
		if entry.action == action {
			details = append(details, entry.details)
		}
	}
	return details
}

func TestService_ErrIsClassification(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createProduct("product-1", 1)

	_, err := env.service.AssignProductToShop("product-1", "shop-1", "warehouse-1", 2, "attendee-1")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.False(t, errors.Is(err, domain.ErrProductNotFound))
}
