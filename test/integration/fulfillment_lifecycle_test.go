package integration

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/rms/internal/domain"
	"github.com/vladislavdragonenkov/rms/internal/service/activity"
	"github.com/vladislavdragonenkov/rms/internal/service/order"
	"github.com/vladislavdragonenkov/rms/internal/service/warehouse"
	"github.com/vladislavdragonenkov/rms/internal/storage/memory"
)

// FulfillmentLifecycleTestSuite тестирует полный конвейер:
// закрепление товара за магазином, заказ, оплату, упаковку и выдачу.
type FulfillmentLifecycleTestSuite struct {
	suite.Suite

	products    domain.ProductRepository
	assignments domain.AssignmentRepository

	warehouse warehouse.Service
	orders    order.Service

	activityLogger *activity.Logger
}

func (s *FulfillmentLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	s.products = memory.NewProductRepository()
	s.assignments = memory.NewAssignmentRepository()
	requests := memory.NewAssignmentRequestRepository()
	orders := memory.NewOrderRepository()
	payments := memory.NewPaymentRepository()
	outbox := memory.NewOutboxRepository()
	activityRepo := memory.NewActivityRepository()

	s.activityLogger = activity.NewLogger(activityRepo,
		activity.WithLogger(logger.WithField("component", "activity")))

	s.warehouse = warehouse.NewServiceWithoutMetrics(
		s.products, s.assignments, requests, outbox, s.activityLogger, logger)
	s.orders = order.NewServiceWithoutMetrics(
		orders, s.products, payments, outbox, s.activityLogger, logger)
}

func (s *FulfillmentLifecycleTestSuite) TearDownTest() {
	s.activityLogger.Close()
}

func (s *FulfillmentLifecycleTestSuite) seedProduct(id string, stock int32) {
	now := time.Now().UTC()
	require.NoError(s.T(), s.products.Create(domain.Product{
		ID:             id,
		Name:           "product " + id,
		SKU:            "SKU-" + id,
		PriceMinor:     500,
		TotalStock:     stock,
		AvailableStock: stock,
		WarehouseID:    "warehouse-1",
		CategoryID:     "category-1",
		CreatedAt:      now,
		UpdatedAt:      now,
	}))
}

// Полный happy path: товар распределяется по магазину, параллельно заказ
// проходит оплату, упаковку и выдачу со списанием складского остатка.
func (s *FulfillmentLifecycleTestSuite) TestFullPipeline() {
	s.seedProduct("product-1", 100)

	assigned, err := s.warehouse.AssignProductToShop("product-1", "shop-1", "warehouse-1", 40, "attendee-1")
	s.Require().NoError(err)
	s.Equal(int32(60), assigned.WarehouseStockAfter)

	// Магазин продаёт часть закреплённого товара.
	sold, err := s.warehouse.UpdateShopInventory(assigned.Assignment.ID, domain.InventoryActionSale, 5, "", "shop-user-1")
	s.Require().NoError(err)
	s.Equal(int32(5), sold.Assignment.SoldQty)

	created, err := s.orders.Create(order.CreateInput{
		CustomerName: "Иван Петров",
		ShopID:       "shop-1",
		AttendeeID:   "attendee-1",
		Items:        []order.ItemInput{{ProductID: "product-1", Qty: 3, PriceMinor: 500}},
	})
	s.Require().NoError(err)
	s.Equal(int64(1500), created.TotalMinor)

	partial, err := s.orders.RecordPayment(created.ID, 700, "cash", "", "", "receptionist-1")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPendingPayment, partial.Order.Status)

	full, err := s.orders.RecordPayment(created.ID, 800, "cash", "", "", "receptionist-1")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPaid, full.Order.Status)

	_, err = s.orders.AssignPackager(created.ID, "packager-1", "manager-1")
	s.Require().NoError(err)
	_, err = s.orders.MarkPackaged(created.ID, "packager-1")
	s.Require().NoError(err)
	_, err = s.orders.MarkPickedUp(created.ID, "courier-1")
	s.Require().NoError(err)

	released, err := s.orders.Release(created.ID, "storekeeper-1")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusDelivered, released.Status)
	s.Equal("storekeeper-1", released.StorekeeperID)

	// Складской остаток: 100 − 40 (закрепление) − 3 (выдача заказа).
	product, err := s.products.Get("product-1")
	s.Require().NoError(err)
	s.Equal(int32(57), product.AvailableStock)

	// Леджер магазина не тронут выдачей заказа.
	shopRow, err := s.assignments.Get(assigned.Assignment.ID)
	s.Require().NoError(err)
	s.Equal(int32(40), shopRow.Quantity)
	s.Equal(int32(5), shopRow.SoldQty)
	s.Empty(shopRow.ValidateInvariants())
}

// Отказ на выдаче не должен оставлять частичных списаний.
func (s *FulfillmentLifecycleTestSuite) TestReleaseFailureKeepsStockIntact() {
	s.seedProduct("product-1", 50)
	s.seedProduct("product-2", 1)

	created, err := s.orders.Create(order.CreateInput{
		CustomerName: "Иван Петров",
		ShopID:       "shop-1",
		AttendeeID:   "attendee-1",
		Items: []order.ItemInput{
			{ProductID: "product-1", Qty: 10, PriceMinor: 500},
			{ProductID: "product-2", Qty: 2, PriceMinor: 500},
		},
	})
	s.Require().NoError(err)

	_, err = s.orders.RecordPayment(created.ID, 6000, "card", "", "", "receptionist-1")
	s.Require().NoError(err)

	_, err = s.orders.Release(created.ID, "storekeeper-1")
	var insufficient *domain.InsufficientStockError
	s.Require().ErrorAs(err, &insufficient)
	s.Equal("product-2", insufficient.ProductID)

	first, err := s.products.Get("product-1")
	s.Require().NoError(err)
	s.Equal(int32(50), first.AvailableStock)
	second, err := s.products.Get("product-2")
	s.Require().NoError(err)
	s.Equal(int32(1), second.AvailableStock)
}

// Заявка кладовщика проходит полный цикл: подача, одобрение, закрепление.
func (s *FulfillmentLifecycleTestSuite) TestAssignmentRequestFlow() {
	s.seedProduct("product-1", 30)

	request, err := s.warehouse.SubmitAssignmentRequest("product-1", "shop-1", 20, "storekeeper-1")
	s.Require().NoError(err)

	result, err := s.warehouse.ApproveAssignmentRequest(request.ID, "manager-1", "ok")
	s.Require().NoError(err)
	s.Equal(int32(20), result.Assignment.Quantity)
	s.Equal(int32(10), result.WarehouseStockAfter)

	listed, err := s.warehouse.ListShopInventory("shop-1")
	s.Require().NoError(err)
	s.Len(listed, 1)
}

func TestFulfillmentLifecycleSuite(t *testing.T) {
	suite.Run(t, new(FulfillmentLifecycleTestSuite))
}
