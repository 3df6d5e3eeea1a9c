package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События движения товара
	EventTypeStockAssigned  EventType = "stock.assigned"
	EventTypeStockRestocked EventType = "stock.restocked"
	EventTypeStockAdjusted  EventType = "stock.adjusted"

	// События заказов
	EventTypeOrderCreated  EventType = "order.created"
	EventTypeOrderPaid     EventType = "order.paid"
	EventTypeOrderPackaged EventType = "order.packager_assigned"
	EventTypeOrderReleased EventType = "order.released"
	EventTypeOrderCanceled EventType = "order.canceled"

	// События заявок на закрепление
	EventTypeRequestApproved EventType = "request.approved"
	EventTypeRequestRejected EventType = "request.rejected"
)

// Topics для Kafka
const (
	TopicStockEvents     = "rms.stock.events"
	TopicOrderEvents     = "rms.order.events"
	TopicDeadLetterQueue = "rms.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// StockEvent представляет событие движения товара
type StockEvent struct {
	EventType    EventType              `json:"event_type"`
	ProductID    string                 `json:"product_id"`
	ShopID       string                 `json:"shop_id,omitempty"`
	AssignmentID string                 `json:"assignment_id,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	ShopID    string                 `json:"shop_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewStockEvent создает новое событие движения товара
func NewStockEvent(eventType EventType, productID, shopID, assignmentID string, metadata map[string]interface{}) *StockEvent {
	return &StockEvent{
		EventType:    eventType,
		ProductID:    productID,
		ShopID:       shopID,
		AssignmentID: assignmentID,
		Timestamp:    time.Now(),
		Metadata:     metadata,
	}
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, shopID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		ShopID:    shopID,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
