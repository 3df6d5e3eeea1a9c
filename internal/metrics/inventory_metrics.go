package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InventoryMetrics содержит метрики операций ядра: закрепления, леджер,
// выдачи заказов и платежи.
type InventoryMetrics struct {
	// Счётчики операций
	assignments      *prometheus.CounterVec
	inventoryActions *prometheus.CounterVec
	ordersReleased   prometheus.Counter
	ordersCanceled   prometheus.Counter
	payments         prometheus.Counter

	// Отказы по нехватке остатков
	insufficientStock prometheus.Counter

	// Гистограмма времени выполнения операций
	opDuration *prometheus.HistogramVec

	// Журнал аудита
	activityWrites   prometheus.Counter
	activityFailures prometheus.Counter

	// Outbox-события ядра
	outboxEvents prometheus.Counter
}

// NewInventoryMetrics создаёт новый экземпляр метрик ядра.
func NewInventoryMetrics() *InventoryMetrics {
	return newInventoryMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newInventoryMetricsWithRegisterer(registerer prometheus.Registerer) *InventoryMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &InventoryMetrics{
		assignments: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "rms_assignments_total",
			Help: "Total number of product-to-shop assignments grouped by kind (new/restock)",
		}, []string{"kind"}),
		inventoryActions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "rms_inventory_actions_total",
			Help: "Total number of shop inventory ledger actions grouped by action",
		}, []string{"action"}),
		ordersReleased: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rms_orders_released_total",
			Help: "Total number of orders released to customers",
		}),
		ordersCanceled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rms_orders_canceled_total",
			Help: "Total number of orders canceled",
		}),
		payments: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rms_payments_recorded_total",
			Help: "Total number of payments recorded against orders",
		}),
		insufficientStock: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rms_insufficient_stock_total",
			Help: "Total number of operations rejected due to insufficient stock",
		}),
		opDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "rms_core_op_duration_seconds",
			Help:    "Duration of core operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"op"}),
		activityWrites: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rms_activity_writes_total",
			Help: "Total number of activity log entries written",
		}),
		activityFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rms_activity_failures_total",
			Help: "Total number of activity log writes that failed or were dropped",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rms_outbox_events_total",
			Help: "Total number of events enqueued to the transactional outbox",
		}),
	}
}

// RecordAssignment учитывает закрепление; kind — "new" или "restock".
func (m *InventoryMetrics) RecordAssignment(kind string) {
	m.assignments.WithLabelValues(kind).Inc()
}

// RecordInventoryAction учитывает действие леджера магазина.
func (m *InventoryMetrics) RecordInventoryAction(action string) {
	m.inventoryActions.WithLabelValues(action).Inc()
}

// RecordOrderReleased учитывает выдачу заказа.
func (m *InventoryMetrics) RecordOrderReleased() {
	m.ordersReleased.Inc()
}

// RecordOrderCanceled учитывает отмену заказа.
func (m *InventoryMetrics) RecordOrderCanceled() {
	m.ordersCanceled.Inc()
}

// RecordPayment учитывает зафиксированный платёж.
func (m *InventoryMetrics) RecordPayment() {
	m.payments.Inc()
}

// RecordInsufficientStock учитывает отказ по нехватке остатка.
func (m *InventoryMetrics) RecordInsufficientStock() {
	m.insufficientStock.Inc()
}

// RecordOpDuration фиксирует длительность операции ядра.
func (m *InventoryMetrics) RecordOpDuration(op string, d time.Duration) {
	m.opDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordActivityWrite учитывает успешную запись аудита.
func (m *InventoryMetrics) RecordActivityWrite() {
	m.activityWrites.Inc()
}

// RecordActivityFailure учитывает потерянную запись аудита.
func (m *InventoryMetrics) RecordActivityFailure() {
	m.activityFailures.Inc()
}

// RecordOutboxEvent учитывает событие, поставленное в outbox.
func (m *InventoryMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}
