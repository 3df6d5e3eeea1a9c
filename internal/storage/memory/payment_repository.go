package memory

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

// paymentRepositoryInMemory — append-only in-memory хранилище платежей.
type paymentRepositoryInMemory struct {
	mu      sync.RWMutex
	byOrder map[string][]domain.Payment
}

// NewPaymentRepository возвращает in-memory реализацию PaymentRepository.
func NewPaymentRepository() domain.PaymentRepository {
	return &paymentRepositoryInMemory{byOrder: make(map[string][]domain.Payment)}
}

// Append добавляет платёж в журнал заказа.
func (r *paymentRepositoryInMemory) Append(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	r.byOrder[payment.OrderID] = append(r.byOrder[payment.OrderID], payment)
	return nil
}

// ListByOrder возвращает платежи заказа в порядке записи.
func (r *paymentRepositoryInMemory) ListByOrder(orderID string) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payments := r.byOrder[orderID]
	result := make([]domain.Payment, len(payments))
	copy(result, payments)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].RecordedAt.Before(result[j].RecordedAt)
	})
	return result, nil
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
