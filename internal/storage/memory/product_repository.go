package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

// productRepositoryInMemory — простая in-memory реализация ProductRepository.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Create сохраняет новый товар, если ID ещё не занят.
func (r *productRepositoryInMemory) Create(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[product.ID]; exists {
		return domain.ErrVersionConflict
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[product.ID] = product
	return nil
}

// Get возвращает товар или ErrProductNotFound, если его нет.
func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// Save перезаписывает товар, проверяя версию (optimistic locking).
func (r *productRepositoryInMemory) Save(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if current.Version != product.Version {
		return domain.ErrVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	product.Version++
	r.items[product.ID] = product
	return nil
}

// AdjustAvailable атомарно меняет доступный остаток; проверка и запись
// выполняются под одной блокировкой, check-then-act гонки нет.
func (r *productRepositoryInMemory) AdjustAvailable(id string, delta int32) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}

	next := product.AvailableStock + delta
	if next < 0 {
		return domain.Product{}, &domain.InsufficientStockError{
			ProductID: id,
			Available: product.AvailableStock,
			Requested: -delta,
		}
	}
	if next > product.TotalStock {
		next = product.TotalStock
	}

	product.AvailableStock = next
	product.Version++
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return product, nil
}

// DecrementAvailableAll списывает остатки по всем позициям или ни по одной.
// Сначала проверяются все списания, затем все применяются — под одной блокировкой.
func (r *productRepositoryInMemory) DecrementAvailableAll(decs []domain.StockDecrement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dec := range decs {
		product, ok := r.items[dec.ProductID]
		if !ok {
			return domain.ErrProductNotFound
		}
		if product.AvailableStock < dec.Qty {
			return &domain.InsufficientStockError{
				ProductID: dec.ProductID,
				Available: product.AvailableStock,
				Requested: dec.Qty,
			}
		}
	}

	now := time.Now().UTC()
	for _, dec := range decs {
		product := r.items[dec.ProductID]
		product.AvailableStock -= dec.Qty
		product.Version++
		product.UpdatedAt = now
		r.items[dec.ProductID] = product
	}
	return nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
