package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

type pairKey struct {
	productID string
	shopID    string
}

// assignmentRepositoryInMemory хранит закрепления и индекс по паре (product, shop).
type assignmentRepositoryInMemory struct {
	mu     sync.RWMutex
	items  map[string]domain.Assignment
	byPair map[pairKey]string
}

// NewAssignmentRepository возвращает in-memory реализацию AssignmentRepository.
func NewAssignmentRepository() domain.AssignmentRepository {
	return &assignmentRepositoryInMemory{
		items:  make(map[string]domain.Assignment),
		byPair: make(map[pairKey]string),
	}
}

// Create сохраняет закрепление, охраняя уникальность пары (product, shop).
func (r *assignmentRepositoryInMemory) Create(assignment domain.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[assignment.ID]; exists {
		return domain.ErrVersionConflict
	}
	key := pairKey{assignment.ProductID, assignment.ShopID}
	if _, exists := r.byPair[key]; exists {
		return domain.ErrAssignmentExists
	}

	r.items[assignment.ID] = assignment
	r.byPair[key] = assignment.ID
	return nil
}

// Get возвращает закрепление или ErrAssignmentNotFound.
func (r *assignmentRepositoryInMemory) Get(id string) (domain.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	assignment, ok := r.items[id]
	if !ok {
		return domain.Assignment{}, domain.ErrAssignmentNotFound
	}
	return assignment, nil
}

// FindByProductShop ищет закрепление по паре (product, shop).
func (r *assignmentRepositoryInMemory) FindByProductShop(productID, shopID string) (domain.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPair[pairKey{productID, shopID}]
	if !ok {
		return domain.Assignment{}, domain.ErrAssignmentNotFound
	}
	return r.items[id], nil
}

// ListByShop возвращает закрепления магазина в стабильном порядке.
func (r *assignmentRepositoryInMemory) ListByShop(shopID string) ([]domain.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Assignment, 0)
	for _, assignment := range r.items {
		if assignment.ShopID != shopID {
			continue
		}
		result = append(result, assignment)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].AssignedAt.Equal(result[j].AssignedAt) {
			return result[i].AssignedAt.After(result[j].AssignedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// Save перезаписывает закрепление, проверяя версию (optimistic locking).
func (r *assignmentRepositoryInMemory) Save(assignment domain.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[assignment.ID]
	if !ok {
		return domain.ErrAssignmentNotFound
	}
	if current.Version != assignment.Version {
		return domain.ErrVersionConflict
	}
	assignment.Version++
	r.items[assignment.ID] = assignment
	return nil
}

var _ domain.AssignmentRepository = (*assignmentRepositoryInMemory)(nil)
