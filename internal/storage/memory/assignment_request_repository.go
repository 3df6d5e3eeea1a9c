package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

// assignmentRequestRepositoryInMemory — in-memory хранилище заявок кладовщиков.
type assignmentRequestRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.AssignmentRequest
}

// NewAssignmentRequestRepository возвращает in-memory реализацию AssignmentRequestRepository.
func NewAssignmentRequestRepository() domain.AssignmentRequestRepository {
	return &assignmentRequestRepositoryInMemory{
		items: make(map[string]domain.AssignmentRequest),
	}
}

func (r *assignmentRequestRepositoryInMemory) Create(request domain.AssignmentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[request.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.items[request.ID] = request
	return nil
}

func (r *assignmentRequestRepositoryInMemory) Get(id string) (domain.AssignmentRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	request, ok := r.items[id]
	if !ok {
		return domain.AssignmentRequest{}, domain.ErrRequestNotFound
	}
	return request, nil
}

// ListPending возвращает ожидающие заявки, старые сначала.
func (r *assignmentRequestRepositoryInMemory) ListPending(limit int) ([]domain.AssignmentRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.AssignmentRequest, 0)
	for _, request := range r.items {
		if request.Status != domain.RequestStatusPending {
			continue
		}
		result = append(result, request)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].RequestedAt.Equal(result[j].RequestedAt) {
			return result[i].RequestedAt.Before(result[j].RequestedAt)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (r *assignmentRequestRepositoryInMemory) Save(request domain.AssignmentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[request.ID]
	if !ok {
		return domain.ErrRequestNotFound
	}
	if current.Version != request.Version {
		return domain.ErrVersionConflict
	}
	request.Version++
	r.items[request.ID] = request
	return nil
}

var _ domain.AssignmentRequestRepository = (*assignmentRequestRepositoryInMemory)(nil)
