package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

// activityRepositoryInMemory — append-only in-memory журнал аудита.
type activityRepositoryInMemory struct {
	mu      sync.RWMutex
	entries []domain.ActivityEntry
}

// NewActivityRepository возвращает in-memory реализацию ActivityRepository.
func NewActivityRepository() *activityRepositoryInMemory {
	return &activityRepositoryInMemory{}
}

// Append добавляет запись в журнал.
func (r *activityRepositoryInMemory) Append(entry domain.ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	r.entries = append(r.entries, entry)
	return nil
}

// ListByUser возвращает записи пользователя, новые сначала.
func (r *activityRepositoryInMemory) ListByUser(userID string, limit int) ([]domain.ActivityEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.ActivityEntry, 0)
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID != userID {
			continue
		}
		result = append(result, r.entries[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// All возвращает копию всех записей (используется в тестах).
func (r *activityRepositoryInMemory) All() []domain.ActivityEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.ActivityEntry, len(r.entries))
	copy(result, r.entries)
	return result
}

var _ domain.ActivityRepository = (*activityRepositoryInMemory)(nil)
