package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

type activityRepository struct {
	db *sql.DB
}

// NewActivityRepository создаёт PostgreSQL-реализацию ActivityRepository.
func NewActivityRepository(store *Store) domain.ActivityRepository {
	return &activityRepository{db: store.DB()}
}

func (r *activityRepository) Append(entry domain.ActivityEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, user_id, action, details, occurred_at)
		VALUES ($1,$2,$3,$4,$5)
	`, entry.ID, entry.UserID, entry.Action, entry.Details, entry.Occurred)
	if err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}

	return nil
}

func (r *activityRepository) ListByUser(userID string, limit int) ([]domain.ActivityEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, action, details, occurred_at
		FROM activity_log
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select activity log: %w", err)
	}
	defer rows.Close()

	var result []domain.ActivityEntry
	for rows.Next() {
		var entry domain.ActivityEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.Details, &entry.Occurred); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity log: %w", err)
	}

	return result, nil
}

var _ domain.ActivityRepository = (*activityRepository)(nil)
