package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

type assignmentRequestRepository struct {
	db *sql.DB
}

// NewAssignmentRequestRepository создаёт PostgreSQL-реализацию AssignmentRequestRepository.
func NewAssignmentRequestRepository(store *Store) domain.AssignmentRequestRepository {
	return &assignmentRequestRepository{db: store.DB()}
}

func (r *assignmentRequestRepository) Create(request domain.AssignmentRequest) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assignment_requests (
			id, product_id, shop_id, warehouse_id, qty,
			status, requested_by, requested_at,
			reviewed_by, reviewed_at, review_notes, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		request.ID, request.ProductID, request.ShopID, request.WarehouseID, request.Qty,
		request.Status, request.RequestedBy, request.RequestedAt,
		request.ReviewedBy, nullTime(request.ReviewedAt), request.ReviewNotes, request.Version,
	)
	if err != nil {
		return fmt.Errorf("insert assignment request: %w", err)
	}

	return nil
}

func (r *assignmentRequestRepository) Get(id string) (domain.AssignmentRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return scanAssignmentRequest(r.db.QueryRowContext(ctx, `
		SELECT id, product_id, shop_id, warehouse_id, qty,
		       status, requested_by, requested_at,
		       reviewed_by, reviewed_at, review_notes, version
		FROM assignment_requests
		WHERE id = $1
	`, id))
}

func (r *assignmentRequestRepository) ListPending(limit int) ([]domain.AssignmentRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, shop_id, warehouse_id, qty,
		       status, requested_by, requested_at,
		       reviewed_by, reviewed_at, review_notes, version
		FROM assignment_requests
		WHERE status = $1
		ORDER BY requested_at
		LIMIT $2
	`, domain.RequestStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending requests: %w", err)
	}
	defer rows.Close()

	var result []domain.AssignmentRequest
	for rows.Next() {
		var req domain.AssignmentRequest
		var reviewedAt sql.NullTime
		if err := rows.Scan(
			&req.ID, &req.ProductID, &req.ShopID, &req.WarehouseID, &req.Qty,
			&req.Status, &req.RequestedBy, &req.RequestedAt,
			&req.ReviewedBy, &reviewedAt, &req.ReviewNotes, &req.Version,
		); err != nil {
			return nil, fmt.Errorf("scan assignment request: %w", err)
		}
		req.ReviewedAt = reviewedAt.Time
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignment requests: %w", err)
	}

	return result, nil
}

func (r *assignmentRequestRepository) Save(request domain.AssignmentRequest) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE assignment_requests
		SET status = $1,
		    reviewed_by = $2,
		    reviewed_at = $3,
		    review_notes = $4,
		    version = version + 1
		WHERE id = $5
		  AND version = $6
	`,
		request.Status, request.ReviewedBy, nullTime(request.ReviewedAt),
		request.ReviewNotes, request.ID, request.Version,
	)
	if err != nil {
		return fmt.Errorf("update assignment request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.Get(request.ID); getErr != nil {
			return getErr
		}
		return domain.ErrVersionConflict
	}

	return nil
}

func scanAssignmentRequest(row *sql.Row) (domain.AssignmentRequest, error) {
	var req domain.AssignmentRequest
	var reviewedAt sql.NullTime
	err := row.Scan(
		&req.ID, &req.ProductID, &req.ShopID, &req.WarehouseID, &req.Qty,
		&req.Status, &req.RequestedBy, &req.RequestedAt,
		&req.ReviewedBy, &reviewedAt, &req.ReviewNotes, &req.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AssignmentRequest{}, domain.ErrRequestNotFound
		}
		return domain.AssignmentRequest{}, fmt.Errorf("select assignment request: %w", err)
	}
	req.ReviewedAt = reviewedAt.Time
	return req, nil
}

// nullTime хранит нулевое время как NULL, чтобы не писать в колонку 0001-01-01.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

var _ domain.AssignmentRequestRepository = (*assignmentRequestRepository)(nil)
