package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

type assignmentRepository struct {
	db *sql.DB
}

// NewAssignmentRepository создаёт PostgreSQL-реализацию AssignmentRepository.
func NewAssignmentRepository(store *Store) domain.AssignmentRepository {
	return &assignmentRepository{db: store.DB()}
}

func (r *assignmentRepository) Create(assignment domain.Assignment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO product_assignments (
			id, product_id, shop_id, warehouse_id,
			quantity, available_qty, sold_qty,
			assigned_by, assigned_at, version, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		assignment.ID, assignment.ProductID, assignment.ShopID, assignment.WarehouseID,
		assignment.Quantity, assignment.AvailableQty, assignment.SoldQty,
		assignment.AssignedBy, assignment.AssignedAt, assignment.Version, assignment.UpdatedAt,
	)
	if err != nil {
		// Уникальная пара (product_id, shop_id): повторное назначение
		// должно идти через merge, а не через второй ряд.
		if isUniqueViolation(err) {
			return domain.ErrAssignmentExists
		}
		return fmt.Errorf("insert assignment: %w", err)
	}

	return nil
}

func (r *assignmentRepository) Get(id string) (domain.Assignment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return scanAssignment(r.db.QueryRowContext(ctx, `
		SELECT id, product_id, shop_id, warehouse_id,
		       quantity, available_qty, sold_qty,
		       assigned_by, assigned_at, version, updated_at
		FROM product_assignments
		WHERE id = $1
	`, id))
}

func (r *assignmentRepository) FindByProductShop(productID, shopID string) (domain.Assignment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return scanAssignment(r.db.QueryRowContext(ctx, `
		SELECT id, product_id, shop_id, warehouse_id,
		       quantity, available_qty, sold_qty,
		       assigned_by, assigned_at, version, updated_at
		FROM product_assignments
		WHERE product_id = $1 AND shop_id = $2
	`, productID, shopID))
}

func (r *assignmentRepository) ListByShop(shopID string) ([]domain.Assignment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, shop_id, warehouse_id,
		       quantity, available_qty, sold_qty,
		       assigned_by, assigned_at, version, updated_at
		FROM product_assignments
		WHERE shop_id = $1
		ORDER BY assigned_at
	`, shopID)
	if err != nil {
		return nil, fmt.Errorf("select shop assignments: %w", err)
	}
	defer rows.Close()

	var result []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(
			&a.ID, &a.ProductID, &a.ShopID, &a.WarehouseID,
			&a.Quantity, &a.AvailableQty, &a.SoldQty,
			&a.AssignedBy, &a.AssignedAt, &a.Version, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}

	return result, nil
}

func (r *assignmentRepository) Save(assignment domain.Assignment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE product_assignments
		SET warehouse_id = $1,
		    quantity = $2,
		    available_qty = $3,
		    sold_qty = $4,
		    assigned_by = $5,
		    assigned_at = $6,
		    version = version + 1,
		    updated_at = $7
		WHERE id = $8
		  AND version = $9
	`,
		assignment.WarehouseID, assignment.Quantity,
		assignment.AvailableQty, assignment.SoldQty,
		assignment.AssignedBy, assignment.AssignedAt, assignment.UpdatedAt,
		assignment.ID, assignment.Version,
	)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.Get(assignment.ID); getErr != nil {
			return getErr
		}
		return domain.ErrVersionConflict
	}

	return nil
}

func scanAssignment(row *sql.Row) (domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(
		&a.ID, &a.ProductID, &a.ShopID, &a.WarehouseID,
		&a.Quantity, &a.AvailableQty, &a.SoldQty,
		&a.AssignedBy, &a.AssignedAt, &a.Version, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Assignment{}, domain.ErrAssignmentNotFound
		}
		return domain.Assignment{}, fmt.Errorf("select assignment: %w", err)
	}
	return a, nil
}

var _ domain.AssignmentRepository = (*assignmentRepository)(nil)
