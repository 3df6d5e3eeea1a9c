package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

func (r *paymentRepository) Append(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, amount_minor, method, reference, notes, recorded_by, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		payment.ID, payment.OrderID, payment.AmountMinor, payment.Method,
		payment.Reference, payment.Notes, payment.RecordedBy, payment.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

func (r *paymentRepository) ListByOrder(orderID string) ([]domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, amount_minor, method, reference, notes, recorded_by, recorded_at
		FROM payments
		WHERE order_id = $1
		ORDER BY recorded_at
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order payments: %w", err)
	}
	defer rows.Close()

	var result []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(
			&p.ID, &p.OrderID, &p.AmountMinor, &p.Method,
			&p.Reference, &p.Notes, &p.RecordedBy, &p.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}

	return result, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
