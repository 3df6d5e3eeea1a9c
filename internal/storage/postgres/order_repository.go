package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create сохраняет заказ вместе с позициями в одной транзакции.
func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_name, shop_id, status, payment_status, payment_method,
			total_minor, paid_minor,
			attendee_id, receptionist_id, packager_id, storekeeper_id,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		order.ID, order.CustomerName, order.ShopID, order.Status,
		order.PaymentStatus, order.PaymentMethod,
		order.TotalMinor, order.PaidMinor,
		order.AttendeeID, order.ReceptionistID, order.PackagerID, order.StorekeeperID,
		order.Version, order.CreatedAt, order.UpdatedAt,
	); err != nil {
		err = fmt.Errorf("insert order: %w", err)
		return err
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, qty, price_minor, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, item.ID, order.ID, item.ProductID, item.Qty, item.PriceMinor, item.CreatedAt); err != nil {
			err = fmt.Errorf("insert order item: %w", err)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var order domain.Order
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_name, shop_id, status, payment_status, payment_method,
		       total_minor, paid_minor,
		       attendee_id, receptionist_id, packager_id, storekeeper_id,
		       version, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.CustomerName, &order.ShopID, &order.Status,
		&order.PaymentStatus, &order.PaymentMethod,
		&order.TotalMinor, &order.PaidMinor,
		&order.AttendeeID, &order.ReceptionistID, &order.PackagerID, &order.StorekeeperID,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	order.Items, err = r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

func (r *orderRepository) ListByShop(shopID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_name, shop_id, status, payment_status, payment_method,
		       total_minor, paid_minor,
		       attendee_id, receptionist_id, packager_id, storekeeper_id,
		       version, created_at, updated_at
		FROM orders
		WHERE shop_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, shopID, limit)
	if err != nil {
		return nil, fmt.Errorf("select shop orders: %w", err)
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID, &order.CustomerName, &order.ShopID, &order.Status,
			&order.PaymentStatus, &order.PaymentMethod,
			&order.TotalMinor, &order.PaidMinor,
			&order.AttendeeID, &order.ReceptionistID, &order.PackagerID, &order.StorekeeperID,
			&order.Version, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		result = append(result, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	for i := range result {
		result[i].Items, err = r.loadItems(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Save обновляет изменяемую часть заказа. Позиции неизменяемы
// и при сохранении не трогаются.
func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    payment_status = $2,
		    payment_method = $3,
		    paid_minor = $4,
		    attendee_id = $5,
		    receptionist_id = $6,
		    packager_id = $7,
		    storekeeper_id = $8,
		    version = version + 1,
		    updated_at = $9
		WHERE id = $10
		  AND version = $11
	`,
		order.Status, order.PaymentStatus, order.PaymentMethod, order.PaidMinor,
		order.AttendeeID, order.ReceptionistID, order.PackagerID, order.StorekeeperID,
		order.UpdatedAt, order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrVersionConflict
	}

	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, qty, price_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Qty, &item.PriceMinor, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) orderExists(ctx context.Context, id string) (bool, error) {
	var found string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

var _ domain.OrderRepository = (*orderRepository)(nil)
