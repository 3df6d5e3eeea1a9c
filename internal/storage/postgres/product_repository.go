package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (
			id, name, sku, price_minor, total_stock, available_stock,
			warehouse_id, category_id, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		product.ID, product.Name, product.SKU, product.PriceMinor,
		product.TotalStock, product.AvailableStock,
		product.WarehouseID, product.CategoryID, product.Version,
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product %s already exists", product.ID)
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

func (r *productRepository) Get(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, sku, price_minor, total_stock, available_stock,
		       warehouse_id, category_id, version, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID, &product.Name, &product.SKU, &product.PriceMinor,
		&product.TotalStock, &product.AvailableStock,
		&product.WarehouseID, &product.CategoryID, &product.Version,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return product, nil
}

func (r *productRepository) Save(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1,
		    sku = $2,
		    price_minor = $3,
		    available_stock = $4,
		    warehouse_id = $5,
		    category_id = $6,
		    version = version + 1,
		    updated_at = $7
		WHERE id = $8
		  AND version = $9
	`,
		product.Name, product.SKU, product.PriceMinor,
		product.AvailableStock, product.WarehouseID, product.CategoryID,
		product.UpdatedAt, product.ID, product.Version,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.productExists(ctx, product.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrProductNotFound
		}
		return domain.ErrVersionConflict
	}

	return nil
}

// AdjustAvailable атомарно изменяет остаток одним условным UPDATE:
// проверка и запись выполняются в одном statement, гонки check-then-act нет.
func (r *productRepository) AdjustAvailable(id string, delta int32) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET available_stock = LEAST(available_stock + $2, total_stock),
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND available_stock + $2 >= 0
		RETURNING id, name, sku, price_minor, total_stock, available_stock,
		          warehouse_id, category_id, version, created_at, updated_at
	`, id, delta).Scan(
		&product.ID, &product.Name, &product.SKU, &product.PriceMinor,
		&product.TotalStock, &product.AvailableStock,
		&product.WarehouseID, &product.CategoryID, &product.Version,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("adjust available stock: %w", err)
	}

	// UPDATE никого не задел: либо товара нет, либо остатка не хватает.
	current, getErr := r.Get(id)
	if getErr != nil {
		return domain.Product{}, getErr
	}
	return domain.Product{}, &domain.InsufficientStockError{
		ProductID: id,
		Available: current.AvailableStock,
		Requested: -delta,
	}
}

// DecrementAvailableAll списывает остатки в одной транзакции с row-level
// блокировками: либо все позиции, либо ни одной.
func (r *productRepository) DecrementAvailableAll(decs []domain.StockDecrement) error {
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

	for _, dec := range decs {
		var available int32
		err = tx.QueryRowContext(ctx, `
			SELECT available_stock
			FROM products
			WHERE id = $1
			FOR UPDATE
		`, dec.ProductID).Scan(&available)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = domain.ErrProductNotFound
			} else {
				err = fmt.Errorf("lock product row: %w", err)
			}
			return err
		}
		if available < dec.Qty {
			err = &domain.InsufficientStockError{
				ProductID: dec.ProductID,
				Available: available,
				Requested: dec.Qty,
			}
			return err
		}

		if _, err = tx.ExecContext(ctx, `
			UPDATE products
			SET available_stock = available_stock - $2,
			    version = version + 1,
			    updated_at = NOW()
			WHERE id = $1
		`, dec.ProductID, dec.Qty); err != nil {
			err = fmt.Errorf("decrement product stock: %w", err)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit stock decrement: %w", err)
	}

	return nil
}

func (r *productRepository) productExists(ctx context.Context, id string) (bool, error) {
	var found string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check product exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.ProductRepository = (*productRepository)(nil)
