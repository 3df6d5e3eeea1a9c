package domain

import "time"

// Product описывает товар на складе.
// TotalStock фиксируется при создании и больше не меняется,
// AvailableStock — остаток на складе, ещё не распределённый по магазинам.
type Product struct {
	ID             string
	Name           string
	SKU            string
	PriceMinor     int64
	TotalStock     int32
	AvailableStock int32
	WarehouseID    string
	CategoryID     string
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidateInvariants проверяет базовые инварианты товара и возвращает список замечаний.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.WarehouseID == "" {
		errs = append(errs, ErrWarehouseRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrPriceNegative)
	}
	if p.TotalStock < 0 {
		errs = append(errs, ErrTotalStockNegative)
	}
	// Остаток не может выйти за пределы 0..TotalStock.
	if p.AvailableStock < 0 || p.AvailableStock > p.TotalStock {
		errs = append(errs, ErrAvailableStockOutOfRange)
	}

	return errs
}

// StockDecrement описывает списание остатка по одному товару.
// Используется при release заказа: все списания применяются атомарно.
type StockDecrement struct {
	ProductID string
	Qty       int32
}
