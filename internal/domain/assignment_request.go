package domain

import "time"

// RequestStatus описывает состояние заявки на закрепление товара.
type RequestStatus string

const (
	// RequestStatusPending — заявка подана кладовщиком и ждёт решения.
	RequestStatusPending RequestStatus = "pending"
	// RequestStatusApproved — заявка одобрена, закрепление выполнено.
	RequestStatusApproved RequestStatus = "approved"
	// RequestStatusRejected — заявка отклонена, движение товара не выполнялось.
	RequestStatusRejected RequestStatus = "rejected"
)

// AssignmentRequest — заявка кладовщика на создание или пополнение закрепления.
// Статусы approved и rejected терминальные.
type AssignmentRequest struct {
	ID          string
	ProductID   string
	ShopID      string
	WarehouseID string
	Qty         int32
	Status      RequestStatus
	RequestedBy string
	RequestedAt time.Time
	ReviewedBy  string
	ReviewedAt  time.Time
	ReviewNotes string
	Version     int64
}

// Validate проверяет корректность полей заявки.
func (r *AssignmentRequest) Validate() []error {
	var errs []error

	if r.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if r.ShopID == "" {
		errs = append(errs, ErrShopIDRequired)
	}
	if r.Qty <= 0 {
		errs = append(errs, ErrQtyInvalid)
	}

	return errs
}

// IsReviewed сообщает, находится ли заявка в терминальном статусе.
func (r *AssignmentRequest) IsReviewed() bool {
	return r.Status == RequestStatusApproved || r.Status == RequestStatusRejected
}
