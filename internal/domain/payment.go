package domain

import "time"

// PaymentClass классифицирует платёжное состояние заказа по паре (total, paid).
type PaymentClass string

const (
	// PaymentClassUnpaid — оплат ещё не было.
	PaymentClassUnpaid PaymentClass = "unpaid"
	// PaymentClassPartial — оплачена часть суммы.
	PaymentClassPartial PaymentClass = "partial"
	// PaymentClassPaid — оплачено ровно столько, сколько требуется.
	PaymentClassPaid PaymentClass = "paid"
	// PaymentClassOverpaid — оплачено больше суммы заказа; допустимо, не отклоняется.
	PaymentClassOverpaid PaymentClass = "overpaid"
)

// Payment описывает один зафиксированный платёж по заказу.
type Payment struct {
	ID          string
	OrderID     string
	AmountMinor int64
	Method      string
	Reference   string // Может быть пустым, если платёж без внешнего идентификатора.
	Notes       string
	RecordedBy  string
	RecordedAt  time.Time
}

// Validate проверяет корректность полей платежа.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.AmountMinor <= 0 {
		errs = append(errs, ErrPaymentAmountInvalid)
	}

	return errs
}

// PaymentSummary — расчётная сводка по оплате заказа.
type PaymentSummary struct {
	TotalMinor     int64
	PaidMinor      int64
	RemainingMinor int64
	Percentage     float64
	Class          PaymentClass
	CanProceed     bool
	NextAction     string
}

// SummarizePayment считает сводку по паре (total, paid) с учётом текущего
// статуса заказа. RemainingMinor может быть отрицательным при переплате.
// Для TotalMinor == 0 процент определён как 100: платить нечего.
func SummarizePayment(totalMinor, paidMinor int64, status OrderStatus) PaymentSummary {
	s := PaymentSummary{
		TotalMinor:     totalMinor,
		PaidMinor:      paidMinor,
		RemainingMinor: totalMinor - paidMinor,
	}

	switch {
	case totalMinor == 0:
		s.Percentage = 100
		s.Class = PaymentClassPaid
	case paidMinor == 0:
		s.Class = PaymentClassUnpaid
	case paidMinor < totalMinor:
		s.Percentage = float64(paidMinor) / float64(totalMinor) * 100
		s.Class = PaymentClassPartial
	case paidMinor == totalMinor:
		s.Percentage = 100
		s.Class = PaymentClassPaid
	default:
		s.Percentage = float64(paidMinor) / float64(totalMinor) * 100
		s.Class = PaymentClassOverpaid
	}

	s.CanProceed = s.Class == PaymentClassPaid || s.Class == PaymentClassOverpaid
	s.NextAction = nextAction(s, status)
	return s
}

// nextAction — подсказка для фронтенда. Презентационная логика, осознанно
// держится рядом с расчётом, но отдельной функцией.
func nextAction(s PaymentSummary, status OrderStatus) string {
	if !s.CanProceed {
		return "collect remaining balance"
	}
	switch status {
	case OrderStatusCreated, OrderStatusPendingPayment, OrderStatusPaid:
		return "proceed to packaging"
	case OrderStatusAssignedPackager, OrderStatusPackaged:
		return "proceed to release"
	case OrderStatusPickedUp:
		return "confirm delivery"
	case OrderStatusDelivered:
		return "order completed"
	case OrderStatusCanceled:
		return "order canceled"
	default:
		return "proceed to packaging"
	}
}
