package domain_test

import (
	"testing"

	"github.com/vladislavdragonenkov/rms/internal/domain"
)

func TestSummarizePayment_Boundaries(t *testing.T) {
	cases := []struct {
		name       string
		total      int64
		paid       int64
		class      domain.PaymentClass
		canProceed bool
		remaining  int64
	}{
		{"unpaid", 100, 0, domain.PaymentClassUnpaid, false, 100},
		{"partial", 100, 60, domain.PaymentClassPartial, false, 40},
		{"one short", 100, 99, domain.PaymentClassPartial, false, 1},
		{"exact", 100, 100, domain.PaymentClassPaid, true, 0},
		{"one over", 100, 101, domain.PaymentClassOverpaid, true, -1},
		{"zero total", 0, 0, domain.PaymentClassPaid, true, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := domain.SummarizePayment(tc.total, tc.paid, domain.OrderStatusCreated)
			if s.Class != tc.class {
				t.Fatalf("expected class %s, got %s", tc.class, s.Class)
			}
			if s.CanProceed != tc.canProceed {
				t.Fatalf("expected canProceed=%v, got %v", tc.canProceed, s.CanProceed)
			}
			if s.RemainingMinor != tc.remaining {
				t.Fatalf("expected remaining %d, got %d", tc.remaining, s.RemainingMinor)
			}
		})
	}
}

func TestSummarizePayment_Percentage(t *testing.T) {
	s := domain.SummarizePayment(100, 60, domain.OrderStatusCreated)
	if s.Percentage != 60 {
		t.Fatalf("expected 60%%, got %v", s.Percentage)
	}

	// Для нулевой суммы процент определён как 100, деления на ноль нет.
	s = domain.SummarizePayment(0, 0, domain.OrderStatusCreated)
	if s.Percentage != 100 {
		t.Fatalf("expected 100%% for zero total, got %v", s.Percentage)
	}
}

func TestSummarizePayment_NextAction(t *testing.T) {
	cases := []struct {
		name   string
		total  int64
		paid   int64
		status domain.OrderStatus
		want   string
	}{
		{"balance due", 100, 40, domain.OrderStatusPendingPayment, "collect remaining balance"},
		{"paid created", 100, 100, domain.OrderStatusCreated, "proceed to packaging"},
		{"paid packaged", 100, 100, domain.OrderStatusPackaged, "proceed to release"},
		{"picked up", 100, 100, domain.OrderStatusPickedUp, "confirm delivery"},
		{"delivered", 100, 120, domain.OrderStatusDelivered, "order completed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := domain.SummarizePayment(tc.total, tc.paid, tc.status)
			if s.NextAction != tc.want {
				t.Fatalf("expected next action %q, got %q", tc.want, s.NextAction)
			}
		})
	}
}

func TestPaymentValidate(t *testing.T) {
	p := domain.Payment{OrderID: "order-1", AmountMinor: 500}
	if errs := p.Validate(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	p = domain.Payment{OrderID: "", AmountMinor: 0}
	errs := p.Validate()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}
