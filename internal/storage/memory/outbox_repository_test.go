package memory_test

import (
	"testing"

	"github.com/vladislavdragonenkov/rms/internal/domain"
	"github.com/vladislavdragonenkov/rms/internal/storage/memory"
)

func TestOutboxRepository_EnqueuePull(t *testing.T) {
	repo := memory.NewOutboxRepository()

	msg, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "assignment",
		AggregateID:   "a-1",
		EventType:     "stock.assigned",
		Payload:       []byte(`{"qty":30}`),
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("enqueue must assign an id")
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(pending))
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 1 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestOutboxRepository_MarkSentFailed(t *testing.T) {
	repo := memory.NewOutboxRepository()

	msg, err := repo.Enqueue(domain.OutboxMessage{EventType: "order.released"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := repo.MarkSent(msg.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending after sent, got %d", len(pending))
	}

	if err := repo.MarkSent("missing"); err == nil {
		t.Fatal("expected error for unknown id")
	}
	if err := repo.MarkFailed("missing"); err == nil {
		t.Fatal("expected error for unknown id")
	}
}
