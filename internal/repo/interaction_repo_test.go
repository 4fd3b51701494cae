package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tbourn/go-community-sim/internal/domain"
)

func TestInteractionEvents_QueueOrderAndMarker(t *testing.T) {
	db := newRepoDB(t, &domain.InteractionEvent{})
	ctx := context.Background()

	base := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ev := domain.InteractionEvent{
			ID: fmt.Sprintf("e%d", i), Kind: domain.InteractionReply,
			UserID: "u1", BotID: "b1", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(&ev).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	pending, err := ListUnprocessedEvents(ctx, db, 10)
	if err != nil {
		t.Fatalf("ListUnprocessedEvents: %v", err)
	}
	if len(pending) != 3 || pending[0].ID != "e0" {
		t.Fatalf("pending = %+v", pending)
	}

	if err := MarkEventProcessed(ctx, db, "e0"); err != nil {
		t.Fatalf("MarkEventProcessed: %v", err)
	}
	pending, err = ListUnprocessedEvents(ctx, db, 10)
	if err != nil {
		t.Fatalf("ListUnprocessedEvents: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "e1" {
		t.Fatalf("pending after mark = %+v", pending)
	}

	// Limit bounds one drain pass.
	pending, err = ListUnprocessedEvents(ctx, db, 1)
	if err != nil || len(pending) != 1 {
		t.Fatalf("limited drain = (%d, %v)", len(pending), err)
	}

	if err := MarkEventProcessed(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateInteractionEvent_FillsID(t *testing.T) {
	db := newRepoDB(t, &domain.InteractionEvent{})
	ctx := context.Background()

	ev := &domain.InteractionEvent{Kind: domain.InteractionVote, UserID: "u1", BotID: "b1"}
	if err := CreateInteractionEvent(ctx, db, ev); err != nil {
		t.Fatalf("CreateInteractionEvent: %v", err)
	}
	if ev.ID == "" || ev.Processed {
		t.Fatalf("event = %+v", ev)
	}
}
