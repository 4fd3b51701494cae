// Package repo – interaction feed repository.
//
// Repository functions for human-to-bot interaction events. The processed
// flag is the at-most-once marker: the watcher lists unprocessed events and
// marks each one after responding, so a crash between the two at worst
// replays a follow-up, never silently drops one.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-community-sim/internal/domain"
)

// CreateInteractionEvent records a detected human interaction with
// bot-authored content.
func CreateInteractionEvent(ctx context.Context, db *gorm.DB, ev *domain.InteractionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(ev).Error
}

// ListUnprocessedEvents returns up to limit unprocessed events, oldest first.
func ListUnprocessedEvents(ctx context.Context, db *gorm.DB, limit int) ([]domain.InteractionEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.InteractionEvent
	err := db.WithContext(ctx).
		Where("processed = ?", false).
		Order("created_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkEventProcessed flips the processed marker for one event.
func MarkEventProcessed(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Model(&domain.InteractionEvent{}).
		Where("id = ?", id).
		Update("processed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
