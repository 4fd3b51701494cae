// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Bot model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition — with one deliberate exception: every
// write path calls Bot.Validate() so that a misconfigured record (activity
// level out of range, unknown type) can never reach the scheduler.
//
// Error semantics:
//   - When a bot is not found, functions return gorm.ErrRecordNotFound
//     (exported from db.go as ErrNotFound).
//   - Invalid records are rejected with domain.ErrInvalidBot.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-community-sim/internal/domain"
)

// CreateBot validates and inserts a single bot. A missing ID is filled with
// a fresh UUID.
func CreateBot(ctx context.Context, db *gorm.DB, b *domain.Bot) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = domain.BotStatusActive
	}
	if err := b.Validate(); err != nil {
		return err
	}
	b.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(b).Error
}

// CreateBots validates and inserts many bots in one batch (bot generation
// tooling). The whole batch is rejected if any record is invalid.
func CreateBots(ctx context.Context, db *gorm.DB, bots []domain.Bot) error {
	if len(bots) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range bots {
		if bots[i].ID == "" {
			bots[i].ID = uuid.NewString()
		}
		if bots[i].Status == "" {
			bots[i].Status = domain.BotStatusActive
		}
		if err := bots[i].Validate(); err != nil {
			return err
		}
		bots[i].CreatedAt = now
	}
	return db.WithContext(ctx).CreateInBatches(bots, 100).Error
}

// GetBot fetches a single bot by ID, or ErrNotFound.
func GetBot(ctx context.Context, db *gorm.DB, id string) (*domain.Bot, error) {
	var b domain.Bot
	if err := db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBots returns all bots ordered by creation time ascending.
func ListBots(ctx context.Context, db *gorm.DB) ([]domain.Bot, error) {
	var out []domain.Bot
	err := db.WithContext(ctx).Order("created_at asc").Find(&out).Error
	return out, err
}

// ListBotsPage returns a page of bots plus CountBots for pagination metadata.
func ListBotsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Bot, error) {
	var out []domain.Bot
	err := db.WithContext(ctx).
		Order("created_at asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountBots returns the total number of registered bots.
func CountBots(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Bot{}).Count(&total).Error
	return total, err
}

// ListActiveBots returns all bots with status "active".
func ListActiveBots(ctx context.Context, db *gorm.DB) ([]domain.Bot, error) {
	var out []domain.Bot
	err := db.WithContext(ctx).
		Where("status = ?", domain.BotStatusActive).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// UpdateBot persists a modified bot after re-validating it.
func UpdateBot(ctx context.Context, db *gorm.DB, b *domain.Bot) error {
	if err := b.Validate(); err != nil {
		return err
	}
	res := db.WithContext(ctx).Model(&domain.Bot{}).Where("id = ?", b.ID).Updates(map[string]any{
		"name":           b.Name,
		"type":           b.Type,
		"activity_level": b.ActivityLevel,
		"status":         b.Status,
		"days":           b.Days,
		"start_hour":     b.StartHour,
		"end_hour":       b.EndHour,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// BulkSetStatus flips many bots between active and paused at once.
func BulkSetStatus(ctx context.Context, db *gorm.DB, ids []string, status string) (int64, error) {
	switch status {
	case domain.BotStatusActive, domain.BotStatusPaused:
	default:
		return 0, domain.ErrInvalidBot
	}
	res := db.WithContext(ctx).Model(&domain.Bot{}).Where("id IN ?", ids).Update("status", status)
	return res.RowsAffected, res.Error
}

// BulkSetType changes the behavioral type for many bots at once.
func BulkSetType(ctx context.Context, db *gorm.DB, ids []string, botType string) (int64, error) {
	switch botType {
	case domain.BotTypeQuestioner, domain.BotTypeAnswerer, domain.BotTypeMixed:
	default:
		return 0, domain.ErrInvalidBot
	}
	res := db.WithContext(ctx).Model(&domain.Bot{}).Where("id IN ?", ids).Update("type", botType)
	return res.RowsAffected, res.Error
}

// BulkSetActivityLevel changes the activity level for many bots at once.
func BulkSetActivityLevel(ctx context.Context, db *gorm.DB, ids []string, level int) (int64, error) {
	if level < 1 || level > 10 {
		return 0, domain.ErrInvalidBot
	}
	res := db.WithContext(ctx).Model(&domain.Bot{}).Where("id IN ?", ids).Update("activity_level", level)
	return res.RowsAffected, res.Error
}

// DeleteBots soft-deletes many bots (admin bulk action; bots are never
// hard-deleted during normal operation).
func DeleteBots(ctx context.Context, db *gorm.DB, ids []string) (int64, error) {
	res := db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Bot{})
	return res.RowsAffected, res.Error
}

// RecordBotAction bumps the bot's counters after an executed action and
// stamps last_active_at. Exactly one of the increment flags applies per call.
func RecordBotAction(ctx context.Context, db *gorm.DB, id string, questions, answers, coins, votes int, at time.Time) error {
	updates := map[string]any{
		"last_active_at": at.UTC(),
	}
	if questions != 0 {
		updates["questions_posted"] = gorm.Expr("questions_posted + ?", questions)
	}
	if answers != 0 {
		updates["answers_posted"] = gorm.Expr("answers_posted + ?", answers)
	}
	if coins != 0 {
		updates["coins_earned"] = gorm.Expr("coins_earned + ?", coins)
	}
	if votes != 0 {
		updates["helpful_votes"] = gorm.Expr("helpful_votes + ?", votes)
	}
	res := db.WithContext(ctx).Model(&domain.Bot{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
