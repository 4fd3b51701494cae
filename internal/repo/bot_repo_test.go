package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-community-sim/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func validBot(username string) *domain.Bot {
	return &domain.Bot{
		Name:          "Helper",
		Username:      username,
		Type:          domain.BotTypeQuestioner,
		ActivityLevel: 5,
	}
}

func TestCreateBot_FillsDefaultsAndValidates(t *testing.T) {
	db := newRepoDB(t, &domain.Bot{})
	ctx := context.Background()

	b := validBot("create_ok")
	if err := CreateBot(ctx, db, b); err != nil {
		t.Fatalf("CreateBot: %v", err)
	}
	if b.ID == "" || b.Status != domain.BotStatusActive {
		t.Fatalf("defaults not applied: %+v", b)
	}

	bad := validBot("create_bad")
	bad.ActivityLevel = 11
	if err := CreateBot(ctx, db, bad); !errors.Is(err, domain.ErrInvalidBot) {
		t.Fatalf("expected ErrInvalidBot for level 11, got %v", err)
	}
}

func TestCreateBots_BatchAndRejectsInvalid(t *testing.T) {
	db := newRepoDB(t, &domain.Bot{})
	ctx := context.Background()

	batch := []domain.Bot{*validBot("batch_a"), *validBot("batch_b"), *validBot("batch_c")}
	if err := CreateBots(ctx, db, batch); err != nil {
		t.Fatalf("CreateBots: %v", err)
	}
	total, err := CountBots(ctx, db)
	if err != nil {
		t.Fatalf("CountBots: %v", err)
	}
	if total != 3 {
		t.Fatalf("count = %d, want 3", total)
	}

	// One invalid record rejects the whole batch.
	bad := []domain.Bot{*validBot("batch_d"), {Name: "x", Username: "batch_e", Type: "oracle", ActivityLevel: 5}}
	if err := CreateBots(ctx, db, bad); !errors.Is(err, domain.ErrInvalidBot) {
		t.Fatalf("expected ErrInvalidBot, got %v", err)
	}
	if total, _ = CountBots(ctx, db); total != 3 {
		t.Fatalf("partial batch write: count = %d", total)
	}

	// Empty batch is a no-op.
	if err := CreateBots(ctx, db, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}

func TestGetBot_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.Bot{})
	if _, err := GetBot(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListActiveBots_FiltersPaused(t *testing.T) {
	db := newRepoDB(t, &domain.Bot{})
	ctx := context.Background()

	active := validBot("act_1")
	if err := CreateBot(ctx, db, active); err != nil {
		t.Fatalf("seed: %v", err)
	}
	paused := validBot("act_2")
	paused.Status = domain.BotStatusPaused
	if err := CreateBot(ctx, db, paused); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := ListActiveBots(ctx, db)
	if err != nil {
		t.Fatalf("ListActiveBots: %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Fatalf("active list = %+v", got)
	}
}

func TestListBotsPage_OffsetAndLimit(t *testing.T) {
	db := newRepoDB(t, &domain.Bot{})
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		b := validBot(fmt.Sprintf("page_%d", i))
		b.ID = fmt.Sprintf("bot-%d", i)
		b.Status = domain.BotStatusActive
		b.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := db.Create(b).Error; err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	page, err := ListBotsPage(ctx, db, 2, 2)
	if err != nil {
		t.Fatalf("ListBotsPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != "bot-2" || page[1].ID != "bot-3" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestUpdateBot_ValidatesAndReportsMissing(t *testing.T) {
	db := newRepoDB(t, &domain.Bot{})
	ctx := context.Background()

	b := validBot("upd_1")
	if err := CreateBot(ctx, db, b); err != nil {
		t.Fatalf("seed: %v", err)
	}

	b.ActivityLevel = 9
	b.Type = domain.BotTypeMixed
	if err := UpdateBot(ctx, db, b); err != nil {
		t.Fatalf("UpdateBot: %v", err)
	}
	got, err := GetBot(ctx, db, b.ID)
	if err != nil {
		t.Fatalf("GetBot: %v", err)
	}
	if got.ActivityLevel != 9 || got.Type != domain.BotTypeMixed {
		t.Fatalf("update lost: %+v", got)
	}

	ghost := validBot("upd_ghost")
	ghost.ID = "missing"
	if err := UpdateBot(ctx, db, ghost); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBulkHelpers(t *testing.T) {
	db := newRepoDB(t, &domain.Bot{})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		b := validBot(fmt.Sprintf("bulk_%d", i))
		if err := CreateBot(ctx, db, b); err != nil {
			t.Fatalf("seed: %v", err)
		}
		ids = append(ids, b.ID)
	}

	if n, err := BulkSetStatus(ctx, db, ids[:2], domain.BotStatusPaused); err != nil || n != 2 {
		t.Fatalf("BulkSetStatus = (%d, %v)", n, err)
	}
	if _, err := BulkSetStatus(ctx, db, ids, "sleeping"); !errors.Is(err, domain.ErrInvalidBot) {
		t.Fatalf("unknown status accepted: %v", err)
	}

	if n, err := BulkSetType(ctx, db, ids, domain.BotTypeAnswerer); err != nil || n != 3 {
		t.Fatalf("BulkSetType = (%d, %v)", n, err)
	}
	if _, err := BulkSetType(ctx, db, ids, "oracle"); !errors.Is(err, domain.ErrInvalidBot) {
		t.Fatalf("unknown type accepted: %v", err)
	}

	if n, err := BulkSetActivityLevel(ctx, db, ids, 8); err != nil || n != 3 {
		t.Fatalf("BulkSetActivityLevel = (%d, %v)", n, err)
	}
	if _, err := BulkSetActivityLevel(ctx, db, ids, 0); !errors.Is(err, domain.ErrInvalidBot) {
		t.Fatalf("level 0 accepted: %v", err)
	}

	if n, err := DeleteBots(ctx, db, ids[:1]); err != nil || n != 1 {
		t.Fatalf("DeleteBots = (%d, %v)", n, err)
	}
	// Soft delete hides the row from reads.
	if _, err := GetBot(ctx, db, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted bot still visible: %v", err)
	}
}

func TestRecordBotAction_CountersAndTimestamp(t *testing.T) {
	db := newRepoDB(t, &domain.Bot{})
	ctx := context.Background()

	b := validBot("rec_1")
	if err := CreateBot(ctx, db, b); err != nil {
		t.Fatalf("seed: %v", err)
	}

	at := time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)
	if err := RecordBotAction(ctx, db, b.ID, 0, 1, 1, 0, at); err != nil {
		t.Fatalf("RecordBotAction: %v", err)
	}
	if err := RecordBotAction(ctx, db, b.ID, 1, 0, 0, 0, at.Add(time.Minute)); err != nil {
		t.Fatalf("RecordBotAction: %v", err)
	}

	got, err := GetBot(ctx, db, b.ID)
	if err != nil {
		t.Fatalf("GetBot: %v", err)
	}
	if got.QuestionsPosted != 1 || got.AnswersPosted != 1 || got.CoinsEarned != 1 {
		t.Fatalf("counters = %+v", got)
	}
	if got.LastActiveAt == nil || !got.LastActiveAt.Equal(at.Add(time.Minute)) {
		t.Fatalf("last_active_at = %v", got.LastActiveAt)
	}

	if err := RecordBotAction(ctx, db, "missing", 1, 0, 0, 0, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateBot_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	if err := CreateBot(context.Background(), db, validBot("nt")); err == nil {
		t.Fatalf("expected error creating without table")
	}
}
