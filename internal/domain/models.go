// Package domain defines the persistence models for bots, community content
// (questions, answers, votes), the coin ledger, and human-interaction events.
// These types are mapped with GORM and form the core data layer of the
// community simulator.
package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Bot types.
const (
	BotTypeQuestioner = "questioner"
	BotTypeAnswerer   = "answerer"
	BotTypeMixed      = "mixed"
)

// Bot statuses.
const (
	BotStatusActive = "active"
	BotStatusPaused = "paused"
)

// Transaction types and categories.
const (
	TxEarn  = "earn"
	TxSpend = "spend"

	TxCategoryQuestion     = "question"
	TxCategoryAnswer       = "answer"
	TxCategoryDaily        = "daily"
	TxCategoryHelpfulVotes = "helpful_votes"
	TxCategoryBestAnswer   = "best_answer"
)

// Question types. Costs per type live in the ledger service.
const (
	QuestionTypeRegular = "regular"
	QuestionTypeUrgent  = "urgent"
)

// Interaction event kinds.
const (
	InteractionReply = "reply"
	InteractionVote  = "vote"
)

// ErrInvalidBot is returned when a Bot record fails validation. Invalid
// records are rejected at the point they are written so that the scheduler
// never sees a misconfigured bot.
var ErrInvalidBot = errors.New("invalid bot configuration")

// Bot is an automated community participant. Its behavioral config (type,
// activity level, status, schedule window) drives the per-cycle decision in
// the scheduler; its counters are updated by the automation runner after
// every executed action.
//
// Schedule encoding:
//   - Days: comma-separated weekday numbers (0=Sunday … 6=Saturday);
//     empty means every day.
//   - StartHour/EndHour: half-open [start, end) hour range in UTC;
//     equal values mean the whole day.
type Bot struct {
	ID       string `json:"id"       gorm:"type:char(36);primaryKey"`
	Name     string `json:"name"     gorm:"type:varchar(128);not null"`
	Username string `json:"username" gorm:"type:varchar(64);not null;uniqueIndex:ux_bot_username"`

	Type          string `json:"type"           gorm:"type:varchar(16);not null;check:type IN ('questioner','answerer','mixed')"`
	ActivityLevel int    `json:"activity_level" gorm:"not null;check:activity_level BETWEEN 1 AND 10"`
	Status        string `json:"status"         gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','paused')"`

	Days      string `json:"days"       gorm:"type:varchar(32);not null;default:''"`
	StartHour int    `json:"start_hour" gorm:"not null;default:0"`
	EndHour   int    `json:"end_hour"   gorm:"not null;default:0"`

	QuestionsPosted int        `json:"questions_posted" gorm:"not null;default:0"`
	AnswersPosted   int        `json:"answers_posted"   gorm:"not null;default:0"`
	CoinsEarned     int        `json:"coins_earned"     gorm:"not null;default:0"`
	HelpfulVotes    int        `json:"helpful_votes"    gorm:"not null;default:0"`
	LastActiveAt    *time.Time `json:"last_active_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Bot.
func (Bot) TableName() string { return "bots" }

// Validate checks the behavioral configuration. It returns ErrInvalidBot for
// unknown types/statuses, activity levels outside [1,10], malformed schedule
// days, or hour bounds outside [0,24).
func (b *Bot) Validate() error {
	switch b.Type {
	case BotTypeQuestioner, BotTypeAnswerer, BotTypeMixed:
	default:
		return ErrInvalidBot
	}
	switch b.Status {
	case BotStatusActive, BotStatusPaused:
	default:
		return ErrInvalidBot
	}
	if b.ActivityLevel < 1 || b.ActivityLevel > 10 {
		return ErrInvalidBot
	}
	if b.StartHour < 0 || b.StartHour > 23 || b.EndHour < 0 || b.EndHour > 23 {
		return ErrInvalidBot
	}
	if _, err := b.ScheduleDays(); err != nil {
		return ErrInvalidBot
	}
	return nil
}

// ScheduleDays parses the Days CSV into weekday numbers. An empty string
// yields nil, meaning the bot may act on any day.
func (b *Bot) ScheduleDays() ([]time.Weekday, error) {
	if strings.TrimSpace(b.Days) == "" {
		return nil, nil
	}
	parts := strings.Split(b.Days, ",")
	out := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 6 {
			return nil, errors.New("schedule days must be weekday numbers 0-6")
		}
		out = append(out, time.Weekday(n))
	}
	return out, nil
}

// InWindow reports whether t falls inside the bot's schedule window.
func (b *Bot) InWindow(t time.Time) bool {
	t = t.UTC()
	if days, err := b.ScheduleDays(); err == nil && days != nil {
		ok := false
		for _, d := range days {
			if t.Weekday() == d {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if b.StartHour == b.EndHour {
		return true
	}
	h := t.Hour()
	if b.StartHour < b.EndHour {
		return h >= b.StartHour && h < b.EndHour
	}
	// window wraps midnight, e.g. 22 → 6
	return h >= b.StartHour || h < b.EndHour
}

// Question is a community question. Bot-authored questions carry the topic
// the generator used; ContentHash enables O(1) exact-duplicate lookups.
type Question struct {
	ID          string `json:"id"           gorm:"type:char(36);primaryKey"`
	AuthorID    string `json:"author_id"    gorm:"type:varchar(64);not null;index:idx_question_author"`
	AuthorIsBot bool   `json:"author_is_bot" gorm:"not null;default:false"`
	Topic       string `json:"topic"        gorm:"type:varchar(64);not null;default:''"`
	Title       string `json:"title"        gorm:"type:varchar(255);not null"`
	Content     string `json:"content"      gorm:"type:text;not null"`
	ContentHash string `json:"-"            gorm:"type:char(16);not null;index:idx_question_hash"`
	Type        string `json:"type"         gorm:"type:varchar(16);not null;default:'regular';check:type IN ('regular','urgent')"`

	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Question.
func (Question) TableName() string { return "questions" }

// Answer is a reply to a question. Vote totals and the best-answer flag are
// denormalized here and mutated only through the coin ledger; IsBestAnswer is
// monotonic (false→true, never revoked).
type Answer struct {
	ID          string `json:"id"           gorm:"type:char(36);primaryKey"`
	QuestionID  string `json:"question_id"  gorm:"type:char(36);not null;index:idx_answer_question"`
	AuthorID    string `json:"author_id"    gorm:"type:varchar(64);not null;index:idx_answer_author"`
	AuthorIsBot bool   `json:"author_is_bot" gorm:"not null;default:false"`
	Content     string `json:"content"      gorm:"type:text;not null"`
	ContentHash string `json:"-"            gorm:"type:char(16);not null;index:idx_answer_hash"`

	TotalVotes   int  `json:"total_votes"    gorm:"not null;default:0"`
	CoinsEarned  int  `json:"coins_earned"   gorm:"not null;default:0"`
	IsBestAnswer bool `json:"is_best_answer" gorm:"not null;default:false"`

	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Question is the parent. Answers are cascade-deleted with it.
	Question Question `json:"-" gorm:"foreignKey:QuestionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Answer.
func (Answer) TableName() string { return "answers" }

// AnswerVote is one voter's helpful-vote on one answer. The unique index on
// (answer_id, voter_id) gives the voter set its no-duplicates guarantee at
// the storage layer, backing up the membership check in the ledger.
type AnswerVote struct {
	ID       string `json:"id"        gorm:"type:char(36);primaryKey"`
	AnswerID string `json:"answer_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_vote_answer_voter"`
	VoterID  string `json:"voter_id"  gorm:"type:varchar(64);not null;uniqueIndex:ux_vote_answer_voter"`

	CreatedAt time.Time `json:"created_at"`

	// Answer is the voted answer. Votes are cascade-deleted with it.
	Answer Answer `json:"-" gorm:"foreignKey:AnswerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AnswerVote.
func (AnswerVote) TableName() string { return "answer_votes" }

// CoinTransaction is one immutable entry in the append-only coin ledger.
// Rows are created exactly once per economic event and never updated or
// deleted; a user's balance is derived by applying them in order.
type CoinTransaction struct {
	ID         string `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string `json:"user_id"     gorm:"type:varchar(64);not null;index:idx_tx_user"`
	Type       string `json:"type"        gorm:"type:varchar(8);not null;check:type IN ('earn','spend')"`
	Amount     int    `json:"amount"      gorm:"not null;check:amount > 0"`
	Category   string `json:"category"    gorm:"type:varchar(24);not null"`
	Reason     string `json:"reason"      gorm:"type:varchar(255);not null;default:''"`
	QuestionID string `json:"question_id,omitempty" gorm:"type:char(36);not null;default:''"`
	AnswerID   string `json:"answer_id,omitempty"   gorm:"type:char(36);not null;default:''"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_tx_user_time"`
}

// TableName returns the database table name for CoinTransaction.
func (CoinTransaction) TableName() string { return "coin_transactions" }

// UserProfile is the mutable per-user balance snapshot maintained by the coin
// ledger. Balance always equals TotalEarned - TotalSpent; the ledger enforces
// this at apply time rather than recomputing it.
type UserProfile struct {
	UserID           string `json:"user_id"  gorm:"type:varchar(64);primaryKey"`
	Username         string `json:"username" gorm:"type:varchar(64);not null;default:''"`
	Balance          int    `json:"balance"        gorm:"not null;default:0"`
	TotalEarned      int    `json:"total_earned"   gorm:"not null;default:0"`
	TotalSpent       int    `json:"total_spent"    gorm:"not null;default:0"`
	MonthlyEarned    int    `json:"monthly_earned" gorm:"not null;default:0"`
	SubscriptionType string `json:"subscription_type" gorm:"type:varchar(24);not null;default:'free'"`

	// Streak counts consecutive daily logins; LastDailyDay is the calendar
	// day (see Day) of the most recent daily credit, 0 when never credited.
	Streak       int `json:"streak"         gorm:"not null;default:0"`
	LastDailyDay int `json:"last_daily_day" gorm:"not null;default:0"`

	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for UserProfile.
func (UserProfile) TableName() string { return "user_profiles" }

// InteractionEvent records a real user engaging with bot-authored content.
// Processed is the at-most-once marker consumed by the interaction watcher.
type InteractionEvent struct {
	ID         string `json:"id"          gorm:"type:char(36);primaryKey"`
	Kind       string `json:"kind"        gorm:"type:varchar(16);not null;check:kind IN ('reply','vote')"`
	UserID     string `json:"user_id"     gorm:"type:varchar(64);not null"`
	BotID      string `json:"bot_id"      gorm:"type:char(36);not null;index:idx_event_bot"`
	QuestionID string `json:"question_id" gorm:"type:char(36);not null;default:''"`
	AnswerID   string `json:"answer_id"   gorm:"type:char(36);not null;default:''"`
	Excerpt    string `json:"excerpt"     gorm:"type:varchar(255);not null;default:''"`
	Processed  bool   `json:"processed"   gorm:"not null;default:false;index:idx_event_processed"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for InteractionEvent.
func (InteractionEvent) TableName() string { return "interaction_events" }
