// Package services – InteractionService
//
// This file implements the human-interaction watcher. Real users replying to
// or voting on bot-authored content produce interaction events; the watcher
// drains the unprocessed backlog and has the owning bot post a short
// follow-up so threads with human engagement do not go quiet.
//
// Each event is handled at most once: the processed marker is flipped even
// when the follow-up is skipped, so a poison event cannot wedge the queue.
package services

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-community-sim/internal/domain"
	"github.com/tbourn/go-community-sim/internal/repo"
)

// Interaction processing outcomes.
const (
	OutcomeResponded   = "responded"
	OutcomeBotUnknown  = "bot unknown"
	OutcomeBotInactive = "bot inactive"
	OutcomeNoQuestion  = "no question to reply under"
)

// InteractionOutcome reports how one event was handled.
type InteractionOutcome struct {
	EventID   string `json:"event_id"`
	BotID     string `json:"bot_id"`
	Responded bool   `json:"responded"`
	Outcome   string `json:"outcome"`
}

// InteractionService detects and responds to real-user engagement with bot
// content.
type InteractionService struct {
	// DB is the GORM handle for event and content writes.
	DB *gorm.DB
	// Gen produces the follow-up text.
	Gen ContentGenerator
	// Now supplies the clock; defaults to time.Now when nil.
	Now func() time.Time
}

// NewInteractionService constructs an InteractionService over db.
func NewInteractionService(db *gorm.DB) *InteractionService {
	return &InteractionService{DB: db}
}

func (s *InteractionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Record stores a detected interaction for later processing. Kind must be
// one of the known event kinds.
func (s *InteractionService) Record(ctx context.Context, ev *domain.InteractionEvent) error {
	if ev.Kind != domain.InteractionReply && ev.Kind != domain.InteractionVote {
		return domain.ErrInvalidBot
	}
	if ev.UserID == "" || ev.BotID == "" {
		return domain.ErrInvalidBot
	}
	return repo.CreateInteractionEvent(ctx, s.DB, ev)
}

// Pending returns up to limit unprocessed events, oldest first.
func (s *InteractionService) Pending(ctx context.Context, limit int) ([]domain.InteractionEvent, error) {
	return repo.ListUnprocessedEvents(ctx, s.DB, limit)
}

// ProcessPending drains up to limit unprocessed events. Each event is
// independent: a failure on one is reported in its outcome and does not stop
// the rest. Only a listing error aborts the pass.
func (s *InteractionService) ProcessPending(ctx context.Context, limit int) ([]InteractionOutcome, error) {
	events, err := repo.ListUnprocessedEvents(ctx, s.DB, limit)
	if err != nil {
		return nil, err
	}

	out := make([]InteractionOutcome, 0, len(events))
	for i := range events {
		oc, err := s.processOne(ctx, &events[i])
		if err != nil {
			oc = InteractionOutcome{EventID: events[i].ID, BotID: events[i].BotID, Outcome: err.Error()}
		}
		out = append(out, oc)
	}
	return out, nil
}

// processOne posts the follow-up for one event and flips its processed
// marker. Skips (unknown bot, paused bot, no question context) still mark
// the event so it is not retried forever. The follow-up answer, the bot
// counters, and the marker commit in one transaction: a partial write rolls
// everything back, so a retried event can never post a second follow-up.
func (s *InteractionService) processOne(ctx context.Context, ev *domain.InteractionEvent) (InteractionOutcome, error) {
	oc := InteractionOutcome{EventID: ev.ID, BotID: ev.BotID}

	bot, err := repo.GetBot(ctx, s.DB, ev.BotID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return oc, err
	}

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			oc.Outcome = OutcomeBotUnknown
		case bot.Status != domain.BotStatusActive:
			oc.Outcome = OutcomeBotInactive
		case ev.QuestionID == "":
			oc.Outcome = OutcomeNoQuestion
		default:
			ans := &domain.Answer{
				QuestionID:  ev.QuestionID,
				AuthorID:    bot.ID,
				Content:     s.Gen.FollowUp(eventPick(ev.ID)),
				AuthorIsBot: true,
			}
			if cerr := repo.CreateAnswer(ctx, tx, ans); cerr != nil {
				return cerr
			}
			if rerr := repo.RecordBotAction(ctx, tx, bot.ID, 0, 1, 0, 0, s.now()); rerr != nil {
				return rerr
			}
			oc.Responded = true
			oc.Outcome = OutcomeResponded
		}
		return repo.MarkEventProcessed(ctx, tx, ev.ID)
	})
	if txErr != nil {
		return InteractionOutcome{EventID: ev.ID, BotID: ev.BotID}, txErr
	}
	return oc, nil
}

// eventPick derives a stable template pick from the event ID so replays of
// the same event produce the same text.
func eventPick(eventID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(eventID))
	return int(h.Sum32() & 0x7fffffff)
}
