// Package services – SchedulerService
//
// This file implements the per-bot, per-cycle activity decision. The
// decision is a pure function of the bot, a snapshot of the environment, and
// an injected random source — no globals, no hidden clock — so tests can
// drive exact threshold behavior with deterministic draws.
//
// Hard constraints are evaluated before the probability draw and
// short-circuit: a bot outside its schedule window, over the spam cap, or
// inside its cooldown never acts that cycle regardless of the draw.
package services

import (
	"time"

	"github.com/tbourn/go-community-sim/internal/domain"
	"github.com/tbourn/go-community-sim/internal/similarity"
)

// Action kinds a scheduler decision can plan.
const (
	ActionQuestion = "question"
	ActionAnswer   = "answer"
)

// Skip reasons reported in decisions and cycle summaries.
const (
	SkipOutsideWindow    = "outside schedule window"
	SkipSpamCap          = "spam cap reached"
	SkipCooldown         = "cooldown"
	SkipProbability      = "probability draw"
	SkipNoOpenQuestions  = "no open questions to answer"
	SkipDuplicateContent = "duplicate content"
)

// chanceDamp halves the raw activity probability so even a level-10 bot acts
// in at most ~50% of cycles.
const chanceDamp = 0.5

// Rand is the random source a decision consumes. *math/rand.Rand satisfies
// it; tests supply fixed sequences.
type Rand interface {
	// Float64 returns a uniform draw in [0,1).
	Float64() float64
	// Intn returns a uniform int in [0,n).
	Intn(n int) int
}

// Environment is the snapshot of community state a decision is made against.
// The runner assembles it once per bot per cycle so the duplicate check runs
// against a consistent view of recent posts.
type Environment struct {
	// Now is the cycle timestamp.
	Now time.Time
	// ActionsInWindow is how many actions this bot performed inside the
	// trailing spam window.
	ActionsInWindow int64
	// LastActiveAt is the bot's most recent action time, nil if never.
	LastActiveAt *time.Time
	// OpenQuestions are unanswered questions available to answerer bots.
	OpenQuestions []domain.Question
	// RecentPosts are the bodies of recently posted content; candidates are
	// scored against them for duplicate suppression.
	RecentPosts []string
}

// PlannedAction is the concrete content a deciding bot will commit.
type PlannedAction struct {
	// Kind is ActionQuestion or ActionAnswer.
	Kind string
	// Topic is the daily rotation topic the content was generated from.
	Topic string
	// Title is set for questions only.
	Title string
	// Content is the post body.
	Content string
	// Question is the target being answered, for ActionAnswer.
	Question *domain.Question
}

// Decision is the outcome of one per-bot evaluation.
type Decision struct {
	// Act reports whether the bot acts this cycle.
	Act bool
	// Reason is the skip reason when Act is false.
	Reason string
	// Plan is the action to commit when Act is true.
	Plan *PlannedAction
}

// SchedulerService decides whether and how each bot acts in a cycle.
type SchedulerService struct {
	// SpamCap is the maximum number of actions per bot inside SpamWindow.
	SpamCap int
	// SpamWindow is the trailing window the cap applies to.
	SpamWindow time.Duration
	// Cooldown blocks a bot that acted this recently (burst damping).
	Cooldown time.Duration
	// DupThreshold is the similarity score at which a candidate is a
	// duplicate; <= 0 falls back to the library default.
	DupThreshold float64

	// Gen produces candidate text.
	Gen ContentGenerator
}

// NewSchedulerService returns a scheduler with the given policy knobs.
func NewSchedulerService(spamCap int, spamWindow, cooldown time.Duration, dupThreshold float64) *SchedulerService {
	return &SchedulerService{
		SpamCap:      spamCap,
		SpamWindow:   spamWindow,
		Cooldown:     cooldown,
		DupThreshold: dupThreshold,
	}
}

// ActChance returns the per-cycle action probability for an activity level:
// level/10, damped by 0.5 — level 1 ≈ 5%, level 10 ≈ 50%.
func ActChance(activityLevel int) float64 {
	return float64(activityLevel) / 10.0 * chanceDamp
}

// Decide evaluates one bot against the environment. Constraints run first
// and short-circuit; only then is the probability draw consumed, so a
// constrained bot never burns a random value.
func (s *SchedulerService) Decide(bot *domain.Bot, env Environment, rng Rand) Decision {
	if !bot.InWindow(env.Now) {
		return Decision{Reason: SkipOutsideWindow}
	}
	if s.SpamCap > 0 && env.ActionsInWindow >= int64(s.SpamCap) {
		return Decision{Reason: SkipSpamCap}
	}
	if s.Cooldown > 0 && env.LastActiveAt != nil && env.Now.Sub(*env.LastActiveAt) < s.Cooldown {
		return Decision{Reason: SkipCooldown}
	}

	if rng.Float64() >= ActChance(bot.ActivityLevel) {
		return Decision{Reason: SkipProbability}
	}

	plan, reason := s.Plan(bot, env, "", rng)
	if plan == nil {
		return Decision{Reason: reason}
	}
	return Decision{Act: true, Plan: plan}
}

// Plan selects the action kind for a bot that passed the act gate and
// generates non-duplicate content for it. An empty kind selects by bot type;
// a manual trigger passes an explicit kind to bypass the selection. Returns
// a nil plan and a skip reason when no acceptable action exists this cycle.
func (s *SchedulerService) Plan(bot *domain.Bot, env Environment, kind string, rng Rand) (*PlannedAction, string) {
	if kind == "" {
		kind = ActionQuestion
		switch bot.Type {
		case domain.BotTypeQuestioner:
			kind = ActionQuestion
		case domain.BotTypeAnswerer:
			kind = ActionAnswer
		case domain.BotTypeMixed:
			// Prefer clearing the unanswered backlog; ask when there is none.
			if len(env.OpenQuestions) > 0 {
				kind = ActionAnswer
			}
		}
	}
	if kind == ActionAnswer && len(env.OpenQuestions) == 0 {
		return nil, SkipNoOpenQuestions
	}

	day := domain.DayOf(env.Now)
	pick := rng.Intn(1 << 16)

	// One regeneration after a duplicate hit, then give up for this cycle.
	// Skipping is the fallback: a retry loop here could spin forever when
	// the topic's template pool is exhausted.
	for attempt := 0; attempt < 2; attempt++ {
		var plan PlannedAction
		switch kind {
		case ActionQuestion:
			topic, title, body := s.Gen.Question(bot, day, pick+attempt)
			plan = PlannedAction{Kind: kind, Topic: topic, Title: title, Content: body}
		case ActionAnswer:
			q := env.OpenQuestions[rng.Intn(len(env.OpenQuestions))]
			body := s.Gen.Answer(bot, &q, day, pick+attempt)
			qCopy := q
			plan = PlannedAction{Kind: kind, Topic: q.Topic, Content: body, Question: &qCopy}
		}
		if !s.isDuplicate(plan.Content, env.RecentPosts) {
			return &plan, ""
		}
	}
	return nil, SkipDuplicateContent
}

// isDuplicate scores the candidate against the recent-post snapshot.
func (s *SchedulerService) isDuplicate(candidate string, recent []string) bool {
	for _, prev := range recent {
		if similarity.IsDuplicate(candidate, prev, s.DupThreshold) {
			return true
		}
	}
	return false
}
