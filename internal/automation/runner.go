package automation

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-community-sim/internal/domain"
	"github.com/tbourn/go-community-sim/internal/repo"
	"github.com/tbourn/go-community-sim/internal/services"
	"github.com/tbourn/go-community-sim/internal/similarity"
)

// ErrUnknownAction is returned by TriggerBot for an action kind that is not
// "question" or "answer".
var ErrUnknownAction = errors.New("unknown action kind")

// BotOutcome is the per-bot result of one cycle.
type BotOutcome struct {
	BotID    string `json:"bot_id"`
	Username string `json:"username"`
	Acted    bool   `json:"acted"`
	// Action is the committed kind when Acted, empty otherwise.
	Action string `json:"action,omitempty"`
	// Reason is the skip reason or error text when the bot did not act.
	Reason string `json:"reason,omitempty"`
	Failed bool   `json:"failed,omitempty"`
}

// CycleReport aggregates one activity cycle.
type CycleReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Bots      int           `json:"bots"`
	Actions   int           `json:"actions"`
	Skipped   int           `json:"skipped"`
	Failures  int           `json:"failures"`
	// FollowUps is how many interaction events were answered this cycle.
	FollowUps int          `json:"follow_ups"`
	Outcomes  []BotOutcome `json:"outcomes"`
}

// Status is a snapshot of the runner state machine.
type Status struct {
	Running   bool          `json:"running"`
	Interval  time.Duration `json:"interval"`
	LastCycle *CycleReport  `json:"last_cycle,omitempty"`
}

// Runner owns the automation loop. A single goroutine drives scheduled
// cycles; manual cycles (RunOnce, TriggerBot) share the same decision and
// commit path, so behavior cannot drift between the two.
type Runner struct {
	DB           *gorm.DB
	Directory    *services.DirectoryService
	Scheduler    *services.SchedulerService
	Ledger       *services.LedgerService
	Interactions *services.InteractionService
	Log          zerolog.Logger

	// DupWindowAge and DupWindowPosts bound the recent-content snapshot the
	// duplicate guard scores against.
	DupWindowAge   time.Duration
	DupWindowPosts int
	// OpenQuestionLimit caps how many unanswered questions a cycle offers to
	// answerer bots.
	OpenQuestionLimit int
	// CycleTimeout bounds one cycle's persistence work; zero means no bound.
	CycleTimeout time.Duration
	// EventBatch caps interaction events drained per cycle.
	EventBatch int

	// Now supplies the clock; defaults to time.Now when nil.
	Now func() time.Time
	// NewRand supplies the per-cycle random source; defaults to a
	// time-seeded math/rand. Tests inject deterministic sequences.
	NewRand func() services.Rand

	mu        sync.Mutex
	running   bool
	interval  time.Duration
	cancel    context.CancelFunc
	done      chan struct{}
	lastCycle *CycleReport
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) newRand() services.Rand {
	if r.NewRand != nil {
		return r.NewRand()
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Start launches the timer loop with the given interval. Calling Start on a
// running runner only updates the interval; a second loop is never spawned.
func (r *Runner) Start(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.interval = interval
	if r.running {
		r.Log.Info().Dur("interval", interval).Msg("automation interval updated")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true
	go r.loop(ctx, r.done)
	r.Log.Info().Dur("interval", interval).Msg("automation started")
}

// Stop cancels the pending tick and waits for an in-flight cycle to finish.
// Stopping a stopped runner is a no-op.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	cancel()
	<-done
	r.Log.Info().Msg("automation stopped")
}

// Status reports the runner state and the last completed cycle.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{Running: r.running, Interval: r.interval, LastCycle: r.lastCycle}
}

// currentInterval reads the interval under the lock so a Start on a running
// loop takes effect at the next tick.
func (r *Runner) currentInterval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(r.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			// The loop ctx only guards the timer wait. A cycle runs on its
			// own context (bounded by CycleTimeout inside RunOnce), so Stop
			// cancels the pending tick but lets an in-flight cycle finish
			// naturally instead of aborting it mid-commit.
			if _, err := r.RunOnce(context.Background()); err != nil {
				r.Log.Error().Err(err).Msg("automation cycle failed")
			}
			timer.Reset(r.currentInterval())
		}
	}
}

// RunOnce executes one full activity cycle: snapshot the environment, decide
// and commit per active bot, then drain pending interaction events. Per-bot
// failures are isolated and reported; only environment snapshot errors abort
// the cycle.
func (r *Runner) RunOnce(ctx context.Context) (*CycleReport, error) {
	if r.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.CycleTimeout)
		defer cancel()
	}

	started := r.now()
	report := &CycleReport{StartedAt: started}

	bots, err := r.Directory.Active(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := repo.RecentContent(ctx, r.DB, started.Add(-r.DupWindowAge), r.DupWindowPosts)
	if err != nil {
		return nil, err
	}
	open, err := repo.ListOpenQuestions(ctx, r.DB, r.OpenQuestionLimit)
	if err != nil {
		return nil, err
	}

	rng := r.newRand()
	report.Bots = len(bots)

	for i := range bots {
		bot := &bots[i]
		outcome := r.runBot(ctx, bot, started, rng, &recent, &open)
		report.Outcomes = append(report.Outcomes, outcome)
		switch {
		case outcome.Failed:
			report.Failures++
			botFailures.Inc()
		case outcome.Acted:
			report.Actions++
			botActions.WithLabelValues(outcome.Action).Inc()
		default:
			report.Skipped++
			if outcome.Reason == services.SkipDuplicateContent {
				duplicateSkips.Inc()
			}
		}
	}

	if outcomes, err := r.Interactions.ProcessPending(ctx, r.EventBatch); err != nil {
		r.Log.Error().Err(err).Msg("interaction processing failed")
	} else {
		for _, oc := range outcomes {
			if oc.Responded {
				report.FollowUps++
				followUps.Inc()
			}
		}
	}

	report.Duration = time.Since(started)
	cyclesTotal.Inc()
	cycleDuration.Observe(report.Duration.Seconds())

	r.mu.Lock()
	r.lastCycle = report
	r.mu.Unlock()

	r.Log.Info().
		Int("bots", report.Bots).
		Int("actions", report.Actions).
		Int("skipped", report.Skipped).
		Int("failures", report.Failures).
		Int("follow_ups", report.FollowUps).
		Dur("duration", report.Duration).
		Msg("automation cycle completed")
	return report, nil
}

// runBot decides and commits one bot's turn. recent and open are shared
// cycle state: a committed post is appended to recent so later bots in the
// same cycle dedupe against it, and an answered question leaves open.
func (r *Runner) runBot(ctx context.Context, bot *domain.Bot, now time.Time, rng services.Rand, recent *[]string, open *[]domain.Question) BotOutcome {
	outcome := BotOutcome{BotID: bot.ID, Username: bot.Username}

	env, err := r.buildEnv(ctx, bot, now, *recent, *open)
	if err != nil {
		r.Log.Error().Err(err).Str("bot_id", bot.ID).Msg("bot environment snapshot failed")
		outcome.Failed = true
		outcome.Reason = err.Error()
		return outcome
	}

	d := r.Scheduler.Decide(bot, env, rng)
	if !d.Act {
		outcome.Reason = d.Reason
		return outcome
	}

	if err := r.commit(ctx, bot, d.Plan, now); err != nil {
		r.Log.Error().Err(err).Str("bot_id", bot.ID).Str("action", d.Plan.Kind).Msg("bot action commit failed")
		outcome.Failed = true
		outcome.Reason = err.Error()
		return outcome
	}

	*recent = append(*recent, d.Plan.Content)
	if d.Plan.Kind == services.ActionAnswer && d.Plan.Question != nil {
		*open = removeQuestion(*open, d.Plan.Question.ID)
	}

	outcome.Acted = true
	outcome.Action = d.Plan.Kind
	return outcome
}

// buildEnv assembles the per-bot decision snapshot.
func (r *Runner) buildEnv(ctx context.Context, bot *domain.Bot, now time.Time, recent []string, open []domain.Question) (services.Environment, error) {
	actions, err := repo.CountActionsByAuthor(ctx, r.DB, bot.ID, now.Add(-r.Scheduler.SpamWindow))
	if err != nil {
		return services.Environment{}, err
	}
	return services.Environment{
		Now:             now,
		ActionsInWindow: actions,
		LastActiveAt:    bot.LastActiveAt,
		OpenQuestions:   open,
		RecentPosts:     recent,
	}, nil
}

// commit persists a planned action in one database transaction: the content
// row, the bot counters, and (for answers) the posting reward land together
// or not at all. Bot questions do not debit the ledger; bots simulate
// demand, they do not participate in spending.
func (r *Runner) commit(ctx context.Context, bot *domain.Bot, plan *services.PlannedAction, now time.Time) error {
	switch plan.Kind {
	case services.ActionQuestion, services.ActionAnswer:
	default:
		return ErrUnknownAction
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if plan.Kind == services.ActionQuestion {
			q := &domain.Question{
				AuthorID:    bot.ID,
				AuthorIsBot: true,
				Topic:       plan.Topic,
				Title:       plan.Title,
				Content:     plan.Content,
				ContentHash: similarity.ContentHash(plan.Content),
				Type:        domain.QuestionTypeRegular,
			}
			if err := repo.CreateQuestion(ctx, tx, q); err != nil {
				return err
			}
			return repo.RecordBotAction(ctx, tx, bot.ID, 1, 0, 0, 0, now)
		}

		a := &domain.Answer{
			QuestionID:  plan.Question.ID,
			AuthorID:    bot.ID,
			AuthorIsBot: true,
			Content:     plan.Content,
			ContentHash: similarity.ContentHash(plan.Content),
		}
		if err := repo.CreateAnswer(ctx, tx, a); err != nil {
			return err
		}
		if _, err := r.Ledger.AnswerPostedTx(ctx, tx, bot.ID, a.QuestionID, a.ID); err != nil {
			return err
		}
		return repo.RecordBotAction(ctx, tx, bot.ID, 0, 1, 1, 0, now)
	})
}

// TriggerBot runs the commit path for one bot on demand. The probability
// draw and schedule window are bypassed; the duplicate guard still applies.
// An empty action selects by bot type.
func (r *Runner) TriggerBot(ctx context.Context, botID, action string) (*BotOutcome, error) {
	switch action {
	case "", services.ActionQuestion, services.ActionAnswer:
	default:
		return nil, ErrUnknownAction
	}

	bot, err := repo.GetBot(ctx, r.DB, botID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, services.ErrUnknownBot
	}
	if err != nil {
		return nil, err
	}

	now := r.now()
	recent, err := repo.RecentContent(ctx, r.DB, now.Add(-r.DupWindowAge), r.DupWindowPosts)
	if err != nil {
		return nil, err
	}
	open, err := repo.ListOpenQuestions(ctx, r.DB, r.OpenQuestionLimit)
	if err != nil {
		return nil, err
	}
	env, err := r.buildEnv(ctx, bot, now, recent, open)
	if err != nil {
		return nil, err
	}

	outcome := &BotOutcome{BotID: bot.ID, Username: bot.Username}
	plan, reason := r.Scheduler.Plan(bot, env, action, r.newRand())
	if plan == nil {
		outcome.Reason = reason
		if reason == services.SkipDuplicateContent {
			duplicateSkips.Inc()
		}
		return outcome, nil
	}
	if err := r.commit(ctx, bot, plan, now); err != nil {
		return nil, err
	}
	botActions.WithLabelValues(plan.Kind).Inc()
	outcome.Acted = true
	outcome.Action = plan.Kind
	return outcome, nil
}

func removeQuestion(qs []domain.Question, id string) []domain.Question {
	out := qs[:0]
	for _, q := range qs {
		if q.ID != id {
			out = append(out, q)
		}
	}
	return out
}
