// Package services – LedgerService
//
// This file implements the coin ledger: the single authority for all
// coin-balance mutations and the anti-fraud voting rules. Every economic
// event appends one immutable CoinTransaction and applies it to the user's
// profile snapshot in the same database transaction, so the invariant
// balance == total_earned - total_spent can never drift.
//
// Concurrency: all writes to a given user's profile or a given answer's vote
// state are serialized through keyed locks, so concurrent votes cannot race
// past the payout thresholds.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-community-sim/internal/domain"
	"github.com/tbourn/go-community-sim/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Reward policy constants. The per-vote payout starts at the 5th vote and is
// not retroactive: votes 1-4 never pay, even after the threshold is crossed.
const (
	dailyLoginReward   = 1
	answerPostReward   = 1
	voteRewardStart    = 5 // votes from this count onward pay the author
	voteReward         = 1
	bestAnswerAt       = 7 // one-time bonus when this count is first reached
	bestAnswerBonus    = 5
	statsWindow        = 7 * 24 * time.Hour
	defaultLeaderboard = 10
)

// questionCosts maps question type to its coin price. Extensible: new types
// only need an entry here.
var questionCosts = map[string]int{
	domain.QuestionTypeRegular: 2,
	domain.QuestionTypeUrgent:  5,
}

// QuestionCost returns the coin price for a question type and whether the
// type is known.
func QuestionCost(questionType string) (int, bool) {
	c, ok := questionCosts[questionType]
	return c, ok
}

// VoteResult reports the outcome of one accepted helpful-vote.
type VoteResult struct {
	// CoinsAwarded is the number of coins minted to the author by this call
	// (per-vote payout plus, at the best-answer threshold, the bonus).
	CoinsAwarded int `json:"coins_awarded"`
	// TotalVotes is the answer's vote count after this vote.
	TotalVotes int `json:"total_votes"`
	// IsBestAnswer reports the (sticky) best-answer flag after this vote.
	IsBestAnswer bool `json:"is_best_answer"`
	// Message is a human-readable status line for the voter.
	Message string `json:"message"`
}

// UserStats aggregates a user's profile, recent ledger activity, and
// community contribution.
type UserStats struct {
	Profile domain.UserProfile `json:"profile"`

	// Trailing 7-day ledger activity.
	WeekEarned       int `json:"week_earned"`
	WeekSpent        int `json:"week_spent"`
	WeekTransactions int `json:"week_transactions"`

	// Community stats across all answers this user has given.
	AnswersGiven     int     `json:"answers_given"`
	VotesReceived    int     `json:"votes_received"`
	BestAnswers      int     `json:"best_answers"`
	HelpfulnessRatio float64 `json:"helpfulness_ratio"`
}

// LedgerService is the coin economy engine. It is constructed with an
// injected database handle rather than reached through package globals so
// the per-entity serialization is enforceable and the service is
// independently testable.
type LedgerService struct {
	// DB is the GORM handle used for all ledger operations.
	DB *gorm.DB

	// Now overrides the clock; nil means time.Now. Tests use it to cross
	// calendar-day boundaries deterministically.
	Now func() time.Time

	locks *keyedLocks
}

// NewLedgerService constructs a LedgerService bound to db.
func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db, locks: newKeyedLocks()}
}

func (s *LedgerService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *LedgerService) lock(key string) func() {
	if s.locks == nil {
		s.locks = newKeyedLocks()
	}
	return s.locks.acquire(key)
}

// AddTransaction appends a ledger entry for an existing user and applies it
// to their profile. It fails with ErrUnknownUser when no profile exists;
// callers that may deal with first-time users should go through the
// higher-level operations (DailyLogin, AnswerPosted) which create profiles.
func (s *LedgerService) AddTransaction(ctx context.Context, userID, txType string, amount int, category, reason, questionID, answerID string) (*domain.CoinTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("transaction amount must be positive, got %d", amount)
	}

	unlock := s.lock("user:" + userID)
	defer unlock()

	var created *domain.CoinTransaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.GetProfile(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownUser
			}
			return err
		}
		created, err = s.apply(ctx, tx, p, txType, amount, category, reason, questionID, answerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// apply writes one transaction row and folds it into the profile snapshot.
// Must run inside a DB transaction with the user's lock held.
func (s *LedgerService) apply(ctx context.Context, tx *gorm.DB, p *domain.UserProfile, txType string, amount int, category, reason, questionID, answerID string) (*domain.CoinTransaction, error) {
	now := s.now()

	rec := &domain.CoinTransaction{
		UserID:     p.UserID,
		Type:       txType,
		Amount:     amount,
		Category:   category,
		Reason:     reason,
		QuestionID: questionID,
		AnswerID:   answerID,
	}
	if err := repo.CreateTransaction(ctx, tx, rec); err != nil {
		return nil, err
	}

	// Monthly earnings roll over when the calendar month changes.
	if p.LastActivityAt != nil {
		last := p.LastActivityAt.UTC()
		if last.Year() != now.Year() || last.Month() != now.Month() {
			p.MonthlyEarned = 0
		}
	}

	switch txType {
	case domain.TxEarn:
		p.Balance += amount
		p.TotalEarned += amount
		p.MonthlyEarned += amount
	case domain.TxSpend:
		p.Balance -= amount
		p.TotalSpent += amount
	default:
		return nil, fmt.Errorf("unknown transaction type %q", txType)
	}
	p.LastActivityAt = &now

	if err := repo.SaveProfile(ctx, tx, p); err != nil {
		return nil, err
	}
	return rec, nil
}

// EnsureProfile returns the user's profile, creating a zero-balance one when
// none exists yet.
func (s *LedgerService) EnsureProfile(ctx context.Context, userID, username string) (*domain.UserProfile, error) {
	unlock := s.lock("user:" + userID)
	defer unlock()
	return s.ensureProfileLocked(ctx, s.DB, userID, username)
}

func (s *LedgerService) ensureProfileLocked(ctx context.Context, db *gorm.DB, userID, username string) (*domain.UserProfile, error) {
	p, err := repo.GetProfile(ctx, db, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	p = &domain.UserProfile{UserID: userID, Username: username, SubscriptionType: "free"}
	if err := repo.CreateProfile(ctx, db, p); err != nil {
		// Lost a race with another creator; re-read.
		if existing, gerr := repo.GetProfile(ctx, db, userID); gerr == nil {
			return existing, nil
		}
		return nil, err
	}
	return p, nil
}

// DailyLogin awards the 1-coin daily reward once per calendar day and keeps
// the streak: +1 when the previous credit was exactly yesterday, reset to 1
// after any gap. A second call on the same day is a no-op (credited=false,
// no transaction).
func (s *LedgerService) DailyLogin(ctx context.Context, userID string) (credited bool, streak int, err error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "DailyLogin",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	unlock := s.lock("user:" + userID)
	defer unlock()

	today := domain.DayOf(s.now())

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, perr := s.ensureProfileLocked(ctx, tx, userID, "")
		if perr != nil {
			return perr
		}

		if domain.Day(p.LastDailyDay) == today {
			credited = false
			streak = p.Streak
			return nil
		}

		if domain.Day(p.LastDailyDay) == today-1 {
			p.Streak++
		} else {
			p.Streak = 1
		}
		p.LastDailyDay = int(today)

		if _, aerr := s.apply(ctx, tx, p, domain.TxEarn, dailyLoginReward,
			domain.TxCategoryDaily, "daily login reward", "", ""); aerr != nil {
			return aerr
		}
		credited = true
		streak = p.Streak
		return nil
	})
	return credited, streak, err
}

// AnswerPosted awards the flat authoring reward for a freshly persisted
// answer. The answer row itself (created by the caller) is the zero-state
// vote record; this call only moves coins and stamps activity.
func (s *LedgerService) AnswerPosted(ctx context.Context, userID, questionID, answerID string) (*domain.CoinTransaction, error) {
	unlock := s.lock("user:" + userID)
	defer unlock()

	var created *domain.CoinTransaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var aerr error
		created, aerr = s.answerPostedLocked(ctx, tx, userID, questionID, answerID)
		return aerr
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AnswerPostedTx awards the authoring reward inside the caller's open
// transaction, for callers that persist the answer row and its reward
// atomically. It takes the author's lock itself.
func (s *LedgerService) AnswerPostedTx(ctx context.Context, tx *gorm.DB, userID, questionID, answerID string) (*domain.CoinTransaction, error) {
	unlock := s.lock("user:" + userID)
	defer unlock()
	return s.answerPostedLocked(ctx, tx, userID, questionID, answerID)
}

func (s *LedgerService) answerPostedLocked(ctx context.Context, tx *gorm.DB, userID, questionID, answerID string) (*domain.CoinTransaction, error) {
	p, perr := s.ensureProfileLocked(ctx, tx, userID, "")
	if perr != nil {
		return nil, perr
	}
	return s.apply(ctx, tx, p, domain.TxEarn, answerPostReward,
		domain.TxCategoryAnswer, "posted an answer", questionID, answerID)
}

// VoteAnswerHelpful validates and applies one helpful-vote on an answer.
//
// Checks run in order and short-circuit:
//  1. the answer must exist (ErrUnknownAnswer);
//  2. the voter must not be the author (ErrSelfVote);
//  3. when questionAuthorID is supplied and matches the answer author, the
//     vote is rejected (ErrAuthorClarification) — answering your own
//     question earns nothing;
//  4. the voter must not have voted this answer before (ErrDuplicateVote).
//
// On success the vote is appended and the author is paid per the reward
// policy: 1 coin for every vote from the 5th onward, plus a one-time 5-coin
// bonus the moment the count first reaches 7, which also sets the sticky
// best-answer flag.
func (s *LedgerService) VoteAnswerHelpful(ctx context.Context, voterID, answerID, questionAuthorID string) (*VoteResult, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "VoteAnswerHelpful",
		trace.WithAttributes(
			attribute.String("answer.id", answerID),
			attribute.String("voter.id", voterID),
		))
	defer span.End()

	// Answer lock first, then (inside) the author's user lock; see keyedLocks.
	unlock := s.lock("answer:" + answerID)
	defer unlock()

	ans, err := repo.GetAnswer(ctx, s.DB, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownAnswer
		}
		return nil, err
	}
	if ans.AuthorID == voterID {
		return nil, ErrSelfVote
	}
	if questionAuthorID != "" && questionAuthorID == ans.AuthorID {
		return nil, ErrAuthorClarification
	}
	voted, err := repo.HasVoted(ctx, s.DB, answerID, voterID)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, ErrDuplicateVote
	}

	unlockUser := s.lock("user:" + ans.AuthorID)
	defer unlockUser()

	newTotal := ans.TotalVotes + 1
	perVote := 0
	bonus := 0
	if newTotal >= voteRewardStart {
		perVote = voteReward
	}
	becameBest := false
	if newTotal == bestAnswerAt && !ans.IsBestAnswer {
		bonus = bestAnswerBonus
		becameBest = true
	}
	isBest := ans.IsBestAnswer || becameBest

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if verr := repo.CreateAnswerVote(ctx, tx, answerID, voterID); verr != nil {
			if isUniqueViolation(verr) {
				return ErrDuplicateVote
			}
			return verr
		}
		if uerr := repo.UpdateAnswerVoteState(ctx, tx, answerID, newTotal,
			ans.CoinsEarned+perVote+bonus, isBest); uerr != nil {
			return uerr
		}

		if perVote+bonus == 0 {
			return nil
		}
		p, perr := s.ensureProfileLocked(ctx, tx, ans.AuthorID, "")
		if perr != nil {
			return perr
		}
		if perVote > 0 {
			if _, aerr := s.apply(ctx, tx, p, domain.TxEarn, perVote,
				domain.TxCategoryHelpfulVotes, "helpful vote received", "", answerID); aerr != nil {
				return aerr
			}
		}
		if bonus > 0 {
			if _, aerr := s.apply(ctx, tx, p, domain.TxEarn, bonus,
				domain.TxCategoryBestAnswer, "best answer bonus", "", answerID); aerr != nil {
				return aerr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &VoteResult{
		CoinsAwarded: perVote + bonus,
		TotalVotes:   newTotal,
		IsBestAnswer: isBest,
	}
	switch {
	case becameBest:
		res.Message = fmt.Sprintf("vote recorded — answer promoted to best answer (+%d coin bonus)", bonus)
	case perVote > 0:
		res.Message = "vote recorded — author earned a coin"
	default:
		res.Message = fmt.Sprintf("vote recorded (%d of %d toward payout)", newTotal, voteRewardStart)
	}
	return res, nil
}

// AskQuestion debits the posting cost for a question of the given type. The
// caller persists the question row itself after the debit succeeds. Unknown
// users fail with ErrUnknownUser; a balance below the cost fails with a
// typed InsufficientBalanceError whose message states the shortfall.
func (s *LedgerService) AskQuestion(ctx context.Context, userID, questionType string) (*domain.CoinTransaction, error) {
	unlock := s.lock("user:" + userID)
	defer unlock()

	var created *domain.CoinTransaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var aerr error
		created, aerr = s.askQuestionLocked(ctx, tx, userID, questionType)
		return aerr
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AskQuestionTx debits the posting cost inside the caller's open transaction,
// so the debit and the question row commit (or roll back) together.
func (s *LedgerService) AskQuestionTx(ctx context.Context, tx *gorm.DB, userID, questionType string) (*domain.CoinTransaction, error) {
	unlock := s.lock("user:" + userID)
	defer unlock()
	return s.askQuestionLocked(ctx, tx, userID, questionType)
}

func (s *LedgerService) askQuestionLocked(ctx context.Context, tx *gorm.DB, userID, questionType string) (*domain.CoinTransaction, error) {
	cost, ok := questionCosts[questionType]
	if !ok {
		return nil, fmt.Errorf("unknown question type %q", questionType)
	}
	p, perr := repo.GetProfile(ctx, tx, userID)
	if perr != nil {
		if errors.Is(perr, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, perr
	}
	if p.Balance < cost {
		return nil, &InsufficientBalanceError{Cost: cost, Balance: p.Balance}
	}
	return s.apply(ctx, tx, p, domain.TxSpend, cost,
		domain.TxCategoryQuestion, "asked a "+questionType+" question", "", "")
}

// GetUserStats aggregates the profile, trailing-7-day ledger totals, and
// community stats derived from the user's answers.
func (s *LedgerService) GetUserStats(ctx context.Context, userID string) (*UserStats, error) {
	p, err := repo.GetProfile(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}

	out := &UserStats{Profile: *p}

	txs, err := repo.ListTransactionsSince(ctx, s.DB, userID, s.now().Add(-statsWindow))
	if err != nil {
		return nil, err
	}
	for _, t := range txs {
		out.WeekTransactions++
		if t.Type == domain.TxEarn {
			out.WeekEarned += t.Amount
		} else {
			out.WeekSpent += t.Amount
		}
	}

	answers, err := repo.ListAnswersByAuthor(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	out.AnswersGiven = len(answers)
	for _, a := range answers {
		out.VotesReceived += a.TotalVotes
		if a.IsBestAnswer {
			out.BestAnswers++
		}
	}
	if out.AnswersGiven > 0 {
		out.HelpfulnessRatio = float64(out.VotesReceived) / float64(out.AnswersGiven)
	}
	return out, nil
}

// Leaderboard returns the top-n profiles by monthly earnings (default 10).
func (s *LedgerService) Leaderboard(ctx context.Context, n int) ([]domain.UserProfile, error) {
	if n <= 0 {
		n = defaultLeaderboard
	}
	return repo.TopProfilesByMonthlyEarnings(ctx, s.DB, n)
}

// isUniqueViolation detects unique-constraint violations across drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
