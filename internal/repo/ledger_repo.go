// Package repo – ledger repository.
//
// Repository functions for the append-only coin transaction log, the mutable
// per-user profile snapshot, and the per-answer voter rows. All balance math
// lives in the ledger service; this layer only persists what it is handed.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-community-sim/internal/domain"
)

// CreateTransaction appends one immutable ledger entry.
func CreateTransaction(ctx context.Context, db *gorm.DB, tx *domain.CoinTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(tx).Error
}

// ListTransactionsSince returns a user's ledger entries created at or after
// the cutoff, newest first.
func ListTransactionsSince(ctx context.Context, db *gorm.DB, userID string, since time.Time) ([]domain.CoinTransaction, error) {
	var out []domain.CoinTransaction
	err := db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// GetProfile fetches a user's balance snapshot, or ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProfile inserts a fresh zero-balance profile.
func CreateProfile(ctx context.Context, db *gorm.DB, p *domain.UserProfile) error {
	p.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(p).Error
}

// SaveProfile persists a mutated profile snapshot.
func SaveProfile(ctx context.Context, db *gorm.DB, p *domain.UserProfile) error {
	return db.WithContext(ctx).Save(p).Error
}

// TopProfilesByMonthlyEarnings returns the n highest monthly earners.
func TopProfilesByMonthlyEarnings(ctx context.Context, db *gorm.DB, n int) ([]domain.UserProfile, error) {
	if n <= 0 {
		n = 10
	}
	var out []domain.UserProfile
	err := db.WithContext(ctx).
		Order("monthly_earned desc").
		Limit(n).
		Find(&out).Error
	return out, err
}

// CreateAnswerVote inserts one voter row. The unique (answer_id, voter_id)
// index rejects duplicates at the storage layer; callers check membership
// first and treat a constraint violation as a duplicate vote as well.
func CreateAnswerVote(ctx context.Context, db *gorm.DB, answerID, voterID string) error {
	v := &domain.AnswerVote{
		ID:        uuid.NewString(),
		AnswerID:  answerID,
		VoterID:   voterID,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(v).Error
}

// HasVoted reports whether voterID already voted on answerID.
func HasVoted(ctx context.Context, db *gorm.DB, answerID, voterID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.AnswerVote{}).
		Where("answer_id = ? AND voter_id = ?", answerID, voterID).
		Count(&n).Error
	return n > 0, err
}

// UpdateAnswerVoteState writes the denormalized vote tally back to the
// answer row. IsBestAnswer only ever moves false→true here; the ledger never
// passes a downgrade.
func UpdateAnswerVoteState(ctx context.Context, db *gorm.DB, answerID string, totalVotes, coinsEarned int, isBest bool) error {
	res := db.WithContext(ctx).Model(&domain.Answer{}).
		Where("id = ?", answerID).
		Updates(map[string]any{
			"total_votes":    totalVotes,
			"coins_earned":   coinsEarned,
			"is_best_answer": isBest,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
