// Package repo – content repository.
//
// Repository functions for Question and Answer rows: creation, recent-content
// windows for the duplicate guard, open-question discovery for answerer bots,
// and the trailing-window action counts backing the spam cap.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-community-sim/internal/domain"
)

// CreateQuestion inserts a question row. A missing ID is filled with a fresh
// UUID; CreatedAt is set to UTC now.
func CreateQuestion(ctx context.Context, db *gorm.DB, q *domain.Question) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Type == "" {
		q.Type = domain.QuestionTypeRegular
	}
	q.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(q).Error
}

// GetQuestion fetches a question by ID, or ErrNotFound.
func GetQuestion(ctx context.Context, db *gorm.DB, id string) (*domain.Question, error) {
	var q domain.Question
	if err := db.WithContext(ctx).Where("id = ?", id).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// CreateAnswer inserts an answer row with zeroed vote state.
func CreateAnswer(ctx context.Context, db *gorm.DB, a *domain.Answer) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.TotalVotes = 0
	a.CoinsEarned = 0
	a.IsBestAnswer = false
	a.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(a).Error
}

// GetAnswer fetches an answer by ID, or ErrNotFound.
func GetAnswer(ctx context.Context, db *gorm.DB, id string) (*domain.Answer, error) {
	var a domain.Answer
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAnswersByAuthor returns every answer authored by userID.
func ListAnswersByAuthor(ctx context.Context, db *gorm.DB, userID string) ([]domain.Answer, error) {
	var out []domain.Answer
	err := db.WithContext(ctx).
		Where("author_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// RecentContent returns up to limit content bodies posted since the cutoff,
// newest first, across questions and answers. This is the snapshot the
// duplicate guard scores candidates against.
func RecentContent(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}

	var questions []domain.Question
	if err := db.WithContext(ctx).
		Select("content", "created_at").
		Where("created_at >= ?", since).
		Order("created_at desc").
		Limit(limit).
		Find(&questions).Error; err != nil {
		return nil, err
	}

	var answers []domain.Answer
	if err := db.WithContext(ctx).
		Select("content", "created_at").
		Where("created_at >= ?", since).
		Order("created_at desc").
		Limit(limit).
		Find(&answers).Error; err != nil {
		return nil, err
	}

	out := make([]string, 0, len(questions)+len(answers))
	for _, q := range questions {
		out = append(out, q.Content)
	}
	for _, a := range answers {
		out = append(out, a.Content)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// HasContentHash reports whether any question or answer since the cutoff
// carries the given content hash (O(1) exact-duplicate pre-check).
func HasContentHash(ctx context.Context, db *gorm.DB, hash string, since time.Time) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Question{}).
		Where("content_hash = ? AND created_at >= ?", hash, since).
		Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := db.WithContext(ctx).Model(&domain.Answer{}).
		Where("content_hash = ? AND created_at >= ?", hash, since).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListOpenQuestions returns up to limit questions that have no answers yet,
// oldest first so long-waiting questions are served before fresh ones.
func ListOpenQuestions(ctx context.Context, db *gorm.DB, limit int) ([]domain.Question, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []domain.Question
	err := db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM answers WHERE answers.question_id = questions.id AND answers.deleted_at IS NULL)").
		Order("created_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountActionsByAuthor counts content writes (questions + answers + votes)
// by one author since the cutoff. The scheduler's spam cap reads this.
func CountActionsByAuthor(ctx context.Context, db *gorm.DB, authorID string, since time.Time) (int64, error) {
	var questions, answers, votes int64

	if err := db.WithContext(ctx).Model(&domain.Question{}).
		Where("author_id = ? AND created_at >= ?", authorID, since).
		Count(&questions).Error; err != nil {
		return 0, err
	}
	if err := db.WithContext(ctx).Model(&domain.Answer{}).
		Where("author_id = ? AND created_at >= ?", authorID, since).
		Count(&answers).Error; err != nil {
		return 0, err
	}
	if err := db.WithContext(ctx).Model(&domain.AnswerVote{}).
		Where("voter_id = ? AND created_at >= ?", authorID, since).
		Count(&votes).Error; err != nil {
		return 0, err
	}
	return questions + answers + votes, nil
}
