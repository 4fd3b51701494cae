// Coin economy HTTP handlers.
//
// This file exposes REST endpoints for the coin economy:
//   - POST /economy/daily-login         (once-per-day credit, streak)
//   - POST /economy/questions           (ask, debits the posting cost)
//   - POST /answers/{id}/votes          (helpful-vote, pays the author)
//   - GET  /economy/users/{id}/stats    (profile + activity aggregates)
//   - GET  /economy/leaderboard         (top earners this month)
//
// Identity comes from the userID helper (context, then X-User-ID header).
// Service errors are translated to the stable error-code envelope; the coin
// rules themselves live entirely in the ledger service.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-community-sim/internal/domain"
	"github.com/tbourn/go-community-sim/internal/repo"
	"github.com/tbourn/go-community-sim/internal/services"
	"github.com/tbourn/go-community-sim/internal/similarity"
	"github.com/tbourn/go-community-sim/internal/utils"
)

//
// Service contracts (context-aware)
//

// CoinLedger defines the economy operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type CoinLedger interface {
	// DailyLogin credits the once-per-day reward and reports the streak.
	DailyLogin(ctx context.Context, userID string) (credited bool, streak int, err error)
	// AskQuestionTx debits the posting cost for a question of the given type
	// inside the caller's open transaction, so the debit rolls back when the
	// question row cannot be persisted.
	AskQuestionTx(ctx context.Context, tx *gorm.DB, userID, questionType string) (*domain.CoinTransaction, error)
	// VoteAnswerHelpful applies one helpful-vote and pays per the reward policy.
	VoteAnswerHelpful(ctx context.Context, voterID, answerID, questionAuthorID string) (*services.VoteResult, error)
	// GetUserStats aggregates profile, weekly ledger, and contribution stats.
	GetUserStats(ctx context.Context, userID string) (*services.UserStats, error)
	// Leaderboard returns the top-n profiles by monthly earnings.
	Leaderboard(ctx context.Context, n int) ([]domain.UserProfile, error)
}

// EconomyHandlers groups the coin economy endpoints. The DB handle is used
// only to persist content rows after the ledger has accepted the economic
// side of an operation.
type EconomyHandlers struct {
	ledger CoinLedger
	db     *gorm.DB
}

// NewEconomyHandlers constructs EconomyHandlers bound to the given ledger.
func NewEconomyHandlers(ledger CoinLedger, db *gorm.DB) *EconomyHandlers {
	return &EconomyHandlers{ledger: ledger, db: db}
}

// userID extracts the user id from Gin context (set by upstream middleware).
// If absent, it falls back to the "X-User-ID" header, and finally to
// "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// DailyLoginResponse reports the outcome of a daily-login claim.
type DailyLoginResponse struct {
	Credited bool `json:"credited"`
	Streak   int  `json:"streak"`
}

// AskQuestionRequest is the JSON payload for posting a paid question.
type AskQuestionRequest struct {
	Title   string `json:"title" binding:"required,min=1,max=255"`
	Content string `json:"content" binding:"required,min=1"`
	Topic   string `json:"topic"`
	// Type selects the pricing tier; empty means "regular".
	Type string `json:"type"`
}

// AskQuestionResponse returns the created question and the coins debited.
type AskQuestionResponse struct {
	Question *domain.Question `json:"question"`
	Cost     int              `json:"cost"`
}

//
// Handlers
//

// DailyLogin claims the once-per-day coin credit for the current user.
// Claiming twice on the same calendar day is not an error: the response
// simply reports credited=false.
func (h *EconomyHandlers) DailyLogin(c *gin.Context) {
	credited, streak, err := h.ledger.DailyLogin(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, DailyLoginResponse{Credited: credited, Streak: streak})
}

// repostWindow is how far back the exact-duplicate guard looks when a user
// submits a question whose content hash was already posted.
const repostWindow = 24 * time.Hour

// AskQuestion debits the posting cost and persists the question in a single
// database transaction: a user who cannot pay never creates content, and a
// failed content write rolls the debit back. An exact repost of recent
// content is rejected before any coins move.
func (h *EconomyHandlers) AskQuestion(c *gin.Context) {
	var req AskQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	qType := req.Type
	if qType == "" {
		qType = domain.QuestionTypeRegular
	}
	cost, known := services.QuestionCost(qType)
	if !known {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown question type")
		return
	}

	ctx := c.Request.Context()
	uid := userID(c)

	hash := similarity.ContentHash(req.Content)
	if dup, err := repo.HasContentHash(ctx, h.db, hash, time.Now().UTC().Add(-repostWindow)); err == nil && dup {
		fail(c, http.StatusConflict, ErrCodeConflict, "identical content was posted recently")
		return
	}

	q := &domain.Question{
		AuthorID:    uid,
		Topic:       strings.TrimSpace(req.Topic),
		Title:       strings.TrimSpace(req.Title),
		Content:     strings.TrimSpace(req.Content),
		ContentHash: hash,
		Type:        qType,
	}
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, lerr := h.ledger.AskQuestionTx(ctx, tx, uid, qType); lerr != nil {
			return lerr
		}
		return repo.CreateQuestion(ctx, tx, q)
	})
	if err != nil {
		var ibe *services.InsufficientBalanceError
		switch {
		case errors.As(err, &ibe):
			fail(c, http.StatusPaymentRequired, ErrCodeInsufficientBalance, ibe.Error())
		case errors.Is(err, services.ErrUnknownUser):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user has no coin profile")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, AskQuestionResponse{Question: q, Cost: cost})
}

// VoteAnswer records a helpful-vote on an answer by the current user. The
// parent question's author is resolved here so the ledger can reject
// clarification replies (the question author answering their own thread).
func (h *EconomyHandlers) VoteAnswer(c *gin.Context) {
	answerID := c.Param("id")
	if _, err := uuid.Parse(answerID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "answer id must be a UUID")
		return
	}

	ctx := c.Request.Context()

	questionAuthorID := ""
	if ans, err := repo.GetAnswer(ctx, h.db, answerID); err == nil {
		if q, qerr := repo.GetQuestion(ctx, h.db, ans.QuestionID); qerr == nil {
			questionAuthorID = q.AuthorID
		}
	}

	res, err := h.ledger.VoteAnswerHelpful(ctx, userID(c), answerID, questionAuthorID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownAnswer):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "answer not found")
		case errors.Is(err, services.ErrSelfVote):
			fail(c, http.StatusForbidden, ErrCodeSelfVote, "you cannot vote your own answer helpful")
		case errors.Is(err, services.ErrAuthorClarification):
			fail(c, http.StatusForbidden, ErrCodeAuthorVote, "clarifications on your own question earn no votes")
		case errors.Is(err, services.ErrDuplicateVote):
			fail(c, http.StatusConflict, ErrCodeDuplicateVote, "you already voted this answer helpful")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, res)
}

// UserStats returns the coin profile and activity aggregates for one user.
func (h *EconomyHandlers) UserStats(c *gin.Context) {
	id := c.Param("id")
	if strings.TrimSpace(id) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id required")
		return
	}

	st, err := h.ledger.GetUserStats(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrUnknownUser) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user has no coin profile")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// Leaderboard returns the top earners of the current month. The n query
// param bounds the list size (default 10, max 100).
func (h *EconomyHandlers) Leaderboard(c *gin.Context) {
	n := utils.AtoiDefault(c.Query("n"), 10)
	if n > 100 {
		n = 100
	}
	top, err := h.ledger.Leaderboard(c.Request.Context(), n)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"leaderboard": top})
}
