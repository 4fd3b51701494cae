// Bot registry HTTP handlers.
//
// This file exposes REST endpoints for the bot registry:
//   - POST   /bots        (create one bot)
//   - POST   /bots/bulk   (bulk admin actions: activate, pause, retype, …)
//   - GET    /bots        (list, paginated)
//   - GET    /bots/{id}   (fetch one)
//
// Handlers are transport-thin: they validate input, call the persistence and
// service layers, and translate results into HTTP responses.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-community-sim/internal/domain"
	"github.com/tbourn/go-community-sim/internal/repo"
	"github.com/tbourn/go-community-sim/internal/utils"
)

//
// Handler wiring
//

// BotRegistry is the cache-invalidation seam the bot admin endpoints need
// from the directory service.
type BotRegistry interface {
	// Refresh drops any cached registry snapshot after admin writes.
	Refresh()
}

// BotHandlers groups the bot registry endpoints. Registry reads and writes go
// straight to the repository; the directory cache is invalidated after every
// mutation so the next automation cycle sees current config.
type BotHandlers struct {
	db       *gorm.DB
	registry BotRegistry
}

// NewBotHandlers constructs BotHandlers over db with registry invalidation.
func NewBotHandlers(db *gorm.DB, registry BotRegistry) *BotHandlers {
	return &BotHandlers{db: db, registry: registry}
}

//
// DTOs
//

// CreateBotRequest is the JSON payload for registering one bot.
type CreateBotRequest struct {
	Name          string `json:"name" binding:"required,min=1,max=128"`
	Username      string `json:"username" binding:"required,min=1,max=64"`
	Type          string `json:"type" binding:"required"`
	ActivityLevel int    `json:"activity_level" binding:"required,min=1,max=10"`
	Status        string `json:"status"`
	Days          string `json:"days"`
	StartHour     int    `json:"start_hour"`
	EndHour       int    `json:"end_hour"`
}

// Bulk action names accepted by BulkUpdateBots.
const (
	BulkActivate    = "activate"
	BulkPause       = "pause"
	BulkSetType     = "set_type"
	BulkSetActivity = "set_activity"
	BulkDelete      = "delete"
)

// BulkBotsRequest is the JSON payload for a bulk admin action.
type BulkBotsRequest struct {
	Action string   `json:"action" binding:"required"`
	IDs    []string `json:"ids" binding:"required,min=1"`

	// Type applies to set_type, ActivityLevel to set_activity.
	Type          string `json:"type"`
	ActivityLevel int    `json:"activity_level"`
}

// BulkBotsResponse reports how many rows a bulk action touched.
type BulkBotsResponse struct {
	Action  string `json:"action"`
	Updated int64  `json:"updated"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListBotsResponse wraps a page of bots and pagination information.
type ListBotsResponse struct {
	Bots       []domain.Bot `json:"bots"`
	Pagination Pagination   `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// CreateBot registers one bot. Behavioral configuration is validated before
// anything is persisted; a misconfigured bot never reaches the scheduler.
func (h *BotHandlers) CreateBot(c *gin.Context) {
	var req CreateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	bot := &domain.Bot{
		Name:          strings.TrimSpace(req.Name),
		Username:      strings.TrimSpace(req.Username),
		Type:          req.Type,
		ActivityLevel: req.ActivityLevel,
		Status:        req.Status,
		Days:          req.Days,
		StartHour:     req.StartHour,
		EndHour:       req.EndHour,
	}
	if err := repo.CreateBot(c.Request.Context(), h.db, bot); err != nil {
		if errors.Is(err, domain.ErrInvalidBot) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidBot, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	h.registry.Refresh()
	ok(c, http.StatusCreated, bot)
}

// ListBots returns a page of the bot registry.
func (h *BotHandlers) ListBots(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	total, err := repo.CountBots(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items, err := repo.ListBotsPage(ctx, h.db, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListBotsResponse{
		Bots: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetBot fetches one bot by ID.
func (h *BotHandlers) GetBot(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "bot id must be a UUID")
		return
	}

	bot, err := repo.GetBot(c.Request.Context(), h.db, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "bot not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, bot)
}

// BulkUpdateBots applies one admin action to a set of bots and reports how
// many rows changed.
func (h *BotHandlers) BulkUpdateBots(c *gin.Context) {
	var req BulkBotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ctx := c.Request.Context()
	var (
		updated int64
		err     error
	)
	switch req.Action {
	case BulkActivate:
		updated, err = repo.BulkSetStatus(ctx, h.db, req.IDs, domain.BotStatusActive)
	case BulkPause:
		updated, err = repo.BulkSetStatus(ctx, h.db, req.IDs, domain.BotStatusPaused)
	case BulkSetType:
		updated, err = repo.BulkSetType(ctx, h.db, req.IDs, req.Type)
	case BulkSetActivity:
		updated, err = repo.BulkSetActivityLevel(ctx, h.db, req.IDs, req.ActivityLevel)
	case BulkDelete:
		updated, err = repo.DeleteBots(ctx, h.db, req.IDs)
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown bulk action")
		return
	}
	if err != nil {
		if errors.Is(err, domain.ErrInvalidBot) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidBot, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	h.registry.Refresh()
	ok(c, http.StatusOK, BulkBotsResponse{Action: req.Action, Updated: updated})
}
