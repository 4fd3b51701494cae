// Automation control HTTP handlers.
//
// This file exposes the operational surface of the automation loop:
//   - POST /automation/start              (start or retune the loop)
//   - POST /automation/stop               (cooperative stop)
//   - POST /automation/run                (one manual cycle, full report)
//   - GET  /automation/status             (state + last cycle)
//   - POST /automation/bots/{id}/trigger  (single-bot manual action)
//   - POST /interactions                  (record a human interaction)
//   - POST /interactions/process          (drain the follow-up queue)
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-community-sim/internal/automation"
	"github.com/tbourn/go-community-sim/internal/domain"
	"github.com/tbourn/go-community-sim/internal/services"
)

//
// Service contracts (context-aware)
//

// AutomationControl defines the runner operations consumed by HTTP handlers.
type AutomationControl interface {
	// Start launches or retunes the timer loop.
	Start(interval time.Duration)
	// Stop cancels the pending tick and waits for an in-flight cycle.
	Stop()
	// Status reports the state machine and last cycle.
	Status() automation.Status
	// RunOnce executes one manual cycle.
	RunOnce(ctx context.Context) (*automation.CycleReport, error)
	// TriggerBot runs one bot's commit path on demand.
	TriggerBot(ctx context.Context, botID, action string) (*automation.BotOutcome, error)
}

// InteractionFeed defines the watcher operations consumed by HTTP handlers.
type InteractionFeed interface {
	// Record stores a detected human interaction for later processing.
	Record(ctx context.Context, ev *domain.InteractionEvent) error
	// ProcessPending drains up to limit unprocessed events.
	ProcessPending(ctx context.Context, limit int) ([]services.InteractionOutcome, error)
}

// AutomationHandlers groups the automation control endpoints.
type AutomationHandlers struct {
	runner AutomationControl
	feed   InteractionFeed

	// defaultInterval is used when a start request omits the interval.
	defaultInterval time.Duration
	// eventBatch bounds one manual interaction-processing pass.
	eventBatch int
}

// NewAutomationHandlers constructs AutomationHandlers bound to runner and feed.
func NewAutomationHandlers(runner AutomationControl, feed InteractionFeed, defaultInterval time.Duration, eventBatch int) *AutomationHandlers {
	return &AutomationHandlers{
		runner:          runner,
		feed:            feed,
		defaultInterval: defaultInterval,
		eventBatch:      eventBatch,
	}
}

//
// DTOs
//

// StartAutomationRequest optionally overrides the cycle interval.
type StartAutomationRequest struct {
	IntervalMinutes int `json:"interval_minutes" binding:"omitempty,min=1,max=1440"`
}

// TriggerBotRequest optionally forces the action kind for a manual trigger.
type TriggerBotRequest struct {
	// Action is "question" or "answer"; empty selects by bot type.
	Action string `json:"action"`
}

// RecordInteractionRequest is the JSON payload for reporting a real-user
// interaction with bot-authored content.
type RecordInteractionRequest struct {
	Kind       string `json:"kind" binding:"required"`
	BotID      string `json:"bot_id" binding:"required"`
	QuestionID string `json:"question_id"`
	AnswerID   string `json:"answer_id"`
	Excerpt    string `json:"excerpt" binding:"omitempty,max=255"`
}

//
// Handlers
//

// Start launches the automation loop, or retunes its interval when already
// running. The body is optional; an omitted interval uses the configured
// default.
func (h *AutomationHandlers) Start(c *gin.Context) {
	interval := h.defaultInterval
	if c.Request.ContentLength > 0 {
		var req StartAutomationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
		if req.IntervalMinutes > 0 {
			interval = time.Duration(req.IntervalMinutes) * time.Minute
		}
	}

	h.runner.Start(interval)
	ok(c, http.StatusOK, h.runner.Status())
}

// Stop halts the automation loop. Stopping a stopped loop is a no-op.
func (h *AutomationHandlers) Stop(c *gin.Context) {
	h.runner.Stop()
	ok(c, http.StatusOK, h.runner.Status())
}

// Status reports the loop state and the last completed cycle.
func (h *AutomationHandlers) Status(c *gin.Context) {
	ok(c, http.StatusOK, h.runner.Status())
}

// RunOnce executes one manual activity cycle and returns the full per-bot
// report.
func (h *AutomationHandlers) RunOnce(c *gin.Context) {
	report, err := h.runner.RunOnce(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, report)
}

// TriggerBot runs one bot's action on demand, bypassing the probability
// draw. The duplicate guard still applies, so the outcome may be a skip.
func (h *AutomationHandlers) TriggerBot(c *gin.Context) {
	botID := c.Param("id")
	if _, err := uuid.Parse(botID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "bot id must be a UUID")
		return
	}

	var req TriggerBotRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	outcome, err := h.runner.TriggerBot(c.Request.Context(), botID, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownBot):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "bot not found")
		case errors.Is(err, automation.ErrUnknownAction):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "action must be question or answer")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, outcome)
}

// RecordInteraction stores a detected real-user interaction so the next
// processing pass can post a follow-up.
func (h *AutomationHandlers) RecordInteraction(c *gin.Context) {
	var req RecordInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ev := &domain.InteractionEvent{
		Kind:       req.Kind,
		UserID:     userID(c),
		BotID:      req.BotID,
		QuestionID: req.QuestionID,
		AnswerID:   req.AnswerID,
		Excerpt:    req.Excerpt,
	}
	if err := h.feed.Record(c.Request.Context(), ev); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "kind must be reply or vote, with user and bot ids")
		return
	}
	ok(c, http.StatusCreated, ev)
}

// ProcessInteractions drains the unprocessed event queue and reports the
// per-event outcomes.
func (h *AutomationHandlers) ProcessInteractions(c *gin.Context) {
	outcomes, err := h.feed.ProcessPending(c.Request.Context(), h.eventBatch)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"processed": len(outcomes), "outcomes": outcomes})
}
