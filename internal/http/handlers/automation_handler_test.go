package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-community-sim/internal/automation"
	"github.com/tbourn/go-community-sim/internal/domain"
	"github.com/tbourn/go-community-sim/internal/services"
)

// fakeRunner is a scriptable AutomationControl recording calls.
type fakeRunner struct {
	status automation.Status

	report    *automation.CycleReport
	runErr    error
	outcome   *automation.BotOutcome
	triggErr  error
	lastStart time.Duration
	stops     int

	lastBotID  string
	lastAction string
}

func (f *fakeRunner) Start(interval time.Duration) {
	f.lastStart = interval
	f.status.Running = true
	f.status.Interval = interval
}

func (f *fakeRunner) Stop() {
	f.stops++
	f.status.Running = false
}

func (f *fakeRunner) Status() automation.Status { return f.status }

func (f *fakeRunner) RunOnce(context.Context) (*automation.CycleReport, error) {
	return f.report, f.runErr
}

func (f *fakeRunner) TriggerBot(_ context.Context, botID, action string) (*automation.BotOutcome, error) {
	f.lastBotID = botID
	f.lastAction = action
	return f.outcome, f.triggErr
}

// fakeFeed is a scriptable InteractionFeed.
type fakeFeed struct {
	recorded  []*domain.InteractionEvent
	recordErr error

	outcomes  []services.InteractionOutcome
	lastLimit int
}

func (f *fakeFeed) Record(_ context.Context, ev *domain.InteractionEvent) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recorded = append(f.recorded, ev)
	return nil
}

func (f *fakeFeed) ProcessPending(_ context.Context, limit int) ([]services.InteractionOutcome, error) {
	f.lastLimit = limit
	return f.outcomes, nil
}

func newAutomationRouter(t *testing.T, runner *fakeRunner, feed *fakeFeed) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewAutomationHandlers(runner, feed, 30*time.Minute, 50)
	r := gin.New()
	r.POST("/automation/start", h.Start)
	r.POST("/automation/stop", h.Stop)
	r.POST("/automation/run", h.RunOnce)
	r.GET("/automation/status", h.Status)
	r.POST("/automation/bots/:id/trigger", h.TriggerBot)
	r.POST("/interactions", h.RecordInteraction)
	r.POST("/interactions/process", h.ProcessInteractions)
	return r
}

func TestStartAutomation_DefaultAndOverride(t *testing.T) {
	runner := &fakeRunner{}
	r := newAutomationRouter(t, runner, &fakeFeed{})

	// Empty body uses the configured default.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/automation/start", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("start = %d body=%s", w.Code, w.Body.String())
	}
	if runner.lastStart != 30*time.Minute {
		t.Fatalf("default interval = %v, want 30m", runner.lastStart)
	}

	// Body overrides the interval.
	w = postJSON(t, r, "/automation/start", `{"interval_minutes":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("start override = %d", w.Code)
	}
	if runner.lastStart != 5*time.Minute {
		t.Fatalf("override interval = %v, want 5m", runner.lastStart)
	}

	// Out-of-range interval rejected by binding.
	w = postJSON(t, r, "/automation/start", `{"interval_minutes":100000}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad interval = %d, want 400", w.Code)
	}
}

func TestStopAutomation(t *testing.T) {
	runner := &fakeRunner{status: automation.Status{Running: true}}
	r := newAutomationRouter(t, runner, &fakeFeed{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/automation/stop", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || runner.stops != 1 {
		t.Fatalf("stop = %d stops=%d", w.Code, runner.stops)
	}
	var st automation.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Running {
		t.Fatalf("status still running after stop")
	}
}

func TestRunOnce_ReturnsReport(t *testing.T) {
	runner := &fakeRunner{report: &automation.CycleReport{Bots: 2, Actions: 1}}
	r := newAutomationRouter(t, runner, &fakeFeed{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/automation/run", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("run = %d body=%s", w.Code, w.Body.String())
	}
	var rep automation.CycleReport
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Bots != 2 || rep.Actions != 1 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestTriggerBot_MapsErrors(t *testing.T) {
	botID := uuid.NewString()

	// unknown bot → 404
	runner := &fakeRunner{triggErr: services.ErrUnknownBot}
	r := newAutomationRouter(t, runner, &fakeFeed{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/automation/bots/"+botID+"/trigger", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown bot = %d, want 404", w.Code)
	}

	// unknown action → 400
	runner = &fakeRunner{triggErr: automation.ErrUnknownAction}
	r = newAutomationRouter(t, runner, &fakeFeed{})
	w = postJSON(t, r, "/automation/bots/"+botID+"/trigger", `{"action":"dance"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown action = %d, want 400", w.Code)
	}
	if runner.lastAction != "dance" {
		t.Fatalf("action passthrough = %q", runner.lastAction)
	}

	// malformed id never reaches the runner
	runner = &fakeRunner{}
	r = newAutomationRouter(t, runner, &fakeFeed{})
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/automation/bots/not-a-uuid/trigger", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d, want 400", w.Code)
	}
	if runner.lastBotID != "" {
		t.Fatalf("runner called with bad id %q", runner.lastBotID)
	}
}

func TestTriggerBot_Success(t *testing.T) {
	botID := uuid.NewString()
	runner := &fakeRunner{outcome: &automation.BotOutcome{BotID: botID, Acted: true, Action: "question"}}
	r := newAutomationRouter(t, runner, &fakeFeed{})

	w := postJSON(t, r, "/automation/bots/"+botID+"/trigger", `{"action":"question"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("trigger = %d body=%s", w.Code, w.Body.String())
	}
	var out automation.BotOutcome
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Acted || out.BotID != botID {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestRecordInteraction(t *testing.T) {
	feed := &fakeFeed{}
	r := newAutomationRouter(t, &fakeRunner{}, feed)

	botID := uuid.NewString()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/interactions",
		bytes.NewBufferString(`{"kind":"reply","bot_id":"`+botID+`","question_id":"q1","excerpt":"thanks!"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "carol")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("record = %d body=%s", w.Code, w.Body.String())
	}
	if len(feed.recorded) != 1 {
		t.Fatalf("recorded = %d events", len(feed.recorded))
	}
	ev := feed.recorded[0]
	if ev.Kind != domain.InteractionReply || ev.BotID != botID || ev.UserID != "carol" {
		t.Fatalf("event = %+v", ev)
	}

	// Missing bot_id rejected by binding.
	w = postJSON(t, r, "/interactions", `{"kind":"reply"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing bot_id = %d, want 400", w.Code)
	}
}

func TestProcessInteractions(t *testing.T) {
	feed := &fakeFeed{outcomes: []services.InteractionOutcome{
		{EventID: "e1", BotID: "b1", Responded: true, Outcome: services.OutcomeResponded},
		{EventID: "e2", BotID: "b2", Outcome: services.OutcomeBotInactive},
	}}
	r := newAutomationRouter(t, &fakeRunner{}, feed)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/interactions/process", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("process = %d body=%s", w.Code, w.Body.String())
	}
	if feed.lastLimit != 50 {
		t.Fatalf("batch limit = %d, want 50", feed.lastLimit)
	}
	var resp struct {
		Processed int                           `json:"processed"`
		Outcomes  []services.InteractionOutcome `json:"outcomes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Processed != 2 || len(resp.Outcomes) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
}
