package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vibra-server/internal/handler"
	"vibra-server/internal/mocks"
	"vibra-server/internal/model"
	"vibra-server/internal/scheduler"
	"vibra-server/internal/service"
)

type stubScheduler struct {
	paused  bool
	runErr  error
	result  *service.ProcessResult
	runNows int
}

func (s *stubScheduler) RunNow(context.Context) (*service.ProcessResult, error) {
	s.runNows++
	return s.result, s.runErr
}
func (s *stubScheduler) Pause()  { s.paused = true }
func (s *stubScheduler) Resume() { s.paused = false }
func (s *stubScheduler) Status() scheduler.Status {
	return scheduler.Status{Enabled: true, Paused: s.paused, IntervalSeconds: 60, BatchSize: 10}
}

type testDeps struct {
	svc       *mocks.MockInterpretationService
	queue     *mocks.MockQueueRepository
	templates *mocks.MockTemplateRepository
	sched     *stubScheduler
}

func newTestRouter(t *testing.T) (*gin.Engine, testDeps) {
	gin.SetMode(gin.TestMode)
	deps := testDeps{
		svc:       mocks.NewMockInterpretationService(t),
		queue:     mocks.NewMockQueueRepository(t),
		templates: mocks.NewMockTemplateRepository(t),
		sched:     &stubScheduler{result: &service.ProcessResult{}},
	}
	h := handler.New(deps.svc, deps.queue, deps.templates, deps.sched, zap.NewNop())
	r := gin.New()
	h.RegisterRoutes(r)
	return r, deps
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTrigger(t *testing.T) {
	r, deps := newTestRouter(t)
	userID := uuid.New()
	queueID := uuid.New()

	deps.svc.On("TriggerByEvent", mock.Anything, mock.MatchedBy(func(req service.TriggerRequest) bool {
		return req.Event == model.EventMACGenerated && req.UserID == userID
	})).Return(&service.TriggerResult{QueuedItems: 1, QueueIDs: []uuid.UUID{queueID}}, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/trigger", gin.H{
		"event":   "MAC_GENERATED",
		"user_id": userID,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp service.TriggerResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.QueuedItems)
	assert.Equal(t, []uuid.UUID{queueID}, resp.QueueIDs)
}

func TestTrigger_InvalidEvent(t *testing.T) {
	r, deps := newTestRouter(t)

	deps.svc.On("TriggerByEvent", mock.Anything, mock.Anything).
		Return(nil, model.ErrInvalidInput)

	w := doJSON(r, http.MethodPost, "/api/v1/trigger", gin.H{
		"event":   "NOT_AN_EVENT",
		"user_id": uuid.New(),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrigger_MissingBodyFields(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/api/v1/trigger", gin.H{"event": "MAC_GENERATED"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerBatch(t *testing.T) {
	r, deps := newTestRouter(t)
	userA, userB := uuid.New(), uuid.New()

	deps.svc.On("TriggerByEvent", mock.Anything, mock.MatchedBy(func(req service.TriggerRequest) bool {
		return req.UserID == userA
	})).Return(&service.TriggerResult{QueuedItems: 2}, nil)
	deps.svc.On("TriggerByEvent", mock.Anything, mock.MatchedBy(func(req service.TriggerRequest) bool {
		return req.UserID == userB
	})).Return(&service.TriggerResult{QueuedItems: 1}, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/trigger/batch", gin.H{
		"event":    "SCHEDULED",
		"user_ids": []uuid.UUID{userA, userB},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp handler.BatchTriggerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.TotalQueued)
}

func TestProcessNow(t *testing.T) {
	r, deps := newTestRouter(t)
	userID := uuid.New()

	deps.svc.On("ForceProcess", mock.Anything, userID, "mapa-geral").
		Return(&service.ItemResult{QueueID: uuid.New(), TemplateKey: "mapa-geral", Success: true}, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/process/now", gin.H{
		"user_id":      userID,
		"template_key": "mapa-geral",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
}

func TestProcessNow_TemplateNotFound(t *testing.T) {
	r, deps := newTestRouter(t)

	deps.svc.On("ForceProcess", mock.Anything, mock.Anything, "nao-existe").
		Return(nil, model.ErrTemplateNotFound)

	w := doJSON(r, http.MethodPost, "/api/v1/process/now", gin.H{
		"user_id":      uuid.New(),
		"template_key": "nao-existe",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcessPending_DefaultLimit(t *testing.T) {
	r, deps := newTestRouter(t)

	deps.svc.On("ProcessPending", mock.Anything, 10).
		Return(&service.ProcessResult{Processed: 4, Succeeded: 4}, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/process/pending", nil)

	require.Equal(t, http.StatusOK, w.Code)
	deps.svc.AssertExpectations(t)
}

func TestProcessPending_ExplicitLimit(t *testing.T) {
	r, deps := newTestRouter(t)

	deps.svc.On("ProcessPending", mock.Anything, 3).
		Return(&service.ProcessResult{}, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/process/pending", gin.H{"limit": 3})

	require.Equal(t, http.StatusOK, w.Code)
	deps.svc.AssertExpectations(t)
}

func TestQueueStatus(t *testing.T) {
	r, deps := newTestRouter(t)

	deps.queue.On("CountByStatus", mock.Anything).Return(map[model.QueueStatus]int{
		model.StatusPending:   2,
		model.StatusCompleted: 5,
	}, nil)

	w := doJSON(r, http.MethodGet, "/api/v1/process/queue/status", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":7`)
}

func TestCancelQueueItem(t *testing.T) {
	r, deps := newTestRouter(t)
	id := uuid.New()

	deps.queue.On("Cancel", mock.Anything, id).Return(true, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/queue/"+id.String()+"/cancel", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCancelQueueItem_NotPending(t *testing.T) {
	r, deps := newTestRouter(t)
	id := uuid.New()

	deps.queue.On("Cancel", mock.Anything, id).Return(false, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/queue/"+id.String()+"/cancel", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateTemplate(t *testing.T) {
	r, deps := newTestRouter(t)

	deps.templates.On("Create", mock.Anything, mock.MatchedBy(func(tpl *model.Template) bool {
		return tpl.CustomKey == "sol-profundo" && tpl.IsActive
	})).Return(nil)

	w := doJSON(r, http.MethodPost, "/api/v1/admin/templates", gin.H{
		"title":          "Sol profundo",
		"custom_key":     "sol-profundo",
		"prompt_content": "Fale sobre @mac.sun",
		"trigger_event":  "MAC_GENERATED",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateTemplate_UnknownEvent(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/api/v1/admin/templates", gin.H{
		"title":          "x",
		"custom_key":     "x",
		"prompt_content": "x",
		"trigger_event":  "WHENEVER",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateTemplate(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/api/v1/admin/templates/validate", gin.H{
		"prompt_content": "@user.name e @planeta.sol",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":false`)
	assert.Contains(t, w.Body.String(), "@planeta.sol")
}

func TestSchedulerEndpoints(t *testing.T) {
	r, deps := newTestRouter(t)
	deps.sched.result = &service.ProcessResult{Processed: 1}

	w := doJSON(r, http.MethodPost, "/api/v1/admin/scheduler/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, deps.sched.paused)

	w = doJSON(r, http.MethodGet, "/api/v1/admin/scheduler/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paused":true`)

	w = doJSON(r, http.MethodPost, "/api/v1/admin/scheduler/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, deps.sched.runNows)

	w = doJSON(r, http.MethodPost, "/api/v1/admin/scheduler/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, deps.sched.paused)
}

func TestAPIKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.APIKeyMiddleware("secret", zap.NewNop()))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/queue", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Public path needs no key.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Missing key is unauthorized.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong key is forbidden.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
	req.Header.Set("X-API-Key", "wrong")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Correct key passes.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
	req.Header.Set("X-API-Key", "secret")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
