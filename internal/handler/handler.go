// Package handler exposes the pipeline over HTTP with gin.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vibra-server/internal/model"
	"vibra-server/internal/parser"
	"vibra-server/internal/repository"
	"vibra-server/internal/scheduler"
	"vibra-server/internal/service"
)

const defaultProcessLimit = 10

// SchedulerControl is the scheduler surface the admin routes need.
type SchedulerControl interface {
	RunNow(ctx context.Context) (*service.ProcessResult, error)
	Pause()
	Resume()
	Status() scheduler.Status
}

// Handler holds the HTTP route dependencies.
type Handler struct {
	service   service.InterpretationService
	queue     repository.QueueRepository
	templates repository.TemplateRepository
	scheduler SchedulerControl
	logger    *zap.Logger
}

// New creates the Handler.
func New(svc service.InterpretationService, queue repository.QueueRepository, templates repository.TemplateRepository, sched SchedulerControl, logger *zap.Logger) *Handler {
	return &Handler{
		service:   svc,
		queue:     queue,
		templates: templates,
		scheduler: sched,
		logger:    logger.Named("handler"),
	}
}

// RegisterRoutes attaches every route to the engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/trigger", h.trigger)
		v1.POST("/trigger/batch", h.triggerBatch)

		v1.POST("/process/now", h.processNow)
		v1.POST("/process/pending", h.processPending)
		v1.GET("/process/queue/status", h.queueStatus)

		v1.GET("/queue", h.listQueue)
		v1.GET("/queue/:id", h.getQueueItem)
		v1.POST("/queue/:id/cancel", h.cancelQueueItem)

		admin := v1.Group("/admin")
		{
			admin.GET("/templates", h.listTemplates)
			admin.POST("/templates", h.createTemplate)
			admin.GET("/templates/:id", h.getTemplate)
			admin.PUT("/templates/:id", h.updateTemplate)
			admin.DELETE("/templates/:id", h.deleteTemplate)
			admin.POST("/templates/validate", h.validateTemplate)

			admin.GET("/scheduler/status", h.schedulerStatus)
			admin.POST("/scheduler/run", h.schedulerRun)
			admin.POST("/scheduler/pause", h.schedulerPause)
			admin.POST("/scheduler/resume", h.schedulerResume)
		}
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) trigger(c *gin.Context) {
	var req TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.TriggerByEvent(c.Request.Context(), service.TriggerRequest{
		Event:          model.TriggerEvent(req.Event),
		UserID:         req.UserID,
		Context:        req.Context,
		ForceImmediate: req.ForceImmediate,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) triggerBatch(c *gin.Context) {
	var req BatchTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := BatchTriggerResponse{
		PerUser: make(map[string]int, len(req.UserIDs)),
		Errors:  map[string]string{},
	}
	for _, userID := range req.UserIDs {
		result, err := h.service.TriggerByEvent(c.Request.Context(), service.TriggerRequest{
			Event:   model.TriggerEvent(req.Event),
			UserID:  userID,
			Context: req.Context,
		})
		if err != nil {
			resp.Errors[userID.String()] = err.Error()
			continue
		}
		resp.PerUser[userID.String()] = result.QueuedItems
		resp.TotalQueued += result.QueuedItems
	}
	if len(resp.Errors) == 0 {
		resp.Errors = nil
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) processNow(c *gin.Context) {
	var req ProcessNowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.ForceProcess(c.Request.Context(), req.UserID, req.TemplateKey)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) processPending(c *gin.Context) {
	// The body is optional; an absent one means the default limit.
	var req ProcessPendingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Limit <= 0 {
		req.Limit = defaultProcessLimit
	}

	result, err := h.service.ProcessPending(c.Request.Context(), req.Limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) queueStatus(c *gin.Context) {
	counts, err := h.queue.CountByStatus(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "by_status": counts})
}

func (h *Handler) listQueue(c *gin.Context) {
	status := model.QueueStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	items, err := h.queue.List(c.Request.Context(), status, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *Handler) getQueueItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid queue id"})
		return
	}

	item, err := h.queue.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// cancelQueueItem cancels a pending item. Items in any other status are
// left untouched and reported as a conflict.
func (h *Handler) cancelQueueItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid queue id"})
		return
	}

	cancelled, err := h.queue.Cancel(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !cancelled {
		c.JSON(http.StatusConflict, gin.H{"error": "item is not pending"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (h *Handler) listTemplates(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"
	templates, err := h.templates.List(c.Request.Context(), includeInactive)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates, "count": len(templates)})
}

func (h *Handler) createTemplate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !model.TriggerEvent(req.TriggerEvent).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown trigger_event"})
		return
	}

	tpl := req.toModel()
	if err := h.templates.Create(c.Request.Context(), tpl); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (h *Handler) getTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}

	tpl, err := h.templates.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (h *Handler) updateTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !model.TriggerEvent(req.TriggerEvent).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown trigger_event"})
		return
	}

	tpl := req.toModel()
	tpl.ID = id
	if err := h.templates.Update(c.Request.Context(), tpl); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (h *Handler) deleteTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}

	if err := h.templates.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) validateTemplate(c *gin.Context) {
	var req ValidateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, parser.ValidateTemplate(req.PromptContent))
}

func (h *Handler) schedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.Status())
}

func (h *Handler) schedulerRun(c *gin.Context) {
	result, err := h.scheduler.RunNow(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) schedulerPause(c *gin.Context) {
	h.scheduler.Pause()
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (h *Handler) schedulerResume(c *gin.Context) {
	h.scheduler.Resume()
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrTemplateNotFound),
		errors.Is(err, model.ErrUserNotFound),
		errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
