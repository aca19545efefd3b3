package handler

import (
	"github.com/google/uuid"

	"vibra-server/internal/model"
)

// TriggerRequest fires template matching for one user.
type TriggerRequest struct {
	Event          string         `json:"event" binding:"required"`
	UserID         uuid.UUID      `json:"user_id" binding:"required"`
	Context        map[string]any `json:"context"`
	ForceImmediate bool           `json:"force_immediate"`
}

// BatchTriggerRequest fires the same event for several users.
type BatchTriggerRequest struct {
	Event   string         `json:"event" binding:"required"`
	UserIDs []uuid.UUID    `json:"user_ids" binding:"required,min=1"`
	Context map[string]any `json:"context"`
}

// BatchTriggerResponse aggregates per-user trigger outcomes.
type BatchTriggerResponse struct {
	TotalQueued int               `json:"total_queued"`
	PerUser     map[string]int    `json:"per_user"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// ProcessNowRequest runs one template synchronously for a user.
type ProcessNowRequest struct {
	UserID      uuid.UUID `json:"user_id" binding:"required"`
	TemplateKey string    `json:"template_key" binding:"required"`
}

// ProcessPendingRequest sweeps the queue on demand.
type ProcessPendingRequest struct {
	Limit int `json:"limit"`
}

// TemplateRequest creates or updates a template.
type TemplateRequest struct {
	Title             string          `json:"title" binding:"required"`
	Description       string          `json:"description"`
	ModuleRelation    string          `json:"module_relation"`
	CustomKey         string          `json:"custom_key" binding:"required"`
	PromptContent     string          `json:"prompt_content" binding:"required"`
	SystemPrompt      string          `json:"system_prompt"`
	ReleaseDelayDays  int             `json:"release_delay_days" binding:"min=0"`
	ReleaseDelayHours int             `json:"release_delay_hours" binding:"min=0"`
	TriggerEvent      string          `json:"trigger_event" binding:"required"`
	TargetProfiles    []string        `json:"target_profiles"`
	LLMConfig         model.LLMConfig `json:"llm_config"`
	IsActive          *bool           `json:"is_active"`
	Priority          int             `json:"priority"`
}

func (r *TemplateRequest) toModel() *model.Template {
	isActive := true
	if r.IsActive != nil {
		isActive = *r.IsActive
	}
	return &model.Template{
		Title:             r.Title,
		Description:       r.Description,
		ModuleRelation:    r.ModuleRelation,
		CustomKey:         r.CustomKey,
		PromptContent:     r.PromptContent,
		SystemPrompt:      r.SystemPrompt,
		ReleaseDelayDays:  r.ReleaseDelayDays,
		ReleaseDelayHours: r.ReleaseDelayHours,
		TriggerEvent:      model.TriggerEvent(r.TriggerEvent),
		TargetProfiles:    r.TargetProfiles,
		LLMConfig:         r.LLMConfig,
		IsActive:          isActive,
		Priority:          r.Priority,
	}
}

// ValidateTemplateRequest checks a prompt for unknown variables.
type ValidateTemplateRequest struct {
	PromptContent string `json:"prompt_content" binding:"required"`
}
