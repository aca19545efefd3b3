package model

import (
	"time"

	"github.com/google/uuid"
)

// TriggerEvent identifies the application event that releases templates
// into the execution queue.
type TriggerEvent string

const (
	EventAccountCreated       TriggerEvent = "ACCOUNT_CREATED"
	EventMACGenerated         TriggerEvent = "MAC_GENERATED"
	EventMACUpdated           TriggerEvent = "MAC_UPDATED"
	EventTestCompleted        TriggerEvent = "TEST_COMPLETED"
	EventSubscriptionUpgraded TriggerEvent = "SUBSCRIPTION_UPGRADED"
	EventManualTrigger        TriggerEvent = "MANUAL_TRIGGER"
	EventScheduled            TriggerEvent = "SCHEDULED"
)

// Valid reports whether the event is one of the known trigger events.
func (e TriggerEvent) Valid() bool {
	switch e {
	case EventAccountCreated, EventMACGenerated, EventMACUpdated,
		EventTestCompleted, EventSubscriptionUpgraded, EventManualTrigger,
		EventScheduled:
		return true
	}
	return false
}

// LLMConfig carries the per-template generation settings. Empty fields
// fall back to the gateway defaults.
type LLMConfig struct {
	Provider         string  `json:"provider,omitempty"`
	Model            string  `json:"model,omitempty"`
	FallbackProvider string  `json:"fallback_provider,omitempty"`
	FallbackModel    string  `json:"fallback_model,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	MaxTokens        int     `json:"max_tokens,omitempty"`
}

// Template is an interpretation template row.
type Template struct {
	ID                uuid.UUID    `json:"id"`
	Title             string       `json:"title"`
	Description       string       `json:"description,omitempty"`
	ModuleRelation    string       `json:"module_relation,omitempty"`
	CustomKey         string       `json:"custom_key"`
	PromptContent     string       `json:"prompt_content"`
	SystemPrompt      string       `json:"system_prompt,omitempty"`
	ReleaseDelayDays  int          `json:"release_delay_days"`
	ReleaseDelayHours int          `json:"release_delay_hours"`
	TriggerEvent      TriggerEvent `json:"trigger_event"`
	TargetProfiles    []string     `json:"target_profiles"`
	LLMConfig         LLMConfig    `json:"llm_config"`
	IsActive          bool         `json:"is_active"`
	Priority          int          `json:"priority"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// MatchesProfile reports whether the template targets the given plan.
// An empty list or the "all" entry matches every plan.
func (t *Template) MatchesProfile(plan string) bool {
	if len(t.TargetProfiles) == 0 {
		return true
	}
	for _, p := range t.TargetProfiles {
		if p == "all" || p == plan {
			return true
		}
	}
	return false
}

// ReleaseDelay converts the configured day/hour delay into a duration.
func (t *Template) ReleaseDelay() time.Duration {
	return time.Duration(t.ReleaseDelayDays)*24*time.Hour +
		time.Duration(t.ReleaseDelayHours)*time.Hour
}
