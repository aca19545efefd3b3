package model

import (
	"time"

	"github.com/google/uuid"
)

// QueueStatus is the lifecycle state of an execution queue item.
type QueueStatus string

const (
	StatusPending    QueueStatus = "pending"
	StatusProcessing QueueStatus = "processing"
	StatusCompleted  QueueStatus = "completed"
	StatusFailed     QueueStatus = "failed"
	StatusCancelled  QueueStatus = "cancelled"
)

// Valid reports whether the status is a known queue status.
func (s QueueStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s QueueStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// QueueItem is a single unit of interpretation work. A retried item goes
// back to pending with retry_count incremented, so "awaiting retry" is
// simply pending with RetryCount > 0.
type QueueItem struct {
	ID                  uuid.UUID      `json:"id"`
	UserID              uuid.UUID      `json:"user_id"`
	TemplateID          uuid.UUID      `json:"template_id"`
	ScheduledFor        time.Time      `json:"scheduled_for"`
	Status              QueueStatus    `json:"status"`
	RetryCount          int            `json:"retry_count"`
	MaxRetries          int            `json:"max_retries"`
	ContextData         map[string]any `json:"context_data,omitempty"`
	ResultContent       *string        `json:"result_content,omitempty"`
	ErrorLog            *string        `json:"error_log,omitempty"`
	LLMResponseCache    *string        `json:"-"`
	ProcessingStartedAt *time.Time     `json:"processing_started_at,omitempty"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`

	// Template is populated on reads that join the template row.
	Template *Template `json:"template,omitempty"`
}

// HasCachedResponse reports whether a raw LLM response from a previous
// attempt is available for reuse.
func (q *QueueItem) HasCachedResponse() bool {
	return q.LLMResponseCache != nil && *q.LLMResponseCache != ""
}
