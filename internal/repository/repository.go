// Package repository defines the narrow persistence contracts the
// pipeline depends on, with postgres implementations.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vibra-server/internal/model"
)

// TemplateRepository reads and manages interpretation templates.
type TemplateRepository interface {
	// GetByEvent returns active templates matching the event whose
	// target profiles include the given plan, highest priority first.
	GetByEvent(ctx context.Context, event model.TriggerEvent, plan string) ([]model.Template, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Template, error)
	GetByKey(ctx context.Context, customKey string) (*model.Template, error)
	List(ctx context.Context, includeInactive bool) ([]model.Template, error)
	Create(ctx context.Context, t *model.Template) error
	Update(ctx context.Context, t *model.Template) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// QueueRepository owns the durable execution queue. Its atomicity
// guarantees (Claim in particular) are what make single-ownership of an
// item during processing hold.
type QueueRepository interface {
	Add(ctx context.Context, userID, templateID uuid.UUID, scheduledFor time.Time, maxRetries int, contextData map[string]any) (*model.QueueItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.QueueItem, error)
	// GetPending returns eligible items (pending, scheduled_for reached)
	// with their templates joined, earliest first.
	GetPending(ctx context.Context, limit int) ([]model.QueueItem, error)
	// Claim atomically moves a pending item to processing. It returns
	// false when the item was already claimed or is not pending.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	// MarkCompleted stores the final content, stamps completion and
	// clears the response cache in a single statement.
	MarkCompleted(ctx context.Context, id uuid.UUID, resultContent string) error
	// MarkForRetry returns the item to pending and increments retry_count.
	MarkForRetry(ctx context.Context, id uuid.UUID, errorLog string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorLog string) error
	// Cancel moves a pending item to cancelled. It returns false when the
	// item is no longer pending.
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
	// RequeueStale returns items stuck in processing longer than olderThan
	// back to pending, so a crash mid-processing cannot strand them. It
	// reports how many items were requeued.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)
	SaveResponseCache(ctx context.Context, id uuid.UUID, rawResponse string) error
	ClearResponseCache(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, status model.QueueStatus, limit int) ([]model.QueueItem, error)
	CountByStatus(ctx context.Context) (map[model.QueueStatus]int, error)
}

// UserRepository reads user profile and astrology map rows.
type UserRepository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (model.Profile, error)
	GetAstralMap(ctx context.Context, userID uuid.UUID) (model.AstralMap, error)
}

// InterpretationRepository stores the durable interpretation records.
type InterpretationRepository interface {
	// Save upserts the interpretation content keyed by (user_id, action),
	// so regenerating the same template overwrites the previous record.
	Save(ctx context.Context, userID uuid.UUID, action, content string) error
	Get(ctx context.Context, userID uuid.UUID, action string) (string, error)
}

// NotificationRepository creates in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
}
