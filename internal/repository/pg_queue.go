package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"vibra-server/internal/model"
)

const (
	queueColumns = `
		q.id, q.user_id, q.template_id, q.scheduled_for, q.status,
		q.retry_count, q.max_retries, q.context_data, q.result_content,
		q.error_log, q.llm_response_cache, q.processing_started_at,
		q.completed_at, q.created_at, q.updated_at
	`

	insertQueueItemQuery = `
		INSERT INTO adv_execution_queue (
			id, user_id, template_id, scheduled_for, status,
			retry_count, max_retries, context_data, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, 'pending', 0, $5, $6, now(), now())
	`
	getQueueItemByIDQuery = `
		SELECT ` + queueColumns + `
		FROM adv_execution_queue q
		WHERE q.id = $1
	`
	getPendingItemsQuery = `
		SELECT ` + queueColumns + `, ` + templateJoinColumns + `
		FROM adv_execution_queue q
		JOIN adv_interpretation_templates t ON t.id = q.template_id
		WHERE q.status = 'pending'
		  AND q.scheduled_for <= now()
		ORDER BY q.scheduled_for ASC, t.priority DESC
		LIMIT $1
	`
	claimQueueItemQuery = `
		UPDATE adv_execution_queue
		SET status = 'processing', processing_started_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`
	markCompletedQuery = `
		UPDATE adv_execution_queue
		SET status = 'completed',
		    result_content = $2,
		    completed_at = now(),
		    llm_response_cache = NULL,
		    updated_at = now()
		WHERE id = $1
	`
	markForRetryQuery = `
		UPDATE adv_execution_queue
		SET status = 'pending',
		    retry_count = retry_count + 1,
		    error_log = $2,
		    updated_at = now()
		WHERE id = $1
	`
	markFailedQuery = `
		UPDATE adv_execution_queue
		SET status = 'failed', error_log = $2, updated_at = now()
		WHERE id = $1
	`
	requeueStaleQuery = `
		UPDATE adv_execution_queue
		SET status = 'pending', updated_at = now()
		WHERE status = 'processing' AND processing_started_at < $1
	`
	cancelQueueItemQuery = `
		UPDATE adv_execution_queue
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`
	saveResponseCacheQuery = `
		UPDATE adv_execution_queue
		SET llm_response_cache = $2, updated_at = now()
		WHERE id = $1
	`
	clearResponseCacheQuery = `
		UPDATE adv_execution_queue
		SET llm_response_cache = NULL, updated_at = now()
		WHERE id = $1
	`
	listQueueItemsQuery = `
		SELECT ` + queueColumns + `
		FROM adv_execution_queue q
		WHERE ($1 = '' OR q.status = $1)
		ORDER BY q.created_at DESC
		LIMIT $2
	`
	countByStatusQuery = `
		SELECT status, count(*)
		FROM adv_execution_queue
		GROUP BY status
	`

	templateJoinColumns = `
		t.id, t.title, t.description, t.module_relation, t.custom_key,
		t.prompt_content, t.system_prompt, t.release_delay_days,
		t.release_delay_hours, t.trigger_event, t.target_profiles,
		t.llm_config, t.is_active, t.priority, t.created_at, t.updated_at
	`
)

type PgQueueRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgQueueRepository creates the postgres queue repository.
func NewPgQueueRepository(pool *pgxpool.Pool, logger *zap.Logger) QueueRepository {
	return &PgQueueRepository{
		pool:   pool,
		logger: logger.Named("PgQueueRepo"),
	}
}

func (r *PgQueueRepository) Add(ctx context.Context, userID, templateID uuid.UUID, scheduledFor time.Time, maxRetries int, contextData map[string]any) (*model.QueueItem, error) {
	if contextData == nil {
		contextData = map[string]any{}
	}
	encoded, err := json.Marshal(contextData)
	if err != nil {
		return nil, fmt.Errorf("error encoding context_data: %w", err)
	}

	item := &model.QueueItem{
		ID:           uuid.New(),
		UserID:       userID,
		TemplateID:   templateID,
		ScheduledFor: scheduledFor,
		Status:       model.StatusPending,
		MaxRetries:   maxRetries,
		ContextData:  contextData,
	}
	_, err = r.pool.Exec(ctx, insertQueueItemQuery,
		item.ID, userID, templateID, scheduledFor, maxRetries, encoded,
	)
	if err != nil {
		r.logger.Error("Failed to enqueue item",
			zap.String("user_id", userID.String()),
			zap.String("template_id", templateID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("error enqueueing item: %w", err)
	}
	r.logger.Debug("Item enqueued",
		zap.String("queue_id", item.ID.String()),
		zap.Time("scheduled_for", scheduledFor),
	)
	return item, nil
}

func (r *PgQueueRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QueueItem, error) {
	row := r.pool.QueryRow(ctx, getQueueItemByIDQuery, id)
	item, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get queue item", zap.String("id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("error getting queue item: %w", err)
	}
	return item, nil
}

func (r *PgQueueRepository) GetPending(ctx context.Context, limit int) ([]model.QueueItem, error) {
	rows, err := r.pool.Query(ctx, getPendingItemsQuery, limit)
	if err != nil {
		r.logger.Error("Failed to query pending items", zap.Error(err))
		return nil, fmt.Errorf("error querying pending items: %w", err)
	}
	defer rows.Close()

	var items []model.QueueItem
	for rows.Next() {
		item, err := scanQueueItemWithTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning pending item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending items: %w", err)
	}
	return items, nil
}

func (r *PgQueueRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, claimQueueItemQuery, id)
	if err != nil {
		r.logger.Error("Failed to claim queue item", zap.String("id", id.String()), zap.Error(err))
		return false, fmt.Errorf("error claiming queue item: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgQueueRepository) MarkCompleted(ctx context.Context, id uuid.UUID, resultContent string) error {
	return r.exec(ctx, markCompletedQuery, "mark completed", id, resultContent)
}

func (r *PgQueueRepository) MarkForRetry(ctx context.Context, id uuid.UUID, errorLog string) error {
	return r.exec(ctx, markForRetryQuery, "mark for retry", id, errorLog)
}

func (r *PgQueueRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorLog string) error {
	return r.exec(ctx, markFailedQuery, "mark failed", id, errorLog)
}

func (r *PgQueueRepository) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	tag, err := r.pool.Exec(ctx, requeueStaleQuery, cutoff)
	if err != nil {
		r.logger.Error("Failed to requeue stale items", zap.Error(err))
		return 0, fmt.Errorf("error requeueing stale items: %w", err)
	}
	requeued := int(tag.RowsAffected())
	if requeued > 0 {
		r.logger.Warn("Requeued stale processing items",
			zap.Int("count", requeued),
			zap.Time("cutoff", cutoff),
		)
	}
	return requeued, nil
}

func (r *PgQueueRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, cancelQueueItemQuery, id)
	if err != nil {
		r.logger.Error("Failed to cancel queue item", zap.String("id", id.String()), zap.Error(err))
		return false, fmt.Errorf("error cancelling queue item: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgQueueRepository) SaveResponseCache(ctx context.Context, id uuid.UUID, rawResponse string) error {
	return r.exec(ctx, saveResponseCacheQuery, "save response cache", id, rawResponse)
}

func (r *PgQueueRepository) ClearResponseCache(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, clearResponseCacheQuery, id)
	if err != nil {
		r.logger.Error("Failed to clear response cache", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("error clearing response cache: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *PgQueueRepository) List(ctx context.Context, status model.QueueStatus, limit int) ([]model.QueueItem, error) {
	rows, err := r.pool.Query(ctx, listQueueItemsQuery, string(status), limit)
	if err != nil {
		r.logger.Error("Failed to list queue items", zap.Error(err))
		return nil, fmt.Errorf("error listing queue items: %w", err)
	}
	defer rows.Close()

	var items []model.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning queue item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *PgQueueRepository) CountByStatus(ctx context.Context) (map[model.QueueStatus]int, error) {
	rows, err := r.pool.Query(ctx, countByStatusQuery)
	if err != nil {
		r.logger.Error("Failed to count queue items", zap.Error(err))
		return nil, fmt.Errorf("error counting queue items: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.QueueStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("error scanning status count: %w", err)
		}
		counts[model.QueueStatus(status)] = count
	}
	return counts, rows.Err()
}

func (r *PgQueueRepository) exec(ctx context.Context, query, action string, id uuid.UUID, arg string) error {
	tag, err := r.pool.Exec(ctx, query, id, arg)
	if err != nil {
		r.logger.Error("Queue update failed",
			zap.String("action", action),
			zap.String("id", id.String()),
			zap.Error(err),
		)
		return fmt.Errorf("error on %s: %w", action, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanQueueItem(row pgx.Row) (*model.QueueItem, error) {
	var item model.QueueItem
	var contextData []byte
	err := row.Scan(
		&item.ID, &item.UserID, &item.TemplateID, &item.ScheduledFor, &item.Status,
		&item.RetryCount, &item.MaxRetries, &contextData, &item.ResultContent,
		&item.ErrorLog, &item.LLMResponseCache, &item.ProcessingStartedAt,
		&item.CompletedAt, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeContextData(contextData, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func scanQueueItemWithTemplate(row pgx.Row) (*model.QueueItem, error) {
	var item model.QueueItem
	var contextData []byte
	var tpl templateRow
	err := row.Scan(
		&item.ID, &item.UserID, &item.TemplateID, &item.ScheduledFor, &item.Status,
		&item.RetryCount, &item.MaxRetries, &contextData, &item.ResultContent,
		&item.ErrorLog, &item.LLMResponseCache, &item.ProcessingStartedAt,
		&item.CompletedAt, &item.CreatedAt, &item.UpdatedAt,
		&tpl.ID, &tpl.Title, &tpl.Description, &tpl.ModuleRelation, &tpl.CustomKey,
		&tpl.PromptContent, &tpl.SystemPrompt, &tpl.ReleaseDelayDays,
		&tpl.ReleaseDelayHours, &tpl.TriggerEvent, &tpl.TargetProfiles,
		&tpl.LLMConfig, &tpl.IsActive, &tpl.Priority, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeContextData(contextData, &item); err != nil {
		return nil, err
	}
	template, err := tpl.toModel()
	if err != nil {
		return nil, err
	}
	item.Template = template
	return &item, nil
}

func decodeContextData(raw []byte, item *model.QueueItem) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &item.ContextData); err != nil {
		return fmt.Errorf("error decoding context_data: %w", err)
	}
	return nil
}
