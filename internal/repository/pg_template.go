package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"vibra-server/internal/model"
)

const (
	templateColumns = `
		id, title, description, module_relation, custom_key, prompt_content,
		system_prompt, release_delay_days, release_delay_hours, trigger_event,
		target_profiles, llm_config, is_active, priority, created_at, updated_at
	`

	getTemplatesByEventQuery = `
		SELECT ` + templateColumns + `
		FROM adv_interpretation_templates
		WHERE trigger_event = $1
		  AND is_active = true
		  AND (target_profiles ? 'all' OR target_profiles ? $2)
		ORDER BY priority DESC, created_at ASC
	`
	getTemplateByIDQuery = `
		SELECT ` + templateColumns + `
		FROM adv_interpretation_templates
		WHERE id = $1
	`
	getTemplateByKeyQuery = `
		SELECT ` + templateColumns + `
		FROM adv_interpretation_templates
		WHERE custom_key = $1
	`
	listTemplatesQuery = `
		SELECT ` + templateColumns + `
		FROM adv_interpretation_templates
		WHERE ($1 OR is_active = true)
		ORDER BY priority DESC, created_at ASC
	`
	insertTemplateQuery = `
		INSERT INTO adv_interpretation_templates (
			id, title, description, module_relation, custom_key, prompt_content,
			system_prompt, release_delay_days, release_delay_hours, trigger_event,
			target_profiles, llm_config, is_active, priority, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
	`
	updateTemplateQuery = `
		UPDATE adv_interpretation_templates SET
			title = $2,
			description = $3,
			module_relation = $4,
			custom_key = $5,
			prompt_content = $6,
			system_prompt = $7,
			release_delay_days = $8,
			release_delay_hours = $9,
			trigger_event = $10,
			target_profiles = $11,
			llm_config = $12,
			is_active = $13,
			priority = $14,
			updated_at = now()
		WHERE id = $1
	`
	deleteTemplateQuery = `DELETE FROM adv_interpretation_templates WHERE id = $1`
)

// templateRow mirrors the table layout; jsonb columns come back as bytes.
type templateRow struct {
	ID                uuid.UUID `db:"id"`
	Title             string    `db:"title"`
	Description       string    `db:"description"`
	ModuleRelation    string    `db:"module_relation"`
	CustomKey         string    `db:"custom_key"`
	PromptContent     string    `db:"prompt_content"`
	SystemPrompt      string    `db:"system_prompt"`
	ReleaseDelayDays  int       `db:"release_delay_days"`
	ReleaseDelayHours int       `db:"release_delay_hours"`
	TriggerEvent      string    `db:"trigger_event"`
	TargetProfiles    []byte    `db:"target_profiles"`
	LLMConfig         []byte    `db:"llm_config"`
	IsActive          bool      `db:"is_active"`
	Priority          int       `db:"priority"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (row *templateRow) toModel() (*model.Template, error) {
	t := &model.Template{
		ID:                row.ID,
		Title:             row.Title,
		Description:       row.Description,
		ModuleRelation:    row.ModuleRelation,
		CustomKey:         row.CustomKey,
		PromptContent:     row.PromptContent,
		SystemPrompt:      row.SystemPrompt,
		ReleaseDelayDays:  row.ReleaseDelayDays,
		ReleaseDelayHours: row.ReleaseDelayHours,
		TriggerEvent:      model.TriggerEvent(row.TriggerEvent),
		IsActive:          row.IsActive,
		Priority:          row.Priority,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	if len(row.TargetProfiles) > 0 {
		if err := json.Unmarshal(row.TargetProfiles, &t.TargetProfiles); err != nil {
			return nil, fmt.Errorf("error decoding target_profiles: %w", err)
		}
	}
	if len(row.LLMConfig) > 0 {
		if err := json.Unmarshal(row.LLMConfig, &t.LLMConfig); err != nil {
			return nil, fmt.Errorf("error decoding llm_config: %w", err)
		}
	}
	return t, nil
}

type PgTemplateRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgTemplateRepository creates the postgres template repository.
func NewPgTemplateRepository(pool *pgxpool.Pool, logger *zap.Logger) TemplateRepository {
	return &PgTemplateRepository{
		pool:   pool,
		logger: logger.Named("PgTemplateRepo"),
	}
}

func (r *PgTemplateRepository) GetByEvent(ctx context.Context, event model.TriggerEvent, plan string) ([]model.Template, error) {
	var rows []templateRow
	if err := pgxscan.Select(ctx, r.pool, &rows, getTemplatesByEventQuery, string(event), plan); err != nil {
		r.logger.Error("Failed to get templates by event",
			zap.String("event", string(event)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("error getting templates by event: %w", err)
	}
	return rowsToTemplates(rows)
}

func (r *PgTemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	return r.getOne(ctx, getTemplateByIDQuery, id.String())
}

func (r *PgTemplateRepository) GetByKey(ctx context.Context, customKey string) (*model.Template, error) {
	return r.getOne(ctx, getTemplateByKeyQuery, customKey)
}

func (r *PgTemplateRepository) getOne(ctx context.Context, query string, arg any) (*model.Template, error) {
	var row templateRow
	if err := pgxscan.Get(ctx, r.pool, &row, query, arg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrTemplateNotFound
		}
		r.logger.Error("Failed to get template", zap.Error(err))
		return nil, fmt.Errorf("error getting template: %w", err)
	}
	return row.toModel()
}

func (r *PgTemplateRepository) List(ctx context.Context, includeInactive bool) ([]model.Template, error) {
	var rows []templateRow
	if err := pgxscan.Select(ctx, r.pool, &rows, listTemplatesQuery, includeInactive); err != nil {
		r.logger.Error("Failed to list templates", zap.Error(err))
		return nil, fmt.Errorf("error listing templates: %w", err)
	}
	return rowsToTemplates(rows)
}

func (r *PgTemplateRepository) Create(ctx context.Context, t *model.Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	targetProfiles, llmConfig, err := encodeTemplateJSON(t)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, insertTemplateQuery,
		t.ID, t.Title, t.Description, t.ModuleRelation, t.CustomKey,
		t.PromptContent, t.SystemPrompt, t.ReleaseDelayDays, t.ReleaseDelayHours,
		string(t.TriggerEvent), targetProfiles, llmConfig, t.IsActive, t.Priority,
	)
	if err != nil {
		r.logger.Error("Failed to create template",
			zap.String("custom_key", t.CustomKey),
			zap.Error(err),
		)
		return fmt.Errorf("error creating template: %w", err)
	}
	return nil
}

func (r *PgTemplateRepository) Update(ctx context.Context, t *model.Template) error {
	targetProfiles, llmConfig, err := encodeTemplateJSON(t)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, updateTemplateQuery,
		t.ID, t.Title, t.Description, t.ModuleRelation, t.CustomKey,
		t.PromptContent, t.SystemPrompt, t.ReleaseDelayDays, t.ReleaseDelayHours,
		string(t.TriggerEvent), targetProfiles, llmConfig, t.IsActive, t.Priority,
	)
	if err != nil {
		r.logger.Error("Failed to update template", zap.String("id", t.ID.String()), zap.Error(err))
		return fmt.Errorf("error updating template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTemplateNotFound
	}
	return nil
}

func (r *PgTemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, deleteTemplateQuery, id)
	if err != nil {
		r.logger.Error("Failed to delete template", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("error deleting template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTemplateNotFound
	}
	return nil
}

func rowsToTemplates(rows []templateRow) ([]model.Template, error) {
	templates := make([]model.Template, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, nil
}

func encodeTemplateJSON(t *model.Template) ([]byte, []byte, error) {
	profiles := t.TargetProfiles
	if profiles == nil {
		profiles = []string{"all"}
	}
	targetProfiles, err := json.Marshal(profiles)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding target_profiles: %w", err)
	}
	llmConfig, err := json.Marshal(t.LLMConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding llm_config: %w", err)
	}
	return targetProfiles, llmConfig, nil
}
