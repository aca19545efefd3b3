package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"vibra-server/internal/model"
)

const (
	upsertUserInfoQuery = `
		INSERT INTO user_infos_data (id, user_id, action, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (user_id, action) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = now()
	`
	getUserInfoQuery = `
		SELECT content FROM user_infos_data
		WHERE user_id = $1 AND action = $2
	`
)

type PgInterpretationRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgInterpretationRepository creates the postgres interpretation store.
func NewPgInterpretationRepository(pool *pgxpool.Pool, logger *zap.Logger) InterpretationRepository {
	return &PgInterpretationRepository{
		pool:   pool,
		logger: logger.Named("PgInterpretationRepo"),
	}
}

// Save upserts the interpretation keyed by (user_id, action). Regenerating
// the same template overwrites the previous content.
func (r *PgInterpretationRepository) Save(ctx context.Context, userID uuid.UUID, action, content string) error {
	_, err := r.pool.Exec(ctx, upsertUserInfoQuery, uuid.New(), userID, action, content)
	if err != nil {
		r.logger.Error("Failed to save interpretation",
			zap.String("user_id", userID.String()),
			zap.String("action", action),
			zap.Error(err),
		)
		return fmt.Errorf("error saving interpretation: %w", err)
	}
	r.logger.Debug("Interpretation saved",
		zap.String("user_id", userID.String()),
		zap.String("action", action),
		zap.Int("content_length", len(content)),
	)
	return nil
}

func (r *PgInterpretationRepository) Get(ctx context.Context, userID uuid.UUID, action string) (string, error) {
	var content string
	err := r.pool.QueryRow(ctx, getUserInfoQuery, userID, action).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("error getting interpretation: %w", err)
	}
	return content, nil
}
