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
	getProfileQuery   = `SELECT * FROM profiles WHERE id = $1`
	getAstralMapQuery = `
		SELECT * FROM mapas_astrais
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
)

type PgUserRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgUserRepository creates the postgres user data repository.
func NewPgUserRepository(pool *pgxpool.Pool, logger *zap.Logger) UserRepository {
	return &PgUserRepository{
		pool:   pool,
		logger: logger.Named("PgUserRepo"),
	}
}

// GetProfile returns the whole profiles row as a mapping, since prompt
// variables address columns by name.
func (r *PgUserRepository) GetProfile(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	row, err := r.queryRowAsMap(ctx, getProfileQuery, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		r.logger.Error("Failed to get profile", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("error getting profile: %w", err)
	}
	return model.Profile(row), nil
}

// GetAstralMap returns the latest astrology map row for the user.
func (r *PgUserRepository) GetAstralMap(ctx context.Context, userID uuid.UUID) (model.AstralMap, error) {
	row, err := r.queryRowAsMap(ctx, getAstralMapQuery, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get astral map", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("error getting astral map: %w", err)
	}
	return model.AstralMap(row), nil
}

func (r *PgUserRepository) queryRowAsMap(ctx context.Context, query string, userID uuid.UUID) (map[string]any, error) {
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToMap)
}
