package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"vibra-server/internal/model"
)

const insertNotificationQuery = `
	INSERT INTO notifications (id, user_id, title, message, link, created_at)
	VALUES ($1, $2, $3, $4, $5, now())
`

type PgNotificationRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgNotificationRepository creates the postgres notification repository.
func NewPgNotificationRepository(pool *pgxpool.Pool, logger *zap.Logger) NotificationRepository {
	return &PgNotificationRepository{
		pool:   pool,
		logger: logger.Named("PgNotificationRepo"),
	}
}

func (r *PgNotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, insertNotificationQuery, n.ID, n.UserID, n.Title, n.Message, n.Link)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("user_id", n.UserID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("error creating notification: %w", err)
	}
	return nil
}
