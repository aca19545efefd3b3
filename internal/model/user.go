package model

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a raw profiles row. Prompt variables address profile fields
// by column name, so the row is kept as a generic mapping.
type Profile map[string]any

// Plan returns the subscription plan, defaulting to the free tier.
func (p Profile) Plan() string {
	if v, ok := p["plano"].(string); ok && v != "" {
		return v
	}
	return "semente"
}

// AstralMap is a raw mapas_astrais row, also addressed by field name.
type AstralMap map[string]any

// Notification is an in-app notification delivered to a user.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
