package repository

import (
	"context"

	"seha-backend/internal/domain/help"

	"github.com/google/uuid"
)

// ConversationStore is the persistence boundary for help conversations.
// Implementations must apply each Update as a single atomic document write.
type ConversationStore interface {
	Create(ctx context.Context, c *help.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (help.Conversation, error)
	GetByAnonID(ctx context.Context, anonID string) (help.Conversation, error)
	GetByUserID(ctx context.Context, userID string) (help.Conversation, error)
	Update(ctx context.Context, c help.Conversation) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, offset, limit int) ([]help.Conversation, int64, error)
}
