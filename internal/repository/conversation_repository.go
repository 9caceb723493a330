package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"seha-backend/internal/domain/help"
	seha_errors "seha-backend/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConversationRepository stores each conversation as one JSONB
// document row, so every Update replaces the document in a single statement
// and is never observable as a partial write.
type PostgresConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) ConversationStore {
	return &PostgresConversationRepository{pool: pool}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *help.Conversation) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO help_conversations (id, user_id, anon_id, doc, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, nullable(c.UserID), nullable(c.AnonID), doc, c.UpdatedAt)
	return err
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (help.Conversation, error) {
	return r.getOne(ctx, `SELECT doc FROM help_conversations WHERE id = $1`, id)
}

func (r *PostgresConversationRepository) GetByAnonID(ctx context.Context, anonID string) (help.Conversation, error) {
	return r.getOne(ctx, `SELECT doc FROM help_conversations WHERE anon_id = $1`, anonID)
}

func (r *PostgresConversationRepository) GetByUserID(ctx context.Context, userID string) (help.Conversation, error) {
	return r.getOne(ctx, `SELECT doc FROM help_conversations WHERE user_id = $1 ORDER BY updated_at DESC LIMIT 1`, userID)
}

func (r *PostgresConversationRepository) getOne(ctx context.Context, query string, arg any) (help.Conversation, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, query, arg).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return help.Conversation{}, seha_errors.ErrNotFound
		}
		return help.Conversation{}, err
	}
	var c help.Conversation
	if err := json.Unmarshal(doc, &c); err != nil {
		return help.Conversation{}, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) Update(ctx context.Context, c help.Conversation) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE help_conversations SET user_id = $2, anon_id = $3, doc = $4, updated_at = $5 WHERE id = $1`,
		c.ID, nullable(c.UserID), nullable(c.AnonID), doc, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return seha_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM help_conversations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return seha_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) List(ctx context.Context, offset, limit int) ([]help.Conversation, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM help_conversations`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT doc FROM help_conversations ORDER BY updated_at DESC OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []help.Conversation
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, err
		}
		var c help.Conversation
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, 0, fmt.Errorf("unmarshal conversation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
