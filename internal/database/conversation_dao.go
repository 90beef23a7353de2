package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

// MessageRole identifies who produced a conversation message
type MessageRole string

const (
	// RoleUser marks a message written by the user
	RoleUser MessageRole = "user"
	// RoleAssistant marks a message produced by the copilot
	RoleAssistant MessageRole = "assistant"
	// RoleSystem marks an injected system message
	RoleSystem MessageRole = "system"
)

// Conversation is one copilot chat thread
type Conversation struct {
	ID        types.ID  `json:"id"`
	UserID    types.ID  `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationMessage is one message within a conversation
type ConversationMessage struct {
	ID             types.ID    `json:"id"`
	ConversationID types.ID    `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ConversationDAO persists copilot chat threads and their messages
type ConversationDAO struct {
	db *DB
}

// NewConversationDAO creates a new conversation DAO
func NewConversationDAO(db *DB) *ConversationDAO {
	return &ConversationDAO{db: db}
}

// CreateConversation inserts a new conversation
func (d *ConversationDAO) CreateConversation(ctx context.Context, c *Conversation) error {
	if c.ID.IsZero() {
		c.ID = types.NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	_, err := d.db.ExecContext(ctx, `
INSERT INTO conversations (id, user_id, title, created_at) VALUES (?, ?, ?, ?)`,
		c.ID.String(), idOrEmpty(c.UserID), c.Title, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// GetConversation fetches one conversation by ID
func (d *ConversationDAO) GetConversation(ctx context.Context, id types.ID) (*Conversation, error) {
	var (
		c              Conversation
		idStr, userStr string
	)
	err := d.db.QueryRowContext(ctx, `
SELECT id, user_id, title, created_at FROM conversations WHERE id = ?`,
		id.String()).Scan(&idStr, &userStr, &c.Title, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}

	if c.ID, err = types.ParseID(idStr); err != nil {
		return nil, fmt.Errorf("invalid conversation id: %w", err)
	}
	if c.UserID, err = parseStoredID(userStr); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	return &c, nil
}

// ListConversations returns a user's conversations, newest first
func (d *ConversationDAO) ListConversations(ctx context.Context, userID types.ID) ([]*Conversation, error) {
	rows, err := d.db.QueryContext(ctx, `
SELECT id, user_id, title, created_at FROM conversations
WHERE user_id = ? ORDER BY created_at DESC`, idOrEmpty(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var (
			c              Conversation
			idStr, userStr string
		)
		if err := rows.Scan(&idStr, &userStr, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if c.ID, err = types.ParseID(idStr); err != nil {
			return nil, fmt.Errorf("invalid conversation id: %w", err)
		}
		if c.UserID, err = parseStoredID(userStr); err != nil {
			return nil, fmt.Errorf("invalid user id: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// UpdateConversationTitle renames a conversation
func (d *ConversationDAO) UpdateConversationTitle(ctx context.Context, id types.ID, title string) error {
	result, err := d.db.ExecContext(ctx,
		"UPDATE conversations SET title = ? WHERE id = ?", title, id.String())
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return requireRowAffected(result, "conversation")
}

// DeleteConversation removes a conversation; its messages cascade
func (d *ConversationDAO) DeleteConversation(ctx context.Context, id types.ID) error {
	result, err := d.db.ExecContext(ctx,
		"DELETE FROM conversations WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return requireRowAffected(result, "conversation")
}

// AppendMessage inserts a message at the end of a conversation
func (d *ConversationDAO) AppendMessage(ctx context.Context, m *ConversationMessage) error {
	if m.ID.IsZero() {
		m.ID = types.NewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	_, err := d.db.ExecContext(ctx, `
INSERT INTO conversation_messages (id, conversation_id, role, content, created_at)
VALUES (?, ?, ?, ?, ?)`,
		m.ID.String(), m.ConversationID.String(), string(m.Role), m.Content, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages, oldest first
func (d *ConversationDAO) ListMessages(ctx context.Context, conversationID types.ID) ([]*ConversationMessage, error) {
	rows, err := d.db.QueryContext(ctx, `
SELECT id, conversation_id, role, content, created_at FROM conversation_messages
WHERE conversation_id = ? ORDER BY created_at, id`, conversationID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []*ConversationMessage
	for rows.Next() {
		var (
			m            ConversationMessage
			idStr, cvStr string
			role         string
		)
		if err := rows.Scan(&idStr, &cvStr, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if m.ID, err = types.ParseID(idStr); err != nil {
			return nil, fmt.Errorf("invalid message id: %w", err)
		}
		if m.ConversationID, err = types.ParseID(cvStr); err != nil {
			return nil, fmt.Errorf("invalid conversation id: %w", err)
		}
		m.Role = MessageRole(role)
		out = append(out, &m)
	}
	return out, rows.Err()
}
