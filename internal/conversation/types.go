package conversation

import (
	"context"
	"time"
)

// Message senders.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// DefaultTitle is the placeholder given to conversations created without a
// title. The first user message overwrites it.
const DefaultTitle = "Nova Conversa"

// UserSession tracks one anonymous user across conversations. Sessions
// expire after the retention window; every touch renews it.
type UserSession struct {
	UserID             string    `json:"user_id"`
	CreatedAt          time.Time `json:"created_at"`
	LastActive         time.Time `json:"last_active"`
	TotalConversations int       `json:"total_conversations"`
}

// Conversation is the denormalized summary record for one conversation.
// MessageCount, UpdatedAt and LastMessage are maintained best-effort with
// each append; concurrent appends are last-writer-wins on these fields.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	MessageCount   int       `json:"message_count"`
	LastMessage    string    `json:"last_message,omitempty"`
}

// Message is immutable once written.
type Message struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Sender    string         `json:"sender"`
	Agent     string         `json:"agent,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Store is the conversation persistence contract consumed by the
// orchestrator and the management handlers.
type Store interface {
	ResolveOrCreateSession(ctx context.Context, userID string) (string, error)
	CreateConversation(ctx context.Context, userID, title string) (string, error)
	AppendMessage(ctx context.Context, conversationID, content, sender, agent string, metadata map[string]any) (string, error)
	GetHistory(ctx context.Context, conversationID string, limit int) ([]Message, error)
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)
	DeleteConversation(ctx context.Context, conversationID, userID string) bool
	UpdateTitle(ctx context.Context, conversationID, title string) (bool, error)
}

// KV is the narrow key-value surface the store needs. The production
// implementation is Redis; tests substitute an in-memory fake.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SRem(ctx context.Context, key string, members ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
