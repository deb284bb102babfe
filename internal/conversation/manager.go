// Package conversation persists users, conversations and messages in a
// TTL-bounded key-value store. Keys are namespaced per entity kind and all
// records for one conversation share the same retention window, so the
// message index and the bodies it points at expire together; reads skip
// index entries whose body is already gone.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	userSessionPrefix       = "user_session:"
	conversationPrefix      = "conversation:"
	messagePrefix           = "message:"
	userConversationsPrefix = "user_conversations:"

	titlePreviewLen   = 50
	messagePreviewLen = 100
)

// Manager implements Store over a KV backend.
type Manager struct {
	kv        KV
	retention time.Duration
}

func NewManager(kv KV, retention time.Duration) *Manager {
	return &Manager{kv: kv, retention: retention}
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ResolveOrCreateSession returns a valid user ID, minting one when none is
// supplied. An existing session only has its last_active refreshed; the
// TTL slides on every touch.
func (m *Manager) ResolveOrCreateSession(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		userID = newID("user_")
	}
	key := userSessionPrefix + userID

	raw, ok, err := m.kv.Get(ctx, key)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	var session UserSession
	if !ok {
		session = UserSession{
			UserID:     userID,
			CreatedAt:  now,
			LastActive: now,
		}
	} else {
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			return "", fmt.Errorf("decode session %s: %w", userID, err)
		}
		session.LastActive = now
	}

	if err := m.writeJSON(ctx, key, session); err != nil {
		return "", err
	}
	return userID, nil
}

// CreateConversation writes the conversation record, registers it in the
// user's set and bumps the session counter when the session still exists.
func (m *Manager) CreateConversation(ctx context.Context, userID, title string) (string, error) {
	if title == "" {
		title = DefaultTitle
	}

	now := time.Now().UTC()
	conv := Conversation{
		ConversationID: newID("conv_"),
		UserID:         userID,
		Title:          title,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.writeJSON(ctx, conversationPrefix+conv.ConversationID, conv); err != nil {
		return "", err
	}

	setKey := userConversationsPrefix + userID
	if err := m.kv.SAdd(ctx, setKey, conv.ConversationID); err != nil {
		return "", err
	}
	if err := m.kv.Expire(ctx, setKey, m.retention); err != nil {
		return "", err
	}

	sessionKey := userSessionPrefix + userID
	raw, ok, err := m.kv.Get(ctx, sessionKey)
	if err != nil {
		return "", err
	}
	if ok {
		var session UserSession
		if err := json.Unmarshal([]byte(raw), &session); err == nil {
			session.TotalConversations++
			if err := m.writeJSON(ctx, sessionKey, session); err != nil {
				return "", err
			}
		}
	}

	return conv.ConversationID, nil
}

// AppendMessage writes the message body, pushes its ID to the head of the
// conversation index and refreshes the summary fields. The summary update
// is best-effort: it silently no-ops when the conversation record has
// already expired, and concurrent appends are last-writer-wins on it.
func (m *Manager) AppendMessage(ctx context.Context, conversationID, content, sender, agent string, metadata map[string]any) (string, error) {
	msg := Message{
		ID:        newID("msg_"),
		Content:   content,
		Sender:    sender,
		Agent:     agent,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}

	if err := m.writeJSON(ctx, messagePrefix+msg.ID, msg); err != nil {
		return "", err
	}

	indexKey := conversationPrefix + conversationID + ":messages"
	if err := m.kv.LPush(ctx, indexKey, msg.ID); err != nil {
		return "", err
	}
	if err := m.kv.Expire(ctx, indexKey, m.retention); err != nil {
		return "", err
	}

	convKey := conversationPrefix + conversationID
	raw, ok, err := m.kv.Get(ctx, convKey)
	if err != nil {
		return "", err
	}
	if ok {
		var conv Conversation
		if err := json.Unmarshal([]byte(raw), &conv); err == nil {
			conv.UpdatedAt = msg.Timestamp
			conv.MessageCount++
			conv.LastMessage = preview(content, messagePreviewLen)
			if conv.MessageCount == 1 && sender == SenderUser && conv.Title == DefaultTitle {
				conv.Title = preview(content, titlePreviewLen)
			}
			if err := m.writeJSON(ctx, convKey, conv); err != nil {
				return "", err
			}
		}
	}

	return msg.ID, nil
}

// GetHistory loads at most limit of the most recent messages, oldest
// first. Bodies that expired ahead of the index are skipped.
func (m *Manager) GetHistory(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	indexKey := conversationPrefix + conversationID + ":messages"
	ids, err := m.kv.LRange(ctx, indexKey, 0, int64(limit)-1)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		raw, ok, err := m.kv.Get(ctx, messagePrefix+ids[i])
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// ListConversations returns the user's conversations, most recently
// updated first. Records that expired out from under the set are skipped.
func (m *Manager) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	ids, err := m.kv.SMembers(ctx, userConversationsPrefix+userID)
	if err != nil {
		return nil, err
	}

	conversations := make([]Conversation, 0, len(ids))
	for _, id := range ids {
		raw, ok, err := m.kv.Get(ctx, conversationPrefix+id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var conv Conversation
		if err := json.Unmarshal([]byte(raw), &conv); err != nil {
			continue
		}
		conversations = append(conversations, conv)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

// GetConversation returns nil without error when the record is absent.
func (m *Manager) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	raw, ok, err := m.kv.Get(ctx, conversationPrefix+conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var conv Conversation
	if err := json.Unmarshal([]byte(raw), &conv); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", conversationID, err)
	}
	return &conv, nil
}

// DeleteConversation removes the message bodies, the index, the record and
// the set membership. Cleanup is best-effort: any failure reports false
// with no partial undo.
func (m *Manager) DeleteConversation(ctx context.Context, conversationID, userID string) bool {
	indexKey := conversationPrefix + conversationID + ":messages"
	ids, err := m.kv.LRange(ctx, indexKey, 0, -1)
	if err != nil {
		return false
	}

	for _, id := range ids {
		if err := m.kv.Del(ctx, messagePrefix+id); err != nil {
			return false
		}
	}
	if err := m.kv.Del(ctx, indexKey); err != nil {
		return false
	}
	if err := m.kv.Del(ctx, conversationPrefix+conversationID); err != nil {
		return false
	}
	if err := m.kv.SRem(ctx, userConversationsPrefix+userID, conversationID); err != nil {
		return false
	}
	return true
}

// UpdateTitle reports false when the conversation no longer exists.
func (m *Manager) UpdateTitle(ctx context.Context, conversationID, title string) (bool, error) {
	convKey := conversationPrefix + conversationID
	raw, ok, err := m.kv.Get(ctx, convKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	var conv Conversation
	if err := json.Unmarshal([]byte(raw), &conv); err != nil {
		return false, fmt.Errorf("decode conversation %s: %w", conversationID, err)
	}
	conv.Title = title
	conv.UpdatedAt = time.Now().UTC()
	if err := m.writeJSON(ctx, convKey, conv); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return m.kv.SetEx(ctx, key, string(data), m.retention)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
