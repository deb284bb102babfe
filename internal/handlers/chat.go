// Package handlers exposes the turn pipeline and the conversation
// management operations to the transport layer. Ownership checks live
// here: a conversation another user owns is indistinguishable from one
// that does not exist.
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/vbastos/chat-infinite/internal/conversation"
	"github.com/vbastos/chat-infinite/internal/errs"
	"github.com/vbastos/chat-infinite/internal/models"
	"github.com/vbastos/chat-infinite/internal/orchestrator"
)

type ChatHandler struct {
	store        conversation.Store
	orch         *orchestrator.Orchestrator
	historyLimit int
}

func New(store conversation.Store, orch *orchestrator.Orchestrator, historyLimit int) *ChatHandler {
	return &ChatHandler{store: store, orch: orch, historyLimit: historyLimit}
}

// Chat validates the request and starts one streaming turn.
func (h *ChatHandler) Chat(ctx context.Context, req models.ChatRequest) (<-chan models.Event, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", errs.ErrValidation)
	}
	return h.orch.Run(ctx, req), nil
}

// ListConversations resolves (or creates) the session and lists its
// conversations, most recently updated first.
func (h *ChatHandler) ListConversations(ctx context.Context, userID string) (string, []conversation.Conversation, error) {
	userID, err := h.store.ResolveOrCreateSession(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	conversations, err := h.store.ListConversations(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	return userID, conversations, nil
}

// NewConversation creates an empty conversation for the user.
func (h *ChatHandler) NewConversation(ctx context.Context, userID, title string) (string, string, error) {
	userID, err := h.store.ResolveOrCreateSession(ctx, userID)
	if err != nil {
		return "", "", err
	}
	conversationID, err := h.store.CreateConversation(ctx, userID, title)
	if err != nil {
		return "", "", err
	}
	return userID, conversationID, nil
}

// History returns the conversation record and its messages, oldest first.
func (h *ChatHandler) History(ctx context.Context, conversationID, userID string, limit int) (*conversation.Conversation, []conversation.Message, error) {
	if userID == "" {
		return nil, nil, fmt.Errorf("%w: user id is required", errs.ErrValidation)
	}
	conv, err := h.ownedConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, nil, err
	}

	if limit <= 0 {
		limit = h.historyLimit
	}
	messages, err := h.store.GetHistory(ctx, conversationID, limit)
	if err != nil {
		return nil, nil, err
	}
	return conv, messages, nil
}

// Delete removes the conversation and everything attached to it.
func (h *ChatHandler) Delete(ctx context.Context, conversationID, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", errs.ErrValidation)
	}
	if _, err := h.ownedConversation(ctx, conversationID, userID); err != nil {
		return err
	}
	if !h.store.DeleteConversation(ctx, conversationID, userID) {
		return fmt.Errorf("delete conversation %s: %w", conversationID, errs.ErrNotFound)
	}
	return nil
}

// UpdateTitle renames a conversation the user owns.
func (h *ChatHandler) UpdateTitle(ctx context.Context, conversationID, userID, title string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", errs.ErrValidation)
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", errs.ErrValidation)
	}
	if _, err := h.ownedConversation(ctx, conversationID, userID); err != nil {
		return err
	}

	ok, err := h.store.UpdateTitle(ctx, conversationID, title)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("update title of %s: %w", conversationID, errs.ErrNotFound)
	}
	return nil
}

func (h *ChatHandler) ownedConversation(ctx context.Context, conversationID, userID string) (*conversation.Conversation, error) {
	conv, err := h.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.UserID != userID {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, errs.ErrNotFound)
	}
	return conv, nil
}
