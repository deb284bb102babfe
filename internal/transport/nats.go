// Package transport is the thin NATS boundary. Chat turns stream their
// events one JSON object per message to the request's reply inbox; the
// management subjects are plain request/reply. No business logic lives
// here.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vbastos/chat-infinite/internal/config"
	"github.com/vbastos/chat-infinite/internal/conversation"
	"github.com/vbastos/chat-infinite/internal/errs"
	"github.com/vbastos/chat-infinite/internal/handlers"
	"github.com/vbastos/chat-infinite/internal/models"
)

const (
	subjectConversationsList   = "chat.conversations.list"
	subjectConversationsNew    = "chat.conversations.new"
	subjectConversationHistory = "chat.conversations.history"
	subjectConversationDelete  = "chat.conversations.delete"
	subjectConversationTitle   = "chat.conversations.title"
)

type conversationRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Title          string `json:"title,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

type errorReply struct {
	Error string `json:"error"`
}

type NATSTransport struct {
	conn    *nats.Conn
	config  *config.Config
	handler *handlers.ChatHandler
	logger  *slog.Logger
}

func NewNATSTransport(cfg *config.Config, handler *handlers.ChatHandler, logger *slog.Logger) (*NATSTransport, error) {
	conn, err := nats.Connect(cfg.NatsURL,
		nats.Name(cfg.ServiceName),
		nats.Timeout(cfg.NatsTimeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to NATS", "url", cfg.NatsURL)

	return &NATSTransport{
		conn:    conn,
		config:  cfg,
		handler: handler,
		logger:  logger,
	}, nil
}

func (nt *NATSTransport) Start() error {
	subscriptions := map[string]nats.MsgHandler{
		nt.config.NatsChatSubject:  nt.handleChat,
		subjectConversationsList:   nt.handleList,
		subjectConversationsNew:    nt.handleNew,
		subjectConversationHistory: nt.handleHistory,
		subjectConversationDelete:  nt.handleDelete,
		subjectConversationTitle:   nt.handleTitle,
	}

	for subject, handler := range subscriptions {
		if _, err := nt.conn.Subscribe(subject, handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		nt.logger.Info("subscribed", "subject", subject)
	}
	return nil
}

// handleChat streams each turn event to the reply inbox. Every turn runs
// in its own goroutine so concurrent turns never block each other.
func (nt *NATSTransport) handleChat(msg *nats.Msg) {
	if msg.Reply == "" {
		nt.logger.Warn("chat request without reply subject dropped")
		return
	}

	var request models.ChatRequest
	if err := json.Unmarshal(msg.Data, &request); err != nil {
		nt.publishEvent(msg.Reply, models.Event{
			Type: models.EventError,
			Data: models.ErrorData{Message: "Formato de mensagem inválido"},
		})
		return
	}

	go func() {
		events, err := nt.handler.Chat(context.Background(), request)
		if err != nil {
			nt.publishEvent(msg.Reply, models.Event{
				Type: models.EventError,
				Data: models.ErrorData{Message: "Mensagem inválida"},
			})
			return
		}
		for ev := range events {
			nt.publishEvent(msg.Reply, ev)
		}
	}()
}

func (nt *NATSTransport) publishEvent(reply string, ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		nt.logger.Error("failed to marshal event", "error", err)
		return
	}
	if err := nt.conn.Publish(reply, data); err != nil {
		nt.logger.Error("failed to publish event", "error", err)
	}
}

func (nt *NATSTransport) handleList(msg *nats.Msg) {
	var req conversationRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		nt.respondError(msg, fmt.Errorf("%w: %v", errs.ErrValidation, err))
		return
	}

	userID, conversations, err := nt.handler.ListConversations(context.Background(), req.UserID)
	if err != nil {
		nt.respondError(msg, err)
		return
	}
	nt.respond(msg, map[string]any{
		"user_id":       userID,
		"conversations": conversations,
	})
}

func (nt *NATSTransport) handleNew(msg *nats.Msg) {
	var req conversationRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		nt.respondError(msg, fmt.Errorf("%w: %v", errs.ErrValidation, err))
		return
	}

	userID, conversationID, err := nt.handler.NewConversation(context.Background(), req.UserID, req.Title)
	if err != nil {
		nt.respondError(msg, err)
		return
	}
	nt.respond(msg, map[string]any{
		"user_id":         userID,
		"conversation_id": conversationID,
		"message":         "New conversation created",
	})
}

func (nt *NATSTransport) handleHistory(msg *nats.Msg) {
	var req conversationRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		nt.respondError(msg, fmt.Errorf("%w: %v", errs.ErrValidation, err))
		return
	}

	conv, messages, err := nt.handler.History(context.Background(), req.ConversationID, req.UserID, req.Limit)
	if err != nil {
		nt.respondError(msg, err)
		return
	}
	if messages == nil {
		messages = []conversation.Message{}
	}
	nt.respond(msg, map[string]any{
		"conversation_id":   req.ConversationID,
		"messages":          messages,
		"conversation_info": conv,
	})
}

func (nt *NATSTransport) handleDelete(msg *nats.Msg) {
	var req conversationRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		nt.respondError(msg, fmt.Errorf("%w: %v", errs.ErrValidation, err))
		return
	}

	if err := nt.handler.Delete(context.Background(), req.ConversationID, req.UserID); err != nil {
		nt.respondError(msg, err)
		return
	}
	nt.respond(msg, map[string]any{"message": "Conversation deleted successfully"})
}

func (nt *NATSTransport) handleTitle(msg *nats.Msg) {
	var req conversationRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		nt.respondError(msg, fmt.Errorf("%w: %v", errs.ErrValidation, err))
		return
	}

	if err := nt.handler.UpdateTitle(context.Background(), req.ConversationID, req.UserID, req.Title); err != nil {
		nt.respondError(msg, err)
		return
	}
	nt.respond(msg, map[string]any{"message": "Title updated successfully"})
}

func (nt *NATSTransport) respond(msg *nats.Msg, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		nt.logger.Error("failed to marshal response", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		nt.logger.Error("failed to send response", "error", err)
	}
}

// respondError translates the taxonomy into boundary signals. NotFound
// and validation errors pass through with their nature intact; internal
// faults are sanitized.
func (nt *NATSTransport) respondError(msg *nats.Msg, err error) {
	var reply errorReply
	switch {
	case errors.Is(err, errs.ErrNotFound):
		reply.Error = "Conversation not found"
	case errors.Is(err, errs.ErrValidation):
		reply.Error = "Invalid request"
	case errors.Is(err, errs.ErrStoreUnavailable):
		reply.Error = "Sistema de conversação temporariamente indisponível"
	default:
		reply.Error = "Erro ao processar mensagem"
	}

	nt.logger.Error("request failed", "subject", msg.Subject, "error", err)

	data, marshalErr := json.Marshal(reply)
	if marshalErr != nil {
		return
	}
	if respondErr := msg.Respond(data); respondErr != nil {
		nt.logger.Error("failed to send error response", "error", respondErr)
	}
}

func (nt *NATSTransport) Close() error {
	if nt.conn != nil {
		nt.conn.Close()
		nt.logger.Info("NATS connection closed")
	}
	return nil
}
