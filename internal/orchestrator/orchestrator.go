// Package orchestrator drives one chat turn end to end: resolve the
// session, resolve or create the conversation, record the user message,
// classify, stream the responder's events to the caller while assembling
// the answer, persist the assistant message and close with a complete
// event. Any fault collapses into a single sanitized error event; the raw
// cause goes to the audit sink only.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vbastos/chat-infinite/internal/audit"
	"github.com/vbastos/chat-infinite/internal/conversation"
	"github.com/vbastos/chat-infinite/internal/errs"
	"github.com/vbastos/chat-infinite/internal/models"
	"github.com/vbastos/chat-infinite/internal/router"
)

// Sanitized, caller-facing error messages. Internal error text never
// leaves the service.
const (
	msgStoreUnavailable = "Sistema de conversação temporariamente indisponível"
	msgProcessingFailed = "Erro ao processar mensagem"
)

type Orchestrator struct {
	store  conversation.Store
	router *router.Router
	sink   audit.Sink
	logger *slog.Logger
}

func New(store conversation.Store, rtr *router.Router, sink audit.Sink, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{store: store, router: rtr, sink: sink, logger: logger}
}

// Run executes one turn. The returned channel closes when the turn is
// over; cancelling ctx unwinds the stream without persisting anything
// further and without emitting more events.
func (o *Orchestrator) Run(ctx context.Context, req models.ChatRequest) <-chan models.Event {
	out := make(chan models.Event)

	go func() {
		defer close(out)
		o.run(ctx, req, out)
	}()

	return out
}

func (o *Orchestrator) run(ctx context.Context, req models.ChatRequest, out chan<- models.Event) {
	start := time.Now()
	agentName := "unknown"

	userID, err := o.store.ResolveOrCreateSession(ctx, req.UserID)
	if err != nil {
		o.failTurn(ctx, out, agentName, req.ConversationID, req.UserID, start, err)
		return
	}

	conversationID, err := o.resolveConversation(ctx, userID, req.ConversationID)
	if err != nil {
		o.failTurn(ctx, out, agentName, req.ConversationID, userID, start, err)
		return
	}

	if _, err := o.store.AppendMessage(ctx, conversationID, req.Message, conversation.SenderUser, "", nil); err != nil {
		o.failTurn(ctx, out, agentName, conversationID, userID, start, err)
		return
	}

	agentType := o.router.Classify(ctx, req.Message, conversationID, userID)
	agent := o.router.Agent(agentType)
	agentName = agent.Name()

	selection := models.Event{Type: models.EventAgentSelection, Data: models.AgentSelectionData{
		Agent:          agentName,
		Decision:       fmt.Sprintf("Routing to %s agent", agentType),
		ConversationID: conversationID,
		UserID:         userID,
	}}
	if !o.emit(ctx, out, selection) {
		return
	}

	var assembled strings.Builder
	for res := range agent.Process(ctx, req.Message, conversationID, userID) {
		if res.Err != nil {
			// Chunks already reached the caller; keep the transcript
			// consistent with what was seen before reporting the fault.
			o.persistAssistant(ctx, conversationID, agentName, agentType, assembled.String())
			o.failTurn(ctx, out, agentName, conversationID, userID, start, res.Err)
			return
		}
		if chunk, ok := res.Event.Data.(models.ChunkData); ok {
			assembled.WriteString(chunk.Content)
		}
		if !o.emit(ctx, out, res.Event) {
			return
		}
	}
	if ctx.Err() != nil {
		return
	}

	if err := o.persistAssistant(ctx, conversationID, agentName, agentType, assembled.String()); err != nil {
		o.failTurn(ctx, out, agentName, conversationID, userID, start, err)
		return
	}

	messageCount := 0
	if conv, err := o.store.GetConversation(ctx, conversationID); err == nil && conv != nil {
		messageCount = conv.MessageCount
	}

	complete := models.Event{Type: models.EventComplete, Data: models.CompleteData{
		ConversationID: conversationID,
		UserID:         userID,
		MessageCount:   messageCount,
	}}
	if !o.emit(ctx, out, complete) {
		return
	}

	elapsed := time.Since(start)
	o.sink.Record(ctx, audit.Entry{
		Agent:            agentName,
		ConversationID:   conversationID,
		UserID:           userID,
		ExecutionTime:    elapsed.Seconds(),
		Decision:         fmt.Sprintf("Chat completed using %s in %.2fs", agentName, elapsed.Seconds()),
		ProcessedContent: fmt.Sprintf("Message processed successfully: %s...", audit.Truncate(req.Message, 100)),
	})
}

// resolveConversation reuses the supplied conversation only when it still
// exists and belongs to the resolved user; anything else gets a fresh one.
func (o *Orchestrator) resolveConversation(ctx context.Context, userID, conversationID string) (string, error) {
	if conversationID != "" {
		conv, err := o.store.GetConversation(ctx, conversationID)
		if err != nil {
			return "", err
		}
		if conv != nil && conv.UserID == userID {
			return conversationID, nil
		}
	}
	return o.store.CreateConversation(ctx, userID, "")
}

// persistAssistant appends the assembled answer when it is non-empty
// after trimming. An empty body means the responder signalled nothing
// worth recording.
func (o *Orchestrator) persistAssistant(ctx context.Context, conversationID, agentName string, agentType router.AgentType, body string) error {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	metadata := map[string]any{
		"agent_type": string(agentType),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	_, err := o.store.AppendMessage(ctx, conversationID, body, conversation.SenderAssistant, agentName, metadata)
	return err
}

// failTurn converts any fault into one sanitized error event and a full-
// detail audit record. Nothing is emitted when the caller is already gone.
func (o *Orchestrator) failTurn(ctx context.Context, out chan<- models.Event, agentName, conversationID, userID string, start time.Time, err error) {
	if ctx.Err() != nil {
		return
	}

	message := msgProcessingFailed
	if errors.Is(err, errs.ErrStoreUnavailable) {
		message = msgStoreUnavailable
	}

	o.logger.Error("turn failed",
		"agent", agentName,
		"conversation_id", conversationID,
		"error", err,
	)
	o.sink.Record(ctx, audit.Entry{
		Agent:            agentName,
		ConversationID:   orUnknown(conversationID),
		UserID:           orUnknown(userID),
		ExecutionTime:    time.Since(start).Seconds(),
		Decision:         fmt.Sprintf("Failed with error: %s...", audit.Truncate(err.Error(), 200)),
		ProcessedContent: "Error processing message",
		Level:            slog.LevelError,
	})

	o.emit(ctx, out, models.Event{Type: models.EventError, Data: models.ErrorData{Message: message}})
}

func (o *Orchestrator) emit(ctx context.Context, out chan<- models.Event, ev models.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
