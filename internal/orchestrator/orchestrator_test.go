package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vbastos/chat-infinite/internal/agents"
	"github.com/vbastos/chat-infinite/internal/audit"
	"github.com/vbastos/chat-infinite/internal/conversation"
	"github.com/vbastos/chat-infinite/internal/errs"
	"github.com/vbastos/chat-infinite/internal/llm"
	"github.com/vbastos/chat-infinite/internal/models"
	"github.com/vbastos/chat-infinite/internal/prompts"
	"github.com/vbastos/chat-infinite/internal/rag"
	"github.com/vbastos/chat-infinite/internal/router"
)

type fakeStore struct {
	sessions map[string]bool
	convs    map[string]*conversation.Conversation
	msgs     map[string][]conversation.Message
	nextID   int
	failing  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]bool),
		convs:    make(map[string]*conversation.Conversation),
		msgs:     make(map[string][]conversation.Message),
	}
}

func (s *fakeStore) fail() error {
	if s.failing {
		return fmt.Errorf("down: %w", errs.ErrStoreUnavailable)
	}
	return nil
}

func (s *fakeStore) ResolveOrCreateSession(_ context.Context, userID string) (string, error) {
	if err := s.fail(); err != nil {
		return "", err
	}
	if userID == "" {
		s.nextID++
		userID = fmt.Sprintf("user_%d", s.nextID)
	}
	s.sessions[userID] = true
	return userID, nil
}

func (s *fakeStore) CreateConversation(_ context.Context, userID, title string) (string, error) {
	if err := s.fail(); err != nil {
		return "", err
	}
	if title == "" {
		title = conversation.DefaultTitle
	}
	s.nextID++
	id := fmt.Sprintf("conv_%d", s.nextID)
	s.convs[id] = &conversation.Conversation{
		ConversationID: id,
		UserID:         userID,
		Title:          title,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	return id, nil
}

func (s *fakeStore) AppendMessage(_ context.Context, conversationID, content, sender, agent string, metadata map[string]any) (string, error) {
	if err := s.fail(); err != nil {
		return "", err
	}
	s.nextID++
	id := fmt.Sprintf("msg_%d", s.nextID)
	s.msgs[conversationID] = append(s.msgs[conversationID], conversation.Message{
		ID: id, Content: content, Sender: sender, Agent: agent, Metadata: metadata, Timestamp: time.Now(),
	})
	if conv, ok := s.convs[conversationID]; ok {
		conv.MessageCount++
	}
	return id, nil
}

func (s *fakeStore) GetHistory(_ context.Context, conversationID string, _ int) ([]conversation.Message, error) {
	return s.msgs[conversationID], s.fail()
}

func (s *fakeStore) ListConversations(context.Context, string) ([]conversation.Conversation, error) {
	return nil, s.fail()
}

func (s *fakeStore) GetConversation(_ context.Context, conversationID string) (*conversation.Conversation, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	return s.convs[conversationID], nil
}

func (s *fakeStore) DeleteConversation(context.Context, string, string) bool { return false }

func (s *fakeStore) UpdateTitle(context.Context, string, string) (bool, error) {
	return false, s.fail()
}

type fakeGenerator struct {
	chunks  []string
	failMid error
	calls   int
}

func (g *fakeGenerator) Stream(_ context.Context, _ llm.Request, emit func(string) error) error {
	g.calls++
	for _, chunk := range g.chunks {
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return g.failMid
}

type fakeIndex struct {
	results []rag.ScoredPassage
}

func (f *fakeIndex) Search(context.Context, string, int) ([]rag.ScoredPassage, error) {
	return f.results, nil
}

func newOrchestrator(store conversation.Store, gen llm.Generator, index rag.SimilarityIndex) *Orchestrator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	retriever := rag.NewRetriever(index, 0.35, 5, logger)
	knowledge := agents.NewKnowledge(retriever, gen, audit.NopSink{})
	math := agents.NewMath(gen, audit.NopSink{})
	rtr := router.New(knowledge, math, audit.NopSink{})
	return New(store, rtr, audit.NopSink{}, logger)
}

func drain(events <-chan models.Event) []models.Event {
	var out []models.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func eventTypes(events []models.Event) []string {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestMathTurnEventFlow(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{chunks: []string{"O resultado ", "é 8."}}
	orch := newOrchestrator(store, gen, &fakeIndex{})

	events := drain(orch.Run(context.Background(), models.ChatRequest{Message: "5 + 3"}))
	require.Equal(t, []string{
		models.EventAgentSelection,
		models.EventSources,
		models.EventChunk,
		models.EventChunk,
		models.EventComplete,
	}, eventTypes(events))

	selection := events[0].Data.(models.AgentSelectionData)
	require.Equal(t, "MathAgent", selection.Agent)
	require.NotEmpty(t, selection.ConversationID)
	require.NotEmpty(t, selection.UserID)

	complete := events[len(events)-1].Data.(models.CompleteData)
	require.Equal(t, 2, complete.MessageCount) // user + assistant

	msgs := store.msgs[complete.ConversationID]
	require.Len(t, msgs, 2)
	require.Equal(t, conversation.SenderUser, msgs[0].Sender)
	require.Equal(t, conversation.SenderAssistant, msgs[1].Sender)
	require.Equal(t, "O resultado é 8.", msgs[1].Content)
	require.Equal(t, "MathAgent", msgs[1].Agent)
	require.Equal(t, "math", msgs[1].Metadata["agent_type"])
}

func TestKnowledgeMissFlow(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{chunks: []string{"não deveria rodar"}}
	orch := newOrchestrator(store, gen, &fakeIndex{})

	events := drain(orch.Run(context.Background(), models.ChatRequest{Message: "Qual a taxa da maquininha?"}))
	require.Equal(t, []string{
		models.EventAgentSelection,
		models.EventSources,
		models.EventChunk,
		models.EventComplete,
	}, eventTypes(events))

	sources := events[1].Data.(models.SourcesData)
	require.Equal(t, 0, *sources.DocumentsFound)

	chunk := events[2].Data.(models.ChunkData)
	require.Equal(t, prompts.NoInfoResponse, chunk.Content)

	require.Zero(t, gen.calls)

	// The canned answer is still a real assistant turn.
	complete := events[3].Data.(models.CompleteData)
	require.Equal(t, 2, complete.MessageCount)
}

func TestStoreFailureYieldsSingleSanitizedError(t *testing.T) {
	store := newFakeStore()
	store.failing = true
	orch := newOrchestrator(store, &fakeGenerator{}, &fakeIndex{})

	events := drain(orch.Run(context.Background(), models.ChatRequest{Message: "oi"}))
	require.Len(t, events, 1)
	require.Equal(t, models.EventError, events[0].Type)
	require.Equal(t, "Sistema de conversação temporariamente indisponível", events[0].Data.(models.ErrorData).Message)
}

func TestResponderFailurePersistsPartialAndSanitizes(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{chunks: []string{"resposta parcial"}, failMid: errs.ErrUpstreamTimeout}
	orch := newOrchestrator(store, gen, &fakeIndex{})

	events := drain(orch.Run(context.Background(), models.ChatRequest{Message: "2+2"}))
	types := eventTypes(events)
	require.Equal(t, models.EventError, types[len(types)-1])
	require.NotContains(t, types, models.EventComplete)
	require.Equal(t, "Erro ao processar mensagem", events[len(events)-1].Data.(models.ErrorData).Message)

	// The fragments already reached the caller, so the transcript keeps
	// them.
	selection := events[0].Data.(models.AgentSelectionData)
	msgs := store.msgs[selection.ConversationID]
	require.Len(t, msgs, 2)
	require.Equal(t, "resposta parcial", msgs[1].Content)
}

func TestSuppliedConversationReusedWhenOwned(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	userID, err := store.ResolveOrCreateSession(ctx, "")
	require.NoError(t, err)
	convID, err := store.CreateConversation(ctx, userID, "")
	require.NoError(t, err)

	gen := &fakeGenerator{chunks: []string{"8"}}
	orch := newOrchestrator(store, gen, &fakeIndex{})

	events := drain(orch.Run(ctx, models.ChatRequest{
		Message: "5 + 3", UserID: userID, ConversationID: convID,
	}))
	selection := events[0].Data.(models.AgentSelectionData)
	require.Equal(t, convID, selection.ConversationID)
	require.Equal(t, userID, selection.UserID)
}

func TestForeignConversationGetsFreshOne(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	otherID, err := store.ResolveOrCreateSession(ctx, "")
	require.NoError(t, err)
	foreignConv, err := store.CreateConversation(ctx, otherID, "")
	require.NoError(t, err)

	gen := &fakeGenerator{chunks: []string{"8"}}
	orch := newOrchestrator(store, gen, &fakeIndex{})

	events := drain(orch.Run(ctx, models.ChatRequest{
		Message: "5 + 3", ConversationID: foreignConv,
	}))
	selection := events[0].Data.(models.AgentSelectionData)
	require.NotEqual(t, foreignConv, selection.ConversationID)
	require.Empty(t, store.msgs[foreignConv])
}

func TestCancellationStopsStream(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())

	gen := &fakeGenerator{chunks: []string{strings.Repeat("a", 10), "b", "c"}}
	orch := newOrchestrator(store, gen, &fakeIndex{})

	events := orch.Run(ctx, models.ChatRequest{Message: "5 + 3"})
	<-events // agent_selection
	cancel()

	for range events {
	}
	// No complete event was persisted after cancellation unwound the
	// stream; at most the user message plus whatever had been assembled.
	for _, msgs := range store.msgs {
		for _, msg := range msgs {
			require.NotEqual(t, conversation.SenderAssistant, msg.Sender)
		}
	}
}
