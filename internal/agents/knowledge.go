package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vbastos/chat-infinite/internal/audit"
	"github.com/vbastos/chat-infinite/internal/llm"
	"github.com/vbastos/chat-infinite/internal/models"
	"github.com/vbastos/chat-infinite/internal/prompts"
	"github.com/vbastos/chat-infinite/internal/rag"
)

const KnowledgeAgentName = "KnowledgeAgent"

// KnowledgeAgent grounds its answers in ranked passages from the help
// index. When retrieval comes back empty it streams the canned
// no-information sentence without calling the model at all.
type KnowledgeAgent struct {
	retriever *rag.Retriever
	gen       llm.Generator
	sink      audit.Sink
}

func NewKnowledge(retriever *rag.Retriever, gen llm.Generator, sink audit.Sink) *KnowledgeAgent {
	return &KnowledgeAgent{retriever: retriever, gen: gen, sink: sink}
}

func (a *KnowledgeAgent) Name() string { return KnowledgeAgentName }

func (a *KnowledgeAgent) Process(ctx context.Context, query, conversationID, userID string) <-chan Result {
	out := make(chan Result)

	go func() {
		defer close(out)
		start := time.Now()

		passages := a.retriever.Search(ctx, query)
		if len(passages) == 0 {
			a.processNoSources(ctx, out, query, conversationID, userID, start)
			return
		}

		names := sourceNames(passages)
		if !send(ctx, out, Result{Event: models.SourcesEvent(names, len(passages))}) {
			return
		}

		var full string
		req := llm.Request{
			Prompt:        prompts.BuildKnowledgePrompt(query, passages),
			Temperature:   0.2,
			TopP:          0.9,
			RepeatPenalty: 1.1,
		}
		err := a.gen.Stream(ctx, req, func(chunk string) error {
			full += chunk
			if !send(ctx, out, Result{Event: models.ChunkEvent(chunk, KnowledgeAgentName)}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			if ctx.Err() == nil {
				send(ctx, out, Result{Err: err})
			}
			return
		}

		top := names
		if len(top) > 3 {
			top = top[:3]
		}
		a.sink.Record(ctx, audit.Entry{
			Agent:            KnowledgeAgentName,
			ConversationID:   conversationID,
			UserID:           userID,
			ExecutionTime:    time.Since(start).Seconds(),
			Decision:         fmt.Sprintf("Retrieved %d documents from sources: %s", len(passages), strings.Join(top, ", ")),
			ProcessedContent: fmt.Sprintf("Query: %s... Response: %s...", audit.Truncate(query, 100), audit.Truncate(full, 300)),
		})
	}()

	return out
}

func (a *KnowledgeAgent) processNoSources(ctx context.Context, out chan<- Result, query, conversationID, userID string, start time.Time) {
	if !send(ctx, out, Result{Event: models.SourcesEvent([]string{}, 0)}) {
		return
	}
	if !send(ctx, out, Result{Event: models.ChunkEvent(prompts.NoInfoResponse, KnowledgeAgentName)}) {
		return
	}

	a.sink.Record(ctx, audit.Entry{
		Agent:            KnowledgeAgentName,
		ConversationID:   conversationID,
		UserID:           userID,
		ExecutionTime:    time.Since(start).Seconds(),
		Decision:         "No relevant documents found in knowledge base",
		ProcessedContent: fmt.Sprintf("Query: %s... No relevant documents found", audit.Truncate(query, 100)),
	})
}

// sourceNames returns distinct source identifiers in first-seen order.
func sourceNames(passages []rag.ScoredPassage) []string {
	seen := make(map[string]struct{}, len(passages))
	names := make([]string, 0, len(passages))
	for _, p := range passages {
		name := p.Source
		if name == "" {
			name = "Documento"
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
