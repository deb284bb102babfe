package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/vbastos/chat-infinite/internal/audit"
	"github.com/vbastos/chat-infinite/internal/llm"
	"github.com/vbastos/chat-infinite/internal/models"
	"github.com/vbastos/chat-infinite/internal/prompts"
)

const MathAgentName = "MathAgent"

// MathAgent answers calculation queries directly from the model; it never
// touches retrieval.
type MathAgent struct {
	gen  llm.Generator
	sink audit.Sink
}

func NewMath(gen llm.Generator, sink audit.Sink) *MathAgent {
	return &MathAgent{gen: gen, sink: sink}
}

func (a *MathAgent) Name() string { return MathAgentName }

func (a *MathAgent) Process(ctx context.Context, query, conversationID, userID string) <-chan Result {
	out := make(chan Result)

	go func() {
		defer close(out)
		start := time.Now()

		sources := models.Event{Type: models.EventSources, Data: models.SourcesData{
			Sources:    []string{"Cálculos Matemáticos"},
			Processing: "resolvendo problema matemático",
		}}
		if !send(ctx, out, Result{Event: sources}) {
			return
		}

		var full string
		req := llm.Request{
			Prompt:      prompts.BuildMathPrompt(query),
			Temperature: 0.1,
			TopP:        0.9,
		}
		err := a.gen.Stream(ctx, req, func(chunk string) error {
			full += chunk
			if !send(ctx, out, Result{Event: models.ChunkEvent(chunk, MathAgentName)}) {
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

		a.sink.Record(ctx, audit.Entry{
			Agent:            MathAgentName,
			ConversationID:   conversationID,
			UserID:           userID,
			ExecutionTime:    time.Since(start).Seconds(),
			Decision:         "Mathematical calculation processed",
			ProcessedContent: fmt.Sprintf("Query: %s... Response: %s...", audit.Truncate(query, 100), audit.Truncate(full, 300)),
		})
	}()

	return out
}
