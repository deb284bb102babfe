package agents

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vbastos/chat-infinite/internal/audit"
	"github.com/vbastos/chat-infinite/internal/errs"
	"github.com/vbastos/chat-infinite/internal/llm"
	"github.com/vbastos/chat-infinite/internal/models"
	"github.com/vbastos/chat-infinite/internal/prompts"
	"github.com/vbastos/chat-infinite/internal/rag"
)

type fakeGenerator struct {
	chunks  []string
	failMid error
	calls   int
	prompts []string
}

func (g *fakeGenerator) Stream(_ context.Context, req llm.Request, emit func(string) error) error {
	g.calls++
	g.prompts = append(g.prompts, req.Prompt)
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

func collect(t *testing.T, results <-chan Result) ([]models.Event, error) {
	t.Helper()
	var events []models.Event
	for res := range results {
		if res.Err != nil {
			return events, res.Err
		}
		events = append(events, res.Event)
	}
	return events, nil
}

func newRetriever(index rag.SimilarityIndex) *rag.Retriever {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return rag.NewRetriever(index, 0.35, 5, logger)
}

func helpPassage(source, text string) rag.ScoredPassage {
	return rag.ScoredPassage{
		Passage:  rag.Passage{Text: text, Source: source, Title: "Ajuda"},
		Distance: 0.1,
	}
}

func TestMathAgentEventOrder(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"5 + 3 ", "= 8"}}
	agent := NewMath(gen, audit.NopSink{})

	events, err := collect(t, agent.Process(context.Background(), "Quanto é 5 + 3?", "conv_1", "user_1"))
	require.NoError(t, err)
	require.Len(t, events, 3)

	require.Equal(t, models.EventSources, events[0].Type)
	sources := events[0].Data.(models.SourcesData)
	require.Equal(t, []string{"Cálculos Matemáticos"}, sources.Sources)
	require.Equal(t, "resolvendo problema matemático", sources.Processing)

	require.Equal(t, models.EventChunk, events[1].Type)
	require.Equal(t, "5 + 3 ", events[1].Data.(models.ChunkData).Content)
	require.Equal(t, MathAgentName, events[1].Data.(models.ChunkData).Agent)
	require.Equal(t, "= 8", events[2].Data.(models.ChunkData).Content)
}

func TestMathAgentFailureDeliveredInBand(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"parcial"}, failMid: errs.ErrUpstreamTimeout}
	agent := NewMath(gen, audit.NopSink{})

	events, err := collect(t, agent.Process(context.Background(), "2+2", "conv_1", "user_1"))
	require.ErrorIs(t, err, errs.ErrUpstreamTimeout)
	require.Len(t, events, 2) // sources + the partial chunk
}

func TestKnowledgeAgentStreamsWithPassages(t *testing.T) {
	index := &fakeIndex{results: []rag.ScoredPassage{
		helpPassage("ajuda.infinitepay.io/taxas", "As taxas são..."),
		helpPassage("ajuda.infinitepay.io/taxas", "Outro trecho"),
		helpPassage("ajuda.infinitepay.io/planos", "Planos..."),
	}}
	gen := &fakeGenerator{chunks: []string{"As taxas ", "variam."}}
	agent := NewKnowledge(newRetriever(index), gen, audit.NopSink{})

	events, err := collect(t, agent.Process(context.Background(), "Qual a taxa da maquininha?", "conv_1", "user_1"))
	require.NoError(t, err)
	require.Len(t, events, 3)

	sources := events[0].Data.(models.SourcesData)
	require.Equal(t, []string{"ajuda.infinitepay.io/taxas", "ajuda.infinitepay.io/planos"}, sources.Sources)
	require.NotNil(t, sources.DocumentsFound)
	require.Equal(t, 3, *sources.DocumentsFound)

	require.Equal(t, 1, gen.calls)
	require.Contains(t, gen.prompts[0], "Qual a taxa da maquininha?")
	require.Contains(t, gen.prompts[0], "As taxas são...")
}

func TestKnowledgeAgentNoPassagesSkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"não deveria aparecer"}}
	agent := NewKnowledge(newRetriever(&fakeIndex{}), gen, audit.NopSink{})

	events, err := collect(t, agent.Process(context.Background(), "pergunta obscura", "conv_1", "user_1"))
	require.NoError(t, err)
	require.Len(t, events, 2)

	sources := events[0].Data.(models.SourcesData)
	require.Empty(t, sources.Sources)
	require.Equal(t, 0, *sources.DocumentsFound)

	chunk := events[1].Data.(models.ChunkData)
	require.Equal(t, prompts.NoInfoResponse, chunk.Content)
	require.Equal(t, KnowledgeAgentName, chunk.Agent)

	require.Zero(t, gen.calls)
}

func TestProcessUnwindsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{chunks: []string{"a", "b", "c"}}
	agent := NewMath(gen, audit.NopSink{})

	results := agent.Process(ctx, "2+2", "conv_1", "user_1")
	<-results // sources event
	cancel()

	// The channel must close without further sends blocking forever.
	for range results {
	}
}

func TestMathAgentIgnoresRetrievalEntirely(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"ok"}}
	agent := NewMath(gen, audit.NopSink{})

	_, err := collect(t, agent.Process(context.Background(), "1+1", "conv_1", "user_1"))
	require.NoError(t, err)
	require.Contains(t, gen.prompts[0], "especialista em matemática")
}
