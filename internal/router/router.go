// Package router selects the responder for each message. Classification
// is a deterministic keyword and symbol match; anything that doesn't look
// like arithmetic goes to the knowledge responder.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vbastos/chat-infinite/internal/agents"
	"github.com/vbastos/chat-infinite/internal/audit"
)

// AgentType tags the closed set of responder variants.
type AgentType string

const (
	Math      AgentType = "math"
	Knowledge AgentType = "knowledge"
)

// Brazilian-Portuguese arithmetic and algebra vocabulary. Matched against
// the lower-cased query; substrings are intentional ("calcul" covers
// calcule, calcular, calculadora).
var mathKeywords = []string{
	"calcul", "matemática", "soma", "subtração", "multiplicação",
	"divisão", "equação", "resolver", "resultado", "quanto é", "raiz quadrada",
	"cálculo", "matemático", "matemáticos", "diferencial", "integral",
}

// Matched against the original-case query.
var mathSymbols = []string{"+", "-", "*", "/", "=", "^", "√", "%"}

// Classify is a pure, total function; the empty query routes to Knowledge.
func Classify(query string) AgentType {
	lower := strings.ToLower(query)

	for _, keyword := range mathKeywords {
		if strings.Contains(lower, keyword) {
			return Math
		}
	}
	for _, symbol := range mathSymbols {
		if strings.Contains(query, symbol) {
			return Math
		}
	}
	return Knowledge
}

// Router pairs the classifier with the responder registry.
type Router struct {
	registry map[AgentType]agents.Agent
	sink     audit.Sink
}

func New(knowledge, math agents.Agent, sink audit.Sink) *Router {
	return &Router{
		registry: map[AgentType]agents.Agent{
			Knowledge: knowledge,
			Math:      math,
		},
		sink: sink,
	}
}

// Classify runs the matcher and emits one audit record with the decision
// and elapsed time.
func (r *Router) Classify(ctx context.Context, query, conversationID, userID string) AgentType {
	start := time.Now()
	agentType := Classify(query)

	r.sink.Record(ctx, audit.Entry{
		Agent:            "RouterAgent",
		ConversationID:   orUnknown(conversationID),
		UserID:           orUnknown(userID),
		ExecutionTime:    time.Since(start).Seconds(),
		Decision:         fmt.Sprintf("Routing to %s agent based on query analysis", agentType),
		ProcessedContent: audit.Truncate(query, 200),
	})

	return agentType
}

// Agent returns the responder for a classification tag.
func (r *Router) Agent(t AgentType) agents.Agent {
	return r.registry[t]
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
