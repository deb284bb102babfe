package llm

import "context"

// Request carries one generation call. Prompts already embed whatever
// context the responder wants the model to see.
type Request struct {
	Prompt        string
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
}

// Generator streams incremental text fragments for a prompt. emit is
// called once per fragment; returning an error from it cancels the call.
// Implementations must distinguish timeouts from protocol errors via the
// errs taxonomy.
type Generator interface {
	Stream(ctx context.Context, req Request, emit func(chunk string) error) error
}
