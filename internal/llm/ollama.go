package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"

	"github.com/vbastos/chat-infinite/internal/errs"
)

// OllamaGenerator streams completions from a local Ollama server. The
// read deadline is enforced per call; the model is expected to produce
// the first token well within it.
type OllamaGenerator struct {
	llm         *ollama.LLM
	readTimeout time.Duration
}

// NewOllamaGenerator dials nothing up front; Ollama is only reached on
// the first generation call.
func NewOllamaGenerator(baseURL, model string, connectTimeout, readTimeout time.Duration) (*OllamaGenerator, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
		},
	}

	client, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
		ollama.WithHTTPClient(httpClient),
		ollama.WithRunnerNumCtx(4096),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	return &OllamaGenerator{llm: client, readTimeout: readTimeout}, nil
}

func (o *OllamaGenerator) Stream(ctx context.Context, req Request, emit func(chunk string) error) error {
	callCtx, cancel := context.WithTimeout(ctx, o.readTimeout)
	defer cancel()

	opts := []llms.CallOption{
		llms.WithTemperature(req.Temperature),
		llms.WithTopP(req.TopP),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return emit(string(chunk))
		}),
	}
	if req.RepeatPenalty > 0 {
		opts = append(opts, llms.WithRepetitionPenalty(req.RepeatPenalty))
	}

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt),
	}

	if _, err := o.llm.GenerateContent(callCtx, messages, opts...); err != nil {
		return o.classify(ctx, err)
	}
	return nil
}

// classify maps transport failures onto the service taxonomy. Caller
// cancellation is passed through untouched so the orchestrator can unwind
// without emitting an error event.
func (o *OllamaGenerator) classify(callerCtx context.Context, err error) error {
	if callerCtx.Err() != nil {
		return callerCtx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", errs.ErrUpstreamTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", errs.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", errs.ErrUpstreamProtocol, err)
}

// Embedder exposes the underlying client for embedding construction; the
// similarity index shares the Ollama connection.
func (o *OllamaGenerator) Client() *ollama.LLM {
	return o.llm
}
