// Package audit emits structured execution records for every routing and
// responder decision. Records go to stdout as JSON via slog and to a bounded
// Redis list so they can be queried after the fact. The sink is strictly
// fire-and-forget: a failing sink must never fail a turn.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxProcessedContent = 500

// Entry is one audit record. ExecutionTime is in seconds.
type Entry struct {
	Agent            string
	ConversationID   string
	UserID           string
	ExecutionTime    float64
	Decision         string
	ProcessedContent string
	Level            slog.Level
}

// Sink accepts audit entries.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

type record struct {
	Timestamp        string  `json:"timestamp"`
	Level            string  `json:"level"`
	Agent            string  `json:"agent,omitempty"`
	ConversationID   string  `json:"conversation_id,omitempty"`
	UserID           string  `json:"user_id,omitempty"`
	ExecutionTime    float64 `json:"execution_time"`
	Decision         string  `json:"decision,omitempty"`
	ProcessedContent string  `json:"processed_content,omitempty"`
	Message          string  `json:"message"`
}

// RedisSink mirrors entries to slog and to a capped Redis list.
type RedisSink struct {
	client *redis.Client
	logger *slog.Logger
	key    string
	max    int64
}

func NewRedisSink(client *redis.Client, logger *slog.Logger, key string, max int64) *RedisSink {
	return &RedisSink{client: client, logger: logger, key: key, max: max}
}

func (s *RedisSink) Record(ctx context.Context, e Entry) {
	rec := record{
		Timestamp:        time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Level:            e.Level.String(),
		Agent:            e.Agent,
		ConversationID:   e.ConversationID,
		UserID:           e.UserID,
		ExecutionTime:    e.ExecutionTime,
		Decision:         e.Decision,
		ProcessedContent: Truncate(e.ProcessedContent, maxProcessedContent),
		Message:          "Agent execution completed",
	}

	s.logger.LogAttrs(ctx, e.Level, rec.Message,
		slog.String("agent", rec.Agent),
		slog.String("conversation_id", rec.ConversationID),
		slog.String("user_id", rec.UserID),
		slog.Float64("execution_time", rec.ExecutionTime),
		slog.String("decision", rec.Decision),
	)

	data, err := json.Marshal(rec)
	if err != nil {
		return
	}

	// Detached context with a short deadline so a slow Redis cannot stall
	// the turn that produced the entry.
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := s.client.LPush(opCtx, s.key, string(data)).Err(); err != nil {
		return
	}
	_ = s.client.LTrim(opCtx, s.key, 0, s.max-1).Err()
}

// NopSink discards every entry.
type NopSink struct{}

func (NopSink) Record(context.Context, Entry) {}

// Truncate caps s at n runes, appending an ellipsis when it was cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
