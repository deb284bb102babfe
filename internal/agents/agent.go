// Package agents holds the responder variants. Each responder turns a
// query into a finite stream of events, produced on a channel that closes
// when the turn's generation is done. Failures are delivered in-band so
// the orchestrator can finalize bookkeeping; responders never panic a turn.
package agents

import (
	"context"

	"github.com/vbastos/chat-infinite/internal/models"
)

// Result is one element of a responder stream: an event, or the error
// that ended the stream early. Err is only ever the last element.
type Result struct {
	Event models.Event
	Err   error
}

// Agent is the capability shared by all responder variants. The returned
// channel is consumed exactly once per turn and is not restartable.
type Agent interface {
	Name() string
	Process(ctx context.Context, query, conversationID, userID string) <-chan Result
}

// send delivers a result unless the caller has gone away.
func send(ctx context.Context, out chan<- Result, res Result) bool {
	select {
	case out <- res:
		return true
	case <-ctx.Done():
		return false
	}
}
