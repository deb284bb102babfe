package models

// ChatRequest is the inbound payload on the chat subject.
type ChatRequest struct {
	Message        string `json:"message"`
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Event is one record of the stream sent back to the caller during a turn.
// Data holds one of the payload structs below, selected by Type.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event types, in the order they may appear within one turn.
const (
	EventAgentSelection = "agent_selection"
	EventSources        = "sources"
	EventChunk          = "chunk"
	EventComplete       = "complete"
	EventError          = "error"
)

// AgentSelectionData names the responder chosen for the turn.
type AgentSelectionData struct {
	Agent          string `json:"agent"`
	Decision       string `json:"decision"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// SourcesData lists the distinct source identifiers backing the answer.
// DocumentsFound is set by the knowledge responder, Processing by math.
type SourcesData struct {
	Sources        []string `json:"sources"`
	DocumentsFound *int     `json:"documents_found,omitempty"`
	Processing     string   `json:"processing,omitempty"`
}

// ChunkData carries one incremental text fragment.
type ChunkData struct {
	Content string `json:"content"`
	Agent   string `json:"agent"`
}

// CompleteData closes a successful turn.
type CompleteData struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	MessageCount   int    `json:"message_count"`
}

// ErrorData carries a sanitized, user-facing message. Internal detail goes
// to the audit sink only.
type ErrorData struct {
	Message string `json:"message"`
}

// SourcesEvent builds a knowledge sources event.
func SourcesEvent(sources []string, found int) Event {
	return Event{Type: EventSources, Data: SourcesData{Sources: sources, DocumentsFound: &found}}
}

// ChunkEvent builds a chunk event.
func ChunkEvent(content, agent string) Event {
	return Event{Type: EventChunk, Data: ChunkData{Content: content, Agent: agent}}
}
