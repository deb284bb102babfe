package rag

import "context"

// Chunk roles that get a ranking boost.
const (
	ChunkTypeInstructions = "instructions"
	ChunkTypeTitleSection = "title_section"
)

// Passage is one retrieved unit of reference text. Produced by the
// ingestion pipeline; read-only here.
type Passage struct {
	Text       string
	Source     string
	SourceURL  string
	Title      string
	ChunkType  string
	HasHeading bool
}

// ScoredPassage pairs a passage with its similarity distance, in [0, 1],
// lower meaning closer.
type ScoredPassage struct {
	Passage
	Distance float64
}

// SimilarityIndex is the external index the ranker reads from. Results
// come back sorted ascending by distance.
type SimilarityIndex interface {
	Search(ctx context.Context, query string, k int) ([]ScoredPassage, error)
}
