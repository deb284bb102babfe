package rag

import (
	"context"
	"fmt"
	"sort"

	chromatypes "github.com/amikos-tech/chroma-go/types"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores/chroma"
)

// ChromaIndex adapts a Chroma collection to the SimilarityIndex port.
// The collection is populated by the ingestion pipeline; this adapter only
// reads. Scores reported by the store are cosine distances, lower = closer.
type ChromaIndex struct {
	store chroma.Store
}

// NewChromaIndex connects to the collection holding the help-center chunks.
func NewChromaIndex(url, collection string, embedder embeddings.Embedder) (*ChromaIndex, error) {
	store, err := chroma.New(
		chroma.WithChromaURL(url),
		chroma.WithNameSpace(collection),
		chroma.WithEmbedder(embedder),
		chroma.WithDistanceFunction(chromatypes.COSINE),
	)
	if err != nil {
		return nil, fmt.Errorf("connect chroma: %w", err)
	}
	return &ChromaIndex{store: store}, nil
}

func (c *ChromaIndex) Search(ctx context.Context, query string, k int) ([]ScoredPassage, error) {
	docs, err := c.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("chroma search: %w", err)
	}

	passages := make([]ScoredPassage, 0, len(docs))
	for _, doc := range docs {
		passages = append(passages, ScoredPassage{
			Passage:  passageFromDocument(doc),
			Distance: float64(doc.Score),
		})
	}
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Distance < passages[j].Distance
	})
	return passages, nil
}

func passageFromDocument(doc schema.Document) Passage {
	return Passage{
		Text:       doc.PageContent,
		Source:     metaString(doc.Metadata, "source"),
		SourceURL:  metaString(doc.Metadata, "source_url"),
		Title:      metaString(doc.Metadata, "original_title"),
		ChunkType:  metaString(doc.Metadata, "chunk_type"),
		HasHeading: metaBool(doc.Metadata, "has_heading"),
	}
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func metaBool(meta map[string]any, key string) bool {
	if v, ok := meta[key].(bool); ok {
		return v
	}
	return false
}
