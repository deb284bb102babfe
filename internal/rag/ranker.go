// Package rag ranks passages from an external similarity index with
// domain-aware tie-breaking. The ranker never aborts a turn: any index
// failure degrades to an empty result and the caller falls back to its
// canned no-information answer.
package rag

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

const (
	// DefaultMaxDistance is the cutoff beyond which candidates are
	// considered irrelevant.
	DefaultMaxDistance = 0.35
	// DefaultTopK is the number of passages returned per query.
	DefaultTopK = 5

	chunkTypeDiscount = 0.05
	titleDiscount     = 0.03
	headingDiscount   = 0.02

	titleRelevanceCutoff = 0.3
)

// Retriever re-scores index candidates. The adjusted priority score is
// rank-only; returned passages keep their original distance.
type Retriever struct {
	index       SimilarityIndex
	maxDistance float64
	topK        int
	logger      *slog.Logger
}

func NewRetriever(index SimilarityIndex, maxDistance float64, topK int, logger *slog.Logger) *Retriever {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{index: index, maxDistance: maxDistance, topK: topK, logger: logger}
}

type rankedPassage struct {
	ScoredPassage
	priority float64
}

// Search returns at most topK passages ordered by adjusted priority.
// Candidates beyond maxDistance are dropped; an empty result means no
// relevant knowledge, never an error.
func (r *Retriever) Search(ctx context.Context, query string) []ScoredPassage {
	candidates, err := r.index.Search(ctx, query, r.topK*3)
	if err != nil {
		r.logger.Error("similarity index lookup failed", "error", err)
		return nil
	}

	ranked := make([]rankedPassage, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Distance > r.maxDistance {
			continue
		}

		priority := cand.Distance
		if cand.ChunkType == ChunkTypeInstructions || cand.ChunkType == ChunkTypeTitleSection {
			priority -= chunkTypeDiscount
		}
		if titleRelevance(query, cand.Title) > titleRelevanceCutoff {
			priority -= titleDiscount
		}
		if cand.HasHeading {
			priority -= headingDiscount
		}

		ranked = append(ranked, rankedPassage{ScoredPassage: cand, priority: priority})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].priority < ranked[j].priority
	})

	if len(ranked) > r.topK {
		ranked = ranked[:r.topK]
	}

	results := make([]ScoredPassage, len(ranked))
	for i, p := range ranked {
		results[i] = p.ScoredPassage
	}
	return results
}

// titleRelevance is the symmetric Jaccard similarity over case-folded,
// whitespace-split tokens of query and title.
func titleRelevance(query, title string) float64 {
	if title == "" {
		return 0
	}

	queryWords := tokenSet(query)
	titleWords := tokenSet(title)
	if len(queryWords) == 0 {
		return 0
	}

	intersection := 0
	for w := range queryWords {
		if _, ok := titleWords[w]; ok {
			intersection++
		}
	}
	union := len(queryWords) + len(titleWords) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}
