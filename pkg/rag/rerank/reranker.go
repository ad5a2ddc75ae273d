// Package rerank scores and fuses candidate chunk lists. All functions are
// pure over in-memory data; identical inputs always produce identical output.
package rerank

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"ai-docqa-be/pkg/store"
)

// rrfK is the rank-dampening constant of Reciprocal-Rank-Fusion.
const rrfK = 60

// Weights tunes the composite score. Relevance always carries a fixed 0.5;
// the remaining factors are configurable.
type Weights struct {
	Position  float64 // reward for early rank in the originating list
	Diversity float64 // reward for comprehensive (longer) passages
	Coverage  float64 // reward for information-dense passages
}

// DefaultWeights returns the tuned production defaults.
func DefaultWeights() Weights {
	return Weights{
		Position:  0.2,
		Diversity: 0.15,
		Coverage:  0.15,
	}
}

// Reranker computes composite relevance and fuses multi-query result sets.
type Reranker struct {
	weights Weights
}

func NewReranker(weights Weights) *Reranker {
	return &Reranker{weights: weights}
}

var (
	digitPattern      = regexp.MustCompile(`\d`)
	listGlyphPattern  = regexp.MustCompile(`[1-9]\.|[•·×√☆★]`)
	structurePattern  = regexp.MustCompile(`[:：→\-]`)
	sentenceSplitters = "。！？"
)

// Score computes the composite score of a chunk at its current rank:
// 0.5·relevance + w_pos·position + w_div·diversity + w_cov·coverage.
func (r *Reranker) Score(chunk store.Chunk, query string, rank, total int) float64 {
	return relevanceScore(chunk.Text, query)*0.5 +
		positionScore(rank)*r.weights.Position +
		diversityScore(chunk.Text)*r.weights.Diversity +
		coverageScore(chunk.Text)*r.weights.Coverage
}

// Rerank stable-sorts chunks descending by their composite score at their
// current rank.
func (r *Reranker) Rerank(chunks []store.Chunk, query string) []store.Chunk {
	if len(chunks) == 0 {
		return chunks
	}
	type scored struct {
		chunk store.Chunk
		score float64
	}
	scores := make([]scored, len(chunks))
	for i, c := range chunks {
		scores[i] = scored{chunk: c, score: r.Score(c, query, i, len(chunks))}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})
	out := make([]store.Chunk, len(scores))
	for i, s := range scores {
		out[i] = s.chunk
	}
	return out
}

// Fuse merges per-query result lists via weighted Reciprocal-Rank-Fusion.
// A chunk at 0-based rank i in a query's list contributes
// weight(query)/(60+i+1); contributions accumulate across queries, so a
// chunk ranking well under several reformulations beats one ranking first
// under a single query. queryOrder fixes the iteration order; queries absent
// from weights default to 1.0.
func (r *Reranker) Fuse(
	queryResults map[string][]store.Chunk,
	queryWeights map[string]float64,
	queryOrder []string,
) []store.Chunk {
	type fused struct {
		chunk store.Chunk
		score float64
	}
	accumulated := make(map[string]*fused)
	var order []string

	for _, query := range queryOrder {
		chunks, ok := queryResults[query]
		if !ok {
			continue
		}
		weight := 1.0
		if w, ok := queryWeights[query]; ok {
			weight = w
		}
		for i, chunk := range chunks {
			key := fuseKey(chunk)
			entry, ok := accumulated[key]
			if !ok {
				entry = &fused{chunk: chunk}
				accumulated[key] = entry
				order = append(order, key)
			}
			entry.score += weight / float64(rrfK+i+1)
		}
	}

	// Stable sort over first-seen order keeps ties deterministic.
	sort.SliceStable(order, func(i, j int) bool {
		return accumulated[order[i]].score > accumulated[order[j]].score
	})
	out := make([]store.Chunk, len(order))
	for i, key := range order {
		out[i] = accumulated[key].chunk
	}
	return out
}

func fuseKey(chunk store.Chunk) string {
	if strings.TrimSpace(chunk.ID) != "" {
		return chunk.ID
	}
	return store.HashText(chunk.Text)
}

// relevanceScore rewards full-query containment, token overlap and a
// readable passage length. Capped at 1.0.
func relevanceScore(text, query string) float64 {
	content := strings.ToLower(text)
	queryLower := strings.ToLower(query)

	score := 0.0
	if strings.Contains(content, queryLower) {
		score += 0.5
	}

	words := strings.Fields(queryLower)
	if len(words) > 0 {
		matched := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				matched++
			}
		}
		score += float64(matched) / float64(len(words)) * 0.3
	}

	length := len([]rune(content))
	if length > 100 && length < 2000 {
		score += 0.2
	}

	return math.Min(score, 1.0)
}

// positionScore decays logarithmically so early hits win without zeroing
// out later ones.
func positionScore(rank int) float64 {
	return 1.0 / (1.0 + math.Log(float64(rank)+1))
}

// diversityScore is a coarse short-snippet vs comprehensive-passage proxy.
func diversityScore(text string) float64 {
	switch length := len([]rune(text)); {
	case length < 200:
		return 0.3
	case length > 1500:
		return 0.8
	default:
		return 0.6
	}
}

// coverageScore sums bonuses for sentence count, digits, list glyphs and
// structural punctuation. Capped at 1.0.
func coverageScore(text string) float64 {
	score := 0.0

	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(sentenceSplitters, r)
	})
	if len(sentences) > 5 {
		score += 0.3
	}
	if digitPattern.MatchString(text) {
		score += 0.2
	}
	if listGlyphPattern.MatchString(text) {
		score += 0.2
	}
	if structurePattern.MatchString(text) {
		score += 0.2
	}

	return math.Min(score, 1.0)
}
