package retrieve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"ai-docqa-be/pkg/rag/expand"
	"ai-docqa-be/pkg/rag/rerank"
	"ai-docqa-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchCall struct {
	Query     string
	TopK      int
	Threshold float64
}

// fakeSearcher returns canned results per query and records every call.
// resultsAt matches on the full call signature and wins over results, so a
// re-search of the same query at a widened topK can answer differently.
type fakeSearcher struct {
	mu        sync.Mutex
	calls     []searchCall
	results   map[string][]store.Chunk
	resultsAt map[searchCall][]store.Chunk
	errs      map[string]error
	fallback  []store.Chunk
}

func (f *fakeSearcher) Search(_ context.Context, query string, topK int, threshold float64) ([]store.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := searchCall{Query: query, TopK: topK, Threshold: threshold}
	f.calls = append(f.calls, call)

	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	if chunks, ok := f.resultsAt[call]; ok {
		return chunks, nil
	}
	if chunks, ok := f.results[query]; ok {
		return chunks, nil
	}
	return f.fallback, nil
}

func (f *fakeSearcher) calledWith(query string, topK int, threshold float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.Query == query && c.TopK == topK && c.Threshold == threshold {
			return true
		}
	}
	return false
}

func newTestOrchestrator(searcher Searcher, cfg Config) *Orchestrator {
	return NewOrchestrator(
		searcher,
		expand.NewExpander(nil, nil),
		rerank.NewReranker(rerank.DefaultWeights()),
		cfg,
		log.New(io.Discard, "", 0),
	)
}

func docChunk(id, source, text string) store.Chunk {
	return store.Chunk{
		ID:   id,
		Text: text,
		Metadata: map[string]string{
			"source":   source,
			"fileType": "md",
		},
	}
}

func TestSearchConfigAdaptation(t *testing.T) {
	tests := []struct {
		name          string
		question      string
		wantTopK      int
		wantThreshold float64
	}{
		{"listing widens", "酒店星级有哪些", 30, 0.2},
		{"precision narrows", "五星级的定义是什么", 30, 0.2}, // 星级 wins: listing checked first
		{"pure precision", "定义具体指的含义", 14, 0.3},
		{"default unchanged", "如何评价服务质量", 20, 0.25},
	}

	o := newTestOrchestrator(&fakeSearcher{}, DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := o.searchConfigFor(classify(tt.question))
			assert.Equal(t, tt.wantTopK, got.TopK)
			assert.InDelta(t, tt.wantThreshold, got.Threshold, 1e-9)
		})
	}
}

func TestSearchConfigClamps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopK = 40
	cfg.Threshold = 0.12
	o := newTestOrchestrator(&fakeSearcher{}, cfg)

	listing := o.searchConfigFor(classListing)
	assert.Equal(t, 50, listing.TopK, "listing topK clamps at 50")
	assert.InDelta(t, 0.1, listing.Threshold, 1e-9, "threshold clamps at 0.1")

	cfg.TopK = 6
	o = newTestOrchestrator(&fakeSearcher{}, cfg)
	precision := o.searchConfigFor(classPrecision)
	assert.Equal(t, 5, precision.TopK, "precision topK clamps at 5")
}

func TestRetrieveDeduplicatesAcrossQueries(t *testing.T) {
	shared := docChunk("c1", "a.md", "各星级对应的硬件与服务要求不同。")
	searcher := &fakeSearcher{fallback: []store.Chunk{shared}}

	cfg := DefaultConfig()
	o := newTestOrchestrator(searcher, cfg)

	// Listing question expands into several queries; every query returns the
	// same chunk.
	chunks, err := o.Retrieve(context.Background(), "酒店星级有哪些？", Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "c1", chunks[0].ID)
}

func TestRetrieveIsolatesQueryFailures(t *testing.T) {
	question := "酒店星级有哪些？"
	good := docChunk("ok", "a.md", "星级评定涵盖硬件设施与服务质量。")

	searcher := &fakeSearcher{
		results: map[string][]store.Chunk{question: {good}},
		errs:    map[string]error{"酒店星级包括？": errors.New("backend down")},
	}

	o := newTestOrchestrator(searcher, DefaultConfig())
	chunks, err := o.Retrieve(context.Background(), question, Options{})
	require.NoError(t, err, "one failing query must not fail the call")
	require.NotEmpty(t, chunks)
	assert.Equal(t, "ok", chunks[0].ID)
}

func TestRetrieveAppliesSourceAndTypeFilters(t *testing.T) {
	pool := []store.Chunk{
		docChunk("a", "1712_guide.md", "星级评定细则一。"),
		docChunk("b", "1713_faq.txt", "星级评定细则二。"),
	}
	pool[1].Metadata["fileType"] = "txt"
	searcher := &fakeSearcher{fallback: pool}

	cfg := DefaultConfig()
	cfg.ExpansionEnabled = false
	o := newTestOrchestrator(searcher, cfg)

	bySource, err := o.Retrieve(context.Background(), "评定细则", Options{SourceFiles: []string{"guide.md"}})
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, "a", bySource[0].ID)

	byType, err := o.Retrieve(context.Background(), "评定细则", Options{FileTypes: []string{".txt"}})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "b", byType[0].ID)
}

func TestRetrieveListingSupplementAndLowYieldRetry(t *testing.T) {
	question := "酒店星级有哪些"
	searcher := &fakeSearcher{
		results: map[string][]store.Chunk{
			question: {docChunk("c1", "a.md", "三星级要求。")},
		},
	}

	cfg := DefaultConfig()
	cfg.ExpansionEnabled = false
	o := newTestOrchestrator(searcher, cfg)

	_, err := o.Retrieve(context.Background(), question, Options{})
	require.NoError(t, err)

	// Listing config: topK 30, threshold 0.2. Supplement strips the listing
	// marker and relaxes to max(0.15, 0.2-0.1); the thin pool then retries at
	// topK+10 and floor threshold.
	assert.True(t, searcher.calledWith("酒店星级", 10, 0.15), "listing supplement call missing: %v", searcher.calls)
	assert.True(t, searcher.calledWith(question, 40, 0.15), "low-yield retry call missing: %v", searcher.calls)
}

func TestRetrieveKeepsRetryOnlyChunksAfterFusion(t *testing.T) {
	// The compound question decomposes into two clauses, so fusion runs.
	// The retry re-issues the original question at a widened topK; the
	// chunks it alone contributes must survive into the final list.
	question := "退订政策和违约金规定？"
	searcher := &fakeSearcher{
		results: map[string][]store.Chunk{
			question:   {docChunk("c1", "a.md", "退订政策条款。")},
			"退订政策": {docChunk("c2", "a.md", "退订时限说明。")},
		},
		resultsAt: map[searchCall][]store.Chunk{
			{Query: question, TopK: 30, Threshold: 0.15}: {
				docChunk("c1", "a.md", "退订政策条款。"),
				docChunk("c3", "b.md", "违约金比例。"),
				docChunk("c4", "b.md", "违约金上限。"),
				docChunk("c5", "b.md", "违约金减免条件。"),
				docChunk("c6", "b.md", "违约金结算方式。"),
			},
		},
	}

	o := newTestOrchestrator(searcher, DefaultConfig())
	chunks, err := o.Retrieve(context.Background(), question, Options{})
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, c := range chunks {
		ids[c.ID] = true
	}
	require.Len(t, chunks, 6)
	for _, id := range []string{"c3", "c4", "c5", "c6"} {
		assert.True(t, ids[id], "retry-only chunk %s missing from final list", id)
	}
}

func TestRetrieveKeepsSupplementChunksOnQueryCollision(t *testing.T) {
	// With no synonym variants the generalization stage emits exactly the
	// stripped listing form, so the supplement re-issues a query that was
	// already searched. Its new chunks must still reach the final list.
	question := "酒店星级有哪些？"
	searcher := &fakeSearcher{
		results: map[string][]store.Chunk{
			question:   {docChunk("c1", "a.md", "三星级标准。")},
			"酒店星级": {docChunk("c2", "b.md", "四星级标准。")},
		},
		resultsAt: map[searchCall][]store.Chunk{
			{Query: "酒店星级", TopK: 10, Threshold: 0.15}: {
				docChunk("c2", "b.md", "四星级标准。"),
				docChunk("c3", "c.md", "五星级标准。"),
			},
		},
	}

	o := NewOrchestrator(
		searcher,
		expand.NewExpander(map[string][]string{}, nil),
		rerank.NewReranker(rerank.DefaultWeights()),
		DefaultConfig(),
		log.New(io.Discard, "", 0),
	)

	chunks, err := o.Retrieve(context.Background(), question, Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	ids := map[string]bool{}
	for _, c := range chunks {
		ids[c.ID] = true
	}
	assert.True(t, ids["c3"], "supplement-only chunk missing from final list")
}

func TestDiversifySelectCapsPerSource(t *testing.T) {
	var pool []store.Chunk
	for i := 0; i < 10; i++ {
		pool = append(pool, docChunk(fmt.Sprintf("a%d", i), "a.md", fmt.Sprintf("甲文档片段%d。", i)))
	}
	for i := 0; i < 10; i++ {
		pool = append(pool, docChunk(fmt.Sprintf("b%d", i), "b.md", fmt.Sprintf("乙文档片段%d。", i)))
	}

	cfg := DefaultConfig()
	o := newTestOrchestrator(&fakeSearcher{}, cfg)

	selected := o.diversifySelect(pool)
	require.Len(t, selected, cfg.MaxDocuments)

	// The greedy pass admits MaxPerSource from each source; the backfill
	// tops the list up to MaxDocuments from the overflow.
	perSource := map[string]int{}
	for _, c := range selected[:8] {
		perSource[c.Source()]++
	}
	assert.Equal(t, cfg.MaxPerSource, perSource["a.md"])
	assert.Equal(t, cfg.MaxPerSource, perSource["b.md"])
}

func TestDiversifySelectBackfillsUncoveredSources(t *testing.T) {
	// Rank order is five chunks of a.md followed by one of b.md. The cap
	// defers a4, and the coverage-first backfill admits b0 before it.
	pool := []store.Chunk{
		docChunk("a0", "a.md", "片段。"),
		docChunk("a1", "a.md", "片段。"),
		docChunk("a2", "a.md", "片段。"),
		docChunk("a3", "a.md", "片段。"),
		docChunk("a4", "a.md", "片段。"),
		docChunk("b0", "b.md", "片段。"),
	}

	o := newTestOrchestrator(&fakeSearcher{}, DefaultConfig())
	selected := o.diversifySelect(pool)

	sources := map[string]bool{}
	for _, c := range selected {
		sources[c.Source()] = true
	}
	assert.True(t, sources["b.md"], "second source must be covered")
	assert.Len(t, selected, 6)
}

func TestDiversifySelectDisplacesForCoverageAtSizeCap(t *testing.T) {
	// The size cap fills up with one source before the second appears; the
	// coverage backfill must swap the new source in, not append past the cap.
	pool := []store.Chunk{
		docChunk("a0", "a.md", "片段。"),
		docChunk("a1", "a.md", "片段。"),
		docChunk("a2", "a.md", "片段。"),
		docChunk("b0", "b.md", "片段。"),
	}

	cfg := DefaultConfig()
	cfg.MaxDocuments = 2
	o := newTestOrchestrator(&fakeSearcher{}, cfg)

	selected := o.diversifySelect(pool)
	require.Len(t, selected, cfg.MaxDocuments)

	sources := map[string]bool{}
	for _, c := range selected {
		sources[c.Source()] = true
	}
	assert.True(t, sources["b.md"], "second source must be covered within the cap")
	assert.Equal(t, "a0", selected[0].ID, "the top ranked chunk keeps its place")
}

func TestRetrieveEmptyPoolIsNotAnError(t *testing.T) {
	o := newTestOrchestrator(&fakeSearcher{}, DefaultConfig())
	chunks, err := o.Retrieve(context.Background(), "完全没有命中的问题", Options{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestHybridRescorePromotesLexicalMatches(t *testing.T) {
	cfg := DefaultConfig()
	o := newTestOrchestrator(&fakeSearcher{}, cfg)

	// Dense order puts the lexically unrelated chunk first; token overlap
	// with the question should flip the order.
	chunks := []store.Chunk{
		docChunk("dense", "a.md", "完全无关的内容。"),
		docChunk("lexical", "b.md", "包含 退订 政策 与 违约金 说明。"),
	}

	out := o.hybridRescore(chunks, "退订 违约金")
	require.Len(t, out, 2)
	assert.Equal(t, "lexical", out[0].ID)
}
