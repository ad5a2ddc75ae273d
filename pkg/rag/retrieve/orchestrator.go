// Package retrieve drives adaptive multi-query retrieval: question
// classification, query expansion, concurrent search fan-out, deduplication,
// metadata filtering, supplement/retry stages, fusion, hybrid rescoring and
// source-diversified selection.
package retrieve

import (
	"context"
	"log"
	"sort"
	"strings"

	"ai-docqa-be/pkg/rag/expand"
	"ai-docqa-be/pkg/rag/rerank"
	"ai-docqa-be/pkg/store"

	"golang.org/x/sync/errgroup"
)

// Searcher is the external nearest-neighbor backend. A failing search is an
// ordinary empty contribution for that query, never fatal to the whole call.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, threshold float64) ([]store.Chunk, error)
}

// Options carries caller-supplied metadata filters. Empty slices mean "no
// filter".
type Options struct {
	SourceFiles []string
	FileTypes   []string
}

// SearchConfig is the per-call parameter pair derived from classification.
// Never persisted.
type SearchConfig struct {
	TopK      int
	Threshold float64
}

// Config tunes the orchestrator. Each field documents its default.
type Config struct {
	TopK              int     // base result-count bound per query (default 20)
	Threshold         float64 // base similarity floor (default 0.25)
	ExpansionEnabled  bool    // generate alternate queries (default true)
	RerankEnabled     bool    // fuse + composite rerank + hybrid rescore (default true)
	MaxQueries        int     // original + expansions issued per call (default 5)
	LexicalWeight     float64 // lexical share of the hybrid rescore (default 0.35)
	MaxDocuments      int     // final list size bound (default 15)
	MaxPerSource      int     // per-source admission cap (default 4)
	MinSourceCoverage int     // distinct sources the selection aims for (default 2)
}

// DefaultConfig returns the tuned production defaults.
func DefaultConfig() Config {
	return Config{
		TopK:              20,
		Threshold:         0.25,
		ExpansionEnabled:  true,
		RerankEnabled:     true,
		MaxQueries:        5,
		LexicalWeight:     0.35,
		MaxDocuments:      15,
		MaxPerSource:      4,
		MinSourceCoverage: 2,
	}
}

// Orchestrator coordinates one retrieval call. It holds no per-call state.
type Orchestrator struct {
	searcher Searcher
	expander *expand.Expander
	reranker *rerank.Reranker
	cfg      Config
	logger   *log.Logger
}

func NewOrchestrator(
	searcher Searcher,
	expander *expand.Expander,
	reranker *rerank.Reranker,
	cfg Config,
	logger *log.Logger,
) *Orchestrator {
	return &Orchestrator{
		searcher: searcher,
		expander: expander,
		reranker: reranker,
		cfg:      cfg,
		logger:   logger,
	}
}

// questionClass drives the adaptive SearchConfig.
type questionClass int

const (
	classDefault questionClass = iota
	classListing
	classPrecision
)

var listingKeywords = []string{"有哪些", "包括", "所有", "列举", "分为", "几个", "几种", "星级"}
var precisionKeywords = []string{"是什么", "定义", "具体指", "含义"}

// pool accumulates deduplicated chunks across stages. perQuery keeps the
// filtered per-query lists needed for fusion.
type pool struct {
	chunks     []store.Chunk
	seen       map[string]bool
	perQuery   map[string][]store.Chunk
	queryOrder []string
}

func newPool() *pool {
	return &pool{
		seen:     make(map[string]bool),
		perQuery: make(map[string][]store.Chunk),
	}
}

func (p *pool) add(chunks []store.Chunk) int {
	added := 0
	for _, c := range chunks {
		id := c.Identity()
		if p.seen[id] {
			continue
		}
		p.seen[id] = true
		p.chunks = append(p.chunks, c)
		added++
	}
	return added
}

func (p *pool) recordQuery(query string, chunks []store.Chunk) {
	if _, exists := p.perQuery[query]; exists {
		return
	}
	p.perQuery[query] = chunks
	p.queryOrder = append(p.queryOrder, query)
}

// Retrieve runs the full pipeline and returns the final ordered chunk list.
// An empty result is a valid terminal state, not an error.
func (o *Orchestrator) Retrieve(ctx context.Context, question string, opts Options) ([]store.Chunk, error) {
	class := classify(question)
	config := o.searchConfigFor(class)
	o.logger.Printf("[INFO] Retrieval config - class: %v, topK: %d, threshold: %.2f", class, config.TopK, config.Threshold)

	queries := o.buildQueries(question)

	p := newPool()
	o.primarySearch(ctx, p, queries, config, opts)
	o.logger.Printf("[INFO] Primary retrieval: %d chunks from %d queries", len(p.chunks), len(queries))

	if class == classListing && len(p.chunks) < 10 {
		o.listingSupplement(ctx, p, question, config, opts)
		o.logger.Printf("[INFO] After listing supplement: %d chunks", len(p.chunks))
	}

	if len(p.chunks) < 5 {
		o.lowYieldRetry(ctx, p, question, config, opts)
		o.logger.Printf("[INFO] After low-yield retry: %d chunks", len(p.chunks))
	}

	ranked := p.chunks
	if o.cfg.RerankEnabled && len(ranked) > 0 {
		ranked = o.fuseAndRerank(p, question)
		ranked = o.hybridRescore(ranked, question)
	}

	return o.diversifySelect(ranked), nil
}

func classify(question string) questionClass {
	for _, kw := range listingKeywords {
		if strings.Contains(question, kw) {
			return classListing
		}
	}
	for _, kw := range precisionKeywords {
		if strings.Contains(question, kw) {
			return classPrecision
		}
	}
	return classDefault
}

func (o *Orchestrator) searchConfigFor(class questionClass) SearchConfig {
	topK := o.cfg.TopK
	threshold := o.cfg.Threshold

	switch class {
	case classListing:
		topK = int(float64(topK) * 1.5)
		threshold -= 0.05
	case classPrecision:
		topK = int(float64(topK) * 0.7)
		threshold += 0.05
	}

	return SearchConfig{
		TopK:      clampInt(topK, 5, 50),
		Threshold: clampFloat(threshold, 0.1, 0.5),
	}
}

func (o *Orchestrator) buildQueries(question string) []string {
	if !o.cfg.ExpansionEnabled {
		return []string{question}
	}
	queries := o.expander.Expand(question)
	if len(queries) > o.cfg.MaxQueries {
		queries = queries[:o.cfg.MaxQueries]
	}
	return queries
}

// primarySearch fans out one search per query concurrently. Per-query
// failures are isolated: logged and treated as empty results.
func (o *Orchestrator) primarySearch(ctx context.Context, p *pool, queries []string, config SearchConfig, opts Options) {
	results := make([][]store.Chunk, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			chunks, err := o.searcher.Search(gctx, query, config.TopK, config.Threshold)
			if err != nil {
				o.logger.Printf("[WARN] Search failed for query %q: %v", query, err)
				return nil
			}
			results[i] = chunks
			return nil
		})
	}
	// Goroutines only return nil; Wait is for fan-in.
	_ = g.Wait()

	for i, query := range queries {
		filtered := filterChunks(results[i], opts)
		p.recordQuery(query, filtered)
		p.add(filtered)
	}
}

// listingSupplement broadens a listing question once more with the listing
// markers stripped and a relaxed threshold.
func (o *Orchestrator) listingSupplement(ctx context.Context, p *pool, question string, config SearchConfig, opts Options) {
	broad := question
	for _, marker := range []string{"有哪些", "包括", "所有", "？"} {
		broad = strings.ReplaceAll(broad, marker, "")
	}
	broad = strings.TrimSpace(broad)
	if broad == "" {
		return
	}

	threshold := config.Threshold - 0.1
	if threshold < 0.15 {
		threshold = 0.15
	}

	chunks, err := o.searcher.Search(ctx, broad, 10, threshold)
	if err != nil {
		o.logger.Printf("[WARN] Listing supplement search failed: %v", err)
		return
	}
	filtered := filterChunks(chunks, opts)
	p.recordQuery(broad, filtered)
	p.add(filtered)
}

// lowYieldRetry widens the net once when the pool is still thin.
func (o *Orchestrator) lowYieldRetry(ctx context.Context, p *pool, question string, config SearchConfig, opts Options) {
	chunks, err := o.searcher.Search(ctx, question, config.TopK+10, 0.15)
	if err != nil {
		o.logger.Printf("[WARN] Low-yield retry search failed: %v", err)
		return
	}
	filtered := filterChunks(chunks, opts)
	p.recordQuery(question, filtered)
	p.add(filtered)
}

// filterChunks applies the caller's metadata constraints. Source matching is
// case-insensitive substring; file types match the recorded extension.
// Absent constraints act as wildcards.
func filterChunks(chunks []store.Chunk, opts Options) []store.Chunk {
	if len(opts.SourceFiles) == 0 && len(opts.FileTypes) == 0 {
		return chunks
	}
	out := make([]store.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if matchesSource(c, opts.SourceFiles) && matchesFileType(c, opts.FileTypes) {
			out = append(out, c)
		}
	}
	return out
}

func matchesSource(chunk store.Chunk, sourceFiles []string) bool {
	if len(sourceFiles) == 0 {
		return true
	}
	source := strings.ToLower(chunk.Source())
	for _, want := range sourceFiles {
		if want != "" && strings.Contains(source, strings.ToLower(want)) {
			return true
		}
	}
	return false
}

func matchesFileType(chunk store.Chunk, fileTypes []string) bool {
	if len(fileTypes) == 0 {
		return true
	}
	fileType := strings.ToLower(chunk.FileType())
	if fileType == "" {
		if idx := strings.LastIndex(chunk.Source(), "."); idx >= 0 {
			fileType = strings.ToLower(chunk.Source()[idx+1:])
		}
	}
	for _, want := range fileTypes {
		if strings.EqualFold(strings.TrimPrefix(want, "."), fileType) {
			return true
		}
	}
	return false
}

// fuseAndRerank fuses per-query lists via RRF when more than one query
// contributed, then applies the composite rerank over the fused order.
func (o *Orchestrator) fuseAndRerank(p *pool, question string) []store.Chunk {
	contributing := 0
	for _, q := range p.queryOrder {
		if len(p.perQuery[q]) > 0 {
			contributing++
		}
	}

	ranked := p.chunks
	if contributing > 1 {
		weights := make(map[string]float64, len(p.queryOrder))
		for _, q := range p.queryOrder {
			weights[q] = o.expander.Importance(q, question)
		}
		ranked = o.reranker.Fuse(p.perQuery, weights, p.queryOrder)
		ranked = mergePoolRemainder(ranked, p.chunks)
		o.logger.Printf("[DEBUG] Fused %d query result lists into %d chunks", contributing, len(ranked))
	}

	return o.reranker.Rerank(ranked, question)
}

// mergePoolRemainder appends pool chunks absent from the fused order, in
// pool order. Supplement and retry stages can reissue an already recorded
// query string, so their chunks may live only in the pool.
func mergePoolRemainder(ranked, pool []store.Chunk) []store.Chunk {
	if len(ranked) >= len(pool) {
		return ranked
	}
	fused := make(map[string]bool, len(ranked))
	for _, c := range ranked {
		fused[c.Identity()] = true
	}
	for _, c := range pool {
		if !fused[c.Identity()] {
			ranked = append(ranked, c)
		}
	}
	return ranked
}

// hybridRescore blends the dense ordering with lexical token hits:
// final = dense·(1-w) + lexical·w. Skipped when the question yields no
// usable tokens.
func (o *Orchestrator) hybridRescore(chunks []store.Chunk, question string) []store.Chunk {
	tokens := queryTokens(question)
	if len(tokens) == 0 || len(chunks) == 0 {
		return chunks
	}

	hits := make([]int, len(chunks))
	maxHits := 0
	for i, c := range chunks {
		text := strings.ToLower(c.Text)
		for _, tok := range tokens {
			if strings.Contains(text, tok) {
				hits[i]++
			}
		}
		if hits[i] > maxHits {
			maxHits = hits[i]
		}
	}

	type scored struct {
		chunk store.Chunk
		score float64
	}
	poolSize := float64(len(chunks))
	scoredChunks := make([]scored, len(chunks))
	for i, c := range chunks {
		denseNorm := 1.0 - float64(i)/poolSize
		lexicalNorm := 0.0
		if maxHits > 0 {
			lexicalNorm = float64(hits[i]) / float64(maxHits)
		}
		scoredChunks[i] = scored{
			chunk: c,
			score: denseNorm*(1.0-o.cfg.LexicalWeight) + lexicalNorm*o.cfg.LexicalWeight,
		}
	}
	sort.SliceStable(scoredChunks, func(i, j int) bool {
		return scoredChunks[i].score > scoredChunks[j].score
	})

	out := make([]store.Chunk, len(scoredChunks))
	for i, s := range scoredChunks {
		out[i] = s.chunk
	}
	return out
}

// queryTokens extracts non-stopword tokens of at least two characters.
func queryTokens(question string) []string {
	stopwords := make(map[string]bool)
	for _, w := range expand.DefaultStopwords() {
		stopwords[w] = true
	}
	var tokens []string
	for _, tok := range expand.Tokenize(strings.ToLower(question)) {
		if len([]rune(tok)) >= 2 && !stopwords[tok] {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// diversifySelect admits chunks greedily under a per-source cap, then
// backfills from the overflow when the size or source-coverage targets are
// unmet, preferring sources not yet covered.
func (o *Orchestrator) diversifySelect(ranked []store.Chunk) []store.Chunk {
	if len(ranked) == 0 {
		return ranked
	}

	selected := make([]store.Chunk, 0, o.cfg.MaxDocuments)
	var overflow []store.Chunk
	perSource := make(map[string]int)

	for _, c := range ranked {
		if len(selected) >= o.cfg.MaxDocuments {
			overflow = append(overflow, c)
			continue
		}
		source := c.Source()
		if perSource[source] >= o.cfg.MaxPerSource {
			overflow = append(overflow, c)
			continue
		}
		selected = append(selected, c)
		perSource[source]++
	}

	needMore := func() bool {
		return len(selected) < o.cfg.MaxDocuments || coveredSources(perSource) < o.cfg.MinSourceCoverage
	}

	if needMore() && len(overflow) > 0 {
		// Uncovered sources first, then remaining overflow in rank order.
		for pass := 0; pass < 2 && needMore(); pass++ {
			remaining := overflow[:0:0]
			for _, c := range overflow {
				if !needMore() {
					remaining = append(remaining, c)
					continue
				}
				isNewSource := perSource[c.Source()] == 0
				if pass == 0 && !isNewSource {
					remaining = append(remaining, c)
					continue
				}
				if len(selected) >= o.cfg.MaxDocuments {
					// At the size cap only an uncovered source can still
					// improve the selection, by displacing a chunk from a
					// multiply represented source.
					if isNewSource {
						if next, ok := displaceForCoverage(selected, perSource, c); ok {
							selected = next
							continue
						}
					}
					remaining = append(remaining, c)
					continue
				}
				selected = append(selected, c)
				perSource[c.Source()]++
			}
			overflow = remaining
		}
	}

	return selected
}

// displaceForCoverage makes room for a chunk from an uncovered source by
// evicting the lowest ranked chunk whose source stays represented after the
// eviction. Reports whether the swap happened.
func displaceForCoverage(selected []store.Chunk, perSource map[string]int, c store.Chunk) ([]store.Chunk, bool) {
	for i := len(selected) - 1; i >= 0; i-- {
		source := selected[i].Source()
		if perSource[source] <= 1 {
			continue
		}
		perSource[source]--
		selected = append(selected[:i], selected[i+1:]...)
		selected = append(selected, c)
		perSource[c.Source()]++
		return selected, true
	}
	return selected, false
}

func coveredSources(perSource map[string]int) int {
	covered := 0
	for _, n := range perSource {
		if n > 0 {
			covered++
		}
	}
	return covered
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
