package rerank

import (
	"math"
	"strings"
	"testing"

	"ai-docqa-be/pkg/store"
)

func chunk(id, text string) store.Chunk {
	return store.Chunk{ID: id, Text: text}
}

func TestScoreFavorsRelevantText(t *testing.T) {
	r := NewReranker(DefaultWeights())
	query := "酒店星级评定"

	relevant := chunk("a", strings.Repeat("规定。", 20)+"酒店星级评定依据以下标准执行。")
	unrelated := chunk("b", "今天的天气晴朗，适合出行。")

	if got, other := r.Score(relevant, query, 0, 2), r.Score(unrelated, query, 0, 2); got <= other {
		t.Errorf("Score(relevant) = %v, want greater than Score(unrelated) = %v", got, other)
	}
}

func TestScorePositionDecay(t *testing.T) {
	r := NewReranker(DefaultWeights())
	c := chunk("a", "酒店星级评定标准。")

	first := r.Score(c, "酒店", 0, 10)
	tenth := r.Score(c, "酒店", 9, 10)
	if first <= tenth {
		t.Errorf("Score at rank 0 = %v, want greater than rank 9 = %v", first, tenth)
	}
}

func TestCoverageScore(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"plain prose", "没有任何结构的普通文本", 0.0},
		{"digits only", "共有5种类型", 0.2},
		{"list with digits and structure", "1.经济型：价格低\n2.舒适型：设施全", 0.6},
		{
			"dense structured text capped",
			"1.第一。2.第二。3.第三。4.第四。5.第五。6.第六：说明→结果。",
			0.9, // sentences + digits + list + structure
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := coverageScore(tt.text); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("coverageScore(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestRerankIsStableForEqualScores(t *testing.T) {
	r := NewReranker(DefaultWeights())
	// Same text means same relevance/diversity/coverage; only position
	// differs, which already favors the earlier chunk. Equal everything
	// must keep input order.
	chunks := []store.Chunk{
		chunk("first", "相同文本"),
		chunk("second", "相同文本"),
	}

	out := r.Rerank(chunks, "查询")
	if out[0].ID != "first" || out[1].ID != "second" {
		t.Errorf("Rerank() order = [%s %s], want input order preserved", out[0].ID, out[1].ID)
	}
}

func TestFuseAccumulatesAcrossQueries(t *testing.T) {
	r := NewReranker(DefaultWeights())

	shared := chunk("shared", "多个查询都命中的内容")
	only := chunk("only", "只有一个查询命中的内容")

	results := map[string][]store.Chunk{
		"q1": {only, shared},
		"q2": {shared},
		"q3": {shared},
	}
	order := []string{"q1", "q2", "q3"}

	fused := r.Fuse(results, nil, order)
	if len(fused) != 2 {
		t.Fatalf("Fuse() returned %d chunks, want 2", len(fused))
	}
	// shared: 1/62 + 1/61 + 1/61 > only: 1/61
	if fused[0].ID != "shared" {
		t.Errorf("Fuse() top = %s, want shared (accumulated across queries)", fused[0].ID)
	}
}

func TestFuseRespectsQueryWeights(t *testing.T) {
	r := NewReranker(DefaultWeights())

	a := chunk("a", "原始问题命中")
	b := chunk("b", "扩展问题命中")

	results := map[string][]store.Chunk{
		"original": {a},
		"expanded": {b},
	}
	weights := map[string]float64{
		"original": 1.5,
		"expanded": 1.0,
	}

	fused := r.Fuse(results, weights, []string{"original", "expanded"})
	if fused[0].ID != "a" {
		t.Errorf("Fuse() top = %s, want the higher-weighted query's chunk", fused[0].ID)
	}
}

func TestFuseDedupsByTextHashWithoutIDs(t *testing.T) {
	r := NewReranker(DefaultWeights())

	noID := store.Chunk{Text: "没有编号的相同内容"}
	results := map[string][]store.Chunk{
		"q1": {noID},
		"q2": {noID},
	}

	fused := r.Fuse(results, nil, []string{"q1", "q2"})
	if len(fused) != 1 {
		t.Errorf("Fuse() returned %d chunks, want 1 after hash dedup", len(fused))
	}
}

func TestFuseIgnoresQueriesWithoutResults(t *testing.T) {
	r := NewReranker(DefaultWeights())

	results := map[string][]store.Chunk{
		"answered": {chunk("a", "内容")},
	}

	fused := r.Fuse(results, nil, []string{"missing", "answered"})
	if len(fused) != 1 || fused[0].ID != "a" {
		t.Errorf("Fuse() = %v, want the single answered result", fused)
	}
}
