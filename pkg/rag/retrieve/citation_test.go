package retrieve

import (
	"strings"
	"testing"

	"ai-docqa-be/pkg/store"
)

func TestReadableFileName(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"1712345678901_酒店管理制度.md", "酒店管理制度.md"},
		{"uploads/1712345678901_report.txt", "report.txt"},
		{"C:\\docs\\1_guide.md", "guide.md"},
		{"plain.md", "plain.md"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ReadableFileName(tt.source); got != tt.want {
			t.Errorf("ReadableFileName(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestCitationsIndexAndSnippet(t *testing.T) {
	long := strings.Repeat("星级评定标准内容 ", 40)
	chunks := []store.Chunk{
		{Text: "  第一段   内容\n换行", Metadata: map[string]string{"source": "1712_a.md"}},
		{Text: long, Metadata: map[string]string{"source": "1713_b.md"}},
	}

	citations := Citations(chunks)
	if len(citations) != 2 {
		t.Fatalf("Citations() returned %d, want 2", len(citations))
	}

	if citations[0].Index != 1 || citations[1].Index != 2 {
		t.Errorf("Citations() indexes = %d,%d, want 1,2", citations[0].Index, citations[1].Index)
	}
	if citations[0].Source != "a.md" {
		t.Errorf("Citations() source = %q, want a.md", citations[0].Source)
	}
	if citations[0].Snippet != "第一段 内容 换行" {
		t.Errorf("Citations() snippet = %q, want whitespace collapsed", citations[0].Snippet)
	}

	snippet := []rune(citations[1].Snippet)
	if len(snippet) != 180+3 || !strings.HasSuffix(citations[1].Snippet, "...") {
		t.Errorf("Citations() long snippet length = %d, want 180 runes plus ellipsis", len(snippet))
	}
}
