package utils

import (
	"strings"
	"testing"
)

func TestSplitTextShortInput(t *testing.T) {
	chunks := SplitText("短文本", 100, 10)
	if len(chunks) != 1 || chunks[0] != "短文本" {
		t.Errorf("SplitText(short) = %v, want the input unchanged", chunks)
	}
}

func TestSplitTextBoundsAndCoverage(t *testing.T) {
	text := strings.Repeat("酒店星级评定标准的具体内容。", 100)
	chunks := SplitText(text, 200, 40)

	if len(chunks) < 2 {
		t.Fatalf("SplitText() = %d chunks, want several", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n == 0 || n > 200 {
			t.Errorf("chunk %d has %d runes, want 1..200", i, n)
		}
	}

	// Last chunk must reach the end of the input.
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(text, last) {
		t.Errorf("final chunk does not end the input")
	}
}

func TestSplitTextPrefersSentenceBoundary(t *testing.T) {
	text := strings.Repeat("完整句子。", 50)
	for i, c := range SplitText(text, 90, 20) {
		if !strings.HasSuffix(c, "。") {
			t.Errorf("chunk %d = %q does not end at a sentence boundary", i, c)
		}
	}
}

func TestSplitTextOverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("一二三四五六七八九十", 30)
	chunks := SplitText(text, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("SplitText() = %d chunks, want several", len(chunks))
	}

	firstTail := string([]rune(chunks[0])[len([]rune(chunks[0]))-20:])
	if !strings.HasPrefix(chunks[1], firstTail) {
		t.Errorf("second chunk does not start with the overlap of the first")
	}
}

func TestSplitTextOverlapLargerThanChunk(t *testing.T) {
	text := strings.Repeat("内容", 100)
	chunks := SplitText(text, 50, 60)
	if len(chunks) < 2 {
		t.Fatalf("SplitText() with oversized overlap = %d chunks, want forward progress", len(chunks))
	}
}
