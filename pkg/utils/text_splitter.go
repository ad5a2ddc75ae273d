package utils

import "unicode"

// breakWindow is how far back from a chunk boundary SplitText will look for
// a natural break before giving up and cutting mid-sentence.
const breakWindow = 80

// SplitText splits text into chunks of at most chunkSize runes with the
// given overlap between consecutive chunks. Boundaries prefer, in order,
// a paragraph break, a sentence end, then any whitespace within the last
// breakWindow runes; only when none exists is the cut made at the exact
// size. Counting is rune-based so CJK text is not split mid-character.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize // fallback if overlap >= chunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := findBreak(runes, start, end)
		chunks = append(chunks, string(runes[start:cut]))

		next := cut - overlap
		if next <= start {
			next = start + step
		}
		start = next
	}

	return chunks
}

// findBreak returns the preferred cut position in (end-breakWindow, end].
func findBreak(runes []rune, start, end int) int {
	low := end - breakWindow
	if low < start+1 {
		low = start + 1
	}

	// Paragraph break first.
	for i := end; i > low; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	// Then a sentence end.
	for i := end; i > low; i-- {
		if isSentenceEnd(runes[i-1]) {
			return i
		}
	}
	// Then any whitespace.
	for i := end; i > low; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?', '；', ';':
		return true
	}
	return false
}
