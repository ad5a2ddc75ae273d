package retrieve

import (
	"regexp"
	"strings"

	"ai-docqa-be/pkg/store"
)

// snippetLimit bounds the citation snippet length in runes.
const snippetLimit = 180

// Citation is the per-chunk source/snippet metadata returned for display.
type Citation struct {
	Index   int    `json:"index"`
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
}

var numericPrefixPattern = regexp.MustCompile(`^\d+_`)

// Citations builds display citations for the final chunk list: 1-based
// index, readable source name and a whitespace-normalized snippet.
func Citations(chunks []store.Chunk) []Citation {
	citations := make([]Citation, 0, len(chunks))
	for i, c := range chunks {
		source := c.Source()
		if source == "" {
			source = "unknown"
		}
		citations = append(citations, Citation{
			Index:   i + 1,
			Source:  ReadableFileName(source),
			Snippet: trimSnippet(c.Text),
		})
	}
	return citations
}

// ReadableFileName strips any path and the disambiguating numeric prefix
// ingestion adds to stored filenames.
func ReadableFileName(source string) string {
	name := source
	if idx := strings.LastIndexAny(name, "/\\"); idx >= 0 {
		name = name[idx+1:]
	}
	return numericPrefixPattern.ReplaceAllString(name, "")
}

func trimSnippet(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	runes := []rune(normalized)
	if len(runes) <= snippetLimit {
		return normalized
	}
	return string(runes[:snippetLimit]) + "..."
}
