// Package expand generates alternate phrasings of a user question so the
// retrieval layer can search for the same intent expressed multiple ways.
package expand

import (
	"sort"
	"strings"
	"unicode"
)

// MaxQueries caps how many expansions one question may produce.
const MaxQueries = 10

// minQueryLen drops degenerate fragments after splitting/stripping.
const minQueryLen = 2

// DefaultSynonyms maps interrogative/descriptive phrases to substitutable
// synonyms. The table is data, not code: swap it via NewExpander to tune for
// a different corpus without touching the expansion logic.
func DefaultSynonyms() map[string][]string {
	return map[string][]string{
		"有哪些": {"包括", "涵盖", "包含", "由"},
		"是什么": {"定义", "含义", "解释", "说明"},
		"怎么":  {"如何", "方式", "方法", "步骤"},
		"为什么": {"原因", "因素", "原由"},
		"特点":  {"特性", "属性", "性质", "特征"},
		"优势":  {"优点", "好处", "利益", "长处"},
		"劣势":  {"缺点", "不足", "问题", "弱点"},
	}
}

// DefaultStopwords are function words removed from keyword-focused queries.
func DefaultStopwords() []string {
	return []string{"的", "是", "在", "和", "与", "或"}
}

// Expander turns one question into a bounded, deterministic set of queries.
// It performs no I/O and keeps no per-call state.
type Expander struct {
	synonyms     map[string][]string
	synonymOrder []string
	stopwords    map[string]bool
}

// NewExpander builds an expander over the given tables. Nil tables fall back
// to the defaults.
func NewExpander(synonyms map[string][]string, stopwords []string) *Expander {
	if synonyms == nil {
		synonyms = DefaultSynonyms()
	}
	if stopwords == nil {
		stopwords = DefaultStopwords()
	}

	// Fixed iteration order keeps expansion deterministic across runs.
	order := make([]string, 0, len(synonyms))
	for phrase := range synonyms {
		order = append(order, phrase)
	}
	sort.Strings(order)

	stopSet := make(map[string]bool, len(stopwords))
	for _, w := range stopwords {
		stopSet[w] = true
	}

	return &Expander{
		synonyms:     synonyms,
		synonymOrder: order,
		stopwords:    stopSet,
	}
}

// Expand returns the original question first, followed by synonym variants,
// a keyword-focused query, decomposed clauses and generalized forms.
// Results are deduplicated, short fragments dropped, and the total capped at
// MaxQueries, preserving generation order.
func (e *Expander) Expand(question string) []string {
	queries := []string{question}
	queries = append(queries, e.synonymQueries(question)...)
	queries = append(queries, e.keywordQueries(question)...)
	queries = append(queries, decomposedQueries(question)...)
	queries = append(queries, generalizedQueries(question)...)

	seen := make(map[string]bool, len(queries))
	unique := make([]string, 0, len(queries))
	for _, q := range queries {
		if q == "" || seen[q] {
			continue
		}
		// Keep the original question even when it is degenerate: an empty
		// input still yields a single-element result for the caller.
		if q != question && len([]rune(q)) <= minQueryLen {
			continue
		}
		seen[q] = true
		unique = append(unique, q)
		if len(unique) >= MaxQueries {
			break
		}
	}
	return unique
}

// Importance weights a query for result fusion. The original question wins,
// a condensed keyword query ranks next, everything else is neutral.
func (e *Expander) Importance(query, original string) float64 {
	if query == original {
		return 1.5
	}
	if float64(len(strings.Fields(query))) < float64(len(strings.Fields(original)))*0.7 {
		return 1.2
	}
	return 1.0
}

func (e *Expander) synonymQueries(question string) []string {
	var out []string
	for _, phrase := range e.synonymOrder {
		if !strings.Contains(question, phrase) {
			continue
		}
		for _, synonym := range e.synonyms[phrase] {
			out = append(out, strings.ReplaceAll(question, phrase, synonym))
		}
	}
	return out
}

// keywordQueries condenses longer questions down to their content words.
func (e *Expander) keywordQueries(question string) []string {
	words := Tokenize(question)
	if len(words) <= 3 {
		return nil
	}
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if !e.stopwords[w] {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return []string{strings.Join(kept, " ")}
}

// decomposedQueries splits compound questions on coordinating conjunctions
// so each clause can be searched on its own.
func decomposedQueries(question string) []string {
	var out []string
	if strings.ContainsAny(question, "和与及") {
		out = append(out, splitClauses(question, "和与及")...)
	}
	if strings.Contains(question, "或") {
		out = append(out, splitClauses(question, "或")...)
	}
	return out
}

func splitClauses(question, conjunctions string) []string {
	parts := strings.FieldsFunc(question, func(r rune) bool {
		return strings.ContainsRune(conjunctions, r)
	})
	var out []string
	for _, part := range parts {
		trimmed := stripTerminators(strings.TrimSpace(part))
		if len([]rune(trimmed)) > minQueryLen {
			out = append(out, trimmed)
		}
	}
	return out
}

// generalizedQueries widens listing-style questions into the underlying
// topic plus its classification/type forms.
func generalizedQueries(question string) []string {
	if !strings.Contains(question, "有哪些") && !strings.Contains(question, "包括") {
		return nil
	}
	generalized := question
	for _, marker := range []string{"有哪些", "包括", "分别是", "都有"} {
		generalized = strings.ReplaceAll(generalized, marker, "")
	}
	generalized = strings.TrimSpace(stripTerminators(generalized))
	if len([]rune(generalized)) <= minQueryLen {
		return nil
	}
	return []string{generalized, generalized + "的分类", generalized + "的类型"}
}

func stripTerminators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '？' || r == '。' {
			return -1
		}
		return r
	}, s)
}

// Tokenize splits on whitespace and punctuation boundaries.
func Tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}
