package prompt

import (
	"strings"
	"testing"

	"ai-docqa-be/pkg/store"
)

func TestBuildAnswerPromptNumbersChunks(t *testing.T) {
	chunks := []store.Chunk{
		{Text: "一星级要求。", Metadata: map[string]string{"source": "1712_标准.md"}},
		{Text: "二星级要求。", Metadata: map[string]string{"source": "1712_标准.md"}},
	}

	got := BuildAnswerPrompt("酒店星级有哪些", chunks)

	for _, want := range []string{
		"[文档片段 1]（来源：标准.md）",
		"[文档片段 2]（来源：标准.md）",
		"一星级要求。",
		"### 用户问题：\n酒店星级有哪些",
		"### 回答：",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("BuildAnswerPrompt() missing %q", want)
		}
	}
}

func TestBuildAnswerPromptUnknownSource(t *testing.T) {
	got := BuildAnswerPrompt("问题", []store.Chunk{{Text: "内容"}})
	if !strings.Contains(got, "（来源：unknown）") {
		t.Errorf("BuildAnswerPrompt() should fall back to unknown source")
	}
}

func TestBuildVerificationPromptContainsContract(t *testing.T) {
	got := BuildVerificationPrompt("问题", "草稿", []store.Chunk{{Text: "依据"}})

	for _, want := range []string{"verdict: pass", "verdict: fail", "revised_answer:", "草稿"} {
		if !strings.Contains(got, want) {
			t.Errorf("BuildVerificationPrompt() missing %q", want)
		}
	}
}

func TestHistoryContext(t *testing.T) {
	if got := HistoryContext(nil); got != "无" {
		t.Errorf("HistoryContext(nil) = %q, want 无", got)
	}

	got := HistoryContext([]store.Turn{
		{Role: "user", Content: "第一个问题"},
		{Role: "assistant", Content: "第一个回答"},
	})
	want := "user: 第一个问题\nassistant: 第一个回答\n"
	if got != want {
		t.Errorf("HistoryContext() = %q, want %q", got, want)
	}
}

func TestMergeVerification(t *testing.T) {
	tests := []struct {
		name   string
		draft  string
		verify string
		want   string
	}{
		{"empty verdict keeps draft", "草稿", "", "草稿"},
		{"pass keeps draft", "草稿", "verdict: pass", "草稿"},
		{"fail without revision keeps draft", "草稿", "verdict: fail 但没有修正", "草稿"},
		{"revision without fail keeps draft", "草稿", "revised_answer: 不该被采纳", "草稿"},
		{
			"fail with revision replaces draft",
			"草稿",
			"verdict: fail\nrevised_answer: 修正后的完整回答",
			"修正后的完整回答",
		},
		{
			"markers are case-insensitive",
			"草稿",
			"Verdict: FAIL\nRevised_Answer:   修正稿  ",
			"修正稿",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeVerification(tt.draft, tt.verify); got != tt.want {
				t.Errorf("MergeVerification() = %q, want %q", got, tt.want)
			}
		})
	}
}
