// Package prompt assembles the answer and verification prompts fed to the
// language model. Pure string building; no I/O.
package prompt

import (
	"fmt"
	"strings"

	"ai-docqa-be/pkg/rag/retrieve"
	"ai-docqa-be/pkg/store"
)

// verdict markers of the verification contract. The verifier's free-text
// output triggers a revision only when both appear; see MergeVerification.
const (
	failMarker    = "verdict: fail"
	revisedMarker = "revised_answer:"
)

// BuildAnswerPrompt enumerates the surviving chunks as indexed evidence and
// appends the strict answering instructions.
func BuildAnswerPrompt(question string, chunks []store.Chunk) string {
	var b strings.Builder

	b.WriteString("你是一个精确的文档问答助手。\n\n")
	b.WriteString("### 参考文档：\n")
	for i, c := range chunks {
		source := retrieve.ReadableFileName(c.Source())
		if source == "" {
			source = "unknown"
		}
		b.WriteString(fmt.Sprintf("[文档片段 %d]（来源：%s）\n%s\n\n", i+1, source, c.Text))
	}

	b.WriteString("### 用户问题：\n")
	b.WriteString(question)
	b.WriteString("\n\n")

	b.WriteString("### 回答要求：\n")
	b.WriteString("1. 【重要】仔细阅读所有文档片段，不要遗漏任何信息\n")
	b.WriteString("2. 【重要】如果问题是'有哪些''分为几个'等列举类问题，必须完整列出文档中提到的每一个类别，即使某些描述很简短\n")
	b.WriteString("3. 严格基于上述文档内容回答，不得添加文档外的信息\n")
	b.WriteString("4. 引用依据时标注对应的文档片段编号，例如（见片段 2）\n")
	b.WriteString("5. 答案格式：先总结有几个类别，再逐一说明每个类别的特点\n")
	b.WriteString("6. 如果文档中确实没有相关信息，才说明'文档中未提及'\n\n")

	b.WriteString("### 回答：\n")
	return b.String()
}

// BuildVerificationPrompt asks a downstream model to judge whether the draft
// answer is fully supported by the same evidence, and to produce a revised
// answer when it is not.
func BuildVerificationPrompt(question, draftAnswer string, chunks []store.Chunk) string {
	var b strings.Builder

	b.WriteString("你是一个严格的答案校验器。请逐条核对下面的草稿回答是否完全由参考文档支持。\n\n")
	b.WriteString("### 参考文档：\n")
	for i, c := range chunks {
		b.WriteString(fmt.Sprintf("[文档片段 %d]\n%s\n\n", i+1, c.Text))
	}

	b.WriteString("### 用户问题：\n")
	b.WriteString(question)
	b.WriteString("\n\n### 草稿回答：\n")
	b.WriteString(draftAnswer)
	b.WriteString("\n\n### 校验要求：\n")
	b.WriteString("1. 检查草稿中每一条结论是否能在文档片段中找到依据\n")
	b.WriteString("2. 检查列举类问题是否遗漏了文档中提到的类别\n")
	b.WriteString("3. 如果草稿完全可靠，仅输出一行：verdict: pass\n")
	b.WriteString("4. 如果草稿有遗漏或文档外信息，输出 verdict: fail，")
	b.WriteString("并在下一行以 revised_answer: 开头给出修正后的完整回答\n")
	return b.String()
}

// HistoryContext renders prior session turns as a role-prefixed block for
// prompt injection. Empty history renders as "无".
func HistoryContext(turns []store.Turn) string {
	if len(turns) == 0 {
		return "无"
	}
	var b strings.Builder
	for _, t := range turns {
		role := t.Role
		if role == "" {
			role = "unknown"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// MergeVerification replaces the draft with the verifier's revision only
// when the output carries both the fail verdict and a revised answer;
// otherwise the draft stands. The substring contract is brittle against
// formatting drift and is isolated here so a structured replacement can
// swap in without touching callers.
func MergeVerification(draftAnswer, verifyResult string) string {
	if strings.TrimSpace(verifyResult) == "" {
		return draftAnswer
	}
	lower := strings.ToLower(verifyResult)
	if !strings.Contains(lower, failMarker) || !strings.Contains(lower, revisedMarker) {
		return draftAnswer
	}
	idx := strings.Index(lower, revisedMarker)
	return strings.TrimSpace(verifyResult[idx+len(revisedMarker):])
}
