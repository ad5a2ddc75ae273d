package service

import (
	"context"
	"strings"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/rag/prompt"
	"ai-docqa-be/pkg/rag/retrieve"
	"ai-docqa-be/pkg/store"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultSessionId = "default"
	noResultsAnswer  = "抱歉，未找到相关文档内容，请确认已上传相关文档。"
)

// StreamEmitter receives SSE frames of a streaming answer. Returning an
// error aborts the stream (client gone).
type StreamEmitter func(event dto.StreamEvent) error

type IQueryService interface {
	Query(ctx context.Context, req *dto.QueryRequest) (*dto.QueryResponse, error)
	// QueryStream answers with incremental token events followed by one meta
	// event and a done event. The draft-verification pass is skipped when
	// streaming; tokens already shown cannot be retracted.
	QueryStream(ctx context.Context, req *dto.QueryRequest, emit StreamEmitter) error
}

type queryService struct {
	orchestrator *retrieve.Orchestrator
	llmProvider  llm.LLMProvider
	sessions     *store.SessionStore
	logger       logger.ILogger
}

func NewQueryService(
	orchestrator *retrieve.Orchestrator,
	llmProvider llm.LLMProvider,
	sessions *store.SessionStore,
	logger logger.ILogger,
) IQueryService {
	return &queryService{
		orchestrator: orchestrator,
		llmProvider:  llmProvider,
		sessions:     sessions,
		logger:       logger,
	}
}

func (s *queryService) Query(ctx context.Context, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	question, sessionId, opts, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	chunks, err := s.orchestrator.Retrieve(ctx, question, opts)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return &dto.QueryResponse{
			Answer:    noResultsAnswer,
			SessionId: sessionId,
		}, nil
	}

	fullPrompt := s.buildPromptWithHistory(question, sessionId, chunks)
	draft, err := s.llmProvider.Generate(ctx, fullPrompt)
	if err != nil {
		return nil, err
	}

	verifyPrompt := prompt.BuildVerificationPrompt(question, draft, chunks)
	verdict, err := s.llmProvider.Generate(ctx, verifyPrompt)
	if err != nil {
		// The draft already answers the question; verification is a quality
		// pass, not a gate.
		s.logger.Warn("QueryService", "verification pass failed, returning draft", map[string]interface{}{
			"error": err.Error(),
		})
		verdict = ""
	}
	finalAnswer := prompt.MergeVerification(draft, verdict)

	s.sessions.AppendTurn(sessionId, "user", question)
	s.sessions.AppendTurn(sessionId, "assistant", finalAnswer)

	citations, sources := citationPayload(chunks)
	resp := &dto.QueryResponse{
		Answer:          finalAnswer,
		SessionId:       sessionId,
		Sources:         sources,
		Citations:       citations,
		Verification:    strings.TrimSpace(verdict),
		RetrievedChunks: len(chunks),
	}
	if finalAnswer != draft {
		resp.Draft = draft
	}
	return resp, nil
}

func (s *queryService) QueryStream(ctx context.Context, req *dto.QueryRequest, emit StreamEmitter) error {
	question, sessionId, opts, err := s.prepare(req)
	if err != nil {
		return err
	}

	chunks, err := s.orchestrator.Retrieve(ctx, question, opts)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		if err := emit(dto.StreamEvent{Type: "token", Content: noResultsAnswer}); err != nil {
			return err
		}
		if err := emit(dto.StreamEvent{Type: "meta", SessionId: sessionId}); err != nil {
			return err
		}
		return emit(dto.StreamEvent{Type: "done"})
	}

	fullPrompt := s.buildPromptWithHistory(question, sessionId, chunks)

	answer, err := s.llmProvider.ChatStream(ctx,
		[]llm.Message{{Role: "user", Content: fullPrompt}},
		func(token string) error {
			return emit(dto.StreamEvent{Type: "token", Content: token})
		},
	)
	if err != nil {
		return err
	}

	s.sessions.AppendTurn(sessionId, "user", question)
	s.sessions.AppendTurn(sessionId, "assistant", answer)

	citations, sources := citationPayload(chunks)
	if err := emit(dto.StreamEvent{
		Type:      "meta",
		SessionId: sessionId,
		Sources:   sources,
		Citations: citations,
	}); err != nil {
		return err
	}
	return emit(dto.StreamEvent{Type: "done"})
}

func (s *queryService) prepare(req *dto.QueryRequest) (question, sessionId string, opts retrieve.Options, err error) {
	question = strings.TrimSpace(req.Question)
	if question == "" {
		return "", "", opts, fiber.NewError(fiber.StatusBadRequest, "question is required")
	}

	sessionId = strings.TrimSpace(req.SessionId)
	if sessionId == "" {
		sessionId = defaultSessionId
	}

	opts = retrieve.Options{
		SourceFiles: req.SourceFiles,
		FileTypes:   req.FileTypes,
	}
	return question, sessionId, opts, nil
}

func (s *queryService) buildPromptWithHistory(question, sessionId string, chunks []store.Chunk) string {
	history := prompt.HistoryContext(s.sessions.History(sessionId))
	return prompt.BuildAnswerPrompt(question, chunks) + "\n\n### 对话历史:\n" + history
}

func citationPayload(chunks []store.Chunk) ([]dto.CitationDTO, []string) {
	citations := retrieve.Citations(chunks)

	out := make([]dto.CitationDTO, len(citations))
	seen := map[string]bool{}
	var sources []string
	for i, c := range citations {
		out[i] = dto.CitationDTO{
			Index:   c.Index,
			Source:  c.Source,
			Snippet: c.Snippet,
		}
		if !seen[c.Source] {
			seen[c.Source] = true
			sources = append(sources, c.Source)
		}
	}
	return out, sources
}
