package service

import (
	"context"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/pkg/store"

	"github.com/gofiber/fiber/v2"
)

type ISessionService interface {
	Create(ctx context.Context, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	List(ctx context.Context) ([]*dto.SessionSummaryResponse, error)
	History(ctx context.Context, sessionId string) (*dto.SessionHistoryResponse, error)
	Clear(ctx context.Context, sessionId string) (bool, error)
}

type sessionService struct {
	sessions *store.SessionStore
}

func NewSessionService(sessions *store.SessionStore) ISessionService {
	return &sessionService{sessions: sessions}
}

func (s *sessionService) Create(_ context.Context, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	name := ""
	if req != nil {
		name = req.Name
	}
	id := s.sessions.Create(name)

	session, _ := s.sessions.Get(id)
	return &dto.CreateSessionResponse{
		SessionId: id,
		Name:      session.Name,
	}, nil
}

func (s *sessionService) List(_ context.Context) ([]*dto.SessionSummaryResponse, error) {
	summaries := s.sessions.List()
	resp := make([]*dto.SessionSummaryResponse, len(summaries))
	for i, sum := range summaries {
		resp[i] = &dto.SessionSummaryResponse{
			SessionId: sum.SessionID,
			Name:      sum.Name,
			UpdatedAt: sum.UpdatedAt,
			TurnCount: sum.Turns,
		}
	}
	return resp, nil
}

func (s *sessionService) History(_ context.Context, sessionId string) (*dto.SessionHistoryResponse, error) {
	session, ok := s.sessions.Get(sessionId)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "session not found")
	}

	turns := make([]dto.SessionTurnResponse, len(session.Turns))
	for i, t := range session.Turns {
		turns[i] = dto.SessionTurnResponse{
			Role:    t.Role,
			Content: t.Content,
		}
	}
	return &dto.SessionHistoryResponse{
		SessionId: session.SessionID,
		Turns:     turns,
	}, nil
}

func (s *sessionService) Clear(_ context.Context, sessionId string) (bool, error) {
	return s.sessions.Clear(sessionId), nil
}
