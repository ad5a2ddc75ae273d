package dto

import "time"

type CreateSessionRequest struct {
	Name string `json:"name"`
}

type CreateSessionResponse struct {
	SessionId string `json:"session_id"`
	Name      string `json:"name"`
}

type SessionSummaryResponse struct {
	SessionId string    `json:"session_id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
	TurnCount int       `json:"turn_count"`
}

type SessionTurnResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type SessionHistoryResponse struct {
	SessionId string                `json:"session_id"`
	Turns     []SessionTurnResponse `json:"turns"`
}
