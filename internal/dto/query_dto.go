package dto

type QueryRequest struct {
	Question    string   `json:"question" validate:"required,min=1"`
	SessionId   string   `json:"session_id,omitempty"`
	SourceFiles []string `json:"source_files,omitempty"`
	FileTypes   []string `json:"file_types,omitempty"`
}

type CitationDTO struct {
	Index   int    `json:"index"`
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
}

type QueryResponse struct {
	Answer    string        `json:"answer"`
	SessionId string        `json:"session_id,omitempty"`
	Sources   []string      `json:"sources,omitempty"`
	Citations []CitationDTO `json:"citations,omitempty"`

	// Draft and Verification expose the two-pass pipeline: Draft is the
	// pre-verification answer (set only when the verification revised it)
	// and Verification is the raw verdict text from the checking pass.
	Draft           string `json:"draft,omitempty"`
	Verification    string `json:"verification,omitempty"`
	RetrievedChunks int    `json:"retrieved_chunks"`
}

// StreamEvent is one SSE frame of a streaming answer. Type is "token" while
// the model is generating, "meta" for the trailing citation payload, "done"
// when the stream is complete and "error" on failure.
type StreamEvent struct {
	Type      string        `json:"type"`
	Content   string        `json:"content,omitempty"`
	SessionId string        `json:"session_id,omitempty"`
	Sources   []string      `json:"sources,omitempty"`
	Citations []CitationDTO `json:"citations,omitempty"`
}
