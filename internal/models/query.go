package models

import (
	"fmt"
	"strings"
)

// QueryRequest is a retrieval-augmented question over session documents.
// An empty DocIDs means all documents in the session. Provider fields
// select the embedding/LLM backends per request; empty means the
// configured default.
type QueryRequest struct {
	Question          string                `json:"question"`
	SessionID         string                `json:"session_id"`
	DocIDs            []string              `json:"doc_ids,omitempty"`
	EmbeddingProvider string                `json:"embedding_provider,omitempty"`
	LLMProvider       string                `json:"llm_provider,omitempty"`
	TopK              int                   `json:"top_k,omitempty"`
	IncludeSources    bool                  `json:"include_sources"`
	History           []ConversationMessage `json:"history,omitempty"`
}

const maxQuestionLen = 2000

// Validate normalizes the request and returns an error for invalid fields.
// TopK defaults to 5 and is capped at 20.
func (q *QueryRequest) Validate() error {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if len(q.Question) > maxQuestionLen {
		return fmt.Errorf("question exceeds %d characters", maxQuestionLen)
	}
	if q.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if q.TopK <= 0 {
		q.TopK = 5
	}
	if q.TopK > 20 {
		q.TopK = 20
	}
	return nil
}

// QueryResponse is the answer to a QueryRequest with citations and timing.
type QueryResponse struct {
	Answer           string   `json:"answer"`
	Sources          []Source `json:"sources"`
	DocIDsUsed       []string `json:"doc_ids_used"`
	ProcessingTimeMS float64  `json:"processing_time_ms"`
}

// CompareRequest asks the same question of several documents independently.
type CompareRequest struct {
	Question          string   `json:"question"`
	SessionID         string   `json:"session_id"`
	DocIDs            []string `json:"doc_ids"`
	EmbeddingProvider string   `json:"embedding_provider,omitempty"`
	LLMProvider       string   `json:"llm_provider,omitempty"`
}

// CompareResponse holds per-document answers plus a synthesized summary.
type CompareResponse struct {
	Question         string           `json:"question"`
	Comparisons      []DocumentAnswer `json:"comparisons"`
	Summary          string           `json:"summary"`
	ProcessingTimeMS float64          `json:"processing_time_ms"`
}
