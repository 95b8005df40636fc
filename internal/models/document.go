// Package models defines core data structures for documents, chunks, queries, and results.
package models

import "time"

// Chunk is the atomic unit of retrievable text within a document.
// Start and End are byte offsets into the source text; SequenceIndex
// preserves reading order within the document.
type Chunk struct {
	ID            string `json:"id"`
	DocID         string `json:"doc_id"`
	Text          string `json:"text"`
	SequenceIndex int    `json:"sequence_index"`
	PageNumber    int    `json:"page_number,omitempty"` // 0 = unknown
	Start         int    `json:"start"`
	End           int    `json:"end"`
}

// PageSpan maps a page number to its byte range in the extracted text.
// Used to assign page provenance to chunks by start offset.
type PageSpan struct {
	Page  int `json:"page"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// PageForOffset returns the page containing the byte offset, or 0 if no
// span covers it.
func PageForOffset(pages []PageSpan, offset int) int {
	for _, p := range pages {
		if offset >= p.Start && offset < p.End {
			return p.Page
		}
	}
	return 0
}

// DocumentMetadata describes an ingested document. The embedding provider
// and dimension are recorded so queries can detect provider mismatches.
type DocumentMetadata struct {
	DocID             string    `json:"doc_id"`
	SessionID         string    `json:"session_id"`
	Filename          string    `json:"filename"`
	FileSize          int64     `json:"file_size"`
	NumPages          int       `json:"num_pages"`
	ChunkCount        int       `json:"chunk_count"`
	EmbeddingProvider string    `json:"embedding_provider"`
	EmbeddingDim      int       `json:"embedding_dimension"`
	UploadedAt        time.Time `json:"uploaded_at"`
}

// ConversationMessage is a single turn of conversation history passed to
// the LLM provider.
type ConversationMessage struct {
	Role    string `json:"role"` // "user", "assistant", or "system"
	Content string `json:"content"`
}
