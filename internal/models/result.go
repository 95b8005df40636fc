package models

// SearchResult is one retrieved chunk with its similarity score.
// Scores are comparable only within a single query; raw similarity scales
// differ across providers.
type SearchResult struct {
	DocID         string  `json:"doc_id"`
	ChunkID       string  `json:"chunk_id"`
	Text          string  `json:"text"`
	PageNumber    int     `json:"page_number,omitempty"`
	SequenceIndex int     `json:"sequence_index"`
	Score         float64 `json:"score"`
}

// Source is a citation entry returned alongside a generated answer.
type Source struct {
	DocID      string  `json:"doc_id"`
	Filename   string  `json:"filename"`
	ChunkID    string  `json:"chunk_id"`
	Text       string  `json:"text"`
	PageNumber int     `json:"page_number,omitempty"`
	Score      float64 `json:"score"`
}

// DocumentAnswer is one document's individual answer within a comparison.
type DocumentAnswer struct {
	DocID    string   `json:"doc_id"`
	Filename string   `json:"filename"`
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources,omitempty"`
}
