// Package query answers questions over ingested documents: retrieve
// relevant chunks, build a cited context, and generate an answer.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/llm"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/registry"
	"github.com/hyperjump/kotaeru/internal/search"
	"github.com/hyperjump/kotaeru/pkg/utils"
)

// ErrInsufficientDocuments reports a comparison over fewer than two documents.
var ErrInsufficientDocuments = errors.New("comparison requires at least two documents")

// noAnswerFound is returned verbatim when retrieval yields nothing; no
// LLM call is made in that case.
const noAnswerFound = "No relevant information found in the provided documents."

// sourceSnippetLen caps cited excerpt length in responses.
const sourceSnippetLen = 200

// Orchestrator wires retrieval and generation into the two user-facing
// operations: Query and Compare.
type Orchestrator struct {
	searcher  *search.CrossSearcher
	embedders *embedding.Registry
	llms      *llm.Registry
	registry  registry.Registry
	cfg       config.SearchConfig
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator. logger may be nil.
func NewOrchestrator(searcher *search.CrossSearcher, embedders *embedding.Registry, llms *llm.Registry, reg registry.Registry, cfg config.SearchConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		searcher:  searcher,
		embedders: embedders,
		llms:      llms,
		registry:  reg,
		cfg:       cfg,
		logger:    logger,
	}
}

// Query retrieves the most relevant chunks across the session's documents
// and generates an answer grounded in them.
func (o *Orchestrator) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	docIDs, filenames, err := o.resolveDocuments(ctx, req.SessionID, req.DocIDs)
	if err != nil {
		return nil, err
	}

	embedder, err := o.embedders.Get(req.EmbeddingProvider)
	if err != nil {
		return nil, err
	}
	provider, err := o.llms.Get(req.LLMProvider)
	if err != nil {
		return nil, err
	}

	qvec, err := embedder.Embed(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	results, err := o.searcher.Search(ctx, docIDs, qvec, embedder.Name(), o.cfg.TopKPerDocument, req.TopK)
	if err != nil {
		return nil, err
	}

	resp := &models.QueryResponse{}
	if len(results) == 0 {
		resp.Answer = noAnswerFound
		resp.ProcessingTimeMS = float64(time.Since(start).Microseconds()) / 1000
		return resp, nil
	}

	prompt := answerPrompt(buildContext(results, filenames), req.Question)
	answer, err := provider.Generate(ctx, prompt, answerSystemPrompt, req.History)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	resp.Answer = answer
	resp.DocIDsUsed = usedDocIDs(results)
	if req.IncludeSources {
		resp.Sources = buildSources(results, filenames)
	}
	resp.ProcessingTimeMS = float64(time.Since(start).Microseconds()) / 1000
	o.logger.Info("query answered",
		zap.String("session_id", req.SessionID),
		zap.Int("results", len(results)),
		zap.Int("documents", len(resp.DocIDsUsed)),
		zap.Float64("elapsed_ms", resp.ProcessingTimeMS))
	return resp, nil
}

// Compare answers the same question from each document independently and
// synthesizes a comparison of the answers. It requires at least two
// documents and verifies that before any embedding or LLM call.
func (o *Orchestrator) Compare(ctx context.Context, req models.CompareRequest) (*models.CompareResponse, error) {
	start := time.Now()
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}
	if req.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	docIDs, filenames, err := o.resolveDocuments(ctx, req.SessionID, req.DocIDs)
	if err != nil {
		return nil, err
	}
	if len(docIDs) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientDocuments, len(docIDs))
	}

	embedder, err := o.embedders.Get(req.EmbeddingProvider)
	if err != nil {
		return nil, err
	}
	provider, err := o.llms.Get(req.LLMProvider)
	if err != nil {
		return nil, err
	}
	qvec, err := embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	answers := make([]models.DocumentAnswer, 0, len(docIDs))
	for _, docID := range docIDs {
		answer, err := o.answerFromDocument(ctx, provider, docID, filenames[docID], qvec, embedder.Name(), question)
		if err != nil {
			return nil, err
		}
		answers = append(answers, answer)
	}

	summary, err := provider.Generate(ctx, synthesisPrompt(question, answers), compareSystemPrompt, nil)
	if err != nil {
		return nil, fmt.Errorf("synthesize comparison: %w", err)
	}
	return &models.CompareResponse{
		Question:         question,
		Comparisons:      answers,
		Summary:          summary,
		ProcessingTimeMS: float64(time.Since(start).Microseconds()) / 1000,
	}, nil
}

// answerFromDocument answers the question from a single document's chunks.
func (o *Orchestrator) answerFromDocument(ctx context.Context, provider llm.Provider, docID, filename string, qvec []float32, embeddedBy, question string) (models.DocumentAnswer, error) {
	out := models.DocumentAnswer{DocID: docID, Filename: filename}
	results, err := o.searcher.Search(ctx, []string{docID}, qvec, embeddedBy, o.cfg.TopKPerDocument, o.cfg.TopKPerDocument)
	if err != nil {
		return out, fmt.Errorf("search document %s: %w", docID, err)
	}
	if len(results) == 0 {
		out.Answer = noAnswerFound
		return out, nil
	}
	prompt := answerPrompt(buildContext(results, map[string]string{docID: filename}), question)
	answer, err := provider.Generate(ctx, prompt, answerSystemPrompt, nil)
	if err != nil {
		return out, fmt.Errorf("answer from document %s: %w", docID, err)
	}
	out.Answer = answer
	out.Sources = buildSources(results, map[string]string{docID: filename})
	return out, nil
}

// resolveDocuments expands an empty id list to every document in the
// session, and verifies ownership of explicitly named documents.
func (o *Orchestrator) resolveDocuments(ctx context.Context, sessionID string, docIDs []string) ([]string, map[string]string, error) {
	filenames := make(map[string]string)
	if len(docIDs) == 0 {
		docs, err := o.registry.ListBySession(ctx, sessionID)
		if err != nil {
			return nil, nil, fmt.Errorf("list session documents: %w", err)
		}
		ids := make([]string, 0, len(docs))
		for _, d := range docs {
			ids = append(ids, d.DocID)
			filenames[d.DocID] = d.Filename
		}
		return ids, filenames, nil
	}
	for _, id := range docIDs {
		meta, err := o.registry.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if meta.SessionID != sessionID {
			return nil, nil, fmt.Errorf("%w: %s", registry.ErrNotFound, id)
		}
		filenames[id] = meta.Filename
	}
	return docIDs, filenames, nil
}

func usedDocIDs(results []models.SearchResult) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range results {
		if !seen[r.DocID] {
			seen[r.DocID] = true
			ids = append(ids, r.DocID)
		}
	}
	return ids
}

func buildSources(results []models.SearchResult, filenames map[string]string) []models.Source {
	sources := make([]models.Source, len(results))
	for i, r := range results {
		sources[i] = models.Source{
			DocID:      r.DocID,
			Filename:   filenames[r.DocID],
			ChunkID:    r.ChunkID,
			Text:       utils.Truncate(r.Text, sourceSnippetLen),
			PageNumber: r.PageNumber,
			Score:      r.Score,
		}
	}
	return sources
}
