// Package ingest turns raw document text into a searchable, registered
// index: chunk, embed, build, persist, catalog.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/chunker"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/index"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/registry"
)

// Input describes a document to ingest. DocID is assigned when empty.
// Provider selects the embedding provider; empty means the default.
type Input struct {
	DocID     string
	SessionID string
	Filename  string
	Text      string
	Pages     []models.PageSpan
	FileSize  int64
	Provider  string
}

// Ingestor runs the ingestion pipeline and the inverse teardown.
type Ingestor struct {
	chunker   *chunker.Chunker
	embedders *embedding.Registry
	cache     *index.Cache
	registry  registry.Registry
	logger    *zap.Logger
}

// NewIngestor creates an ingestor. logger may be nil.
func NewIngestor(ch *chunker.Chunker, embedders *embedding.Registry, cache *index.Cache, reg registry.Registry, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		chunker:   ch,
		embedders: embedders,
		cache:     cache,
		registry:  reg,
		logger:    logger,
	}
}

// Ingest chunks and embeds input, persists the resulting index, and
// registers the document. When registration fails the persisted index is
// removed again so no orphaned record remains.
func (in *Ingestor) Ingest(ctx context.Context, input Input) (models.DocumentMetadata, error) {
	if input.DocID == "" {
		input.DocID = uuid.New().String()
	}
	embedder, err := in.embedders.Get(input.Provider)
	if err != nil {
		return models.DocumentMetadata{}, err
	}

	chunks := in.chunker.Chunk(input.DocID, input.Text, input.Pages)
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return models.DocumentMetadata{}, fmt.Errorf("embed document: %w", err)
	}

	idx, err := index.Build(input.DocID, embedder.Name(), embedder.Dimensions(), chunks, vectors)
	if err != nil {
		return models.DocumentMetadata{}, fmt.Errorf("build index: %w", err)
	}
	if err := in.cache.Put(ctx, idx); err != nil {
		return models.DocumentMetadata{}, err
	}

	meta := models.DocumentMetadata{
		DocID:             input.DocID,
		SessionID:         input.SessionID,
		Filename:          input.Filename,
		FileSize:          input.FileSize,
		NumPages:          len(input.Pages),
		ChunkCount:        len(chunks),
		EmbeddingProvider: embedder.Name(),
		EmbeddingDim:      embedder.Dimensions(),
		UploadedAt:        time.Now().UTC(),
	}
	if err := in.registry.Create(ctx, meta); err != nil {
		_ = in.cache.Delete(context.WithoutCancel(ctx), input.DocID)
		return models.DocumentMetadata{}, fmt.Errorf("register document: %w", err)
	}
	in.logger.Info("document ingested",
		zap.String("doc_id", input.DocID),
		zap.String("filename", input.Filename),
		zap.Int("chunks", len(chunks)),
		zap.String("provider", embedder.Name()))
	return meta, nil
}

// IngestFile reads path from disk and ingests it as plain text.
func (in *Ingestor) IngestFile(ctx context.Context, path, sessionID, provider string) (models.DocumentMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.DocumentMetadata{}, fmt.Errorf("read %s: %w", path, err)
	}
	return in.Ingest(ctx, Input{
		SessionID: sessionID,
		Filename:  filepath.Base(path),
		Text:      string(data),
		FileSize:  int64(len(data)),
		Provider:  provider,
	})
}

// Delete removes a document's index and registry record.
func (in *Ingestor) Delete(ctx context.Context, docID string) error {
	if err := in.cache.Delete(ctx, docID); err != nil {
		return err
	}
	if err := in.registry.Delete(ctx, docID); err != nil {
		return err
	}
	in.logger.Info("document deleted", zap.String("doc_id", docID))
	return nil
}
