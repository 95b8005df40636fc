// Package search runs bounded-concurrency retrieval across many document
// indices and merges the per-document results into a global ranking.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/index"
	"github.com/hyperjump/kotaeru/internal/models"
)

// ErrNoDocuments reports a search over an empty document set.
var ErrNoDocuments = errors.New("no documents to search")

// CrossSearcher fans a query out over document indices. Documents that
// cannot be searched (missing or empty index, deadline passed) are skipped
// so one bad document never sinks the whole query; structural errors like
// a dimension mismatch or a corrupt record abort it.
type CrossSearcher struct {
	cache  *index.Cache
	cfg    config.SearchConfig
	logger *zap.Logger
}

// NewCrossSearcher creates a searcher over cache. logger may be nil.
func NewCrossSearcher(cache *index.Cache, cfg config.SearchConfig, logger *zap.Logger) *CrossSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CrossSearcher{cache: cache, cfg: cfg, logger: logger}
}

// Search retrieves the topKPerDoc best chunks from each document in
// docIDs, then merges them into a single ranking truncated to globalTopK.
// providerID names the embedding provider that produced query; a document
// indexed by a different provider aborts the search, since scores across
// provider vector spaces are meaningless even when dimensions agree.
// Zero or negative limits fall back to the configured defaults. Fails with
// ErrNoDocuments when docIDs is empty.
func (s *CrossSearcher) Search(ctx context.Context, docIDs []string, query []float32, providerID string, topKPerDoc, globalTopK int) ([]models.SearchResult, error) {
	if len(docIDs) == 0 {
		return nil, ErrNoDocuments
	}
	if topKPerDoc <= 0 {
		topKPerDoc = s.cfg.TopKPerDocument
	}
	if globalTopK <= 0 {
		globalTopK = s.cfg.MaxTotalResults
	}
	if s.cfg.QueryTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.QueryTimeoutSeconds)*time.Second)
		defer cancel()
	}

	var (
		mu        sync.Mutex
		collected [][]models.SearchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.MaxConcurrentSearches > 0 {
		g.SetLimit(s.cfg.MaxConcurrentSearches)
	}
	for _, docID := range docIDs {
		docID := docID
		g.Go(func() error {
			results, err := s.searchOne(gctx, docID, query, providerID, topKPerDoc)
			if err != nil {
				return err
			}
			if results == nil {
				return nil
			}
			mu.Lock()
			collected = append(collected, results)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(collected, globalTopK), nil
}

// searchOne returns one document's results, nil results for a skipped
// document, or an error that should abort the whole query.
func (s *CrossSearcher) searchOne(ctx context.Context, docID string, query []float32, providerID string, k int) ([]models.SearchResult, error) {
	idx, err := s.cache.GetOrLoad(ctx, docID)
	switch {
	case err == nil:
	case errors.Is(err, index.ErrNotFound):
		s.logger.Warn("skipping document with no index", zap.String("doc_id", docID))
		return nil, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.Warn("skipping document, deadline passed", zap.String("doc_id", docID))
		return nil, nil
	default:
		return nil, fmt.Errorf("document %s: %w", docID, err)
	}

	if providerID != "" && idx.ProviderID() != providerID {
		return nil, fmt.Errorf("document %s: %w: index embedded by %s, query embedded by %s",
			docID, index.ErrDimensionMismatch, idx.ProviderID(), providerID)
	}

	results, err := idx.Search(query, k)
	switch {
	case err == nil:
		return results, nil
	case errors.Is(err, index.ErrEmptyIndex):
		s.logger.Warn("skipping document with empty index", zap.String("doc_id", docID))
		return nil, nil
	default:
		return nil, fmt.Errorf("document %s: %w", docID, err)
	}
}
