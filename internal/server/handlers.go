package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/index"
	"github.com/hyperjump/kotaeru/internal/ingest"
	"github.com/hyperjump/kotaeru/internal/llm"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/query"
	"github.com/hyperjump/kotaeru/internal/registry"
	"github.com/hyperjump/kotaeru/internal/search"
)

type ingestRequest struct {
	SessionID         string            `json:"session_id"`
	Filename          string            `json:"filename"`
	Text              string            `json:"text"`
	Pages             []models.PageSpan `json:"pages,omitempty"`
	EmbeddingProvider string            `json:"embedding_provider,omitempty"`
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.Text == "" {
		s.respondError(w, http.StatusBadRequest, "session_id and text are required")
		return
	}
	meta, err := s.ingestor.Ingest(r.Context(), ingest.Input{
		SessionID: req.SessionID,
		Filename:  req.Filename,
		Text:      req.Text,
		Pages:     req.Pages,
		FileSize:  int64(len(req.Text)),
		Provider:  req.EmbeddingProvider,
	})
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.respondError(w, http.StatusBadRequest, "session_id query parameter is required")
		return
	}
	docs, err := s.registry.ListBySession(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []models.DocumentMetadata{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	meta, err := s.registry.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, meta)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.registry.Get(r.Context(), id); err != nil {
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	if err := s.ingestor.Delete(r.Context(), id); err != nil {
		s.logger.Error("delete failed", zap.String("doc_id", id), zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"doc_id": id, "status": "deleted"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.orchestrator.Query(r.Context(), req)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req models.CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" || req.SessionID == "" {
		s.respondError(w, http.StatusBadRequest, "question and session_id are required")
		return
	}
	resp, err := s.orchestrator.Compare(r.Context(), req)
	if err != nil {
		s.logger.Error("compare failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForError maps domain errors to HTTP status codes. Validation
// failures surface as 400 via explicit checks in the handlers; anything
// unrecognized is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, index.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, search.ErrNoDocuments),
		errors.Is(err, query.ErrInsufficientDocuments),
		errors.Is(err, index.ErrDimensionMismatch),
		errors.Is(err, embedding.ErrUnknownProvider),
		errors.Is(err, llm.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.Is(err, embedding.ErrRateLimited), errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, embedding.ErrUnavailable), errors.Is(err, llm.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
