package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotaeru/internal/models"
)

// SQLiteRegistry stores document metadata in a documents table.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry opens or creates a SQLite database at dbPath and
// initializes the documents table. Parent directories are created if needed.
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		doc_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		num_pages INTEGER NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		embedding_provider TEXT NOT NULL,
		embedding_dimension INTEGER NOT NULL,
		uploaded_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_session ON documents(session_id);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteRegistry{db: db}, nil
}

// Create registers a document, replacing any previous record with the same id.
func (r *SQLiteRegistry) Create(ctx context.Context, meta models.DocumentMetadata) error {
	if meta.DocID == "" {
		return fmt.Errorf("doc id is required")
	}
	if meta.UploadedAt.IsZero() {
		meta.UploadedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents
			(doc_id, session_id, filename, file_size, num_pages, chunk_count,
			 embedding_provider, embedding_dimension, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			session_id = excluded.session_id,
			filename = excluded.filename,
			file_size = excluded.file_size,
			num_pages = excluded.num_pages,
			chunk_count = excluded.chunk_count,
			embedding_provider = excluded.embedding_provider,
			embedding_dimension = excluded.embedding_dimension,
			uploaded_at = excluded.uploaded_at`,
		meta.DocID, meta.SessionID, meta.Filename, meta.FileSize, meta.NumPages,
		meta.ChunkCount, meta.EmbeddingProvider, meta.EmbeddingDim, meta.UploadedAt)
	if err != nil {
		return fmt.Errorf("register document: %w", err)
	}
	return nil
}

// Get returns the metadata for docID, or ErrNotFound.
func (r *SQLiteRegistry) Get(ctx context.Context, docID string) (models.DocumentMetadata, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT doc_id, session_id, filename, file_size, num_pages, chunk_count,
		       embedding_provider, embedding_dimension, uploaded_at
		FROM documents WHERE doc_id = ?`, docID)
	meta, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DocumentMetadata{}, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	if err != nil {
		return models.DocumentMetadata{}, fmt.Errorf("load document: %w", err)
	}
	return meta, nil
}

// ListBySession returns all documents for a session, newest first.
func (r *SQLiteRegistry) ListBySession(ctx context.Context, sessionID string) ([]models.DocumentMetadata, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT doc_id, session_id, filename, file_size, num_pages, chunk_count,
		       embedding_provider, embedding_dimension, uploaded_at
		FROM documents WHERE session_id = ? ORDER BY uploaded_at DESC, doc_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.DocumentMetadata
	for rows.Next() {
		meta, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// CountBySession returns the number of documents a session owns.
func (r *SQLiteRegistry) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE session_id = ?", sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Delete removes the record for docID. Deleting a missing id is not an error.
func (r *SQLiteRegistry) Delete(ctx context.Context, docID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE doc_id = ?", docID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (r *SQLiteRegistry) Close() error { return r.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (models.DocumentMetadata, error) {
	var meta models.DocumentMetadata
	err := row.Scan(&meta.DocID, &meta.SessionID, &meta.Filename, &meta.FileSize,
		&meta.NumPages, &meta.ChunkCount, &meta.EmbeddingProvider,
		&meta.EmbeddingDim, &meta.UploadedAt)
	return meta, err
}
