package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/kotaeru/internal/models"
)

func newTestRegistry(t *testing.T) *SQLiteRegistry {
	t.Helper()
	r, err := NewSQLiteRegistry(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func testMeta(docID, sessionID string) models.DocumentMetadata {
	return models.DocumentMetadata{
		DocID:             docID,
		SessionID:         sessionID,
		Filename:          docID + ".txt",
		FileSize:          1024,
		NumPages:          3,
		ChunkCount:        7,
		EmbeddingProvider: "mock",
		EmbeddingDim:      384,
		UploadedAt:        time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteRegistry_CreateGet(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	want := testMeta("doc-1", "sess-a")
	if err := r.Create(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := r.Get(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != want.Filename || got.ChunkCount != 7 || got.EmbeddingProvider != "mock" || got.EmbeddingDim != 384 {
		t.Errorf("got %+v", got)
	}
	if !got.UploadedAt.Equal(want.UploadedAt) {
		t.Errorf("uploaded_at = %v, want %v", got.UploadedAt, want.UploadedAt)
	}
}

func TestSQLiteRegistry_GetMissing(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSQLiteRegistry_CreateRequiresID(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Create(context.Background(), models.DocumentMetadata{SessionID: "s"}); err == nil {
		t.Fatal("expected error for empty doc id")
	}
}

func TestSQLiteRegistry_ListBySession(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	for _, id := range []string{"doc-1", "doc-2"} {
		if err := r.Create(ctx, testMeta(id, "sess-a")); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Create(ctx, testMeta("doc-3", "sess-b")); err != nil {
		t.Fatal(err)
	}

	docs, err := r.ListBySession(ctx, "sess-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	for _, d := range docs {
		if d.SessionID != "sess-a" {
			t.Errorf("document %s belongs to %s", d.DocID, d.SessionID)
		}
	}

	n, err := r.CountBySession(ctx, "sess-b")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestSQLiteRegistry_Delete(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	if err := r.Create(ctx, testMeta("doc-1", "sess-a")); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(ctx, "doc-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get(ctx, "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v after delete, want ErrNotFound", err)
	}
	// Deleting again is a no-op.
	if err := r.Delete(ctx, "doc-1"); err != nil {
		t.Fatal(err)
	}
}

func TestSQLiteRegistry_UpsertReplaces(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	meta := testMeta("doc-1", "sess-a")
	if err := r.Create(ctx, meta); err != nil {
		t.Fatal(err)
	}
	meta.ChunkCount = 42
	if err := r.Create(ctx, meta); err != nil {
		t.Fatal(err)
	}
	got, err := r.Get(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ChunkCount != 42 {
		t.Errorf("chunk count = %d, want 42", got.ChunkCount)
	}
}
