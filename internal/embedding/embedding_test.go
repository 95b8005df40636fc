package embedding

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/kotaeru/internal/config"
)

func testEmbeddingConfig() config.EmbeddingConfig {
	return config.EmbeddingConfig{DefaultProvider: "mock"}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	a, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 16 {
		t.Fatalf("got %d dims, want 16", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at %d", i)
		}
	}
	c, _ := e.Embed(context.Background(), "a different text")
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
}

func TestMockEmbedder_UnitNorm(t *testing.T) {
	e := NewMockEmbedder(32)
	v, err := e.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Errorf("squared norm = %f, want 1", sum)
	}
}

// countingEmbedder tracks how many texts reach the underlying provider.
type countingEmbedder struct {
	*MockEmbedder
	embedded atomic.Int64
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.embedded.Add(1)
	return e.MockEmbedder.Embed(ctx, text)
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.embedded.Add(int64(len(texts)))
	return e.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_SkipsRepeats(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	e := NewCachedEmbedder(inner, 100)

	if _, err := e.Embed(context.Background(), "alpha"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "alpha"); err != nil {
		t.Fatal(err)
	}
	if got := inner.embedded.Load(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
}

func TestCachedEmbedder_BatchPartialHit(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	e := NewCachedEmbedder(inner, 100)

	if _, err := e.Embed(context.Background(), "alpha"); err != nil {
		t.Fatal(err)
	}
	vecs, err := e.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	// alpha was cached; only beta and gamma hit the provider.
	if got := inner.embedded.Load(); got != 3 {
		t.Errorf("provider texts = %d, want 3", got)
	}
	want, _ := inner.MockEmbedder.Embed(context.Background(), "beta")
	for i := range want {
		if vecs[1][i] != want[i] {
			t.Fatal("batch result does not match direct embedding")
		}
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry(testEmbeddingConfig(), 10)
	if _, err := r.Get("no-such-provider"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("got %v, want ErrUnknownProvider", err)
	}
}

func TestRegistry_DefaultAndReuse(t *testing.T) {
	r := NewRegistry(testEmbeddingConfig(), 10)
	a, err := r.Get("")
	if err != nil {
		t.Fatal(err)
	}
	if a.Name() != "mock" {
		t.Errorf("default provider = %s, want mock", a.Name())
	}
	b, err := r.Get("mock")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("registry constructed the provider twice")
	}
}
