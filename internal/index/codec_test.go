package index

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

func buildRandomIndex(t *testing.T, docID string, n, dim int) *DocumentIndex {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	chunks := testChunks(docID, n)
	for i := range chunks {
		chunks[i].PageNumber = i/2 + 1
		chunks[i].Start = i * 100
		chunks[i].End = i*100 + 100
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, dim)
		for j := range vectors[i] {
			vectors[i][j] = rng.Float32()*2 - 1
		}
	}
	idx, err := Build(docID, "mock", dim, chunks, vectors)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestCodec_RoundTripSearchFidelity(t *testing.T) {
	idx := buildRandomIndex(t, "doc-rt", 12, 8)
	data, err := idx.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.DocID() != "doc-rt" || decoded.ProviderID() != "mock" || decoded.Dimension() != 8 || decoded.Len() != 12 {
		t.Fatalf("decoded header mismatch: %s/%s/%d/%d",
			decoded.DocID(), decoded.ProviderID(), decoded.Dimension(), decoded.Len())
	}

	query := []float32{0.3, -0.2, 0.9, 0.1, -0.5, 0.4, 0.0, 0.7}
	before, err := idx.Search(query, 12)
	if err != nil {
		t.Fatal(err)
	}
	after, err := decoded.Search(query, 12)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Error("search results differ after round trip")
	}
}

func TestDecode_Corrupt(t *testing.T) {
	idx := buildRandomIndex(t, "doc-c", 3, 4)
	valid, err := idx.Encode()
	if err != nil {
		t.Fatal(err)
	}

	badMagic := append([]byte{}, valid...)
	badMagic[0] ^= 0xFF

	badVersion := append([]byte{}, valid...)
	badVersion[4] = 99

	truncated := valid[:len(valid)-7]

	trailing := append(append([]byte{}, valid...), 0xAB, 0xCD)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", badMagic},
		{"unknown version", badVersion},
		{"truncated", truncated},
		{"trailing bytes", trailing},
		{"garbage", []byte("not an index record at all")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := Decode(tt.data)
			if !errors.Is(err, ErrCorruptIndex) {
				t.Fatalf("got %v, want ErrCorruptIndex", err)
			}
			if decoded != nil {
				t.Error("corrupt input must not yield a usable index")
			}
		})
	}
}

func TestDecode_EmptyIndexRoundTrip(t *testing.T) {
	idx, err := Build("empty-doc", "mock", 4, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	data, err := idx.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Len() != 0 {
		t.Errorf("decoded chunk count = %d, want 0", decoded.Len())
	}
	if _, err := decoded.Search([]float32{1, 0, 0, 0}, 1); !errors.Is(err, ErrEmptyIndex) {
		t.Errorf("got %v, want ErrEmptyIndex", err)
	}
}
