package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hyperjump/kotaeru/internal/models"
)

// Binary record layout (little-endian):
//
//	magic u32, version u16,
//	docID string, providerID string, dimension u32, chunk count u32,
//	per chunk: id string, text string, sequence u32, page u32,
//	           start u32, end u32, vector (dimension * f32)
//
// Strings are u32 length-prefixed UTF-8. Unknown versions are rejected so
// a future format change cannot be misread as vectors.
const (
	formatMagic   uint32 = 0x58444B49 // "IKDX"
	formatVersion uint16 = 1

	maxFieldLen   = 16 << 20 // sanity bound for any single string
	maxChunkCount = 1 << 24
	maxDimension  = 1 << 16
)

// Encode serializes the full index (vectors, chunk metadata, dimension,
// provider id) to durable bytes.
func (d *DocumentIndex) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := func(v any) {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	w(formatMagic)
	w(formatVersion)
	writeString(&buf, d.docID)
	writeString(&buf, d.providerID)
	w(uint32(d.dimension))
	w(uint32(len(d.chunks)))
	for i, ch := range d.chunks {
		writeString(&buf, ch.ID)
		writeString(&buf, ch.Text)
		w(uint32(ch.SequenceIndex))
		w(uint32(ch.PageNumber))
		w(uint32(ch.Start))
		w(uint32(ch.End))
		for _, f := range d.vectors[i] {
			w(math.Float32bits(f))
		}
	}
	return buf.Bytes(), nil
}

// Decode deserializes a record produced by Encode. Any structural
// violation fails with an error wrapping ErrCorruptIndex; on failure no
// partially populated index is returned.
func Decode(data []byte) (*DocumentIndex, error) {
	r := bytes.NewReader(data)

	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrCorruptIndex)
	}
	if magic != formatMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrCorruptIndex, magic)
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrCorruptIndex)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruptIndex, version)
	}

	docID, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("%w: doc id: %v", ErrCorruptIndex, err)
	}
	providerID, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("%w: provider id: %v", ErrCorruptIndex, err)
	}
	var dimension, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dimension); err != nil {
		return nil, fmt.Errorf("%w: dimension: %v", ErrCorruptIndex, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: chunk count: %v", ErrCorruptIndex, err)
	}
	if docID == "" || dimension == 0 || dimension > maxDimension || count > maxChunkCount {
		return nil, fmt.Errorf("%w: implausible header (dim=%d, count=%d)", ErrCorruptIndex, dimension, count)
	}

	chunks := make([]models.Chunk, 0, count)
	vectors := make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d id: %v", ErrCorruptIndex, i, err)
		}
		text, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d text: %v", ErrCorruptIndex, i, err)
		}
		var seq, page, start, end uint32
		for _, field := range []*uint32{&seq, &page, &start, &end} {
			if err := binary.Read(r, binary.LittleEndian, field); err != nil {
				return nil, fmt.Errorf("%w: chunk %d metadata: %v", ErrCorruptIndex, i, err)
			}
		}
		vec := make([]float32, dimension)
		for j := range vec {
			var bits uint32
			if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
				return nil, fmt.Errorf("%w: chunk %d vector: %v", ErrCorruptIndex, i, err)
			}
			vec[j] = math.Float32frombits(bits)
		}
		chunks = append(chunks, models.Chunk{
			ID:            id,
			DocID:         docID,
			Text:          text,
			SequenceIndex: int(seq),
			PageNumber:    int(page),
			Start:         int(start),
			End:           int(end),
		})
		vectors = append(vectors, vec)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptIndex, r.Len())
	}
	return &DocumentIndex{
		docID:      docID,
		providerID: providerID,
		dimension:  int(dimension),
		chunks:     chunks,
		vectors:    vectors,
	}, nil
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxFieldLen || int(n) > r.Len() {
		return "", fmt.Errorf("implausible length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
