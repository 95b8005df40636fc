// Package chunker splits document text into retrievable chunks using a
// selectable strategy. Sizes and offsets are in bytes; chunk boundaries are
// adjusted so multi-byte runes are never split.
package chunker

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotaeru/internal/models"
)

// Strategy selects how text is segmented.
type Strategy string

const (
	// StrategyFixed slides a window of chunkSize advancing by chunkSize-overlap.
	StrategyFixed Strategy = "fixed"
	// StrategyRecursive splits at paragraph, then sentence, then word
	// boundaries, falling back to fixed slicing.
	StrategyRecursive Strategy = "recursive"
	// StrategySemantic splits on paragraph breaks only, merging short
	// paragraphs; paragraphs are never split across chunks.
	StrategySemantic Strategy = "semantic"
)

// ErrInvalidConfig reports invalid chunking parameters.
var ErrInvalidConfig = errors.New("invalid chunking configuration")

// ParseStrategy converts a config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyFixed, StrategyRecursive, StrategySemantic:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, s)
	}
}

// Chunker splits text into chunks. Identical input and configuration always
// produce identical output.
type Chunker struct {
	strategy  Strategy
	chunkSize int
	overlap   int
}

// New creates a chunker. Overlap must be non-negative and smaller than
// chunkSize; it applies to the fixed and recursive strategies only.
func New(strategy Strategy, chunkSize, overlap int) (*Chunker, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, overlap, chunkSize)
	}
	return &Chunker{strategy: strategy, chunkSize: chunkSize, overlap: overlap}, nil
}

// Strategy returns the configured strategy.
func (c *Chunker) Strategy() Strategy { return c.strategy }

type span struct {
	start, end int
}

// Chunk splits text into chunks for docID. Chunk IDs are stable across
// re-chunking with the same configuration. Page numbers are assigned from
// pages by chunk start offset; pages may be nil.
func (c *Chunker) Chunk(docID, text string, pages []models.PageSpan) []models.Chunk {
	if text == "" {
		return nil
	}
	var spans []span
	switch c.strategy {
	case StrategyFixed:
		spans = c.fixedSpans(text)
	case StrategyRecursive:
		spans = c.recursiveSpans(text)
	case StrategySemantic:
		spans = c.semanticSpans(text)
	}
	chunks := make([]models.Chunk, 0, len(spans))
	for i, sp := range spans {
		chunks = append(chunks, models.Chunk{
			ID:            fmt.Sprintf("%s_chunk_%d", docID, i),
			DocID:         docID,
			Text:          text[sp.start:sp.end],
			SequenceIndex: i,
			PageNumber:    models.PageForOffset(pages, sp.start),
			Start:         sp.start,
			End:           sp.end,
		})
	}
	return chunks
}

// fixedSpans slides a chunkSize window advancing by chunkSize-overlap.
// The last chunk may be shorter.
func (c *Chunker) fixedSpans(text string) []span {
	var spans []span
	start := 0
	for start < len(text) {
		end := start + c.chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = runeFloor(text, end)
		}
		spans = append(spans, span{start, end})
		if end >= len(text) {
			break
		}
		next := runeFloor(text, end-c.overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return spans
}

// recursiveSeparators is the boundary hierarchy: paragraphs, lines,
// sentences, words. Fixed slicing is the last resort.
var recursiveSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// recursiveSpans places chunk ends at the highest-level boundary that keeps
// each chunk within chunkSize, then applies the configured overlap between
// consecutive chunks.
func (c *Chunker) recursiveSpans(text string) []span {
	breaks := c.boundaryOffsets(text, 0, 0)
	var spans []span
	pos := 0 // furthest offset covered so far
	start := 0
	for pos < len(text) {
		limit := start + c.chunkSize
		if limit >= len(text) {
			limit = len(text)
		} else {
			limit = runeFloor(text, limit)
		}
		end := largestAtMost(breaks, limit)
		if end <= pos {
			end = limit
		}
		if end <= pos {
			end = len(text) // degenerate config; cover the rest
		}
		spans = append(spans, span{start, end})
		pos = end
		if pos >= len(text) {
			break
		}
		next := pos - c.overlap
		if next < 0 {
			next = 0
		}
		start = runeFloor(text, next)
	}
	return spans
}

// boundaryOffsets returns ascending candidate chunk-end offsets (absolute,
// shifted by base). Each interval between consecutive offsets fits within
// chunkSize; oversized units are split with the next separator in the
// hierarchy, then by fixed windows as a last resort.
func (c *Chunker) boundaryOffsets(text string, base, sepIdx int) []int {
	if len(text) <= c.chunkSize {
		return []int{base + len(text)}
	}
	if sepIdx >= len(recursiveSeparators) {
		var out []int
		for i := c.chunkSize; i < len(text); i += c.chunkSize {
			if b := runeFloor(text, i); b > 0 {
				out = append(out, base+b)
			}
		}
		return append(out, base+len(text))
	}
	pieces := strings.SplitAfter(text, recursiveSeparators[sepIdx])
	if len(pieces) == 1 {
		return c.boundaryOffsets(text, base, sepIdx+1)
	}
	var out []int
	off := 0
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if len(p) <= c.chunkSize {
			out = append(out, base+off+len(p))
		} else {
			out = append(out, c.boundaryOffsets(p, base+off, sepIdx+1)...)
		}
		off += len(p)
	}
	return out
}

// largestAtMost returns the largest offset in breaks that is <= limit,
// or 0 if none. breaks must be ascending.
func largestAtMost(breaks []int, limit int) int {
	i := sort.SearchInts(breaks, limit+1) - 1
	if i < 0 {
		return 0
	}
	return breaks[i]
}

// semanticSpans groups whole paragraphs until a chunk reaches chunkSize.
// A single paragraph larger than chunkSize becomes its own chunk; chunks
// do not overlap and inter-paragraph separators between chunks are not
// covered.
func (c *Chunker) semanticSpans(text string) []span {
	paras := paragraphSpans(text)
	var spans []span
	cur := span{-1, -1}
	for _, p := range paras {
		switch {
		case cur.start < 0:
			cur = p
		case p.end-cur.start > c.chunkSize:
			spans = append(spans, cur)
			cur = p
		default:
			cur.end = p.end
		}
	}
	if cur.start >= 0 {
		spans = append(spans, cur)
	}
	return spans
}

// paragraphSpans returns trimmed spans of non-empty paragraphs, where
// paragraphs are separated by two or more consecutive newlines.
func paragraphSpans(text string) []span {
	var spans []span
	i := 0
	for i < len(text) {
		j := strings.Index(text[i:], "\n\n")
		end := len(text)
		if j >= 0 {
			end = i + j
		}
		if sp, ok := trimSpan(text, i, end); ok {
			spans = append(spans, sp)
		}
		i = end
		for i < len(text) && text[i] == '\n' {
			i++
		}
	}
	return spans
}

// trimSpan shrinks [start,end) to exclude leading and trailing whitespace.
// Returns false if the span is empty after trimming.
func trimSpan(text string, start, end int) (span, bool) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	if start >= end {
		return span{}, false
	}
	return span{start, end}, true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// runeFloor moves i back to the nearest rune start so slicing at i never
// splits a multi-byte rune.
func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
