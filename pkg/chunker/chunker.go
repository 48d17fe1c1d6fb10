package chunker

import (
	"fmt"
	"strings"
)

const (
	DefaultTargetSize = 1000 // words per chunk
	DefaultOverlap    = 200  // words shared by consecutive chunks
)

// Span is a half-open word range [Start, End) of the source text.
type Span struct {
	Start int
	End   int
}

// Chunker splits text into overlapping, word-bounded windows.
type Chunker struct {
	targetSize int
	overlap    int
}

type Option func(*Chunker)

func WithTargetSize(words int) Option {
	return func(c *Chunker) {
		if words > 0 {
			c.targetSize = words
		}
	}
}

func WithOverlap(words int) Option {
	return func(c *Chunker) {
		if words >= 0 {
			c.overlap = words
		}
	}
}

// New returns a Chunker. It panics when overlap >= target size, since that
// would never advance the window.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		targetSize: DefaultTargetSize,
		overlap:    DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	mustValidate(c.targetSize, c.overlap)
	return c
}

func (c *Chunker) TargetSize() int { return c.targetSize }
func (c *Chunker) Overlap() int    { return c.overlap }

func (c *Chunker) Chunk(text string) []string {
	return Chunk(text, c.targetSize, c.overlap)
}

// Chunk splits text on whitespace into windows of targetSize words, each
// starting targetSize-overlap words after the previous one. Text of at most
// targetSize words comes back as a single trimmed chunk; whitespace-only
// text yields no chunks.
func Chunk(text string, targetSize, overlap int) []string {
	mustValidate(targetSize, overlap)

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= targetSize {
		return []string{strings.TrimSpace(text)}
	}

	spans := windows(len(words), targetSize, overlap)
	chunks := make([]string, len(spans))
	for i, s := range spans {
		chunks[i] = strings.Join(words[s.Start:s.End], " ")
	}
	return chunks
}

// Spans reports the word ranges Chunk would produce for text.
func Spans(text string, targetSize, overlap int) []Span {
	mustValidate(targetSize, overlap)

	n := len(strings.Fields(text))
	if n == 0 {
		return nil
	}
	if n <= targetSize {
		return []Span{{Start: 0, End: n}}
	}
	return windows(n, targetSize, overlap)
}

func windows(wordCount, targetSize, overlap int) []Span {
	step := targetSize - overlap
	spans := make([]Span, 0, wordCount/step+1)
	for start := 0; start < wordCount; start += step {
		end := min(start+targetSize, wordCount)
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans
}

func mustValidate(targetSize, overlap int) {
	if targetSize <= 0 || overlap < 0 || overlap >= targetSize {
		panic(fmt.Sprintf("chunker: invalid window (target size %d, overlap %d)", targetSize, overlap))
	}
}
