// Package chunker splits extracted source text into overlapping windows
// suitable for independent embedding.
package chunker

import (
	"errors"
	"strings"
)

// ErrEmptyContent is returned when the input text contains nothing to chunk.
// Zero chunks is never treated as a successful split.
var ErrEmptyContent = errors.New("empty content")

const (
	// DefaultSize and DefaultOverlap match the ingestion contract: ~1000
	// character windows sharing ~200 characters with each neighbor.
	DefaultSize    = 1000
	DefaultOverlap = 200

	// Boundary nudging lookahead: prefer a newline within 100 characters of
	// the target boundary, otherwise a space within 50.
	newlineLookahead = 100
	spaceLookahead   = 50
)

// Options control window geometry. Zero values fall back to the defaults.
type Options struct {
	Size    int
	Overlap int
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = DefaultSize
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		o.Overlap = DefaultOverlap
		if o.Overlap >= o.Size {
			o.Overlap = o.Size / 5
		}
	}
	return o
}

// Split divides text into ordered overlapping windows. Consecutive windows
// share exactly opts.Overlap characters; window boundaries are nudged forward
// to the nearest newline or space within the lookahead distance so words are
// not cut mid-way. The final window may be shorter than the target size. No
// window is ever empty.
func Split(text string, opts Options) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}
	opts = opts.withDefaults()

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + opts.Size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		end = nudgeBoundary(text, end)
		chunks = append(chunks, text[start:end])
		start = end - opts.Overlap
	}
	return chunks, nil
}

// nudgeBoundary moves end forward to the nearest newline (within
// newlineLookahead) or space (within spaceLookahead) so the cut lands on
// whitespace. Returns the original end when no nearby whitespace exists.
func nudgeBoundary(text string, end int) int {
	rest := text[end:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 && i < newlineLookahead {
		return end + i
	}
	if i := strings.IndexByte(rest, ' '); i >= 0 && i < spaceLookahead {
		return end + i
	}
	return end
}
