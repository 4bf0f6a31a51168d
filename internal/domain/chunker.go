package domain

import (
	"strings"
	"unicode/utf8"
)

// Chunk size bounds in runes. Segments below the minimum fold into a
// neighbor; segments above the maximum split at sentence boundaries.
const (
	minChunkRunes = 80
	maxChunkRunes = 1000
)

// Chunk is one indexable segment of a document body.
type Chunk struct {
	Ordinal int
	Content string
}

// Chunker splits a document body into chunks.
type Chunker interface {
	Chunk(body string) ([]Chunk, error)
	Version() string
}

type paragraphChunker struct{}

// NewChunker returns the paragraph chunker: blank-line splitting with
// short-segment folding and sentence-boundary splitting of oversized
// segments.
func NewChunker() Chunker {
	return &paragraphChunker{}
}

func (c *paragraphChunker) Version() string { return "para-1" }

func (c *paragraphChunker) Chunk(body string) ([]Chunk, error) {
	segments := splitOversized(coalesceShort(paragraphs(body)))

	chunks := make([]Chunk, 0, len(segments))
	for i, content := range segments {
		chunks = append(chunks, Chunk{Ordinal: i, Content: content})
	}
	return chunks, nil
}

// paragraphs normalizes line endings and splits on blank lines, dropping
// empty parts.
func paragraphs(body string) []string {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var out []string
	for _, part := range strings.Split(normalized, "\n\n") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// coalesceShort folds short paragraphs forward into the following paragraph
// until the accumulated segment reaches the minimum. A short tail folds back
// into the previous segment so no trailing fragment survives on its own.
func coalesceShort(paras []string) []string {
	var out []string
	carry := ""

	for _, p := range paras {
		if carry == "" {
			carry = p
		} else {
			carry = carry + "\n\n" + p
		}
		if utf8.RuneCountInString(carry) >= minChunkRunes {
			out = append(out, carry)
			carry = ""
		}
	}

	if carry != "" {
		if utf8.RuneCountInString(carry) < minChunkRunes && len(out) > 0 {
			out[len(out)-1] = out[len(out)-1] + "\n\n" + carry
		} else {
			out = append(out, carry)
		}
	}
	return out
}

// splitOversized breaks segments longer than the maximum at sentence
// boundaries, packing whole sentences. A single sentence longer than the
// maximum is kept intact rather than cut mid-sentence.
func splitOversized(segments []string) []string {
	var out []string
	for _, seg := range segments {
		if utf8.RuneCountInString(seg) <= maxChunkRunes {
			out = append(out, seg)
			continue
		}

		cur := ""
		for _, s := range sentences(seg) {
			switch {
			case cur == "":
				cur = s
			case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(s) > maxChunkRunes:
				out = append(out, cur)
				cur = s
			default:
				cur = cur + " " + s
			}
		}
		if cur != "" {
			out = append(out, cur)
		}
	}
	return out
}

// sentences splits at . ! ? or 。 when followed by whitespace or the end of
// the text, so abbreviations glued to the next word stay together.
func sentences(text string) []string {
	var out []string
	var cur strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		if !isSentenceEnd(r) {
			continue
		}
		if i+1 < len(runes) && runes[i+1] != ' ' && runes[i+1] != '\n' {
			continue
		}
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '。'
}
