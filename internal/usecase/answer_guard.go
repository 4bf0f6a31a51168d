package usecase

import (
	"fmt"
	"strings"

	"copilot-orchestrator/internal/domain"
)

// AnswerGuard parses the synthesizer's structured output and enforces
// citation integrity: every surviving citation names a source that was
// actually in the context the model saw. Unknown sources are dropped, not
// errors, so one hallucinated citation cannot void an otherwise good answer.
type AnswerGuard struct{}

func NewAnswerGuard() AnswerGuard {
	return AnswerGuard{}
}

// Validate parses raw and filters citations against the allowed source IDs.
// Surviving citations keep their original order. An empty answer is
// malformed output.
func (g AnswerGuard) Validate(raw string, sourceIDs []string) (*domain.CitedAnswer, error) {
	var parsed domain.CitedAnswer
	if err := decodeStructured(raw, &parsed); err != nil {
		return nil, err
	}

	parsed.Answer = strings.TrimSpace(parsed.Answer)
	if parsed.Answer == "" {
		return nil, fmt.Errorf("%w: answer text is empty", domain.ErrMalformedOutput)
	}

	allowed := make(map[string]struct{}, len(sourceIDs))
	for _, id := range sourceIDs {
		allowed[id] = struct{}{}
	}

	kept := parsed.Citations[:0]
	for _, c := range parsed.Citations {
		if c.SourceID == "" {
			continue
		}
		if _, ok := allowed[c.SourceID]; !ok {
			continue
		}
		kept = append(kept, c)
	}
	parsed.Citations = kept

	return &parsed, nil
}
