package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"copilot-orchestrator/internal/domain"
)

// decodeStructured parses a structured model response into out. Providers in
// JSON mode return bare objects, but a fenced ```json block slips through
// often enough to be worth stripping before the parse. Parse failures are
// malformed output, never transport.
func decodeStructured(raw string, out any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%w: empty model response", domain.ErrMalformedOutput)
	}
	trimmed = stripCodeFence(trimmed)

	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	return nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
