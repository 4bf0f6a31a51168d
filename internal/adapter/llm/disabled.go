package llm

import (
	"context"

	"copilot-orchestrator/internal/domain"
)

// disabledEncoder stands in when no embedding provider is configured. Callers
// see the same configuration error the gateway reports, so the semantic leg
// degrades instead of panicking on a nil encoder.
type disabledEncoder struct{}

// NewDisabledEncoder returns an encoder whose every call fails with
// ErrAIDisabled.
func NewDisabledEncoder() domain.VectorEncoder {
	return disabledEncoder{}
}

func (disabledEncoder) Encode(context.Context, []string) ([][]float32, error) {
	return nil, domain.ErrAIDisabled
}

func (disabledEncoder) Version() string { return "disabled" }
