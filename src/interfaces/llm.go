package interfaces

import "context"

// -----------------------------------------------------------------------------
// ILLMProvider is the reasoning-layer contract. Concrete provider clients are
// external collaborators.
// -----------------------------------------------------------------------------

type ILLMProvider interface {

	// Complete runs one completion request. Usage, when reported, feeds the
	// cost tracker.
	Complete(ctx context.Context, req MLLMRequest) (*MLLMResponse, error)
}

// -----------------------------------------------------------------------------

type MLLMRequest struct {
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type MLLMUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type MLLMResponse struct {
	Content string     `json:"content"`
	Model   string     `json:"model"`
	Usage   *MLLMUsage `json:"usage,omitempty"`
}
