package chat

// PromptMessage is one entry of the assembled message list sent to the
// inference backend.
type PromptMessage struct {
	Role    string
	Content string
}

// GenerationRequest carries the assembled prompt plus sampling
// parameters for a single backend call. It is built fresh per request
// and never persisted.
type GenerationRequest struct {
	Messages    []PromptMessage
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// GenerationResult is the backend's reply text.
type GenerationResult struct {
	Text string
}
