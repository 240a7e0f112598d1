package llm

import "context"

// CompletionRequest is the opaque structured prompt sent to a LanguageModel
// (spec §6.2). The LLM Client owns JSON-schema / chain-of-thought framing;
// SystemPrompt and UserPrompt are already fully assembled text by the time
// they reach the capability.
type CompletionRequest struct {
	ModelID      string
	MaxTokens    int
	SystemPrompt string
	UserPrompt   string
}

// CompletionResponse is the model's raw structured output, expected to be a
// JSON object matching the calling signature's output schema. The
// capability itself never parses or validates this text — that is the LLM
// Client's job.
type CompletionResponse struct {
	Text string
}

// LanguageModel is the single external collaborator the LLM Client
// consumes. Implementations may call out to any concrete provider; the
// core only depends on this interface.
type LanguageModel interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}
