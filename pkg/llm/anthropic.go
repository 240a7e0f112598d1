package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicModel is the production LanguageModel implementation, backed by
// the Anthropic Messages API. Grounded on
// intelligencedev-manifold/internal/llm/anthropic/client.go, trimmed to the
// single-turn, non-streaming, tool-free shape this system needs: one
// system prompt instructing JSON-only output, one user prompt, one text
// response.
type AnthropicModel struct {
	sdk anthropic.Client
}

// NewAnthropicModel builds an AnthropicModel from an API key and optional
// base URL override (used for OpenRouter-compatible gateways, matching the
// original's openrouter/... model id convention).
func NewAnthropicModel(apiKey, baseURL string, httpClient *http.Client) *AnthropicModel {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	return &AnthropicModel{sdk: anthropic.NewClient(opts...)}
}

// Complete sends one system+user turn and returns the concatenated text of
// the response's text blocks.
func (m *AnthropicModel) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.ModelID),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	resp, err := m.sdk.Messages.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("anthropic completion failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return CompletionResponse{Text: sb.String()}, nil
}
