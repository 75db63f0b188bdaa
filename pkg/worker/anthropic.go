package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ferdian/memoir/pkg/capture"
)

const summarizerSystemPrompt = `You condense coding-session events into observations.
Given one event as JSON, respond with ONLY a JSON object:
{"type": "change|discovery|prompt|session", "title": "...", "subtitle": "...",
 "facts": ["..."], "narrative": "...", "concepts": ["..."],
 "files_read": ["..."], "files_modified": ["..."]}
Title under 80 characters. Facts are specific and verifiable. No markdown fences.`

// AnthropicSummarizer drafts observations with the Messages API.
type AnthropicSummarizer struct {
	client anthropic.Client
	model  string
}

// NewAnthropicSummarizer creates the Anthropic-backed provider.
func NewAnthropicSummarizer(apiKey, model string) *AnthropicSummarizer {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicSummarizer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (s *AnthropicSummarizer) Name() string {
	return "anthropic"
}

func (s *AnthropicSummarizer) Summarize(ctx context.Context, ev *capture.Event) (*Draft, error) {
	eventJSON, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	response, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: summarizerSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(eventJSON))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call anthropic API: %w", err)
	}

	var content string
	for _, block := range response.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += b.Text
		}
	}

	draft, err := parseDraftJSON(content)
	if err != nil {
		return nil, err
	}
	draft.PromptTokens = int(response.Usage.InputTokens)
	draft.CompletionTokens = int(response.Usage.OutputTokens)
	return draft, nil
}

// parseDraftJSON tolerates models that wrap the object in a code fence.
func parseDraftJSON(content string) (*Draft, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var draft Draft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse summarizer response: %w", err)
	}
	if draft.Title == "" {
		return nil, fmt.Errorf("summarizer response missing title")
	}
	if draft.Type == "" {
		draft.Type = "discovery"
	}
	return &draft, nil
}
