package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ferdian/memoir/pkg/capture"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAISummarizer drafts observations with chat completions.
type OpenAISummarizer struct {
	client openai.Client
	model  string
}

// NewOpenAISummarizer creates the OpenAI-backed provider.
func NewOpenAISummarizer(apiKey, model string) *OpenAISummarizer {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAISummarizer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (s *OpenAISummarizer) Name() string {
	return "openai"
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, ev *capture.Event) (*Draft, error) {
	eventJSON, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	response, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarizerSystemPrompt),
			openai.UserMessage(string(eventJSON)),
		},
		MaxTokens: openai.Int(1024),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call openai API: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("openai API returned no choices")
	}

	draft, err := parseDraftJSON(response.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	draft.PromptTokens = int(response.Usage.PromptTokens)
	draft.CompletionTokens = int(response.Usage.CompletionTokens)
	return draft, nil
}
