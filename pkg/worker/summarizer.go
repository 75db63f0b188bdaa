// Package worker turns queued capture events into persisted observations:
// a pool of per-session goroutines drains the queue processors, runs a
// summarizer over each event, and writes the result to the store and the
// similarity index.
package worker

import (
	"context"
	"fmt"

	"github.com/ferdian/memoir/pkg/capture"
)

// Draft is a summarizer's proposed observation before persistence.
type Draft struct {
	Type             string   `json:"type"`
	Title            string   `json:"title"`
	Subtitle         string   `json:"subtitle,omitempty"`
	Facts            []string `json:"facts,omitempty"`
	Narrative        string   `json:"narrative,omitempty"`
	Concepts         []string `json:"concepts,omitempty"`
	FilesRead        []string `json:"files_read,omitempty"`
	FilesModified    []string `json:"files_modified,omitempty"`
	PromptTokens     int      `json:"-"`
	CompletionTokens int      `json:"-"`
}

// Summarizer condenses one capture event into an observation draft.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, ev *capture.Event) (*Draft, error)
}

// NewSummarizer selects a provider by name.
func NewSummarizer(provider, apiKey, model string) (Summarizer, error) {
	switch provider {
	case "", "heuristic":
		return NewHeuristicSummarizer(), nil
	case "anthropic":
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic summarizer requires an api key")
		}
		return NewAnthropicSummarizer(apiKey, model), nil
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("openai summarizer requires an api key")
		}
		return NewOpenAISummarizer(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider: %s", provider)
	}
}

// EmbeddingText flattens a draft into the text fed to the similarity index.
func (d *Draft) EmbeddingText() string {
	text := d.Title
	if d.Subtitle != "" {
		text += "\n" + d.Subtitle
	}
	if d.Narrative != "" {
		text += "\n" + d.Narrative
	}
	for _, f := range d.Facts {
		text += "\n" + f
	}
	return text
}
