package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/ferdian/memoir/pkg/capture"
)

// HeuristicSummarizer builds observation drafts without any network call.
// Deterministic: the same event always yields the same draft. It is the
// default provider and the fallback when no API key is configured.
type HeuristicSummarizer struct{}

// NewHeuristicSummarizer creates the offline summarizer.
func NewHeuristicSummarizer() *HeuristicSummarizer {
	return &HeuristicSummarizer{}
}

func (h *HeuristicSummarizer) Name() string {
	return "heuristic"
}

var modifyingTools = map[string]bool{
	"Edit":         true,
	"Write":        true,
	"MultiEdit":    true,
	"NotebookEdit": true,
	"str_replace":  true,
	"create_file":  true,
	"apply_patch":  true,
}

func (h *HeuristicSummarizer) Summarize(_ context.Context, ev *capture.Event) (*Draft, error) {
	switch ev.Kind {
	case capture.KindPrompt:
		return &Draft{
			Type:      "prompt",
			Title:     firstLine(ev.Prompt, 80),
			Narrative: ev.Prompt,
			Concepts:  keywords(ev.Prompt),
		}, nil

	case capture.KindToolUse:
		draft := &Draft{
			Type:     "tool_use",
			Title:    fmt.Sprintf("%s %s", ev.ToolName, ev.FilePath),
			Subtitle: ev.Project(),
			Concepts: keywords(ev.ToolName + " " + ev.FilePath),
		}
		if ev.FilePath != "" {
			if modifyingTools[ev.ToolName] {
				draft.Type = "change"
				draft.FilesModified = []string{ev.FilePath}
			} else {
				draft.Type = "discovery"
				draft.FilesRead = []string{ev.FilePath}
			}
		}
		for _, edit := range ev.Edits {
			draft.Facts = append(draft.Facts,
				fmt.Sprintf("replaced %q with %q", firstLine(edit.OldString, 60), firstLine(edit.NewString, 60)))
		}
		if len(draft.Facts) > 0 {
			draft.Narrative = fmt.Sprintf("%s applied %d edit(s) to %s", ev.ToolName, len(draft.Facts), ev.FilePath)
		}
		return draft, nil

	case capture.KindSessionStart:
		return &Draft{
			Type:  "session",
			Title: "Session started in " + ev.Project(),
		}, nil

	case capture.KindSessionEnd:
		return &Draft{
			Type:  "session",
			Title: "Session ended in " + ev.Project(),
		}, nil

	default:
		return nil, fmt.Errorf("cannot summarize event kind %q", ev.Kind)
	}
}

func firstLine(text string, max int) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > max {
		return string(runes[:max])
	}
	return text
}

// keywords extracts up to 5 distinct lowercase terms longer than 3 runes.
func keywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range strings.Fields(strings.ToLower(text)) {
		f = strings.Trim(f, ".,;:!?\"'()[]{}/")
		if len([]rune(f)) <= 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == 5 {
			break
		}
	}
	return out
}
