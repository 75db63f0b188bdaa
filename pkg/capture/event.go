// Package capture defines the normalized hook-event boundary: the records the
// host assistant pushes in, and the validation that rejects malformed ones
// before they reach the queue.
package capture

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"
)

// Kind classifies a normalized hook event.
type Kind string

const (
	KindToolUse      Kind = "tool_use"
	KindPrompt       Kind = "prompt"
	KindSessionStart Kind = "session_start"
	KindSessionEnd   Kind = "session_end"
)

// Event is one normalized unit of session activity as received from the host.
type Event struct {
	SessionID    string          `json:"sessionId"`
	Kind         Kind            `json:"kind"`
	CWD          string          `json:"cwd"`
	ToolName     string          `json:"toolName,omitempty"`
	ToolInput    json.RawMessage `json:"toolInput,omitempty"`
	ToolResponse json.RawMessage `json:"toolResponse,omitempty"`
	FilePath     string          `json:"filePath,omitempty"`
	Edits        []Edit          `json:"edits,omitempty"`
	Prompt       string          `json:"prompt,omitempty"`
	Timestamp    time.Time       `json:"timestamp,omitempty"`
}

// Edit is one old/new replacement within a file-modifying tool call.
type Edit struct {
	OldString string `json:"oldString"`
	NewString string `json:"newString"`
}

// Project derives a project name from the event's working directory.
// Fancier heuristics (git remotes etc.) live with the host integration;
// the base directory name is enough for grouping.
func (e *Event) Project() string {
	cwd := strings.TrimRight(e.CWD, "/\\")
	if cwd == "" {
		return "unknown"
	}
	return filepath.Base(cwd)
}
