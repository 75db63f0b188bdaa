package capture

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// eventSchema validates incoming hook events before they are accepted.
// Unknown fields are allowed; missing required fields are not.
const eventSchema = `{
	"type": "object",
	"required": ["sessionId", "kind", "cwd"],
	"properties": {
		"sessionId": {"type": "string", "minLength": 1},
		"kind": {"type": "string", "enum": ["tool_use", "prompt", "session_start", "session_end"]},
		"cwd": {"type": "string", "minLength": 1},
		"toolName": {"type": "string"},
		"filePath": {"type": "string"},
		"prompt": {"type": "string"},
		"edits": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["oldString", "newString"],
				"properties": {
					"oldString": {"type": "string"},
					"newString": {"type": "string"}
				}
			}
		}
	}
}`

// ValidationError carries the individual field issues of a rejected event.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s", strings.Join(e.Issues, "; "))
}

// Validator checks raw hook events against the event schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the event schema once.
func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(eventSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile event schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate parses and validates a raw event. Malformed events are rejected
// with a ValidationError listing every issue; nothing is silently defaulted.
func (v *Validator) Validate(raw []byte) (*Event, error) {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, &ValidationError{Issues: []string{fmt.Sprintf("not valid JSON: %v", err)}}
	}

	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, issue := range result.Errors() {
			issues = append(issues, issue.String())
		}
		return nil, &ValidationError{Issues: issues}
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, &ValidationError{Issues: []string{err.Error()}}
	}

	// kind-specific requirements the schema cannot express conditionally
	switch ev.Kind {
	case KindToolUse:
		if ev.ToolName == "" {
			return nil, &ValidationError{Issues: []string{"toolName is required for tool_use events"}}
		}
	case KindPrompt:
		if ev.Prompt == "" {
			return nil, &ValidationError{Issues: []string{"prompt is required for prompt events"}}
		}
	}

	return &ev, nil
}
