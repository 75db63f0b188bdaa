package capture

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_AcceptsToolUse(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	raw := []byte(`{
		"sessionId": "sess-1",
		"kind": "tool_use",
		"cwd": "/home/dev/myproject",
		"toolName": "Edit",
		"filePath": "main.go",
		"edits": [{"oldString": "foo", "newString": "bar"}]
	}`)

	ev, err := v.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", ev.SessionID)
	assert.Equal(t, KindToolUse, ev.Kind)
	assert.Equal(t, "Edit", ev.ToolName)
	assert.Len(t, ev.Edits, 1)
}

func TestValidator_RejectsMissingSessionID(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	_, err = v.Validate([]byte(`{"kind": "tool_use", "cwd": "/tmp", "toolName": "Bash"}`))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.Issues)
}

func TestValidator_RejectsUnknownKind(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	_, err = v.Validate([]byte(`{"sessionId": "s", "kind": "telepathy", "cwd": "/tmp"}`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestValidator_RejectsToolUseWithoutToolName(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	_, err = v.Validate([]byte(`{"sessionId": "s", "kind": "tool_use", "cwd": "/tmp"}`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Error(), "toolName")
}

func TestValidator_RejectsPromptWithoutText(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	_, err = v.Validate([]byte(`{"sessionId": "s", "kind": "prompt", "cwd": "/tmp"}`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestValidator_RejectsGarbage(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	_, err = v.Validate([]byte(`{{{not json`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestEvent_Project(t *testing.T) {
	ev := &Event{CWD: "/home/dev/myproject"}
	assert.Equal(t, "myproject", ev.Project())

	ev = &Event{CWD: "/home/dev/myproject/"}
	assert.Equal(t, "myproject", ev.Project())

	ev = &Event{CWD: ""}
	assert.Equal(t, "unknown", ev.Project())
}
