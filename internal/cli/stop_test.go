package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopCommand_Help(t *testing.T) {
	cmd := testRootCmd(t)
	cmd.SetArgs([]string{"stop", "--help"})

	output := &bytes.Buffer{}
	cmd.SetOut(output)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, output.String(), "Stop the memoir daemon")
}

func TestStopCommand_NotRunning(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cmd := testRootCmd(t)
	cmd.SetArgs([]string{"stop", "--config", cfgPath})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}
