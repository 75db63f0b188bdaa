package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCommand_Stopped(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cmd := testRootCmd(t)
	cmd.SetArgs([]string{"status", "--config", cfgPath})

	output := &bytes.Buffer{}
	cmd.SetOut(output)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, output.String(), "Status: stopped")
}

func TestStatusCommand_Running(t *testing.T) {
	cfgPath := writeTestConfig(t)

	pidFile := filepath.Join(filepath.Dir(cfgPath), "memoir.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644))

	cmd := testRootCmd(t)
	cmd.SetArgs([]string{"status", "--config", cfgPath})

	output := &bytes.Buffer{}
	cmd.SetOut(output)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, output.String(), "Status: running")
	assert.Contains(t, output.String(), "PID: "+strconv.Itoa(os.Getpid()))
	assert.Contains(t, output.String(), "Uptime:")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "5s", formatDuration(5*time.Second))
	assert.Equal(t, "2m3s", formatDuration(2*time.Minute+3*time.Second))
	assert.Equal(t, "1h0m0s", formatDuration(time.Hour))
}
