package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "memoir.json")
	require.NoError(t, os.WriteFile(cfgPath,
		[]byte(`{"data_dir": `+strconv.Quote(dir)+`}`), 0644))
	return cfgPath
}

func TestStartCommand_Help(t *testing.T) {
	cmd := testRootCmd(t)
	cmd.SetArgs([]string{"start", "--help"})

	output := &bytes.Buffer{}
	cmd.SetOut(output)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, output.String(), "Start the memoir daemon")
}

func TestStartCommand_RejectsRunningDaemon(t *testing.T) {
	cfgPath := writeTestConfig(t)

	// A PID file pointing at this test process looks like a live daemon.
	pidFile := filepath.Join(filepath.Dir(cfgPath), "memoir.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644))

	cmd := testRootCmd(t)
	cmd.SetArgs([]string{"start", "--config", cfgPath})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}
