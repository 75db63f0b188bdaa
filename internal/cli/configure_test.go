package cli

import (
	"bytes"
	"testing"

	"github.com/ferdian/memoir/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureCommand_Help(t *testing.T) {
	cmd := testRootCmd(t)
	cmd.SetArgs([]string{"configure", "--help"})

	output := &bytes.Buffer{}
	cmd.SetOut(output)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, output.String(), "configuration file")
}

func TestConfigureCommand_AppliesFlags(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cmd := testRootCmd(t)
	cmd.SetArgs([]string{"configure", "--config", cfgPath, "--port", "9123", "--secret", "s3cret"})

	output := &bytes.Buffer{}
	cmd.SetOut(output)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, output.String(), "Configuration saved")

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 9123, cfg.Gateway.Port)
	assert.Equal(t, "s3cret", cfg.Gateway.SharedSecret)
}

func TestConfigureCommand_RejectsInvalid(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cmd := testRootCmd(t)
	cmd.SetArgs([]string{"configure", "--config", cfgPath, "--summarizer", "unknown"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
