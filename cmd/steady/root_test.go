package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, err := execute("version")
	require.NoError(t, err)
	assert.Contains(t, out, "Steady dev")
	assert.Contains(t, out, "commit: none")
}

func TestApplyRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := execute("apply")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config")
}

func TestYesAndNoAreMutuallyExclusive(t *testing.T) {
	t.Parallel()

	_, err := execute("apply", "--config", "steady.yaml", "--yes", "--no")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestPlanRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := execute("plan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config")
}

func TestApplyRejectsMissingConfigFile(t *testing.T) {
	t.Parallel()

	_, err := execute("apply", "--config", "/nonexistent/steady.yaml", "--no")
	require.Error(t, err)
}
