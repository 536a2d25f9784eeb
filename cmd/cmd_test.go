package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestClassifyCommand(t *testing.T) {
	out, err := run(t, "classify", "--catalog", "gpt-4o-mini,gpt-4o",
		"Please analyze this RFP and its compliance requirements under FAR")
	require.NoError(t, err)

	var got struct {
		Profile struct {
			Type              string `json:"type"`
			Complexity        string `json:"complexity"`
			RequiresReasoning bool   `json:"requiresReasoning"`
			RequiresAccuracy  bool   `json:"requiresAccuracy"`
		} `json:"profile"`
		UseCase   string `json:"useCase"`
		Selection struct {
			Model      string  `json:"model"`
			Confidence float64 `json:"confidence"`
		} `json:"selection"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)

	assert.Equal(t, "opportunity_shred", got.Profile.Type)
	assert.Equal(t, "high", got.Profile.Complexity)
	assert.True(t, got.Profile.RequiresReasoning)
	assert.True(t, got.Profile.RequiresAccuracy)
	assert.Equal(t, "reasoning_heavy", got.UseCase)
	assert.Equal(t, "gpt-4o", got.Selection.Model)
}

func TestClassifyDefaultsToConfiguredModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat:\n  default_model: gpt-4.1\n"), 0o600))

	out, err := run(t, "--config", path, "classify", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, `"model": "gpt-4.1"`)
}

func TestInvalidLogLevelIsRejected(t *testing.T) {
	_, err := run(t, "--log-level", "verbose", "classify", "hello")
	require.Error(t, err)
}

func TestCheckKeyRequiresCredential(t *testing.T) {
	t.Setenv(apiKeyEnv, "")
	_, err := run(t, "check-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--api-key")
}
