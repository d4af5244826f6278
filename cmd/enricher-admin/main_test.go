package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const memoryConfig = "../../internal/config/testdata/memory_async.yaml"

func execute(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--config", memoryConfig}, args...))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		return nil, err
	}

	var body map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	return body, nil
}

func TestProcessOnce_EmptyStore(t *testing.T) {
	body, err := execute(t, "process-once", "--limit", "5")
	require.NoError(t, err)
	assert.Equal(t, "skipped", body["status"])
}

func TestStatus_EmptyStore(t *testing.T) {
	body, err := execute(t, "status")
	require.NoError(t, err)
	assert.Equal(t, float64(0), body["total_postings"])
	assert.Nil(t, body["last_run"])
}

func TestAutoProcessing_Static(t *testing.T) {
	body, err := execute(t, "auto-processing", "on")
	require.NoError(t, err)
	assert.Equal(t, true, body["auto_processing_enabled"])

	_, err = execute(t, "auto-processing", "maybe")
	assert.Error(t, err)
}

func TestProcess_InvalidID(t *testing.T) {
	_, err := execute(t, "process", "not-a-uuid")
	assert.Error(t, err)
}
