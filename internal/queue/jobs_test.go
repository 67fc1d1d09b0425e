package queue

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDecodeTask(t *testing.T) {
	task, err := NewDecodeTask(DecodePayload{ScanID: "s1", ObjectKey: "scans/s1/card.png", FileName: "card.png"})
	require.NoError(t, err)
	assert.Equal(t, DecodeCardTask, task.Type())

	var got map[string]any
	require.NoError(t, json.Unmarshal(task.Payload(), &got))
	assert.Equal(t, "s1", got["scan_id"])
	assert.Equal(t, "scans/s1/card.png", got["object_key"])
	assert.NotContains(t, got, "continue_on_error")
}
