package queue

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
)

const (
	// DecodeCardTask is scheduled each time a card image is submitted.
	DecodeCardTask = "card:decode"
)

// DecodePayload tells the worker which image to fetch and which scan row
// to update.
type DecodePayload struct {
	ScanID          string `json:"scan_id"`
	ObjectKey       string `json:"object_key"`
	FileName        string `json:"file_name"`
	ContinueOnError bool   `json:"continue_on_error,omitempty"`
}

// NewDecodeTask builds the task. Decoding is deterministic, so retries only
// help with storage hiccups and are kept low.
func NewDecodeTask(payload DecodePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(DecodeCardTask, data, asynq.MaxRetry(3)), nil
}

// EnqueueDecode enqueues a card decode job.
func EnqueueDecode(ctx context.Context, client *asynq.Client, payload DecodePayload) error {
	task, err := NewDecodeTask(payload)
	if err != nil {
		return err
	}
	if _, err := client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue decode task: %w", err)
	}
	return nil
}
