package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CardScan/internal/pipeline"
	"github.com/dharsanguruparan/CardScan/internal/qr"
	"github.com/dharsanguruparan/CardScan/internal/queue"
	"github.com/dharsanguruparan/CardScan/internal/s3storage"
)

// ScanStore records scan status transitions. Both the Postgres repository
// and the in-memory store satisfy it.
type ScanStore interface {
	MarkProcessing(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, msg string) error
	MarkCompleted(ctx context.Context, id, processedKey, report string) error
}

// BlobStore moves images in and reports out.
type BlobStore interface {
	DownloadRaw(ctx context.Context, objectKey string) ([]byte, error)
	UploadProcessed(ctx context.Context, objectKey string, data []byte) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	store ScanStore
	blobs BlobStore
	log   *zap.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(store ScanStore, blobs BlobStore, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{store: store, blobs: blobs, log: log}
}

// Handler registers the decode job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.DecodeCardTask, p.handleDecode)
	return mux
}

func (p *Processor) handleDecode(ctx context.Context, task *asynq.Task) error {
	var payload queue.DecodePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	return p.Process(ctx, payload)
}

// Process decodes one submitted image and records the outcome. Errors that
// come from the card itself are marked with asynq.SkipRetry since a retry
// would see the same bytes.
func (p *Processor) Process(ctx context.Context, payload queue.DecodePayload) error {
	log := p.log.With(zap.String("scan_id", payload.ScanID))
	failure := func(err error) error {
		log.Warn("decode failed", zap.Error(err))
		if markErr := p.store.MarkFailed(ctx, payload.ScanID, err.Error()); markErr != nil {
			log.Warn("mark scan failed", zap.Error(markErr))
		}
		return err
	}
	permanent := func(err error) error {
		return fmt.Errorf("%w: %w", failure(err), asynq.SkipRetry)
	}
	if err := p.store.MarkProcessing(ctx, payload.ScanID); err != nil {
		return failure(err)
	}
	data, err := p.blobs.DownloadRaw(ctx, payload.ObjectKey)
	if errors.Is(err, s3storage.ErrObjectTooLarge) {
		return permanent(err)
	}
	if err != nil {
		return failure(err)
	}
	symbols, err := qr.ScanReader(bytes.NewReader(data))
	if err != nil {
		return permanent(err)
	}

	var out bytes.Buffer
	runner := pipeline.NewRunner(log, pipeline.Options{ContinueOnError: payload.ContinueOnError})
	cards, err := runner.Run(ctx, symbols, &out)
	if err != nil {
		return permanent(err)
	}

	processedKey := processedObjectKey(payload.ObjectKey)
	if err := p.blobs.UploadProcessed(ctx, processedKey, out.Bytes()); err != nil {
		return failure(err)
	}
	if err := p.store.MarkCompleted(ctx, payload.ScanID, processedKey, out.String()); err != nil {
		return failure(err)
	}
	log.Info("scan processed", zap.Int("cards", cards), zap.Int("bytes", out.Len()))
	return nil
}

func processedObjectKey(objectKey string) string {
	base := strings.TrimSuffix(objectKey, filepath.Ext(objectKey))
	return fmt.Sprintf("%s.txt", base)
}
