package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CardScan/internal/config"
	"github.com/dharsanguruparan/CardScan/internal/model"
	"github.com/dharsanguruparan/CardScan/internal/qr"
	"github.com/dharsanguruparan/CardScan/internal/queue"
)

// ScanRepository is the part of the scan store the API reads and writes.
type ScanRepository interface {
	Create(ctx context.Context, scan *model.Scan) error
	Get(ctx context.Context, id string) (*model.Scan, error)
}

// ObjectStore holds uploaded images and the rendered reports.
type ObjectStore interface {
	UploadRaw(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	PresignProcessedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// EnqueueFunc hands a decode job to the worker queue.
type EnqueueFunc func(ctx context.Context, payload queue.DecodePayload) error

// Server exposes HTTP endpoints for card uploads and scan results.
type Server struct {
	cfg     *config.Config
	repo    ScanRepository
	store   ObjectStore
	enqueue EnqueueFunc
	log     *zap.Logger
	server  *http.Server
	once    sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, repo ScanRepository, store ObjectStore, enqueue EnqueueFunc, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		repo:    repo,
		store:   store,
		enqueue: enqueue,
		log:     log,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/scans", s.handleScans)
	mux.HandleFunc("/scans/", s.handleScanRoute)
	return corsMiddleware(s.loggingMiddleware(mux))
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Info("api listening", zap.String("address", s.cfg.Address))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleScanRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/scans/"), "/")
	if parts[0] == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}
	scan, err := s.repo.Get(r.Context(), parts[0])
	if errors.Is(err, model.ErrNotFound) {
		http.Error(w, "scan not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("load scan", zap.String("scan_id", parts[0]), zap.Error(err))
		http.Error(w, "failed to load scan", http.StatusInternalServerError)
		return
	}
	if len(parts) == 1 {
		s.respondJSON(w, http.StatusOK, scanResponse(scan))
		return
	}
	switch parts[1] {
	case "report":
		s.handleReport(w, scan)
	case "report-url":
		s.handleReportURL(w, r, scan)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, scan *model.Scan) {
	switch scan.Status {
	case model.StatusCompleted:
	case model.StatusFailed:
		http.Error(w, "scan failed", http.StatusUnprocessableEntity)
		return
	default:
		http.Error(w, "scan not processed", http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, scan.Report)
}

func (s *Server) handleReportURL(w http.ResponseWriter, r *http.Request, scan *model.Scan) {
	if scan.ProcessedKey == nil {
		http.Error(w, "report unavailable", http.StatusNotFound)
		return
	}
	url, err := s.store.PresignProcessedURL(r.Context(), *scan.ProcessedKey, s.cfg.SignedURLTTL)
	if err != nil {
		s.log.Error("presign report", zap.String("scan_id", scan.ID), zap.Error(err))
		http.Error(w, "failed to generate url", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	continueOnError := s.cfg.ContinueOnError
	if v := r.URL.Query().Get("continue_on_error"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "continue_on_error must be a boolean", http.StatusBadRequest)
			return
		}
		continueOnError = parsed
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expecting multipart form", http.StatusBadRequest)
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer part.Close()
	tmp, err := s.persistTemp(part)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer os.Remove(tmp.path)
	defer tmp.f.Close()
	if !qr.IsImage(tmp.mime) {
		http.Error(w, "only image files supported", http.StatusUnsupportedMediaType)
		return
	}

	scanID := uuid.NewString()
	objectKey := fmt.Sprintf("scans/%s/%s", scanID, tmp.filename)
	if err := s.store.UploadRaw(ctx, objectKey, tmp.f, tmp.size, tmp.mime.String()); err != nil {
		s.log.Error("upload to storage failed", zap.String("scan_id", scanID), zap.Error(err))
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}
	scan := &model.Scan{
		ID:        scanID,
		FileName:  tmp.filename,
		ObjectKey: objectKey,
	}
	if err := s.repo.Create(ctx, scan); err != nil {
		s.log.Error("store scan metadata", zap.String("scan_id", scanID), zap.Error(err))
		http.Error(w, "failed to store metadata", http.StatusInternalServerError)
		return
	}
	payload := queue.DecodePayload{
		ScanID:          scanID,
		ObjectKey:       objectKey,
		FileName:        tmp.filename,
		ContinueOnError: continueOnError,
	}
	if err := s.enqueue(ctx, payload); err != nil {
		s.log.Error("queue decode job", zap.String("scan_id", scanID), zap.Error(err))
		http.Error(w, "failed to queue job", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     scanID,
		"status": string(model.StatusQueued),
	})
}

type scanView struct {
	ID        string           `json:"id"`
	FileName  string           `json:"file_name"`
	Status    model.ScanStatus `json:"status"`
	Report    string           `json:"report,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func scanResponse(scan *model.Scan) scanView {
	view := scanView{
		ID:        scan.ID,
		FileName:  scan.FileName,
		Status:    scan.Status,
		Report:    scan.Report,
		CreatedAt: scan.CreatedAt,
		UpdatedAt: scan.UpdatedAt,
	}
	if scan.ErrorMessage != nil {
		view.Error = *scan.ErrorMessage
	}
	return view
}

type tempUpload struct {
	f        *os.File
	path     string
	size     int64
	mime     *mimetype.MIME
	filename string
}

// persistTemp spools the part to disk so its size is known before upload.
func (s *Server) persistTemp(part *multipart.Part) (*tempUpload, error) {
	tmpFile, err := os.CreateTemp("", "cardscan-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	fail := func(err error) (*tempUpload, error) {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return nil, err
	}
	written, err := io.Copy(tmpFile, io.LimitReader(part, s.cfg.MaxFileSize+1))
	if err != nil {
		return fail(fmt.Errorf("read file: %w", err))
	}
	if written > s.cfg.MaxFileSize {
		return fail(fmt.Errorf("file exceeds limit (%d bytes)", s.cfg.MaxFileSize))
	}
	if written == 0 {
		return fail(errors.New("empty file"))
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return fail(fmt.Errorf("rewind temp file: %w", err))
	}
	mtype, err := mimetype.DetectReader(tmpFile)
	if err != nil {
		return fail(fmt.Errorf("detect content type: %w", err))
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return fail(fmt.Errorf("rewind temp file: %w", err))
	}
	filename := filepath.Base(part.FileName())
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		filename = "upload" + mtype.Extension()
	}
	return &tempUpload{
		f:        tmpFile,
		path:     tmpFile.Name(),
		size:     written,
		mime:     mtype,
		filename: filename,
	}, nil
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("missing file field")
			}
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("encode response", zap.Error(err))
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Duration("took", time.Since(start)))
	})
}
