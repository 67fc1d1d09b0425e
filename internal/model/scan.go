// Package model contains the scan record shared by the repository, the
// in-memory store and the worker.
package model

import (
	"errors"
	"time"
)

// ErrNotFound is returned by every scan store for an unknown id.
var ErrNotFound = errors.New("scan not found")

// ScanStatus describes where a submitted card image is in its lifecycle.
type ScanStatus string

const (
	StatusQueued     ScanStatus = "queued"
	StatusProcessing ScanStatus = "processing"
	StatusCompleted  ScanStatus = "completed"
	StatusFailed     ScanStatus = "failed"
)

// Scan is one submitted image and, once processed, its report.
type Scan struct {
	ID           string     `json:"id"`
	FileName     string     `json:"fileName"`
	ObjectKey    string     `json:"objectKey"`
	ProcessedKey *string    `json:"processedKey,omitempty"`
	Status       ScanStatus `json:"status"`
	Report       string     `json:"report,omitempty"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
