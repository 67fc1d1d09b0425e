// Package storage keeps scan records in memory. It satisfies the same
// contract as the Postgres repository and backs single-process runs.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dharsanguruparan/CardScan/internal/model"
)

// ErrNotFound aliases model.ErrNotFound so callers can match either.
var ErrNotFound = model.ErrNotFound

// MemoryStore guards its map with an RWMutex so the worker and readers can
// share it.
type MemoryStore struct {
	mu    sync.RWMutex
	scans map[string]*model.Scan
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scans: make(map[string]*model.Scan),
	}
}

// Create inserts a queued scan.
func (m *MemoryStore) Create(_ context.Context, scan *model.Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	scan.Status = model.StatusQueued
	scan.CreatedAt = now
	scan.UpdatedAt = now
	stored := *scan
	m.scans[scan.ID] = &stored
	return nil
}

func (m *MemoryStore) MarkProcessing(_ context.Context, id string) error {
	return m.update(id, func(s *model.Scan) {
		s.Status = model.StatusProcessing
		s.ErrorMessage = nil
	})
}

func (m *MemoryStore) MarkFailed(_ context.Context, id, msg string) error {
	return m.update(id, func(s *model.Scan) {
		s.Status = model.StatusFailed
		s.ErrorMessage = &msg
	})
}

func (m *MemoryStore) MarkCompleted(_ context.Context, id, processedKey, report string) error {
	return m.update(id, func(s *model.Scan) {
		s.Status = model.StatusCompleted
		s.ProcessedKey = &processedKey
		s.Report = report
		s.ErrorMessage = nil
	})
}

// Get returns a copy of the scan.
func (m *MemoryStore) Get(_ context.Context, id string) (*model.Scan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	scan, ok := m.scans[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *scan
	return &copy, nil
}

func (m *MemoryStore) update(id string, fn func(*model.Scan)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	scan, ok := m.scans[id]
	if !ok {
		return ErrNotFound
	}
	fn(scan)
	scan.UpdatedAt = time.Now().UTC()
	return nil
}
