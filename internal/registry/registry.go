// Package registry keeps a local record of submitted import jobs keyed by
// job name. The external service happily creates duplicate jobs; this store
// is what lets a rerun resume the job it already paid for.
package registry

import (
	"fmt"
	"sync"
	"time"
)

// NowUnix is swappable in tests.
var NowUnix = func() int64 { return time.Now().Unix() }

// Record is one submitted job. Status holds the last observed service status
// string; only the submitter that owns the run updates it.
type Record struct {
	JobName        string `json:"jobName"`
	JobID          string `json:"jobId"`
	DatasetID      string `json:"datasetId"`
	SourceLocation string `json:"sourceLocation"`
	Status         string `json:"status"`
	CreatedAt      int64  `json:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// Store abstracts the registry backend.
type Store interface {
	Lookup(jobName string) (Record, bool, error)
	Put(rec Record) error
	Range(fn func(rec Record) error) error
	Close() error
}

// InMemoryStore is a simple thread-safe map store, the default for tests and
// one-shot runs that opt out of persistence.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]Record)}
}

func (s *InMemoryStore) Lookup(jobName string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[jobName]
	return rec, ok, nil
}

func (s *InMemoryStore) Put(rec Record) error {
	if rec.JobName == "" {
		return fmt.Errorf("put: empty job name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.JobName] = rec
	return nil
}

func (s *InMemoryStore) Range(fn func(rec Record) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.data {
		if err := fn(rec); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
