package speechcache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by an Index when no entry matches.
var ErrNotFound = errors.New("speechcache: not found")

// Entry describes one cached audio artifact.
type Entry struct {
	Fingerprint string    `msgpack:"fp" json:"fingerprint"`
	Text        string    `msgpack:"text" json:"text"`
	Path        string    `msgpack:"path" json:"path"`
	Encoding    string    `msgpack:"enc" json:"encoding"`
	SampleRate  int       `msgpack:"rate" json:"sample_rate"`
	Size        int64     `msgpack:"size" json:"size"`
	CreatedAt   time.Time `msgpack:"created_at" json:"created_at"`
}

// Index maps fingerprints to entries. Implementations must be safe for
// concurrent use.
type Index interface {
	// Get returns the entry for fp, or ErrNotFound.
	Get(ctx context.Context, fp string) (*Entry, error)

	// Put stores e under e.Fingerprint, replacing any previous entry.
	Put(ctx context.Context, e *Entry) error

	// Delete removes the entry for fp. Missing entries are not an error.
	Delete(ctx context.Context, fp string) error

	Close() error
}

// MemoryIndex is an Index held in a map.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryIndex creates an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]Entry)}
}

func (m *MemoryIndex) Get(_ context.Context, fp string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[fp]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *MemoryIndex) Put(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Fingerprint] = *e
	return nil
}

func (m *MemoryIndex) Delete(_ context.Context, fp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, fp)
	return nil
}

// Len returns the number of entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryIndex) Close() error {
	return nil
}

var _ Index = (*MemoryIndex)(nil)
