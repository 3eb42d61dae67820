package blobstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// Compile time check to ensure MemoryStore satisfies the Store interface.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps snapshots in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]memorySnapshot
	now   func() time.Time
}

type memorySnapshot struct {
	data     []byte
	modified time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]memorySnapshot), now: time.Now}
}

// Open implements Store. Stored bytes are never mutated, so readers share them.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sn, ok := m.snaps[name]
	if !ok {
		return nil, ErrNotFound
	}
	return NewBlob(io.NopCloser(bytes.NewReader(sn.data)), int64(len(sn.data))), nil
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, name string) (Writer, error) {
	return &memoryWriter{store: m, name: name}, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, name)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var snaps []Snapshot
	for name, sn := range m.snaps {
		if strings.HasPrefix(name, prefix) && IsSnapshot(name) {
			snaps = append(snaps, Snapshot{Name: name, Size: int64(len(sn.data)), Modified: sn.modified})
		}
	}
	return sortSnapshots(snaps), nil
}

type memoryWriter struct {
	store   *MemoryStore
	name    string
	buf     bytes.Buffer
	closed  bool
	aborted bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.closed || w.aborted {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Abort() error {
	w.aborted = true
	w.buf.Reset()
	return nil
}

func (w *memoryWriter) Close() error {
	switch {
	case w.aborted:
		return ErrAborted
	case w.closed:
		return io.ErrClosedPipe
	}
	w.closed = true
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.snaps[w.name] = memorySnapshot{data: bytes.Clone(w.buf.Bytes()), modified: w.store.now()}
	return nil
}
