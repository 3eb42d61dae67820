package blobstore

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/gomam/internal/mmap"
)

// Compile time check to ensure LocalStore satisfies the Store interface.
var _ Store = (*LocalStore)(nil)

// tempMarker is part of the name of snapshots still being written.
const tempMarker = ".tmp-"

// LocalStore keeps snapshots as files below a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open implements Store. The file is memory-mapped and read sequentially.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	m, err := mmap.Open(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_ = m.Advise(mmap.HintSequential)
	size := int64(m.Len())
	return NewBlob(mappedReader{SectionReader: io.NewSectionReader(m, 0, size), m: m}, size), nil
}

// Create implements Store. The snapshot is written to a temporary file that
// is renamed into place on Close, so readers never observe a partial one.
func (s *LocalStore) Create(_ context.Context, name string) (Writer, error) {
	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+tempMarker+"*")
	if err != nil {
		return nil, err
	}
	return &localWriter{f: f, path: path}, nil
}

// Delete implements Store.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List implements Store.
func (s *LocalStore) List(_ context.Context, prefix string) ([]Snapshot, error) {
	var snaps []Snapshot
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.Contains(d.Name(), tempMarker) || !IsSnapshot(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		snaps = append(snaps, Snapshot{Name: name, Size: fi.Size(), Modified: fi.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortSnapshots(snaps), nil
}

type mappedReader struct {
	*io.SectionReader
	m *mmap.Mapping
}

func (r mappedReader) Close() error { return r.m.Close() }

type localWriter struct {
	f       *os.File
	path    string
	aborted bool
}

func (w *localWriter) Write(p []byte) (int, error) { return w.f.Write(p) }

func (w *localWriter) Abort() error {
	w.aborted = true
	_ = w.f.Close()
	if err := os.Remove(w.f.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (w *localWriter) Close() error {
	if w.aborted {
		return ErrAborted
	}
	tmp := w.f.Name()
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, w.path)
}
