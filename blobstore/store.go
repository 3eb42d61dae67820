package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// SnapshotExt is the name suffix of page store snapshots.
const SnapshotExt = ".gmsn"

var (
	// ErrNotFound is returned when a snapshot does not exist.
	//
	// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
	ErrNotFound = os.ErrNotExist

	// ErrSizeMismatch is returned by a Blob whose content ends before, or runs
	// past, the size the store recorded for it.
	ErrSizeMismatch = errors.New("blobstore: snapshot size mismatch")

	// ErrAborted is returned by Close after Abort.
	ErrAborted = errors.New("blobstore: snapshot upload aborted")
)

// Store keeps page store snapshots as named blobs.
type Store interface {
	// Open opens a snapshot for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create starts writing a snapshot. It becomes visible on Close and never
	// after Abort.
	Create(ctx context.Context, name string) (Writer, error)

	// Delete removes a snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the snapshots whose names start with prefix, sorted by name.
	// Blobs without SnapshotExt are skipped.
	List(ctx context.Context, prefix string) ([]Snapshot, error)
}

// Blob is a snapshot opened for reading. Reads fail with ErrSizeMismatch
// when the content does not match Size.
type Blob interface {
	io.ReadCloser

	// Size returns the size recorded by the store.
	Size() int64
}

// Writer is a snapshot being written.
type Writer interface {
	io.WriteCloser

	// Abort discards everything written so far.
	Abort() error
}

// Snapshot describes a stored snapshot.
type Snapshot struct {
	Name     string
	Size     int64
	Modified time.Time
}

// SnapshotName returns a sortable snapshot name for base taken at t.
func SnapshotName(base string, t time.Time) string {
	return fmt.Sprintf("%s-%s%s", base, t.UTC().Format("20060102T150405.000Z"), SnapshotExt)
}

// IsSnapshot reports whether name carries SnapshotExt.
func IsSnapshot(name string) bool {
	return strings.HasSuffix(name, SnapshotExt) && len(name) > len(SnapshotExt)
}

// Latest returns the most recently modified snapshot below prefix. Ties go
// to the larger name.
func Latest(ctx context.Context, s Store, prefix string) (Snapshot, error) {
	snaps, err := s.List(ctx, prefix)
	if err != nil {
		return Snapshot{}, err
	}
	if len(snaps) == 0 {
		return Snapshot{}, fmt.Errorf("no snapshot below %q: %w", prefix, ErrNotFound)
	}
	latest := snaps[0]
	for _, sn := range snaps[1:] {
		if sn.Modified.After(latest.Modified) || (sn.Modified.Equal(latest.Modified) && sn.Name > latest.Name) {
			latest = sn
		}
	}
	return latest, nil
}

func sortSnapshots(snaps []Snapshot) []Snapshot {
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}

// sizedBlob enforces the recorded size on a reader.
type sizedBlob struct {
	r    io.Reader
	c    io.Closer
	size int64
	read int64
}

// NewBlob wraps rc as a Blob of the given recorded size.
func NewBlob(rc io.ReadCloser, size int64) Blob {
	return &sizedBlob{r: rc, c: rc, size: size}
}

func (b *sizedBlob) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.read += int64(n)
	if b.read > b.size {
		return n, fmt.Errorf("%w: more than %d bytes", ErrSizeMismatch, b.size)
	}
	if err == io.EOF && b.read < b.size {
		return n, fmt.Errorf("%w: %d of %d bytes", ErrSizeMismatch, b.read, b.size)
	}
	return n, err
}

func (b *sizedBlob) Size() int64 { return b.size }

func (b *sizedBlob) Close() error { return b.c.Close() }
