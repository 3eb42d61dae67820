package minio

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/gomam/blobstore"
)

// snapshotContentType tags uploaded snapshots.
const snapshotContentType = "application/vnd.gomam.snapshot"

// Compile time check to ensure Store satisfies the blobstore.Store interface.
var _ blobstore.Store = (*Store)(nil)

// Store keeps snapshots as objects of one bucket below a key prefix.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStore creates a store for bucket. Every key starts with prefix.
func NewStore(client *minio.Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// Dial connects to endpoint with static credentials.
func Dial(endpoint, accessKey, secretKey string, secure bool, bucket, prefix string) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}
	return NewStore(client, bucket, prefix), nil
}

func (s *Store) key(name string) string { return path.Join(s.prefix, name) }

func (s *Store) name(key string) string {
	return strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
}

func missing(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Open implements blobstore.Store. The object is read in one GET whose
// length is checked against the size reported by StatObject.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if missing(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return blobstore.NewBlob(obj, info.Size), nil
}

// Create implements blobstore.Store. The object is streamed with an unknown
// length and committed on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.Writer, error) {
	pr, pw := io.Pipe()
	w := &writer{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, s.key(name), pr, -1, minio.PutObjectOptions{
			ContentType: snapshotContentType,
		})
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

// Delete implements blobstore.Store.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{}); err != nil && !missing(err) {
		return err
	}
	return nil
}

// List implements blobstore.Store. MinIO lists keys in order, so the names
// come back sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]blobstore.Snapshot, error) {
	var snaps []blobstore.Snapshot
	opts := minio.ListObjectsOptions{Prefix: s.key(prefix), Recursive: true}
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if sn, ok := s.snapshot(obj); ok {
			snaps = append(snaps, sn)
		}
	}
	return snaps, nil
}

// snapshot converts a listed object, skipping non-snapshot keys.
func (s *Store) snapshot(obj minio.ObjectInfo) (blobstore.Snapshot, bool) {
	name := s.name(obj.Key)
	if !blobstore.IsSnapshot(name) {
		return blobstore.Snapshot{}, false
	}
	return blobstore.Snapshot{Name: name, Size: obj.Size, Modified: obj.LastModified}, true
}

type writer struct {
	pw     *io.PipeWriter
	done   chan error
	closed bool
}

func (w *writer) Write(p []byte) (int, error) { return w.pw.Write(p) }

// Abort fails the upload so MinIO never commits the object.
func (w *writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.pw.CloseWithError(blobstore.ErrAborted)
	<-w.done
	return nil
}

func (w *writer) Close() error {
	if w.closed {
		return errors.New("minio: snapshot writer already closed")
	}
	w.closed = true
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}
