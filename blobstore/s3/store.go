package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/gomam/blobstore"
)

// snapshotContentType tags uploaded snapshots.
const snapshotContentType = "application/vnd.gomam.snapshot"

// Client is the subset of the S3 API the store uses.
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Compile time check to ensure Store satisfies the blobstore.Store interface.
var _ blobstore.Store = (*Store)(nil)

// Store keeps snapshots as objects of one S3 bucket below a key prefix.
type Store struct {
	client   Client
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// Options configures New.
type Options struct {
	Prefix      string
	Region      string
	PartSize    int64
	Concurrency int
}

// Option configures New.
type Option func(*Options)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = prefix }
}

// WithRegion overrides the region from the environment.
func WithRegion(region string) Option {
	return func(o *Options) { o.Region = region }
}

// WithPartSize sets the multipart upload part size.
func WithPartSize(n int64) Option {
	return func(o *Options) { o.PartSize = n }
}

// New loads the default AWS configuration and creates a store for bucket.
func New(ctx context.Context, bucket string, optFns ...Option) (*Store, error) {
	o := Options{PartSize: manager.DefaultUploadPartSize, Concurrency: manager.DefaultUploadConcurrency}
	for _, fn := range optFns {
		fn(&o)
	}

	var loadOpts []func(*config.LoadOptions) error
	if o.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	st := NewStore(s3.NewFromConfig(cfg), bucket, o.Prefix)
	st.uploader = newUploader(st.client, o)
	return st, nil
}

// NewStore creates a store from an existing client.
func NewStore(client Client, bucket, rootPrefix string) *Store {
	return &Store{
		client:   client,
		bucket:   bucket,
		prefix:   rootPrefix,
		uploader: newUploader(client, Options{PartSize: manager.DefaultUploadPartSize, Concurrency: manager.DefaultUploadConcurrency}),
	}
}

func newUploader(client Client, o Options) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = o.PartSize
		u.Concurrency = o.Concurrency
	})
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open implements blobstore.Store. The object is read in one GET whose
// length is checked against its Content-Length.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nf *types.NotFound
		var nsk *types.NoSuchKey
		if errors.As(err, &nf) || errors.As(err, &nsk) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return blobstore.NewBlob(resp.Body, aws.ToInt64(resp.ContentLength)), nil
}

// Create implements blobstore.Store. The snapshot streams through the
// multipart uploader and is committed on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.Writer, error) {
	pr, pw := io.Pipe()
	w := &writer{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.key(name)),
			Body:        pr,
			ContentType: aws.String(snapshotContentType),
		})
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

// Delete implements blobstore.Store.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}

// List implements blobstore.Store.
func (s *Store) List(ctx context.Context, prefix string) ([]blobstore.Snapshot, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	})

	var snaps []blobstore.Snapshot
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(strings.TrimPrefix(aws.ToString(obj.Key), s.prefix), "/")
			if !blobstore.IsSnapshot(name) {
				continue
			}
			snaps = append(snaps, blobstore.Snapshot{
				Name:     name,
				Size:     aws.ToInt64(obj.Size),
				Modified: aws.ToTime(obj.LastModified),
			})
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps, nil
}

type writer struct {
	pw     *io.PipeWriter
	done   chan error
	closed atomic.Bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return w.pw.Write(p)
}

// Abort fails the upload; the uploader then aborts any multipart upload.
func (w *writer) Abort() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = w.pw.CloseWithError(blobstore.ErrAborted)
	<-w.done
	return nil
}

func (w *writer) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return io.ErrClosedPipe
	}
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}
