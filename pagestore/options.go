package pagestore

import (
	"io"
	"log/slog"

	"github.com/hupe1980/gomam/internal/fs"
)

const (
	// DefaultPageSize is the default usable page size in bytes.
	DefaultPageSize = 4096

	// DefaultHeaderSize is the default size of the header page in bytes.
	DefaultHeaderSize = 512

	// DefaultPoolCapacity is the default number of recycled page instances.
	DefaultPoolCapacity = 16

	// MinimumPageSize is the smallest page size accepted by the built-in backends.
	MinimumPageSize = 64
)

type options struct {
	pageSize     int
	headerSize   int
	poolCapacity int
	lockBytes    int
	fs           fs.FileSystem
	logger       *slog.Logger
}

func defaultOptions() options {
	return options{
		pageSize:     DefaultPageSize,
		headerSize:   DefaultHeaderSize,
		poolCapacity: DefaultPoolCapacity,
		fs:           fs.Default,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func applyOptions(optFns []Option) options {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if o.pageSize < MinimumPageSize {
		o.pageSize = MinimumPageSize
	}
	if o.headerSize < MinimumPageSize {
		o.headerSize = MinimumPageSize
	}
	if o.poolCapacity < 0 {
		o.poolCapacity = 0
	}
	if o.lockBytes < 0 {
		o.lockBytes = 0
	}
	return o
}

// Option configures a Manager.
type Option func(*options)

// WithPageSize sets the usable size of data pages.
// Values below MinimumPageSize are raised to it.
func WithPageSize(size int) Option {
	return func(o *options) {
		o.pageSize = size
	}
}

// WithHeaderSize sets the size of the header page (the user header of a disk file).
func WithHeaderSize(size int) Option {
	return func(o *options) {
		o.headerSize = size
	}
}

// WithPoolCapacity sets how many released page instances are kept for reuse.
func WithPoolCapacity(n int) Option {
	return func(o *options) {
		o.poolCapacity = n
	}
}

// WithLockBytes reserves n leading bytes in every page instance.
func WithLockBytes(n int) Option {
	return func(o *options) {
		o.lockBytes = n
	}
}

// WithFileSystem sets the file system used by file-backed managers.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithLogger sets the logger. Pass nil to keep logging disabled.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
