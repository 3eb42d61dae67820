package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/hupe1980/gomam/blobstore"
	"github.com/hupe1980/gomam/blobstore/minio"
	"github.com/hupe1980/gomam/blobstore/s3"
	"github.com/hupe1980/gomam/pagestore"
	"github.com/hupe1980/gomam/pagestore/pebblestore"
	"github.com/hupe1980/gomam/resource"
)

// pageStore is an opened backend. Close persists memory backends as a
// snapshot next to the configured path.
type pageStore struct {
	pagestore.Manager
	close func() error
}

func (s *pageStore) Close() error { return s.close() }

func openStore(ctx context.Context, cfg Config, logger *slog.Logger) (*pageStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := []pagestore.Option{
		pagestore.WithPageSize(cfg.PageSize),
		pagestore.WithLogger(logger),
	}

	var (
		mgr pagestore.Manager
		err error
	)
	switch cfg.Backend {
	case "memory":
		return openMemoryStore(ctx, cfg, opts)
	case "disk":
		mgr, err = pagestore.OpenDiskManager(cfg.Path, opts...)
	case "multiple":
		mgr, err = pagestore.OpenMultipleManager(cfg.Path, cfg.PagesPerShard, opts...)
	case "pebble":
		mgr, err = pebblestore.Open(cfg.Path, pebblestore.Options{PageSize: cfg.PageSize, Logger: logger})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}

	if cfg.CachePages > 0 {
		cached, err := pagestore.NewCachedManager(mgr, pagestore.CacheConfig{MaxPages: cfg.CachePages})
		if err != nil {
			return nil, errors.Join(err, mgr.Close())
		}
		mgr = cached
	}
	return &pageStore{Manager: mgr, close: mgr.Close}, nil
}

func openMemoryStore(ctx context.Context, cfg Config, opts []pagestore.Option) (*pageStore, error) {
	c, err := pagestore.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	mgr := pagestore.NewMemoryManager(opts...)
	dir, name := filepath.Split(cfg.Path)
	local := blobstore.NewLocalStore(dir)

	if _, err := pagestore.Restore(ctx, local, name, mgr, nil); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return nil, errors.Join(err, mgr.Close())
	}

	return &pageStore{
		Manager: mgr,
		close: func() error {
			_, err := pagestore.Backup(context.Background(), mgr, local, name, c, nil)
			return errors.Join(err, mgr.Close())
		},
	}, nil
}

// openBlobStore returns the snapshot destination named by the export config.
func openBlobStore(ctx context.Context, cfg ExportConfig) (blobstore.Store, error) {
	switch cfg.Store {
	case "local", "":
		return blobstore.NewLocalStore(cfg.Dir), nil
	case "minio":
		st, err := minio.Dial(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Secure, cfg.Bucket, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "s3":
		st, err := s3.New(ctx, cfg.Bucket, s3.WithPrefix(cfg.Prefix), s3.WithRegion(cfg.Region))
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown snapshot store %q", cfg.Store)
	}
}

func rateController(cfg ExportConfig) *resource.Controller {
	if cfg.RateLimit <= 0 {
		return nil
	}
	return resource.NewController(resource.Config{IOLimitBytesPerSec: cfg.RateLimit})
}
