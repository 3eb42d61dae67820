// Package blobstore keeps page store snapshots as named blobs.
//
// A snapshot is written through a Writer and only becomes visible on Close;
// Abort discards it. Readers get the recorded size up front and fail with
// ErrSizeMismatch when the content disagrees, so a truncated upload never
// restores silently. List reports only names ending in SnapshotExt.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests
//   - LocalStore: a directory on the local file system, read through mmap
//   - minio.Store: MinIO and other S3-compatible servers
//   - s3.Store: Amazon S3 with multipart uploads
//
// Implementations must be safe for concurrent use.
package blobstore
