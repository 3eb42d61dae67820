// Package s3 stores page store snapshots in Amazon S3.
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("trees/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
// Snapshots are uploaded with the multipart uploader and read back in one
// GET whose length is checked against its Content-Length.
package s3
