// Package minio stores page store snapshots on MinIO or any other
// S3-compatible server.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	store := minioblob.NewStore(client, "snapshots", "trees/")
//	info, err := pagestore.Backup(ctx, mgr, store, "vp-001.gmsn", pagestore.CompressionZSTD, nil)
package minio
