package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gomam/blobstore"
	"github.com/hupe1980/gomam/pagestore"
)

type snapshotOutput struct {
	Name        string `json:"name"`
	Store       string `json:"store"`
	Compression string `json:"compression"`
	Pages       int    `json:"pages"`
	PageSize    int    `json:"page_size"`
}

// snapshotName completes a user supplied name, or generates one from the
// tree kind and the current time.
func snapshotName(name, kind string) string {
	switch {
	case name == "":
		return blobstore.SnapshotName(kind, time.Now())
	case blobstore.IsSnapshot(name):
		return name
	default:
		return name + blobstore.SnapshotExt
	}
}

func newExportCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a page snapshot to the configured store",
		Long: `Write every live page of the index to a snapshot blob. The store is
configured in the export section: local, minio or s3.`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			c, err := pagestore.ParseCompression(a.cfg.Compression)
			if err != nil {
				return err
			}
			st, err := openStore(ctx, a.cfg, nil)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, st.Close()) }()

			blobs, err := openBlobStore(ctx, a.cfg.Export)
			if err != nil {
				return err
			}
			name = snapshotName(name, a.cfg.Kind)
			info, err := pagestore.Backup(ctx, st, blobs, name, c, rateController(a.cfg.Export))
			if err != nil {
				return err
			}
			return a.printSnapshot(cmd, "exported", name, info)
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Snapshot name, generated when empty")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Restore a page snapshot into an empty index",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			st, err := openStore(ctx, a.cfg, nil)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, st.Close()) }()

			blobs, err := openBlobStore(ctx, a.cfg.Export)
			if err != nil {
				return err
			}
			if name == "" {
				latest, err := blobstore.Latest(ctx, blobs, "")
				if err != nil {
					return err
				}
				name = latest.Name
			} else {
				name = snapshotName(name, a.cfg.Kind)
			}
			info, err := pagestore.Restore(ctx, blobs, name, st, rateController(a.cfg.Export))
			if err != nil {
				return err
			}
			return a.printSnapshot(cmd, "imported", name, info)
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Snapshot name, the latest snapshot when empty")
	return cmd
}

type snapshotListing struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

func newSnapshotsCmd(a *app) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List the snapshots in the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			blobs, err := openBlobStore(ctx, a.cfg.Export)
			if err != nil {
				return err
			}
			snaps, err := blobs.List(ctx, prefix)
			if err != nil {
				return err
			}
			out := make([]snapshotListing, len(snaps))
			for i, sn := range snaps {
				out[i] = snapshotListing{Name: sn.Name, Size: sn.Size, Modified: sn.Modified.UTC()}
			}
			return a.print(cmd, out, func(w io.Writer) {
				for _, sn := range out {
					fmt.Fprintf(w, "%s\t%d\t%s\n", sn.Name, sn.Size, sn.Modified.Format(time.RFC3339))
				}
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list names starting with prefix")
	return cmd
}

func (a *app) printSnapshot(cmd *cobra.Command, verb, name string, info pagestore.SnapshotInfo) error {
	out := snapshotOutput{
		Name:        name,
		Store:       a.cfg.Export.Store,
		Compression: info.Compression.String(),
		Pages:       info.Pages,
		PageSize:    info.PageSize,
	}
	return a.print(cmd, out, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s: %d pages of %d bytes (%s) via %s\n",
			verb, out.Name, out.Pages, out.PageSize, out.Compression, out.Store)
	})
}
