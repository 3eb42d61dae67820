package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gomam"
	"github.com/hupe1980/gomam/codec"
	"github.com/hupe1980/gomam/distance"
)

// app carries the configuration shared by every command.
type app struct {
	configPath string
	cfg        Config
	jsonOut    bool

	// flag overrides
	backend  string
	path     string
	kind     string
	metric   string
	pageSize int
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "gomam",
		Short: "gomam - metric access methods over paged storage",
		Long: `gomam builds and queries metric trees (dummy, gh, mm, vp) stored in
memory, single files, shard files or Pebble databases.

Examples:
  gomam build --input points.jsonl --kind vp
  gomam knn --sample 0.5,0.5 -k 10
  gomam range --sample 0.5,0.5 --radius 0.1
  gomam query --type ring --sample 0,0 --inner 1 --radius 2
  gomam stats --json
  gomam export --name nightly`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Path to a YAML configuration file")
	pf.StringVar(&a.backend, "backend", "", "Page backend: memory, disk, multiple or pebble")
	pf.StringVarP(&a.path, "path", "p", "", "Path of the index")
	pf.StringVarP(&a.kind, "kind", "t", "", "Tree kind: dummy, gh, mm or vp")
	pf.StringVar(&a.metric, "metric", "", "Vector metric: euclidean, manhattan or chebyshev")
	pf.IntVar(&a.pageSize, "page-size", 0, "Page size in bytes")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.BoolVar(&a.jsonOut, "json", false, "Output as JSON")

	root.AddCommand(
		newBuildCmd(a),
		newRangeCmd(a),
		newKNNCmd(a),
		newQueryCmd(a),
		newStatsCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newSnapshotsCmd(a),
	)
	return root
}

// loadConfig reads the config file and applies the flags that were set.
func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = a.backend
	}
	if flags.Changed("path") {
		cfg.Path = a.path
	}
	if flags.Changed("kind") {
		cfg.Kind = a.kind
	}
	if flags.Changed("metric") {
		cfg.Metric = a.metric
	}
	if flags.Changed("page-size") {
		cfg.PageSize = a.pageSize
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	return nil
}

// session is an open index together with its backend.
type session struct {
	idx     *gomam.Index[[]float64]
	store   *pageStore
	metrics *gomam.BasicMetricsCollector
}

func (s *session) Close() error {
	return errors.Join(s.idx.Close(), s.store.Close())
}

func (a *app) open(ctx context.Context) (*session, error) {
	logger, err := a.cfg.Log.Logger()
	if err != nil {
		return nil, err
	}
	kind, err := gomam.ParseKind(a.cfg.Kind)
	if err != nil {
		return nil, err
	}
	m, err := distance.ParseMetric(a.cfg.Metric)
	if err != nil {
		return nil, err
	}
	fn, err := distance.Provider(m)
	if err != nil {
		return nil, err
	}
	c, ok := codec.ByName(a.cfg.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", a.cfg.Codec)
	}

	store, err := openStore(ctx, a.cfg, logger.Logger)
	if err != nil {
		return nil, err
	}
	metrics := &gomam.BasicMetricsCollector{}
	opts, err := a.cfg.IndexOptions(logger, metrics)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	idx, err := gomam.Open(store, kind, fn, c, opts...)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	return &session{idx: idx, store: store, metrics: metrics}, nil
}
