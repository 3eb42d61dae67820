package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gomam"
	"github.com/hupe1980/gomam/result"
)

type queryFlags struct {
	sample string
	radius float64
	inner  float64
	k      int
	tie    bool
	kind   string
}

func (f *queryFlags) query(t result.QueryType) (result.Query[[]float64], error) {
	v, err := parseVector(f.sample)
	if err != nil {
		return result.Query[[]float64]{}, fmt.Errorf("invalid sample: %w", err)
	}
	return result.Query[[]float64]{
		Type:        t,
		Sample:      v,
		K:           f.k,
		Radius:      f.radius,
		InnerRadius: f.inner,
		Tie:         f.tie,
	}, nil
}

func newRangeCmd(a *app) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Find vectors within a radius",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runQuery(cmd, f, result.Range)
		},
	}
	cmd.Flags().StringVarP(&f.sample, "sample", "s", "", "Query vector, comma separated")
	cmd.Flags().Float64VarP(&f.radius, "radius", "r", 0, "Search radius")
	_ = cmd.MarkFlagRequired("sample")
	return cmd
}

func newKNNCmd(a *app) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "knn",
		Short: "Find the k nearest vectors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runQuery(cmd, f, result.KNN)
		},
	}
	cmd.Flags().StringVarP(&f.sample, "sample", "s", "", "Query vector, comma separated")
	cmd.Flags().IntVarP(&f.k, "k", "k", 10, "Number of neighbours")
	cmd.Flags().BoolVar(&f.tie, "tie", false, "Also return vectors tied with the k-th")
	_ = cmd.MarkFlagRequired("sample")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run any query type",
		Long: `Run a query of the given type: range, knn, point, ring, k-and-range,
k-or-range or k-ring. Rings use --inner < d <= --radius.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := parseQueryType(f.kind)
			if err != nil {
				return err
			}
			return a.runQuery(cmd, f, t)
		},
	}
	cmd.Flags().StringVar(&f.kind, "type", "knn", "Query type")
	cmd.Flags().StringVarP(&f.sample, "sample", "s", "", "Query vector, comma separated")
	cmd.Flags().Float64VarP(&f.radius, "radius", "r", 0, "Search radius, outer radius of rings")
	cmd.Flags().Float64Var(&f.inner, "inner", 0, "Inner radius of rings")
	cmd.Flags().IntVarP(&f.k, "k", "k", 10, "Number of neighbours")
	cmd.Flags().BoolVar(&f.tie, "tie", false, "Also return vectors tied with the k-th")
	_ = cmd.MarkFlagRequired("sample")
	return cmd
}

func parseQueryType(s string) (result.QueryType, error) {
	for t := result.Range; t <= result.KRing; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return result.Unknown, fmt.Errorf("unknown query type %q", s)
}

type neighbour struct {
	Vector   []float64 `json:"vector"`
	Distance float64   `json:"distance"`
}

type queryOutput struct {
	Type      string      `json:"type"`
	Results   []neighbour `json:"results"`
	Distances uint64      `json:"distance_evaluations"`
	PageReads uint64      `json:"page_reads"`
	Duration  string      `json:"duration"`
}

func (a *app) runQuery(cmd *cobra.Command, f *queryFlags, t result.QueryType) (err error) {
	q, err := f.query(t)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()

	res, stats, err := s.idx.Search(ctx, q)
	if err != nil {
		if errors.Is(err, gomam.ErrNotSupported) {
			return fmt.Errorf("%s trees do not answer %s queries", s.idx.Kind(), t)
		}
		return err
	}

	out := queryOutput{
		Type:      t.String(),
		Results:   make([]neighbour, 0, res.Len()),
		Distances: stats.Distances,
		PageReads: stats.PageReads,
		Duration:  stats.Duration.String(),
	}
	for _, p := range res.Pairs() {
		out.Results = append(out.Results, neighbour{Vector: p.Object, Distance: p.Distance})
	}
	return a.print(cmd, out, func(w io.Writer) {
		for _, n := range out.Results {
			fmt.Fprintf(w, "%.6g\t%s\n", n.Distance, formatVector(n.Vector))
		}
		fmt.Fprintf(w, "%d results, %d distance evaluations, %d page reads, %s\n",
			len(out.Results), out.Distances, out.PageReads, out.Duration)
	})
}
