package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newBuildCmd(a *app) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Add vectors to the index",
		Long: `Add vectors to the index and build it.

The input holds one JSON array of numbers per vector, for example one array
per line. Use "-" to read from stdin. VP trees are rebuilt from all stored
vectors after the input is consumed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := cmd.InOrStdin()
			if input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			return a.runBuild(cmd, r)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "Vector file, - for stdin")
	return cmd
}

type buildOutput struct {
	Added    int    `json:"added"`
	Objects  int    `json:"objects"`
	Nodes    int    `json:"nodes"`
	Height   int    `json:"height"`
	Duration string `json:"duration"`
}

func (a *app) runBuild(cmd *cobra.Command, r io.Reader) (err error) {
	ctx := cmd.Context()
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()

	start := time.Now()
	dec := json.NewDecoder(r)
	added := 0
	for {
		var v []float64
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("vector %d: %w", added+1, err)
		}
		if err := s.idx.Add(ctx, v); err != nil {
			return fmt.Errorf("vector %d: %w", added+1, err)
		}
		added++
	}
	if err := s.idx.Build(ctx); err != nil {
		return err
	}

	st := s.idx.Stats()
	return a.print(cmd, buildOutput{
		Added:    added,
		Objects:  st.Objects,
		Nodes:    st.Nodes,
		Height:   st.Height,
		Duration: time.Since(start).String(),
	}, func(w io.Writer) {
		fmt.Fprintf(w, "added %d vectors in %s\n", added, time.Since(start).Round(time.Millisecond))
		fmt.Fprintf(w, "%s tree: %d objects, %d nodes, height %d\n", st.Kind, st.Objects, st.Nodes, st.Height)
	})
}
