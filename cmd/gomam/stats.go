package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type statsOutput struct {
	Backend  string `json:"backend"`
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Objects  int    `json:"objects"`
	Buffered int    `json:"buffered"`
	Nodes    int    `json:"nodes"`
	Height   int    `json:"height"`
	Pages    int    `json:"pages"`
	PageSize int    `json:"page_size"`
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, s.Close()) }()

			st := s.idx.Stats()
			out := statsOutput{
				Backend:  a.cfg.Backend,
				Path:     a.cfg.Path,
				Kind:     st.Kind.String(),
				Objects:  st.Objects,
				Buffered: st.Buffered,
				Nodes:    st.Nodes,
				Height:   st.Height,
				Pages:    st.Pages,
				PageSize: s.store.PageSize(),
			}
			return a.print(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "backend:   %s (%s)\n", out.Backend, out.Path)
				fmt.Fprintf(w, "tree:      %s\n", out.Kind)
				fmt.Fprintf(w, "objects:   %d\n", out.Objects)
				fmt.Fprintf(w, "nodes:     %d\n", out.Nodes)
				fmt.Fprintf(w, "height:    %d\n", out.Height)
				fmt.Fprintf(w, "pages:     %d x %d bytes\n", out.Pages, out.PageSize)
			})
		},
	}
}
