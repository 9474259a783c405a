package cmd

import (
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lowbkg/crossrate/internal/hierarchy"
	"github.com/lowbkg/crossrate/internal/session"
)

var totalsDepth int

var totalsCmd = &cobra.Command{
	Use:   "totals <table.tsv>",
	Short: "Print per-dimension rollup totals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("read table: %w", err)
		}
		defer func() { _ = f.Close() }()

		s := session.New(cfg)
		if err := s.Load(f); err != nil {
			return err
		}
		if err := applyFilters(s); err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		for _, dim := range s.Schema().Dimensions {
			tree, err := s.Tree(dim)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t", dim)
			for i, name := range s.Schema().ValueTypes {
				unit := s.Schema().Units[i]
				if unit != "" {
					name += " [" + unit + "]"
				}
				fmt.Fprintf(tw, "%s\t", name)
			}
			fmt.Fprintln(tw, "count")
			tree.Walk(func(n *hierarchy.Node) bool {
				if n.Depth > totalsDepth {
					return false
				}
				fmt.Fprintf(tw, "%s%s\t", strings.Repeat("  ", n.Depth), n.Name)
				for vi := range s.Schema().ValueTypes {
					fmt.Fprintf(tw, "%.*g ± %.*g\t",
						cfg.Decimals, n.ValueAll.Sums[vi],
						cfg.Decimals, math.Sqrt(n.ValueAll.Vars[vi]))
				}
				fmt.Fprintf(tw, "%d\n", n.ValueAll.Count)
				return true
			})
			fmt.Fprintln(tw)
		}
		return tw.Flush()
	},
}

func init() {
	addFilterFlags(totalsCmd)
	totalsCmd.Flags().IntVar(&totalsDepth, "depth", 2, "Deepest tree level to print")
	rootCmd.AddCommand(totalsCmd)
}
