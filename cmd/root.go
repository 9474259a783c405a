package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lowbkg/crossrate/api"
	"github.com/lowbkg/crossrate/internal/selection"
	"github.com/lowbkg/crossrate/internal/session"
)

var (
	configPath   string
	filterFlags  []string
	excludeFlags []string
)

var rootCmd = &cobra.Command{
	Use:   "crossrate",
	Short: "crossrate: crossfilter rollup reports for background-rate tables",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a view config (HCL)")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&filterFlags, "filter", "f", nil,
		"Include only records matching DIM=seg/seg prefix (repeatable; same-dimension filters OR together)")
	cmd.Flags().StringArrayVarP(&excludeFlags, "exclude", "x", nil,
		"Exclude records matching DIM=seg/seg prefix (repeatable)")
}

// loadConfig layers the optional HCL file over the defaults.
func loadConfig() (api.ViewConfig, error) {
	if configPath == "" {
		return api.DefaultViewConfig(), nil
	}
	return api.LoadViewConfig(configPath)
}

// applyFilters feeds the CLI filter flags through the selection controller
// the same way an interactive page would: accumulated with the combine
// modifier, committed once.
func applyFilters(s *session.Session) error {
	ctrl := s.Selection()
	apply := func(flags []string, exclude bool) error {
		for _, f := range flags {
			dim, path, err := splitFilterFlag(f)
			if err != nil {
				return err
			}
			err = ctrl.Select(dim, path, selection.Opts{Exclude: exclude, Combine: true})
			if err != nil {
				return err
			}
		}
		return nil
	}
	if err := apply(filterFlags, false); err != nil {
		return err
	}
	if err := apply(excludeFlags, true); err != nil {
		return err
	}
	return ctrl.Commit()
}

func splitFilterFlag(f string) (string, []string, error) {
	dim, rest, ok := strings.Cut(f, "=")
	if !ok || dim == "" || rest == "" {
		return "", nil, fmt.Errorf("bad filter %q: expected DIM=seg/seg", f)
	}
	return dim, strings.Split(rest, "/"), nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
