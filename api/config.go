package api

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// DefaultJoinKey is the token separating path segments inside one TSV cell.
// It exists only at the table boundary; everywhere else paths are []string.
const DefaultJoinKey = "___"

// ChartConfig controls the partition chart renderers.
type ChartConfig struct {
	// Type selects the default layout: "radial" (sunburst) or "rect" (icicle).
	Type string `hcl:"type,optional"`
	// MaxDepth limits how many tree levels are drawn.
	MaxDepth int `hcl:"max_depth,optional"`
	// MinFrac suppresses nodes whose subtree total is below this fraction
	// of the root total.
	MinFrac float64 `hcl:"min_frac,optional"`
	// LabelFrac suppresses labels below this fraction (usually > MinFrac).
	LabelFrac float64 `hcl:"label_frac,optional"`
	// AnimateMS is the shape/label transition duration in milliseconds.
	AnimateMS int `hcl:"animate_ms,optional"`
}

// SortConfig pins an explicit child order for one dimension. Entries are
// full classification paths serialized with the join key; unmatched children
// sort after matched ones in their original order.
type SortConfig struct {
	Dimension string   `hcl:"dimension,label"`
	Order     []string `hcl:"order"`
}

// ViewConfig holds every static option recognized by the rollup/chart
// engine. Loaded once per session and passed by reference; there is no
// hidden global configuration.
type ViewConfig struct {
	// TableDepth is the deepest row level expanded by default.
	TableDepth int `hcl:"table_depth,optional"`
	// Decimals is the significant-digit count for displayed values.
	Decimals int          `hcl:"decimals,optional"`
	JoinKey  string       `hcl:"join_key,optional"`
	Chart    *ChartConfig `hcl:"chart,block"`
	Sorts    []SortConfig `hcl:"sort,block"`
}

// DefaultViewConfig returns the documented defaults.
func DefaultViewConfig() ViewConfig {
	return ViewConfig{
		TableDepth: 1,
		Decimals:   3,
		JoinKey:    DefaultJoinKey,
		Chart: &ChartConfig{
			Type:      "radial",
			MaxDepth:  4,
			MinFrac:   0.002,
			LabelFrac: 0.015,
			AnimateMS: 750,
		},
	}
}

// LoadViewConfig reads an HCL view configuration, layering it over the
// defaults. Unset fields keep their default values.
func LoadViewConfig(path string) (ViewConfig, error) {
	cfg := DefaultViewConfig()
	var raw ViewConfig
	if err := hclsimple.DecodeFile(path, nil, &raw); err != nil {
		return cfg, fmt.Errorf("load view config %s: %w", path, err)
	}
	if raw.TableDepth > 0 {
		cfg.TableDepth = raw.TableDepth
	}
	if raw.Decimals > 0 {
		cfg.Decimals = raw.Decimals
	}
	if raw.JoinKey != "" {
		cfg.JoinKey = raw.JoinKey
	}
	if raw.Chart != nil {
		c := cfg.Chart
		if raw.Chart.Type != "" {
			c.Type = raw.Chart.Type
		}
		if raw.Chart.MaxDepth > 0 {
			c.MaxDepth = raw.Chart.MaxDepth
		}
		if raw.Chart.MinFrac > 0 {
			c.MinFrac = raw.Chart.MinFrac
		}
		if raw.Chart.LabelFrac > 0 {
			c.LabelFrac = raw.Chart.LabelFrac
		}
		if raw.Chart.AnimateMS > 0 {
			c.AnimateMS = raw.Chart.AnimateMS
		}
	}
	cfg.Sorts = raw.Sorts
	return cfg, nil
}

// SortOrder returns the explicit order for a dimension as split paths,
// or nil when the dimension has no configured order.
func (c ViewConfig) SortOrder(dimension string) [][]string {
	for _, s := range c.Sorts {
		if s.Dimension != dimension {
			continue
		}
		order := make([][]string, len(s.Order))
		for i, entry := range s.Order {
			order[i] = strings.Split(entry, c.JoinKey)
		}
		return order
	}
	return nil
}
