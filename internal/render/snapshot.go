package render

import (
	"fmt"
	"io"

	"github.com/ohler55/ojg/oj"

	"github.com/lowbkg/crossrate/internal/hierarchy"
	"github.com/lowbkg/crossrate/internal/session"
)

// Snapshot dumps every dimension's current tree as JSON: the data the
// browser-side page embeds to seed its own state.
func Snapshot(s *session.Session, w io.Writer) error {
	doc := map[string]any{
		"dimensions": map[string]any{},
		"values":     s.Schema().ValueTypes,
		"units":      s.Schema().Units,
	}
	dims := doc["dimensions"].(map[string]any)
	for _, dim := range s.Schema().Dimensions {
		tree, err := s.Tree(dim)
		if err != nil {
			return err
		}
		dims[dim] = snapshotNode(tree.Root)
	}
	out, err := oj.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = w.Write(out)
	return err
}

func snapshotNode(n *hierarchy.Node) map[string]any {
	m := map[string]any{
		"id":         n.ID,
		"name":       n.Name,
		"key":        n.Key,
		"depth":      n.Depth,
		"valueAll":   snapshotAgg(n.ValueAll.Count, n.ValueAll.Sums, n.ValueAll.Vars),
		"colorStart": n.ColorStart,
		"colorEnd":   n.ColorEnd,
	}
	if n.Value != nil {
		m["value"] = snapshotAgg(n.Value.Count, n.Value.Sums, n.Value.Vars)
	}
	if len(n.Children) > 0 {
		kids := make([]any, len(n.Children))
		for i, c := range n.Children {
			kids[i] = snapshotNode(c)
		}
		m["children"] = kids
	}
	return m
}

func snapshotAgg(count uint64, sums, vars []float64) map[string]any {
	return map[string]any{"count": count, "sums": sums, "vars": vars}
}
