// Package render turns a dimension's hierarchy plus live aggregate sums
// into an expandable HTML table, a partitioned SVG chart, and a JSON
// snapshot. Renderers subscribe to selection changes and re-paint from the
// same shared session state.
package render

import (
	"fmt"
	"html/template"
	"io"
	"math"

	"github.com/lowbkg/crossrate/internal/hierarchy"
	"github.com/lowbkg/crossrate/internal/session"
)

// Table renders one dimension's tree as an expandable table. Rows below
// the configured open depth are present in the output but marked
// collapsed; each subtree toggles independently of its siblings.
type Table struct {
	Dimension string
	// Values restricts the displayed value columns; empty means all.
	Values []string
}

type tableRow struct {
	ID        string
	ParentID  string
	Name      string
	Depth     int
	HasKids   bool
	Expanded  bool // children visible by default
	Collapsed bool // row itself hidden by default
	Cells     []string
}

type tableView struct {
	Dimension string
	Headers   []string
	Rows      []tableRow
}

var tableTmpl = template.Must(template.New("table").Parse(`<table class="rollup" data-dimension="{{.Dimension}}">
<thead><tr><th>{{.Dimension}}</th>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr id="{{.ID}}" data-depth="{{.Depth}}"{{if .ParentID}} data-parent="{{.ParentID}}"{{end}}{{if .Collapsed}} class="collapsed"{{end}}>
<td style="padding-left:{{.Depth}}em">{{if .HasKids}}<a class="toggle" aria-expanded="{{.Expanded}}" href="#{{.ID}}">{{if .Expanded}}&#9662;{{else}}&#9656;{{end}}</a> {{end}}{{.Name}}</td>
{{- range .Cells}}<td class="num">{{.}}</td>{{end}}
</tr>
{{- end}}
</tbody>
</table>
`))

// RenderHTML paints the table from the session's current tree state.
func (t Table) RenderHTML(s *session.Session, w io.Writer) error {
	tree, err := s.Tree(t.Dimension)
	if err != nil {
		return err
	}
	names := t.Values
	if len(names) == 0 {
		names = s.Schema().ValueTypes
	}
	idx := make([]int, len(names))
	for i, name := range names {
		vi, err := s.ValueIndex(name)
		if err != nil {
			return err
		}
		idx[i] = vi
	}

	view := tableView{Dimension: t.Dimension}
	for i, name := range names {
		head := name
		if unit := s.Schema().Units[idx[i]]; unit != "" {
			head += " [" + unit + "]"
		}
		view.Headers = append(view.Headers, head)
	}

	openDepth := s.Config().TableDepth
	decimals := s.Config().Decimals
	tree.Walk(func(n *hierarchy.Node) bool {
		row := tableRow{
			ID:        n.ID,
			Name:      n.Name,
			Depth:     n.Depth,
			HasKids:   len(n.Children) > 0,
			Expanded:  n.Depth < openDepth,
			Collapsed: n.Depth > openDepth,
		}
		if n.Parent != nil {
			row.ParentID = n.Parent.ID
		}
		for _, vi := range idx {
			row.Cells = append(row.Cells,
				formatValue(n.ValueAll.Sums[vi], n.ValueAll.Vars[vi], decimals))
		}
		view.Rows = append(view.Rows, row)
		return true
	})
	return tableTmpl.Execute(w, view)
}

// formatValue prints "sum ± sqrt(var)" with the configured significant
// digits, omitting the uncertainty when it is zero.
func formatValue(sum, variance float64, decimals int) string {
	v := fmt.Sprintf("%.*g", decimals, sum)
	if variance <= 0 {
		return v
	}
	return v + " ± " + fmt.Sprintf("%.*g", decimals, math.Sqrt(variance))
}
