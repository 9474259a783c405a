package render

import (
	"bytes"
	"fmt"
	"html/template"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/lowbkg/crossrate/internal/session"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>crossrate report</title>
<style>
table.rollup { border-collapse: collapse; margin-bottom: 2em; }
table.rollup td, table.rollup th { border: 1px solid #ccc; padding: 2px 8px; }
table.rollup td.num { text-align: right; font-variant-numeric: tabular-nums; }
tr.collapsed { display: none; }
a.toggle { text-decoration: none; color: inherit; }
</style>
<script>
document.addEventListener('click', function (ev) {
  var t = ev.target.closest('a.toggle');
  if (!t) return;
  ev.preventDefault();
  var row = t.closest('tr');
  var open = t.getAttribute('aria-expanded') !== 'true';
  t.setAttribute('aria-expanded', open);
  t.innerHTML = open ? '▾' : '▸';
  var rows = row.parentNode.querySelectorAll('tr[data-parent="' + row.id + '"]');
  rows.forEach(function (r) {
    r.classList.toggle('collapsed', !open);
    if (!open) collapseSubtree(r, row.parentNode);
  });
  function collapseSubtree(r, body) {
    var kid = r.querySelector('a.toggle');
    if (kid) { kid.setAttribute('aria-expanded', false); kid.innerHTML = '▸'; }
    body.querySelectorAll('tr[data-parent="' + r.id + '"]').forEach(function (rr) {
      rr.classList.add('collapsed');
      collapseSubtree(rr, body);
    });
  }
});
</script>
</head>
<body>
<h1>Rollup report</h1>
{{- range .Dimensions}}
<h2>{{.}}</h2>
<object type="image/svg+xml" data="{{.}}.svg"></object>
{{- end}}
{{- range .Tables}}
{{.}}
{{- end}}
<p><a href="data.json">JSON snapshot</a></p>
</body>
</html>
`))

// WriteReport renders the full dashboard bundle (index.html, one SVG chart
// per dimension, and the JSON snapshot) into the given filesystem. The CLI
// passes an osfs rooted at the output directory; tests pass a memfs.
func WriteReport(s *session.Session, fs billy.Filesystem) error {
	if !s.Loaded() {
		if err := s.Err(); err != nil {
			return err
		}
		return fmt.Errorf("render: session not loaded")
	}

	var tables []template.HTML
	for _, dim := range s.Schema().Dimensions {
		var buf bytes.Buffer
		if err := (Table{Dimension: dim}).RenderHTML(s, &buf); err != nil {
			return fmt.Errorf("render table %s: %w", dim, err)
		}
		tables = append(tables, template.HTML(buf.String()))

		chart := &Chart{Dimension: dim}
		var svgBuf bytes.Buffer
		if err := chart.Render(s, &svgBuf); err != nil {
			return fmt.Errorf("render chart %s: %w", dim, err)
		}
		if err := util.WriteFile(fs, dim+".svg", svgBuf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s.svg: %w", dim, err)
		}
	}

	var snap bytes.Buffer
	if err := Snapshot(s, &snap); err != nil {
		return err
	}
	if err := util.WriteFile(fs, "data.json", snap.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write data.json: %w", err)
	}

	var page bytes.Buffer
	err := indexTmpl.Execute(&page, struct {
		Dimensions []string
		Tables     []template.HTML
	}{s.Schema().Dimensions, tables})
	if err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	if err := util.WriteFile(fs, "index.html", page.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write index.html: %w", err)
	}
	return nil
}
