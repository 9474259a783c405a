package render

import (
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
	"github.com/lowbkg/crossrate/api"
	"github.com/lowbkg/crossrate/internal/hierarchy"
	"github.com/lowbkg/crossrate/internal/session"
)

// Chart renders a dimension's tree as a partition chart: radial (sunburst)
// or rectangular (icicle). Angle or area is proportional to the selected
// value type's subtree sum. Successive renders animate shapes between
// snapshots keyed by stable node id; ids unseen in the previous snapshot
// get a zero-motion transition from their own final geometry.
type Chart struct {
	Dimension string
	// Value picks the value type driving the partition; empty uses the
	// first value column, or the record count if there are none.
	Value string

	prev map[string]geom
}

// geom is a node's partition span: [X0,X1) in unit space plus its ring.
type geom struct {
	x0, x1 float64
	depth  int
}

const (
	chartSize = 720
	ringWidth = 70
	rowHeight = 48
)

type chartNode struct {
	node  *hierarchy.Node
	g     geom
	label bool
}

// Render paints the chart from the session's current tree state and
// records the produced geometry for the next transition.
func (c *Chart) Render(s *session.Session, w io.Writer) error {
	tree, err := s.Tree(c.Dimension)
	if err != nil {
		return err
	}
	cfg := s.Config().Chart
	if cfg == nil {
		// A hand-built ViewConfig may omit the chart block.
		cfg = api.DefaultViewConfig().Chart
	}
	vi := -1
	if len(s.Schema().ValueTypes) > 0 {
		vi = 0
		if c.Value != "" {
			vi, err = s.ValueIndex(c.Value)
			if err != nil {
				return err
			}
		}
	}

	nodes := partition(tree, vi, *cfg)

	canvas := svg.New(w)
	canvas.Start(chartSize, chartSize)
	canvas.Title(c.Dimension)
	for _, cn := range nodes {
		from, ok := c.prev[cn.node.ID]
		if !ok {
			from = cn.g // no previous snapshot: animate in place
		}
		if cfg.Type == "rect" {
			c.paintRect(canvas, cn, from, cfg.AnimateMS)
		} else {
			c.paintArc(canvas, cn, from, cfg.AnimateMS)
		}
	}
	canvas.End()

	c.prev = make(map[string]geom, len(nodes))
	for _, cn := range nodes {
		c.prev[cn.node.ID] = cn.g
	}
	return nil
}

// partition assigns each renderable node its span of the unit interval.
// Children pack into the parent's span proportionally to their subtree
// sums; the remainder covered only by the parent's own value stays
// unpainted below it.
func partition(tree *hierarchy.Tree, valueIdx int, cfg api.ChartConfig) []chartNode {
	basis := func(n *hierarchy.Node) float64 {
		if valueIdx < 0 {
			return float64(n.ValueAll.Count)
		}
		return n.ValueAll.Sums[valueIdx]
	}
	total := basis(tree.Root)
	if total <= 0 {
		return nil
	}
	var out []chartNode
	var walk func(n *hierarchy.Node, g geom)
	walk = func(n *hierarchy.Node, g geom) {
		span := g.x1 - g.x0
		if span < cfg.MinFrac {
			return
		}
		if n.Depth > 0 { // the root total is the reference, not a shape
			out = append(out, chartNode{node: n, g: g, label: span >= cfg.LabelFrac})
		}
		if n.Depth >= cfg.MaxDepth {
			return
		}
		x := g.x0
		for _, child := range n.Children {
			frac := 0.0
			if b := basis(n); b > 0 {
				frac = basis(child) / b
			}
			cg := geom{x0: x, x1: x + span*frac, depth: child.Depth}
			walk(child, cg)
			x = cg.x1
		}
	}
	walk(tree.Root, geom{x0: 0, x1: 1, depth: 0})
	return out
}

func fillStyle(n *hierarchy.Node) string {
	hue := 360 * (n.ColorStart + n.ColorEnd) / 2
	return fmt.Sprintf("fill:hsl(%.0f,65%%,55%%);stroke:white;stroke-width:1", hue)
}

func (c *Chart) paintRect(canvas *svg.SVG, cn chartNode, from geom, animateMS int) {
	x, y, w, h := rectOf(cn.g)
	shape := "s-" + cn.node.ID
	canvas.Gid(cn.node.ID)
	canvas.Rect(x, y, w, h, fmt.Sprintf(`id="%s"`, shape), fillStyle(cn.node))
	if from != cn.g {
		fx, fy, fw, fh := rectOf(from)
		animateAttr(canvas.Writer, shape, "x", fx, x, animateMS)
		animateAttr(canvas.Writer, shape, "y", fy, y, animateMS)
		animateAttr(canvas.Writer, shape, "width", fw, w, animateMS)
		animateAttr(canvas.Writer, shape, "height", fh, h, animateMS)
	}
	if cn.label {
		canvas.Text(x+4, y+h/2+4, cn.node.Name, "font-size:12px;fill:black")
	}
	canvas.Gend()
}

func rectOf(g geom) (x, y, w, h int) {
	x = int(g.x0 * chartSize)
	w = int((g.x1 - g.x0) * chartSize)
	y = (g.depth - 1) * rowHeight
	h = rowHeight - 2
	return
}

func (c *Chart) paintArc(canvas *svg.SVG, cn chartNode, from geom, animateMS int) {
	to := arcPath(cn.g)
	shape := "s-" + cn.node.ID
	canvas.Gid(cn.node.ID)
	canvas.Path(to, fmt.Sprintf(`id="%s"`, shape), fillStyle(cn.node))
	if from != cn.g {
		animatePath(canvas.Writer, shape, arcPath(from), to, animateMS)
	}
	if cn.label {
		mid := (cn.g.x0 + cn.g.x1) / 2 * 2 * math.Pi
		r := float64(cn.g.depth-1)*ringWidth + ringWidth // mid-ring

		x := chartSize/2 + int(r*math.Sin(mid))
		y := chartSize/2 - int(r*math.Cos(mid))
		canvas.Text(x, y, cn.node.Name,
			"font-size:12px;fill:black;text-anchor:middle")
	}
	canvas.Gend()
}

// arcPath builds the annular-sector path for a node's span. Full-circle
// spans are special-cased because an arc with coincident endpoints
// degenerates to nothing.
func arcPath(g geom) string {
	r0 := float64(g.depth-1)*ringWidth + ringWidth/2
	r1 := r0 + ringWidth
	if g.x1-g.x0 >= 1 {
		return donut(r0, r1)
	}
	cx, cy := float64(chartSize)/2, float64(chartSize)/2
	a0 := g.x0 * 2 * math.Pi
	a1 := g.x1 * 2 * math.Pi
	large := 0
	if a1-a0 > math.Pi {
		large = 1
	}
	x0o, y0o := cx+r1*math.Sin(a0), cy-r1*math.Cos(a0)
	x1o, y1o := cx+r1*math.Sin(a1), cy-r1*math.Cos(a1)
	x0i, y0i := cx+r0*math.Sin(a1), cy-r0*math.Cos(a1)
	x1i, y1i := cx+r0*math.Sin(a0), cy-r0*math.Cos(a0)
	return fmt.Sprintf("M%.2f,%.2f A%.2f,%.2f 0 %d,1 %.2f,%.2f L%.2f,%.2f A%.2f,%.2f 0 %d,0 %.2f,%.2f Z",
		x0o, y0o, r1, r1, large, x1o, y1o,
		x0i, y0i, r0, r0, large, x1i, y1i)
}

func donut(r0, r1 float64) string {
	cx, cy := float64(chartSize)/2, float64(chartSize)/2
	return fmt.Sprintf("M%.2f,%.2f A%.2f,%.2f 0 1,1 %.2f,%.2f A%.2f,%.2f 0 1,1 %.2f,%.2f Z M%.2f,%.2f A%.2f,%.2f 0 1,0 %.2f,%.2f A%.2f,%.2f 0 1,0 %.2f,%.2f Z",
		cx, cy-r1, r1, r1, cx, cy+r1, r1, r1, cx, cy-r1,
		cx, cy-r0, r0, r0, cx, cy+r0, r0, r0, cx, cy-r0)
}

// svgo has no helper for string-valued SMIL attributes, so the <animate>
// elements are written straight to the canvas writer, targeting the shape
// by reference since svgo emits self-closing shape elements.
func animateAttr(w io.Writer, shape, attr string, from, to, ms int) {
	fmt.Fprintf(w,
		"<animate xlink:href=\"#%s\" attributeName=\"%s\" from=\"%d\" to=\"%d\" dur=\"%dms\" fill=\"freeze\"/>\n",
		shape, attr, from, to, ms)
}

func animatePath(w io.Writer, shape, from, to string, ms int) {
	fmt.Fprintf(w,
		"<animate xlink:href=\"#%s\" attributeName=\"d\" from=\"%s\" to=\"%s\" dur=\"%dms\" fill=\"freeze\"/>\n",
		shape, from, to, ms)
}
