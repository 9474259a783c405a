// Package hierarchy builds one rollup tree per classification dimension
// from the flat keyed aggregates the rollup index produces. Every computed
// presentation field lives on the Node struct and is populated during the
// build's finish pass; nothing is injected onto nodes afterwards.
package hierarchy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lowbkg/crossrate/internal/rollup"
)

// RootName labels a synthesized grand-total root.
const RootName = "Total"

// Node is one entry in a dimension's rollup tree.
type Node struct {
	Key      []string // path segments from root; empty for a synthetic root
	ID       string   // sanitized, unique across dimensions, stable across re-aggregation
	Name     string   // last path segment, or "Total" at a synthetic root
	Depth    int
	Parent   *Node   // shared reference; nil only at the root
	Children []*Node // owned, in display order
	Index    int     // position among parent's children
	Siblings int

	// Value is the node's own aggregate; nil for synthetic nodes that
	// exist only as ancestors. ValueAll is the subtree sum, recomputed
	// bottom-up on every update.
	Value    *rollup.Aggregate
	ValueAll rollup.Aggregate

	// ColorStart/ColorEnd is this node's slice of the [0,1) color
	// interval, nested inside the parent's slice.
	ColorStart float64
	ColorEnd   float64

	keyID  rollup.KeyID // rollup key; meaningful only when hasKey
	hasKey bool
}

// Leaf is one (path, aggregate) input pair.
type Leaf struct {
	Key  rollup.KeyID
	Path []string
	Agg  rollup.Aggregate
}

// Options control child ordering during a build.
type Options struct {
	// SortOrder pins explicit child positions by full path. Unmatched
	// children sort after matched ones, keeping their original order.
	SortOrder [][]string
	// SortValue picks the value-type index for the descending-subtree-sum
	// fallback ordering. With no value columns the record count is used.
	SortValue int
}

// BuildError reports malformed input during tree construction. The caller
// must leave the dimension's hierarchy unset when it sees one.
type BuildError struct {
	Dimension string
	Reason    string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("hierarchy %s: %s", e.Dimension, e.Reason)
}

// Tree is one dimension's rollup hierarchy.
type Tree struct {
	Dimension string
	Root      *Node

	nvals  int
	byKey  map[rollup.KeyID]*Node
	nNodes int
}

// Build constructs the tree for one dimension: ancestors implied by leaf
// paths become synthetic nodes, a grand-total root is synthesized unless
// all leaves already share a single top segment, children are ordered, and
// ids plus color intervals are assigned. nvals sizes the aggregates.
func Build(dimension string, leaves []rollup.Leaf, aggs []rollup.Aggregate, nvals int, opts Options) (*Tree, error) {
	t := &Tree{
		Dimension: dimension,
		nvals:     nvals,
		byKey:     make(map[rollup.KeyID]*Node),
	}

	// Decide the root. A single shared top segment serves as the root
	// itself; anything else (zero leaves included) gets a synthetic one.
	tops := make(map[string]bool)
	for _, l := range leaves {
		if len(l.Path) == 0 {
			return nil, &BuildError{Dimension: dimension, Reason: "empty leaf path"}
		}
		tops[l.Path[0]] = true
	}
	root := &Node{Name: RootName, ValueAll: rollup.NewAggregate(nvals)}
	sharedTop := ""
	if len(tops) == 1 {
		for top := range tops {
			sharedTop = top
		}
		root.Name = sharedTop
		root.Key = []string{sharedTop}
	}
	t.Root = root
	t.nNodes = 1

	for _, l := range leaves {
		agg := rollup.NewAggregate(nvals)
		if int(l.Key) < len(aggs) {
			agg = aggs[l.Key].Clone()
		}
		node := t.insert(l.Path, sharedTop)
		if node.hasKey {
			return nil, &BuildError{Dimension: dimension,
				Reason: fmt.Sprintf("duplicate leaf path %v", l.Path)}
		}
		node.keyID = l.Key
		node.hasKey = true
		node.Value = &agg
		t.byKey[l.Key] = node
	}

	t.sumUp(root)
	t.finish(root, opts)
	return t, nil
}

// insert walks the path from the root, creating synthetic ancestors as
// needed, and returns the node for the full path.
func (t *Tree) insert(path []string, sharedTop string) *Node {
	node := t.Root
	segs := path
	if sharedTop != "" {
		// The root already carries the shared top segment.
		segs = path[1:]
	}
	for _, seg := range segs {
		var child *Node
		for _, c := range node.Children {
			if c.Name == seg {
				child = c
				break
			}
		}
		if child == nil {
			child = &Node{
				Key:      append(append([]string(nil), node.Key...), seg),
				Name:     seg,
				Depth:    node.Depth + 1,
				Parent:   node,
				ValueAll: rollup.NewAggregate(t.nvals),
			}
			node.Children = append(node.Children, child)
			t.nNodes++
		}
		node = child
	}
	return node
}

// sumUp recomputes ValueAll bottom-up: own value (if any) plus children.
func (t *Tree) sumUp(n *Node) {
	n.ValueAll = rollup.NewAggregate(t.nvals)
	if n.Value != nil {
		n.ValueAll.Add(*n.Value)
	}
	for _, c := range n.Children {
		t.sumUp(c)
		n.ValueAll.Add(c.ValueAll)
	}
}

// finish orders children, then assigns ids, sibling positions and color
// intervals in one top-down pass.
func (t *Tree) finish(root *Node, opts Options) {
	t.sortChildren(root, opts)
	root.ID = nodeID(t.Dimension, root.Key, true)
	root.ColorStart, root.ColorEnd = 0, 1
	var walk func(n *Node)
	walk = func(n *Node) {
		span := n.ColorEnd - n.ColorStart
		for i, c := range n.Children {
			c.Index = i
			c.Siblings = len(n.Children)
			c.ID = nodeID(t.Dimension, c.Key, false)
			c.ColorStart = n.ColorStart + span*float64(i)/float64(len(n.Children))
			c.ColorEnd = n.ColorStart + span*float64(i+1)/float64(len(n.Children))
			walk(c)
		}
	}
	walk(root)
}

func (t *Tree) sortChildren(n *Node, opts Options) {
	if len(n.Children) > 1 {
		if opts.SortOrder != nil {
			rank := make(map[*Node]int, len(n.Children))
			for _, c := range n.Children {
				rank[c] = len(opts.SortOrder) // unmatched sort after matched
				for oi, path := range opts.SortOrder {
					if pathEqual(c.Key, path) {
						rank[c] = oi
						break
					}
				}
			}
			sort.SliceStable(n.Children, func(i, j int) bool {
				return rank[n.Children[i]] < rank[n.Children[j]]
			})
		} else {
			sort.SliceStable(n.Children, func(i, j int) bool {
				ki, kj := t.sortKey(n.Children[i], opts), t.sortKey(n.Children[j], opts)
				if ki != kj {
					return ki > kj
				}
				return n.Children[i].Name < n.Children[j].Name
			})
		}
	}
	for _, c := range n.Children {
		t.sortChildren(c, opts)
	}
}

// sortKey is the descending-order fallback: subtree sum of the designated
// value type, or the record count when there are no value columns.
func (t *Tree) sortKey(n *Node, opts Options) float64 {
	if t.nvals == 0 {
		return float64(n.ValueAll.Count)
	}
	vi := opts.SortValue
	if vi < 0 || vi >= t.nvals {
		vi = 0
	}
	return n.ValueAll.Sums[vi]
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// nodeID derives a cross-dimension-unique display id: the dimension name
// plus the path, sanitized to an identifier-safe alphabet. A synthetic
// root has no path and uses the reserved root name instead.
func nodeID(dimension string, key []string, isRoot bool) string {
	parts := make([]string, 0, len(key)+1)
	parts = append(parts, dimension)
	if isRoot && len(key) == 0 {
		parts = append(parts, RootName)
	}
	parts = append(parts, key...)
	for i, p := range parts {
		parts[i] = unsafeID.ReplaceAllString(p, "_")
	}
	return strings.Join(parts, "--")
}

// Reaggregate replaces leaf aggregates after a filter change and recomputes
// every ValueAll bottom-up. Node identity, order and ids are untouched, so
// renderers can animate between snapshots keyed by id.
func (t *Tree) Reaggregate(aggs []rollup.Aggregate) {
	for key, node := range t.byKey {
		if int(key) < len(aggs) {
			agg := aggs[key].Clone()
			node.Value = &agg
		}
	}
	t.sumUp(t.Root)
}

// Walk visits nodes depth-first in display order. Returning false from fn
// skips the node's subtree.
func (t *Tree) Walk(fn func(*Node) bool) {
	var walk func(n *Node)
	walk = func(n *Node) {
		if !fn(n) {
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
}

// Len returns the node count, root included.
func (t *Tree) Len() int { return t.nNodes }

// Find returns the node with the given full path, nil if absent. The
// synthetic root is addressed by the empty path.
func (t *Tree) Find(path []string) *Node {
	n := t.Root
	if len(n.Key) == 1 {
		// Shared-top root consumes the first segment.
		if len(path) == 0 {
			return nil
		}
		if path[0] != n.Key[0] {
			return nil
		}
		path = path[1:]
	}
	for _, seg := range path {
		var next *Node
		for _, c := range n.Children {
			if c.Name == seg {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		n = next
	}
	return n
}
