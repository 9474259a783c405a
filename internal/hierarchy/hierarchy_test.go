package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowbkg/crossrate/internal/rollup"
)

func agg(vals ...float64) rollup.Aggregate {
	a := rollup.NewAggregate(len(vals))
	a.Count = 1
	copy(a.Sums, vals)
	return a
}

func leaves(paths ...[]string) []rollup.Leaf {
	out := make([]rollup.Leaf, len(paths))
	for i, p := range paths {
		out[i] = rollup.Leaf{Key: rollup.KeyID(i), Path: p}
	}
	return out
}

func TestSyntheticRootAndAncestors(t *testing.T) {
	ls := leaves(
		[]string{"Det", "Inner", "Bolt"},
		[]string{"Det", "Outer"},
		[]string{"Veto"},
	)
	aggs := []rollup.Aggregate{agg(5), agg(3), agg(2)}
	tree, err := Build("Component", ls, aggs, 1, Options{})
	require.NoError(t, err)

	root := tree.Root
	assert.Equal(t, RootName, root.Name, "multiple tops need a synthesized root")
	assert.Empty(t, root.Key)
	assert.Nil(t, root.Value, "synthetic root has no own aggregate")
	assert.Equal(t, 10.0, root.ValueAll.Sums[0])

	det := tree.Find([]string{"Det"})
	require.NotNil(t, det)
	assert.Nil(t, det.Value, "implied ancestor is synthetic")
	assert.Equal(t, 8.0, det.ValueAll.Sums[0])
	assert.Equal(t, 1, det.Depth)
	assert.Same(t, root, det.Parent)

	inner := tree.Find([]string{"Det", "Inner"})
	require.NotNil(t, inner)
	assert.Nil(t, inner.Value)
	bolt := tree.Find([]string{"Det", "Inner", "Bolt"})
	require.NotNil(t, bolt)
	require.NotNil(t, bolt.Value)
	assert.Equal(t, 5.0, bolt.Value.Sums[0])
	assert.Equal(t, 3, bolt.Depth)
}

func TestSharedTopBecomesRoot(t *testing.T) {
	ls := leaves(
		[]string{"Det", "Inner"},
		[]string{"Det", "Outer"},
	)
	tree, err := Build("Component", ls, []rollup.Aggregate{agg(1), agg(2)}, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Det", tree.Root.Name)
	assert.Equal(t, []string{"Det"}, tree.Root.Key)
	assert.Len(t, tree.Root.Children, 2)
	assert.NotNil(t, tree.Find([]string{"Det", "Inner"}))
}

func TestGroupBearingRoot(t *testing.T) {
	// A leaf at the shared top itself attaches its value to the root.
	ls := leaves(
		[]string{"Det"},
		[]string{"Det", "Inner"},
	)
	tree, err := Build("Component", ls, []rollup.Aggregate{agg(1), agg(2)}, 1, Options{})
	require.NoError(t, err)
	require.NotNil(t, tree.Root.Value)
	assert.Equal(t, 1.0, tree.Root.Value.Sums[0])
	assert.Equal(t, 3.0, tree.Root.ValueAll.Sums[0])
}

func TestZeroLeaves(t *testing.T) {
	tree, err := Build("Component", nil, nil, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, RootName, tree.Root.Name)
	assert.Empty(t, tree.Root.Children)
	assert.Zero(t, tree.Root.ValueAll.Sums[0])
	assert.Equal(t, 1, tree.Len())
}

func TestFlatSingleSegmentPaths(t *testing.T) {
	ls := leaves([]string{"A"}, []string{"B"}, []string{"C"})
	tree, err := Build("Source", ls,
		[]rollup.Aggregate{agg(1), agg(2), agg(3)}, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, RootName, tree.Root.Name)
	assert.Len(t, tree.Root.Children, 3)
	for _, c := range tree.Root.Children {
		assert.Empty(t, c.Children)
		assert.Equal(t, 1, c.Depth)
	}
}

func TestSubtreeSumInvariant(t *testing.T) {
	ls := leaves(
		[]string{"Det", "Inner", "Bolt"},
		[]string{"Det", "Inner", "Nut"},
		[]string{"Det", "Outer"},
		[]string{"Veto"},
	)
	aggs := []rollup.Aggregate{agg(5), agg(3), agg(2), agg(7)}
	tree, err := Build("Component", ls, aggs, 1, Options{})
	require.NoError(t, err)

	tree.Walk(func(n *Node) bool {
		want := 0.0
		if n.Value != nil {
			want += n.Value.Sums[0]
		}
		for _, c := range n.Children {
			want += c.ValueAll.Sums[0]
		}
		assert.InDelta(t, want, n.ValueAll.Sums[0], 1e-12, "node %v", n.Key)
		return true
	})
}

func TestDescendingSumSort(t *testing.T) {
	ls := leaves([]string{"Small"}, []string{"Big"}, []string{"Mid"})
	aggs := []rollup.Aggregate{agg(1), agg(9), agg(4)}
	tree, err := Build("Source", ls, aggs, 1, Options{})
	require.NoError(t, err)
	names := childNames(tree.Root)
	assert.Equal(t, []string{"Big", "Mid", "Small"}, names)
	for i, c := range tree.Root.Children {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, 3, c.Siblings)
	}
}

func TestEqualSumsBreakTiesByName(t *testing.T) {
	ls := leaves([]string{"Zed"}, []string{"Alpha"}, []string{"Mid"})
	aggs := []rollup.Aggregate{agg(4), agg(4), agg(4)}
	tree, err := Build("Source", ls, aggs, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Mid", "Zed"}, childNames(tree.Root))
}

func TestExplicitSortOrder(t *testing.T) {
	ls := leaves([]string{"Small"}, []string{"Big"}, []string{"Mid"})
	aggs := []rollup.Aggregate{agg(1), agg(9), agg(4)}
	tree, err := Build("Source", ls, aggs, 1, Options{
		SortOrder: [][]string{{"Mid"}, {"Small"}},
	})
	require.NoError(t, err)
	// Matched entries first in the given order; unmatched keep their
	// original relative position after them.
	assert.Equal(t, []string{"Mid", "Small", "Big"}, childNames(tree.Root))
}

func TestNodeIDStability(t *testing.T) {
	build := func() *Tree {
		ls := leaves(
			[]string{"Det", "Inner", "Bolt"},
			[]string{"Det", "Outer"},
			[]string{"Veto"},
		)
		aggs := []rollup.Aggregate{agg(5), agg(3), agg(2)}
		tree, err := Build("Component", ls, aggs, 1, Options{})
		require.NoError(t, err)
		return tree
	}
	a, b := build(), build()

	var idsA, idsB []string
	a.Walk(func(n *Node) bool { idsA = append(idsA, n.ID); return true })
	b.Walk(func(n *Node) bool { idsB = append(idsB, n.ID); return true })
	assert.Equal(t, idsA, idsB, "identical leaf sets must give identical ids in identical order")
}

func TestNodeIDsUniqueAcrossDimensions(t *testing.T) {
	ls := leaves([]string{"X"})
	aggs := []rollup.Aggregate{agg(1)}
	a, err := Build("Component", ls, aggs, 1, Options{})
	require.NoError(t, err)
	b, err := Build("Source", ls, aggs, 1, Options{})
	require.NoError(t, err)
	assert.NotEqual(t, a.Root.Children[0].ID, b.Root.Children[0].ID)
}

func TestNodeIDSanitized(t *testing.T) {
	ls := leaves([]string{"60Co (bulk)", "γ shield"})
	aggs := []rollup.Aggregate{agg(1), agg(2)}
	tree, err := Build("Source", ls, aggs, 1, Options{})
	require.NoError(t, err)
	tree.Walk(func(n *Node) bool {
		assert.Regexp(t, `^[A-Za-z0-9_-]+(--[A-Za-z0-9_-]+)*$`, n.ID)
		return true
	})
}

func TestColorIntervalSubdivision(t *testing.T) {
	ls := leaves(
		[]string{"A", "A1"}, []string{"A", "A2"}, []string{"B"},
	)
	aggs := []rollup.Aggregate{agg(4), agg(4), agg(2)}
	tree, err := Build("Source", ls, aggs, 1, Options{})
	require.NoError(t, err)

	root := tree.Root
	assert.Equal(t, 0.0, root.ColorStart)
	assert.Equal(t, 1.0, root.ColorEnd)

	tree.Walk(func(n *Node) bool {
		if n.Parent != nil {
			assert.GreaterOrEqual(t, n.ColorStart, n.Parent.ColorStart)
			assert.LessOrEqual(t, n.ColorEnd, n.Parent.ColorEnd)
		}
		for i := 1; i < len(n.Children); i++ {
			assert.Equal(t, n.Children[i-1].ColorEnd, n.Children[i].ColorStart,
				"siblings tile the parent interval")
		}
		return true
	})
}

func TestReaggregateKeepsIdsAndOrder(t *testing.T) {
	ls := leaves([]string{"Big"}, []string{"Small"})
	aggs := []rollup.Aggregate{agg(9), agg(1)}
	tree, err := Build("Source", ls, aggs, 1, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"Big", "Small"}, childNames(tree.Root))
	bigID := tree.Root.Children[0].ID

	// Flip the magnitudes; order and ids must not move.
	tree.Reaggregate([]rollup.Aggregate{agg(1), agg(9)})
	assert.Equal(t, []string{"Big", "Small"}, childNames(tree.Root))
	assert.Equal(t, bigID, tree.Root.Children[0].ID)
	assert.Equal(t, 1.0, tree.Root.Children[0].ValueAll.Sums[0])
	assert.Equal(t, 10.0, tree.Root.ValueAll.Sums[0])
}

func TestBuildErrors(t *testing.T) {
	_, err := Build("X", []rollup.Leaf{{Key: 0, Path: nil}}, nil, 1, Options{})
	var be *BuildError
	require.ErrorAs(t, err, &be)

	dup := []rollup.Leaf{
		{Key: 0, Path: []string{"A"}},
		{Key: 1, Path: []string{"A"}},
	}
	_, err = Build("X", dup, []rollup.Aggregate{agg(1), agg(2)}, 1, Options{})
	require.ErrorAs(t, err, &be)
}

func childNames(n *Node) []string {
	out := make([]string, len(n.Children))
	for i, c := range n.Children {
		out[i] = c.Name
	}
	return out
}
