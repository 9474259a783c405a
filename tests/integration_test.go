package tests

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowbkg/crossrate/api"
	"github.com/lowbkg/crossrate/internal/evalcache"
	"github.com/lowbkg/crossrate/internal/hierarchy"
	"github.com/lowbkg/crossrate/internal/render"
	"github.com/lowbkg/crossrate/internal/selection"
	"github.com/lowbkg/crossrate/internal/session"
)

// testTable is a small but fully featured report: nested classification
// paths on two dimensions, a unit-suffixed value column, an uncertainty
// encoding and an upper limit.
const testTable = "ID\tG_Component\tG_Source\tV_Rate [1/day]\tV_Mass\n" +
	"m1\tDet___Inner___Bolt\tU___U238\t5+/-1\t2\n" +
	"m2\tDet___Inner___Nut\tTh___Th232\t3\t(1+/-0.2)e1\n" +
	"m3\tDet___Outer\tU___U235\t(5+/-1)e-2\t4\n" +
	"m4\tVeto\tU___U238\t<2\t1\n"

func loadSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(api.DefaultViewConfig())
	require.NoError(t, s.Load(strings.NewReader(testTable)))
	return s
}

// The full pipeline: parse, index, hierarchies, a filter cycle, and the
// rendered report bundle, against an in-memory filesystem.
func TestEndToEndReport(t *testing.T) {
	s := loadSession(t)

	comp, err := s.Tree("Component")
	require.NoError(t, err)
	assert.InDelta(t, 10.05, comp.Root.ValueAll.Sums[0], 1e-9)
	assert.Equal(t, uint64(4), comp.Root.ValueAll.Count)

	// Filter cycle: combined selections commit once, totals move, reset
	// restores the load-time sums exactly.
	ctrl := s.Selection()
	require.NoError(t, ctrl.Select("Source", []string{"U", "U238"}, selection.Opts{Combine: true}))
	require.NoError(t, ctrl.Select("Source", []string{"U", "U235"}, selection.Opts{Combine: true}))
	require.NoError(t, ctrl.Commit())

	comp, err = s.Tree("Component")
	require.NoError(t, err)
	assert.InDelta(t, 7.05, comp.Root.ValueAll.Sums[0], 1e-9, "Th record filtered out")
	assert.NotNil(t, comp.Find([]string{"Det", "Inner", "Nut"}),
		"filtered leaves stay selectable")

	src, err := s.Tree("Source")
	require.NoError(t, err)
	assert.InDelta(t, 10.05, src.Root.ValueAll.Sums[0], 1e-9,
		"self-exclusion: Source's breakdown ignores Source's filter")

	ctrl.ResetAll()
	comp, err = s.Tree("Component")
	require.NoError(t, err)
	assert.InDelta(t, 10.05, comp.Root.ValueAll.Sums[0], 1e-9)

	fs := memfs.New()
	require.NoError(t, render.WriteReport(s, fs))
	for _, name := range []string{"index.html", "Component.svg", "Source.svg", "data.json"} {
		data, err := util.ReadFile(fs, name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, data, name)
	}
}

// Cached datatables replay byte-for-byte and produce identical totals.
func TestCachedTableReplay(t *testing.T) {
	cache, err := evalcache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	require.NoError(t, cache.Put("etag1", []byte(testTable)))
	body, err := cache.Get("etag1")
	require.NoError(t, err)

	s := session.New(api.DefaultViewConfig())
	require.NoError(t, s.Load(bytes.NewReader(body)))
	comp, err := s.Tree("Component")
	require.NoError(t, err)
	assert.InDelta(t, 10.05, comp.Root.ValueAll.Sums[0], 1e-9)
}

// Renderers re-painting after each selection see consistent state: the
// structural invariant holds at every step.
func TestInvariantAcrossFilterSequence(t *testing.T) {
	s := loadSession(t)
	ctrl := s.Selection()

	steps := []func() error{
		func() error { return ctrl.Select("Source", []string{"U"}, selection.Opts{}) },
		func() error {
			return ctrl.Select("Component", []string{"Det", "Inner"}, selection.Opts{Exclude: true})
		},
		func() error { return ctrl.Reset("Source") },
		func() error { ctrl.ResetAll(); return nil },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		for _, dim := range s.Schema().Dimensions {
			tree, err := s.Tree(dim)
			require.NoError(t, err)
			tree.Walk(func(n *hierarchy.Node) bool {
				for vi := range s.Schema().ValueTypes {
					want := 0.0
					if n.Value != nil {
						want += n.Value.Sums[vi]
					}
					for _, c := range n.Children {
						want += c.ValueAll.Sums[vi]
					}
					assert.InDelta(t, want, n.ValueAll.Sums[vi], 1e-9,
						"step %d dim %s node %v", i, dim, n.Key)
				}
				return true
			})
		}
	}
}
