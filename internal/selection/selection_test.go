package selection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowbkg/crossrate/internal/datatable"
	"github.com/lowbkg/crossrate/internal/rollup"
)

func newIndex(t *testing.T) *rollup.Index {
	t.Helper()
	table := "ID\tG_Group\tG_Source\tV_Rate\n" +
		"a\tX___Y\tU\t5\n" +
		"b\tX___Z\tTh\t3\n" +
		"c\tW\tU\t2\n"
	schema, records, err := datatable.ParseTable(strings.NewReader(table), "___")
	require.NoError(t, err)
	return rollup.New(schema, records)
}

func TestPlainSelectReplacesAndNotifiesImmediately(t *testing.T) {
	ix := newIndex(t)
	c := NewController(ix)

	var notified []string
	c.OnChange(func(dim string) { notified = append(notified, dim) })

	require.NoError(t, c.Select("Group", []string{"X"}, Opts{}))
	assert.Equal(t, []string{"Group"}, notified)
	assert.Equal(t, 7.0, ix.Total().Sums[0])

	// A second plain selection replaces, never accumulates.
	require.NoError(t, c.Select("Group", []string{"W"}, Opts{}))
	assert.Equal(t, []string{"Group", "Group"}, notified)
	require.Len(t, c.Active("Group"), 1)
	assert.Equal(t, []string{"W"}, c.Active("Group")[0].Prefix)
	assert.Equal(t, 2.0, ix.Total().Sums[0])
}

func TestCombineCommitsExactlyOnce(t *testing.T) {
	ix := newIndex(t)
	c := NewController(ix)

	var notified []string
	c.OnChange(func(dim string) { notified = append(notified, dim) })

	require.NoError(t, c.Select("Group", []string{"X", "Y"}, Opts{Combine: true}))
	require.NoError(t, c.Select("Group", []string{"W"}, Opts{Combine: true}))
	assert.Empty(t, notified, "combined selections defer recomputation")
	assert.Equal(t, 2, c.Pending())
	assert.Equal(t, 10.0, ix.Total().Sums[0], "nothing applied yet")

	require.NoError(t, c.Commit())
	assert.Equal(t, []string{"Group"}, notified, "one recomputation per dimension")
	assert.Equal(t, 0, c.Pending())
	// Inclusions OR together: X/Y and W pass, X/Z does not.
	assert.Equal(t, 7.0, ix.Total().Sums[0])
}

func TestExcludeSelection(t *testing.T) {
	ix := newIndex(t)
	c := NewController(ix)
	require.NoError(t, c.Select("Source", []string{"Th"}, Opts{Exclude: true}))
	assert.Equal(t, 7.0, ix.Total().Sums[0])
}

func TestRemoveRetriggersScopedRecompute(t *testing.T) {
	ix := newIndex(t)
	c := NewController(ix)
	require.NoError(t, c.Select("Group", []string{"X", "Y"}, Opts{Combine: true}))
	require.NoError(t, c.Select("Group", []string{"W"}, Opts{Combine: true}))
	require.NoError(t, c.Commit())
	assert.Equal(t, 7.0, ix.Total().Sums[0])

	var notified []string
	c.OnChange(func(dim string) { notified = append(notified, dim) })
	require.NoError(t, c.Remove("Group", 1)) // drop the W inclusion
	assert.Equal(t, []string{"Group"}, notified)
	assert.Equal(t, 5.0, ix.Total().Sums[0])

	// Out-of-range removals are ignored.
	require.NoError(t, c.Remove("Group", 9))
	assert.Len(t, notified, 1)
}

func TestUnknownDimensionRejectedOnBothPaths(t *testing.T) {
	ix := newIndex(t)
	c := NewController(ix)

	assert.Error(t, c.Select("Nope", []string{"X"}, Opts{}))

	// The combine path must refuse too; otherwise the test would sit in
	// the pending set and vanish on Commit without ever filtering.
	assert.Error(t, c.Select("Nope", []string{"X"}, Opts{Combine: true}))
	assert.Zero(t, c.Pending())
	require.NoError(t, c.Commit())
	assert.Equal(t, 10.0, ix.Total().Sums[0])
}

func TestResetAll(t *testing.T) {
	ix := newIndex(t)
	c := NewController(ix)
	require.NoError(t, c.Select("Group", []string{"X"}, Opts{}))
	require.NoError(t, c.Select("Source", []string{"U"}, Opts{}))
	require.NoError(t, c.Select("Source", []string{"Th"}, Opts{Combine: true}))

	c.ResetAll()
	assert.Equal(t, 10.0, ix.Total().Sums[0])
	assert.Empty(t, c.Active("Group"))
	assert.Empty(t, c.Active("Source"))
	assert.Zero(t, c.Pending())
}
