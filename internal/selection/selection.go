// Package selection translates selection events into rollup filter
// predicates. A plain selection replaces a dimension's tests and recomputes
// immediately; selections made while a combine modifier is held accumulate
// and are committed exactly once when the modifier is released.
package selection

import (
	"fmt"

	"github.com/lowbkg/crossrate/internal/rollup"
)

// Opts qualify one selection event.
type Opts struct {
	// Exclude registers the path as an exclusion test instead of an
	// inclusion test.
	Exclude bool
	// Combine accumulates the test into the pending set instead of
	// applying it; Commit applies the whole set at once.
	Combine bool
}

// Controller owns the per-dimension test lists and drives re-aggregation.
// It is not safe for concurrent use; callers serialize selection events.
type Controller struct {
	index   *rollup.Index
	pending map[string][]rollup.Test
	subs    []func(dimension string)
}

// NewController binds a controller to a rollup index.
func NewController(index *rollup.Index) *Controller {
	return &Controller{
		index:   index,
		pending: make(map[string][]rollup.Test),
	}
}

// OnChange registers a subscriber notified once per recomputation with the
// dimension whose tests changed.
func (c *Controller) OnChange(fn func(dimension string)) {
	c.subs = append(c.subs, fn)
}

func (c *Controller) notify(dimension string) {
	for _, fn := range c.subs {
		fn(dimension)
	}
}

// Select handles one selection event scoped to a node's full path. The
// dimension is validated up front so a combined selection cannot park a
// test under a name Commit would never apply.
func (c *Controller) Select(dimension string, path []string, opts Opts) error {
	if _, ok := c.index.Schema().DimensionIndex(dimension); !ok {
		return fmt.Errorf("selection: unknown dimension %q", dimension)
	}
	test := rollup.Test{Exclude: opts.Exclude, Prefix: append([]string(nil), path...)}
	if opts.Combine {
		c.pending[dimension] = append(c.pending[dimension], test)
		return nil
	}
	if err := c.index.ApplyFilter(dimension, []rollup.Test{test}); err != nil {
		return err
	}
	c.notify(dimension)
	return nil
}

// Commit applies every pending combined selection, one recomputation per
// affected dimension, then clears the pending set.
func (c *Controller) Commit() error {
	for _, dimension := range c.index.Schema().Dimensions {
		tests, ok := c.pending[dimension]
		if !ok {
			continue
		}
		if err := c.index.ApplyFilter(dimension, tests); err != nil {
			return err
		}
		c.notify(dimension)
	}
	c.pending = make(map[string][]rollup.Test)
	return nil
}

// Pending returns the count of uncommitted combined selections.
func (c *Controller) Pending() int {
	n := 0
	for _, tests := range c.pending {
		n += len(tests)
	}
	return n
}

// Active returns the committed test list for a dimension.
func (c *Controller) Active(dimension string) []rollup.Test {
	return c.index.Filters(dimension)
}

// Remove deletes one test from a dimension's active list and recomputes
// that dimension's filter.
func (c *Controller) Remove(dimension string, i int) error {
	tests := c.index.Filters(dimension)
	if i < 0 || i >= len(tests) {
		return nil
	}
	tests = append(tests[:i], tests[i+1:]...)
	if err := c.index.ApplyFilter(dimension, tests); err != nil {
		return err
	}
	c.notify(dimension)
	return nil
}

// Reset clears one dimension's tests.
func (c *Controller) Reset(dimension string) error {
	if err := c.index.ResetFilter(dimension); err != nil {
		return err
	}
	c.notify(dimension)
	return nil
}

// ResetAll clears every dimension's tests and any pending selections. All
// aggregates revert to full-population sums.
func (c *Controller) ResetAll() {
	c.index.ResetAll()
	c.pending = make(map[string][]rollup.Test)
	for _, dimension := range c.index.Schema().Dimensions {
		c.notify(dimension)
	}
}
