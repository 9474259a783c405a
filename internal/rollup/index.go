// Package rollup maintains per-dimension aggregates over a flat record set
// with crossfilter semantics: filtering a dimension restricts every other
// dimension's aggregates, never its own displayed breakdown.
//
// Storage is column-major roaring bitmaps (one bitmap of record indices
// per interned classification path), so a filter change is a handful of
// bitmap intersections followed by one accumulation pass over the
// surviving records.
package rollup

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/lowbkg/crossrate/internal/datatable"
)

// Test is one filter predicate: a record's path passes when its leading
// segments equal Prefix exactly, length for length.
type Test struct {
	Exclude bool
	Prefix  []string
}

// Matches reports whether path starts with the test's prefix.
func (t Test) Matches(path []string) bool {
	if len(t.Prefix) > len(path) {
		return false
	}
	for i, seg := range t.Prefix {
		if path[i] != seg {
			return false
		}
	}
	return true
}

// passes applies the full predicate set: with no inclusion tests the path
// passes vacuously; otherwise it must match at least one inclusion prefix.
// Exclusion prefixes are checked independently and always win.
func passes(tests []Test, path []string) bool {
	included := true
	for _, t := range tests {
		if t.Exclude {
			continue
		}
		included = false
		break
	}
	for _, t := range tests {
		switch {
		case t.Exclude:
			if t.Matches(path) {
				return false
			}
		case !included:
			if t.Matches(path) {
				included = true
			}
		}
	}
	return included
}

// Leaf is one observed classification path with its interned ID.
type Leaf struct {
	Key  KeyID
	Path []string
}

type dimension struct {
	name    string
	keys    pathSet
	columns []*roaring.Bitmap // KeyID → records carrying that exact path
	tests   []Test
	pass    *roaring.Bitmap // records passing this dimension's own tests
}

// Index is the rollup index over one loaded record set. Records are added
// once at load; afterwards they are only filtered in or out of the sums.
type Index struct {
	schema  *datatable.Schema
	records []datatable.Record
	dims    []*dimension
	all     *roaring.Bitmap
}

// New indexes all records. This is the only bulk-add; the record set is
// immutable afterwards.
func New(schema *datatable.Schema, records []datatable.Record) *Index {
	ix := &Index{
		schema:  schema,
		records: records,
		all:     roaring.New(),
	}
	ix.all.AddRange(0, uint64(len(records)))
	for _, name := range schema.Dimensions {
		ix.dims = append(ix.dims, &dimension{name: name})
	}
	for ri := range records {
		for di, d := range ix.dims {
			key := d.keys.intern(records[ri].Groups[di])
			for int(key) >= len(d.columns) {
				d.columns = append(d.columns, roaring.New())
			}
			d.columns[key].Add(uint32(ri))
		}
	}
	return ix
}

// Schema returns the schema the index was built from.
func (ix *Index) Schema() *datatable.Schema { return ix.schema }

// Records returns the immutable loaded record set.
func (ix *Index) Records() []datatable.Record { return ix.records }

func (ix *Index) dim(name string) (*dimension, int, error) {
	i, ok := ix.schema.DimensionIndex(name)
	if !ok {
		return nil, 0, fmt.Errorf("rollup: unknown dimension %q", name)
	}
	return ix.dims[i], i, nil
}

// ApplyFilter replaces one dimension's predicate set. Passing an empty set
// is equivalent to ResetFilter.
func (ix *Index) ApplyFilter(dimension string, tests []Test) error {
	d, _, err := ix.dim(dimension)
	if err != nil {
		return err
	}
	d.tests = append([]Test(nil), tests...)
	if len(tests) == 0 {
		d.pass = nil
		return nil
	}
	pass := roaring.New()
	for key, col := range d.columns {
		if passes(tests, d.keys.path(KeyID(key))) {
			pass.Or(col)
		}
	}
	d.pass = pass
	return nil
}

// ResetFilter clears one dimension's predicates.
func (ix *Index) ResetFilter(dimension string) error {
	return ix.ApplyFilter(dimension, nil)
}

// ResetAll clears every dimension's predicates, reverting all aggregates
// to full-population sums.
func (ix *Index) ResetAll() {
	for _, d := range ix.dims {
		d.tests = nil
		d.pass = nil
	}
}

// Filters returns the active predicate set for a dimension.
func (ix *Index) Filters(dimension string) []Test {
	d, _, err := ix.dim(dimension)
	if err != nil {
		return nil
	}
	return append([]Test(nil), d.tests...)
}

// Leaves returns every distinct classification path observed for a
// dimension across ALL loaded records, irrespective of current filters,
// in first-observed order.
func (ix *Index) Leaves(dimension string) ([]Leaf, error) {
	d, _, err := ix.dim(dimension)
	if err != nil {
		return nil, err
	}
	leaves := make([]Leaf, d.keys.len())
	for i := range leaves {
		leaves[i] = Leaf{Key: KeyID(i), Path: d.keys.path(KeyID(i))}
	}
	return leaves, nil
}

// activeExcept intersects the pass sets of every dimension but the one at
// skip (crossfilter self-exclusion). skip < 0 intersects all of them.
func (ix *Index) activeExcept(skip int) *roaring.Bitmap {
	active := ix.all.Clone()
	for i, d := range ix.dims {
		if i == skip || d.pass == nil {
			continue
		}
		active.And(d.pass)
	}
	return active
}

// GroupAggregates computes the aggregate per leaf key for one dimension,
// summed over records passing every OTHER dimension's filter. Keys whose
// records are all filtered out are present with zero aggregates, so the
// dimension's displayed breakdown never loses selectable entries.
func (ix *Index) GroupAggregates(dimension string) ([]Aggregate, error) {
	d, di, err := ix.dim(dimension)
	if err != nil {
		return nil, err
	}
	active := ix.activeExcept(di)
	nvals := len(ix.schema.ValueTypes)
	aggs := make([]Aggregate, d.keys.len())
	for key := range aggs {
		aggs[key] = NewAggregate(nvals)
		hits := roaring.And(d.columns[key], active)
		it := hits.Iterator()
		for it.HasNext() {
			rec := &ix.records[it.Next()]
			aggs[key].AddRecord(rec.Values, rec.Variance)
		}
	}
	return aggs, nil
}

// Total computes the grand-total aggregate over records passing every
// dimension's filter.
func (ix *Index) Total() Aggregate {
	active := ix.activeExcept(-1)
	agg := NewAggregate(len(ix.schema.ValueTypes))
	it := active.Iterator()
	for it.HasNext() {
		rec := &ix.records[it.Next()]
		agg.AddRecord(rec.Values, rec.Variance)
	}
	return agg
}
