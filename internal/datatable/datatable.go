// Package datatable parses the tab-separated report tables produced by the
// simulation query layer into normalized records: one classification path
// per dimension plus numeric values carrying propagated variances.
package datatable

import (
	"fmt"
	"strings"
)

// Column-name prefixes fixed by the report generator.
const (
	idColumn    = "ID"
	groupPrefix = "G_"
	valuePrefix = "V_"
)

// Schema is the column layout of one table, fixed by its header row.
// Dimension and value-type sets never change after the header is read.
type Schema struct {
	Dimensions []string // classification axes, header order
	ValueTypes []string // numeric value columns, header order
	Units      []string // display unit per value type ("" when unspecified)
	JoinKey    string   // path-segment separator used inside G_ cells

	dimIndex map[string]int
	valIndex map[string]int
}

// DimensionIndex resolves a dimension name to its index in Record.Groups.
func (s *Schema) DimensionIndex(name string) (int, bool) {
	i, ok := s.dimIndex[name]
	return i, ok
}

// ValueIndex resolves a value-type name to its index in Record.Values.
func (s *Schema) ValueIndex(name string) (int, bool) {
	i, ok := s.valIndex[name]
	return i, ok
}

// Record is one immutable tagged datum. Slices are indexed by the schema's
// dimension and value-type order.
type Record struct {
	ID       string
	Groups   [][]string // classification path per dimension
	Values   []float64
	Variance []float64 // squared uncertainty per value
	Limit    []bool    // true when the source reported an upper limit ("<x")
}

// ParseError is a fatal row-level failure. A single bad cell aborts the
// whole table load; there are no partially loaded tables.
type ParseError struct {
	Row    int // 0 = header, data rows are 1-based
	Column string
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("datatable row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("datatable row %d, column %q: %s (input %q)",
		e.Row, e.Column, e.Reason, e.Text)
}

// parseHeader fixes the schema from the header row. The ID column is
// required; every other column must carry a G_ or V_ prefix. A V_ column
// may append a bracketed display unit, e.g. "V_Rate [1/day]".
func parseHeader(cells []string, joinKey string) (*Schema, []columnRole, error) {
	s := &Schema{
		JoinKey:  joinKey,
		dimIndex: make(map[string]int),
		valIndex: make(map[string]int),
	}
	roles := make([]columnRole, len(cells))
	sawID := false
	for i, cell := range cells {
		name := strings.TrimSpace(cell)
		switch {
		case name == idColumn:
			if sawID {
				return nil, nil, &ParseError{Row: 0, Column: name, Text: cell,
					Reason: "duplicate ID column"}
			}
			sawID = true
			roles[i] = columnRole{kind: colID}
		case strings.HasPrefix(name, groupPrefix):
			dim := strings.TrimPrefix(name, groupPrefix)
			if _, dup := s.dimIndex[dim]; dup {
				return nil, nil, &ParseError{Row: 0, Column: name, Text: cell,
					Reason: "duplicate dimension column"}
			}
			s.dimIndex[dim] = len(s.Dimensions)
			roles[i] = columnRole{kind: colGroup, index: len(s.Dimensions)}
			s.Dimensions = append(s.Dimensions, dim)
		case strings.HasPrefix(name, valuePrefix):
			val, unit := splitUnit(strings.TrimPrefix(name, valuePrefix))
			if _, dup := s.valIndex[val]; dup {
				return nil, nil, &ParseError{Row: 0, Column: name, Text: cell,
					Reason: "duplicate value column"}
			}
			s.valIndex[val] = len(s.ValueTypes)
			roles[i] = columnRole{kind: colValue, index: len(s.ValueTypes)}
			s.ValueTypes = append(s.ValueTypes, val)
			s.Units = append(s.Units, unit)
		default:
			return nil, nil, &ParseError{Row: 0, Column: name, Text: cell,
				Reason: "column is neither ID, G_<dimension>, nor V_<value>"}
		}
	}
	if !sawID {
		return nil, nil, &ParseError{Row: 0, Reason: "missing ID column"}
	}
	return s, roles, nil
}

// splitUnit strips a trailing " [unit]" suffix from a value column name.
func splitUnit(name string) (string, string) {
	name = strings.TrimSpace(name)
	if !strings.HasSuffix(name, "]") {
		return name, ""
	}
	open := strings.LastIndex(name, " [")
	if open < 0 {
		return name, ""
	}
	return name[:open], name[open+2 : len(name)-1]
}

type colKind int

const (
	colID colKind = iota
	colGroup
	colValue
)

type columnRole struct {
	kind  colKind
	index int
}
