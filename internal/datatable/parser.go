package datatable

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseTable reads a whole report table. The header row fixes the schema;
// every data row must present exactly the header's columns. Any malformed
// row fails the entire load; there is no partial table.
func ParseTable(r io.Reader, joinKey string) (*Schema, []Record, error) {
	if joinKey == "" {
		return nil, nil, fmt.Errorf("datatable: empty join key")
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, nil, fmt.Errorf("read datatable header: %w", err)
		}
		return nil, nil, &ParseError{Row: 0, Reason: "empty table"}
	}
	schema, roles, err := parseHeader(splitRow(sc.Text()), joinKey)
	if err != nil {
		return nil, nil, err
	}

	var records []Record
	row := 0
	for sc.Scan() {
		row++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue // trailing blank line from the generator
		}
		rec, err := parseRow(schema, roles, splitRow(line), row)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("read datatable: %w", err)
	}
	return schema, records, nil
}

func splitRow(line string) []string {
	return strings.Split(strings.TrimRight(line, "\r"), "\t")
}

func parseRow(schema *Schema, roles []columnRole, cells []string, row int) (Record, error) {
	if len(cells) != len(roles) {
		return Record{}, &ParseError{Row: row,
			Reason: fmt.Sprintf("expected %d columns, got %d", len(roles), len(cells))}
	}
	rec := Record{
		Groups:   make([][]string, len(schema.Dimensions)),
		Values:   make([]float64, len(schema.ValueTypes)),
		Variance: make([]float64, len(schema.ValueTypes)),
		Limit:    make([]bool, len(schema.ValueTypes)),
	}
	for i, cell := range cells {
		switch roles[i].kind {
		case colID:
			rec.ID = strings.TrimSpace(cell)
			if rec.ID == "" {
				return Record{}, &ParseError{Row: row, Column: idColumn,
					Text: cell, Reason: "empty record id"}
			}
		case colGroup:
			path := splitPath(cell, schema.JoinKey)
			if path == nil {
				name := groupPrefix + schema.Dimensions[roles[i].index]
				return Record{}, &ParseError{Row: row, Column: name,
					Text: cell, Reason: "empty classification path"}
			}
			rec.Groups[roles[i].index] = path
		case colValue:
			pv, ok := parseValue(cell)
			if !ok {
				name := valuePrefix + schema.ValueTypes[roles[i].index]
				return Record{}, &ParseError{Row: row, Column: name,
					Text: cell, Reason: "unrecognized numeric encoding"}
			}
			rec.Values[roles[i].index] = pv.value
			rec.Variance[roles[i].index] = pv.variance
			rec.Limit[roles[i].index] = pv.limit
		}
	}
	return rec, nil
}

// splitPath turns one G_ cell into a classification path, nil for an empty
// cell. The join key is consumed here, at the table boundary; downstream
// code only ever sees segment slices, so a segment containing the key
// cannot corrupt anything past this point.
func splitPath(cell, joinKey string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	return strings.Split(cell, joinKey)
}
