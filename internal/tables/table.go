package tables

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/toricodesthings/document-processor/internal/jsonio"
)

// Grid is a detector table: rows of cells, nil meaning no cell text.
type Grid [][]*string

type Table struct {
	Page    int      `json:"page"`
	Index   int      `json:"table"`
	Headers []string `json:"headers"`
	Data    []Row    `json:"data"`
}

// Row maps headers to cleaned values. It marshals as a JSON object whose keys
// follow header order; with duplicate headers the last column wins.
type Row struct {
	keys   []string
	values map[string]Value
}

func newRow(capacity int) Row {
	return Row{keys: make([]string, 0, capacity), values: make(map[string]Value, capacity)}
}

func (r *Row) set(key string, v Value) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

func (r Row) Get(header string) (Value, bool) {
	v, ok := r.values[header]
	return v, ok
}

func (r Row) Keys() []string { return append([]string(nil), r.keys...) }

func (r Row) Len() int { return len(r.keys) }

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := jsonio.Marshal(k, false)
		if err != nil {
			return nil, err
		}
		vb, err := r.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FromGrid normalizes one detector table. It reports false when the grid has
// no data row or every data row is empty.
func FromGrid(grid Grid, page, index int) (Table, bool) {
	if len(grid) <= 1 {
		return Table{}, false
	}

	headers := make([]string, len(grid[0]))
	for i, cell := range grid[0] {
		h := ""
		if cell != nil {
			h = strings.TrimSpace(*cell)
		}
		if h == "" {
			h = fmt.Sprintf("col_%d", i)
		}
		headers[i] = h
	}

	rows := make([]Row, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		if allEmpty(cells) {
			continue
		}
		row := newRow(len(headers))
		for i, h := range headers {
			v := Null()
			if i < len(cells) && cells[i] != nil {
				v = CleanCell(*cells[i])
			}
			row.set(h, v)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return Table{}, false
	}

	return Table{
		Page:    page,
		Index:   index,
		Headers: headers,
		Data:    rows,
	}, true
}

// allEmpty reports whether no cell carries any text at all. Whitespace counts
// as text here; such rows survive with null values.
func allEmpty(cells []*string) bool {
	for _, c := range cells {
		if c != nil && *c != "" {
			return false
		}
	}
	return true
}

// Cells is a convenience for building grids from literal strings, where ""
// stands for a missing cell.
func Cells(values ...string) []*string {
	out := make([]*string, len(values))
	for i := range values {
		if values[i] == "" {
			continue
		}
		v := values[i]
		out[i] = &v
	}
	return out
}
