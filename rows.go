package xmap

import (
	"context"
	"database/sql"
	"reflect"
)

// Rows adapts *sql.Rows to RowSource. Values are scanned as the driver
// delivers them; []byte values are copies.
//
// Declared column types are not reported: several drivers (SQLite among
// them) deliver values whose type differs from the declared one, so row
// plans built on *sql.Rows convert per value.
type Rows struct {
	rows *sql.Rows
	cols []string
	vals []any
	ptrs []any
}

// FromRows wraps rows. The caller still owns and closes rows.
func FromRows(rows *sql.Rows) (*Rows, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	r := &Rows{
		rows: rows,
		cols: cols,
		vals: make([]any, len(cols)),
		ptrs: make([]any, len(cols)),
	}
	for i := range r.vals {
		r.ptrs[i] = &r.vals[i]
	}
	return r, nil
}

func (r *Rows) FieldCount() int   { return len(r.cols) }
func (r *Rows) Name(i int) string { return r.cols[i] }
func (r *Rows) Value(i int) any   { return r.vals[i] }

// Next advances to and scans the next row. At the end it reports rows.Err().
func (r *Rows) Next() (bool, error) {
	if !r.rows.Next() {
		return false, r.rows.Err()
	}
	clear(r.vals)
	if err := r.rows.Scan(r.ptrs...); err != nil {
		return false, err
	}
	return true, nil
}

// NextContext is Next with a cancellation check before the row is read.
func (r *Rows) NextContext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return r.Next()
}

// SliceSource is an in-memory RowSource.
type SliceSource struct {
	columns []string
	types   []reflect.Type
	rows    [][]any
	pos     int
}

// NewSliceSource returns a source over rows; every row holds one value per
// column, nil for NULL.
func NewSliceSource(columns []string, rows [][]any) *SliceSource {
	return &SliceSource{columns: columns, rows: rows, pos: -1}
}

// WithTypes declares the Go type of each column's values.
func (s *SliceSource) WithTypes(types ...reflect.Type) *SliceSource {
	s.types = types
	return s
}

func (s *SliceSource) FieldCount() int   { return len(s.columns) }
func (s *SliceSource) Name(i int) string { return s.columns[i] }

func (s *SliceSource) Type(i int) reflect.Type {
	if i < len(s.types) {
		return s.types[i]
	}
	return nil
}

func (s *SliceSource) Value(i int) any {
	if row := s.rows[s.pos]; i < len(row) {
		return row[i]
	}
	return nil
}

func (s *SliceSource) Next() (bool, error) {
	if s.pos+1 >= len(s.rows) {
		return false, nil
	}
	s.pos++
	return true, nil
}
