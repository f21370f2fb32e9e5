package xmap

import (
	"context"
	"database/sql"
	"reflect"
)

// Querier is implemented by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execer is implemented by *sql.DB, *sql.Tx and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RowSource is a forward-only reader of a row set. Column names are known
// before the first call to Next; Value reads from the current row.
type RowSource interface {
	FieldCount() int
	Name(i int) string
	Value(i int) any
	Next() (bool, error)
}

// TypedRowSource reports the Go type a column's values are delivered as.
// A nil type means unknown.
type TypedRowSource interface {
	RowSource
	Type(i int) reflect.Type
}

// ContextRowSource advances with a context. It is preferred over Next when a
// source implements it.
type ContextRowSource interface {
	RowSource
	NextContext(ctx context.Context) (bool, error)
}

// NullChecker lets a source flag database NULLs that are not delivered as
// nil.
type NullChecker interface {
	IsNull(i int) bool
}

// Parameter is one command parameter produced by a ParameterSink.
type Parameter interface {
	SetName(name string)
	SetStorageType(t StorageType)
	SetValue(v any)
	Value() any
}

// SizedParameter accepts a maximum length.
type SizedParameter interface {
	SetSize(n int)
}

// PrecisionParameter accepts decimal precision and scale.
type PrecisionParameter interface {
	SetPrecision(n int)
	SetScale(n int)
}

// DirectionalParameter accepts a parameter direction.
type DirectionalParameter interface {
	SetDirection(d Direction)
}

// ParameterSink collects the parameters of one command.
type ParameterSink interface {
	CreateParameter() Parameter
	Add(p Parameter)
	Clear()
}

// PlaceholderStyle is implemented by capabilities that know the positional
// parameter syntax of their database.
type PlaceholderStyle interface {
	Placeholder() Placeholder
}
