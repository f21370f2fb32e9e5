package xmap

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"testing"
)

// dbHandler answers a query with columns and rows, or an error.
type dbHandler func(query string, args []driver.NamedValue) (cols []string, rows [][]driver.Value, err error)

// testConnector is an in-memory database/sql driver. Rows deliver exactly the
// driver values the handler returns.
type testConnector struct {
	h      dbHandler
	exec   func(query string, args []driver.NamedValue) (driver.Result, error)
	nextEr error
}

func (c *testConnector) Connect(context.Context) (driver.Conn, error) { return &testConn{c: c}, nil }
func (c *testConnector) Driver() driver.Driver                        { return testDriver{} }

type testDriver struct{}

func (testDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("testDriver.Open should not be called; use sql.OpenDB with connector")
}

type testConn struct{ c *testConnector }

func (c *testConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (c *testConn) Close() error                        { return nil }
func (c *testConn) Begin() (driver.Tx, error)           { return nil, driver.ErrSkip }

// CheckNamedValue accepts every argument as is, sql.Out included.
func (c *testConn) CheckNamedValue(*driver.NamedValue) error { return nil }

func (c *testConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	cols, data, err := c.c.h(query, args)
	if err != nil {
		return nil, err
	}
	return &testRows{cols: cols, data: data, nextErr: c.c.nextEr}, nil
}

func (c *testConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if c.c.exec == nil {
		return nil, errors.New("exec not configured")
	}
	return c.c.exec(query, args)
}

type testRows struct {
	cols    []string
	data    [][]driver.Value
	i       int
	nextErr error
}

func (r *testRows) Columns() []string { return append([]string(nil), r.cols...) }
func (r *testRows) Close() error      { return nil }

func (r *testRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		if r.nextErr != nil {
			return r.nextErr
		}
		return io.EOF
	}
	row := r.data[r.i]
	for i := range dest {
		if i < len(row) {
			dest[i] = row[i]
		} else {
			dest[i] = nil
		}
	}
	r.i++
	return nil
}

type testResult struct{ lastID, rows int64 }

func (r testResult) LastInsertId() (int64, error) { return r.lastID, nil }
func (r testResult) RowsAffected() (int64, error) { return r.rows, nil }

// newTestDB creates a *sql.DB backed by the in-memory test driver.
func newTestDB(t *testing.T, c *testConnector) *sql.DB {
	t.Helper()
	db := sql.OpenDB(c)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// rowsOf answers every query with the same result.
func rowsOf(cols []string, rows ...[]driver.Value) *testConnector {
	return &testConnector{h: func(string, []driver.NamedValue) ([]string, [][]driver.Value, error) {
		return cols, rows, nil
	}}
}
