package xmap

import (
	"context"
	"database/sql"
)

// Get runs query and materializes the first row into a T. It returns
// sql.ErrNoRows when there is none; further rows are ignored.
//
//	u, err := xmap.Get[User](ctx, db, `SELECT id, email FROM users WHERE id = $1`, 42)
//	if errors.Is(err, sql.ErrNoRows) {
//	    // not found
//	}
func Get[T any](ctx context.Context, q Querier, query string, args ...any) (out T, err error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return out, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	src, err := FromRows(rows)
	if err != nil {
		return out, err
	}
	for v, err := range Materialize[T](ctx, Default(), src) {
		return v, err
	}
	return out, sql.ErrNoRows
}
