package xmap

import (
	"context"
	"database/sql"
)

// Exec executes a statement that returns no rows. SQL and arguments are
// passed through unchanged.
func Exec(ctx context.Context, e Execer, query string, args ...any) (sql.Result, error) {
	return e.ExecContext(ctx, query, args...)
}

// ExecBatch binds entities with the default Mapper, resolves the :name tokens
// of query against the bound parameters (the second entity's fields are
// :Name_1, the third's :Name_2, ...) and executes it once.
//
//	_, err := xmap.ExecBatch(ctx, db, xmap.PlaceholderDollar,
//	    `INSERT INTO orders (id, amount) VALUES (:ID, :Amount), (:ID_1, :Amount_1)`,
//	    []Order{a, b}, "ID", "Amount")
func ExecBatch[T any](ctx context.Context, e Execer, ph Placeholder, query string, entities []T, fields ...string) (sql.Result, error) {
	var ps Params
	if err := Bind(Default(), &ps, entities, fields...); err != nil {
		return nil, err
	}
	bound, args, err := Rebind(query, ph, &ps)
	if err != nil {
		return nil, err
	}
	return e.ExecContext(ctx, bound, args...)
}
