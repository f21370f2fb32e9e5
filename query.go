package xmap

import (
	"context"
)

// Query runs query and materializes every row into a T through the default
// Mapper.
//
// T may be a struct (db tags, inline embedding), a pointer to one, a Record,
// a single-column scalar or a sql.Scanner. Columns are matched to fields by
// mapped name, case-insensitively, then ignoring accents and underscores.
// Columns matching no field are ignored; fields matching no column keep their
// zero value. A struct T that no column matches fails with
// ErrNoMatchedFields.
//
//	type User struct {
//	    ID    int64  `db:"id"`
//	    Email string `db:"email"`
//	}
//	users, err := xmap.Query[User](ctx, db, `SELECT id, email FROM users ORDER BY id`)
func Query[T any](ctx context.Context, q Querier, query string, args ...any) (out []T, err error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	src, err := FromRows(rows)
	if err != nil {
		return nil, err
	}
	return Collect[T](ctx, Default(), src)
}
