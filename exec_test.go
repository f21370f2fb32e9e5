package xmap

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM people WHERE id > ?")).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	res, err := Exec(context.Background(), db, "DELETE FROM people WHERE id > ?", int64(10))
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO people (id, name) VALUES ($1, $2), ($3, $4)")).
		WithArgs(int64(1), "Ann", int64(2), "Bob").
		WillReturnResult(sqlmock.NewResult(2, 2))

	res, err := ExecBatch(context.Background(), db, PlaceholderDollar,
		"INSERT INTO people (id, name) VALUES (:Id, :Name), (:Id_1, :Name_1)",
		[]person{{1, "Ann"}, {2, "Bob"}})
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecBatchFieldSubset(t *testing.T) {
	var gotQuery string
	var gotArgs []driver.NamedValue
	c := &testConnector{exec: func(q string, args []driver.NamedValue) (driver.Result, error) {
		gotQuery, gotArgs = q, args
		return testResult{rows: 1}, nil
	}}
	db := newTestDB(t, c)

	_, err := ExecBatch(context.Background(), db, PlaceholderAtP,
		"UPDATE orders SET state = :state WHERE customer = :customer",
		[]Order{{Customer: "acme", State: StatusClosed}}, "customer", "state")
	require.NoError(t, err)
	assert.Equal(t, "UPDATE orders SET state = @p1 WHERE customer = @p2", gotQuery)
	require.Len(t, gotArgs, 2)
	assert.Equal(t, "closed", gotArgs[0].Value)
	assert.Equal(t, "acme", gotArgs[1].Value)
}

func TestExecBatchErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = ExecBatch(context.Background(), db, PlaceholderDollar, "UPDATE people SET x = :x",
		[]person{{}}, "Nope")
	assert.ErrorIs(t, err, ErrFieldNotFound)

	_, err = ExecBatch(context.Background(), db, PlaceholderDollar, "UPDATE people SET x = :x",
		[]person{{}})
	assert.ErrorContains(t, err, "missing value for :x")

	boom := errors.New("boom")
	mock.ExpectExec("UPDATE").WillReturnError(boom)
	_, err = ExecBatch(context.Background(), db, PlaceholderDollar, "UPDATE people SET name = :Name",
		[]person{{Name: "a"}}, "Name")
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNamedExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE people SET name = $1 WHERE id = $2")).
		WithArgs("Ann", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = NamedExec(context.Background(), db, PlaceholderDollar,
		"UPDATE people SET name = :Name WHERE id = :Id", person{1, "Ann"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
