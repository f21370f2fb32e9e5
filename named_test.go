package xmap

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reDollarToken = regexp.MustCompile(`\$\d+`)

type baseEmb struct {
	Tenant int `db:"tenant"`
}

type argStruct struct {
	baseEmb
	Status string    `db:"status"`
	IDs    []int64   `db:"ids"`
	Since  time.Time `db:"since"`
	Skip   string    `db:"-"`
}

func TestRebindStructPostgres(t *testing.T) {
	a := argStruct{
		baseEmb: baseEmb{Tenant: 42},
		Status:  "active",
		IDs:     []int64{7, 8, 9},
		Since:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	in := `
SELECT id
FROM users
WHERE tenant=:tenant AND status=:status
  AND id IN (:ids) AND created_at >= :since
-- :in_comment
/* :in_block */
$tag$ :in_dollar $tag$
`
	out, args, err := Rebind(in, PlaceholderDollar, a)
	require.NoError(t, err)
	assert.Len(t, reDollarToken.FindAllString(out, -1), 6)
	assert.Contains(t, out, "id IN ($3,$4,$5)")
	assert.Equal(t, []any{int64(42), "active", int64(7), int64(8), int64(9), a.Since}, args,
		"struct fields go through the bind conversions")
	assert.NotContains(t, out, ":tenant")
	assert.Contains(t, out, ":in_comment")
}

func TestRebindMapEmptySliceIsNull(t *testing.T) {
	params := map[string]any{"status": "x", "ids": []int{}}
	out, args, err := Rebind(`SELECT 1 WHERE status=:status AND id IN (:ids)`, PlaceholderAtP, params)
	require.NoError(t, err)
	assert.Equal(t, `SELECT 1 WHERE status=@p1 AND id IN (NULL)`, out)
	assert.Equal(t, []any{"x"}, args)
}

func TestRebindMapBytesAndArray(t *testing.T) {
	blob := []byte("hi")
	params := map[string]any{"b": blob, "nums": [2]int{5, 6}}
	out, args, err := Rebind(`SELECT 1 WHERE b=:b AND n IN (:nums)`, PlaceholderDollar, params)
	require.NoError(t, err)
	assert.Equal(t, `SELECT 1 WHERE b=$1 AND n IN ($2,$3)`, out)
	assert.Equal(t, []any{blob, 5, 6}, args)
}

func TestRebindMapMissingKeyIsNull(t *testing.T) {
	out, args, err := Rebind(`UPDATE t SET a = :a, b = :B`, PlaceholderDollar, map[string]any{"b": 1})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE t SET a = $1, b = $2`, out)
	assert.Equal(t, []any{nil, int64(1)}, args, "map values go through the bind conversions")
}

func TestRebindRepeatedNames(t *testing.T) {
	type P struct {
		X   int   `db:"x"`
		Arr []int `db:"arr"`
	}
	out, args, err := Rebind(`WHERE a=:x OR b=:x OR c IN (:arr) OR d=:x`, PlaceholderDollar, P{X: 9, Arr: []int{1}})
	require.NoError(t, err)
	assert.Equal(t, `WHERE a=$1 OR b=$2 OR c IN ($3) OR d=$4`, out)
	assert.Equal(t, []any{int64(9), int64(9), 1, int64(9)}, args)
}

func TestRebindEmbeddedPointer(t *testing.T) {
	type E struct {
		Z int `db:"z"`
	}
	type outer struct {
		*E
		Y int `db:"y"`
	}
	_, args, err := Rebind(`SELECT :z, :y`, PlaceholderQuestion, outer{E: &E{Z: 7}, Y: 42})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(7), int64(42)}, args)

	_, args, err = Rebind(`SELECT :z, :y`, PlaceholderQuestion, &outer{Y: 99})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0), int64(99)}, args, "a nil embedded pointer binds the zero value of a non-nullable field")
}

func TestRebindNamedKeyMap(t *testing.T) {
	type key string
	out, args, err := Rebind(`SELECT * FROM t WHERE a = :a AND b = :B`, PlaceholderDollar, map[key]string{"a": "x", "b": "y"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM t WHERE a = $1 AND b = $2`, out)
	assert.Equal(t, []any{"x", "y"}, args)
}

func TestRebindRecord(t *testing.T) {
	rec := NewRecord(1)
	rec.Set("status", "open")
	out, args, err := Rebind(`SELECT * FROM t WHERE status = :Status`, PlaceholderDollar, rec)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM t WHERE status = $1`, out)
	assert.Equal(t, []any{"open"}, args)
}

func TestRebindBoundBatch(t *testing.T) {
	var ps Params
	require.NoError(t, Bind(newTestMapper(), &ps, []person{{1, "Ann"}, {2, "Bob"}}))
	out, args, err := Rebind(
		`INSERT INTO people (id, name) VALUES (:Id, :Name), (:Id_1, :Name_1)`,
		PlaceholderDollar, &ps)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO people (id, name) VALUES ($1, $2), ($3, $4)`, out)
	assert.Equal(t, []any{int64(1), "Ann", int64(2), "Bob"}, args)
}

func TestRebindMissingName(t *testing.T) {
	_, _, err := Rebind(`SELECT :nope`, PlaceholderDollar, person{})
	assert.ErrorContains(t, err, "missing value for :nope")
}

func TestRebindNilParams(t *testing.T) {
	_, _, err := Rebind(`SELECT :a`, PlaceholderDollar, (*Params)(nil))
	assert.ErrorIs(t, err, ErrNilParams)
}

func TestRebindPositionalOracle(t *testing.T) {
	out, args, err := Rebind(`SELECT * FROM t WHERE a=? AND b IN (?,?) -- ? in comment`, PlaceholderColonNum, "aa", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a=:1 AND b IN (:2,:3) -- ? in comment", out)
	assert.Equal(t, []any{"aa", 2, 3}, args)
}

func TestRebindSingleScalarIsPositional(t *testing.T) {
	out, args, err := Rebind(`SELECT * FROM t WHERE a=?`, PlaceholderDollar, 5)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM t WHERE a=$1`, out)
	assert.Equal(t, []any{5}, args)
}

func TestRebindNoParams(t *testing.T) {
	in := "SELECT ? AS x, '--' AS y"
	out, args, err := Rebind(in, PlaceholderQuestion)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Empty(t, args)
}

func TestRewritePlaceholders(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strings comments dollar", "SELECT '?', $$ ? $$, $z$ ? $z$, -- ? line\n/* ? block */ ? AS bind",
			"SELECT '?', $$ ? $$, $z$ ? $z$, -- ? line\n/* ? block */ $1 AS bind"},
		{"double quoted identifier", `SELECT "a ? "" b", ?`, `SELECT "a ? "" b", $1`},
		{"backtick identifier", "SELECT `c ? `` d`, ?", "SELECT `c ? `` d`, $1"},
		{"casts untouched", `SELECT :1::int, x::text, ?`, `SELECT :1::int, x::text, $1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rewritePlaceholders(tt.in, PlaceholderDollar))
		})
	}
}

func TestRewriteSQLServerTwoDigits(t *testing.T) {
	got := rewritePlaceholders("?"+strings.Repeat(",?", 11), PlaceholderAtP)
	for i := 1; i <= 12; i++ {
		assert.Contains(t, got, "@p"+strconv.Itoa(i))
	}
}

func TestFindNamedParams(t *testing.T) {
	in := `
-- :skip
/* :also_skip */
SELECT ':no', ":no", ` + "`:no`" + `,
$tag$ :no $tag$,
:ok1, :ok_2, ::int, :x9, :_lead, :n1, :Amount_1
`
	toks, err := findNamedParams(in)
	require.NoError(t, err)
	var names []string
	for _, tk := range toks {
		names = append(names, tk.name)
		assert.Equal(t, ":"+tk.name, in[tk.start:tk.end])
	}
	assert.Equal(t, []string{"ok1", "ok_2", "x9", "_lead", "n1", "Amount_1"}, names)
}

func TestFindNamedParamsUnterminated(t *testing.T) {
	for _, in := range []string{"'abc", `"abc`, "`abc", "/* abc", "$tag$ abc"} {
		_, err := findNamedParams(in)
		assert.Error(t, err, in)
	}
}

func TestPlaceholderFor(t *testing.T) {
	cases := map[string]Placeholder{
		"pgx":       PlaceholderDollar,
		"postgres":  PlaceholderDollar,
		"sqlserver": PlaceholderAtP,
		"godror":    PlaceholderColonNum,
		"mysql":     PlaceholderQuestion,
		"sqlite":    PlaceholderQuestion,
	}
	for name, want := range cases {
		assert.Equal(t, want, PlaceholderFor(name), name)
	}
}
