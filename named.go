package xmap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder selects the positional parameter style of a database.
//
//   - PlaceholderQuestion  "?"            MySQL, SQLite
//   - PlaceholderDollar    "$1, $2, ..."  PostgreSQL
//   - PlaceholderAtP       "@p1, @p2..."  SQL Server
//   - PlaceholderColonNum  ":1, :2, ..."  Oracle
type Placeholder int

const (
	PlaceholderQuestion Placeholder = iota
	PlaceholderDollar
	PlaceholderAtP
	PlaceholderColonNum
)

// ErrNilParams is returned when Rebind is given a nil *Params.
var ErrNilParams = errors.New("xmap: named bind: nil params")

// Rebind resolves :name tokens and rewrites placeholders to ph.
//
// With exactly one params argument that is a *Params, a struct (or pointer
// to one) or a map with string keys, every :name token is replaced by the
// value of the parameter of that name, matched case-insensitively. Structs
// and maps are bound through the default Mapper first, so their values get
// the same storage conversions as Bind. Batch names such as :Amount_1 work
// as is. Non-byte slices expand to a list; an empty one becomes NULL.
//
//	var ps xmap.Params
//	_ = xmap.Bind(nil, &ps, orders, "ID", "Amount")
//	q, args, err := xmap.Rebind(
//	    `INSERT INTO orders (id, amount) VALUES (:ID, :Amount), (:ID_1, :Amount_1)`,
//	    xmap.PlaceholderDollar, &ps)
//	// q => INSERT INTO orders (id, amount) VALUES ($1, $2), ($3, $4)
//
// Any other params are positional and only placeholders are rewritten.
// Quoted strings, comments and PostgreSQL $tag$ blocks are skipped.
func Rebind(query string, ph Placeholder, params ...any) (string, []any, error) {
	if len(params) != 1 {
		return rewritePlaceholders(query, ph), params, nil
	}
	ps, ok, err := asParams(query, params[0])
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return rewritePlaceholders(query, ph), params, nil
	}
	qPos, args, err := bindNamedParams(query, ps)
	if err != nil {
		return "", nil, err
	}
	return rewritePlaceholders(qPos, ph), args, nil
}

// NamedQuery rebinds query with params and runs it through Query.
func NamedQuery[T any](ctx context.Context, q Querier, ph Placeholder, query string, params ...any) ([]T, error) {
	bound, args, err := Rebind(query, ph, params...)
	if err != nil {
		return nil, err
	}
	return Query[T](ctx, q, bound, args...)
}

// NamedExec rebinds query with params and executes it.
func NamedExec(ctx context.Context, e Execer, ph Placeholder, query string, params ...any) (sql.Result, error) {
	bound, args, err := Rebind(query, ph, params...)
	if err != nil {
		return nil, err
	}
	return e.ExecContext(ctx, bound, args...)
}

// PlaceholderFor picks a Placeholder from a database/sql driver name.
//
//	xmap.PlaceholderFor("pgx")       // PlaceholderDollar
//	xmap.PlaceholderFor("sqlserver") // PlaceholderAtP
//	xmap.PlaceholderFor("mysql")     // PlaceholderQuestion
func PlaceholderFor(driverName string) Placeholder {
	switch strings.ToLower(driverName) {
	case "pgx", "postgres", "postgresql", "lib/pq", "pg":
		return PlaceholderDollar
	case "sqlserver", "mssql":
		return PlaceholderAtP
	case "godror", "oracle", "goracle":
		return PlaceholderColonNum
	default:
		return PlaceholderQuestion
	}
}

type nameToken struct {
	name  string
	start int
	end   int
}

// asParams turns the single Rebind argument into bound Params. ok is false
// for arguments that are positional values.
func asParams(query string, v any) (*Params, bool, error) {
	if ps, isParams := v.(*Params); isParams {
		if ps == nil {
			return nil, false, ErrNilParams
		}
		return ps, true, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false, nil
		}
		rv = rv.Elem()
	}
	var fields []string
	switch {
	case rv.Kind() == reflect.Struct && rv.Type() == recordType,
		rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
		toks, err := findNamedParams(query)
		if err != nil {
			return nil, false, err
		}
		if len(toks) == 0 {
			return &Params{}, true, nil
		}
		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			if !seen[t.name] {
				seen[t.name] = true
				fields = append(fields, t.name)
			}
		}
	case rv.Kind() == reflect.Struct && !isLeafStruct(rv.Type()):
	default:
		return nil, false, nil
	}

	ps := &Params{}
	batch := reflect.MakeSlice(reflect.SliceOf(rv.Type()), 1, 1)
	batch.Index(0).Set(rv)
	fn, err := Default().CompileBinder(rv.Type(), ps, fields, 1)
	if err != nil {
		return nil, false, fmt.Errorf("xmap: named bind: %w", err)
	}
	if err := fn(ps, batch); err != nil {
		return nil, false, fmt.Errorf("xmap: named bind: %w", err)
	}
	return ps, true, nil
}

func bindNamedParams(query string, ps *Params) (string, []any, error) {
	toks, err := findNamedParams(query)
	if err != nil {
		return "", nil, err
	}
	if len(toks) == 0 {
		return query, nil, nil
	}

	var b strings.Builder
	b.Grow(len(query))
	args := make([]any, 0, len(toks))
	last := 0

	for _, t := range toks {
		b.WriteString(query[last:t.start])

		p, ok := ps.Lookup(t.name)
		if !ok {
			return "", nil, fmt.Errorf("xmap: named bind: missing value for :%s", t.name)
		}
		val := p.arg(false)

		rv := reflect.ValueOf(val)
		if isSliceOrArray(rv) {
			n := rv.Len()
			if n == 0 {
				b.WriteString("NULL")
			} else {
				for i := 0; i < n; i++ {
					if i > 0 {
						b.WriteByte(',')
					}
					b.WriteByte('?')
					args = append(args, rv.Index(i).Interface())
				}
			}
		} else {
			b.WriteByte('?')
			args = append(args, val)
		}
		last = t.end
	}
	b.WriteString(query[last:])
	return b.String(), args, nil
}

// skipLiteral reports whether a quoted string, quoted identifier, comment or
// dollar-quoted block starts at i, and where it ends.
func skipLiteral(s string, i int) (int, bool, error) {
	switch s[i] {
	case '\'', '"', '`':
		j, err := skipQuoted(s, i+1, s[i])
		return j, true, err
	case '-':
		if strings.HasPrefix(s[i:], "--") {
			if k := strings.IndexByte(s[i+2:], '\n'); k >= 0 {
				return i + 2 + k + 1, true, nil
			}
			return len(s), true, nil
		}
	case '/':
		if strings.HasPrefix(s[i:], "/*") {
			k := strings.Index(s[i+2:], "*/")
			if k < 0 {
				return 0, true, fmt.Errorf("xmap: unterminated block comment")
			}
			return i + 2 + k + 2, true, nil
		}
	case '$':
		return skipDollarQuoted(s, i)
	}
	return i, false, nil
}

// skipQuoted ends a literal opened by q; a doubled q is an escaped quote.
func skipQuoted(s string, i int, q byte) (int, error) {
	for i < len(s) {
		c := s[i]
		i++
		if c != q {
			continue
		}
		if i < len(s) && s[i] == q {
			i++
			continue
		}
		return i, nil
	}
	return 0, fmt.Errorf("xmap: unterminated %c-quoted literal", q)
}

// skipDollarQuoted handles $$...$$ and $tag$...$tag$ (PostgreSQL).
func skipDollarQuoted(s string, i int) (int, bool, error) {
	j := i + 1
	for j < len(s) && s[j] != '$' && isIdentRune(rune(s[j])) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return i, false, nil
	}
	tag := s[i : j+1]
	k := strings.Index(s[j+1:], tag)
	if k < 0 {
		return 0, true, fmt.Errorf("xmap: unterminated dollar-quoted string")
	}
	return j + 1 + k + len(tag), true, nil
}

func findNamedParams(query string) ([]nameToken, error) {
	var out []nameToken
	for i := 0; i < len(query); {
		j, skipped, err := skipLiteral(query, i)
		if err != nil {
			return nil, err
		}
		if skipped {
			i = j
			continue
		}
		if query[i] == ':' {
			if strings.HasPrefix(query[i:], "::") {
				i += 2 // PostgreSQL cast
				continue
			}
			if name, end := parseIdent(query, i+1); name != "" {
				out = append(out, nameToken{name: name, start: i, end: end})
				i = end
				continue
			}
		}
		i++
	}
	return out, nil
}

func rewritePlaceholders(query string, ph Placeholder) string {
	if ph == PlaceholderQuestion {
		return query
	}
	out := make([]byte, 0, len(query)+16)
	arg := 1
	for i := 0; i < len(query); {
		if j, skipped, err := skipLiteral(query, i); skipped && err == nil {
			out = append(out, query[i:j]...)
			i = j
			continue
		}
		if query[i] != '?' {
			out = append(out, query[i])
			i++
			continue
		}
		switch ph {
		case PlaceholderDollar:
			out = append(out, '$')
		case PlaceholderAtP:
			out = append(out, '@', 'p')
		case PlaceholderColonNum:
			out = append(out, ':')
		}
		out = strconv.AppendInt(out, int64(arg), 10)
		arg++
		i++
	}
	return string(out)
}

func isIdentRune(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

func parseIdent(s string, i int) (string, int) {
	start := i
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		if !isIdentRune(r) {
			break
		}
		i += w
	}
	return s[start:i], i
}

func isSliceOrArray(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.Slice:
		return v.Type().Elem().Kind() != reflect.Uint8 && v.Type() != typeRawJSON
	case reflect.Array:
		return v.Type() != typeUUID && v.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}
