package xmap

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errNoConversion = errors.New("no conversion")

// timeLayouts are tried in order when text is read into time.Time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// convertTo is the engine's default primitive-to-primitive conversion. dst is
// a non-pointer type. It accepts every value a database/sql driver produces
// (int64, float64, bool, []byte, string, time.Time, nil excluded).
func convertTo(src any, dst reflect.Type) (reflect.Value, error) {
	if dst == typeAny {
		return reflect.ValueOf(&src).Elem(), nil
	}
	sv := reflect.ValueOf(src)
	if sv.Type() == dst {
		if b, ok := src.([]byte); ok {
			return reflect.ValueOf(append([]byte(nil), b...)), nil
		}
		return sv, nil
	}

	switch dst {
	case typeTime:
		t, err := toTime(src)
		return reflect.ValueOf(t), err
	case typeUUID:
		u, err := toUUID(src)
		return reflect.ValueOf(u), err
	case typeDecimal:
		d, err := toDecimal(src)
		return reflect.ValueOf(d), err
	case typeRawJSON:
		b, err := toJSON(src)
		return reflect.ValueOf(b), err
	}
	if isEnum(dst) {
		return convertEnum(src, dst)
	}
	if reflect.PointerTo(dst).Implements(scannerType) {
		p := reflect.New(dst)
		if err := p.Interface().(sql.Scanner).Scan(src); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	}

	out := reflect.New(dst).Elem()
	switch dst.Kind() {
	case reflect.Bool:
		b, err := toBool(src)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(src)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, dst)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := toUint64(src)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowUint(n) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, dst)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(src)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowFloat(f) {
			return reflect.Value{}, fmt.Errorf("%g overflows %s", f, dst)
		}
		out.SetFloat(f)
	case reflect.String:
		s, err := toString(src)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetString(s)
	case reflect.Slice:
		if dst.Elem().Kind() == reflect.Uint8 {
			b, err := toBytes(src)
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetBytes(b)
			return out, nil
		}
		return fromJSON(src, dst)
	case reflect.Map, reflect.Struct:
		return fromJSON(src, dst)
	default:
		if sv.Type().ConvertibleTo(dst) {
			return sv.Convert(dst), nil
		}
		return reflect.Value{}, errNoConversion
	}
	return out, nil
}

func toInt64(src any) (int64, error) {
	switch v := src.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case float64:
		return floatToInt64(v)
	case float32:
		return floatToInt64(float64(v))
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case decimal.Decimal:
		return floatToInt64(v.InexactFloat64())
	case string:
		return parseInt64(v)
	case []byte:
		return parseInt64(string(v))
	}
	rv := reflect.ValueOf(src)
	switch {
	case rv.CanInt():
		return rv.Int(), nil
	case rv.CanUint():
		return toInt64(rv.Uint())
	case rv.CanFloat():
		return floatToInt64(rv.Float())
	case rv.Kind() == reflect.String:
		return parseInt64(rv.String())
	}
	return 0, errNoConversion
}

// floatToInt64 rounds half to even, the usual database rounding for
// float-to-integer casts.
func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%g is not a finite number", f)
	}
	r := math.RoundToEven(f)
	if r > math.MaxInt64 || r < math.MinInt64 {
		return 0, fmt.Errorf("%g overflows int64", f)
	}
	return int64(r), nil
}

func parseInt64(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return floatToInt64(f)
}

func toUint64(src any) (uint64, error) {
	switch v := src.(type) {
	case uint64:
		return v, nil
	case uint:
		return uint64(v), nil
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n, nil
		}
	case []byte:
		s := strings.TrimSpace(string(v))
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n, nil
		}
	}
	rv := reflect.ValueOf(src)
	if rv.CanUint() {
		return rv.Uint(), nil
	}
	n, err := toInt64(src)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%d overflows unsigned", n)
	}
	return uint64(n), nil
}

func toFloat64(src any) (float64, error) {
	switch v := src.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case decimal.Decimal:
		return v.InexactFloat64(), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return parseFloat(v)
	case []byte:
		return parseFloat(string(v))
	}
	rv := reflect.ValueOf(src)
	switch {
	case rv.CanInt():
		return float64(rv.Int()), nil
	case rv.CanUint():
		return float64(rv.Uint()), nil
	case rv.CanFloat():
		return rv.Float(), nil
	case rv.Kind() == reflect.String:
		return parseFloat(rv.String())
	}
	return 0, errNoConversion
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return f, nil
}

func toBool(src any) (bool, error) {
	switch v := src.(type) {
	case bool:
		return v, nil
	case string:
		return parseBool(v)
	case []byte:
		return parseBool(string(v))
	}
	rv := reflect.ValueOf(src)
	switch {
	case rv.Kind() == reflect.Bool:
		return rv.Bool(), nil
	case rv.CanInt():
		return rv.Int() != 0, nil
	case rv.CanUint():
		return rv.Uint() != 0, nil
	case rv.CanFloat():
		return rv.Float() != 0, nil
	}
	return false, errNoConversion
}

func parseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	switch strings.ToLower(s) {
	case "y", "yes", "on":
		return true, nil
	case "n", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", s)
}

func toString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case uuid.UUID:
		return v.String(), nil
	case decimal.Decimal:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	}
	rv := reflect.ValueOf(src)
	switch {
	case isEnum(rv.Type()):
		return enumToString(rv)
	case rv.CanInt():
		return strconv.FormatInt(rv.Int(), 10), nil
	case rv.CanUint():
		return strconv.FormatUint(rv.Uint(), 10), nil
	case rv.Kind() == reflect.String:
		return rv.String(), nil
	}
	if s, ok := src.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return "", errNoConversion
}

func toBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case []byte:
		return append([]byte(nil), v...), nil
	case json.RawMessage:
		return append([]byte(nil), v...), nil
	case string:
		return []byte(v), nil
	case uuid.UUID:
		return v[:], nil
	}
	return nil, errNoConversion
}

func toTime(src any) (time.Time, error) {
	var s string
	switch v := src.(type) {
	case time.Time:
		return v, nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return time.Time{}, errNoConversion
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a date/time", s)
}

func toUUID(src any) (uuid.UUID, error) {
	switch v := src.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case string:
		return uuid.Parse(strings.TrimSpace(v))
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	}
	return uuid.Nil, errNoConversion
}

func toDecimal(src any) (decimal.Decimal, error) {
	switch v := src.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case []byte:
		return decimal.NewFromString(strings.TrimSpace(string(v)))
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	}
	rv := reflect.ValueOf(src)
	switch {
	case rv.CanInt():
		return decimal.NewFromInt(rv.Int()), nil
	case rv.CanUint():
		return decimal.NewFromString(strconv.FormatUint(rv.Uint(), 10))
	}
	return decimal.Decimal{}, errNoConversion
}

func toJSON(src any) (json.RawMessage, error) {
	switch v := src.(type) {
	case []byte:
		return append(json.RawMessage(nil), v...), nil
	case string:
		return json.RawMessage(v), nil
	}
	return json.Marshal(src)
}

func fromJSON(src any, dst reflect.Type) (reflect.Value, error) {
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		sv := reflect.ValueOf(src)
		if sv.Type().ConvertibleTo(dst) {
			return sv.Convert(dst), nil
		}
		return reflect.Value{}, errNoConversion
	}
	p := reflect.New(dst)
	if err := json.Unmarshal(b, p.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return p.Elem(), nil
}

// wrapPointers re-applies the pointer layers of target around v.
func wrapPointers(v reflect.Value, target reflect.Type) reflect.Value {
	if target.Kind() != reflect.Pointer {
		return v
	}
	inner := wrapPointers(v, target.Elem())
	p := reflect.New(target.Elem())
	p.Elem().Set(inner)
	return p
}

// unwrapNull reads a Null* wrapper struct ({X T; Valid bool}). ok is false
// for a NULL value.
func unwrapNull(v reflect.Value) (reflect.Value, bool) {
	if !v.Field(1).Bool() {
		return reflect.Value{}, false
	}
	return v.Field(0), true
}

// nullWrapped reports Null* wrapper structs and their inner type.
func nullWrapped(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Struct || t.NumField() != 2 {
		return nil, false
	}
	valid := t.Field(1)
	if valid.Name != "Valid" || valid.Type.Kind() != reflect.Bool || t.Field(0).PkgPath != "" {
		return nil, false
	}
	return t.Field(0).Type, true
}
