package dialect

import (
	"reflect"

	"github.com/shopspring/decimal"

	"github.com/go-mizu/xmap"
)

// SQLite stores GUIDs and decimals as text; it has no native type for
// either.
type SQLite struct{}

func (SQLite) Name() string                  { return "sqlite" }
func (SQLite) Placeholder() xmap.Placeholder { return xmap.PlaceholderQuestion }

var typeDecimal = reflect.TypeOf(decimal.Decimal{})

func (SQLite) ResolveStorageType(f *xmap.FieldDescriptor) (xmap.StorageType, bool) {
	t := f.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == typeUUID || t == typeDecimal {
		return xmap.StorageString, true
	}
	return xmap.StorageUnknown, false
}

func (SQLite) ApplyExtendedType(p xmap.Parameter, t xmap.StorageType) {
	if t == xmap.StorageJSON {
		jsonAsText(p)
	}
}
