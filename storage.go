package xmap

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StorageType is the logical database-side type of a field or parameter,
// independent of its Go representation.
type StorageType uint8

const (
	StorageUnknown StorageType = iota
	StorageBool
	StorageInt8
	StorageInt16
	StorageInt32
	StorageInt64
	StorageUint8
	StorageUint16
	StorageUint32
	StorageUint64
	StorageFloat32
	StorageFloat64
	StorageDecimal
	StorageString
	StorageAnsiString
	StorageBinary
	StorageDateTime
	StorageGUID
	StorageJSON
	StorageArray
)

var storageNames = [...]string{
	StorageUnknown:    "unknown",
	StorageBool:       "bool",
	StorageInt8:       "int8",
	StorageInt16:      "int16",
	StorageInt32:      "int32",
	StorageInt64:      "int64",
	StorageUint8:      "uint8",
	StorageUint16:     "uint16",
	StorageUint32:     "uint32",
	StorageUint64:     "uint64",
	StorageFloat32:    "float32",
	StorageFloat64:    "float64",
	StorageDecimal:    "decimal",
	StorageString:     "string",
	StorageAnsiString: "ansistring",
	StorageBinary:     "binary",
	StorageDateTime:   "datetime",
	StorageGUID:       "guid",
	StorageJSON:       "json",
	StorageArray:      "array",
}

func (s StorageType) String() string {
	if int(s) < len(storageNames) {
		return storageNames[s]
	}
	return "unknown"
}

// ParseStorageType resolves a storage type from its name. A few common SQL
// spellings are accepted as aliases.
func ParseStorageType(name string) (StorageType, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range storageNames {
		if n == name {
			return StorageType(i), true
		}
	}
	switch name {
	case "boolean":
		return StorageBool, true
	case "smallint":
		return StorageInt16, true
	case "int", "integer":
		return StorageInt32, true
	case "bigint":
		return StorageInt64, true
	case "tinyint":
		return StorageUint8, true
	case "real":
		return StorageFloat32, true
	case "double", "float":
		return StorageFloat64, true
	case "numeric":
		return StorageDecimal, true
	case "text", "varchar", "nvarchar":
		return StorageString, true
	case "char":
		return StorageAnsiString, true
	case "bytes", "blob", "varbinary":
		return StorageBinary, true
	case "timestamp", "time":
		return StorageDateTime, true
	case "uuid", "uniqueidentifier":
		return StorageGUID, true
	}
	return StorageUnknown, false
}

// UnmarshalText lets StorageType appear directly in YAML configuration.
func (s *StorageType) UnmarshalText(b []byte) error {
	st, ok := ParseStorageType(string(b))
	if !ok {
		return fmt.Errorf("xmap: unknown storage type %q", b)
	}
	*s = st
	return nil
}

// MarshalText renders the storage type name.
func (s StorageType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var (
	typeBool    = reflect.TypeOf(false)
	typeInt8    = reflect.TypeOf(int8(0))
	typeInt16   = reflect.TypeOf(int16(0))
	typeInt32   = reflect.TypeOf(int32(0))
	typeInt64   = reflect.TypeOf(int64(0))
	typeUint8   = reflect.TypeOf(uint8(0))
	typeUint16  = reflect.TypeOf(uint16(0))
	typeUint32  = reflect.TypeOf(uint32(0))
	typeUint64  = reflect.TypeOf(uint64(0))
	typeFloat32 = reflect.TypeOf(float32(0))
	typeFloat64 = reflect.TypeOf(float64(0))
	typeString  = reflect.TypeOf("")
	typeBytes   = reflect.TypeOf([]byte(nil))
	typeTime    = reflect.TypeOf(time.Time{})
	typeUUID    = reflect.TypeOf(uuid.UUID{})
	typeDecimal = reflect.TypeOf(decimal.Decimal{})
	typeRawJSON = reflect.TypeOf(json.RawMessage(nil))
	typeAny     = reflect.TypeOf((*any)(nil)).Elem()
	typeRawSQL  = reflect.TypeOf(sql.RawBytes(nil))

	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// GoType returns the Go type values of storage type s are written as before a
// StorageCapability rewrites them. Array and unknown storage keep the field's
// own type and return nil.
func (s StorageType) GoType() reflect.Type {
	switch s {
	case StorageBool:
		return typeBool
	case StorageInt8:
		return typeInt8
	case StorageInt16:
		return typeInt16
	case StorageInt32:
		return typeInt32
	case StorageInt64:
		return typeInt64
	case StorageUint8:
		return typeUint8
	case StorageUint16:
		return typeUint16
	case StorageUint32:
		return typeUint32
	case StorageUint64:
		return typeUint64
	case StorageFloat32:
		return typeFloat32
	case StorageFloat64:
		return typeFloat64
	case StorageDecimal:
		return typeDecimal
	case StorageString, StorageAnsiString:
		return typeString
	case StorageBinary:
		return typeBytes
	case StorageDateTime:
		return typeTime
	case StorageGUID:
		return typeUUID
	case StorageJSON:
		return typeRawJSON
	}
	return nil
}

var defaultStorage = map[reflect.Type]StorageType{
	typeBool:    StorageBool,
	typeInt8:    StorageInt8,
	typeInt16:   StorageInt16,
	typeInt32:   StorageInt32,
	typeInt64:   StorageInt64,
	typeUint8:   StorageUint8,
	typeUint16:  StorageUint16,
	typeUint32:  StorageUint32,
	typeUint64:  StorageUint64,
	typeFloat32: StorageFloat32,
	typeFloat64: StorageFloat64,
	typeString:  StorageString,
	typeBytes:   StorageBinary,
	typeTime:    StorageDateTime,
	typeUUID:    StorageGUID,
	typeDecimal: StorageDecimal,
	typeRawJSON: StorageJSON,

	reflect.TypeOf(sql.NullBool{}):        StorageBool,
	reflect.TypeOf(sql.NullByte{}):        StorageUint8,
	reflect.TypeOf(sql.NullInt16{}):       StorageInt16,
	reflect.TypeOf(sql.NullInt32{}):       StorageInt32,
	reflect.TypeOf(sql.NullInt64{}):       StorageInt64,
	reflect.TypeOf(sql.NullFloat64{}):     StorageFloat64,
	reflect.TypeOf(sql.NullString{}):      StorageString,
	reflect.TypeOf(sql.NullTime{}):        StorageDateTime,
	reflect.TypeOf(uuid.NullUUID{}):       StorageGUID,
	reflect.TypeOf(decimal.NullDecimal{}): StorageDecimal,
}

// DefaultStorage returns the structural storage type of a Go type: known
// types by identity, named types (enums included) by their underlying kind,
// pointers by their element.
func DefaultStorage(t reflect.Type) StorageType {
	if t == nil {
		return StorageUnknown
	}
	t = derefPtr(t)
	if st, ok := defaultStorage[t]; ok {
		return st
	}
	switch t.Kind() {
	case reflect.Bool:
		return StorageBool
	case reflect.Int8:
		return StorageInt8
	case reflect.Int16:
		return StorageInt16
	case reflect.Int32:
		return StorageInt32
	case reflect.Int, reflect.Int64:
		return StorageInt64
	case reflect.Uint8:
		return StorageUint8
	case reflect.Uint16:
		return StorageUint16
	case reflect.Uint32:
		return StorageUint32
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return StorageUint64
	case reflect.Float32:
		return StorageFloat32
	case reflect.Float64:
		return StorageFloat64
	case reflect.String:
		return StorageString
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return StorageBinary
		}
		return StorageArray
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 && t.Len() == 16 {
			return StorageGUID
		}
		return StorageArray
	case reflect.Map, reflect.Struct:
		return StorageJSON
	}
	return StorageUnknown
}

// StorageCapability is implemented once per database provider. It replaces
// attribute-driven, provider-specific parameter typing: the engine asks it
// for a field's storage type and lets it adjust each bound parameter.
type StorageCapability interface {
	// Name identifies the provider; it becomes part of every cache signature.
	Name() string
	// ResolveStorageType returns the provider's storage type for f, or false
	// to fall back to the structural default.
	ResolveStorageType(f *FieldDescriptor) (StorageType, bool)
	// ApplyExtendedType runs after a parameter's value and metadata are set.
	ApplyExtendedType(p Parameter, t StorageType)
}

// GenericCapability is the provider-neutral capability: structural storage
// types and driver-ready values.
type GenericCapability struct{}

func (GenericCapability) Name() string { return "generic" }

func (GenericCapability) ResolveStorageType(*FieldDescriptor) (StorageType, bool) {
	return StorageUnknown, false
}

func (GenericCapability) ApplyExtendedType(Parameter, StorageType) {}
