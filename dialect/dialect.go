// Package dialect provides xmap storage capabilities for the database/sql
// drivers the module is used with, and picks one from an open *sql.DB.
package dialect

import (
	"database/sql"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"modernc.org/sqlite"

	"github.com/go-mizu/xmap"
)

// Detect returns the capability matching db's driver, or
// xmap.GenericCapability for drivers it does not know.
func Detect(db *sql.DB) xmap.StorageCapability {
	switch db.Driver().(type) {
	case *pq.Driver:
		return Postgres{}
	case *stdlib.Driver:
		return Postgres{PGX: true}
	case *mysql.MySQLDriver:
		return MySQL{}
	case *sqlite.Driver:
		return SQLite{}
	case *mssql.Driver:
		return SQLServer{}
	}
	return xmap.GenericCapability{}
}

// ForDriver returns the capability for a database/sql driver name as passed
// to sql.Open.
func ForDriver(name string) xmap.StorageCapability {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "lib/pq":
		return Postgres{}
	case "pgx":
		return Postgres{PGX: true}
	case "mysql":
		return MySQL{}
	case "sqlite", "sqlite3":
		return SQLite{}
	case "sqlserver", "mssql":
		return SQLServer{}
	}
	return xmap.GenericCapability{}
}

var (
	typeUUID     = reflect.TypeOf(uuid.UUID{})
	typeNullUUID = reflect.TypeOf(uuid.NullUUID{})
)

func isUUID(f *xmap.FieldDescriptor) bool {
	t := f.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t == typeUUID || t == typeNullUUID
}

// jsonAsText rewrites json.RawMessage values to strings. Drivers send []byte
// as binary, which json/jsonb and text columns reject.
func jsonAsText(p xmap.Parameter) {
	if raw, ok := p.Value().(json.RawMessage); ok {
		p.SetValue(string(raw))
	}
}
