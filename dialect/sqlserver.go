package dialect

import (
	"github.com/google/uuid"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/go-mizu/xmap"
)

// SQLServer sends GUIDs as UNIQUEIDENTIFIER and ANSI strings as VARCHAR.
type SQLServer struct{}

func (SQLServer) Name() string                  { return "sqlserver" }
func (SQLServer) Placeholder() xmap.Placeholder { return xmap.PlaceholderAtP }

func (SQLServer) ResolveStorageType(*xmap.FieldDescriptor) (xmap.StorageType, bool) {
	return xmap.StorageUnknown, false
}

func (SQLServer) ApplyExtendedType(p xmap.Parameter, t xmap.StorageType) {
	switch v := p.Value().(type) {
	case uuid.UUID:
		if t == xmap.StorageGUID {
			p.SetValue(mssql.UniqueIdentifier(v))
		}
	case string:
		if t == xmap.StorageAnsiString {
			p.SetValue(mssql.VarChar(v))
		}
	}
	if t == xmap.StorageJSON {
		jsonAsText(p)
	}
}
