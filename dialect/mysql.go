package dialect

import "github.com/go-mizu/xmap"

// MySQL stores GUIDs as CHAR(36) text.
type MySQL struct{}

func (MySQL) Name() string                  { return "mysql" }
func (MySQL) Placeholder() xmap.Placeholder { return xmap.PlaceholderQuestion }

func (MySQL) ResolveStorageType(f *xmap.FieldDescriptor) (xmap.StorageType, bool) {
	if isUUID(f) {
		return xmap.StorageAnsiString, true
	}
	return xmap.StorageUnknown, false
}

func (MySQL) ApplyExtendedType(p xmap.Parameter, t xmap.StorageType) {
	if t == xmap.StorageJSON {
		jsonAsText(p)
	}
}
