package dialect

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/go-mizu/xmap"
)

// Postgres is the PostgreSQL capability. With PGX set, GUID and decimal
// values are sent as pgtype values for the pgx stdlib driver; otherwise slices
// are wrapped with pq.Array for lib/pq.
type Postgres struct {
	PGX bool
}

func (p Postgres) Name() string {
	if p.PGX {
		return "pgx"
	}
	return "postgres"
}

func (Postgres) Placeholder() xmap.Placeholder { return xmap.PlaceholderDollar }

func (Postgres) ResolveStorageType(*xmap.FieldDescriptor) (xmap.StorageType, bool) {
	return xmap.StorageUnknown, false
}

func (p Postgres) ApplyExtendedType(prm xmap.Parameter, t xmap.StorageType) {
	v := prm.Value()
	if v == nil {
		return
	}
	switch t {
	case xmap.StorageJSON:
		jsonAsText(prm)
	case xmap.StorageArray:
		if !p.PGX {
			prm.SetValue(pq.Array(v))
		}
	case xmap.StorageGUID:
		if u, ok := v.(uuid.UUID); ok && p.PGX {
			prm.SetValue(pgtype.UUID{Bytes: u, Valid: true})
		}
	case xmap.StorageDecimal:
		if d, ok := v.(decimal.Decimal); ok && p.PGX {
			var n pgtype.Numeric
			if err := n.Scan(d.String()); err == nil {
				prm.SetValue(n)
			}
		}
	}
}
