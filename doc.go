/*
Package xmap moves data between database/sql row sets and Go values, in both
directions, through plans compiled once per shape.

# Overview

A row set is described by its column names (and, when the source knows them,
the Go types of its values). The first time a Mapper sees a (target type,
columns) shape it matches columns to fields, resolves a conversion rule for
every matched pair and publishes the resulting row plan in a cache. Every
later row set of the same shape reuses the plan. Parameter binding works the
same way in reverse: a (entity type, fields, batch size, sink type) shape
compiles to a bind plan that writes field values as named parameters.

# Mapping rules

  - Fields bind by `db:"name"` first, otherwise by the Mapper's NameMapper
    (identity by default, SnakeCase optionally).
  - Columns match case-insensitively, then ignoring accents, underscores and
    separators: "Créé_Le" finds CreeLe.
  - The first column that claims a field wins; later duplicates are dropped.
  - NULL leaves the field at its zero value. No conversion runs for it.
  - Embedded structs and `db:",inline"` fields are flattened.
  - A struct target that no column matches fails with ErrNoMatchedFields.
  - Record is the dynamic target: every column in reader order, NULL as
    Absent.

# Tag options

	ID     int64           `db:"id"`
	Code   string          `db:"code,size=12,type=ansistring"`
	Amount decimal.Decimal `db:"amount,precision=18,scale=2"`
	Total  int64           `db:"total,output"`
	Meta   Meta            `db:"meta,codec=json"`
	Secret string          `db:"-"`

# Conversions

Conversion rules are derived from the type pair alone: direct, widening and
narrowing numeric casts, string parse and format (numbers, booleans,
time.Time, decimal.Decimal), string to and from uuid.UUID, enum to and from
integers or names, sql.Scanner targets, and a per-value default for sources
of unknown type. A PropertyHandler registered for a field, a Go type or a
storage type replaces the rules for that field in both directions.

Enums are named integer types with a String or MarshalText method, or types
registered with RegisterEnum. They are converted through their resolved
storage type; string storage needs a way back from text (UnmarshalText or a
RegisterEnum table) and fails with ErrConverterNotFound otherwise.

# Parameters

Bind writes a batch of entities into a ParameterSink. The first entity's
parameters carry the mapped names; the i-th entity's carry a "_i" suffix
(Amount, Amount_1, Amount_2). Params is the built-in sink; Rebind and
ExecBatch turn its :name tokens into the driver's placeholder style.

# Providers

A StorageCapability resolves provider-specific storage types and finishes
every parameter. Package dialect has implementations for PostgreSQL (lib/pq
and pgx), MySQL, SQLite and SQL Server and picks one from a *sql.DB.
*/
package xmap
