package xmap

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
scope: reporting
naming: snake
types:
  xmap.Status: string
entities:
  xmap.person:
    Name: {column: full_name, size: 80}
    Id:   {direction: output, nullable: true}
`

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	assert.Equal(t, "reporting", c.Scope)
	assert.Equal(t, "snake", c.Naming)
	assert.Equal(t, map[string]StorageType{"xmap.Status": StorageString}, c.Types)

	name := c.Entities["xmap.person"]["Name"]
	assert.Equal(t, "full_name", name.Column)
	assert.Equal(t, 80, name.Size)

	id := c.Entities["xmap.person"]["Id"]
	assert.Equal(t, "output", id.Direction)
	require.NotNil(t, id.Nullable)
	assert.True(t, *id.Nullable)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"naming", "naming: kebab", `unknown naming "kebab"`},
		{"direction", "entities: {a.B: {F: {direction: sideways}}}", `a.B.F: unknown direction "sideways"`},
		{"storage type", "types: {a.B: bogus}", `unknown storage type "bogus"`},
		{"syntax", "types: [", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.doc))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "reporting", c.Scope)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestWithConfig(t *testing.T) {
	c, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)
	m := newTestMapper(WithConfig(c))
	assert.Equal(t, "reporting/generic", m.scopeKey())

	ti := m.Catalog().Describe(reflect.TypeOf(person{}))
	require.Len(t, ti.Fields, 2)
	id, name := ti.Fields[0], ti.Fields[1]
	assert.Equal(t, "id", id.MappedName)
	assert.Equal(t, Output, id.Direction)
	assert.True(t, id.Nullable)
	assert.Equal(t, "full_name", name.MappedName)
	assert.Equal(t, 80, name.Size)

	src := NewSliceSource([]string{"id", "full_name"}, [][]any{{int64(1), "Ann"}})
	got, err := Collect[person](context.Background(), m, src)
	require.NoError(t, err)
	assert.Equal(t, []person{{1, "Ann"}}, got)

	type row struct {
		State Status
	}
	var ps Params
	require.NoError(t, Bind(m, &ps, []row{{StatusActive}}))
	assert.Equal(t, StorageString, ps.At(0).Storage)
	assert.Equal(t, "active", ps.At(0).Value())
}

func TestWithConfigLaterOptionsWin(t *testing.T) {
	c, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)
	m := newTestMapper(WithConfig(c), WithScope("adhoc"), WithNameMapper(IdentityName))
	assert.Equal(t, "adhoc/generic", m.scopeKey())

	type other struct{ CreatedAt string }
	ti := m.Catalog().Describe(reflect.TypeOf(other{}))
	assert.Equal(t, "CreatedAt", ti.Fields[0].MappedName)
}

func TestMapType(t *testing.T) {
	m := newTestMapper()
	m.MapType(reflect.TypeOf(Status(0)), StorageInt16)

	type row struct {
		State *Status
	}
	s := StatusClosed
	var ps Params
	require.NoError(t, Bind(m, &ps, []row{{&s}}))
	assert.Equal(t, StorageInt16, ps.At(0).Storage)
	assert.Equal(t, int16(2), ps.At(0).Value())
}

func TestTagOverridesMappedType(t *testing.T) {
	m := newTestMapper()
	m.MapType(reflect.TypeOf(""), StorageAnsiString)

	type row struct {
		A string
		B string `db:"b,type=string"`
	}
	var ps Params
	require.NoError(t, Bind(m, &ps, []row{{"x", "y"}}))
	assert.Equal(t, StorageAnsiString, ps.At(0).Storage)
	assert.Equal(t, StorageString, ps.At(1).Storage)
}
