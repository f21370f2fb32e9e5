package xmap

import (
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Config is the YAML form of a Mapper's configuration.
//
//	scope: reporting
//	naming: snake
//	types:
//	  app.Status: string
//	entities:
//	  app.Order:
//	    Amount: {column: amount_cents, type: int64}
//	    Total:  {direction: output}
//
// Entity and type keys are reflect.Type.String() names. Field keys are Go
// field names.
type Config struct {
	Scope    string                              `yaml:"scope"`
	Naming   string                              `yaml:"naming"`
	Types    map[string]StorageType              `yaml:"types"`
	Entities map[string]map[string]FieldOverride `yaml:"entities"`
}

// FieldOverride replaces tag-derived metadata of one field. Zero values leave
// the tag (or default) in place.
type FieldOverride struct {
	Column    string      `yaml:"column"`
	Type      StorageType `yaml:"type"`
	Size      int         `yaml:"size"`
	Precision int         `yaml:"precision"`
	Scale     int         `yaml:"scale"`
	Direction string      `yaml:"direction"`
	Nullable  *bool       `yaml:"nullable"`
}

func (o FieldOverride) apply(fd *FieldDescriptor) {
	if o.Column != "" {
		fd.MappedName = o.Column
		fd.named = true
	}
	if o.Type != StorageUnknown {
		fd.Storage = o.Type
	}
	if o.Size > 0 {
		fd.Size = o.Size
	}
	if o.Precision > 0 {
		fd.Precision = o.Precision
	}
	if o.Scale > 0 {
		fd.Scale = o.Scale
	}
	if d, ok := ParseDirection(o.Direction); ok && o.Direction != "" {
		fd.Direction = d
	}
	if o.Nullable != nil {
		fd.Nullable = *o.Nullable
	}
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("xmap: read config: %w", err)
	}
	return ParseConfig(b)
}

// ParseConfig decodes and validates a YAML configuration document.
func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("xmap: parse config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if _, err := c.nameMapper(); err != nil {
		return err
	}
	for entity, fields := range c.Entities {
		for field, o := range fields {
			if _, ok := ParseDirection(o.Direction); !ok {
				return fmt.Errorf("xmap: config: %s.%s: unknown direction %q", entity, field, o.Direction)
			}
		}
	}
	return nil
}

func (c *Config) nameMapper() (NameMapper, error) {
	switch c.Naming {
	case "", "identity":
		return IdentityName, nil
	case "snake":
		return SnakeCase, nil
	}
	return nil, fmt.Errorf("xmap: config: unknown naming %q", c.Naming)
}

// overrides returns the configured field overrides of t, if any.
func (c *Config) overrides(t reflect.Type) map[string]FieldOverride {
	if c == nil {
		return nil
	}
	return c.Entities[t.String()]
}

// storageFor returns the configured storage type for Go type t.
func (c *Config) storageFor(t reflect.Type) (StorageType, bool) {
	if c == nil || len(c.Types) == 0 {
		return StorageUnknown, false
	}
	st, ok := c.Types[t.String()]
	return st, ok
}
