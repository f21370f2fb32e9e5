package xmap

import (
	"database/sql"
	"strings"
)

// Param is the parameter type of Params. It implements every optional
// setter.
type Param struct {
	Name      string
	Storage   StorageType
	Size      int
	Precision int
	Scale     int
	Direction Direction

	value any
}

func (p *Param) SetName(name string)          { p.Name = name }
func (p *Param) SetStorageType(t StorageType) { p.Storage = t }
func (p *Param) SetValue(v any)               { p.value = v }
func (p *Param) Value() any                   { return p.value }
func (p *Param) SetSize(n int)                { p.Size = n }
func (p *Param) SetPrecision(n int)           { p.Precision = n }
func (p *Param) SetScale(n int)               { p.Scale = n }
func (p *Param) SetDirection(d Direction)     { p.Direction = d }

// arg returns the database/sql argument for p. Output and input/output
// parameters receive their result in p's value.
func (p *Param) arg(named bool) any {
	var v any = p.value
	if p.Direction != Input {
		v = sql.Out{Dest: &p.value, In: p.Direction == InputOutput}
	}
	if named {
		return sql.Named(p.Name, v)
	}
	return v
}

// Params is a ParameterSink producing database/sql arguments.
type Params struct {
	list []*Param
}

// CreateParameter implements ParameterSink.
func (ps *Params) CreateParameter() Parameter { return &Param{} }

// Add implements ParameterSink. p must come from CreateParameter.
func (ps *Params) Add(p Parameter) { ps.list = append(ps.list, p.(*Param)) }

// Clear implements ParameterSink.
func (ps *Params) Clear() { ps.list = ps.list[:0] }

// Len returns the number of parameters.
func (ps *Params) Len() int { return len(ps.list) }

// At returns the i-th parameter.
func (ps *Params) At(i int) *Param { return ps.list[i] }

// Lookup finds a parameter by name, exact first, then case-insensitive.
func (ps *Params) Lookup(name string) (*Param, bool) {
	for _, p := range ps.list {
		if p.Name == name {
			return p, true
		}
	}
	for _, p := range ps.list {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return nil, false
}

// Args returns the parameters as sql.Named arguments in order.
func (ps *Params) Args() []any {
	out := make([]any, len(ps.list))
	for i, p := range ps.list {
		out[i] = p.arg(true)
	}
	return out
}

// Values returns the parameters as positional arguments in order.
func (ps *Params) Values() []any {
	out := make([]any, len(ps.list))
	for i, p := range ps.list {
		out[i] = p.arg(false)
	}
	return out
}
