package strategy

import (
	"strings"

	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

type Param struct {
	Name  string      `json:"name" yaml:"name"`
	Value fixed.Point `json:"value" yaml:"value"`
}

// Params is an ordered set of named strategy parameters. The order is part of
// its identity: two sets with the same pairs in another order have different keys.
type Params []Param

func (p Params) Get(name string) (fixed.Point, bool) {
	for _, param := range p {
		if param.Name == name {
			return param.Value, true
		}
	}
	return fixed.Zero, false
}

func (p Params) GetOr(name string, def fixed.Point) fixed.Point {
	if v, ok := p.Get(name); ok {
		return v
	}
	return def
}

// GetInt rounds the named value half to even into an int, or returns def when it is absent.
func (p Params) GetInt(name string, def int) int {
	v, ok := p.Get(name)
	if !ok {
		return def
	}
	f, _ := v.Round(0).Float64()
	return int(f)
}

// With returns a copy of p where name is set to value, appended if it is new.
func (p Params) With(name string, value fixed.Point) Params {
	out := make(Params, len(p), len(p)+1)
	copy(out, p)
	for idx := range out {
		if out[idx].Name == name {
			out[idx].Value = value
			return out
		}
	}
	return append(out, Param{Name: name, Value: value})
}

// Key is the canonical text form, e.g. "fast=5,slow=20".
func (p Params) Key() string {
	var sb strings.Builder
	for idx, param := range p {
		if idx > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(param.Name)
		sb.WriteByte('=')
		sb.WriteString(param.Value.String())
	}
	return sb.String()
}

func (p Params) String() string {
	return "{" + p.Key() + "}"
}
