package unit

import (
	"fmt"
	"sort"
	"strings"
)

type ValueType string

const (
	NIL_VALUE       = "NIL"
	INTEGER_VALUE   = "INTEGER"
	STRING_VALUE    = "STRING"
	NAMESPACE_VALUE = "NAMESPACE"
)

var NIL = &Nil{}

// Value is the runtime representation of anything a unit binding can hold.
type Value interface {
	Type() ValueType
	Inspect() string
}

type Nil struct{}

func (n *Nil) Type() ValueType { return NIL_VALUE }
func (n *Nil) Inspect() string { return "nil" }

type Integer struct {
	Value int64
}

func (i *Integer) Type() ValueType { return INTEGER_VALUE }
func (i *Integer) Inspect() string { return fmt.Sprintf("%d", i.Value) }

type String struct {
	Value string
}

func (s *String) Type() ValueType { return STRING_VALUE }
func (s *String) Inspect() string { return s.Value }

// Namespace is the value installed by a whole-unit bind ("module ns from ...").
// Member access reads the target unit's live export bindings.
type Namespace struct {
	Unit *Unit
}

func (ns *Namespace) Type() ValueType { return NAMESPACE_VALUE }

func (ns *Namespace) Inspect() string {
	names := make([]string, 0, len(ns.Unit.Exports))
	for name := range ns.Unit.Exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("<unit %s {%s}>", ns.Unit.Name, strings.Join(names, ", "))
}

// Member resolves an exported name against the namespace's unit.
func (ns *Namespace) Member(name string) (Value, bool) {
	b, ok := ns.Unit.Exports[name]
	if !ok || b.Value == nil {
		return nil, ok
	}
	return b.Value, true
}
