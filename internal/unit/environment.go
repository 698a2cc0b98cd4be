package unit

// Binding is one named slot. Importers alias the exporter's *Binding, so a
// value set during the exporter's evaluation is visible through every alias.
type Binding struct {
	Value Value
	Meta  Meta
}

type Meta struct {
	IsImport bool
	IsExport bool
}

// Environment holds a unit's local bindings. The pipeline is single-threaded,
// so no locking.
type Environment struct {
	Bindings map[string]*Binding
	Outer    *Environment
}

func NewEnvironment() *Environment {
	return &Environment{Bindings: make(map[string]*Binding)}
}

func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.Outer = outer
	return env
}

func (e *Environment) Get(name string) (*Binding, bool) {
	b, ok := e.Bindings[name]
	if !ok && e.Outer != nil {
		return e.Outer.Get(name)
	}
	return b, ok
}

// Define creates or reuses the binding for name in this scope and sets its
// value. Reuse matters: linking may have installed an exported placeholder
// binding before evaluation runs.
func (e *Environment) Define(name string, v Value) *Binding {
	if b, ok := e.Bindings[name]; ok {
		b.Value = v
		return b
	}
	b := &Binding{Value: v}
	e.Bindings[name] = b
	return b
}

// Alias installs an existing binding under a local name (import linking).
func (e *Environment) Alias(name string, b *Binding) {
	e.Bindings[name] = b
}
