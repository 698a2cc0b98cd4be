package unit

// Unit is a linked compilation unit: a module (named) or a script (anonymous).
// Its export surface is a map of live bindings; Deps lists the units it was
// linked against, in declaration order, and drives evaluation scheduling.
type Unit struct {
	Name    string // full (normalized) name, "" for scripts
	Address string
	Source  string

	Exports map[string]*Binding
	Deps    []*Unit
	Env     *Environment

	// Body is the parsed form, opaque to this package. Init runs the unit's
	// top-level code; the linker installs it for parsed units, a link
	// override may supply its own, and factory units leave it nil because
	// their executor already ran at link time.
	Body any
	Init func(u *Unit) error
}

func New(name string) *Unit {
	return &Unit{
		Name:    name,
		Exports: make(map[string]*Binding),
		Env:     NewEnvironment(),
	}
}

// Export exposes the binding under the given name. The binding may still be
// unevaluated; importers alias it as-is.
func (u *Unit) Export(name string, b *Binding) {
	b.Meta.IsExport = true
	u.Exports[name] = b
}

func (u *Unit) IsScript() bool { return u.Name == "" }
