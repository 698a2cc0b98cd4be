package loader

import (
	"sort"

	"lode/internal/unit"
)

// Registry maps full names to fully linked units. Get forces evaluation of
// the unit and its dependency set. Replacing an entry never relinks units
// already bound to the old one; their bindings keep pointing where they
// pointed.
type Registry struct {
	ld    *Loader
	units map[string]*unit.Unit
}

func newRegistry(ld *Loader) *Registry {
	return &Registry{ld: ld, units: make(map[string]*unit.Unit)}
}

// Get returns the named unit after running its initializer set.
func (r *Registry) Get(name string) (*unit.Unit, error) {
	u, ok := r.units[name]
	if !ok {
		return nil, &NotLoadedError{Name: name}
	}
	if err := r.ld.ensureEvaluated(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.units[name]
	return ok
}

// Set installs or replaces the unit registered under name.
func (r *Registry) Set(name string, u *unit.Unit) {
	r.units[name] = u
}

// Delete removes only the named entry, never anything it links to.
func (r *Registry) Delete(name string) bool {
	_, ok := r.units[name]
	delete(r.units, name)
	return ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookup reads without forcing evaluation; the pipeline uses it everywhere.
func (r *Registry) lookup(name string) (*unit.Unit, bool) {
	u, ok := r.units[name]
	return u, ok
}
