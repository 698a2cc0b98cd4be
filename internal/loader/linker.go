package loader

import (
	"log/slog"
	"sort"

	"lode/internal/unit"
)

// linkState stages every write linking produces. The registry and the
// in-flight table are only touched in the final commit loop, so a failure
// anywhere in the walk leaves both exactly as they were.
type linkState struct {
	ld      *Loader
	ls      *LinkSet
	units   map[*Load]*unit.Unit
	byName  map[string]*Load
	order   []*Load // depth-first post-order from the seeds
	visited map[*Load]bool
}

// link links every member of a fully loaded LinkSet and commits the batch,
// or changes nothing. Walk order is depth-first from the seeds, left to
// right, preferring registry units over sibling loads when both exist.
func (ld *Loader) link(ls *LinkSet) error {
	st := &linkState{
		ld:      ld,
		ls:      ls,
		units:   make(map[*Load]*unit.Unit),
		byName:  make(map[string]*Load),
		visited: make(map[*Load]bool),
	}
	for _, load := range ls.loads {
		if load.Name != "" {
			st.byName[load.Name] = load
		}
	}

	// collect member units depth-first, checking name collisions
	for _, seed := range ls.seeds {
		if err := st.visit(seed); err != nil {
			return err
		}
	}
	for _, load := range ls.loads {
		if err := st.visit(load); err != nil {
			return err
		}
	}

	// factory executors run at link phase, dependencies first; their units
	// must exist before export sets are computed so star re-exports over a
	// factory see its real export surface
	for _, load := range st.order {
		if load.factory == nil {
			continue
		}
		if err := st.executeFactory(load); err != nil {
			return err
		}
	}

	// export name sets, with export-star cycle and duplicate detection
	for _, load := range st.order {
		if _, err := st.computeExports(load); err != nil {
			return err
		}
	}

	// resolve import and re-export edges into shared bindings
	for _, load := range st.order {
		if err := st.resolveEdges(load); err != nil {
			return err
		}
	}

	// commit: everything above succeeded for the whole batch
	for _, load := range st.order {
		u := st.units[load]
		u.Deps = st.depUnits(load)
		if load.Body != nil {
			u.Init = ld.initializerFor(u)
		}
		load.Unit = u
		load.Status = LoadLinked
		load.Body = nil
		load.Edges = nil
		if load.Name != "" {
			if cur, ok := ld.inflight[load.Name]; ok && cur == load {
				delete(ld.inflight, load.Name)
			}
			ld.registry.Set(load.Name, u)
		}
		slog.Debug("unit linked", slog.String("unit", load.describe()))
	}
	return nil
}

// visit stages one member and, first, everything it depends on.
func (st *linkState) visit(load *Load) error {
	if load.Status == LoadLinked || st.visited[load] {
		return nil
	}
	st.visited[load] = true

	if load.Name != "" {
		if _, ok := st.ld.registry.lookup(load.Name); ok {
			return &LinkError{Unit: load.Name, Msg: "a unit with this name is already registered"}
		}
		if cur, ok := st.ld.inflight[load.Name]; ok && cur != load {
			return &LinkError{Unit: load.Name, Msg: "another in-flight load owns this name"}
		}
	}

	for _, req := range load.DepOrder {
		full := load.Deps[req]
		if _, ok := st.ld.registry.lookup(full); ok {
			continue // prefer the registered unit
		}
		dep, ok := st.byName[full]
		if !ok {
			return &LinkError{Unit: load.describe(), Msg: "dependency " + full + " is not part of this link"}
		}
		if err := st.visit(dep); err != nil {
			return err
		}
	}

	u := load.override
	if u == nil {
		u = unit.New(load.Name)
		u.Address = load.Address
		u.Source = load.Source
		u.Body = load.Body
	} else if u.Name == "" {
		u.Name = load.Name
	}
	st.units[load] = u
	st.order = append(st.order, load)

	// placeholder bindings for explicit local exports, so importers can
	// alias them before this unit ever evaluates
	for _, edge := range load.Edges {
		if edge.Request == "" && edge.Exported.Kind == unit.ExportName {
			b, ok := u.Env.Bindings[edge.Local]
			if !ok {
				b = &unit.Binding{}
				u.Env.Alias(edge.Local, b)
			}
			u.Export(edge.Exported.Name, b)
		}
	}
	return nil
}

// computeExports memoizes the set of names a load exposes: its explicit
// exports plus the closure of its export-star edges. The tri-state guards
// against export-star cycles; a name arriving twice is a duplicate.
func (st *linkState) computeExports(load *Load) ([]string, error) {
	switch load.exportState {
	case exportsDone:
		return load.exportNames, nil
	case exportsInProgress:
		return nil, &CycleError{Unit: load.describe()}
	}
	load.exportState = exportsInProgress
	// a failed walk must not leave the memo mid-computation: a sibling
	// LinkSet sharing this load may link again later
	completed := false
	defer func() {
		if !completed {
			load.exportState = exportsNotStarted
		}
	}()

	seen := make(map[string]bool)
	var names []string
	add := func(name string) error {
		if seen[name] {
			return &DuplicateExportError{Unit: load.describe(), Name: name}
		}
		seen[name] = true
		names = append(names, name)
		return nil
	}

	for _, edge := range load.Edges {
		if edge.Exported.Kind != unit.ExportName {
			continue
		}
		if err := add(edge.Exported.Name); err != nil {
			return nil, err
		}
	}
	for _, edge := range load.Edges {
		if edge.Exported.Kind != unit.ExportAll {
			continue
		}
		depNames, err := st.exportNamesOf(load, edge.Request)
		if err != nil {
			return nil, err
		}
		for _, name := range depNames {
			if err := add(name); err != nil {
				return nil, err
			}
		}
	}

	load.exportState = exportsDone
	load.exportNames = names
	completed = true
	return names, nil
}

func (st *linkState) exportNamesOf(from *Load, request string) ([]string, error) {
	full := from.Deps[request]
	if u, ok := st.ld.registry.lookup(full); ok {
		names := make([]string, 0, len(u.Exports))
		for name := range u.Exports {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}
	dep, ok := st.byName[full]
	if !ok {
		return nil, &LinkError{Unit: from.describe(), Msg: "dependency " + full + " is not part of this link"}
	}
	if dep.override != nil || dep.factory != nil {
		u := st.units[dep]
		names := make([]string, 0, len(u.Exports))
		for name := range u.Exports {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}
	return st.computeExports(dep)
}

func (st *linkState) executeFactory(load *Load) error {
	deps := st.depUnits(load)
	u, err := load.factory.Execute(deps...)
	if err != nil {
		return &HookError{Hook: "instantiate", Name: load.Name, Err: err}
	}
	if u.Name == "" {
		u.Name = load.Name
	}
	st.units[load] = u
	return nil
}

// resolveEdges installs this unit's import aliases and re-export bindings.
// Explicit local exports were already staged in visit.
func (st *linkState) resolveEdges(load *Load) error {
	if load.override != nil || load.factory != nil {
		return nil
	}
	u := st.units[load]

	for _, edge := range load.Edges {
		if edge.Request == "" {
			continue
		}
		switch {
		case edge.Imported.Kind == unit.ImportUnit:
			depU, err := st.unitFor(load, edge.Request)
			if err != nil {
				return err
			}
			u.Env.Alias(edge.Local, &unit.Binding{
				Value: &unit.Namespace{Unit: depU},
				Meta:  unit.Meta{IsImport: true},
			})

		case edge.Imported.Kind == unit.ImportName && edge.Local != "":
			b, err := st.resolveExport(load, edge.Request, edge.Imported.Name, make(map[exportKey]bool))
			if err != nil {
				return err
			}
			u.Env.Alias(edge.Local, b)

		case edge.Imported.Kind == unit.ImportName && edge.Exported.Kind == unit.ExportName:
			b, err := st.resolveExport(load, edge.Request, edge.Imported.Name, make(map[exportKey]bool))
			if err != nil {
				return err
			}
			u.Exports[edge.Exported.Name] = b

		case edge.Imported.Kind == unit.ImportAll:
			depNames, err := st.exportNamesOf(load, edge.Request)
			if err != nil {
				return err
			}
			for _, name := range depNames {
				b, err := st.resolveExport(load, edge.Request, name, make(map[exportKey]bool))
				if err != nil {
					return err
				}
				u.Exports[name] = b
			}

		default:
			// side-effect-only import: edge pins the dependency, no binding
		}
	}
	return nil
}

type exportKey struct {
	load *Load
	name string
}

// resolveExport follows re-export chains to the terminal binding. Duplicate
// detection in computeExports guarantees each step has a single successor, so
// a revisited (load, name) pair is a genuine cycle.
func (st *linkState) resolveExport(from *Load, request, name string, visiting map[exportKey]bool) (*unit.Binding, error) {
	full := from.Deps[request]
	if u, ok := st.ld.registry.lookup(full); ok {
		return bindingOf(u, full, name)
	}
	dep, ok := st.byName[full]
	if !ok {
		return nil, &LinkError{Unit: from.describe(), Msg: "dependency " + full + " is not part of this link"}
	}
	return st.resolveIn(dep, name, visiting)
}

func (st *linkState) resolveIn(load *Load, name string, visiting map[exportKey]bool) (*unit.Binding, error) {
	if load.override != nil || load.factory != nil {
		return bindingOf(st.units[load], load.describe(), name)
	}
	key := exportKey{load: load, name: name}
	if visiting[key] {
		return nil, &CycleError{Unit: load.describe(), Name: name}
	}
	visiting[key] = true

	u := st.units[load]

	for _, edge := range load.Edges {
		if edge.Request == "" && edge.Exported.Kind == unit.ExportName && edge.Exported.Name == name {
			return u.Exports[name], nil
		}
	}
	for _, edge := range load.Edges {
		if edge.Request != "" && edge.Imported.Kind == unit.ImportName &&
			edge.Exported.Kind == unit.ExportName && edge.Exported.Name == name {
			return st.resolveExport(load, edge.Request, edge.Imported.Name, visiting)
		}
	}
	for _, edge := range load.Edges {
		if edge.Exported.Kind != unit.ExportAll {
			continue
		}
		depNames, err := st.exportNamesOf(load, edge.Request)
		if err != nil {
			return nil, err
		}
		for _, n := range depNames {
			if n == name {
				return st.resolveExport(load, edge.Request, name, visiting)
			}
		}
	}
	return nil, &LinkError{Unit: load.describe(), Msg: "no export named " + name}
}

func bindingOf(u *unit.Unit, owner, name string) (*unit.Binding, error) {
	b, ok := u.Exports[name]
	if !ok {
		return nil, &LinkError{Unit: owner, Msg: "no export named " + name}
	}
	return b, nil
}

// depUnits resolves a load's dependencies to units in declaration order,
// preferring registered units over staged siblings.
func (st *linkState) depUnits(load *Load) []*unit.Unit {
	deps := make([]*unit.Unit, 0, len(load.DepOrder))
	for _, req := range load.DepOrder {
		if u, err := st.unitFor(load, req); err == nil {
			deps = append(deps, u)
		}
	}
	return deps
}

func (st *linkState) unitFor(load *Load, request string) (*unit.Unit, error) {
	full := load.Deps[request]
	if u, ok := st.ld.registry.lookup(full); ok {
		return u, nil
	}
	if dep, ok := st.byName[full]; ok {
		if u, ok := st.units[dep]; ok {
			return u, nil
		}
	}
	return nil, &LinkError{Unit: load.describe(), Msg: "dependency " + full + " is not part of this link"}
}
