package loader

import (
	"errors"
	"log/slog"

	"lode/internal/syntax"
	"lode/internal/unit"
)

type LoadStatus int

const (
	LoadLoading LoadStatus = iota
	LoadLoaded
	LoadLinked
	LoadFailed
)

func (s LoadStatus) String() string {
	switch s {
	case LoadLoading:
		return "loading"
	case LoadLoaded:
		return "loaded"
	case LoadLinked:
		return "linked"
	case LoadFailed:
		return "failed"
	}
	return "unknown"
}

type exportState int

const (
	exportsNotStarted exportState = iota
	exportsInProgress
	exportsDone
)

// Load is one in-flight attempt to obtain one unit's linked-ready form.
// Status moves strictly forward. A Load stays alive only while at least one
// LinkSet references it; dropping the last reference makes any late fetch
// settlement a no-op.
type Load struct {
	Status   LoadStatus
	Name     string // full name, "" for a top-level script
	Metadata any
	Address  string
	Source   string

	LinkSets []*LinkSet

	Body     *syntax.Program
	Edges    []unit.Edge
	Deps     map[string]string // request → full name
	DepOrder []string          // requests, first-seen order

	exportState exportState
	exportNames []string

	Unit *unit.Unit
	Err  error

	// Instantiate hook results; at most one is set.
	override *unit.Unit
	factory  *Instantiation
}

func newLoad(name string) *Load {
	return &Load{Status: LoadLoading, Name: name}
}

// linkedLoad wraps an already-registered unit as a synthetic Linked result.
func linkedLoad(u *unit.Unit) *Load {
	return &Load{Status: LoadLinked, Name: u.Name, Address: u.Address, Unit: u}
}

func (l *Load) describe() string {
	if l.Name != "" {
		return l.Name
	}
	if l.Address != "" {
		return l.Address
	}
	return "script"
}

func (l *Load) attach(ls *LinkSet) {
	l.LinkSets = append(l.LinkSets, ls)
}

func (l *Load) detach(ls *LinkSet) {
	for i, s := range l.LinkSets {
		if s == ls {
			l.LinkSets = append(l.LinkSets[:i], l.LinkSets[i+1:]...)
			return
		}
	}
}

// startLoad resolves a request to a Load, creating and dispatching one when
// nothing usable exists yet. Normalize misbehavior is returned to the caller:
// no Load exists to attribute it to. With synchronous set, a unit that is
// neither registered nor already loaded is an error, because a synchronous
// caller cannot wait for a fetch.
func (ld *Loader) startLoad(request string, referer *Referer, synchronous bool) (*Load, error) {
	norm, err := ld.hooks.Normalize(request, referer)
	if err != nil {
		return nil, &HookError{Hook: "normalize", Name: request, Err: err}
	}
	if norm.Name == "" {
		return nil, &HookError{Hook: "normalize", Name: request, Err: errors.New("empty full name")}
	}
	full := norm.Name

	if u, ok := ld.registry.lookup(full); ok {
		return linkedLoad(u), nil
	}
	if l, ok := ld.inflight[full]; ok {
		if l.Status == LoadLoaded {
			return l, nil
		}
		if synchronous {
			return nil, &NotLoadedError{Name: full}
		}
		return l, nil // join the in-flight load
	}
	if synchronous {
		return nil, &NotLoadedError{Name: full}
	}

	load := newLoad(full)
	load.Metadata = norm.Metadata
	ld.inflight[full] = load
	slog.Debug("load started", slog.String("unit", full), slog.String("request", request))

	res, err := ld.hooks.Resolve(full, norm.Metadata)
	if err != nil {
		ld.failLoad(load, &HookError{Hook: "resolve", Name: full, Err: err})
		return load, nil
	}
	load.Address = res.Address

	ld.callFetch(load)
	return load, nil
}

// callFetch dispatches the fetch hook with a fresh one-shot callback. The
// hook may settle synchronously; the settlement still runs as its own task.
func (ld *Loader) callFetch(load *Load) {
	cb := &FetchCallback{ld: ld, load: load}
	ld.queue.beginAsync()
	ld.hooks.Fetch(&Request{Name: load.Name, Address: load.Address, Metadata: load.Metadata}, cb)
}

// onFetchFulfilled runs source through translate, then instantiate-or-parse.
// It is a queue task: by the time it runs, every requester may already have
// failed and detached, in which case the fulfillment is a no-op.
func (ld *Loader) onFetchFulfilled(load *Load, source, address string) {
	if len(load.LinkSets) == 0 {
		slog.Debug("fetch fulfilled for an abandoned load", slog.String("unit", load.describe()))
		return
	}
	if load.Status != LoadLoading {
		return
	}
	if address != "" {
		load.Address = address
	}

	req := &Request{Name: load.Name, Address: load.Address, Metadata: load.Metadata}

	translated, err := ld.hooks.Translate(req, source)
	if err != nil {
		ld.failLoad(load, &HookError{Hook: "translate", Name: load.describe(), Err: err})
		return
	}
	load.Source = translated

	if load.Name != "" {
		inst, err := ld.hooks.Instantiate(req, translated)
		if err != nil {
			ld.failLoad(load, &HookError{Hook: "instantiate", Name: load.Name, Err: err})
			return
		}
		if inst != nil {
			switch {
			case inst.Unit != nil:
				ld.finishOverride(load, inst.Unit)
			case inst.Execute != nil:
				ld.finishFactory(load, inst)
			default:
				ld.failLoad(load, &HookError{Hook: "instantiate", Name: load.Name,
					Err: errors.New("instantiation carries neither a unit nor an executor")})
			}
			return
		}
	}

	body, err := syntax.Parse(translated)
	if err != nil {
		ld.failLoad(load, err)
		return
	}
	ld.finishLoad(load, body)
}

func (ld *Loader) onFetchRejected(load *Load, err error) {
	if len(load.LinkSets) == 0 {
		slog.Debug("fetch rejected for an abandoned load", slog.String("unit", load.describe()))
		return
	}
	if load.Status != LoadLoading {
		return
	}
	ld.failLoad(load, err)
}

// finishLoad records the parsed body, spawns or joins a Load for every not
// yet resolved edge request, and marks the load Loaded.
func (ld *Loader) finishLoad(load *Load, body *syntax.Program) {
	ld.finishWithEdges(load, body, body.Edges())
}

// finishOverride accepts a fully formed unit from the instantiate hook. The
// load carries no edges; the unit is committed as-is at link time.
func (ld *Loader) finishOverride(load *Load, u *unit.Unit) {
	load.override = u
	ld.finishWithEdges(load, nil, nil)
}

// finishFactory accepts a dependency factory from the instantiate hook. Each
// declared import becomes a whole-unit edge; the executor runs at link time.
func (ld *Loader) finishFactory(load *Load, inst *Instantiation) {
	load.factory = inst
	edges := make([]unit.Edge, 0, len(inst.Imports))
	for _, imp := range inst.Imports {
		edges = append(edges, unit.Edge{
			Request:  imp,
			Imported: unit.ImportRef{Kind: unit.ImportUnit},
			Local:    imp,
		})
	}
	ld.finishWithEdges(load, nil, edges)
}

func (ld *Loader) finishWithEdges(load *Load, body *syntax.Program, edges []unit.Edge) {
	if len(load.LinkSets) == 0 {
		slog.Error("finishing a load nothing references", slog.String("unit", load.describe()))
		return
	}

	load.Body = body
	load.Edges = edges
	load.Deps = make(map[string]string)

	var referer *Referer
	if load.Name != "" || load.Address != "" {
		referer = &Referer{Name: load.Name, Address: load.Address}
	}

	// Only the LinkSets that need this load right now receive its
	// dependencies; sets joining later pull them in through addLoad.
	requesters := append([]*LinkSet(nil), load.LinkSets...)

	for _, edge := range edges {
		if edge.Request == "" {
			continue
		}
		if _, seen := load.Deps[edge.Request]; seen {
			continue
		}
		dep, err := ld.startLoad(edge.Request, referer, false)
		if err != nil {
			// normalize misbehaved; this load is the caller
			ld.failLoad(load, err)
			return
		}
		load.Deps[edge.Request] = dep.Name
		load.DepOrder = append(load.DepOrder, edge.Request)
		for _, ls := range requesters {
			ls.addLoad(dep)
		}
		if len(load.LinkSets) == 0 {
			// a failed dependency took every requester down with it
			return
		}
	}

	load.Status = LoadLoaded
	slog.Debug("load finished", slog.String("unit", load.describe()), slog.Int("edges", len(edges)))

	for _, ls := range append([]*LinkSet(nil), load.LinkSets...) {
		ls.onLoadReady(load)
	}
}

// failLoad fails one load and cascades to every LinkSet still referencing it.
// A failed load holds nothing but its error and keeps no back-references.
func (ld *Loader) failLoad(load *Load, err error) {
	if load.Status == LoadFailed {
		return
	}
	load.Status = LoadFailed
	load.Err = err
	load.Body = nil
	load.Edges = nil
	load.Unit = nil
	slog.Debug("load failed", slog.String("unit", load.describe()), slog.Any("error", err))

	sets := load.LinkSets
	load.LinkSets = nil
	ld.dropIfOrphaned(load)
	for _, ls := range sets {
		ls.fail(err)
	}
}

// dropIfOrphaned removes a load from the in-flight table once nothing
// references it. Cancellation is advisory: an in-progress fetch keeps
// running, its settlement just goes nowhere.
func (ld *Loader) dropIfOrphaned(load *Load) {
	if len(load.LinkSets) > 0 || load.Name == "" {
		return
	}
	if cur, ok := ld.inflight[load.Name]; ok && cur == load {
		delete(ld.inflight, load.Name)
		slog.Debug("load dropped from in-flight table", slog.String("unit", load.Name))
	}
}
