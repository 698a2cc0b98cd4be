package loader

import (
	"sort"

	"lode/internal/syntax"
	"lode/internal/unit"
	"lode/internal/util/future"
)

// Loader owns one realm: a registry of linked units, the in-flight load
// table, the task queue and the evaluated set. All pipeline state is mutated
// only from queue tasks (or synchronous entry points), one logical thread.
type Loader struct {
	hooks    Hooks
	queue    *taskQueue
	inflight map[string]*Load
	registry *Registry

	evaluated map[*unit.Unit]bool

	emitFn func(unit.Value)
	trace  []unit.Value
}

func New(hooks Hooks) *Loader {
	if hooks == nil {
		hooks = Defaults{}
	}
	ld := &Loader{
		hooks:     hooks,
		queue:     newTaskQueue(),
		inflight:  make(map[string]*Load),
		evaluated: make(map[*unit.Unit]bool),
	}
	ld.registry = newRegistry(ld)
	return ld
}

func (ld *Loader) Registry() *Registry { return ld.registry }

// SetEmit routes emit statements somewhere besides the trace (the CLI prints
// them). The trace always records them.
func (ld *Loader) SetEmit(fn func(unit.Value)) { ld.emitFn = fn }

func (ld *Loader) Trace() []unit.Value { return ld.trace }

func (ld *Loader) emit(v unit.Value) {
	ld.trace = append(ld.trace, v)
	if ld.emitFn != nil {
		ld.emitFn(v)
	}
}

// InFlight reports whether a load for the full name is currently in the
// in-flight table.
func (ld *Loader) InFlight(name string) bool {
	_, ok := ld.inflight[name]
	return ok
}

// Import runs the full pipeline for a name: normalize, registry check,
// resolve, fetch, translate, instantiate-or-parse, link, evaluate. Both
// continuations are delivered from the task queue, never from this call.
func (ld *Loader) Import(name string, onSuccess func(*unit.Unit), onFailure func(error)) {
	ld.queue.push(func() {
		load, err := ld.startLoad(name, nil, false)
		if err != nil {
			// normalize misbehaved before any Load existed: the error
			// belongs to this request alone
			ld.deliverFailure(onFailure, err)
			return
		}
		ls := newLinkSet(ld, func() {
			u := load.Unit
			if err := ld.ensureEvaluated(u); err != nil {
				if onFailure != nil {
					onFailure(err)
				}
				return
			}
			if onSuccess != nil {
				onSuccess(u)
			}
		}, onFailure)
		ls.addSeed(load)
	})
}

// ImportFuture is Import wrapped in a one-shot future. The host still has to
// drive the queue (Run or Drain) for it to complete.
func (ld *Loader) ImportFuture(name string) *future.Future[*unit.Unit] {
	type result struct {
		u   *unit.Unit
		err error
	}
	ch := make(chan result, 1)
	ld.Import(name,
		func(u *unit.Unit) { ch <- result{u: u} },
		func(err error) { ch <- result{err: err} })
	return future.New(func() (*unit.Unit, error) {
		r := <-ch
		return r.u, r.err
	})
}

// LoadAndRun fetches the script at address (no normalize or resolve for the
// entry unit), loads its dependency closure, then links and evaluates it.
func (ld *Loader) LoadAndRun(address string, onSuccess func(*unit.Unit), onFailure func(error)) {
	ld.queue.push(func() {
		load := newLoad("")
		load.Address = address
		ls := ld.newScriptLinkSet(load, onSuccess, onFailure)
		ls.addSeed(load)
		ld.callFetch(load)
	})
}

// LoadScript is LoadAndRun with the source supplied directly.
func (ld *Loader) LoadScript(source string, onSuccess func(*unit.Unit), onFailure func(error)) {
	ld.queue.push(func() {
		load := newLoad("")
		ls := ld.newScriptLinkSet(load, onSuccess, onFailure)
		ls.addSeed(load)
		ld.onFetchFulfilled(load, source, "")
	})
}

func (ld *Loader) newScriptLinkSet(load *Load, onSuccess func(*unit.Unit), onFailure func(error)) *LinkSet {
	return newLinkSet(ld, func() {
		u := load.Unit
		if err := ld.ensureEvaluated(u); err != nil {
			if onFailure != nil {
				onFailure(err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(u)
		}
	}, onFailure)
}

// Define seeds one named unit with the given source.
func (ld *Loader) Define(name, source string, onSuccess func(), onFailure func(error)) {
	ld.DefineBatch(map[string]string{name: source}, onSuccess, onFailure)
}

// DefineBatch seeds several named units at once, all sharing one LinkSet:
// they load, link and commit together, or fail together. Nothing is
// evaluated; evaluation stays lazy.
func (ld *Loader) DefineBatch(sources map[string]string, onSuccess func(), onFailure func(error)) {
	ld.queue.push(func() {
		ls := newLinkSet(ld, onSuccess, onFailure)

		names := make([]string, 0, len(sources))
		for name := range sources {
			names = append(names, name)
		}
		sort.Strings(names)

		seeded := make([]*Load, 0, len(names))
		for _, name := range names {
			norm, err := ld.hooks.Normalize(name, nil)
			if err != nil {
				ls.fail(&HookError{Hook: "normalize", Name: name, Err: err})
				return
			}
			full := norm.Name
			if ld.registry.Has(full) {
				ls.fail(&LinkError{Unit: full, Msg: "a unit with this name is already registered"})
				return
			}
			if _, ok := ld.inflight[full]; ok {
				ls.fail(&LinkError{Unit: full, Msg: "another in-flight load owns this name"})
				return
			}
			load := newLoad(full)
			load.Metadata = norm.Metadata
			load.Address = full
			ld.inflight[full] = load
			ls.seeds = append(ls.seeds, load)
			ls.addLoad(load)
			seeded = append(seeded, load)
		}

		for _, load := range seeded {
			if ls.done {
				return
			}
			ld.onFetchFulfilled(load, sources[load.Name], "")
		}
		ls.linkIfReady() // fires immediately for an empty batch
	})
}

// EvalScript links and runs a script synchronously. Every dependency must
// already be registered or at least loaded; nothing is fetched and no
// continuation is queued, errors come straight back.
func (ld *Loader) EvalScript(source string) (unit.Value, error) {
	return ld.EvalScriptIn(source, nil)
}

// EvalScriptIn is EvalScript with an outer environment the script can read,
// and into which its own bindings are merged afterwards (the REPL's session
// scope).
func (ld *Loader) EvalScriptIn(source string, outer *unit.Environment) (unit.Value, error) {
	body, err := syntax.Parse(source)
	if err != nil {
		return nil, err
	}

	load := newLoad("")
	load.Source = source
	load.Body = body
	load.Edges = body.Edges()
	load.Deps = make(map[string]string)
	for _, edge := range load.Edges {
		if edge.Request == "" {
			continue
		}
		if _, seen := load.Deps[edge.Request]; seen {
			continue
		}
		dep, err := ld.startLoad(edge.Request, nil, true)
		if err != nil {
			return nil, err
		}
		load.Deps[edge.Request] = dep.Name
		load.DepOrder = append(load.DepOrder, edge.Request)
	}
	load.Status = LoadLoaded

	ls := newLinkSet(ld, nil, nil)
	ls.sync = true
	ls.seeds = append(ls.seeds, load)
	ls.addLoad(load)
	if ls.failErr != nil {
		return nil, ls.failErr
	}
	if ls.loadingCount > 0 {
		for _, member := range ls.loads {
			if member.Status == LoadLoading {
				return nil, &NotLoadedError{Name: member.describe()}
			}
		}
	}
	if err := ld.link(ls); err != nil {
		ls.fail(err)
		return nil, err
	}
	ls.done = true
	for _, member := range ls.loads {
		member.detach(ls)
	}

	u := load.Unit
	if outer != nil {
		u.Env.Outer = outer
	}
	var last unit.Value = unit.NIL
	u.Init = func(target *unit.Unit) error {
		v, err := ld.evalBody(target)
		if err != nil {
			return err
		}
		last = v
		return nil
	}
	if err := ld.ensureEvaluated(u); err != nil {
		return nil, err
	}
	if outer != nil {
		for name, b := range u.Env.Bindings {
			if !b.Meta.IsImport {
				outer.Bindings[name] = b
			}
		}
	}
	return last, nil
}

func (ld *Loader) deliverFailure(onFailure func(error), err error) {
	if onFailure == nil {
		return
	}
	ld.queue.push(func() { onFailure(err) })
}
