package loader

import "log/slog"

// LinkSet tracks the dependency closure of one top-level request. It grows as
// loading discovers edges and links the whole closure once its loadingCount
// reaches zero. Success and failure continuations fire at most once each,
// always as queue tasks, never on the triggering caller's stack.
type LinkSet struct {
	ld *Loader

	loads   []*Load // insertion order, seeds first
	members map[*Load]bool
	seeds   []*Load

	loadingCount int
	done         bool

	// sync sets record the failure instead of queueing a continuation;
	// synchronous entry points report errors straight to their caller.
	sync    bool
	failErr error

	onSuccess func()
	onFailure func(error)
}

func newLinkSet(ld *Loader, onSuccess func(), onFailure func(error)) *LinkSet {
	return &LinkSet{
		ld:        ld,
		members:   make(map[*Load]bool),
		onSuccess: onSuccess,
		onFailure: onFailure,
	}
}

// addSeed adds an entry load and triggers linking immediately when the whole
// closure is already loaded (registry hits, pre-loaded members).
func (ls *LinkSet) addSeed(load *Load) {
	ls.seeds = append(ls.seeds, load)
	ls.addLoad(load)
	ls.linkIfReady()
}

// addLoad attaches a load to this set. A failed load fails the whole set. An
// already-loaded member drags in its unresolved dependencies so the set's
// closure stays complete.
func (ls *LinkSet) addLoad(load *Load) {
	if ls.done {
		return
	}
	if load.Status == LoadFailed {
		ls.fail(load.Err)
		return
	}
	if ls.members[load] {
		return
	}
	ls.members[load] = true
	ls.loads = append(ls.loads, load)
	load.attach(ls)

	switch load.Status {
	case LoadLoading:
		ls.loadingCount++
	case LoadLoaded:
		for _, req := range load.DepOrder {
			full := load.Deps[req]
			if _, ok := ls.ld.registry.lookup(full); ok {
				continue
			}
			dep, ok := ls.ld.inflight[full]
			if !ok {
				ls.fail(&LinkError{Unit: load.describe(), Msg: "dependency " + full + " is no longer in flight"})
				return
			}
			ls.addLoad(dep)
			if ls.done {
				return
			}
		}
	case LoadLinked:
		// registry-backed synthetic load; nothing to wait for
	}
}

// onLoadReady is the notification that one member finished loading.
func (ls *LinkSet) onLoadReady(load *Load) {
	if ls.done {
		return
	}
	ls.loadingCount--
	ls.linkIfReady()
}

func (ls *LinkSet) linkIfReady() {
	if ls.done || ls.sync || ls.loadingCount > 0 {
		return
	}
	if err := ls.ld.link(ls); err != nil {
		ls.fail(err)
		return
	}
	ls.done = true
	slog.Debug("link set committed", slog.Int("members", len(ls.loads)))

	for _, load := range ls.loads {
		load.detach(ls)
	}
	if ls.onSuccess != nil {
		ls.ld.queue.push(ls.onSuccess)
	}
}

// fail detaches this set from every member, drops members nothing else
// references, and schedules the failure continuation exactly once with the
// original error. Sibling LinkSets sharing members are unaffected.
func (ls *LinkSet) fail(err error) {
	if ls.done {
		return
	}
	ls.done = true
	slog.Debug("link set failed", slog.Any("error", err))

	for _, load := range ls.loads {
		load.detach(ls)
		ls.ld.dropIfOrphaned(load)
	}
	if ls.sync {
		ls.failErr = err
		return
	}
	if ls.onFailure != nil {
		cb := ls.onFailure
		ls.ld.queue.push(func() { cb(err) })
	}
}
