package loader

import (
	"errors"
	"log/slog"
	"sync"

	"lode/internal/unit"
)

// Referer identifies the unit on whose behalf a name is being requested.
// It is nil for top-level requests.
type Referer struct {
	Name    string
	Address string
}

// Normalized is the result of the normalize hook.
type Normalized struct {
	Name     string // full unit name
	Metadata any    // opaque, handed back to resolve
}

// Resolved is the result of the resolve hook.
type Resolved struct {
	Address string
}

// Request describes one load to the fetch, translate and instantiate hooks.
type Request struct {
	Name     string // full name, "" for scripts
	Address  string
	Metadata any
}

// Instantiation is a link override. Exactly one form is used: a fully formed
// unit, or a factory whose Execute runs during the link phase with the
// resolved dependency units.
type Instantiation struct {
	Unit    *unit.Unit
	Imports []string
	Execute func(deps ...*unit.Unit) (*unit.Unit, error)
}

// Hooks is the pluggable strategy surface the pipeline calls through. All
// hooks except Fetch must complete synchronously. Fetch settles its callback
// exactly once, now or later, from any goroutine.
type Hooks interface {
	Normalize(name string, referer *Referer) (Normalized, error)
	Resolve(name string, metadata any) (Resolved, error)
	Fetch(req *Request, cb *FetchCallback)
	Translate(req *Request, source string) (string, error)
	// Instantiate may return (nil, nil) to request default parsing. It is
	// consulted for named units only.
	Instantiate(req *Request, source string) (*Instantiation, error)
}

// Defaults is the fallback Hooks implementation: identity normalize and
// resolve, identity translate, default parsing, and a fetch that always
// rejects. Embed it to override selectively.
type Defaults struct{}

func (Defaults) Normalize(name string, referer *Referer) (Normalized, error) {
	return Normalized{Name: name}, nil
}

func (Defaults) Resolve(name string, metadata any) (Resolved, error) {
	return Resolved{Address: name}, nil
}

func (Defaults) Fetch(req *Request, cb *FetchCallback) {
	cb.Reject(&HookError{Hook: "fetch", Name: req.Name, Err: errors.New("no fetch hook configured")})
}

func (Defaults) Translate(req *Request, source string) (string, error) {
	return source, nil
}

func (Defaults) Instantiate(req *Request, source string) (*Instantiation, error) {
	return nil, nil
}

// FetchCallback is the one-shot settle latch handed to the fetch hook.
// Fulfill and Reject together may fire at most once; any later call returns a
// *CallbackError and changes nothing.
type FetchCallback struct {
	ld   *Loader
	load *Load

	mu      sync.Mutex
	settled bool
}

// Fulfill delivers the fetched source and, optionally, the actual address it
// came from. The downstream pipeline steps run on the loader's task queue,
// never on the hook's own stack.
func (cb *FetchCallback) Fulfill(source, address string) error {
	return cb.settle("fulfill", func() {
		cb.ld.onFetchFulfilled(cb.load, source, address)
	})
}

// Reject fails the load with the hook's error.
func (cb *FetchCallback) Reject(err error) error {
	return cb.settle("reject", func() {
		cb.ld.onFetchRejected(cb.load, err)
	})
}

func (cb *FetchCallback) settle(op string, task func()) error {
	cb.mu.Lock()
	if cb.settled {
		cb.mu.Unlock()
		perr := &CallbackError{Name: cb.load.describe(), Msg: op + " after the callback was already settled"}
		slog.Error("fetch hook settled its callback twice",
			slog.String("unit", cb.load.describe()),
			slog.String("op", op))
		return perr
	}
	cb.settled = true
	cb.mu.Unlock()

	cb.ld.queue.settleAsync(task)
	return nil
}
