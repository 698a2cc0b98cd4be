package loader

import (
	"fmt"
	"testing"

	"lode/internal/unit"
)

// scriptedHooks serves sources from a map and lets tests hold fetch
// callbacks, script rejections, or swap out individual hooks.
type scriptedHooks struct {
	Defaults

	sources map[string]string
	rejects map[string]error
	hold    map[string]bool
	held    map[string]*FetchCallback
	fetches []string

	normalizeFn   func(name string, referer *Referer) (Normalized, error)
	resolveFn     func(name string, metadata any) (Resolved, error)
	translateFn   func(req *Request, source string) (string, error)
	instantiateFn func(req *Request, source string) (*Instantiation, error)
}

func newScriptedHooks(sources map[string]string) *scriptedHooks {
	return &scriptedHooks{
		sources: sources,
		rejects: make(map[string]error),
		hold:    make(map[string]bool),
		held:    make(map[string]*FetchCallback),
	}
}

func (h *scriptedHooks) Normalize(name string, referer *Referer) (Normalized, error) {
	if h.normalizeFn != nil {
		return h.normalizeFn(name, referer)
	}
	return Normalized{Name: name}, nil
}

func (h *scriptedHooks) Resolve(name string, metadata any) (Resolved, error) {
	if h.resolveFn != nil {
		return h.resolveFn(name, metadata)
	}
	return Resolved{Address: name}, nil
}

func (h *scriptedHooks) Fetch(req *Request, cb *FetchCallback) {
	key := req.Name
	if key == "" {
		key = req.Address
	}
	h.fetches = append(h.fetches, key)
	if h.hold[key] {
		h.held[key] = cb
		return
	}
	if err, ok := h.rejects[key]; ok {
		cb.Reject(err)
		return
	}
	if src, ok := h.sources[key]; ok {
		cb.Fulfill(src, "")
		return
	}
	cb.Reject(fmt.Errorf("no source for %q", key))
}

func (h *scriptedHooks) Translate(req *Request, source string) (string, error) {
	if h.translateFn != nil {
		return h.translateFn(req, source)
	}
	return source, nil
}

func (h *scriptedHooks) Instantiate(req *Request, source string) (*Instantiation, error) {
	if h.instantiateFn != nil {
		return h.instantiateFn(req, source)
	}
	return nil, nil
}

func mustImport(t *testing.T, ld *Loader, name string) *unit.Unit {
	t.Helper()
	var got *unit.Unit
	var gotErr error
	ld.Import(name,
		func(u *unit.Unit) { got = u },
		func(err error) { gotErr = err })
	ld.Drain()
	if gotErr != nil {
		t.Fatalf("import %q: %v", name, gotErr)
	}
	if got == nil {
		t.Fatalf("import %q did not complete", name)
	}
	return got
}

func importErr(t *testing.T, ld *Loader, name string) error {
	t.Helper()
	var gotErr error
	done := false
	ld.Import(name,
		func(u *unit.Unit) { done = true },
		func(err error) { gotErr = err; done = true })
	ld.Drain()
	if !done {
		t.Fatalf("import %q did not complete", name)
	}
	if gotErr == nil {
		t.Fatalf("import %q: expected an error", name)
	}
	return gotErr
}

func exportValue(t *testing.T, u *unit.Unit, name string) string {
	t.Helper()
	b, ok := u.Exports[name]
	if !ok {
		t.Fatalf("unit %q has no export %q", u.Name, name)
	}
	if b.Value == nil {
		t.Fatalf("export %q of %q is uninitialized", name, u.Name)
	}
	return b.Value.Inspect()
}
