package loader

import (
	"testing"
	"time"

	"lode/internal/unit"
)

type channelHooks struct {
	Defaults
	cbs chan *FetchCallback
}

func (h *channelHooks) Fetch(req *Request, cb *FetchCallback) {
	h.cbs <- cb
}

func TestRunBlocksUntilFetchSettles(t *testing.T) {
	h := &channelHooks{cbs: make(chan *FetchCallback, 1)}
	ld := New(h)

	var got *unit.Unit
	ld.Import("m", func(u *unit.Unit) { got = u }, func(err error) { t.Errorf("import: %v", err) })

	go func() {
		cb := <-h.cbs
		time.Sleep(10 * time.Millisecond)
		cb.Fulfill("export let x = 1\n", "")
	}()

	ld.Run()
	if got == nil {
		t.Fatal("Run returned before the import completed")
	}
	if exportValue(t, got, "x") != "1" {
		t.Error("wrong unit delivered")
	}
}

func TestDrainDoesNotWaitForFetches(t *testing.T) {
	h := &channelHooks{cbs: make(chan *FetchCallback, 1)}
	ld := New(h)

	done := false
	ld.Import("m", func(*unit.Unit) { done = true }, func(error) { done = true })
	ld.Drain()

	if done {
		t.Fatal("import completed without a fetch settlement")
	}
	cb := <-h.cbs
	if err := cb.Fulfill("export let x = 1\n", ""); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	ld.Drain()
	if !done {
		t.Error("import still pending after the settlement drained")
	}
}
