package loader

import (
	"errors"
	"testing"

	"lode/internal/unit"
)

func TestLinkCycleWithLiveBindings(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"a": "import {bee} from \"b\"\nexport let aye = bee + 1\n",
		"b": "import {aye} from \"a\"\nexport let bee = 2\n",
	})
	ld := New(h)

	u := mustImport(t, ld, "a")
	if got := exportValue(t, u, "aye"); got != "3" {
		t.Errorf("aye = %s, want 3", got)
	}
	if !ld.Registry().Has("a") || !ld.Registry().Has("b") {
		t.Error("cycle members missing from the registry")
	}
}

func TestLinkExportStarClosure(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"b":    "export let x = 1\nexport let y = 2\n",
		"a":    "export * from \"b\"\nexport let z = 3\n",
		"main": "import {x, y, z} from \"a\"\nexport let sum = x + y + z\n",
	})
	ld := New(h)

	u := mustImport(t, ld, "main")
	if got := exportValue(t, u, "sum"); got != "6" {
		t.Errorf("sum = %s, want 6", got)
	}
}

func TestLinkExportStarOverRegisteredUnit(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"b":    "export let x = 1\n",
		"a":    "export * from \"b\"\n",
		"main": "import {x} from \"a\"\nexport let out = x\n",
	})
	ld := New(h)

	mustImport(t, ld, "b")
	u := mustImport(t, ld, "main")
	if got := exportValue(t, u, "out"); got != "1" {
		t.Errorf("out = %s, want 1", got)
	}
}

func TestLinkExportStarCycle(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"a": "export * from \"b\"\n",
		"b": "export * from \"a\"\n",
	})
	ld := New(h)

	err := importErr(t, ld, "a")
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *CycleError", err)
	}
	if cerr.Name != "" {
		t.Errorf("cycle name = %q, want empty for a star cycle", cerr.Name)
	}
}

func TestLinkReexportCycle(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"a": "export {x} from \"b\"\n",
		"b": "export {x} from \"a\"\n",
	})
	ld := New(h)

	err := importErr(t, ld, "a")
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *CycleError", err)
	}
	if cerr.Name != "x" {
		t.Errorf("cycle name = %q, want x", cerr.Name)
	}
}

func TestLinkDuplicateExplicitAndStar(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"b": "export let x = 2\n",
		"a": "export let x = 1\nexport * from \"b\"\n",
	})
	ld := New(h)

	err := importErr(t, ld, "a")
	var derr *DuplicateExportError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want *DuplicateExportError", err)
	}
	if derr.Name != "x" {
		t.Errorf("duplicate name = %q, want x", derr.Name)
	}
}

func TestLinkDuplicateFromTwoStars(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"b": "export let x = 1\n",
		"c": "export let x = 2\n",
		"a": "export * from \"b\"\nexport * from \"c\"\n",
	})
	ld := New(h)

	err := importErr(t, ld, "a")
	var derr *DuplicateExportError
	if !errors.As(err, &derr) || derr.Name != "x" {
		t.Fatalf("error = %v, want a duplicate of x", err)
	}
}

func TestLinkExportStarOverFactoryUnit(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"fac":  "ignored",
		"a":    "export * from \"fac\"\n",
		"main": "import {flag} from \"a\"\nexport let out = flag\n",
	})
	h.instantiateFn = func(req *Request, source string) (*Instantiation, error) {
		if req.Name != "fac" {
			return nil, nil
		}
		return &Instantiation{
			Imports: nil,
			Execute: func(deps ...*unit.Unit) (*unit.Unit, error) {
				u := unit.New("")
				u.Export("flag", &unit.Binding{Value: &unit.Integer{Value: 1}})
				return u, nil
			},
		}, nil
	}
	ld := New(h)

	u := mustImport(t, ld, "main")
	if got := exportValue(t, u, "out"); got != "1" {
		t.Errorf("out = %s, want 1", got)
	}
}

func TestLinkMissingExport(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"dep":  "export let x = 1\n",
		"main": "import {ghost} from \"dep\"\n",
	})
	ld := New(h)

	err := importErr(t, ld, "main")
	var lerr *LinkError
	if !errors.As(err, &lerr) {
		t.Fatalf("error = %v, want *LinkError", err)
	}
}

func TestLinkFailureCommitsNothing(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"dep":  "export let x = 1\n",
		"main": "import {ghost} from \"dep\"\n",
	})
	ld := New(h)

	importErr(t, ld, "main")

	if ld.Registry().Has("dep") || ld.Registry().Has("main") {
		t.Error("a failed link reached the registry")
	}
	if ld.InFlight("dep") || ld.InFlight("main") {
		t.Error("a failed link left loads in flight")
	}

	// every member is loadable again afterwards
	u := mustImport(t, ld, "dep")
	if got := exportValue(t, u, "x"); got != "1" {
		t.Errorf("x = %s, want 1", got)
	}
}

func TestLinkSharedLoadSurvivesSiblingFailure(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"shared": "export let x = 1\n",
		"bad":    "import {ghost} from \"shared\"\n",
		"good":   "import {x} from \"shared\"\nexport let out = x\n",
	})
	h.hold["shared"] = true
	ld := New(h)

	var goodUnit *unit.Unit
	var badErr error
	ld.Import("good", func(u *unit.Unit) { goodUnit = u }, func(err error) { t.Errorf("good: %v", err) })
	ld.Import("bad", func(u *unit.Unit) { t.Error("bad import succeeded") }, func(err error) { badErr = err })
	ld.Drain()

	if err := h.held["shared"].Fulfill(h.sources["shared"], ""); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	ld.Drain()

	if badErr == nil {
		t.Error("the bad import did not fail")
	}
	if goodUnit == nil {
		t.Fatal("the good import did not complete")
	}
	if got := exportValue(t, goodUnit, "out"); got != "1" {
		t.Errorf("out = %s, want 1", got)
	}
}
