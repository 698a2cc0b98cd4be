package loader

import (
	"errors"
	"testing"

	"lode/internal/unit"
)

func traceStrings(ld *Loader) []string {
	var out []string
	for _, v := range ld.Trace() {
		out = append(out, v.Inspect())
	}
	return out
}

func TestEvaluateExactlyOnce(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"m":  "emit \"m ran\"\nexport let x = 1\n",
		"r1": "import {x} from \"m\"\nexport let a = x\n",
		"r2": "import {x} from \"m\"\nexport let b = x\n",
	})
	ld := New(h)

	mustImport(t, ld, "r1")
	mustImport(t, ld, "r2")
	if _, err := ld.Registry().Get("m"); err != nil {
		t.Fatalf("get: %v", err)
	}

	got := traceStrings(ld)
	if len(got) != 1 || got[0] != "m ran" {
		t.Errorf("trace = %v, want exactly one m ran", got)
	}
}

func TestEvaluateDependenciesFirst(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"a":    "emit \"a\"\nexport let x = 1\n",
		"b":    "emit \"b\"\nexport let y = 2\n",
		"main": "import {x} from \"a\"\nimport {y} from \"b\"\nemit \"main\"\n",
	})
	ld := New(h)

	mustImport(t, ld, "main")
	got := traceStrings(ld)
	want := []string{"a", "b", "main"}
	if len(got) != len(want) {
		t.Fatalf("trace = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trace = %v, want %v", got, want)
		}
	}
}

func TestEvaluateLazyUntilDemanded(t *testing.T) {
	ld := New(newScriptedHooks(nil))
	var done bool
	ld.Define("m", "emit \"m ran\"\nexport let x = 1\n", func() { done = true }, func(err error) { t.Fatalf("define: %v", err) })
	ld.Drain()
	if !done {
		t.Fatal("define did not complete")
	}
	if len(ld.Trace()) != 0 {
		t.Fatal("defining a unit evaluated it")
	}

	if _, err := ld.Registry().Get("m"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := traceStrings(ld); len(got) != 1 || got[0] != "m ran" {
		t.Errorf("trace = %v, want one m ran", got)
	}
}

func TestEvaluateFailureSticksAndSiblingsResume(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"bad": "export let boom = nope\n",
		"a":   "import \"bad\"\nexport let aye = 1\n",
	})
	ld := New(h)

	err := importErr(t, ld, "a")
	var eerr *EvalError
	if !errors.As(err, &eerr) {
		t.Fatalf("error = %v, want *EvalError", err)
	}
	if eerr.Unit != "bad" {
		t.Errorf("failing unit = %q, want bad", eerr.Unit)
	}

	// both units linked; the bad one stays evaluated, a later demand runs
	// only what never got its turn
	u, err := ld.Registry().Get("a")
	if err != nil {
		t.Fatalf("get after failure: %v", err)
	}
	if got := exportValue(t, u, "aye"); got != "1" {
		t.Errorf("aye = %s, want 1", got)
	}

	// the failed initializer does not rerun
	if _, err := ld.Registry().Get("bad"); err != nil {
		t.Errorf("get bad after failure: %v", err)
	}
}

func TestEvaluateCycleRunsBothSides(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"a": "import {bee} from \"b\"\nemit \"a\"\nexport let aye = bee + 1\n",
		"b": "import {aye} from \"a\"\nemit \"b\"\nexport let bee = 2\n",
	})
	ld := New(h)

	mustImport(t, ld, "a")
	got := traceStrings(ld)
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("trace = %v, want [b a]", got)
	}

	// demanding the other side later reruns nothing
	if _, err := ld.Registry().Get("b"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(ld.Trace()) != 2 {
		t.Error("an already-evaluated unit ran again")
	}
}

func TestEvaluateUninitializedCycleRead(t *testing.T) {
	// b evaluates first and reads a's export before a's initializer ran
	h := newScriptedHooks(map[string]string{
		"a": "import {bee} from \"b\"\nexport let aye = 1\n",
		"b": "import {aye} from \"a\"\nexport let bee = aye + 1\n",
	})
	ld := New(h)

	err := importErr(t, ld, "a")
	var eerr *EvalError
	if !errors.As(err, &eerr) {
		t.Fatalf("error = %v, want *EvalError", err)
	}
	if eerr.Unit != "b" {
		t.Errorf("failing unit = %q, want b", eerr.Unit)
	}
}

func TestEmitRouting(t *testing.T) {
	h := newScriptedHooks(map[string]string{"m": "emit \"one\"\nemit \"two\"\nexport let x = 1\n"})
	ld := New(h)

	var seen []string
	ld.SetEmit(func(v unit.Value) { seen = append(seen, v.Inspect()) })
	mustImport(t, ld, "m")

	if len(seen) != 2 || seen[0] != "one" || seen[1] != "two" {
		t.Errorf("emitted = %v, want [one two]", seen)
	}
	if got := traceStrings(ld); len(got) != 2 {
		t.Errorf("trace = %v, want both emits recorded", got)
	}
}

func TestEvaluateSelectorErrors(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"dep":  "export let x = 1\n",
		"main": "module d from \"dep\"\nemit d.ghost\n",
	})
	ld := New(h)

	err := importErr(t, ld, "main")
	var eerr *EvalError
	if !errors.As(err, &eerr) {
		t.Fatalf("error = %v, want *EvalError", err)
	}
}

func TestEvaluateTypeMismatch(t *testing.T) {
	h := newScriptedHooks(map[string]string{"m": "emit 1 + \"x\"\n"})
	ld := New(h)

	err := importErr(t, ld, "m")
	var eerr *EvalError
	if !errors.As(err, &eerr) {
		t.Fatalf("error = %v, want *EvalError", err)
	}
}

func TestEvaluateDefaultExport(t *testing.T) {
	h := newScriptedHooks(map[string]string{
		"dep":  "export default 40 + 2\n",
		"main": "import answer from \"dep\"\nexport let out = answer\n",
	})
	ld := New(h)

	u := mustImport(t, ld, "main")
	if got := exportValue(t, u, "out"); got != "42" {
		t.Errorf("out = %s, want 42", got)
	}
}
