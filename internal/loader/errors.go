package loader

import "fmt"

// The pipeline attributes every failure to one class at its point of origin
// and delivers the original value, never wrapped, to failure continuations.

// HookError reports a hook that misbehaved: returned a malformed result,
// returned an error, or violated its calling contract.
type HookError struct {
	Hook string // normalize, resolve, fetch, translate, instantiate
	Name string // unit name or address the hook was working on
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook failed for %q: %v", e.Hook, e.Name, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// LinkError reports a missing export or a name collision at link time.
type LinkError struct {
	Unit string
	Msg  string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link error in %q: %s", e.Unit, e.Msg)
}

// CycleError reports a re-export chain that reaches back into itself, either
// while resolving one name or while computing an export-star closure.
type CycleError struct {
	Unit string
	Name string // "" for an export-star cycle
}

func (e *CycleError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("cycle error: export * closure of %q depends on itself", e.Unit)
	}
	return fmt.Sprintf("cycle error: resolving %q through %q recurs into its own resolution", e.Name, e.Unit)
}

// DuplicateExportError reports one name arriving through two export paths.
type DuplicateExportError struct {
	Unit string
	Name string
}

func (e *DuplicateExportError) Error() string {
	return fmt.Sprintf("duplicate export %q in %q", e.Name, e.Unit)
}

// EvalError reports a unit initializer that failed.
type EvalError struct {
	Unit string
	Err  error
}

func (e *EvalError) Error() string {
	name := e.Unit
	if name == "" {
		name = "script"
	}
	return fmt.Sprintf("evaluation of %s failed: %v", name, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// NotLoadedError is returned by synchronous entry points when a dependency is
// neither registered nor already loaded.
type NotLoadedError struct {
	Name string
}

func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("unit %q is not loaded", e.Name)
}

// CallbackError reports a fetch hook settling its callback more than once.
// The first settlement stands; the violation is surfaced to the hook.
type CallbackError struct {
	Name string
	Msg  string
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("fetch callback protocol violation for %q: %s", e.Name, e.Msg)
}
