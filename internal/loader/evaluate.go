package loader

import (
	"fmt"
	"log/slog"

	"lode/internal/syntax"
	"lode/internal/unit"
)

// ensureEvaluated runs the initializer of every unit reachable from u that
// has not run yet, dependencies first. The walk is depth-first, left to
// right, post-order, and it deliberately re-walks units that already
// evaluated: in a cyclic graph an earlier walk may have run one side while
// the other's turn never came, and a later demand must still find it. The
// evaluated set is realm-wide and checked per unit, so nested re-entrant
// demands from inside an initializer are safe.
func (ld *Loader) ensureEvaluated(u *unit.Unit) error {
	var schedule []*unit.Unit
	seen := make(map[*unit.Unit]bool)
	var walk func(v *unit.Unit)
	walk = func(v *unit.Unit) {
		if seen[v] {
			return
		}
		seen[v] = true
		for _, dep := range v.Deps {
			walk(dep)
		}
		schedule = append(schedule, v)
	}
	walk(u)

	for _, v := range schedule {
		if ld.evaluated[v] {
			continue
		}
		// marked before running: a throwing unit stays evaluated, and
		// re-entrant demands from inside the initializer terminate
		ld.evaluated[v] = true
		if err := ld.runInit(v); err != nil {
			return err
		}
	}
	return nil
}

func (ld *Loader) runInit(u *unit.Unit) error {
	if u.Init == nil {
		return nil
	}
	slog.Debug("evaluating unit", slog.String("unit", u.Name))
	return u.Init(u)
}

// initializerFor builds the one-time initializer for a parsed unit body.
func (ld *Loader) initializerFor(u *unit.Unit) func(*unit.Unit) error {
	return func(target *unit.Unit) error {
		_, err := ld.evalBody(target)
		return err
	}
}

func (ld *Loader) evalBody(u *unit.Unit) (unit.Value, error) {
	body, ok := u.Body.(*syntax.Program)
	if !ok || body == nil {
		return unit.NIL, nil
	}
	var last unit.Value = unit.NIL
	for _, stmt := range body.Stmts {
		v, err := ld.evalStmt(u, stmt)
		if err != nil {
			return nil, &EvalError{Unit: u.Name, Err: err}
		}
		if v != nil {
			last = v
		}
	}
	return last, nil
}

func (ld *Loader) evalStmt(u *unit.Unit, stmt syntax.Stmt) (unit.Value, error) {
	switch s := stmt.(type) {
	case *syntax.LetStmt:
		v, err := ld.evalExpr(u, s.Value)
		if err != nil {
			return nil, err
		}
		u.Env.Define(s.Name, v)
		return v, nil
	case *syntax.DefaultStmt:
		v, err := ld.evalExpr(u, s.Value)
		if err != nil {
			return nil, err
		}
		u.Env.Define(unit.DefaultLocal, v)
		return v, nil
	case *syntax.EmitStmt:
		v, err := ld.evalExpr(u, s.Value)
		if err != nil {
			return nil, err
		}
		ld.emit(v)
		return v, nil
	case *syntax.DeclStmt:
		return nil, nil // declarations were consumed at link time
	default:
		return nil, fmt.Errorf("unknown statement %T", stmt)
	}
}

func (ld *Loader) evalExpr(u *unit.Unit, expr syntax.Expr) (unit.Value, error) {
	switch e := expr.(type) {
	case *syntax.StringLit:
		return &unit.String{Value: e.Value}, nil
	case *syntax.IntLit:
		return &unit.Integer{Value: e.Value}, nil
	case *syntax.Ident:
		b, ok := u.Env.Get(e.Name)
		if !ok {
			return nil, fmt.Errorf("line %d: identifier %q is not defined", e.Line, e.Name)
		}
		if b.Value == nil {
			return nil, fmt.Errorf("line %d: binding %q is not yet initialized", e.Line, e.Name)
		}
		return b.Value, nil
	case *syntax.Selector:
		b, ok := u.Env.Get(e.X)
		if !ok {
			return nil, fmt.Errorf("line %d: identifier %q is not defined", e.Line, e.X)
		}
		ns, ok := b.Value.(*unit.Namespace)
		if !ok {
			return nil, fmt.Errorf("line %d: %q is not a unit namespace", e.Line, e.X)
		}
		v, ok := ns.Member(e.Name)
		if !ok {
			return nil, fmt.Errorf("line %d: unit %q has no export %q", e.Line, ns.Unit.Name, e.Name)
		}
		if v == nil {
			return nil, fmt.Errorf("line %d: export %q of %q is not yet initialized", e.Line, e.Name, ns.Unit.Name)
		}
		return v, nil
	case *syntax.Binary:
		left, err := ld.evalExpr(u, e.Left)
		if err != nil {
			return nil, err
		}
		right, err := ld.evalExpr(u, e.Right)
		if err != nil {
			return nil, err
		}
		switch l := left.(type) {
		case *unit.Integer:
			if r, ok := right.(*unit.Integer); ok {
				return &unit.Integer{Value: l.Value + r.Value}, nil
			}
		case *unit.String:
			if r, ok := right.(*unit.String); ok {
				return &unit.String{Value: l.Value + r.Value}, nil
			}
		}
		return nil, fmt.Errorf("line %d: cannot add %s and %s", e.Line, left.Type(), right.Type())
	default:
		return nil, fmt.Errorf("unknown expression %T", expr)
	}
}
