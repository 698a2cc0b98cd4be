package syntax

import "lode/internal/unit"

// Program is one parsed unit body: a statement list plus the import/export
// edges declared in it.
type Program struct {
	Stmts []Stmt
}

// Edges collects every declared edge in source order.
func (p *Program) Edges() []unit.Edge {
	var edges []unit.Edge
	for _, s := range p.Stmts {
		edges = append(edges, s.edges()...)
	}
	return edges
}

type Stmt interface {
	edges() []unit.Edge
}

// DeclStmt is any pure import/export declaration line.
type DeclStmt struct {
	Line     int
	Declared []unit.Edge
}

func (s *DeclStmt) edges() []unit.Edge { return s.Declared }

// LetStmt binds a local name; with Export set it is also exported under it.
type LetStmt struct {
	Line   int
	Name   string
	Export bool
	Value  Expr
}

func (s *LetStmt) edges() []unit.Edge {
	if !s.Export {
		return nil
	}
	return []unit.Edge{{
		Local:    s.Name,
		Exported: unit.ExportRef{Kind: unit.ExportName, Name: s.Name},
	}}
}

// DefaultStmt is "export default <expr>".
type DefaultStmt struct {
	Line  int
	Value Expr
}

func (s *DefaultStmt) edges() []unit.Edge {
	return []unit.Edge{{
		Local:    unit.DefaultLocal,
		Exported: unit.ExportRef{Kind: unit.ExportName, Name: unit.DefaultName},
	}}
}

// EmitStmt evaluates an expression for its observable side effect.
type EmitStmt struct {
	Line  int
	Value Expr
}

func (s *EmitStmt) edges() []unit.Edge { return nil }

type Expr interface {
	exprNode()
}

type StringLit struct {
	Value string
}

type IntLit struct {
	Value int64
}

type Ident struct {
	Line int
	Name string
}

// Selector reads a member of a namespace binding: ns.name.
type Selector struct {
	Line int
	X    string
	Name string
}

type Binary struct {
	Line        int
	Op          string
	Left, Right Expr
}

func (*StringLit) exprNode() {}
func (*IntLit) exprNode()    {}
func (*Ident) exprNode()     {}
func (*Selector) exprNode()  {}
func (*Binary) exprNode()    {}
