package syntax

import (
	"fmt"
	"strconv"

	"lode/internal/unit"
)

// Error is a parse failure. The pipeline treats it as the syntax error class:
// it fails the Load that was being parsed.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("syntax error: line %d: %s", e.Line, e.Msg)
}

// Parse is the entry point the loader uses. It returns the first error when
// the source is malformed.
func Parse(src string) (*Program, error) {
	p := NewParser(NewLexer(src))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, errs[0]
	}
	return program, nil
}

type Parser struct {
	l *Lexer

	curToken  Token
	peekToken Token

	errors []*Error
}

func NewParser(l *Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) Errors() []*Error { return p.errors }

func (p *Parser) ParseProgram() *Program {
	program := &Program{}
	for p.curToken.Type != EOF {
		if p.curToken.Type == NEWLINE {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			program.Stmts = append(program.Stmts, stmt)
		}
		p.finishLine()
	}
	return program
}

func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case IMPORT:
		return p.parseImport()
	case MODULE:
		return p.parseModuleBind()
	case EXPORT:
		return p.parseExport()
	case LET:
		return p.parseLet(false)
	case EMIT:
		line := p.curToken.Line
		p.nextToken()
		value := p.parseExpr()
		if value == nil {
			return nil
		}
		return &EmitStmt{Line: line, Value: value}
	default:
		p.errorf("unexpected token %q at start of statement", p.curToken.Literal)
		return nil
	}
}

// import "m" | import d from "m" | import {a, b as c} from "m"
func (p *Parser) parseImport() Stmt {
	line := p.curToken.Line
	p.nextToken()

	switch p.curToken.Type {
	case STRING:
		request := p.curToken.Literal
		p.nextToken()
		return &DeclStmt{Line: line, Declared: []unit.Edge{{Request: request}}}

	case IDENT:
		local := p.curToken.Literal
		p.nextToken()
		request, ok := p.parseFromClause()
		if !ok {
			return nil
		}
		return &DeclStmt{Line: line, Declared: []unit.Edge{{
			Request:  request,
			Imported: unit.ImportRef{Kind: unit.ImportName, Name: unit.DefaultName},
			Local:    local,
		}}}

	case LBRACE:
		specs, ok := p.parseSpecList()
		if !ok {
			return nil
		}
		request, ok := p.parseFromClause()
		if !ok {
			return nil
		}
		edges := make([]unit.Edge, 0, len(specs))
		for _, s := range specs {
			edges = append(edges, unit.Edge{
				Request:  request,
				Imported: unit.ImportRef{Kind: unit.ImportName, Name: s.name},
				Local:    s.alias,
			})
		}
		return &DeclStmt{Line: line, Declared: edges}

	default:
		p.errorf("expected unit name, identifier or '{' after import, got %q", p.curToken.Literal)
		return nil
	}
}

// module ns from "m"
func (p *Parser) parseModuleBind() Stmt {
	line := p.curToken.Line
	p.nextToken()
	if p.curToken.Type != IDENT {
		p.errorf("expected identifier after module, got %q", p.curToken.Literal)
		return nil
	}
	local := p.curToken.Literal
	p.nextToken()
	request, ok := p.parseFromClause()
	if !ok {
		return nil
	}
	return &DeclStmt{Line: line, Declared: []unit.Edge{{
		Request:  request,
		Imported: unit.ImportRef{Kind: unit.ImportUnit},
		Local:    local,
	}}}
}

// export * from "m" | export {..} [from "m"] | export let x = e | export default e
func (p *Parser) parseExport() Stmt {
	line := p.curToken.Line
	p.nextToken()

	switch p.curToken.Type {
	case STAR:
		p.nextToken()
		request, ok := p.parseFromClause()
		if !ok {
			return nil
		}
		return &DeclStmt{Line: line, Declared: []unit.Edge{{
			Request:  request,
			Imported: unit.ImportRef{Kind: unit.ImportAll},
			Exported: unit.ExportRef{Kind: unit.ExportAll},
		}}}

	case LBRACE:
		specs, ok := p.parseSpecList()
		if !ok {
			return nil
		}
		if p.curToken.Type == FROM {
			request, ok := p.parseFromClause()
			if !ok {
				return nil
			}
			edges := make([]unit.Edge, 0, len(specs))
			for _, s := range specs {
				edges = append(edges, unit.Edge{
					Request:  request,
					Imported: unit.ImportRef{Kind: unit.ImportName, Name: s.name},
					Exported: unit.ExportRef{Kind: unit.ExportName, Name: s.alias},
				})
			}
			return &DeclStmt{Line: line, Declared: edges}
		}
		edges := make([]unit.Edge, 0, len(specs))
		for _, s := range specs {
			edges = append(edges, unit.Edge{
				Local:    s.name,
				Exported: unit.ExportRef{Kind: unit.ExportName, Name: s.alias},
			})
		}
		return &DeclStmt{Line: line, Declared: edges}

	case LET:
		return p.parseLet(true)

	case DEFAULT:
		p.nextToken()
		value := p.parseExpr()
		if value == nil {
			return nil
		}
		return &DefaultStmt{Line: line, Value: value}

	default:
		p.errorf("expected '*', '{', let or default after export, got %q", p.curToken.Literal)
		return nil
	}
}

func (p *Parser) parseLet(export bool) Stmt {
	line := p.curToken.Line
	p.nextToken()
	if p.curToken.Type != IDENT {
		p.errorf("expected identifier after let, got %q", p.curToken.Literal)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	if p.curToken.Type != ASSIGN {
		p.errorf("expected '=' after let %s, got %q", name, p.curToken.Literal)
		return nil
	}
	p.nextToken()
	value := p.parseExpr()
	if value == nil {
		return nil
	}
	return &LetStmt{Line: line, Name: name, Export: export, Value: value}
}

type spec struct {
	name  string
	alias string
}

// parseSpecList parses "{a, b as c}" with the cursor on '{'.
func (p *Parser) parseSpecList() ([]spec, bool) {
	p.nextToken() // consume '{'
	var specs []spec
	for {
		if p.curToken.Type != IDENT && p.curToken.Type != DEFAULT {
			p.errorf("expected name in export/import list, got %q", p.curToken.Literal)
			return nil, false
		}
		s := spec{name: p.curToken.Literal, alias: p.curToken.Literal}
		p.nextToken()
		if p.curToken.Type == AS {
			p.nextToken()
			if p.curToken.Type != IDENT {
				p.errorf("expected identifier after as, got %q", p.curToken.Literal)
				return nil, false
			}
			s.alias = p.curToken.Literal
			p.nextToken()
		}
		specs = append(specs, s)
		if p.curToken.Type == COMMA {
			p.nextToken()
			continue
		}
		break
	}
	if p.curToken.Type != RBRACE {
		p.errorf("expected '}' to close list, got %q", p.curToken.Literal)
		return nil, false
	}
	p.nextToken()
	return specs, true
}

func (p *Parser) parseFromClause() (string, bool) {
	if p.curToken.Type != FROM {
		p.errorf("expected from, got %q", p.curToken.Literal)
		return "", false
	}
	p.nextToken()
	if p.curToken.Type != STRING {
		p.errorf("expected unit name string after from, got %q", p.curToken.Literal)
		return "", false
	}
	request := p.curToken.Literal
	p.nextToken()
	return request, true
}

func (p *Parser) parseExpr() Expr {
	left := p.parsePrimary()
	if left == nil {
		return nil
	}
	for p.curToken.Type == PLUS {
		line := p.curToken.Line
		p.nextToken()
		right := p.parsePrimary()
		if right == nil {
			return nil
		}
		left = &Binary{Line: line, Op: "+", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parsePrimary() Expr {
	switch p.curToken.Type {
	case STRING:
		e := &StringLit{Value: p.curToken.Literal}
		p.nextToken()
		return e
	case INT:
		n, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
		if err != nil {
			p.errorf("bad integer literal %q", p.curToken.Literal)
			return nil
		}
		p.nextToken()
		return &IntLit{Value: n}
	case IDENT:
		name := p.curToken.Literal
		line := p.curToken.Line
		p.nextToken()
		if p.curToken.Type == DOT {
			p.nextToken()
			if p.curToken.Type != IDENT && p.curToken.Type != DEFAULT {
				p.errorf("expected member name after '.', got %q", p.curToken.Literal)
				return nil
			}
			sel := &Selector{Line: line, X: name, Name: p.curToken.Literal}
			p.nextToken()
			return sel
		}
		return &Ident{Line: line, Name: name}
	default:
		p.errorf("expected expression, got %q", p.curToken.Literal)
		return nil
	}
}

// finishLine advances to the next statement, reporting trailing garbage once.
func (p *Parser) finishLine() {
	if p.curToken.Type != NEWLINE && p.curToken.Type != EOF {
		p.errorf("unexpected %q after statement", p.curToken.Literal)
		for p.curToken.Type != NEWLINE && p.curToken.Type != EOF {
			p.nextToken()
		}
	}
	if p.curToken.Type == NEWLINE {
		p.nextToken()
	}
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, &Error{Line: p.curToken.Line, Msg: fmt.Sprintf(format, args...)})
}
