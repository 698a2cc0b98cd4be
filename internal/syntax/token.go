package syntax

type TokenType string

const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"
	NEWLINE = "NEWLINE"

	IDENT  = "IDENT"
	INT    = "INT"
	STRING = "STRING"

	ASSIGN = "="
	PLUS   = "+"
	STAR   = "*"
	COMMA  = ","
	DOT    = "."
	LBRACE = "{"
	RBRACE = "}"

	IMPORT  = "IMPORT"
	MODULE  = "MODULE"
	EXPORT  = "EXPORT"
	FROM    = "FROM"
	AS      = "AS"
	LET     = "LET"
	EMIT    = "EMIT"
	DEFAULT = "DEFAULT"
)

type Token struct {
	Type    TokenType
	Literal string
	Line    int
}

var keywords = map[string]TokenType{
	"import":  IMPORT,
	"module":  MODULE,
	"export":  EXPORT,
	"from":    FROM,
	"as":      AS,
	"let":     LET,
	"emit":    EMIT,
	"default": DEFAULT,
}

func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}
