package syntax

import (
	"unicode"
	"unicode/utf8"
)

type Lexer struct {
	input        string
	position     int  // current byte position in input (points to start of current rune)
	readPosition int  // next byte position in input (start of next rune)
	ch           rune // current rune under examination; 0 means EOF
	line         int
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) NextToken() Token {
	l.skipSpace()

	tok := Token{Line: l.line}

	switch l.ch {
	case '\n':
		tok.Type = NEWLINE
		tok.Literal = "\\n"
		l.readChar()
		l.line++
		return tok
	case '=':
		tok = l.newToken(ASSIGN)
	case '+':
		tok = l.newToken(PLUS)
	case '*':
		tok = l.newToken(STAR)
	case ',':
		tok = l.newToken(COMMA)
	case '.':
		tok = l.newToken(DOT)
	case '{':
		tok = l.newToken(LBRACE)
	case '}':
		tok = l.newToken(RBRACE)
	case '"':
		tok.Type = STRING
		tok.Literal = l.readString()
		return tok
	case 0:
		tok.Type = EOF
		return tok
	default:
		if isIdentStart(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = LookupIdent(tok.Literal)
			return tok
		}
		if unicode.IsDigit(l.ch) {
			tok.Type = INT
			tok.Literal = l.readNumber()
			return tok
		}
		tok = l.newToken(ILLEGAL)
	}

	l.readChar()
	return tok
}

func (l *Lexer) newToken(t TokenType) Token {
	return Token{Type: t, Literal: string(l.ch), Line: l.line}
}

func (l *Lexer) skipSpace() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r':
			l.readChar()
		case l.ch == '#':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = len(l.input)
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += size
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isIdentStart(l.ch) || unicode.IsDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber() string {
	start := l.position
	for unicode.IsDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readString consumes a double-quoted literal. No escapes; unit names and
// test payloads do not need them.
func (l *Lexer) readString() string {
	l.readChar() // opening quote
	start := l.position
	for l.ch != '"' && l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	s := l.input[start:l.position]
	if l.ch == '"' {
		l.readChar()
	}
	return s
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}
