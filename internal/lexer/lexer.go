// Package lexer turns SPL query text into a token stream.
//
// The scanner is rule-ordered the way the reference grammar expects:
// MACRO, DATE, PATTERN, STRING, NAME, TIMESPECIFIER, FLOAT, NUMBER, then
// fixed operators with two-character operators tried first. A NAME whose
// lowercased form matches a cataloged command is retagged to that command's
// token; reserved words, pure digit runs and float-shaped names are
// likewise retagged.
package lexer

import (
	"regexp"
	"strings"

	"github.com/splq/splq/internal/catalog"
	"github.com/splq/splq/internal/diag"
)

var (
	macroRe     = regexp.MustCompile("^`[^`]+`")
	dateRe      = regexp.MustCompile(`^\d+/\d+/\d+(:\d+:\d+:\d+)?`)
	patternRe   = regexp.MustCompile(`^(\*[^\*\s]+\*|\*[a-zA-Z_\.\{\}\-:<>/]+|[a-zA-Z0-9_\.\{\}\-:<>/]+\*)`)
	stringRe    = regexp.MustCompile(`^("([^"\\]*(\\.[^"\\]*)*)"|'([^'\\]*(\\.[^'\\]*)*)'|""|'')`)
	nameRe      = regexp.MustCompile(`^([a-zA-Z0-9_\{\}/]*<<[a-zA-Z0-9_\{\}/@]+>>[a-zA-Z0-9_\{\}/]*|[a-zA-Z0-9_\{\}/\$][a-zA-Z0-9_\.\{\}\-:/@]*)`)
	timeRe      = regexp.MustCompile(`^[0-9a-zA-Z\+\-]*@[0-9a-zA-Z\+\-]+ `)
	floatRe     = regexp.MustCompile(`^\d*\.\d+`)
	numberRe    = regexp.MustCompile(`^\d+`)
	digitsRe    = regexp.MustCompile(`^\d+$`)
	floatNameRe = regexp.MustCompile(`^\d+\.\d+$`)
)

// operators in match order: longer lexemes first.
var operators = []struct {
	lexeme string
	kind   Kind
}{
	{"==", Deq},
	{"!=", Neq},
	{"<=", CompOp},
	{">=", CompOp},
	{"=", Eq},
	{"+", Plus},
	{"-", Minus},
	{"*", Times},
	{"/", Divide},
	{"%", Mod},
	{"(", LParen},
	{")", RParen},
	{"[", LBrack},
	{"]", RBrack},
	{"|", Pipe},
	{",", Comma},
	{".", Dot},
	{":", Colon},
	{"\"", Quote},
	{"<", CompOp},
	{">", CompOp},
}

// Scanner produces tokens from a query string.
type Scanner struct {
	src   string
	pos   int
	line  int
	cat   *catalog.Catalog
	diags *diag.Collector
}

// New returns a scanner over src. Diagnostics for illegal characters are
// reported to diags.
func New(src string, cat *catalog.Catalog, diags *diag.Collector) *Scanner {
	return &Scanner{src: src, line: 1, cat: cat, diags: diags}
}

// Tokens scans the whole input and returns the token stream terminated by
// an EOF token. Macro tokens are recognized and dropped, matching the
// reference lexer (expansion happens before lexing).
func (s *Scanner) Tokens() []Token {
	var toks []Token
	for {
		t, ok := s.next()
		if !ok {
			continue // skipped macro or illegal character
		}
		toks = append(toks, t)
		if t.Kind == EOF {
			return toks
		}
	}
}

func (s *Scanner) skipSpace() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ', '\r', '\t':
			s.pos++
		case '\n':
			s.line++
			s.pos++
		default:
			return
		}
	}
}

// next returns the next token. The second return is false when the scanner
// consumed input without producing a token.
func (s *Scanner) next() (Token, bool) {
	s.skipSpace()
	if s.pos >= len(s.src) {
		return Token{Kind: EOF, Type: EOF.String(), Pos: s.pos, Line: s.line}, true
	}
	rest := s.src[s.pos:]
	start := s.pos

	if m := macroRe.FindString(rest); m != "" {
		// Macro calls surviving to the lexer are unexpanded leftovers;
		// they carry no grammar meaning.
		s.pos += len(m)
		return Token{}, false
	}
	if m := dateRe.FindString(rest); m != "" {
		return s.emit(Date, m, m, start), true
	}
	if m := patternRe.FindString(rest); m != "" {
		return s.emit(Pattern, m, m, start), true
	}
	if m := stringRe.FindString(rest); m != "" {
		val := m[1 : len(m)-1]
		kind := String
		switch val {
		case "(":
			kind = QLParen
		case ")":
			kind = QRParen
		}
		return s.emit(kind, val, m, start), true
	}
	if m := nameRe.FindString(rest); m != "" {
		return s.name(m, start), true
	}
	if m := timeRe.FindString(rest); m != "" {
		return s.emit(TimeSpecifier, m, m, start), true
	}
	if m := floatRe.FindString(rest); m != "" {
		return s.emit(Float, m, m, start), true
	}
	if m := numberRe.FindString(rest); m != "" {
		return s.emit(Number, m, m, start), true
	}
	for _, op := range operators {
		if strings.HasPrefix(rest, op.lexeme) {
			return s.emit(op.kind, op.lexeme, op.lexeme, start), true
		}
	}

	ch := string(s.src[s.pos])
	s.diags.Report(start, start+1, "Illegal character "+ch, nil, ch)
	s.pos++
	return Token{}, false
}

// name classifies an identifier: command token, reserved word, or plain
// NAME with digit/float retagging.
func (s *Scanner) name(lexeme string, start int) Token {
	lower := strings.ToLower(lexeme)
	if s.cat != nil && s.cat.IsCommand(lower) {
		t := s.emit(Command, lower, lexeme, start)
		t.Cmd = lower
		t.Type = s.cat.TokenName(lower)
		return t
	}
	if kind, ok := reserved[lower]; ok {
		return s.emit(kind, lower, lexeme, start)
	}
	if digitsRe.MatchString(lexeme) {
		return s.emit(Number, lexeme, lexeme, start)
	}
	if floatNameRe.MatchString(lexeme) {
		return s.emit(Float, lexeme, lexeme, start)
	}
	return s.emit(Name, lexeme, lexeme, start)
}

func (s *Scanner) emit(kind Kind, value, lexeme string, start int) Token {
	s.pos = start + len(lexeme)
	return Token{
		Kind:  kind,
		Type:  kind.String(),
		Value: value,
		Pos:   start,
		Len:   len(lexeme),
		Line:  s.line,
	}
}

// DiagToken converts a token to the view attached to diagnostics.
func DiagToken(t Token) *diag.Token {
	return &diag.Token{Pos: t.Pos, Value: t.Value, Type: t.Type}
}
