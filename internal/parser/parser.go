// Package parser recognizes the SPL grammar and derives field input/output
// flow through the pipeline while it parses.
//
// The grammar is realized as a recursive-descent recognizer for the command
// sublanguage with a precedence-climbing parser for the embedded expression
// sublanguage. Per-command semantics (argument validation against the
// catalog, created fields, field effects) run at each command reduction,
// and the pipe-boundary composition law folds every command's effect into
// the propagated field set.
package parser

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/splq/splq/internal/catalog"
	"github.com/splq/splq/internal/diag"
	"github.com/splq/splq/internal/lexer"
)

// Parser holds the per-analysis state: token stream, scope level and the
// subsearch record. A Parser value is built per Parse call; nothing is
// shared between calls except the read-only catalog.
type Parser struct {
	cat   *catalog.Catalog
	diags *diag.Collector
	log   *logrus.Logger

	src  string
	toks []lexer.Token
	pos  int

	scope       int
	subsearches []Subsearch

	// exprInputs accumulates the bare field references seen while an
	// expression is being parsed; parseExpression harvests it.
	exprInputs []string
}

// New returns a parser bound to the given catalog and diagnostic collector.
func New(cat *catalog.Catalog, diags *diag.Collector, log *logrus.Logger) *Parser {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Parser{cat: cat, diags: diags, log: log}
}

// Subsearches returns the bracketed expressions recorded during the last
// Parse, in inside-out completion order.
func (p *Parser) Subsearches() []Subsearch {
	return p.subsearches
}

// Parse analyzes one query and returns the main search expression node.
func (p *Parser) Parse(src string) *Node {
	p.src = src
	p.toks = lexer.New(src, p.cat, p.diags).Tokens()
	p.pos = 0
	p.scope = 0
	p.subsearches = nil

	node := p.parseSearchExp()
	if !p.at(lexer.EOF) {
		tok := p.cur()
		p.reportUnexpected(tok)
		// Best effort: skip to a pipe and keep parsing the remainder.
		p.resync()
	}
	node.Type = "mainsearch"
	p.log.Debugf("parsed main search: input=%v output=%v effects=%v", node.Input, node.Output, node.Effects)
	return node
}

// --- token navigation ---

func (p *Parser) cur() lexer.Token {
	return p.toks[p.pos]
}

func (p *Parser) peek(n int) lexer.Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(k lexer.Kind) bool {
	return p.cur().Kind == k
}

func (p *Parser) atCmd(name string) bool {
	t := p.cur()
	return t.Kind == lexer.Command && t.Cmd == name
}

func (p *Parser) mark() int   { return p.pos }
func (p *Parser) reset(m int) { p.pos = m }

// prevEnd is the end position of the last consumed token.
func (p *Parser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.toks[p.pos-1].End()
}

func (p *Parser) expect(k lexer.Kind) (lexer.Token, error) {
	if !p.at(k) {
		return p.cur(), &syntaxError{tok: p.cur()}
	}
	return p.advance(), nil
}

// syntaxError carries the token a production choked on.
type syntaxError struct {
	tok lexer.Token
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("unexpected %s %q at %d", e.tok.Type, e.tok.Value, e.tok.Pos)
}

// reportUnexpected is the fallback error report for tokens no production
// claims: a short span ending at the token, or the end-of-query report.
func (p *Parser) reportUnexpected(tok lexer.Token) {
	if tok.Kind == lexer.EOF {
		p.diags.Report(-20, -1, "Unexpected end of query", nil, "")
		return
	}
	st := tok.Pos - 10
	if st < 0 {
		st = 0
	}
	p.diags.Report(st, tok.End(), "Unexpected symbol", lexer.DiagToken(tok), "")
}

// resync skips ahead to the next pipe or closing bracket without consuming
// it, so the pipeline can continue on a best-effort basis.
func (p *Parser) resync() {
	for {
		switch p.cur().Kind {
		case lexer.Pipe, lexer.RBrack, lexer.EOF:
			return
		}
		p.advance()
	}
}

// --- top structure ---

// parseSearchExp recognizes `filters`, `filters | commands` or
// `| commands`, merging field flow from both halves. When the expression
// reduces inside brackets it is recorded as a subsearch at the current
// nesting level.
func (p *Parser) parseSearchExp() *Node {
	node := newNode("search_exp")
	var flt, cmds *Node

	switch {
	case p.at(lexer.Pipe):
		p.advance()
		cmds = p.parseCommands()
	case p.atLeadingCommand():
		// A bracketed search may open with a command chain directly,
		// classically `[search ...]`.
		cmds = p.parseCommands()
	default:
		if !p.atSearchEnd() {
			flt = p.parseFilters()
		}
		if p.at(lexer.Pipe) {
			p.advance()
			cmds = p.parseCommands()
		}
	}

	if flt != nil {
		node.Content = append(node.Content, flt.Content...)
	}
	if cmds != nil {
		node.Content = append(node.Content, cmds.Content...)
		node.Effects = cmds.Effects
	}
	if flt != nil {
		node.Input = appendUnique(node.Input, flt.Input...)
	}
	if cmds != nil {
		node.Input = appendUnique(node.Input, cmds.Input...)
		node.Output = appendUnique(node.Output, cmds.Output...)
	}

	p.log.Debugf("search [%d]: input=%v output=%v", p.scope, node.Input, node.Output)
	if p.scope > 0 {
		p.subsearches = append(p.subsearches, Subsearch{Level: p.scope, Data: node})
	}
	return node
}

// atLeadingCommand reports whether the expression opens with a command
// word rather than a filter that merely reuses a command name as a field.
func (p *Parser) atLeadingCommand() bool {
	if p.cur().Kind != lexer.Command {
		return false
	}
	switch p.peek(1).Kind {
	case lexer.Eq, lexer.Neq, lexer.CompOp, lexer.In:
		return false
	}
	return true
}

func (p *Parser) atSearchEnd() bool {
	switch p.cur().Kind {
	case lexer.EOF, lexer.RBrack:
		return true
	}
	return false
}

// parseSubsearch recognizes a bracketed search expression and bumps the
// scope level around it.
func (p *Parser) parseSubsearch() (*Node, error) {
	if _, err := p.expect(lexer.LBrack); err != nil {
		return nil, err
	}
	p.scope++
	inner := p.parseSearchExp()
	p.scope--
	if _, err := p.expect(lexer.RBrack); err != nil {
		return nil, err
	}
	return &Node{
		Type:    "subsearch",
		Input:   inner.Input,
		Output:  inner.Output,
		Content: inner.Content,
	}, nil
}

// parseSubpipeline recognizes `[ commands ]` without opening a new
// subsearch scope (used by appendpipe).
func (p *Parser) parseSubpipeline() (*Node, error) {
	if _, err := p.expect(lexer.LBrack); err != nil {
		return nil, err
	}
	if p.at(lexer.Pipe) {
		p.advance()
	}
	cmds := p.parseCommands()
	if _, err := p.expect(lexer.RBrack); err != nil {
		return nil, err
	}
	return &Node{Type: "subpipeline", Input: cmds.Input, Output: cmds.Output}, nil
}

// parseCommands recognizes a pipe-separated command chain, folding each
// command's field effect into the propagated output set.
func (p *Parser) parseCommands() *Node {
	pipePos := p.prevEnd()
	left := p.parseCommandRecover(pipePos)
	if left == nil {
		left = &Node{Type: "command"}
	} else {
		left = &Node{
			Type:    "command",
			Input:   left.Input,
			Output:  left.Output,
			Content: left.Content,
			Op:      left.Op,
			Effects: []Effect{left.Effect},
		}
	}
	for p.at(lexer.Pipe) {
		pipeTok := p.advance()
		right := p.parseCommandRecover(pipeTok.Pos)
		if right == nil {
			continue
		}
		left = composeCommands(left, right)
	}
	return left
}

// parseCommandRecover parses one command with the grammar's error
// recovery: an unknown name or a malformed body is reported and the parser
// skips to the next pipe or closing bracket.
func (p *Parser) parseCommandRecover(pipePos int) *Node {
	tok := p.cur()
	if tok.Kind != lexer.Command {
		if tok.Kind == lexer.EOF {
			p.reportUnexpected(tok)
			return nil
		}
		p.diags.Report(pipePos, tok.Pos, "Unknown command name", lexer.DiagToken(tok), "")
		p.resync()
		return nil
	}

	cmdTok := p.advance()
	node, err := p.parseCommandBody(cmdTok)
	if err != nil {
		bad := p.cur()
		if se, ok := err.(*syntaxError); ok {
			bad = se.tok
		}
		if bad.Kind == lexer.EOF {
			p.reportUnexpected(bad)
		} else {
			p.diags.Report(cmdTok.Pos, bad.Pos,
				fmt.Sprintf("Syntax error in command %s", cmdTok.Cmd), lexer.DiagToken(bad), "")
		}
		p.resync()
		return nil
	}
	if !p.atCommandEnd() {
		bad := p.cur()
		p.diags.Report(cmdTok.Pos, bad.Pos,
			fmt.Sprintf("Syntax error in command %s", cmdTok.Cmd), lexer.DiagToken(bad), "")
		p.resync()
	}
	return node
}

func (p *Parser) atCommandEnd() bool {
	switch p.cur().Kind {
	case lexer.Pipe, lexer.RBrack, lexer.EOF:
		return true
	}
	return false
}

// checkArgs validates collected argument names against the catalog entry
// for cmd and reports each stray name.
func (p *Parser) checkArgs(cmdTok lexer.Token, args *argMap) {
	if args == nil || args.Len() == 0 {
		return
	}
	d := p.cat.Lookup(cmdTok.Cmd)
	if d == nil {
		return
	}
	for _, arg := range args.Keys() {
		if !d.HasArg(arg) {
			p.diags.Report(cmdTok.Pos, p.prevEnd(),
				fmt.Sprintf("Unexpected argument '%s' in %s, expected %v", arg, cmdTok.Cmd, d.Args),
				nil, arg)
		}
	}
}
