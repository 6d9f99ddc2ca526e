package parser

import (
	"strings"

	"github.com/splq/splq/internal/lexer"
)

// argMap is an insertion-ordered argument mapping. A key seen twice holds a
// list of its values, matching the grammar's extend-dict rule.
type argMap struct {
	keys []string
	vals map[string]interface{}
}

func newArgMap() *argMap {
	return &argMap{vals: make(map[string]interface{})}
}

// Set inserts or extends a key: the second insert turns the value into a
// two-element list, later inserts append.
func (a *argMap) Set(key string, val interface{}) {
	if old, ok := a.vals[key]; ok {
		if list, isList := old.([]string); isList {
			a.vals[key] = append(list, asString(val))
		} else {
			a.vals[key] = []string{asString(old), asString(val)}
		}
		return
	}
	a.keys = append(a.keys, key)
	a.vals[key] = val
}

// Extend merges another argMap into this one with Set semantics.
func (a *argMap) Extend(b *argMap) {
	if b == nil {
		return
	}
	for _, k := range b.keys {
		a.Set(k, b.vals[k])
	}
}

func (a *argMap) Has(key string) bool {
	_, ok := a.vals[key]
	return ok
}

func (a *argMap) Get(key string) (interface{}, bool) {
	v, ok := a.vals[key]
	return v, ok
}

// GetString returns the value under key rendered as a single string; list
// values collapse to their first element.
func (a *argMap) GetString(key string) string {
	v, ok := a.vals[key]
	if !ok {
		return ""
	}
	return asString(v)
}

// Strings returns the value under key as a list.
func (a *argMap) Strings(key string) []string {
	v, ok := a.vals[key]
	if !ok {
		return nil
	}
	if list, isList := v.([]string); isList {
		return list
	}
	return []string{asString(v)}
}

func (a *argMap) Keys() []string { return a.keys }
func (a *argMap) Len() int       { return len(a.keys) }

// Rename moves a key's value to a new name, preserving insertion position.
func (a *argMap) Rename(from, to string) {
	v, ok := a.vals[from]
	if !ok {
		return
	}
	delete(a.vals, from)
	a.vals[to] = v
	for i, k := range a.keys {
		if k == from {
			a.keys[i] = to
		}
	}
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		if len(t) > 0 {
			return t[0]
		}
	}
	return ""
}

// --- token classification ---

// isOpName reports whether tok is a secondary operator keyword usable as a
// field or argument name (the basic boolean/clause operators are not).
func isOpName(tok lexer.Token) bool {
	switch tok.Kind {
	case lexer.SortBy, lexer.Output, lexer.OutputNew, lexer.Case, lexer.Term,
		lexer.Over, lexer.Bottom, lexer.SplitRow, lexer.SplitCol, lexer.Filter,
		lexer.Limit, lexer.RowSummary, lexer.ColSummary, lexer.ShowOther,
		lexer.NumCols, lexer.Range, lexer.Period, lexer.TrueLabel, lexer.FalseLabel:
		return true
	}
	return false
}

// isFieldish reports whether tok can open a field name.
func isFieldish(tok lexer.Token) bool {
	switch tok.Kind {
	case lexer.Name, lexer.Pattern, lexer.String, lexer.Command:
		return true
	}
	return isOpName(tok)
}

// atArgsTerm reports whether the parser sits on a `name=value` argument.
func (p *Parser) atArgsTerm() bool {
	tok := p.cur()
	if tok.Kind != lexer.Name && tok.Kind != lexer.Command && !isOpName(tok) {
		return false
	}
	return p.peek(1).Kind == lexer.Eq
}

// parseArgsTerm consumes one `name=value` argument.
func (p *Parser) parseArgsTerm() (*argMap, error) {
	key := strings.ToLower(p.advance().Value)
	if _, err := p.expect(lexer.Eq); err != nil {
		return nil, err
	}
	val, err := p.parseArgsValue()
	if err != nil {
		return nil, err
	}
	args := newArgMap()
	args.Set(key, val)
	return args, nil
}

// parseArgsList consumes a run of `name=value` arguments.
func (p *Parser) parseArgsList() (*argMap, error) {
	args := newArgMap()
	for p.atArgsTerm() {
		term, err := p.parseArgsTerm()
		if err != nil {
			return nil, err
		}
		args.Extend(term)
	}
	return args, nil
}

// parseArgsValue recognizes the value position of an argument: a plain
// value, `*`, a function call, an `eval(...)` expression, a chart limit
// (`top N` / `bottom N`) or a bare keyword.
func (p *Parser) parseArgsValue() (string, error) {
	tok := p.cur()
	switch {
	case tok.Kind == lexer.Times:
		p.advance()
		return "*", nil
	case tok.Kind == lexer.Bottom && p.peek(1).Kind == lexer.Number:
		p.advance()
		n := p.advance()
		return "bottom " + n.Value, nil
	case tok.Kind == lexer.Command && tok.Cmd == "top" && p.peek(1).Kind == lexer.Number:
		p.advance()
		n := p.advance()
		return "top " + n.Value, nil
	case tok.Kind == lexer.Command && tok.Cmd == "eval" && p.peek(1).Kind == lexer.LParen:
		return p.parseEvalFunValue()
	case (tok.Kind == lexer.Name || tok.Kind == lexer.Command || tok.Kind == lexer.Case) &&
		p.peek(1).Kind == lexer.LParen:
		return p.parseFunCall()
	case tok.Kind == lexer.Command || isOpName(tok):
		p.advance()
		return tok.Value, nil
	}
	val, err := p.parseValue()
	if err != nil {
		return "", err
	}
	return val, nil
}

// parseValue recognizes the grammar's value forms: numbers (optionally
// negated), strings, names, patterns, time specifiers, dates, quoted names
// and subsearches (captured as "[...]").
func (p *Parser) parseValue() (string, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.Number, lexer.Float, lexer.String, lexer.Name, lexer.Pattern,
		lexer.TimeSpecifier, lexer.Date:
		p.advance()
		return tok.Value, nil
	case lexer.Minus:
		next := p.peek(1)
		switch next.Kind {
		case lexer.Number, lexer.Float, lexer.Name:
			p.advance()
			p.advance()
			return "-" + next.Value, nil
		}
		return "", &syntaxError{tok: next}
	case lexer.Quote:
		p.advance()
		if p.at(lexer.Quote) {
			p.advance()
			return "", nil
		}
		if p.at(lexer.Name) {
			name := p.advance()
			if _, err := p.expect(lexer.Quote); err != nil {
				return "", err
			}
			return name.Value, nil
		}
		return "", &syntaxError{tok: p.cur()}
	case lexer.LBrack:
		if _, err := p.parseSubsearch(); err != nil {
			return "", err
		}
		return "[...]", nil
	}
	if isOpName(tok) {
		p.advance()
		return tok.Value, nil
	}
	return "", &syntaxError{tok: tok}
}

// atValue reports whether the parser sits on something parseValue accepts.
func (p *Parser) atValue() bool {
	tok := p.cur()
	switch tok.Kind {
	case lexer.Number, lexer.Float, lexer.String, lexer.Name, lexer.Pattern,
		lexer.TimeSpecifier, lexer.Date, lexer.Quote, lexer.LBrack:
		return true
	case lexer.Minus:
		switch p.peek(1).Kind {
		case lexer.Number, lexer.Float, lexer.Name:
			return true
		}
	}
	return isOpName(tok)
}

// parseValuesList consumes comma-separated values.
func (p *Parser) parseValuesList() ([]string, error) {
	var vals []string
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	vals = append(vals, v)
	for p.at(lexer.Comma) {
		p.advance()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// --- field names and field lists ---

// parseFieldName recognizes a field reference: a bare identifier (which may
// collide with command or operator keywords), a quoted string, a pattern,
// an aggregation-shaped name like `count(x)`, or a subsearch (empty name).
func (p *Parser) parseFieldName() (string, error) {
	tok := p.cur()
	if tok.Kind == lexer.LBrack {
		if _, err := p.parseSubsearch(); err != nil {
			return "", err
		}
		return "", nil
	}
	if !isFieldish(tok) {
		return "", &syntaxError{tok: tok}
	}
	if (tok.Kind == lexer.Name || tok.Kind == lexer.Command) && p.peek(1).Kind == lexer.LParen {
		// Field named after an aggregation, e.g. count(host).
		m := p.mark()
		p.advance()
		p.advance()
		inner, err := p.parseFieldName()
		if err == nil && p.at(lexer.RParen) {
			p.advance()
			return tok.Value + "(" + inner + ")", nil
		}
		p.reset(m)
	}
	p.advance()
	return tok.Value, nil
}

// atFieldListStop reports whether the current token is a keyword that ends
// a field list even though it could itself name a field.
func (p *Parser) atFieldListStop() bool {
	tok := p.cur()
	switch tok.Kind {
	case lexer.Output, lexer.OutputNew, lexer.Filter, lexer.SortBy:
		return true
	}
	return false
}

// parseFieldsList consumes fields separated by commas or juxtaposition.
// The list ends at an argument term, a clause keyword, or anything that
// cannot open a field.
func (p *Parser) parseFieldsList() (*Node, error) {
	n := newNode("fields_list")
	f, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	n.Input = append(n.Input, f)
	for {
		if p.at(lexer.Comma) && isFieldish(p.peek(1)) && p.peek(2).Kind != lexer.Eq {
			p.advance()
		} else if !(isFieldish(p.cur()) && !p.atArgsTerm() && !p.atFieldListStop()) {
			return n, nil
		}
		f, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, f)
	}
}

// parseRFieldTerm consumes `from as to`.
func (p *Parser) parseRFieldTerm() (*Node, error) {
	from, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.As); err != nil {
		return nil, err
	}
	to, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	return &Node{Type: "rfield_term", Input: []string{from}, Output: []string{to}}, nil
}

// atRFieldTerm reports whether an `x as y` rename starts here.
func (p *Parser) atRFieldTerm() bool {
	if !isFieldish(p.cur()) {
		return false
	}
	if p.peek(1).Kind == lexer.As {
		return true
	}
	// Aggregation-shaped name: f(x) as y.
	if p.peek(1).Kind == lexer.LParen && p.peek(3).Kind == lexer.RParen && p.peek(4).Kind == lexer.As {
		return true
	}
	return false
}

// parseRFieldsList consumes rename terms separated by commas or
// juxtaposition.
func (p *Parser) parseRFieldsList() (*Node, error) {
	n := newNode("rfields_list")
	t, err := p.parseRFieldTerm()
	if err != nil {
		return nil, err
	}
	n.Input = append(n.Input, t.Input...)
	n.Output = append(n.Output, t.Output...)
	for {
		if p.at(lexer.Comma) && isFieldish(p.peek(1)) {
			p.advance()
		} else if !p.atRFieldTerm() {
			return n, nil
		}
		t, err := p.parseRFieldTerm()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, t.Input...)
		n.Output = append(n.Output, t.Output...)
	}
}

// parseAnyFieldsList consumes a mix of plain fields and rename terms.
func (p *Parser) parseAnyFieldsList() (*Node, error) {
	n := newNode("any_fields_list")
	for first := true; ; first = false {
		if !first {
			if p.at(lexer.Comma) && isFieldish(p.peek(1)) {
				p.advance()
			} else if !(isFieldish(p.cur()) && !p.atArgsTerm() && !p.atFieldListStop()) {
				return n, nil
			}
		}
		if p.atRFieldTerm() {
			t, err := p.parseRFieldTerm()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, t.Input...)
			n.Output = append(n.Output, t.Output...)
		} else {
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, f)
		}
	}
}

// --- aggregation terms ---

// parseAggTerm recognizes `fun`, `fun as x`, `fun(field)`,
// `fun(field) as x` and the `as *` variants. Only parenthesized field
// arguments contribute inputs; a bare aggregation reads no field.
func (p *Parser) parseAggTerm() (*Node, error) {
	name, err := p.expect(lexer.Name)
	if err != nil {
		return nil, err
	}
	n := newNode("agg_term")
	if p.at(lexer.LParen) {
		p.advance()
		argField, content, err := p.parseAggTermArg()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		if argField != "" {
			n.Input = append(n.Input, argField)
		}
		if content != "" {
			n.Content = append(n.Content, content)
		}
		if p.at(lexer.As) {
			p.advance()
			out, err := p.parseAggAlias()
			if err != nil {
				return nil, err
			}
			n.Output = append(n.Output, out)
		} else {
			n.Output = append(n.Output, name.Value+"("+argField+")")
		}
		return n, nil
	}
	if p.at(lexer.As) {
		p.advance()
		out, err := p.parseAggAlias()
		if err != nil {
			return nil, err
		}
		n.Output = append(n.Output, out)
		return n, nil
	}
	n.Output = append(n.Output, name.Value)
	return n, nil
}

func (p *Parser) parseAggAlias() (string, error) {
	if p.at(lexer.Times) {
		p.advance()
		return "*", nil
	}
	return p.parseFieldName()
}

// parseAggTermArg recognizes the argument of an aggregation: a field, `*`,
// or an eval(...) expression (returned as content).
func (p *Parser) parseAggTermArg() (field, content string, err error) {
	if p.at(lexer.Times) {
		p.advance()
		return "", "", nil
	}
	if p.atCmd("eval") && p.peek(1).Kind == lexer.LParen {
		c, err := p.parseEvalFunValue()
		return "", c, err
	}
	f, err := p.parseFieldName()
	return f, "", err
}

// atAggTerm reports whether an aggregation term starts here.
func (p *Parser) atAggTerm() bool {
	return p.at(lexer.Name) && !p.atArgsTerm()
}

// parseAggTermsList consumes aggregation terms separated by commas or
// juxtaposition.
func (p *Parser) parseAggTermsList() (*Node, error) {
	n := newNode("agg_terms_list")
	t, err := p.parseAggTerm()
	if err != nil {
		return nil, err
	}
	n.Input = append(n.Input, t.Input...)
	n.Output = append(n.Output, t.Output...)
	n.Content = append(n.Content, t.Content...)
	for {
		if p.at(lexer.Comma) && p.peek(1).Kind == lexer.Name {
			p.advance()
		} else if !p.atAggTerm() {
			return n, nil
		}
		t, err := p.parseAggTerm()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, t.Input...)
		n.Output = append(n.Output, t.Output...)
		n.Content = append(n.Content, t.Content...)
	}
}

// parseAggOrEvalList recognizes either an aggregation list or an
// `eval(...) [as field]` term (chart and timechart accept both).
func (p *Parser) parseAggOrEvalList() (*Node, error) {
	if p.atCmd("eval") && p.peek(1).Kind == lexer.LParen {
		content, err := p.parseEvalFunValue()
		if err != nil {
			return nil, err
		}
		n := newNode("agg_or_eval_list")
		n.Content = append(n.Content, content)
		if p.at(lexer.As) {
			p.advance()
			out, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			n.Output = append(n.Output, out)
		}
		return n, nil
	}
	return p.parseAggTermsList()
}
