package parser

import (
	"github.com/splq/splq/internal/lexer"
)

// Filters form a boolean lattice: OR-chains of AND-chains of factors,
// where juxtaposition is implicit AND and a factor is a single filter, a
// parenthesized group or a negation.

func (p *Parser) parseFilters() *Node {
	node := p.parseFiltersTerm()
	for p.at(lexer.Or) {
		p.advance()
		right := p.parseFiltersTerm()
		node = mergeFilters(node, right, "or")
	}
	node.Type = "filters"
	return node
}

func (p *Parser) parseFiltersTerm() *Node {
	node := p.parseFiltersFactor()
	for {
		switch {
		case p.at(lexer.And):
			p.advance()
		case p.at(lexer.Comma) && p.canStartFilterAt(1):
			p.advance()
		case p.canStartFilterAt(0):
			// implicit AND
		default:
			node.Type = "filters_logic_term"
			return node
		}
		right := p.parseFiltersFactor()
		node = mergeFilters(node, right, "and")
	}
}

func (p *Parser) parseFiltersFactor() *Node {
	switch {
	case p.at(lexer.Not):
		p.advance()
		inner := p.parseFiltersFactor()
		inner.Op = append([]string{"not"}, inner.Op...)
		return inner
	case p.at(lexer.LParen):
		p.advance()
		inner := p.parseFilters()
		if !p.at(lexer.RParen) {
			p.filterError(p.cur())
		} else {
			p.advance()
		}
		return inner
	}
	return p.parseFilter()
}

func mergeFilters(left, right *Node, op string) *Node {
	return &Node{
		Type:    "filters",
		Input:   append(append([]string{}, left.Input...), right.Input...),
		Output:  append(append([]string{}, left.Output...), right.Output...),
		Content: append(append([]string{}, left.Content...), right.Content...),
		Op:      append(append(append([]string{}, left.Op...), op), right.Op...),
	}
}

// canStartFilterAt reports whether the token at offset off from the
// current position can open a filter factor; this is what keeps
// implicit-AND juxtaposition from running past the clause.
func (p *Parser) canStartFilterAt(off int) bool {
	tok := p.peek(off)
	switch tok.Kind {
	case lexer.LBrack, lexer.LParen, lexer.Not, lexer.Times,
		lexer.Number, lexer.Float, lexer.Name, lexer.Pattern, lexer.String,
		lexer.Quote, lexer.TimeSpecifier, lexer.Date, lexer.Command:
		return true
	case lexer.Minus:
		switch p.peek(off + 1).Kind {
		case lexer.Number, lexer.Float, lexer.Name:
			return true
		}
		return false
	}
	return isOpName(tok)
}

// parseFilter recognizes one atomic filter. The factor wrapper puts the
// filter's value into the content stream.
func (p *Parser) parseFilter() *Node {
	node := newNode("filters_logic_factor")
	f := p.parseFilterPrimary()
	node.Input = append(node.Input, f.Input...)
	node.Output = append(node.Output, f.Output...)
	node.Op = append(node.Op, f.Op...)
	if len(f.Content) > 0 {
		node.Content = append(node.Content, f.Content...)
	}
	return node
}

func (p *Parser) parseFilterPrimary() *Node {
	tok := p.cur()
	n := newNode("filter")

	switch {
	case tok.Kind == lexer.LBrack:
		sub, err := p.parseSubsearch()
		if err != nil {
			p.filterError(p.cur())
			return n
		}
		n.Type = "filter_subsearch"
		n.Input = append(n.Input, sub.Output...)
		n.Content = append(n.Content, "")
		return n

	case (tok.Kind == lexer.Case || tok.Kind == lexer.Term) && p.peek(1).Kind == lexer.LParen:
		p.advance()
		p.advance()
		val, err := p.parseValue()
		if err == nil {
			_, err = p.expect(lexer.RParen)
		}
		if err != nil {
			p.filterError(p.cur())
			return n
		}
		n.Type = "filter_phrase"
		n.Op = append(n.Op, tok.Value)
		n.Content = append(n.Content, val)
		return n

	case tok.Kind == lexer.Times:
		p.advance()
		n.Content = append(n.Content, "*")
		return n

	case (tok.Kind == lexer.Number || tok.Kind == lexer.Float) && p.peek(1).Kind == lexer.CompOp:
		val := p.advance().Value
		op := p.advance().Value
		field, err := p.parseFieldName()
		if err != nil {
			p.filterError(p.cur())
			return n
		}
		n.Input = append(n.Input, field)
		n.Op = append(n.Op, op)
		n.Content = append(n.Content, val)
		return n
	}

	if isFieldish(tok) {
		switch p.peek(1).Kind {
		case lexer.Eq, lexer.Neq:
			field, _ := p.parseFieldName()
			op := p.advance().Value
			n.Input = append(n.Input, field)
			n.Op = append(n.Op, op)
			if p.at(lexer.Times) {
				p.advance()
				n.Content = append(n.Content, "*")
				return n
			}
			val, err := p.parseValue()
			if err != nil {
				p.filterError(p.cur())
				return n
			}
			n.Content = append(n.Content, val)
			return n
		case lexer.CompOp:
			field, _ := p.parseFieldName()
			op := p.advance().Value
			if p.at(lexer.Number) || p.at(lexer.Float) {
				n.Content = append(n.Content, p.advance().Value)
			} else {
				p.filterError(p.cur())
				return n
			}
			n.Input = append(n.Input, field)
			n.Op = append(n.Op, op)
			return n
		case lexer.In:
			field, _ := p.parseFieldName()
			p.advance() // in
			if _, err := p.expect(lexer.LParen); err != nil {
				p.filterError(p.cur())
				return n
			}
			vals, err := p.parseValuesList()
			if err == nil {
				_, err = p.expect(lexer.RParen)
			}
			if err != nil {
				p.filterError(p.cur())
				return n
			}
			n.Input = append(n.Input, field)
			n.Op = append(n.Op, "in")
			n.Content = append(n.Content, vals...)
			return n
		}
	}

	// Bare value filter (raw term search).
	if val, err := p.parseValue(); err == nil {
		n.Content = append(n.Content, val)
		return n
	}
	p.filterError(tok)
	if !p.atCommandEnd() && !p.at(lexer.RParen) {
		p.advance()
	}
	p.skipFilterJunk()
	return n
}

// filterError reports a malformed filter at the offending token.
func (p *Parser) filterError(tok lexer.Token) {
	if tok.Kind == lexer.EOF {
		p.reportUnexpected(tok)
		return
	}
	p.diags.Report(tok.Pos, tok.End(), "Syntax error in a filter", lexer.DiagToken(tok), "")
}

// skipFilterJunk advances past tokens that cannot restart a filter so the
// clause can resume at the next boundary.
func (p *Parser) skipFilterJunk() {
	for {
		switch p.cur().Kind {
		case lexer.Pipe, lexer.RBrack, lexer.RParen, lexer.EOF:
			return
		}
		if p.canStartFilterAt(0) {
			return
		}
		p.advance()
	}
}
