package parser

import (
	"strings"

	"github.com/splq/splq/internal/lexer"
)

// The expression sublanguage (where, eval right-hand sides, head
// conditions) is parsed with precedence climbing. Expressions are captured
// as rendered text in node content, and the bare field names they reference
// become the expression node's inputs; assignment left-hand sides are
// handled by the eval command.

// binaryPrec maps expression operators to their binding power.
func binaryPrec(tok lexer.Token) int {
	switch tok.Kind {
	case lexer.Deq, lexer.Eq, lexer.Neq, lexer.CompOp:
		return 1
	case lexer.Plus, lexer.Minus:
		return 2
	case lexer.Times, lexer.Divide, lexer.Mod:
		return 3
	case lexer.Dot:
		return 4
	}
	return 0
}

// parseExpression recognizes the full logic lattice and returns an
// expression node whose content holds the rendered text and whose input
// set holds the bare field references the expression reads.
func (p *Parser) parseExpression() (*Node, error) {
	saved := p.exprInputs
	p.exprInputs = nil
	s, err := p.parseLogicExp()
	inputs := p.exprInputs
	p.exprInputs = saved
	if err != nil {
		return nil, err
	}
	n := newNode("expression")
	n.Content = append(n.Content, s)
	n.Input = appendUnique(n.Input, inputs...)
	return n, nil
}

func (p *Parser) parseLogicExp() (string, error) {
	s, err := p.parseLogicTerm()
	if err != nil {
		return "", err
	}
	for p.at(lexer.Or) {
		p.advance()
		right, err := p.parseLogicTerm()
		if err != nil {
			return "", err
		}
		s = s + " or " + right
	}
	return s, nil
}

func (p *Parser) parseLogicTerm() (string, error) {
	s, err := p.parseLogicFactor()
	if err != nil {
		return "", err
	}
	for {
		switch {
		case p.at(lexer.And):
			p.advance()
		case p.canStartExprFactor() && !p.atArgsTerm():
			// implicit AND by juxtaposition
		default:
			return s, nil
		}
		right, err := p.parseLogicFactor()
		if err != nil {
			return "", err
		}
		s = s + " and " + right
	}
}

func (p *Parser) canStartExprFactor() bool {
	tok := p.cur()
	switch tok.Kind {
	case lexer.Not, lexer.LParen, lexer.Number, lexer.Float, lexer.String,
		lexer.Name, lexer.Pattern, lexer.Quote, lexer.Case, lexer.Command,
		lexer.TimeSpecifier, lexer.Date:
		return true
	case lexer.Minus:
		switch p.peek(1).Kind {
		case lexer.Number, lexer.Float, lexer.Name:
			return true
		}
	}
	return false
}

func (p *Parser) parseLogicFactor() (string, error) {
	switch {
	case p.at(lexer.Not):
		p.advance()
		inner, err := p.parseLogicFactor()
		if err != nil {
			return "", err
		}
		return "not " + inner, nil
	case p.at(lexer.LParen):
		// Parenthesized logic; falls back to value grouping through the
		// same production shape.
		p.advance()
		inner, err := p.parseLogicExp()
		if err != nil {
			return "", err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return "", err
		}
		s := "(" + inner + ")"
		return p.continueBinaryFrom(s, 0)
	}
	val, err := p.parseExprValue(0)
	if err != nil {
		return "", err
	}
	if p.at(lexer.In) && p.peek(1).Kind == lexer.LParen {
		p.advance()
		p.advance()
		vals, err := p.parseValuesList()
		if err != nil {
			return "", err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return "", err
		}
		return val + " IN (" + strings.Join(vals, ",") + ")", nil
	}
	return val, nil
}

// parseExprValue is the precedence-climbing core over arithmetic and
// comparison operators, with pattern-adjacency gluing for the lexer's
// treatment of `*`.
func (p *Parser) parseExprValue(minPrec int) (string, error) {
	left, err := p.parseExprPrimary()
	if err != nil {
		return "", err
	}
	return p.continueBinaryFrom(left, minPrec)
}

func (p *Parser) continueBinaryFrom(left string, minPrec int) (string, error) {
	for {
		// Adjacent pattern tokens glue onto the value; `a*b` lexes as
		// PATTERN NAME.
		if p.at(lexer.Pattern) {
			left += p.advance().Value
			continue
		}
		prec := binaryPrec(p.cur())
		if prec == 0 || prec < minPrec {
			return left, nil
		}
		op := p.advance().Value
		right, err := p.parseExprValue(prec + 1)
		if err != nil {
			return "", err
		}
		left = left + op + right
	}
}

func (p *Parser) parseExprPrimary() (string, error) {
	tok := p.cur()
	switch {
	case tok.Kind == lexer.LParen:
		p.advance()
		inner, err := p.parseExprValue(0)
		if err != nil {
			return "", err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case tok.Kind == lexer.Pattern:
		p.advance()
		return tok.Value, nil
	case tok.Kind == lexer.Command && tok.Cmd == "eval" && p.peek(1).Kind == lexer.LParen:
		return p.parseEvalFunValue()
	case (tok.Kind == lexer.Name || tok.Kind == lexer.Case || tok.Kind == lexer.Command) &&
		p.peek(1).Kind == lexer.LParen:
		return p.parseFunCall()
	}
	if tok.Kind == lexer.Name {
		p.exprInputs = append(p.exprInputs, tok.Value)
	}
	return p.parseValue()
}

// parseFunCall recognizes `name(expr, ...)` and `name()`, returning the
// rendered call.
func (p *Parser) parseFunCall() (string, error) {
	name := p.advance().Value
	if _, err := p.expect(lexer.LParen); err != nil {
		return "", err
	}
	if p.at(lexer.RParen) {
		p.advance()
		return name + "()", nil
	}
	var args []string
	for {
		arg, err := p.parseLogicExp()
		if err != nil {
			return "", err
		}
		args = append(args, arg)
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return "", err
	}
	return name + "(" + strings.Join(args, ",") + ")", nil
}

// parseEvalFunValue recognizes the `eval(expression)` value form used in
// argument and aggregation positions, returning the inner rendered
// expression.
func (p *Parser) parseEvalFunValue() (string, error) {
	p.advance() // eval
	if _, err := p.expect(lexer.LParen); err != nil {
		return "", err
	}
	inner, err := p.parseLogicExp()
	if err != nil {
		return "", err
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return "", err
	}
	return inner, nil
}

// --- eval command assignments ---

// parseEvalAssign recognizes `field = expression`. The assigned field
// joins both the input and output sets; the rendered expression goes to
// content.
func (p *Parser) parseEvalAssign() (*Node, error) {
	field, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Eq); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	n := newNode("eval_expr_assign")
	n.Input = append(n.Input, field)
	n.Input = appendUnique(n.Input, expr.Input...)
	n.Output = append(n.Output, field)
	n.Content = append(n.Content, expr.Content...)
	return n, nil
}

// parseEvalExprs recognizes comma-separated assignments.
func (p *Parser) parseEvalExprs() (*Node, error) {
	n := newNode("eval_exprs")
	a, err := p.parseEvalAssign()
	if err != nil {
		return nil, err
	}
	n.Input = append(n.Input, a.Input...)
	n.Output = append(n.Output, a.Output...)
	n.Content = append(n.Content, a.Content...)
	for p.at(lexer.Comma) {
		p.advance()
		a, err := p.parseEvalAssign()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, a.Input...)
		n.Output = append(n.Output, a.Output...)
		n.Content = append(n.Content, a.Content...)
	}
	return n, nil
}
