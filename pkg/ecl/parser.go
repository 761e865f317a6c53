package ecl

import (
	"fmt"
	"strconv"
)

// Parser is a hand-written recursive-descent parser over a pre-lexed
// token stream.
type Parser struct {
	toks []Token
	pos  int
}

// Parse lexes and parses src into an Expression.
func Parse(src string) (*Expression, error) {
	toks, err := All(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != TokEOF {
		return nil, p.errorf("unexpected trailing token %q", p.cur().Raw)
	}
	return expr, nil
}

func (p *Parser) cur() Token { return p.toks[p.pos] }
func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) errorf(format string, args ...any) error {
	return fmt.Errorf("ecl: at position %d: %s", p.cur().Pos, fmt.Sprintf(format, args...))
}

func (p *Parser) expect(k TokenKind) (Token, error) {
	if p.cur().Kind != k {
		return Token{}, p.errorf("expected %s, got %s %q", k, p.cur().Kind, p.cur().Raw)
	}
	return p.advance(), nil
}

// parseExpression parses "subExpression (AND|OR|MINUS subExpression)*"
// into a chain through Right; Evaluate folds the chain left-associatively.
func (p *Parser) parseExpression() (*Expression, error) {
	left, err := p.parseSubExpression()
	if err != nil {
		return nil, err
	}
	expr := &Expression{Left: left}
	cur := expr
	for {
		var op BoolOp
		switch p.cur().Kind {
		case TokAnd:
			op = OpAnd
		case TokOr:
			op = OpOr
		case TokMinus:
			op = OpMinus
		default:
			return expr, nil
		}
		p.advance()
		right, err := p.parseSubExpression()
		if err != nil {
			return nil, err
		}
		cur.Op = op
		cur.Right = &Expression{Left: right}
		cur = cur.Right
	}
}

func (p *Parser) parseSubExpression() (*SubExpression, error) {
	constraint, err := p.parseConstraint()
	if err != nil {
		return nil, err
	}
	sub := &SubExpression{Constraint: constraint}
	if p.cur().Kind == TokColon {
		p.advance()
		ref, err := p.parseRefinement()
		if err != nil {
			return nil, err
		}
		sub.Refinement = ref
	}
	for p.cur().Kind == TokDot {
		p.advance()
		id, err := p.expect(TokSCTID)
		if err != nil {
			return nil, err
		}
		sub.Dotted = append(sub.Dotted, id.Raw)
		// optional |term| alongside a dotted attribute reference
		if p.cur().Kind == TokTerm {
			p.advance()
		}
	}
	return sub, nil
}

func (p *Parser) parseConstraintOp() ConstraintOp {
	switch p.cur().Kind {
	case TokLtLtBang:
		p.advance()
		return ConstraintDescOrSelfNot
	case TokLtLt:
		p.advance()
		return ConstraintDescOrSelf
	case TokLtBang:
		p.advance()
		return ConstraintDescOfExcl
	case TokLt:
		p.advance()
		return ConstraintDescendantOf
	case TokGtGtBang:
		p.advance()
		return ConstraintAncOrSelfNot
	case TokGtGt:
		p.advance()
		return ConstraintAncOrSelf
	case TokGtBang:
		p.advance()
		return ConstraintAncOfExcl
	case TokGt:
		p.advance()
		return ConstraintAncestorOf
	default:
		return ConstraintSelf
	}
}

func (p *Parser) parseConstraint() (*Constraint, error) {
	op := p.parseConstraintOp()

	if p.cur().Kind == TokCaret {
		p.advance()
		inner, err := p.parseConstraint()
		if err != nil {
			return nil, err
		}
		if inner.ConceptID == "" {
			return nil, p.errorf("member-of (^) requires a concept reference")
		}
		return &Constraint{Op: op, MemberOf: inner.ConceptID, Term: inner.Term}, nil
	}

	switch p.cur().Kind {
	case TokStar:
		p.advance()
		c := &Constraint{Op: op, Wildcard: true}
		p.maybeConsumeTerm(c)
		return c, nil
	case TokLParen:
		p.advance()
		nested, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return &Constraint{Op: op, Nested: nested}, nil
	case TokSCTID:
		id := p.advance().Raw
		c := &Constraint{Op: op, ConceptID: id}
		p.maybeConsumeTerm(c)
		return c, nil
	case TokInteger:
		// Tolerate a short numeric focus (e.g. test fixtures using small
		// ids) as a concept id; real SCTIDs are 6-18 digits per the
		// lexer, but a strict integer in focus position is still a
		// concept reference, not a cardinality literal.
		id := p.advance().Raw
		c := &Constraint{Op: op, ConceptID: id}
		p.maybeConsumeTerm(c)
		return c, nil
	default:
		return nil, p.errorf("expected a concept reference, wildcard or '(', got %s %q", p.cur().Kind, p.cur().Raw)
	}
}

func (p *Parser) maybeConsumeTerm(c *Constraint) {
	if p.cur().Kind == TokTerm {
		c.Term = p.advance().Raw
	}
}

func (p *Parser) parseRefinement() (*Refinement, error) {
	first, err := p.parseAttributeGroup()
	if err != nil {
		return nil, err
	}
	ref := &Refinement{Groups: []AttributeGroup{*first}}
	for p.cur().Kind == TokComma {
		p.advance()
		g, err := p.parseAttributeGroup()
		if err != nil {
			return nil, err
		}
		ref.Groups = append(ref.Groups, *g)
	}
	return ref, nil
}

func (p *Parser) parseAttributeGroup() (*AttributeGroup, error) {
	g := &AttributeGroup{}
	if p.cur().Kind == TokLBrace {
		p.advance()
		card, err := p.maybeCardinality()
		if err != nil {
			return nil, err
		}
		g.Cardinality = card
		attr, err := p.parseAttributeConstraint()
		if err != nil {
			return nil, err
		}
		g.Attributes = append(g.Attributes, *attr)
		for p.cur().Kind == TokComma {
			p.advance()
			attr, err := p.parseAttributeConstraint()
			if err != nil {
				return nil, err
			}
			g.Attributes = append(g.Attributes, *attr)
		}
		if _, err := p.expect(TokRBrace); err != nil {
			return nil, err
		}
		return g, nil
	}
	attr, err := p.parseAttributeConstraint()
	if err != nil {
		return nil, err
	}
	g.Attributes = append(g.Attributes, *attr)
	return g, nil
}

func (p *Parser) maybeCardinality() (*Cardinality, error) {
	if p.cur().Kind != TokInteger {
		return nil, nil
	}
	minTok := p.advance()
	min, err := strconv.Atoi(minTok.Raw)
	if err != nil {
		return nil, p.errorf("invalid cardinality minimum %q", minTok.Raw)
	}
	if _, err := p.expect(TokDot); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokDot); err != nil {
		return nil, err
	}
	max := -1
	if p.cur().Kind == TokStar {
		p.advance()
	} else {
		maxTok, err := p.expect(TokInteger)
		if err != nil {
			return nil, err
		}
		max, err = strconv.Atoi(maxTok.Raw)
		if err != nil {
			return nil, p.errorf("invalid cardinality maximum %q", maxTok.Raw)
		}
	}
	return &Cardinality{Min: min, Max: max}, nil
}

func (p *Parser) parseAttributeConstraint() (*AttributeConstraint, error) {
	a := &AttributeConstraint{}
	if p.cur().Kind == TokR {
		p.advance()
		a.Reversed = true
	}
	name, err := p.parseConstraint()
	if err != nil {
		return nil, err
	}
	a.Name = name

	switch p.cur().Kind {
	case TokEq:
		a.Comparison = CompEquals
		p.advance()
	case TokNotEq:
		a.Comparison = CompNotEq
		p.advance()
	case TokLt:
		a.Comparison = CompLess
		p.advance()
	case TokLtEq:
		a.Comparison = CompLessEq
		p.advance()
	case TokGt:
		a.Comparison = CompGreater
		p.advance()
	case TokGtEq:
		a.Comparison = CompGreaterEq
		p.advance()
	default:
		return nil, p.errorf("expected a comparison operator in attribute constraint, got %s", p.cur().Kind)
	}

	if a.Comparison.Relational() {
		// Ordering comparisons are defined over concrete numerics only;
		// a concept reference has no ordering.
		switch p.cur().Kind {
		case TokInteger, TokDecimal:
		default:
			return nil, p.errorf("comparison %q requires a numeric value, got %s", a.Comparison, p.cur().Kind)
		}
	}

	if p.cur().Kind == TokString {
		t := p.advance()
		a.Concrete = &ConcreteValue{Kind: ConcreteString, Raw: t.Raw}
		return a, nil
	}
	if p.cur().Kind == TokDecimal {
		t := p.advance()
		a.Concrete = &ConcreteValue{Kind: ConcreteDecimal, Raw: t.Raw}
		return a, nil
	}
	if p.cur().Kind == TokInteger {
		// A bare short numeral here is a concrete integer value, not a
		// concept reference: concept references lex as SCTID (6-18
		// digits) or are wrapped in a nested expression.
		t := p.advance()
		a.Concrete = &ConcreteValue{Kind: ConcreteInteger, Raw: t.Raw}
		return a, nil
	}
	if p.cur().Kind == TokLParen {
		p.advance()
		val, err := p.parseSubExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		a.Value = val
		return a, nil
	}
	val, err := p.parseSubExpression()
	if err != nil {
		return nil, err
	}
	a.Value = val
	return a, nil
}
