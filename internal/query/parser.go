package query

import (
	"github.com/kensaku-io/kensaku/internal/models"
)

// Parse builds an operator-precedence AST from a token stream.
// Precedence, high to low: NOT, AND, OR; parentheses override. Two adjacent
// operands with no explicit operator imply AND. Empty input yields MatchAll.
func Parse(tokens []Token) (Node, error) {
	if len(tokens) == 0 {
		return &MatchAll{}, nil
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		// A leftover token here can only be an unmatched right paren.
		return nil, &ParseError{Kind: UnbalancedParens, Position: p.peek().Pos}
	}
	return node, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) eof() bool    { return p.pos >= len(p.tokens) }
func (p *parser) peek() Token  { return p.tokens[p.pos] }
func (p *parser) advance() Token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) endPosition() int {
	last := p.tokens[len(p.tokens)-1]
	return last.Pos + len(last.Text)
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []Node{left}
	for !p.eof() && p.peek().Kind == TokenOr {
		op := p.advance()
		if p.eof() {
			return nil, &ParseError{Kind: DanglingOperator, Position: op.Pos}
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &Or{Children: children}, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	children := []Node{left}
	for !p.eof() {
		t := p.peek()
		if t.Kind == TokenAnd {
			op := p.advance()
			if p.eof() {
				return nil, &ParseError{Kind: DanglingOperator, Position: op.Pos}
			}
		} else if !startsOperand(t.Kind) {
			break
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &And{Children: children}, nil
}

func (p *parser) parseNot() (Node, error) {
	if !p.eof() && p.peek().Kind == TokenNot {
		op := p.advance()
		if p.eof() {
			return nil, &ParseError{Kind: DanglingOperator, Position: op.Pos}
		}
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Child: child}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	if p.eof() {
		return nil, &ParseError{Kind: DanglingOperator, Position: p.endPosition()}
	}
	t := p.advance()
	switch t.Kind {
	case TokenTerm:
		return &Term{Value: t.Text}, nil
	case TokenPhrase:
		return &Phrase{Words: PhraseWords(t.Text)}, nil
	case TokenFieldValue:
		return &FieldMatch{Field: t.Field, Op: models.OpContains, Value: t.Value}, nil
	case TokenRange:
		return &FieldMatch{Field: t.Field, Op: rangeCompareOp(t.Op), Value: t.Value, Value2: t.Value2}, nil
	case TokenLParen:
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.eof() || p.peek().Kind != TokenRParen {
			return nil, &ParseError{Kind: UnbalancedParens, Position: t.Pos}
		}
		p.advance()
		return node, nil
	case TokenRParen:
		return nil, &ParseError{Kind: UnbalancedParens, Position: t.Pos}
	default:
		// AND/OR in operand position.
		return nil, &ParseError{Kind: DanglingOperator, Position: t.Pos}
	}
}

func startsOperand(k TokenKind) bool {
	switch k {
	case TokenTerm, TokenPhrase, TokenFieldValue, TokenRange, TokenNot, TokenLParen:
		return true
	}
	return false
}

func rangeCompareOp(op RangeOp) models.CompareOp {
	switch op {
	case RangeGreater:
		return models.OpGreaterThan
	case RangeLess:
		return models.OpLessThan
	default:
		return models.OpBetween
	}
}
