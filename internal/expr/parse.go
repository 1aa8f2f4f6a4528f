package expr

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/einsgrad-ml/einsgrad/internal/index"
)

// ErrSyntax is returned for text that does not parse as an expression.
var ErrSyntax = errors.New("expr: syntax error")

// Parse reads a single expression from its textual form, e.g.
// "mul(w[i, j], x[j])". Whitespace between tokens is ignored.
func Parse(src string) (Expr, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokEOF); err != nil {
		return nil, err
	}
	return e, nil
}

// ParseEquation reads an equation of the form "lhs = rhs".
func ParseEquation(src string) (*Eq, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	lhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokEquals); err != nil {
		return nil, err
	}
	rhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokEOF); err != nil {
		return nil, err
	}
	return &Eq{LHS: lhs, RHS: rhs}, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber
	tokLParen
	tokRParen
	tokLBrack
	tokRBrack
	tokComma
	tokEquals
)

func (k tokKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBrack:
		return "'['"
	case tokRBrack:
		return "']'"
	case tokComma:
		return "','"
	case tokEquals:
		return "'='"
	default:
		return "unknown token"
	}
}

type token struct {
	kind tokKind
	text string
	off  int
}

type parser struct {
	toks []token
	pos  int
}

func newParser(src string) (*parser, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	return &parser{toks: toks}, nil
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '[':
			toks = append(toks, token{tokLBrack, "[", i})
			i++
		case c == ']':
			toks = append(toks, token{tokRBrack, "]", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '=':
			toks = append(toks, token{tokEquals, "=", i})
			i++
		case isIdentStart(c):
			start := i
			i++
			for i < len(src) && isIdentRest(src[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, src[start:i], start})
		case c >= '0' && c <= '9' || c == '-' || c == '.':
			start := i
			if c == '-' {
				i++
				if i >= len(src) || !(src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
					return nil, fmt.Errorf("%w: dangling '-' at offset %d", ErrSyntax, start)
				}
			}
			for i < len(src) && isNumberRest(src[i]) {
				i++
			}
			toks = append(toks, token{tokNumber, src[start:i], start})
		default:
			return nil, fmt.Errorf("%w: unexpected character %q at offset %d", ErrSyntax, c, i)
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '?'
}

func isIdentRest(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

func isNumberRest(c byte) bool {
	return c >= '0' && c <= '9' || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-'
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokKind) error {
	t := p.next()
	if t.kind != k {
		return fmt.Errorf("%w: want %s, got %s %q at offset %d", ErrSyntax, k, t.kind, t.text, t.off)
	}
	return nil
}

func (p *parser) parseExpr() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q at offset %d", ErrSyntax, t.text, t.off)
		}
		return &Lit{Value: v}, nil
	case tokIdent:
		switch p.peek().kind {
		case tokLParen:
			p.next()
			return p.parseCall(t.text)
		case tokLBrack:
			p.next()
			return p.parseIndexedVar(t.text)
		default:
			return &Var{Name: t.text}, nil
		}
	default:
		return nil, fmt.Errorf("%w: want expression, got %s %q at offset %d", ErrSyntax, t.kind, t.text, t.off)
	}
}

func (p *parser) parseCall(op string) (Expr, error) {
	var args []Expr
	if p.peek().kind == tokRParen {
		p.next()
		return &Call{Op: op}, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		t := p.next()
		if t.kind == tokRParen {
			return &Call{Op: op, Args: args}, nil
		}
		if t.kind != tokComma {
			return nil, fmt.Errorf("%w: want ',' or ')', got %s %q at offset %d", ErrSyntax, t.kind, t.text, t.off)
		}
	}
}

func (p *parser) parseIndexedVar(name string) (Expr, error) {
	var ixs []index.Index
	for {
		t := p.next()
		if t.kind != tokIdent {
			return nil, fmt.Errorf("%w: want index symbol, got %s %q at offset %d", ErrSyntax, t.kind, t.text, t.off)
		}
		ixs = append(ixs, index.Index(t.text))
		t = p.next()
		if t.kind == tokRBrack {
			return &Var{Name: name, Indices: ixs}, nil
		}
		if t.kind != tokComma {
			return nil, fmt.Errorf("%w: want ',' or ']', got %s %q at offset %d", ErrSyntax, t.kind, t.text, t.off)
		}
	}
}
