// Package eval evaluates rule conditions: a closed boolean-expression
// grammar over string/number literals, a fixed set of bound
// identifiers and the operators ==, !=, and, or, not. There are no
// calls, attribute accesses or assignments, so untrusted rule content
// cannot execute anything.
//
//	ok, err := eval.Evaluate("short == 'XSS_FOUND'", map[string]string{"short": s})
package eval

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Error reports a condition that failed to parse or did not evaluate
// to a boolean.
type Error struct {
	Expr   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("evaluate %q: %s", e.Expr, e.Reason)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokEq
	tokNeq
	tokAnd
	tokOr
	tokNot
	tokTrue
	tokFalse
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type valueKind int

const (
	valString valueKind = iota
	valNumber
	valBool
)

// value is the tagged result of evaluating a subexpression.
type value struct {
	kind valueKind
	str  string
	num  float64
	b    bool
}

// Evaluate parses expr and evaluates it against bindings. Identifiers
// resolve only to the supplied binding names; anything else, and any
// construct outside the grammar, fails with *Error. The result must be
// a boolean.
func Evaluate(expr string, bindings map[string]string) (bool, error) {
	toks, err := lex(expr)
	if err != nil {
		return false, &Error{Expr: expr, Reason: err.Error()}
	}

	p := &parser{expr: expr, toks: toks, bindings: bindings}
	v, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.peek().kind != tokEOF {
		return false, p.errorf("unexpected %q", p.peek().text)
	}
	if v.kind != valBool {
		return false, &Error{Expr: expr, Reason: "expression is not a boolean"}
	}
	return v.b, nil
}

func lex(expr string) ([]token, error) {
	var toks []token
	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == '=':
			if i+1 < len(runes) && runes[i+1] == '=' {
				toks = append(toks, token{kind: tokEq, text: "==", pos: i})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected '=' at position %d", i)
			}
		case r == '!':
			if i+1 < len(runes) && runes[i+1] == '=' {
				toks = append(toks, token{kind: tokNeq, text: "!=", pos: i})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected '!' at position %d", i)
			}
		case r == '\'' || r == '"':
			quote := r
			start := i
			i++
			var sb strings.Builder
			for i < len(runes) && runes[i] != quote {
				if runes[i] == '\\' && i+1 < len(runes) {
					i++
				}
				sb.WriteRune(runes[i])
				i++
			}
			if i >= len(runes) {
				return nil, fmt.Errorf("unterminated string at position %d", start)
			}
			i++ // closing quote
			toks = append(toks, token{kind: tokString, text: sb.String(), pos: start})
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			i++
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			text := string(runes[start:i])
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", text, start)
			}
			toks = append(toks, token{kind: tokNumber, text: text, pos: start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			text := string(runes[start:i])
			kind := tokIdent
			switch text {
			case "and":
				kind = tokAnd
			case "or":
				kind = tokOr
			case "not":
				kind = tokNot
			case "true", "True":
				kind = tokTrue
			case "false", "False":
				kind = tokFalse
			}
			toks = append(toks, token{kind: kind, text: text, pos: start})
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", string(r), i)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(runes)})
	return toks, nil
}

// parser is a recursive-descent parser that evaluates as it parses.
// Evaluation is pure, so there is no observable difference to building
// an AST first, and conditions are short enough that laziness on
// and/or would buy nothing.
type parser struct {
	expr     string
	toks     []token
	pos      int
	bindings map[string]string
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &Error{Expr: p.expr, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (value, error) {
	left, err := p.parseAnd()
	if err != nil {
		return value{}, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return value{}, err
		}
		if left.kind != valBool || right.kind != valBool {
			return value{}, p.errorf("'or' requires boolean operands")
		}
		left = value{kind: valBool, b: left.b || right.b}
	}
	return left, nil
}

func (p *parser) parseAnd() (value, error) {
	left, err := p.parseNot()
	if err != nil {
		return value{}, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return value{}, err
		}
		if left.kind != valBool || right.kind != valBool {
			return value{}, p.errorf("'and' requires boolean operands")
		}
		left = value{kind: valBool, b: left.b && right.b}
	}
	return left, nil
}

func (p *parser) parseNot() (value, error) {
	if p.peek().kind == tokNot {
		p.next()
		v, err := p.parseNot()
		if err != nil {
			return value{}, err
		}
		if v.kind != valBool {
			return value{}, p.errorf("'not' requires a boolean operand")
		}
		return value{kind: valBool, b: !v.b}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (value, error) {
	left, err := p.parseOperand()
	if err != nil {
		return value{}, err
	}
	kind := p.peek().kind
	if kind != tokEq && kind != tokNeq {
		return left, nil
	}
	p.next()
	right, err := p.parseOperand()
	if err != nil {
		return value{}, err
	}
	eq := equal(left, right)
	if kind == tokNeq {
		eq = !eq
	}
	return value{kind: valBool, b: eq}, nil
}

func (p *parser) parseOperand() (value, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return value{kind: valString, str: t.text}, nil
	case tokNumber:
		n, _ := strconv.ParseFloat(t.text, 64)
		return value{kind: valNumber, num: n}, nil
	case tokTrue:
		return value{kind: valBool, b: true}, nil
	case tokFalse:
		return value{kind: valBool, b: false}, nil
	case tokIdent:
		s, ok := p.bindings[t.text]
		if !ok {
			return value{}, p.errorf("unknown identifier %q", t.text)
		}
		return value{kind: valString, str: s}, nil
	case tokLParen:
		v, err := p.parseOr()
		if err != nil {
			return value{}, err
		}
		if p.next().kind != tokRParen {
			return value{}, p.errorf("missing closing parenthesis")
		}
		return v, nil
	case tokEOF:
		return value{}, p.errorf("unexpected end of expression")
	default:
		return value{}, p.errorf("unexpected %q", t.text)
	}
}

// equal compares two values. Values of different kinds are never
// equal, matching the comparison semantics of the rule language the
// conditions were originally written in.
func equal(a, b value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case valString:
		return a.str == b.str
	case valNumber:
		return a.num == b.num
	default:
		return a.b == b.b
	}
}
