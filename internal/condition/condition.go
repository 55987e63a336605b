// Package condition implements the restricted guard expression language used
// on conditional directives and workflow steps. The grammar is closed:
// comparisons, membership, and boolean combinators over a read-only context
// map. There is no function call syntax and no dynamic code execution.
//
// Grammar:
//
//	expr       := or
//	or         := and ( "or" and )*
//	and        := unary ( "and" unary )*
//	unary      := "not" unary | primary
//	primary    := "(" expr ")" | comparison
//	comparison := operand [ ("==" | "!=") operand | "in" list ]
//	list       := "(" operand ( "," operand )* ")"
//	operand    := quoted string | bare word
//
// A bare word resolves to the context value under that key when the key is
// present, otherwise to its literal text. A bare comparison-less operand is
// truthy when the context holds a non-empty value for it.
package condition

import (
	"fmt"
	"strings"
	"unicode"
)

// Eval parses and evaluates a guard expression against a context map.
// A malformed expression returns an error; it never panics.
func Eval(expr string, ctx map[string]string) (bool, error) {
	toks, err := lex(expr)
	if err != nil {
		return false, err
	}
	if len(toks) == 0 {
		return false, fmt.Errorf("empty condition expression")
	}

	p := &parser{toks: toks, ctx: ctx}
	result, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if !p.done() {
		return false, fmt.Errorf("unexpected token %q in condition", p.peek().text)
	}
	return result, nil
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokEq
	tokNeq
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var toks []token
	runes := []rune(input)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case r == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case r == '=':
			if i+1 >= len(runes) || runes[i+1] != '=' {
				return nil, fmt.Errorf("single '=' at offset %d; use '=='", i)
			}
			toks = append(toks, token{tokEq, "=="})
			i += 2
		case r == '!':
			if i+1 >= len(runes) || runes[i+1] != '=' {
				return nil, fmt.Errorf("stray '!' at offset %d", i)
			}
			toks = append(toks, token{tokNeq, "!="})
			i += 2
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			toks = append(toks, token{tokString, string(runes[i+1 : j])})
			i = j + 1
		case isWordRune(r):
			j := i
			for j < len(runes) && isWordRune(runes[j]) {
				j++
			}
			toks = append(toks, token{tokWord, string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
		}
	}

	return toks, nil
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		r == '_' || r == '-' || r == '.' || r == '/'
}

type parser struct {
	toks []token
	pos  int
	ctx  map[string]string
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.done() {
		return false
	}
	t := p.peek()
	if t.kind == tokWord && strings.EqualFold(t.text, kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (bool, error) {
	left, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for p.acceptKeyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		left = left || right
	}
	return left, nil
}

func (p *parser) parseAnd() (bool, error) {
	left, err := p.parseUnary()
	if err != nil {
		return false, err
	}
	for p.acceptKeyword("and") {
		right, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		left = left && right
	}
	return left, nil
}

func (p *parser) parseUnary() (bool, error) {
	if p.acceptKeyword("not") {
		inner, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		return !inner, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (bool, error) {
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if p.peek().kind != tokRParen {
			return false, fmt.Errorf("missing ')' in condition")
		}
		p.next()
		return inner, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (bool, error) {
	left, isKey, err := p.parseOperand()
	if err != nil {
		return false, err
	}

	switch {
	case p.peek().kind == tokEq:
		p.next()
		right, _, err := p.parseOperand()
		if err != nil {
			return false, err
		}
		return p.resolve(left, isKey) == right, nil

	case p.peek().kind == tokNeq:
		p.next()
		right, _, err := p.parseOperand()
		if err != nil {
			return false, err
		}
		return p.resolve(left, isKey) != right, nil

	case p.acceptKeyword("in"):
		values, err := p.parseList()
		if err != nil {
			return false, err
		}
		resolved := p.resolve(left, isKey)
		for _, v := range values {
			if resolved == v {
				return true, nil
			}
		}
		return false, nil

	default:
		// Bare operand: truthy when the context has a non-empty value.
		if !isKey {
			return left != "", nil
		}
		v, ok := p.ctx[left]
		return ok && v != "", nil
	}
}

// parseOperand returns the operand text and whether it was a bare word
// (a candidate context key) rather than a quoted literal.
func (p *parser) parseOperand() (string, bool, error) {
	if p.done() {
		return "", false, fmt.Errorf("unexpected end of condition, expected operand")
	}
	t := p.peek()
	switch t.kind {
	case tokString:
		p.next()
		return t.text, false, nil
	case tokWord:
		if isReserved(t.text) {
			return "", false, fmt.Errorf("reserved word %q used as operand", t.text)
		}
		p.next()
		return t.text, true, nil
	default:
		return "", false, fmt.Errorf("expected operand, got %q", t.text)
	}
}

func (p *parser) parseList() ([]string, error) {
	if p.peek().kind != tokLParen {
		return nil, fmt.Errorf("expected '(' after 'in'")
	}
	p.next()

	var values []string
	for {
		v, _, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		values = append(values, v)

		switch p.peek().kind {
		case tokComma:
			p.next()
		case tokRParen:
			p.next()
			return values, nil
		default:
			return nil, fmt.Errorf("expected ',' or ')' in membership list")
		}
	}
}

// resolve maps a bare-word operand through the context when the key exists;
// quoted literals and unknown words pass through as literal text.
func (p *parser) resolve(text string, isKey bool) string {
	if isKey {
		if v, ok := p.ctx[text]; ok {
			return v
		}
	}
	return text
}

func isReserved(word string) bool {
	switch strings.ToLower(word) {
	case "and", "or", "not", "in":
		return true
	}
	return false
}
