package expression

import (
	"fmt"
	"strings"
)

// Parse compiles an expression into an AST.
//
// Precedence from loosest to tightest: or, and, not, comparison, additive,
// multiplicative, unary minus, primary. Keywords are case-insensitive.
func Parse(input string) (*Node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("empty expression")
	}

	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, fmt.Errorf("unexpected %s at %d", tok, tok.pos)
	}
	return node, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) isKeyword(word string) bool {
	tok := p.peek()
	return tok.kind == tokenIdent && strings.EqualFold(tok.text, word)
}

func (p *parser) isOperator(ops ...string) (string, bool) {
	tok := p.peek()
	if tok.kind != tokenOperator {
		return "", false
	}
	for _, op := range ops {
		if tok.text == op {
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		_, sym := p.isOperator("||")
		if !sym && !p.isKeyword("or") {
			return left, nil
		}
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Node{Type: NodeTypeBinary, Op: OpOr, Left: left, Right: right}
	}
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		_, sym := p.isOperator("&&")
		if !sym && !p.isKeyword("and") {
			return left, nil
		}
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Node{Type: NodeTypeBinary, Op: OpAnd, Left: left, Right: right}
	}
}

func (p *parser) parseNot() (*Node, error) {
	_, sym := p.isOperator("!")
	if sym || p.isKeyword("not") {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Node{Type: NodeTypeUnary, Op: OpNot, Left: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (*Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := p.isOperator("==", "!=", "<=", ">=", "<", ">")
	if !ok {
		return left, nil
	}
	p.next()
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	node := &Node{Type: NodeTypeBinary, Op: Operator(op), Left: left, Right: right}

	// a < b < c is almost always a mistake
	if _, chained := p.isOperator("==", "!=", "<=", ">=", "<", ">"); chained {
		tok := p.peek()
		return nil, fmt.Errorf("chained comparison at %d", tok.pos)
	}
	return node, nil
}

func (p *parser) parseAdditive() (*Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOperator("+", "-")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Node{Type: NodeTypeBinary, Op: Operator(op), Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOperator("*", "/", "%")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Node{Type: NodeTypeBinary, Op: Operator(op), Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (*Node, error) {
	if _, ok := p.isOperator("-"); ok {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if operand.Type == NodeTypeConstant {
			if x, ok := operand.Value.(float64); ok {
				return &Node{Type: NodeTypeConstant, Value: -x}, nil
			}
		}
		return &Node{Type: NodeTypeUnary, Op: OpNegate, Left: operand}, nil
	}
	if _, ok := p.isOperator("+"); ok {
		p.next()
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Node, error) {
	tok := p.next()

	switch tok.kind {
	case tokenNumber:
		return &Node{Type: NodeTypeConstant, Value: tok.num}, nil

	case tokenString:
		return &Node{Type: NodeTypeConstant, Value: tok.text}, nil

	case tokenLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokenRParen {
			return nil, fmt.Errorf("expected ) at %d, got %s", closing.pos, closing)
		}
		return inner, nil

	case tokenIdent:
		return p.parseIdentifier(tok)
	}

	return nil, fmt.Errorf("unexpected %s at %d", tok, tok.pos)
}

func (p *parser) parseIdentifier(tok token) (*Node, error) {
	word := strings.ToLower(tok.text)

	if p.peek().kind == tokenLParen {
		if !isKnownFunction(word) {
			return nil, fmt.Errorf("unknown function %q at %d", tok.text, tok.pos)
		}
		p.next()
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return &Node{Type: NodeTypeCall, Name: word, Args: args}, nil
	}

	if p.peek().kind != tokenDot {
		switch word {
		case "true":
			return &Node{Type: NodeTypeConstant, Value: true}, nil
		case "false":
			return &Node{Type: NodeTypeConstant, Value: false}, nil
		case "null", "nil", "none":
			return &Node{Type: NodeTypeConstant, Value: nil}, nil
		case "and", "or", "not":
			return nil, fmt.Errorf("unexpected keyword %q at %d", tok.text, tok.pos)
		}
		if c, ok := constants[word]; ok {
			return &Node{Type: NodeTypeConstant, Value: c}, nil
		}
	}

	path := []string{tok.text}
	for {
		next := p.peek()
		switch {
		case next.kind == tokenDot:
			p.next()
			seg := p.next()
			if seg.kind != tokenIdent {
				return nil, fmt.Errorf("expected field name after . at %d", seg.pos)
			}
			path = append(path, seg.text)
			continue
		case next.kind == tokenNumber && strings.HasPrefix(next.text, "."):
			// numeric keys such as ts.minute.45 lex as a fractional number
			p.next()
			path = append(path, next.text[1:])
			continue
		}
		break
	}
	return &Node{Type: NodeTypeField, Path: path}, nil
}

func (p *parser) parseArgs() ([]*Node, error) {
	var args []*Node
	if p.peek().kind == tokenRParen {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tok := p.next()
		switch tok.kind {
		case tokenComma:
			continue
		case tokenRParen:
			return args, nil
		default:
			return nil, fmt.Errorf("expected , or ) at %d, got %s", tok.pos, tok)
		}
	}
}
