package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// ASTNode is a parsed formula. nodes hold absolute addresses, so the same
// tree evaluates identically wherever it is stored; structural edits rewrite
// the tree and render it back through ToString.
type ASTNode interface {
	GetPosition() NodePosition
	ToString() string
	precedence() int
}

// binding strength used to render minimal parentheses
const (
	precAdditive = iota + 1
	precMultiplicative
	precUnary
	precPrimary
)

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) GetPosition() NodePosition { return n.Position }
func (n *NumberNode) precedence() int           { return precPrimary }

func (n *NumberNode) ToString() string {
	return FormatNumber(n.Value)
}

// CellRefNode represents a reference to a single cell
type CellRefNode struct {
	Address  CellAddress
	Position NodePosition
}

func (n *CellRefNode) GetPosition() NodePosition { return n.Position }
func (n *CellRefNode) precedence() int           { return precPrimary }

func (n *CellRefNode) ToString() string {
	return n.Address.String()
}

// RangeNode represents a rectangular range. it only appears as a direct
// argument of an aggregate function.
type RangeNode struct {
	Range    RangeAddress
	Position NodePosition
}

func (n *RangeNode) GetPosition() NodePosition { return n.Position }
func (n *RangeNode) precedence() int           { return precPrimary }

func (n *RangeNode) ToString() string {
	return n.Range.String()
}

// RefErrorNode is a reference whose target was removed by a row or column
// deletion
type RefErrorNode struct {
	Position NodePosition
}

func (n *RefErrorNode) GetPosition() NodePosition { return n.Position }
func (n *RefErrorNode) precedence() int           { return precPrimary }

func (n *RefErrorNode) ToString() string {
	return refErrorLiteral
}

// BinaryOpNode represents a binary arithmetic operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

func (n *BinaryOpNode) GetPosition() NodePosition { return n.Position }

func (n *BinaryOpNode) precedence() int {
	if n.Op == BinOpMultiply || n.Op == BinOpDivide {
		return precMultiplicative
	}
	return precAdditive
}

func (n *BinaryOpNode) ToString() string {
	prec := n.precedence()
	left := n.Left.ToString()
	if n.Left.precedence() < prec {
		left = "(" + left + ")"
	}
	// operators are left-associative, so an equal-precedence right operand
	// keeps its parentheses
	right := n.Right.ToString()
	if n.Right.precedence() <= prec {
		right = "(" + right + ")"
	}
	return left + n.Op.String() + right
}

func (op BinaryOp) String() string {
	switch op {
	case BinOpAdd:
		return "+"
	case BinOpSubtract:
		return "-"
	case BinOpMultiply:
		return "*"
	case BinOpDivide:
		return "/"
	default:
		return "?"
	}
}

// UnaryOpNode represents a sign applied to an operand
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) GetPosition() NodePosition { return n.Position }
func (n *UnaryOpNode) precedence() int           { return precUnary }

func (n *UnaryOpNode) ToString() string {
	opStr := "+"
	if n.Op == UnaryOpMinus {
		opStr = "-"
	}
	operand := n.Operand.ToString()
	if n.Operand.precedence() < precUnary {
		operand = "(" + operand + ")"
	}
	return opStr + operand
}

// FunctionCallNode represents a call to one of the built-in functions. Name
// is always upper case.
type FunctionCallNode struct {
	Name     string
	Args     []ASTNode
	Position NodePosition
}

func (n *FunctionCallNode) GetPosition() NodePosition { return n.Position }
func (n *FunctionCallNode) precedence() int           { return precPrimary }

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

// FormatFormula renders an AST back to formula text, including the leading
// '='
func FormatFormula(node ASTNode) string {
	return "=" + node.ToString()
}

// Parser parses tokens into an AST
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser creates a new parser over tokens produced by Lexer.Tokenize
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseFormula lexes and parses formula text (with its leading '='). every
// failure is a *SpreadsheetError with ErrorCodeParse.
func ParseFormula(text string) (ASTNode, error) {
	tokens, err := NewLexer(text).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, error) {
	if len(p.tokens) == 0 {
		return nil, parseError("no tokens to parse")
	}

	// expect and skip the equals prefix
	if p.tokens[p.pos].Type != TokenEquals {
		return nil, parseError("formula must start with '='")
	}
	p.pos++

	if p.peekType() == TokenEOF {
		return nil, parseError("empty formula")
	}

	node, err := p.parseExpression(precAdditive)
	if err != nil {
		return nil, err
	}

	// ensure we've consumed all tokens except EOF
	if p.peekType() != TokenEOF {
		return nil, parseError(fmt.Sprintf("unexpected token after expression: %s", p.tokens[p.pos].Value))
	}

	return node, nil
}

func (p *Parser) peekType() TokenType {
	if p.pos >= len(p.tokens) {
		return TokenEOF
	}
	return p.tokens[p.pos].Type
}

// binaryOperators maps operator text to its AST operator and binding
// strength
var binaryOperators = map[string]struct {
	op   BinaryOp
	prec int
}{
	"+": {BinOpAdd, precAdditive},
	"-": {BinOpSubtract, precAdditive},
	"*": {BinOpMultiply, precMultiplicative},
	"/": {BinOpDivide, precMultiplicative},
}

// parseExpression parses a chain of binary operators binding at least as
// tightly as minPrec. operators are left-associative.
func (p *Parser) parseExpression(minPrec int) (ASTNode, error) {
	var (
		left ASTNode
		err  error
	)
	if minPrec >= precMultiplicative {
		left, err = p.parseUnary()
	} else {
		left, err = p.parseExpression(minPrec + 1)
	}
	if err != nil {
		return nil, err
	}

	for p.peekType() == TokenBinaryOp {
		binOp, ok := binaryOperators[p.tokens[p.pos].Value]
		if !ok || binOp.prec != minPrec {
			break
		}
		p.pos++

		var right ASTNode
		if minPrec >= precMultiplicative {
			right, err = p.parseUnary()
		} else {
			right, err = p.parseExpression(minPrec + 1)
		}
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{
			Op:       binOp.op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}
	return left, nil
}

// parseUnary handles unary operators
func (p *Parser) parseUnary() (ASTNode, error) {
	if p.peekType() != TokenUnaryPrefixOp {
		return p.parsePrimary()
	}

	tok := p.tokens[p.pos]
	op := UnaryOpPlus
	if tok.Value == "-" {
		op = UnaryOpMinus
	}

	p.pos++
	operand, err := p.parseUnary() // recurse for chained unary operators
	if err != nil {
		return nil, err
	}

	return &UnaryOpNode{
		Op:       op,
		Operand:  operand,
		Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
	}, nil
}

// parsePrimary handles literals, references, calls and parentheses
func (p *Parser) parsePrimary() (ASTNode, error) {
	if p.pos >= len(p.tokens) || p.peekType() == TokenEOF {
		return nil, parseError("unexpected end of expression")
	}

	tok := p.tokens[p.pos]
	span := NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)}

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, parseError(fmt.Sprintf("invalid number: %s", tok.Value))
		}
		return &NumberNode{Value: val, Position: span}, nil

	case TokenCell:
		p.pos++
		addr, err := ParseAddress(tok.Value)
		if err != nil {
			return nil, parseError(err.Error())
		}
		return &CellRefNode{Address: addr, Position: span}, nil

	case TokenRange:
		return nil, parseError(fmt.Sprintf("range %s is only allowed as an aggregate argument", tok.Value))

	case TokenRefError:
		p.pos++
		return &RefErrorNode{Position: span}, nil

	case TokenIdentifier:
		return nil, parseError(fmt.Sprintf("unknown name: %s", tok.Value))

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseExpression(precAdditive)
		if err != nil {
			return nil, err
		}

		if p.peekType() != TokenRightParen {
			return nil, parseError("expected closing parenthesis")
		}
		p.pos++

		return node, nil

	default:
		return nil, parseError(fmt.Sprintf("unexpected token: %s", tok.Value))
	}
}

// parseFunctionCall parses a call and checks it against the function
// catalog, so an unknown name or a bad argument list never reaches
// evaluation
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	funcTok := p.tokens[p.pos]
	funcName := strings.ToUpper(funcTok.Value)
	startPos := funcTok.Pos
	p.pos++

	spec, known := functionCatalog[funcName]
	if !known {
		return nil, parseError(fmt.Sprintf("unknown function: %s", funcName))
	}

	// expect opening parenthesis
	if p.peekType() != TokenLeftParen {
		return nil, parseError("expected '(' after function name")
	}
	p.pos++

	args := []ASTNode{}
	if p.peekType() == TokenRightParen {
		p.pos++
	} else {
		for {
			arg, err := p.parseArgument(spec)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.peekType() == TokenRightParen {
				p.pos++
				break
			}
			if p.peekType() != TokenComma {
				return nil, parseError("expected ',' or ')' in function arguments")
			}
			p.pos++
		}
	}

	if err := spec.checkArity(funcName, len(args)); err != nil {
		return nil, err
	}

	return &FunctionCallNode{
		Name:     funcName,
		Args:     args,
		Position: NodePosition{Start: startPos, End: p.tokens[p.pos-1].Pos + 1},
	}, nil
}

// parseArgument parses one call argument. a bare range is accepted only as
// a whole argument of an aggregate.
func (p *Parser) parseArgument(spec functionSpec) (ASTNode, error) {
	if p.peekType() == TokenRange && spec.kind == functionKindAggregate {
		tok := p.tokens[p.pos]
		next := TokenEOF
		if p.pos+1 < len(p.tokens) {
			next = p.tokens[p.pos+1].Type
		}
		if next == TokenComma || next == TokenRightParen {
			p.pos++
			r, err := ParseRange(tok.Value)
			if err != nil {
				return nil, parseError(err.Error())
			}
			return &RangeNode{Range: r, Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)}}, nil
		}
	}
	return p.parseExpression(precAdditive)
}

// CollectReferences returns the addresses an AST reads that fall inside
// bounds, with ranges expanded to their members. duplicates are removed,
// order is not significant. references outside bounds can never hold a
// value, so they carry no dependency edge.
func CollectReferences(node ASTNode, bounds RangeAddress) []CellAddress {
	seen := make(map[CellAddress]struct{})
	var refs []CellAddress
	add := func(addr CellAddress) {
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		refs = append(refs, addr)
	}

	var walk func(ASTNode)
	walk = func(n ASTNode) {
		switch n := n.(type) {
		case *CellRefNode:
			if bounds.Contains(n.Address) {
				add(n.Address)
			}
		case *RangeNode:
			clipped, ok := n.Range.Intersect(bounds)
			if !ok {
				return
			}
			for addr := range clipped.Cells() {
				add(addr)
			}
		case *BinaryOpNode:
			walk(n.Left)
			walk(n.Right)
		case *UnaryOpNode:
			walk(n.Operand)
		case *FunctionCallNode:
			for _, arg := range n.Args {
				walk(arg)
			}
		}
	}
	walk(node)
	return refs
}
