package spreadsheet

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenEquals
	TokenNumber
	TokenCell
	TokenRange
	TokenRefError
	TokenFunction
	TokenUnaryPrefixOp
	TokenBinaryOp
	TokenComma
	TokenColon
	TokenLeftParen
	TokenRightParen
	TokenIdentifier
	TokenError
)

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
)

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
)

// refErrorLiteral is how a reference destroyed by a row or column deletion
// is spelled in formula text
const refErrorLiteral = "#REF!"

// Token is one lexeme. Pos counts runes from the start of the formula.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// tokenSet is a bitset over TokenType
type tokenSet uint32

func setOf(types ...TokenType) tokenSet {
	var s tokenSet
	for _, t := range types {
		s |= 1 << t
	}
	return s
}

func (s tokenSet) has(t TokenType) bool { return s&(1<<t) != 0 }

// TokenState is the kind of token the lexer accepted last. it decides which
// token types may come next.
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterEquals
	StateAfterValue
	StateAfterOperator
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterComma
	StateAfterIdentifier
)

var (
	// tokens that open an operand. ranges are let through everywhere; the
	// parser decides where they are legal.
	operandStart = setOf(TokenNumber, TokenCell, TokenRange, TokenRefError, TokenFunction,
		TokenIdentifier, TokenLeftParen, TokenUnaryPrefixOp)

	// tokens that may follow a complete operand
	operandEnd = setOf(TokenBinaryOp, TokenRightParen, TokenComma, TokenEOF)
)

var allowedAfter = [...]tokenSet{
	StateStart:           setOf(TokenEquals),
	StateAfterEquals:     operandStart,
	StateAfterValue:      operandEnd,
	StateAfterOperator:   operandStart,
	StateAfterLeftParen:  operandStart | setOf(TokenRightParen), // "()" fails in the parser
	StateAfterRightParen: operandEnd,
	StateAfterComma:      operandStart,
	StateAfterIdentifier: operandEnd | setOf(TokenLeftParen),
}

func stateAfter(t TokenType) TokenState {
	switch t {
	case TokenEquals:
		return StateAfterEquals
	case TokenNumber, TokenCell, TokenRange, TokenRefError:
		return StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		return StateAfterOperator
	case TokenLeftParen:
		return StateAfterLeftParen
	case TokenRightParen:
		return StateAfterRightParen
	case TokenComma:
		return StateAfterComma
	default:
		return StateAfterIdentifier
	}
}

// Lexer tokenizes one formula, leading '=' included
type Lexer struct {
	runes      []rune
	pos        int
	state      TokenState
	parenDepth int
}

func NewLexer(input string) *Lexer {
	return &Lexer{runes: []rune(input)}
}

// Tokenize returns every token up to and including EOF. the error is always
// a *SpreadsheetError with ErrorCodeParse.
func (l *Lexer) Tokenize() ([]Token, error) {
	if len(l.runes) == 0 || l.runes[0] != '=' {
		return nil, parseError("formula must start with '='")
	}

	var tokens []Token
	for {
		tok := l.next()
		if tok.Type == TokenError {
			return nil, parseError(tok.Value)
		}
		if !allowedAfter[l.state].has(tok.Type) {
			if tok.Type == TokenEOF {
				return nil, parseError("unexpected end of formula")
			}
			return nil, parseError(fmt.Sprintf("unexpected %q at position %d", tok.Value, tok.Pos))
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
		l.state = stateAfter(tok.Type)
	}

	if l.parenDepth > 0 {
		return nil, parseError("missing closing parenthesis")
	}
	return tokens, nil
}

func (l *Lexer) next() Token {
	l.skipWhile(isSpaceRune)
	start := l.pos
	if start >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: start}
	}

	ch := l.runes[start]
	switch {
	case ch == '=' && l.state == StateStart:
		l.pos++
		return l.token(TokenEquals, start)
	case isDigitRune(ch), ch == '.' && isDigitRune(l.at(start+1)):
		return l.scanNumber()
	case isLetterRune(ch):
		return l.scanWord()
	case ch == '#':
		return l.scanRefError()
	}

	l.pos++
	switch ch {
	case '(':
		l.parenDepth++
		return l.token(TokenLeftParen, start)
	case ')':
		l.parenDepth--
		if l.parenDepth < 0 {
			return l.fail(start, "unexpected closing parenthesis")
		}
		return l.token(TokenRightParen, start)
	case ',':
		return l.token(TokenComma, start)
	case ':':
		return l.token(TokenColon, start)
	case '*', '/':
		return l.token(TokenBinaryOp, start)
	case '+', '-':
		// a sign wherever an operand may start, an operator elsewhere
		if allowedAfter[l.state].has(TokenUnaryPrefixOp) {
			return l.token(TokenUnaryPrefixOp, start)
		}
		return l.token(TokenBinaryOp, start)
	}
	return l.fail(start, "unexpected character: "+string(ch))
}

// token builds a token of type t from the runes consumed since start
func (l *Lexer) token(t TokenType, start int) Token {
	return Token{Type: t, Value: string(l.runes[start:l.pos]), Pos: start}
}

func (l *Lexer) fail(start int, message string) Token {
	return Token{Type: TokenError, Value: message, Pos: start}
}

func (l *Lexer) at(i int) rune {
	if i < 0 || i >= len(l.runes) {
		return 0
	}
	return l.runes[i]
}

// skipWhile advances past runes matching pred and reports how many it
// skipped
func (l *Lexer) skipWhile(pred func(rune) bool) int {
	start := l.pos
	for l.pos < len(l.runes) && pred(l.runes[l.pos]) {
		l.pos++
	}
	return l.pos - start
}

// scanNumber reads digits, an optional fraction and an optional exponent.
// "1." is a number. a number running into letters or a second '.' is not.
func (l *Lexer) scanNumber() Token {
	start := l.pos
	l.skipWhile(isDigitRune)
	if l.at(l.pos) == '.' {
		l.pos++
		l.skipWhile(isDigitRune)
	}
	if r := l.at(l.pos); r == 'e' || r == 'E' {
		mark := l.pos
		l.pos++
		if sign := l.at(l.pos); sign == '+' || sign == '-' {
			l.pos++
		}
		if l.skipWhile(isDigitRune) == 0 {
			l.pos = mark
		}
	}

	if r := l.at(l.pos); isLetterRune(r) || r == '.' {
		return l.fail(start, "malformed number: "+string(l.runes[start:l.pos+1]))
	}
	return l.token(TokenNumber, start)
}

// scanWord reads a cell, a range, a function name or a bare identifier.
// cells, ranges and function names come out upper-cased. a word is a
// function name when the next non-space rune is '('.
func (l *Lexer) scanWord() Token {
	start := l.pos
	l.skipWhile(func(r rune) bool { return isWordRune(r) || r == '_' })
	word := string(l.runes[start:l.pos])

	if isCell(word) {
		if l.at(l.pos) == ':' {
			mark := l.pos
			l.pos++
			second := l.pos
			l.skipWhile(isWordRune)
			if isCell(string(l.runes[second:l.pos])) {
				return Token{Type: TokenRange, Value: strings.ToUpper(string(l.runes[start:l.pos])), Pos: start}
			}
			// leave the colon to fail on its own
			l.pos = mark
		}
		return Token{Type: TokenCell, Value: strings.ToUpper(word), Pos: start}
	}

	mark := l.pos
	l.skipWhile(isSpaceRune)
	call := l.at(l.pos) == '('
	l.pos = mark
	if call {
		return Token{Type: TokenFunction, Value: strings.ToUpper(word), Pos: start}
	}
	return Token{Type: TokenIdentifier, Value: word, Pos: start}
}

// scanRefError reads the #REF! marker left behind by deleted references
func (l *Lexer) scanRefError() Token {
	start := l.pos
	end := start + utf8.RuneCountInString(refErrorLiteral)
	if end <= len(l.runes) && strings.EqualFold(string(l.runes[start:end]), refErrorLiteral) {
		l.pos = end
		return Token{Type: TokenRefError, Value: refErrorLiteral, Pos: start}
	}
	l.pos++
	return l.fail(start, "unexpected character: #")
}

// isCell reports whether s is letters followed by digits, like A1 or zz10.
// the row is not range-checked here.
func isCell(s string) bool {
	digits := strings.IndexFunc(s, func(r rune) bool { return !isLetterRune(r) })
	if digits <= 0 {
		return false
	}
	return strings.IndexFunc(s[digits:], func(r rune) bool { return !isDigitRune(r) }) < 0
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isDigitRune(r rune) bool {
	return r < utf8.RuneSelf && isASCIIDigit(byte(r))
}

func isLetterRune(r rune) bool {
	return r < utf8.RuneSelf && isASCIILetter(byte(r))
}

func isWordRune(r rune) bool {
	return isLetterRune(r) || isDigitRune(r)
}

func parseError(message string) *SpreadsheetError {
	return NewSpreadsheetError(ErrorCodeParse, message)
}
