package xpath

import (
	"fmt"
	"strings"
	"unicode"
)

type Position struct {
	Line   int
	Column int
}

const (
	kwAnd = "and"
	kwOr  = "or"
	kwDiv = "div"
	kwMod = "mod"
)

const (
	EOF rune = -(1 + iota)
	Name
	Quote
	Digit
	Invalid
)

const (
	currNode = -(iota + 1000)
	parentNode
	attrNode
	variable
	axisName
	nsWildcard
	wildcard
	currLevel
	anyLevel
	begPred
	endPred
	begGrp
	endGrp
	opSeq
	opAdd
	opSub
	opMul
	opDiv
	opMod
	opEq
	opNe
	opGt
	opGe
	opLt
	opLe
	opUnion
	opAnd
	opOr
)

type Token struct {
	Literal string
	Type    rune
	Offset  int
	Position
}

func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "<eof>"
	case Name:
		return fmt.Sprintf("name(%s)", t.Literal)
	case Quote:
		return fmt.Sprintf("literal(%s)", t.Literal)
	case Digit:
		return fmt.Sprintf("number(%s)", t.Literal)
	case variable:
		return fmt.Sprintf("variable(%s)", t.Literal)
	case axisName:
		return fmt.Sprintf("axis(%s)", t.Literal)
	case nsWildcard:
		return fmt.Sprintf("wildcard(%s:*)", t.Literal)
	case wildcard:
		return "<wildcard>"
	case currNode:
		return "<current-node>"
	case parentNode:
		return "<parent-node>"
	case attrNode:
		return "<attribute>"
	case currLevel:
		return "<current-level>"
	case anyLevel:
		return "<any-level>"
	case begPred:
		return "<begin-predicate>"
	case endPred:
		return "<end-predicate>"
	case begGrp:
		return "<begin-group>"
	case endGrp:
		return "<end-group>"
	case opSeq:
		return "<comma>"
	case opAdd:
		return "<add>"
	case opSub:
		return "<subtract>"
	case opMul:
		return "<multiply>"
	case opDiv:
		return "<divide>"
	case opMod:
		return "<modulo>"
	case opEq:
		return "<equal>"
	case opNe:
		return "<not-equal>"
	case opGt:
		return "<greater-than>"
	case opGe:
		return "<greater-eq>"
	case opLt:
		return "<lesser-than>"
	case opLe:
		return "<lesser-eq>"
	case opUnion:
		return "<union>"
	case opAnd:
		return "<and>"
	case opOr:
		return "<or>"
	case Invalid:
		return "<invalid>"
	default:
		return "<unknown>"
	}
}

// Scanner splits an XPath 1.0 expression into tokens. It applies the lexical
// disambiguation rules of the recommendation: after a token that can end an
// operand, '*' is the multiply operator and a name is an operator name.
type Scanner struct {
	input []rune
	pos   int
	char  rune
	last  rune

	Position
}

func Scan(str string) *Scanner {
	s := Scanner{
		input: []rune(str),
		pos:   -1,
		last:  Invalid,
	}
	s.Line = 1
	s.read()
	return &s
}

func (s *Scanner) Scan() Token {
	s.skipBlank()
	var tok Token
	tok.Position = s.Position
	tok.Offset = s.pos
	if s.done() {
		tok.Type = EOF
		return tok
	}
	switch {
	case s.char == quote || s.char == apos:
		s.scanLiteral(&tok)
	case unicode.IsDigit(s.char) || (s.char == dot && unicode.IsDigit(s.peek())):
		s.scanNumber(&tok)
	case s.char == dollar:
		s.scanVariable(&tok)
	case isNameStart(s.char):
		s.scanIdent(&tok)
	default:
		s.scanOperator(&tok)
	}
	s.last = tok.Type
	return tok
}

func (s *Scanner) operandEnded() bool {
	switch s.last {
	case Invalid, attrNode, begGrp, begPred, opSeq, currLevel, anyLevel, axisName:
		return false
	case opAdd, opSub, opMul, opDiv, opMod, opEq, opNe, opGt, opGe, opLt, opLe, opUnion, opAnd, opOr:
		return false
	default:
		return true
	}
}

func (s *Scanner) scanOperator(tok *Token) {
	switch s.char {
	case star:
		tok.Type = wildcard
		if s.operandEnded() {
			tok.Type = opMul
		}
	case plus:
		tok.Type = opAdd
	case dash:
		tok.Type = opSub
	case equal:
		tok.Type = opEq
	case bang:
		tok.Type = Invalid
		if s.peek() == equal {
			s.read()
			tok.Type = opNe
		}
	case langle:
		tok.Type = opLt
		if s.peek() == equal {
			s.read()
			tok.Type = opLe
		}
	case rangle:
		tok.Type = opGt
		if s.peek() == equal {
			s.read()
			tok.Type = opGe
		}
	case pipe:
		tok.Type = opUnion
	case comma:
		tok.Type = opSeq
	case lparen:
		tok.Type = begGrp
	case rparen:
		tok.Type = endGrp
	case lsquare:
		tok.Type = begPred
	case rsquare:
		tok.Type = endPred
	case arobase:
		tok.Type = attrNode
	case slash:
		tok.Type = currLevel
		if s.peek() == slash {
			s.read()
			tok.Type = anyLevel
		}
	case dot:
		tok.Type = currNode
		if s.peek() == dot {
			s.read()
			tok.Type = parentNode
		}
	default:
		tok.Type = Invalid
		tok.Literal = string(s.char)
	}
	s.read()
}

func (s *Scanner) scanLiteral(tok *Token) {
	delim := s.char
	s.read()
	var str strings.Builder
	for !s.done() && s.char != delim {
		str.WriteRune(s.char)
		s.read()
	}
	tok.Type = Quote
	tok.Literal = str.String()
	if s.char != delim {
		tok.Type = Invalid
		return
	}
	s.read()
}

func (s *Scanner) scanNumber(tok *Token) {
	var str strings.Builder
	for unicode.IsDigit(s.char) {
		str.WriteRune(s.char)
		s.read()
	}
	if s.char == dot {
		str.WriteRune(s.char)
		s.read()
		for unicode.IsDigit(s.char) {
			str.WriteRune(s.char)
			s.read()
		}
	}
	tok.Type = Digit
	tok.Literal = str.String()
}

func (s *Scanner) scanVariable(tok *Token) {
	s.read()
	s.skipBlank()
	name := s.scanQName()
	tok.Type = variable
	tok.Literal = name
	if name == "" {
		tok.Type = Invalid
	}
}

func (s *Scanner) scanIdent(tok *Token) {
	if s.operandEnded() {
		name := s.scanNCName()
		tok.Literal = name
		switch name {
		case kwAnd:
			tok.Type = opAnd
		case kwOr:
			tok.Type = opOr
		case kwDiv:
			tok.Type = opDiv
		case kwMod:
			tok.Type = opMod
		default:
			tok.Type = Invalid
		}
		return
	}
	name := s.scanNCName()
	if s.char == colon && s.peek() == star {
		s.read()
		s.read()
		tok.Type = nsWildcard
		tok.Literal = name
		return
	}
	if s.char == colon && s.peek() == colon {
		s.read()
		s.read()
		tok.Type = axisName
		tok.Literal = name
		return
	}
	if s.char == colon && isNameStart(s.peek()) {
		s.read()
		name += ":" + s.scanNCName()
	}
	tok.Type = Name
	tok.Literal = name

	var (
		save = s.pos
		at   = s.Position
	)
	s.skipBlank()
	if s.char == colon && s.peek() == colon {
		s.read()
		s.read()
		tok.Type = axisName
		return
	}
	s.reset(save, at)
}

func (s *Scanner) scanQName() string {
	name := s.scanNCName()
	if s.char == colon && isNameStart(s.peek()) {
		s.read()
		name += ":" + s.scanNCName()
	}
	return name
}

func (s *Scanner) scanNCName() string {
	var str strings.Builder
	for !s.done() && (isNameStart(s.char) || isNameChar(s.char)) {
		str.WriteRune(s.char)
		s.read()
	}
	return str.String()
}

func (s *Scanner) read() {
	if s.char == '\n' {
		s.Line++
		s.Column = 0
	}
	s.pos++
	s.Column++
	if s.pos >= len(s.input) {
		s.pos = len(s.input)
		s.char = EOF
		return
	}
	s.char = s.input[s.pos]
}

func (s *Scanner) reset(pos int, at Position) {
	s.pos = pos
	s.Position = at
	s.char = EOF
	if pos < len(s.input) {
		s.char = s.input[pos]
	}
}

func (s *Scanner) peek() rune {
	if s.pos+1 >= len(s.input) {
		return EOF
	}
	return s.input[s.pos+1]
}

func (s *Scanner) done() bool {
	return s.char == EOF
}

func (s *Scanner) skipBlank() {
	for !s.done() && unicode.IsSpace(s.char) {
		s.read()
	}
}

func isNameStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isNameChar(c rune) bool {
	return c == '-' || c == '.' || unicode.IsDigit(c)
}

const (
	lparen  = '('
	rparen  = ')'
	lsquare = '['
	rsquare = ']'
	colon   = ':'
	quote   = '"'
	apos    = '\''
	slash   = '/'
	dot     = '.'
	comma   = ','
	plus    = '+'
	dash    = '-'
	star    = '*'
	pipe    = '|'
	dollar  = '$'
	equal   = '='
	bang    = '!'
	langle  = '<'
	rangle  = '>'
	arobase = '@'
)
