package xpath

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/midbel/angle/xml"
)

var ErrType = errors.New("invalid type")

type ValueType int8

const (
	TypeBoolean ValueType = iota
	TypeNumber
	TypeString
	TypeNodeSet
	TypeFragment
)

func (t ValueType) String() string {
	switch t {
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeNodeSet:
		return "node-set"
	case TypeFragment:
		return "result-tree-fragment"
	default:
		return "unknown"
	}
}

// Value is one of Boolean, Number, String, NodeSet or Fragment.
type Value interface {
	Type() ValueType
}

type Boolean bool

func (Boolean) Type() ValueType {
	return TypeBoolean
}

type Number float64

func (Number) Type() ValueType {
	return TypeNumber
}

type String string

func (String) Type() ValueType {
	return TypeString
}

// NodeSet holds nodes in document order without duplicates.
type NodeSet []xml.Node

func (NodeSet) Type() ValueType {
	return TypeNodeSet
}

// Fragment is a result tree fragment. Its root is a document node that owns
// the instantiated content.
type Fragment struct {
	Root *xml.Document
}

func (*Fragment) Type() ValueType {
	return TypeFragment
}

func NewFragment(doc *xml.Document) *Fragment {
	return &Fragment{
		Root: doc,
	}
}

func ToBool(v Value) bool {
	switch v := v.(type) {
	case Boolean:
		return bool(v)
	case Number:
		f := float64(v)
		return f != 0 && !math.IsNaN(f)
	case String:
		return v != ""
	case NodeSet:
		return len(v) > 0
	case *Fragment:
		return true
	default:
		return false
	}
}

func ToNumber(v Value) float64 {
	switch v := v.(type) {
	case Boolean:
		if v {
			return 1
		}
		return 0
	case Number:
		return float64(v)
	case String:
		return parseNumber(string(v))
	case NodeSet, *Fragment:
		return parseNumber(ToString(v))
	default:
		return math.NaN()
	}
}

func ToString(v Value) string {
	switch v := v.(type) {
	case Boolean:
		if v {
			return "true"
		}
		return "false"
	case Number:
		return FormatNumber(float64(v))
	case String:
		return string(v)
	case NodeSet:
		if len(v) == 0 {
			return ""
		}
		return v[0].Value()
	case *Fragment:
		return v.Root.Value()
	default:
		return ""
	}
}

// ToNodeSet converts v to a node-set. Result tree fragments are rejected,
// they must go through an explicit conversion such as exsl:node-set.
func ToNodeSet(v Value) (NodeSet, error) {
	switch v := v.(type) {
	case NodeSet:
		return v, nil
	default:
		return nil, fmt.Errorf("%s can not be converted to node-set: %w", v.Type(), ErrType)
	}
}

// FormatNumber returns the XPath string form of f.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatInt(int64(f), 10)
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

func parseNumber(str string) float64 {
	str = strings.TrimSpace(str)
	if str == "" {
		return math.NaN()
	}
	var (
		digits bool
		dot    bool
	)
	for i, c := range str {
		switch {
		case c == '-' && i == 0:
		case c == '.' && !dot:
			dot = true
		case c >= '0' && c <= '9':
			digits = true
		default:
			return math.NaN()
		}
	}
	if !digits {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// compare implements the comparison rules of XPath 1.0 for all value
// combinations.
func compare(op rune, left, right Value) bool {
	if left.Type() == TypeFragment {
		left = String(ToString(left))
	}
	if right.Type() == TypeFragment {
		right = String(ToString(right))
	}
	ln, lok := left.(NodeSet)
	rn, rok := right.(NodeSet)
	switch {
	case lok && rok:
		for _, a := range ln {
			for _, b := range rn {
				if compareAtomic(op, String(a.Value()), String(b.Value())) {
					return true
				}
			}
		}
		return false
	case lok:
		if right.Type() == TypeBoolean {
			return compareAtomic(op, Boolean(len(ln) > 0), right)
		}
		for _, a := range ln {
			if compareAtomic(op, String(a.Value()), right) {
				return true
			}
		}
		return false
	case rok:
		if left.Type() == TypeBoolean {
			return compareAtomic(op, left, Boolean(len(rn) > 0))
		}
		for _, b := range rn {
			if compareAtomic(op, left, String(b.Value())) {
				return true
			}
		}
		return false
	default:
		return compareAtomic(op, left, right)
	}
}

func compareAtomic(op rune, left, right Value) bool {
	if op == opEq || op == opNe {
		var eq bool
		switch {
		case left.Type() == TypeBoolean || right.Type() == TypeBoolean:
			eq = ToBool(left) == ToBool(right)
		case left.Type() == TypeNumber || right.Type() == TypeNumber:
			eq = ToNumber(left) == ToNumber(right)
		default:
			eq = ToString(left) == ToString(right)
		}
		if op == opNe {
			return !eq
		}
		return eq
	}
	var (
		x = ToNumber(left)
		y = ToNumber(right)
	)
	switch op {
	case opLt:
		return x < y
	case opLe:
		return x <= y
	case opGt:
		return x > y
	case opGe:
		return x >= y
	default:
		return false
	}
}
