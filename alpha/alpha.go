package alpha

import (
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Namer produces an unbounded sequence of labels.
type Namer interface {
	Next() (string, error)
	Reset()
}

const (
	lowerA  = 'a'
	lowerZ  = 'z'
	upperA  = 'A'
	upperZ  = 'Z'
	number0 = '0'
	number9 = '9'
)

type Char struct {
	step int
	curr rune
	min  rune
	max  rune
}

func Create(min, max rune, step int) *Char {
	return &Char{
		step: step,
		curr: min,
		min:  min,
		max:  max,
	}
}

func Lower() *Char {
	return Create(lowerA, lowerZ, 1)
}

func Upper() *Char {
	return Create(upperA, upperZ, 1)
}

func Digit() *Char {
	return Create(number0, number9, 1)
}

// Size is the number of runes in the range of c.
func (c *Char) Size() int {
	return int(c.max-c.min)/c.step + 1
}

// At returns the rune at offset ix in the range of c.
func (c *Char) At(ix int) rune {
	r := c.min + rune(ix*c.step)
	if r > c.max || ix < 0 {
		return utf8.RuneError
	}
	return r
}

func (c *Char) Get() rune {
	return c.curr
}

func (c *Char) Next() rune {
	if c.Done() {
		return c.Get()
	}
	c.curr += rune(c.step)
	if c.curr > c.max {
		c.curr = utf8.RuneError
	}
	return c.curr
}

func (c *Char) Done() bool {
	return c.curr == utf8.RuneError
}

func (c *Char) Reset() {
	c.curr = c.min
}

// Letters returns the alphabetic label of n: a, b, ..., z, aa, ab...
// Labels only exist for strictly positive numbers.
func Letters(n int, upper bool) string {
	if n <= 0 {
		return strconv.Itoa(n)
	}
	set := Lower()
	if upper {
		set = Upper()
	}
	var (
		size  = set.Size()
		chars []rune
	)
	for n > 0 {
		n--
		chars = append(chars, set.At(n%size))
		n /= size
	}
	for i, j := 0, len(chars)-1; i < j; i, j = i+1, j-1 {
		chars[i], chars[j] = chars[j], chars[i]
	}
	return string(chars)
}

var romans = []struct {
	value  int
	symbol string
}{
	{1000, "m"},
	{900, "cm"},
	{500, "d"},
	{400, "cd"},
	{100, "c"},
	{90, "xc"},
	{50, "l"},
	{40, "xl"},
	{10, "x"},
	{9, "ix"},
	{5, "v"},
	{4, "iv"},
	{1, "i"},
}

// Roman returns the roman numeral of n. Numbers outside of 1..3999 have no
// roman form and are returned in decimal.
func Roman(n int, upper bool) string {
	if n <= 0 || n >= 4000 {
		return strconv.Itoa(n)
	}
	var str strings.Builder
	for _, r := range romans {
		for n >= r.value {
			str.WriteString(r.symbol)
			n -= r.value
		}
	}
	if upper {
		return strings.ToUpper(str.String())
	}
	return str.String()
}

// Decimal returns n left padded with zeros up to width digits.
func Decimal(n, width int) string {
	str := strconv.Itoa(n)
	if n < 0 {
		return str
	}
	if pad := width - utf8.RuneCountInString(str); pad > 0 {
		str = strings.Repeat("0", pad) + str
	}
	return str
}

// Format formats n according to a numbering token: 1, 01, a, A, i or I.
// Unknown tokens fall back to decimal.
func Format(n int, token string) string {
	switch token {
	case "a":
		return Letters(n, false)
	case "A":
		return Letters(n, true)
	case "i":
		return Roman(n, false)
	case "I":
		return Roman(n, true)
	}
	if isDecimalToken(token) {
		return Decimal(n, utf8.RuneCountInString(token))
	}
	return Decimal(n, 1)
}

func isDecimalToken(token string) bool {
	if token == "" || !strings.HasSuffix(token, "1") {
		return false
	}
	return strings.Trim(token[:len(token)-1], "0") == ""
}

type sequence struct {
	prefix string
	token  string
	curr   int
}

// Sequence returns a Namer producing prefix followed by 1, 2, 3... formatted
// with the given numbering token.
func Sequence(prefix, token string) Namer {
	return &sequence{
		prefix: prefix,
		token:  token,
	}
}

func (s *sequence) Next() (string, error) {
	if s.curr < 0 {
		return "", io.EOF
	}
	s.curr++
	return s.prefix + Format(s.curr, s.token), nil
}

func (s *sequence) Reset() {
	s.curr = 0
}
