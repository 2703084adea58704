package xslt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

var errPattern = errors.New("invalid format pattern")

type DecimalFormat struct {
	DecimalSeparator  rune
	GroupingSeparator rune
	Infinity          string
	MinusSign         rune
	NaN               string
	Percent           rune
	PerMille          rune
	ZeroDigit         rune
	Digit             rune
	PatternSeparator  rune
}

func DefaultDecimalFormat() *DecimalFormat {
	return &DecimalFormat{
		DecimalSeparator:  '.',
		GroupingSeparator: ',',
		Infinity:          "Infinity",
		MinusSign:         '-',
		NaN:               "NaN",
		Percent:           '%',
		PerMille:          '‰',
		ZeroDigit:         '0',
		Digit:             '#',
		PatternSeparator:  ';',
	}
}

func decimalFormatFromOptions(options map[string]string) (*DecimalFormat, error) {
	df := DefaultDecimalFormat()
	for name, value := range options {
		var target *rune
		switch name {
		case "infinity":
			df.Infinity = value
			continue
		case "NaN":
			df.NaN = value
			continue
		case "decimal-separator":
			target = &df.DecimalSeparator
		case "grouping-separator":
			target = &df.GroupingSeparator
		case "minus-sign":
			target = &df.MinusSign
		case "percent":
			target = &df.Percent
		case "per-mille":
			target = &df.PerMille
		case "zero-digit":
			target = &df.ZeroDigit
		case "digit":
			target = &df.Digit
		case "pattern-separator":
			target = &df.PatternSeparator
		default:
			continue
		}
		if utf8.RuneCountInString(value) != 1 {
			return nil, fmt.Errorf("%s: single character expected for %s", value, name)
		}
		*target, _ = utf8.DecodeRuneInString(value)
	}
	return df, nil
}

type subPattern struct {
	prefix   string
	suffix   string
	minInt   int
	minFrac  int
	maxFrac  int
	grouping int
	percent  bool
	permille bool
}

type numberPattern struct {
	positive subPattern
	negative *subPattern
}

func (df *DecimalFormat) parse(pattern string) (numberPattern, error) {
	var (
		np    numberPattern
		parts = strings.Split(pattern, string(df.PatternSeparator))
	)
	if len(parts) > 2 {
		return np, fmt.Errorf("%s: too many sub patterns: %w", pattern, errPattern)
	}
	pos, err := df.parseSub(parts[0])
	if err != nil {
		return np, fmt.Errorf("%s: %w", pattern, err)
	}
	np.positive = pos
	if len(parts) == 2 {
		neg, err := df.parseSub(parts[1])
		if err != nil {
			return np, fmt.Errorf("%s: %w", pattern, err)
		}
		np.negative = &neg
	}
	return np, nil
}

func (df *DecimalFormat) isActive(c rune) bool {
	return c == df.Digit || c == df.ZeroDigit || c == df.DecimalSeparator || c == df.GroupingSeparator
}

func (df *DecimalFormat) parseSub(str string) (subPattern, error) {
	var (
		sp    subPattern
		runes = []rune(str)
		beg   = -1
		end   = -1
	)
	for i, c := range runes {
		if df.isActive(c) {
			if beg < 0 {
				beg = i
			}
			end = i + 1
		}
	}
	if beg < 0 {
		return sp, errPattern
	}
	sp.prefix = string(runes[:beg])
	sp.suffix = string(runes[end:])
	for _, c := range sp.prefix + sp.suffix {
		switch c {
		case df.Percent:
			sp.percent = true
		case df.PerMille:
			sp.permille = true
		}
	}
	if sp.percent && sp.permille {
		return sp, errPattern
	}
	var (
		frac     bool
		lastSep  = -1
		intCount int
		seenZero bool
	)
	for _, c := range runes[beg:end] {
		switch c {
		case df.DecimalSeparator:
			if frac {
				return sp, errPattern
			}
			frac = true
		case df.GroupingSeparator:
			if frac {
				return sp, errPattern
			}
			lastSep = intCount
		case df.ZeroDigit:
			if frac {
				if sp.maxFrac > sp.minFrac {
					return sp, errPattern
				}
				sp.minFrac++
				sp.maxFrac++
				break
			}
			seenZero = true
			sp.minInt++
			intCount++
		case df.Digit:
			if frac {
				sp.maxFrac++
				break
			}
			if seenZero {
				return sp, errPattern
			}
			intCount++
		}
	}
	if lastSep >= 0 {
		sp.grouping = intCount - lastSep
		if sp.grouping == 0 {
			return sp, errPattern
		}
	}
	return sp, nil
}

// Format formats f according to pattern.
func (df *DecimalFormat) Format(f float64, pattern string) (string, error) {
	np, err := df.parse(pattern)
	if err != nil {
		return "", err
	}
	if math.IsNaN(f) {
		return df.NaN, nil
	}
	var (
		sp       = np.positive
		negative = f < 0 || (f == 0 && math.Signbit(f))
	)
	if negative && np.negative != nil {
		sp = *np.negative
	}
	if negative {
		f = -f
	}
	var body string
	if math.IsInf(f, 0) {
		body = df.Infinity
	} else {
		if sp.percent {
			f *= 100
		} else if sp.permille {
			f *= 1000
		}
		body = df.digits(f, sp)
	}
	str := sp.prefix + body + sp.suffix
	if negative && np.negative == nil {
		str = string(df.MinusSign) + str
	}
	return str, nil
}

func (df *DecimalFormat) digits(f float64, sp subPattern) string {
	str := strconv.FormatFloat(f, 'f', sp.maxFrac, 64)
	intPart, fracPart, _ := strings.Cut(str, ".")
	fracPart = strings.TrimRight(fracPart, "0")
	for len(fracPart) < sp.minFrac {
		fracPart += "0"
	}
	intPart = strings.TrimLeft(intPart, "0")
	for len(intPart) < sp.minInt {
		intPart = "0" + intPart
	}
	var out strings.Builder
	for i, c := range intPart {
		if sp.grouping > 0 && i > 0 && (len(intPart)-i)%sp.grouping == 0 {
			out.WriteRune(df.GroupingSeparator)
		}
		out.WriteRune(df.ZeroDigit + (c - '0'))
	}
	if fracPart != "" {
		out.WriteRune(df.DecimalSeparator)
		for _, c := range fracPart {
			out.WriteRune(df.ZeroDigit + (c - '0'))
		}
	}
	if out.Len() == 0 {
		out.WriteRune(df.ZeroDigit)
	}
	return out.String()
}
