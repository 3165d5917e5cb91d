package tables

import (
	"math"
	"strconv"
	"strings"

	"github.com/toricodesthings/document-processor/internal/jsonio"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// Value is a cleaned table cell. Integers keep their normalized decimal
// digits so values wider than int64 survive unchanged.
type Value struct {
	kind Kind
	text string
	num  float64
}

func Null() Value { return Value{} }

func String(s string) Value { return Value{kind: KindString, text: s} }

func Float(f float64) Value { return Value{kind: KindFloat, num: f} }

func Int(n int64) Value { return Value{kind: KindInt, text: strconv.FormatInt(n, 10)} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 reports the integer value; ok is false for non-integers or values
// that overflow int64.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	n, err := strconv.ParseInt(v.text, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.num, true
	case KindInt:
		f, err := strconv.ParseFloat(v.text, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Text returns the string form of the cell: the cleaned text for strings,
// the JSON literal for numbers and "" for null.
func (v Value) Text() string {
	switch v.kind {
	case KindString, KindInt:
		return v.text
	case KindFloat:
		return formatFloat(v.num)
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return []byte(v.text), nil
	case KindFloat:
		return []byte(formatFloat(v.num)), nil
	case KindString:
		return jsonio.Marshal(v.text, false)
	default:
		return []byte("null"), nil
	}
}

// formatFloat follows encoding/json's float formatting but always keeps a
// fractional part or exponent so floats read back as floats.
func formatFloat(f float64) string {
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if format == 'e' {
		// 1e-07 -> 1e-7
		n := len(s)
		if n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
		return s
	}
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
