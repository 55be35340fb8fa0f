package traj

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the variants of an annotation Value.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindTuple
)

// Value is a typed annotation value: text, a number, or a tuple of
// numbers.
type Value struct {
	kind  Kind
	text  string
	num   float64
	tuple []float64
}

// Text returns a text annotation value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number returns a numeric annotation value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Tuple returns a tuple annotation value.
func Tuple(v ...float64) Value {
	return Value{kind: KindTuple, tuple: append([]float64(nil), v...)}
}

// Bool returns the conventional TRUE/FALSE text value.
func Bool(b bool) Value {
	if b {
		return Text("TRUE")
	}
	return Text("FALSE")
}

// ParseValue decodes the textual form written by Value.String. Only the
// canonical form of a number or tuple is decoded as such; anything else,
// such as "0042", stays text so that it is written back unchanged.
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if formatFloat(f) == s {
			return Number(f)
		}
		return Text(s)
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		inner := strings.TrimSpace(s[1 : len(s)-1])
		if inner == "" {
			return Tuple()
		}
		parts := strings.Split(inner, ",")
		out := make([]float64, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			f, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return Text(s)
			}
			out = append(out, f)
		}
		if v := Tuple(out...); v.String() == s {
			return v
		}
	}
	return Text(s)
}

func (v Value) Kind() Kind { return v.kind }

// Float returns the numeric value. Text that parses as a number is
// accepted.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		return f, err == nil
	}
	return math.NaN(), false
}

// Floats returns the tuple elements.
func (v Value) Floats() ([]float64, bool) {
	if v.kind != KindTuple {
		return nil, false
	}
	return append([]float64(nil), v.tuple...), true
}

// Equal reports whether two values have the same kind and content. NaN
// numbers compare equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return sameFloat(v.num, o.num)
	case KindTuple:
		if len(v.tuple) != len(o.tuple) {
			return false
		}
		for i := range v.tuple {
			if !sameFloat(v.tuple[i], o.tuple[i]) {
				return false
			}
		}
		return true
	}
	return v.text == o.text
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return formatFloat(v.num)
	case KindTuple:
		parts := make([]string, len(v.tuple))
		for i, f := range v.tuple {
			parts[i] = formatFloat(f)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return v.text
}

// Annotations is the open key/value metadata attached to a trajectory.
type Annotations map[string]Value

// Clone returns a copy of a.
func (a Annotations) Clone() Annotations {
	out := make(Annotations, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Keys returns the annotation keys in sorted order.
func (a Annotations) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
