// Package exec runs plan blocks against the analytics port and normalizes
// responses into row tables shared by the adapter and the file engine.
package exec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"nugget/internal/shared/jsonx"
)

// ValueKind tags the dynamic type of a cell.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindFloat
	KindBool
)

// Value is a tagged sum over the cell types the pipeline handles:
// string, float64, bool and null. The zero Value is null.
type Value struct {
	kind ValueKind
	s    string
	f    float64
	b    bool
}

// Null returns the null value.
func Null() Value { return Value{} }

// String wraps a string cell.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Float wraps a numeric cell. NaN and Inf collapse to null so they can
// never leak over the wire.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Value{kind: KindFloat, f: f}
}

// Bool wraps a boolean cell.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the value's tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string content; non-string kinds render as text.
func (v Value) Str() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Float64 returns the numeric content. Strings are parsed leniently;
// booleans count as 0/1.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindString:
		return ParseNumeric(v.s)
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// BoolVal returns the boolean content when the value is a bool.
func (v Value) BoolVal() (bool, bool) {
	if v.kind == KindBool {
		return v.b, true
	}
	return false, false
}

// Any unwraps the value for generic JSON shaping.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// MarshalJSON serializes the wrapped value; null stays null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return jsonString(v.s), nil
	case KindFloat:
		return []byte(strconv.FormatFloat(v.f, 'f', -1, 64)), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	default:
		return []byte("null"), nil
	}
}

func jsonString(s string) []byte {
	out := make([]byte, 0, len(s)+2)
	out = strconv.AppendQuote(out, s)
	return out
}

// FromAny converts loosely typed input (decoded JSON, CSV cells) into a
// Value. Unknown types render through fmt.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Float(t)
	case float32:
		return Float(float64(t))
	case int:
		return Float(float64(t))
	case int64:
		return Float(float64(t))
	case jsonx.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Float(f)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// ParseNumeric coerces a display string into a number: thousand
// separators, currency and unit suffixes are stripped before parsing.
// Returns false when nothing numeric remains.
func ParseNumeric(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return sanitize(f)
	}

	var b strings.Builder
	seenDigit := false
	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			b.WriteRune(r)
		case r == '.':
			b.WriteRune(r)
		case r == '-' && i == 0:
			b.WriteRune(r)
		}
	}
	if !seenDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return sanitize(f)
}

func sanitize(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
