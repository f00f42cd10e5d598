package vm

import (
	"strconv"
	"strings"
)

// ValueKind tags the variant carried by a Value.
type ValueKind int

const (
	ValueStr ValueKind = iota
	ValueNum
	ValueRegex
	ValueArray
	ValueObject
)

// Value is the VM's dynamic runtime value. Only one of the fields
// below is meaningful, selected by Kind:
//
//	ValueStr    -> Str
//	ValueNum    -> Num
//	ValueRegex  -> Str (the un-compiled pattern source)
//	ValueArray  -> Array ([]interface{} decoded from JSON)
//	ValueObject -> Object (*OrderedObject decoded from JSON)
//
// Regex never appears as the result of a rule body; it is only valid
// as the right-hand operand of Match.
type Value struct {
	Kind   ValueKind
	Str    string
	Num    float64
	Array  []interface{}
	Object *OrderedObject
}

// Str builds a Value holding a string.
func Str(s string) Value { return Value{Kind: ValueStr, Str: s} }

// Num builds a Value holding a number.
func Num(n float64) Value { return Value{Kind: ValueNum, Num: n} }

// Regex builds a Value holding an un-compiled regex pattern.
func Regex(pattern string) Value { return Value{Kind: ValueRegex, Str: pattern} }

// FromJSON converts a value decoded by DecodeJSON into a Value.
func FromJSON(v interface{}) Value {
	switch t := v.(type) {
	case []interface{}:
		return Value{Kind: ValueArray, Array: t}
	case *OrderedObject:
		return Value{Kind: ValueObject, Object: t}
	case string:
		return Str(t)
	case float64:
		return Num(t)
	default:
		// null, bool, or anything else we don't model as a distinct
		// variant collapses to the zero number, mirroring the VM's
		// general "unknown coerces to zero" rule (see AsFloat).
		return Num(0)
	}
}

// FromJSONOpt is FromJSON for an optional value, used by GetMember's
// out-of-range array access: a missing element is Num(0).
func FromJSONOpt(v interface{}, ok bool) Value {
	if !ok {
		return Num(0)
	}
	return FromJSON(v)
}

// TypeName names the variant for error messages.
func (v Value) TypeName() string {
	switch v.Kind {
	case ValueStr:
		return "string"
	case ValueNum:
		return "number"
	case ValueRegex:
		return "regex"
	case ValueArray:
		return "array"
	case ValueObject:
		return "object"
	default:
		return "unknown"
	}
}

// Truthy reports whether the value counts as true in a pattern or &&/||.
func (v Value) Truthy() bool {
	switch v.Kind {
	case ValueStr:
		return len(v.Str) > 0
	case ValueNum:
		return v.Num != 0
	default:
		return false
	}
}

// Equal implements the Equal opcode: same-variant structural equality,
// false for everything else (including two containers).
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValueStr:
		return v.Str == other.Str
	case ValueNum:
		return v.Num == other.Num
	default:
		return false
	}
}

// AsFloat coerces the value to a number: Str is parsed permissively
// with a fallback of 0, everything else that isn't already Num is 0.
func (v Value) AsFloat() float64 {
	switch v.Kind {
	case ValueNum:
		return v.Num
	case ValueStr:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// FormatNum renders a float64 the way Print and object-key coercion
// both need: integers print with no decimal point, matching the
// shortest round-trip decimal Go can produce.
func FormatNum(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Display renders the value the way Print formats an argument.
func (v Value) Display() string {
	switch v.Kind {
	case ValueStr:
		return v.Str
	case ValueRegex:
		return "/" + v.Str + "/"
	case ValueNum:
		return FormatNum(v.Num)
	case ValueArray:
		return compactJSONArray(v.Array)
	case ValueObject:
		return compactJSONObject(v.Object)
	default:
		return ""
	}
}

// compactJSONArray and compactJSONObject serialize a decoded JSON
// value with no extra whitespace, in source key order for objects
// (see OrderedObject).
func compactJSONArray(arr []interface{}) string {
	var b strings.Builder
	writeCompact(&b, arr)
	return b.String()
}

func compactJSONObject(obj *OrderedObject) string {
	var b strings.Builder
	writeCompact(&b, obj)
	return b.String()
}

func writeCompact(b *strings.Builder, v interface{}) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case float64:
		b.WriteString(FormatNum(t))
	case string:
		b.WriteString(strconv.Quote(t))
	case []interface{}:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCompact(b, e)
		}
		b.WriteByte(']')
	case *OrderedObject:
		b.WriteByte('{')
		for i, k := range t.Keys() {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			val, _ := t.Get(k)
			writeCompact(b, val)
		}
		b.WriteByte('}')
	default:
		b.WriteString("null")
	}
}
