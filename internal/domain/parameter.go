package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ParameterKind is the closed set of tunable parameter kinds.
type ParameterKind string

const (
	ParameterKindBoolean ParameterKind = "boolean"
	ParameterKindInteger ParameterKind = "integer"
	ParameterKindFloat   ParameterKind = "float"
	ParameterKindChoice  ParameterKind = "choice"
)

// Valid reports whether k is a known parameter kind.
func (k ParameterKind) Valid() bool {
	switch k {
	case ParameterKindBoolean, ParameterKindInteger, ParameterKindFloat, ParameterKindChoice:
		return true
	}
	return false
}

// ValueType tags the scalar held by a Value.
type ValueType string

const (
	ValueTypeBool   ValueType = "bool"
	ValueTypeInt    ValueType = "int"
	ValueTypeFloat  ValueType = "float"
	ValueTypeString ValueType = "string"
)

// Value is a single parameter value: bool, int, float or string.
// The zero Value has an empty Type and means "unset".
type Value struct {
	Type ValueType
	B    bool
	I    int64
	F    float64
	S    string
}

// BoolValue constructs a boolean Value.
func BoolValue(b bool) Value { return Value{Type: ValueTypeBool, B: b} }

// IntValue constructs an integer Value.
func IntValue(i int64) Value { return Value{Type: ValueTypeInt, I: i} }

// FloatValue constructs a float Value.
func FloatValue(f float64) Value { return Value{Type: ValueTypeFloat, F: f} }

// StringValue constructs a string Value.
func StringValue(s string) Value { return Value{Type: ValueTypeString, S: s} }

// IsSet reports whether the value carries a scalar.
func (v Value) IsSet() bool { return v.Type != "" }

// Float64 returns the numeric value for int and float values.
// Bool and string values are not numeric.
func (v Value) Float64() (float64, bool) {
	switch v.Type {
	case ValueTypeInt:
		return float64(v.I), true
	case ValueTypeFloat:
		return v.F, true
	}
	return 0, false
}

// Equal reports whether two values have the same type and scalar.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case ValueTypeBool:
		return v.B == o.B
	case ValueTypeInt:
		return v.I == o.I
	case ValueTypeFloat:
		return v.F == o.F
	case ValueTypeString:
		return v.S == o.S
	}
	return true
}

// String returns the canonical text form used in keys and reports.
func (v Value) String() string {
	switch v.Type {
	case ValueTypeBool:
		return strconv.FormatBool(v.B)
	case ValueTypeInt:
		return strconv.FormatInt(v.I, 10)
	case ValueTypeFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case ValueTypeString:
		return v.S
	}
	return "<unset>"
}

// Interface returns the scalar as a plain Go value (nil when unset).
func (v Value) Interface() any {
	switch v.Type {
	case ValueTypeBool:
		return v.B
	case ValueTypeInt:
		return v.I
	case ValueTypeFloat:
		return v.F
	case ValueTypeString:
		return v.S
	}
	return nil
}

// MarshalJSON encodes the value as its native JSON scalar.
// Whole floats keep a fractional digit so they decode back as floats.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Type == ValueTypeFloat && v.F == math.Trunc(v.F) && math.Abs(v.F) < 1e15 {
		return []byte(strconv.FormatFloat(v.F, 'f', 1, 64)), nil
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a JSON scalar. Whole numbers become int values.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode parameter value: %w", err)
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf converts a decoded scalar (JSON or YAML) into a Value.
func ValueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return BoolValue(x), nil
	case int:
		return IntValue(int64(x)), nil
	case int64:
		return IntValue(x), nil
	case uint64:
		return IntValue(int64(x)), nil
	case float64:
		return FloatValue(x), nil
	case string:
		return StringValue(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return FloatValue(f), nil
	}
	return Value{}, fmt.Errorf("unsupported parameter value type %T", raw)
}

// TunableParameter describes one dimension of a strategy's parameter space.
type TunableParameter struct {
	Name    string
	Kind    ParameterKind
	Min     *float64 // numeric kinds only
	Max     *float64 // numeric kinds only
	Step    *float64 // numeric kinds only
	Choices []Value  // choice kind only
	Default Value
}

// HasRange reports whether min, max and step are all present.
func (p TunableParameter) HasRange() bool {
	return p.Min != nil && p.Max != nil && p.Step != nil
}

// ZeroValue returns the default when set, otherwise the zero scalar of the kind.
func (p TunableParameter) ZeroValue() Value {
	if p.Default.IsSet() {
		return p.Default
	}
	switch p.Kind {
	case ParameterKindBoolean:
		return BoolValue(false)
	case ParameterKindInteger:
		if p.Min != nil {
			return IntValue(int64(*p.Min))
		}
		return IntValue(0)
	case ParameterKindFloat:
		if p.Min != nil {
			return FloatValue(*p.Min)
		}
		return FloatValue(0)
	}
	if len(p.Choices) > 0 {
		return p.Choices[0]
	}
	return StringValue("")
}

// ParameterSpace is the ordered list of a strategy's tunable parameters.
// Declared order determines grid enumeration order.
type ParameterSpace struct {
	Parameters []TunableParameter
}

// Empty reports whether the space has no parameters.
func (s ParameterSpace) Empty() bool { return len(s.Parameters) == 0 }

// Names returns parameter names in declared order.
func (s ParameterSpace) Names() []string {
	names := make([]string, len(s.Parameters))
	for i, p := range s.Parameters {
		names[i] = p.Name
	}
	return names
}

// Assignment maps parameter names to concrete values.
type Assignment map[string]Value

// Clone returns an independent copy.
func (a Assignment) Clone() Assignment {
	if a == nil {
		return nil
	}
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Names returns the assigned names sorted ascending.
func (a Assignment) Names() []string {
	names := make([]string, 0, len(a))
	for k := range a {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Key returns a canonical representation: "name=value|name=value" sorted by name.
// Two assignments with equal keys are the same point in the space.
func (a Assignment) Key() string {
	var sb strings.Builder
	for i, name := range a.Names() {
		if i > 0 {
			sb.WriteByte('|')
		}
		v := a[name]
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(string(v.Type))
		sb.WriteByte(':')
		sb.WriteString(v.String())
	}
	return sb.String()
}

// String formats the assignment for logs and reports: "a=1, b=true".
func (a Assignment) String() string {
	if len(a) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(a))
	for _, name := range a.Names() {
		parts = append(parts, name+"="+a[name].String())
	}
	return strings.Join(parts, ", ")
}

// Equal reports whether both assignments hold the same values.
func (a Assignment) Equal(o Assignment) bool {
	if len(a) != len(o) {
		return false
	}
	for k, v := range a {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// RoundFloat rounds to the given number of decimals.
func RoundFloat(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
