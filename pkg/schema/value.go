package schema

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// ValueKind discriminates the literal value union.
type ValueKind string

const (
	KindString  ValueKind = "string"
	KindNumber  ValueKind = "number"
	KindBool    ValueKind = "boolean"
	KindArray   ValueKind = "array"
	KindObject  ValueKind = "object"
	KindInvalid ValueKind = ""
)

// Value is a scenario literal: string, number, boolean, array or object.
// Objects preserve insertion order so rendering is stable across runs.
type Value struct {
	kind    ValueKind
	str     string
	num     float64
	boolean bool
	items   []Value
	fields  *orderedmap.OrderedMap[string, Value]
}

func StringValue(s string) Value { return Value{kind: KindString, str: s} }
func NumberValue(n float64) Value {
	return Value{kind: KindNumber, num: n}
}
func BoolValue(b bool) Value    { return Value{kind: KindBool, boolean: b} }
func ArrayValue(items []Value) Value {
	return Value{kind: KindArray, items: items}
}

// ObjectValue builds an object from key/value pairs in the given order.
// A repeated key is overwritten by the last definition.
func ObjectValue(pairs ...[2]any) Value {
	m := orderedmap.New[string, Value]()
	for _, p := range pairs {
		m.Set(p[0].(string), p[1].(Value))
	}
	return Value{kind: KindObject, fields: m}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsZero() bool    { return v.kind == KindInvalid }

// Str returns the string payload; only meaningful for KindString.
func (v Value) Str() string { return v.str }

// Num returns the numeric payload; only meaningful for KindNumber.
func (v Value) Num() float64 { return v.num }

// Bool returns the boolean payload; only meaningful for KindBool.
func (v Value) Bool() bool { return v.boolean }

// Items returns the array elements; only meaningful for KindArray.
func (v Value) Items() []Value { return v.items }

// Fields returns the ordered object fields; only meaningful for KindObject.
func (v Value) Fields() *orderedmap.OrderedMap[string, Value] { return v.fields }

// Render produces the interpolation text for a value: scalars verbatim,
// arrays and objects as compact JSON. Integral numbers render without a
// fractional part so round-tripping through interpolation is lossless.
func (v Value) Render() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindArray, KindObject:
		data, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(data)
	}
	return ""
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && !math.IsInf(n, 0) {
		return strconv.FormatFloat(n, 'f', 0, 64)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// MarshalJSON emits the canonical compact JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindString:
		data, err := jsonString(v.str)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindNumber:
		buf.WriteString(formatNumber(v.num))
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.boolean))
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		first := true
		for pair := v.fields.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, err := jsonString(pair.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := pair.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("cannot serialize zero value")
	}
	return nil
}

func jsonString(s string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses canonical JSON back into a value. JSON is a subset
// of YAML, so the YAML decoder (which preserves mapping order through
// yaml.Node) does the work.
func (v *Value) UnmarshalJSON(data []byte) error {
	return yaml.Unmarshal(data, v)
}

// UnmarshalYAML decodes any YAML node into the literal union. Mapping
// order is preserved; duplicate keys are overwritten by the last
// definition.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!bool":
			b, err := strconv.ParseBool(node.Value)
			if err != nil {
				return fmt.Errorf("line %d: invalid boolean %q", node.Line, node.Value)
			}
			*v = BoolValue(b)
		case "!!int", "!!float":
			n, err := strconv.ParseFloat(node.Value, 64)
			if err != nil {
				return fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
			}
			*v = NumberValue(n)
		case "!!null":
			return fmt.Errorf("line %d: null is not a literal value", node.Line)
		default:
			*v = StringValue(node.Value)
		}
	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			var item Value
			if err := item.UnmarshalYAML(child); err != nil {
				return err
			}
			items = append(items, item)
		}
		*v = ArrayValue(items)
	case yaml.MappingNode:
		m := orderedmap.New[string, Value]()
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			var val Value
			if err := val.UnmarshalYAML(node.Content[i+1]); err != nil {
				return err
			}
			m.Set(key, val)
		}
		*v = Value{kind: KindObject, fields: m}
	case yaml.AliasNode:
		return v.UnmarshalYAML(node.Alias)
	default:
		return fmt.Errorf("line %d: unsupported YAML node for literal value", node.Line)
	}
	return nil
}

// ParseLiteral parses a textual literal ("hi", 42, true, [1,2], {"a":1})
// into the value union. Used for --var overrides and for re-parsing
// interpolated output.
func ParseLiteral(text string) (Value, error) {
	var v Value
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return Value{}, fmt.Errorf("parse literal: %w", err)
	}
	if v.IsZero() {
		return Value{}, fmt.Errorf("parse literal: empty input")
	}
	return v, nil
}

// Equal reports deep equality. Object comparison ignores insertion order;
// two objects are equal when they hold the same key set with equal values.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.boolean == other.boolean
	case KindArray:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if v.fields.Len() != other.fields.Len() {
			return false
		}
		for pair := v.fields.Oldest(); pair != nil; pair = pair.Next() {
			got, ok := other.fields.Get(pair.Key)
			if !ok || !pair.Value.Equal(got) {
				return false
			}
		}
		return true
	}
	return v.kind == other.kind
}

func (v Value) String() string { return v.Render() }

// JSONSchema customizes the generated schema: a literal value accepts any
// non-null JSON value.
func (Value) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: "Scenario literal: string, number, boolean, array or object",
	}
}
