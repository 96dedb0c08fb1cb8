// File: internal/config/value.go
// Brief: Tagged configuration values with ordered mappings.

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindMap
	KindSeq
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindSeq:
		return "seq"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is an immutable configuration value. Mappings keep their key order.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	keys []string
	m    map[string]Value
	seq  []Value
}

func Null() Value { return Value{} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Seq(items ...Value) Value { return Value{kind: KindSeq, seq: append([]Value(nil), items...)} }

// Entry is one key of a mapping.
type Entry struct {
	Key   string
	Value Value
}

// Map builds a mapping from entries; a repeated key keeps its first position
// and its last value.
func Map(entries ...Entry) Value {
	v := Value{kind: KindMap, m: make(map[string]Value, len(entries))}
	for _, e := range entries {
		if _, ok := v.m[e.Key]; !ok {
			v.keys = append(v.keys, e.Key)
		}
		v.m[e.Key] = e.Value
	}
	return v
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsMap() bool { return v.kind == KindMap }

// Str returns the string held by a KindString value.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Keys returns mapping keys in declaration order.
func (v Value) Keys() []string { return append([]string(nil), v.keys...) }

// Lookup returns the mapping entry for key.
func (v Value) Lookup(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	child, ok := v.m[key]
	return child, ok
}

// Items returns the elements of a sequence.
func (v Value) Items() []Value { return append([]Value(nil), v.seq...) }

// Len is the number of mapping entries or sequence items.
func (v Value) Len() int {
	switch v.kind {
	case KindMap:
		return len(v.keys)
	case KindSeq:
		return len(v.seq)
	}
	return 0
}

// Interface converts the value to plain Go data: map[string]any, []any,
// string, int64, float64, bool or nil.
func (v Value) Interface() any {
	return v.convert(func(k string) string { return k })
}

func (v Value) convert(key func(string) string) any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindMap:
		out := make(map[string]any, len(v.keys))
		for _, k := range v.keys {
			out[key(k)] = v.m[k].convert(key)
		}
		return out
	case KindSeq:
		out := make([]any, 0, len(v.seq))
		for _, item := range v.seq {
			out = append(out, item.convert(key))
		}
		return out
	}
	return nil
}

// String renders scalars the way they appear in YAML and containers as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return string(raw)
}

// MarshalJSON writes mappings in key order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindMap:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.m[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case KindSeq:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.seq {
			if i > 0 {
				buf.WriteByte(',')
			}
			vb, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	}
	return json.Marshal(v.Interface())
}

// FromNode converts a decoded YAML node into a Value.
func FromNode(n *yaml.Node) (Value, error) {
	if n == nil {
		return Null(), nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return FromNode(n.Content[0])
	case yaml.AliasNode:
		return FromNode(n.Alias)
	case yaml.MappingNode:
		entries := make([]Entry, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			kn, vn := n.Content[i], n.Content[i+1]
			if kn.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: mapping keys must be scalars", kn.Line)
			}
			if kn.Tag == "!!merge" {
				merged, err := FromNode(vn)
				if err != nil {
					return Value{}, err
				}
				for _, k := range merged.keys {
					entries = append(entries, Entry{Key: k, Value: merged.m[k]})
				}
				continue
			}
			child, err := FromNode(vn)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, Entry{Key: kn.Value, Value: child})
		}
		return Map(entries...), nil
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			child, err := FromNode(c)
			if err != nil {
				return Value{}, err
			}
			items = append(items, child)
		}
		return Seq(items...), nil
	case yaml.ScalarNode:
		return scalar(n)
	}
	return Value{}, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

func scalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			// Out of range integers stay textual.
			return String(n.Value), nil
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, err
		}
		return Float(f), nil
	}
	return String(n.Value), nil
}
