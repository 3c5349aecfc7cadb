// Package value implements the JSON-like tagged value used for entity
// representations and directive arguments.
package value

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is an immutable tagged union. The zero Value is Null.
type Value struct {
	kind  Kind
	b     bool
	n     float64
	s     string
	items []Value
	m     *object
}

// Entry is a single key/value pair of a Map.
type Entry struct {
	Key   string
	Value Value
}

// object keeps entries in insertion order with a key index for lookups.
type object struct {
	entries []Entry
	index   map[string]int
}

func Null() Value            { return Value{} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func String(s string) Value  { return Value{kind: KindString, s: s} }

// List returns a List holding items in order.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, items: cp}
}

// Map returns a Map of the given entries. A repeated key keeps the position of
// its first occurrence and the value of its last.
func Map(entries ...Entry) Value {
	o := &object{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		o.set(e.Key, e.Value)
	}
	return Value{kind: KindMap, m: o}
}

// E is shorthand for building an Entry.
func E(key string, v Value) Entry { return Entry{Key: key, Value: v} }

func (o *object) set(key string, v Value) {
	if i, ok := o.index[key]; ok {
		o.entries[i].Value = v
		return
	}
	o.index[key] = len(o.entries)
	o.entries = append(o.entries, Entry{Key: key, Value: v})
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// Len returns the number of items of a List or entries of a Map, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.items)
	case KindMap:
		return len(v.m.entries)
	}
	return 0
}

// Items returns a copy of the items of a List.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	out := make([]Value, len(v.items))
	copy(out, v.items)
	return out
}

// Index returns the i-th item of a List.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindList || i < 0 || i >= len(v.items) {
		return Value{}, false
	}
	return v.items[i], true
}

// Get looks up key in a Map. Lookup is case-sensitive.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	i, ok := v.m.index[key]
	if !ok {
		return Value{}, false
	}
	return v.m.entries[i].Value, true
}

// Lookup follows a path of map keys, e.g. Lookup("variation", "id").
func (v Value) Lookup(path ...string) (Value, bool) {
	cur := v
	for _, key := range path {
		next, ok := cur.Get(key)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// GetString is a convenience for reading a string entry of a Map.
func (v Value) GetString(key string) (string, bool) {
	f, ok := v.Get(key)
	if !ok {
		return "", false
	}
	return f.AsString()
}

// Keys returns the keys of a Map in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, len(v.m.entries))
	for i, e := range v.m.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the entries of a Map in insertion order.
func (v Value) Entries() []Entry {
	if v.kind != KindMap {
		return nil
	}
	out := make([]Entry, len(v.m.entries))
	copy(out, v.m.entries)
	return out
}

// With returns a copy of the Map with key set to f.
func (v Value) With(key string, f Value) Value {
	entries := v.Entries()
	return Map(append(entries, E(key, f))...)
}

// Equal reports deep equality. Map equality ignores entry order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n || (math.IsNaN(v.n) && math.IsNaN(o.n))
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m.entries) != len(o.m.entries) {
			return false
		}
		for _, e := range v.m.entries {
			other, ok := o.Get(e.Key)
			if !ok || !e.Value.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value as compact JSON.
func (v Value) String() string {
	var b strings.Builder
	v.writeJSON(&b)
	return b.String()
}
