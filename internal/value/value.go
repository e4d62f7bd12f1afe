package value

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Kind identifies which variant of the Value tagged union is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindChar
	KindString
	KindRegex
	KindList
	KindMap
	KindRangeInt
	KindRangeFloat
	KindRangeChar
	// KindBadValue marks a node whose raw source text could not be coerced
	// to the type its document tagged it with (e.g. a YAML !!int scalar
	// that isn't a valid integer). It keeps its Path so the rest of the
	// document can still load, but has no typed payload: Equal and Compare
	// refuse it rather than panicking or silently matching.
	KindBadValue
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	case KindRegex:
		return "regex"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindRangeInt, KindRangeFloat, KindRangeChar:
		return "range"
	case KindBadValue:
		return "bad_value"
	default:
		return "unknown"
	}
}

// RangeBounds holds the shared shape of the three Range* kinds: a lower and
// upper bound, each independently inclusive or exclusive.
type RangeBounds struct {
	LowerInclusive bool
	UpperInclusive bool
}

// Value is a node of a loaded document: a tagged union over the scalar,
// collection, and range variants a rule query can encounter. Every Value
// knows the Path by which it was reached, so a comparison failure can be
// reported against the exact location that produced it.
type Value struct {
	kind Kind
	path Path

	b bool
	i int64
	f float64
	c rune
	s string // String and Regex payload

	list []*Value

	mapKeys []string
	mapVals map[string]*Value

	rangeBounds  RangeBounds
	rangeIntLo   int64
	rangeIntHi   int64
	rangeFloatLo float64
	rangeFloatHi float64
	rangeCharLo  rune
	rangeCharHi  rune

	compiled *regexp.Regexp // lazily compiled Regex payload

	idx *Index // shared by every node of the document this value was loaded from
}

// Kind reports which variant of the union is populated.
func (v *Value) Kind() Kind { return v.kind }

// Path reports where this value was reached from the document root.
func (v *Value) Path() Path { return v.path }

// Bool returns the payload of a KindBool value. Calling it on any other
// kind is a programming error and panics, matching the other accessors.
func (v *Value) Bool() bool {
	v.mustBe(KindBool)
	return v.b
}

// Int returns the payload of a KindInt value.
func (v *Value) Int() int64 {
	v.mustBe(KindInt)
	return v.i
}

// Float returns the payload of a KindFloat value.
func (v *Value) Float() float64 {
	v.mustBe(KindFloat)
	return v.f
}

// Char returns the payload of a KindChar value.
func (v *Value) Char() rune {
	v.mustBe(KindChar)
	return v.c
}

// Str returns the payload of a KindString value.
func (v *Value) Str() string {
	v.mustBe(KindString)
	return v.s
}

// RawText returns the original, uncoerced source text of a KindBadValue
// value.
func (v *Value) RawText() string {
	v.mustBe(KindBadValue)
	return v.s
}

// RegexSource returns the uncompiled pattern of a KindRegex value.
func (v *Value) RegexSource() string {
	v.mustBe(KindRegex)
	return v.s
}

// Regexp returns the compiled form of a KindRegex value, compiling and
// caching it on first use.
func (v *Value) Regexp() (*regexp.Regexp, error) {
	v.mustBe(KindRegex)
	if v.compiled == nil {
		re, err := regexp.Compile(v.s)
		if err != nil {
			return nil, err
		}
		v.compiled = re
	}
	return v.compiled, nil
}

// List returns the elements of a KindList value, in document order.
func (v *Value) List() []*Value {
	v.mustBe(KindList)
	return v.list
}

// MapKeys returns the keys of a KindMap value, in document order.
func (v *Value) MapKeys() []string {
	v.mustBe(KindMap)
	return v.mapKeys
}

// MapGet looks up a key of a KindMap value. The second return reports
// whether the key was present.
func (v *Value) MapGet(key string) (*Value, bool) {
	v.mustBe(KindMap)
	child, ok := v.mapVals[key]
	return child, ok
}

// SortedMapKeys returns the keys of a KindMap value sorted lexically. The
// KEYS comparators do not use it; they walk MapKeys in document order.
func (v *Value) SortedMapKeys() []string {
	keys := append([]string(nil), v.MapKeys()...)
	sort.Strings(keys)
	return keys
}

// RangeBoundsInfo returns the inclusivity flags of a Range* value.
func (v *Value) RangeBoundsInfo() RangeBounds {
	v.mustBeOneOf(KindRangeInt, KindRangeFloat, KindRangeChar)
	return v.rangeBounds
}

// IntRange returns the bounds of a KindRangeInt value.
func (v *Value) IntRange() (lo, hi int64) {
	v.mustBe(KindRangeInt)
	return v.rangeIntLo, v.rangeIntHi
}

// FloatRange returns the bounds of a KindRangeFloat value.
func (v *Value) FloatRange() (lo, hi float64) {
	v.mustBe(KindRangeFloat)
	return v.rangeFloatLo, v.rangeFloatHi
}

// CharRange returns the bounds of a KindRangeChar value.
func (v *Value) CharRange() (lo, hi rune) {
	v.mustBe(KindRangeChar)
	return v.rangeCharLo, v.rangeCharHi
}

func (v *Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("value: accessor for %s called on %s value at %s", k, v.kind, v.path))
	}
}

func (v *Value) mustBeOneOf(ks ...Kind) {
	for _, k := range ks {
		if v.kind == k {
			return
		}
	}
	panic(fmt.Sprintf("value: accessor called on unexpected kind %s at %s", v.kind, v.path))
}

// IsEmpty reports whether v is the kind of value the EMPTY/NOT EMPTY
// comparators consider empty: the empty string, an empty list, an empty
// map, or null.
func (v *Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == ""
	case KindList:
		return len(v.list) == 0
	case KindMap:
		return len(v.mapKeys) == 0
	default:
		return false
	}
}

// Constructors. Every constructor stamps the value with the path and
// location it was produced at; synthetic values (built-in function
// results, literal query arguments) pass Root() or a zero Location.

func NewNull(path Path) *Value { return &Value{kind: KindNull, path: path} }

func NewBool(b bool, path Path) *Value { return &Value{kind: KindBool, b: b, path: path} }

func NewInt(i int64, path Path) *Value { return &Value{kind: KindInt, i: i, path: path} }

func NewFloat(f float64, path Path) *Value { return &Value{kind: KindFloat, f: f, path: path} }

func NewChar(c rune, path Path) *Value { return &Value{kind: KindChar, c: c, path: path} }

func NewString(s string, path Path) *Value { return &Value{kind: KindString, s: s, path: path} }

func NewRegex(pattern string, path Path) *Value { return &Value{kind: KindRegex, s: pattern, path: path} }

// NewBadValue builds a KindBadValue node carrying the raw source text that
// failed to coerce to its document-declared type.
func NewBadValue(raw string, path Path) *Value { return &Value{kind: KindBadValue, s: raw, path: path} }

func NewList(items []*Value, path Path) *Value {
	return &Value{kind: KindList, list: items, path: path}
}

// NewMap builds a KindMap value from an ordered slice of keys and a
// key->Value lookup. keys fixes the document order used by path-order
// iteration; MapGet is unaffected by ordering.
func NewMap(keys []string, vals map[string]*Value, path Path) *Value {
	return &Value{kind: KindMap, mapKeys: keys, mapVals: vals, path: path}
}

func NewIntRange(lo, hi int64, bounds RangeBounds, path Path) *Value {
	return &Value{kind: KindRangeInt, rangeIntLo: lo, rangeIntHi: hi, rangeBounds: bounds, path: path}
}

func NewFloatRange(lo, hi float64, bounds RangeBounds, path Path) *Value {
	return &Value{kind: KindRangeFloat, rangeFloatLo: lo, rangeFloatHi: hi, rangeBounds: bounds, path: path}
}

func NewCharRange(lo, hi rune, bounds RangeBounds, path Path) *Value {
	return &Value{kind: KindRangeChar, rangeCharLo: lo, rangeCharHi: hi, rangeBounds: bounds, path: path}
}

// FromGeneric builds a Value tree from a generic Go value of the shape
// produced by encoding/json's Unmarshal-into-interface{} (after
// UseNumber()): map[string]interface{}, []interface{}, json.Number,
// string, bool, nil. It is the fallback path used by callers (and tests)
// that already have a decoded tree instead of raw text; FromJSON and
// FromYAML build Paths with real source Locations and should be preferred
// for loading documents.
//
// Because map[string]interface{} does not preserve key order, the Value's
// map keys come back sorted lexically. Callers that need document order
// preserved from source text must use FromJSON or FromYAML instead.
func FromGeneric(tree any, root Path) (*Value, error) {
	v, err := fromGeneric(tree, root)
	if err != nil {
		return nil, err
	}
	buildIndex(v)
	return v, nil
}

func fromGeneric(tree any, root Path) (*Value, error) {
	switch t := tree.(type) {
	case nil:
		return NewNull(root), nil
	case bool:
		return NewBool(t, root), nil
	case int:
		return NewInt(int64(t), root), nil
	case int64:
		return NewInt(t, root), nil
	case float64:
		return NewFloat(t, root), nil
	case json.Number:
		if !strings.ContainsAny(string(t), ".eE") {
			if iv, err := t.Int64(); err == nil {
				return NewInt(iv, root), nil
			}
		}
		fv, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("value: invalid number %q at %s: %w", string(t), root, err)
		}
		return NewFloat(fv, root), nil
	case string:
		return NewString(t, root), nil
	case []any:
		items := make([]*Value, 0, len(t))
		for i, elem := range t {
			child, err := fromGeneric(elem, root.ExtendIndex(i))
			if err != nil {
				return nil, err
			}
			items = append(items, child)
		}
		return NewList(items, root), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		vals := make(map[string]*Value, len(t))
		for _, k := range keys {
			child, err := fromGeneric(t[k], root.ExtendKey(k))
			if err != nil {
				return nil, err
			}
			vals[k] = child
		}
		return NewMap(keys, vals, root), nil
	default:
		return nil, fmt.Errorf("value: unsupported generic type %T at %s", tree, root)
	}
}
