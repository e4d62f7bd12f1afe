package value

import (
	"encoding/json"
	"io"
	"sort"
	"strings"
)

// lineIndex maps a byte offset in a source text to a 1-based line/column
// pair, used to stamp JSON-decoded values with a source Location the way
// yaml.Node gives us for free on the YAML path.
type lineIndex struct {
	newlineOffsets []int
}

func buildLineIndex(text string) lineIndex {
	var offsets []int
	for i, r := range text {
		if r == '\n' {
			offsets = append(offsets, i)
		}
	}
	return lineIndex{newlineOffsets: offsets}
}

func (li lineIndex) locationAt(offset int64) Location {
	off := int(offset)
	// line is the count of newlines strictly before off, 1-based.
	line := sort.SearchInts(li.newlineOffsets, off)
	col := off
	if line > 0 {
		col = off - li.newlineOffsets[line-1] - 1
	}
	if col < 0 {
		col = 0
	}
	return Location{Line: line + 1, Column: col + 1}
}

// FromJSON parses JSON text into a Value tree, preserving object key order
// and tagging every node with its source Location. name identifies the
// document in error messages.
func FromJSON(text, name string) (*Value, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	li := buildLineIndex(text)

	v, err := decodeJSONValue(dec, Root(), li)
	if err != nil {
		return nil, &LoadError{Format: "json", Name: name, Path: Root(), Reason: "malformed document", Cause: err}
	}
	buildIndex(v)
	return v, nil
}

func decodeJSONValue(dec *json.Decoder, path Path, li lineIndex) (*Value, error) {
	startOffset := dec.InputOffset()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	loc := li.locationAt(startOffset)
	path = path.WithLocation(loc)

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeJSONObject(dec, path, li)
		case '[':
			return decodeJSONArray(dec, path, li)
		default:
			return nil, io.ErrUnexpectedEOF
		}
	case bool:
		return NewBool(t, path), nil
	case json.Number:
		if !strings.ContainsAny(string(t), ".eE") {
			if iv, err := t.Int64(); err == nil {
				return NewInt(iv, path), nil
			}
		}
		fv, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return NewFloat(fv, path), nil
	case string:
		return NewString(t, path), nil
	case nil:
		return NewNull(path), nil
	default:
		return nil, io.ErrUnexpectedEOF
	}
}

func decodeJSONObject(dec *json.Decoder, path Path, li lineIndex) (*Value, error) {
	var keys []string
	vals := map[string]*Value{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, io.ErrUnexpectedEOF
		}
		child, err := decodeJSONValue(dec, path.ExtendKey(key), li)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		vals[key] = child
	}
	if _, err := dec.Token(); err != nil { // consume closing '}'
		return nil, err
	}
	return NewMap(keys, vals, path), nil
}

func decodeJSONArray(dec *json.Decoder, path Path, li lineIndex) (*Value, error) {
	var items []*Value
	idx := 0
	for dec.More() {
		child, err := decodeJSONValue(dec, path.ExtendIndex(idx), li)
		if err != nil {
			return nil, err
		}
		items = append(items, child)
		idx++
	}
	if _, err := dec.Token(); err != nil { // consume closing ']'
		return nil, err
	}
	return NewList(items, path), nil
}
