package value

import (
	"fmt"
	"regexp"
	"strconv"
)

// relativePointer matches a relative Traverse pointer: a count of ancestors
// to walk up, followed either by "#" (the key by which that ancestor was
// reached) or "/..." (a path to resolve from that ancestor). A bare count
// with neither suffix names the ancestor itself.
var relativePointer = regexp.MustCompile(`^(\d+)(#|/.*)?$`)

// Index is a flat path->Value lookup built once for a loaded document. It
// is what Traverse uses to jump to an absolute path or walk to an ancestor,
// since a Value itself only remembers the Path it was reached by, not a
// link to its parent or to the document root.
type Index struct {
	byPath map[string]*Value
}

// buildIndex walks every node reachable from root, indexing it by its
// serialized Path and stamping it with the shared Index so its own
// Traverse method has somewhere to look things up.
func buildIndex(root *Value) {
	idx := &Index{byPath: map[string]*Value{}}
	indexValue(root, idx)
}

func indexValue(v *Value, idx *Index) {
	idx.byPath[v.path.String()] = v
	v.idx = idx
	switch v.kind {
	case KindList:
		for _, item := range v.list {
			indexValue(item, idx)
		}
	case KindMap:
		for _, k := range v.mapKeys {
			indexValue(v.mapVals[k], idx)
		}
	}
}

// Traverse resolves pointer against the document v belongs to. pointer is
// a JSON-Pointer-like string:
//
//   - "" or "0": v itself.
//   - an absolute path ("/Resources/Bucket/0"): looked up from the
//     document root.
//   - "N#": the key (or index) by which the Nth ancestor of v was reached.
//   - "N/rest": rest resolved starting from the Nth ancestor of v.
//
// v must have been produced by FromJSON, FromYAML, or FromGeneric, the
// entry points that build a document's Index; a value built directly from
// a constructor and never indexed returns an error.
func (v *Value) Traverse(pointer string) (*Value, error) {
	if v.idx == nil {
		return nil, fmt.Errorf("value: %s has no traversal index to resolve %q against", v.path, pointer)
	}
	return v.idx.traverse(pointer, v)
}

func (idx *Index) traverse(pointer string, from *Value) (*Value, error) {
	if pointer == "" || pointer == "0" {
		return from, nil
	}
	if pointer == "0#" {
		return keySegmentValue(from), nil
	}
	if m := relativePointer.FindStringSubmatch(pointer); m != nil {
		n, _ := strconv.Atoi(m[1])
		ancestor := from
		for i := 0; i < n; i++ {
			if len(ancestor.path.Segments) == 0 {
				return nil, fmt.Errorf("value: pointer %q points past the root, starting from %s", pointer, from.path)
			}
			parentPath := ancestor.path.DropLast()
			parent, ok := idx.byPath[parentPath.String()]
			if !ok {
				return nil, fmt.Errorf("value: no ancestor indexed at %s", parentPath)
			}
			ancestor = parent
		}
		switch suffix := m[2]; {
		case suffix == "#":
			return keySegmentValue(ancestor), nil
		case suffix == "":
			return ancestor, nil
		default:
			base := ancestor.path.String()
			if len(ancestor.path.Segments) == 0 {
				base = "" // the root renders as "/"; "/"+suffix would start with "//"
			}
			return idx.traverse(base+suffix, ancestor)
		}
	}
	resolved, ok := idx.byPath[pointer]
	if !ok {
		return nil, fmt.Errorf("value: pointer %q did not resolve from %s", pointer, from.path)
	}
	return resolved, nil
}

// keySegmentValue returns the segment by which v was reached from its
// parent, as a synthetic string value, matching the "key()" built-in's
// reading of Path().Relative().
func keySegmentValue(v *Value) *Value {
	return NewString(v.path.Relative().String(), v.path)
}
