package value

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// cfnShortTags maps CloudFormation's short-form YAML tags to the long-form
// intrinsic-function key a document author could equally have written by
// hand. Ref and Condition are bare keys; every other intrinsic nests under
// "Fn::". This table matches the mapping CloudFormation's own template
// loader applies before policy evaluation ever sees the document.
var cfnShortTags = map[string]string{
	"!Ref":              "Ref",
	"!Condition":        "Condition",
	"!GetAtt":           "Fn::GetAtt",
	"!Sub":              "Fn::Sub",
	"!Join":             "Fn::Join",
	"!FindInMap":        "Fn::FindInMap",
	"!If":               "Fn::If",
	"!Not":              "Fn::Not",
	"!Equals":           "Fn::Equals",
	"!Select":           "Fn::Select",
	"!Split":            "Fn::Split",
	"!Contains":         "Fn::Contains",
	"!And":              "Fn::And",
	"!Or":               "Fn::Or",
	"!ImportValue":      "Fn::ImportValue",
	"!Base64":           "Fn::Base64",
	"!Cidr":             "Fn::Cidr",
	"!GetAZs":           "Fn::GetAZs",
	"!RefAll":           "Fn::RefAll",
	"!EachMemberIn":     "Fn::EachMemberIn",
	"!EachMemberEquals": "Fn::EachMemberEquals",
	"!ValueOf":          "Fn::ValueOf",
}

// FromYAML parses YAML text into a Value tree. Short-form CloudFormation
// intrinsic tags (!Ref, !GetAtt, ...) are expanded to their long-form
// single-key map equivalent so query evaluation never needs to special-case
// tags. name identifies the document in error messages.
func FromYAML(text, name string) (*Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, &LoadError{Format: "yaml", Name: name, Path: Root(), Reason: "malformed document", Cause: err}
	}
	if len(doc.Content) == 0 {
		v := NewNull(Root())
		buildIndex(v)
		return v, nil
	}
	v, err := decodeYAMLNode(doc.Content[0], Root(), name)
	if err != nil {
		return nil, err
	}
	buildIndex(v)
	return v, nil
}

func nodeLocation(n *yaml.Node) Location {
	return Location{Line: n.Line, Column: n.Column}
}

func decodeYAMLNode(n *yaml.Node, path Path, name string) (*Value, error) {
	loc := nodeLocation(n)
	path = path.WithLocation(loc)

	if n.Kind == yaml.AliasNode {
		if n.Alias == nil {
			return nil, &LoadError{Format: "yaml", Name: name, Path: path, Reason: "unresolvable alias reference"}
		}
		return decodeYAMLNode(n.Alias, path, name)
	}

	if longKey, ok := cfnShortTags[n.Tag]; ok {
		return decodeShortTag(n, longKey, path, name)
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return NewNull(path), nil
		}
		return decodeYAMLNode(n.Content[0], path, name)
	case yaml.MappingNode:
		return decodeYAMLMapping(n, path, name)
	case yaml.SequenceNode:
		return decodeYAMLSequence(n, path, name)
	case yaml.ScalarNode:
		return decodeYAMLScalar(n, path, name)
	default:
		return nil, &LoadError{Format: "yaml", Name: name, Path: path, Reason: fmt.Sprintf("unsupported node kind %d", n.Kind)}
	}
}

func decodeYAMLMapping(n *yaml.Node, path Path, name string) (*Value, error) {
	keys := make([]string, 0, len(n.Content)/2)
	vals := make(map[string]*Value, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode := n.Content[i]
		valNode := n.Content[i+1]
		key := keyNode.Value
		child, err := decodeYAMLNode(valNode, path.ExtendKey(key), name)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		vals[key] = child
	}
	return NewMap(keys, vals, path), nil
}

func decodeYAMLSequence(n *yaml.Node, path Path, name string) (*Value, error) {
	items := make([]*Value, 0, len(n.Content))
	for i, elemNode := range n.Content {
		child, err := decodeYAMLNode(elemNode, path.ExtendIndex(i), name)
		if err != nil {
			return nil, err
		}
		items = append(items, child)
	}
	return NewList(items, path), nil
}

// decodeYAMLScalar coerces a scalar node to the type its tag declares. A
// scalar tagged !!bool/!!int/!!float whose text doesn't actually parse as
// that type becomes a BadValue rather than failing the whole document: a
// single malformed number shouldn't take down every other rule that never
// touches it.
func decodeYAMLScalar(n *yaml.Node, path Path, name string) (*Value, error) {
	tag := n.Tag
	switch tag {
	case "!!null":
		return NewNull(path), nil
	case "!!bool":
		b, err := strconv.ParseBool(n.Value)
		if err != nil {
			return NewBadValue(n.Value, path), nil
		}
		return NewBool(b, path), nil
	case "!!int":
		i, err := strconv.ParseInt(strings.ReplaceAll(n.Value, "_", ""), 0, 64)
		if err != nil {
			return NewBadValue(n.Value, path), nil
		}
		return NewInt(i, path), nil
	case "!!float":
		f, err := strconv.ParseFloat(strings.ReplaceAll(n.Value, "_", ""), 64)
		if err != nil {
			return NewBadValue(n.Value, path), nil
		}
		return NewFloat(f, path), nil
	case "!!str", "":
		return NewString(n.Value, path), nil
	default:
		// An unrecognized custom tag (not a CFN short form) is treated as a
		// plain string of its literal scalar text.
		return NewString(n.Value, path), nil
	}
}

// decodeShortTag expands a CFN short-tag node into the single-key map its
// long form would produce: {longKey: <argument>}.
func decodeShortTag(n *yaml.Node, longKey string, path Path, name string) (*Value, error) {
	argPath := path.ExtendKey(longKey)
	var arg *Value
	var err error

	switch n.Kind {
	case yaml.ScalarNode:
		if longKey == "Fn::GetAtt" {
			parts := strings.SplitN(n.Value, ".", 2)
			items := make([]*Value, 0, len(parts))
			for i, p := range parts {
				items = append(items, NewString(p, argPath.ExtendIndex(i)))
			}
			arg = NewList(items, argPath)
		} else {
			arg, err = decodeYAMLScalarAsPlainTagged(n, argPath, name)
		}
	case yaml.SequenceNode:
		arg, err = decodeYAMLSequence(n, argPath, name)
	case yaml.MappingNode:
		arg, err = decodeYAMLMapping(n, argPath, name)
	default:
		return nil, &LoadError{Format: "yaml", Name: name, Path: path, Reason: fmt.Sprintf("unsupported short-tag node kind %d for %s", n.Kind, longKey)}
	}
	if err != nil {
		return nil, err
	}

	return NewMap([]string{longKey}, map[string]*Value{longKey: arg}, path), nil
}

// decodeYAMLScalarAsPlainTagged decodes a scalar node carrying a CFN
// short tag as if it were untagged, so e.g. `!Ref "3"` still reads as the
// string "3" rather than being coerced to an int by its !!tag.
func decodeYAMLScalarAsPlainTagged(n *yaml.Node, path Path, name string) (*Value, error) {
	return NewString(n.Value, path), nil
}
