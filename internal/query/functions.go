package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gzhole/guardcore/internal/value"
)

// BuiltinFunc is a built-in function callable from a FunctionCallPart. Its
// result is wrapped as a Literal cursor; an error it returns becomes an
// EvaluationError, aborting the enclosing clause. A bad coercion here is
// a rule-author bug, not a data-shape condition, so it is not recovered
// into an UnResolved.
type BuiltinFunc func(args []*value.Value) (*value.Value, error)

var builtins = map[string]BuiltinFunc{
	"parse_int":     builtinParseInt,
	"parse_float":   builtinParseFloat,
	"parse_bool":    builtinParseBool,
	"parse_str":     builtinParseStr,
	"parse_char":    builtinParseChar,
	"regex_replace": builtinRegexReplace,
	"substring":     builtinSubstring,
	"to_upper":      builtinToUpper,
	"to_lower":      builtinToLower,
	"join":          builtinJoin,
	"json_parse":    builtinJSONParse,
	"url_decode":    builtinURLDecode,
	"key":           builtinKey,
}

func requireArgs(name string, args []*value.Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s: expected %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func builtinParseInt(args []*value.Value) (*value.Value, error) {
	if err := requireArgs("parse_int", args, 1); err != nil {
		return nil, err
	}
	s, err := asString(args[0])
	if err != nil {
		return nil, fmt.Errorf("parse_int: %w", err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse_int: %q is not an integer", s)
	}
	return value.NewInt(n, value.Root()), nil
}

func builtinParseFloat(args []*value.Value) (*value.Value, error) {
	if err := requireArgs("parse_float", args, 1); err != nil {
		return nil, err
	}
	s, err := asString(args[0])
	if err != nil {
		return nil, fmt.Errorf("parse_float: %w", err)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("parse_float: %q is not a float", s)
	}
	return value.NewFloat(f, value.Root()), nil
}

func builtinParseBool(args []*value.Value) (*value.Value, error) {
	if err := requireArgs("parse_bool", args, 1); err != nil {
		return nil, err
	}
	s, err := asString(args[0])
	if err != nil {
		return nil, fmt.Errorf("parse_bool: %w", err)
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("parse_bool: %q is not a bool", s)
	}
	return value.NewBool(b, value.Root()), nil
}

func builtinParseStr(args []*value.Value) (*value.Value, error) {
	if err := requireArgs("parse_str", args, 1); err != nil {
		return nil, err
	}
	return value.NewString(scalarDisplay(args[0]), value.Root()), nil
}

func builtinParseChar(args []*value.Value) (*value.Value, error) {
	if err := requireArgs("parse_char", args, 1); err != nil {
		return nil, err
	}
	s, err := asString(args[0])
	if err != nil {
		return nil, fmt.Errorf("parse_char: %w", err)
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return nil, fmt.Errorf("parse_char: %q is not exactly one character", s)
	}
	return value.NewChar(runes[0], value.Root()), nil
}

func builtinRegexReplace(args []*value.Value) (*value.Value, error) {
	if err := requireArgs("regex_replace", args, 3); err != nil {
		return nil, err
	}
	subject, err := asString(args[0])
	if err != nil {
		return nil, fmt.Errorf("regex_replace: %w", err)
	}
	if args[1].Kind() != value.KindRegex {
		return nil, fmt.Errorf("regex_replace: second argument must be a regex literal")
	}
	re, err := args[1].Regexp()
	if err != nil {
		return nil, fmt.Errorf("regex_replace: %w", err)
	}
	template, err := asString(args[2])
	if err != nil {
		return nil, fmt.Errorf("regex_replace: %w", err)
	}
	result := re.ReplaceAllString(subject, template)
	return value.NewString(result, value.Root()), nil
}

func builtinSubstring(args []*value.Value) (*value.Value, error) {
	if err := requireArgs("substring", args, 3); err != nil {
		return nil, err
	}
	s, err := asString(args[0])
	if err != nil {
		return nil, fmt.Errorf("substring: %w", err)
	}
	from, err := asInt(args[1])
	if err != nil {
		return nil, fmt.Errorf("substring: %w", err)
	}
	to, err := asInt(args[2])
	if err != nil {
		return nil, fmt.Errorf("substring: %w", err)
	}
	runes := []rune(s)
	if from < 0 || to > int64(len(runes)) || from > to {
		return nil, fmt.Errorf("substring: [%d,%d) out of range for a %d-character string", from, to, len(runes))
	}
	return value.NewString(string(runes[from:to]), value.Root()), nil
}

func builtinToUpper(args []*value.Value) (*value.Value, error) {
	if err := requireArgs("to_upper", args, 1); err != nil {
		return nil, err
	}
	s, err := asString(args[0])
	if err != nil {
		return nil, fmt.Errorf("to_upper: %w", err)
	}
	return value.NewString(strings.ToUpper(s), value.Root()), nil
}

func builtinToLower(args []*value.Value) (*value.Value, error) {
	if err := requireArgs("to_lower", args, 1); err != nil {
		return nil, err
	}
	s, err := asString(args[0])
	if err != nil {
		return nil, fmt.Errorf("to_lower: %w", err)
	}
	return value.NewString(strings.ToLower(s), value.Root()), nil
}

func builtinJoin(args []*value.Value) (*value.Value, error) {
	if err := requireArgs("join", args, 2); err != nil {
		return nil, err
	}
	if args[0].Kind() != value.KindList {
		return nil, fmt.Errorf("join: first argument must be a list")
	}
	sep, err := asString(args[1])
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	parts := make([]string, 0, len(args[0].List()))
	for _, item := range args[0].List() {
		s, err := asString(item)
		if err != nil {
			return nil, fmt.Errorf("join: %w", err)
		}
		parts = append(parts, s)
	}
	return value.NewString(strings.Join(parts, sep), value.Root()), nil
}

func builtinJSONParse(args []*value.Value) (*value.Value, error) {
	if err := requireArgs("json_parse", args, 1); err != nil {
		return nil, err
	}
	s, err := asString(args[0])
	if err != nil {
		return nil, fmt.Errorf("json_parse: %w", err)
	}
	v, err := value.FromJSON(s, "json_parse")
	if err != nil {
		return nil, fmt.Errorf("json_parse: %w", err)
	}
	return v, nil
}

func builtinURLDecode(args []*value.Value) (*value.Value, error) {
	if err := requireArgs("url_decode", args, 1); err != nil {
		return nil, err
	}
	s, err := asString(args[0])
	if err != nil {
		return nil, fmt.Errorf("url_decode: %w", err)
	}
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return nil, fmt.Errorf("url_decode: %w", err)
	}
	return value.NewString(decoded, value.Root()), nil
}

func builtinKey(args []*value.Value) (*value.Value, error) {
	if err := requireArgs("key", args, 1); err != nil {
		return nil, err
	}
	seg := args[0].Path().Relative()
	return value.NewString(seg.String(), value.Root()), nil
}

func asString(v *value.Value) (string, error) {
	if v.Kind() != value.KindString {
		return "", fmt.Errorf("expected a string, got %s", v.Kind())
	}
	return v.Str(), nil
}

func asInt(v *value.Value) (int64, error) {
	if v.Kind() != value.KindInt {
		return 0, fmt.Errorf("expected an int, got %s", v.Kind())
	}
	return v.Int(), nil
}

func scalarDisplay(v *value.Value) string {
	switch v.Kind() {
	case value.KindString:
		return v.Str()
	case value.KindInt:
		return strconv.FormatInt(v.Int(), 10)
	case value.KindFloat:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case value.KindBool:
		return strconv.FormatBool(v.Bool())
	case value.KindChar:
		return string(v.Char())
	case value.KindNull:
		return "null"
	default:
		return v.Kind().String()
	}
}
