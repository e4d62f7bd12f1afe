package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gzhole/guardcore/internal/value"
)

func str(s string) *value.Value { return value.NewString(s, value.Root()) }

func TestBuiltinParseIntAndFloat(t *testing.T) {
	v, err := builtinParseInt([]*value.Value{str(" 42 ")})
	require.NoError(t, err)
	require.Equal(t, int64(42), v.Int())

	_, err = builtinParseInt([]*value.Value{str("not-a-number")})
	require.Error(t, err)

	f, err := builtinParseFloat([]*value.Value{str("3.5")})
	require.NoError(t, err)
	require.Equal(t, 3.5, f.Float())
}

func TestBuiltinParseBool(t *testing.T) {
	v, err := builtinParseBool([]*value.Value{str("true")})
	require.NoError(t, err)
	require.True(t, v.Bool())
}

func TestBuiltinParseChar(t *testing.T) {
	v, err := builtinParseChar([]*value.Value{str("q")})
	require.NoError(t, err)
	require.Equal(t, 'q', v.Char())

	_, err = builtinParseChar([]*value.Value{str("qq")})
	require.Error(t, err)
}

func TestBuiltinRegexReplace(t *testing.T) {
	subject := str("arn:aws:s3:::my-bucket")
	pattern := value.NewRegex("^arn:aws:s3:::", value.Root())
	template := str("")
	v, err := builtinRegexReplace([]*value.Value{subject, pattern, template})
	require.NoError(t, err)
	require.Equal(t, "my-bucket", v.Str())
}

func TestBuiltinSubstring(t *testing.T) {
	v, err := builtinSubstring([]*value.Value{str("hello world"), value.NewInt(0, value.Root()), value.NewInt(5, value.Root())})
	require.NoError(t, err)
	require.Equal(t, "hello", v.Str())

	_, err = builtinSubstring([]*value.Value{str("hi"), value.NewInt(0, value.Root()), value.NewInt(10, value.Root())})
	require.Error(t, err)
}

func TestBuiltinToUpperToLower(t *testing.T) {
	v, err := builtinToUpper([]*value.Value{str("AbC")})
	require.NoError(t, err)
	require.Equal(t, "ABC", v.Str())

	v, err = builtinToLower([]*value.Value{str("AbC")})
	require.NoError(t, err)
	require.Equal(t, "abc", v.Str())
}

func TestBuiltinJoin(t *testing.T) {
	list := value.NewList([]*value.Value{str("a"), str("b"), str("c")}, value.Root())
	v, err := builtinJoin([]*value.Value{list, str(",")})
	require.NoError(t, err)
	require.Equal(t, "a,b,c", v.Str())
}

func TestBuiltinJSONParse(t *testing.T) {
	v, err := builtinJSONParse([]*value.Value{str(`{"a":1}`)})
	require.NoError(t, err)
	require.Equal(t, value.KindMap, v.Kind())
	a, ok := v.MapGet("a")
	require.True(t, ok)
	require.Equal(t, int64(1), a.Int())
}

func TestBuiltinURLDecode(t *testing.T) {
	v, err := builtinURLDecode([]*value.Value{str("a%20b")})
	require.NoError(t, err)
	require.Equal(t, "a b", v.Str())
}

func TestBuiltinKey(t *testing.T) {
	nested, err := value.FromGeneric(map[string]any{"Bucket": map[string]any{}}, value.Root())
	require.NoError(t, err)
	bucket, ok := nested.MapGet("Bucket")
	require.True(t, ok)
	v, err := builtinKey([]*value.Value{bucket})
	require.NoError(t, err)
	require.Equal(t, "Bucket", v.Str())
}

func TestBuiltinArityMismatch(t *testing.T) {
	_, err := builtinToUpper([]*value.Value{})
	require.Error(t, err)
}
