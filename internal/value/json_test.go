package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromJSONPreservesKeyOrder(t *testing.T) {
	text := `{"z": 1, "a": 2, "m": 3}`
	v, err := FromJSON(text, "doc.json")
	require.NoError(t, err)
	require.Equal(t, []string{"z", "a", "m"}, v.MapKeys())
}

func TestFromJSONNestedPaths(t *testing.T) {
	text := `{"Resources": {"Bucket": {"Type": "AWS::S3::Bucket"}}}`
	v, err := FromJSON(text, "doc.json")
	require.NoError(t, err)

	resources, ok := v.MapGet("Resources")
	require.True(t, ok)
	bucket, ok := resources.MapGet("Bucket")
	require.True(t, ok)
	typ, ok := bucket.MapGet("Type")
	require.True(t, ok)

	require.Equal(t, "AWS::S3::Bucket", typ.Str())
	require.Equal(t, "/Resources/Bucket/Type", typ.Path().String())
}

func TestFromJSONNumberKinds(t *testing.T) {
	text := `{"count": 3, "ratio": 1.5}`
	v, err := FromJSON(text, "doc.json")
	require.NoError(t, err)

	count, _ := v.MapGet("count")
	require.Equal(t, KindInt, count.Kind())
	require.Equal(t, int64(3), count.Int())

	ratio, _ := v.MapGet("ratio")
	require.Equal(t, KindFloat, ratio.Kind())
	require.Equal(t, 1.5, ratio.Float())
}

func TestFromJSONArrayPaths(t *testing.T) {
	text := `{"list": ["x", "y"]}`
	v, err := FromJSON(text, "doc.json")
	require.NoError(t, err)

	list, _ := v.MapGet("list")
	require.Equal(t, KindList, list.Kind())
	require.Equal(t, "/list/0", list.List()[0].Path().String())
	require.Equal(t, "/list/1", list.List()[1].Path().String())
}

func TestFromJSONMalformedReturnsLoadError(t *testing.T) {
	_, err := FromJSON(`{"a": }`, "doc.json")
	require.Error(t, err)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, "json", loadErr.Format)
}
