package mfaf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMetadataRoundTrip(t *testing.T) {
	entries := []*Entry{
		{Name: "a", Offset: 64, Size: 3, MimeType: "text/plain", Attributes: map[string]any{"k": "v", "n": int64(5)}},
		{Name: "b", Offset: 67, Size: 0, MimeType: DefaultMimeType, Attributes: map[string]any{}},
	}
	buf, err := encodeMetadata(entries)
	require.NoError(t, err)

	raw, err := decodeMetadata(buf)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	require.Equal(t, "a", raw[0].name)
	require.Equal(t, uint64(64), raw[0].offset)
	require.Equal(t, uint64(3), raw[0].size)
	require.Equal(t, "text/plain", raw[0].mime)
	require.Equal(t, "v", raw[0].attrs["k"])
}

func TestValidateAttributesRejectsExcessiveDepth(t *testing.T) {
	deep := map[string]any{"l1": map[string]any{"l2": map[string]any{"l3": map[string]any{"l4": "too deep"}}}}
	err := validateAttributes(deep, 1)
	require.Error(t, err)
	var mfafErr *Error
	require.ErrorAs(t, err, &mfafErr)
	require.Equal(t, KindRange, mfafErr.Kind)
}

func TestValidateAttributesAllowsMaxDepth(t *testing.T) {
	ok := map[string]any{"l1": map[string]any{"l2": map[string]any{"l3": "fine"}}}
	require.NoError(t, validateAttributes(ok, 1))
}

func TestValidateAttributesRejectsOversizedKey(t *testing.T) {
	attrs := map[string]any{strings.Repeat("k", 257): "v"}
	require.Error(t, validateAttributes(attrs, 1))
}

func TestValidateAttributesRejectsUnsupportedType(t *testing.T) {
	attrs := map[string]any{"bad": []int{1, 2, 3}}
	require.Error(t, validateAttributes(attrs, 1))
}

func TestValidateAttributesAllowsScalarTypes(t *testing.T) {
	attrs := map[string]any{
		"s": "x", "i": 1, "i64": int64(2), "f": 1.5, "b": true, "n": nil,
	}
	require.NoError(t, validateAttributes(attrs, 1))
}
