package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDynamicValueJSONRoundTrip(t *testing.T) {
	original := NewObjectValue(map[string]DynamicValue{
		"name":   NewStringValue("atlas"),
		"count":  NewIntValue(42),
		"ratio":  NewFloatValue(0.5),
		"active": NewBoolValue(true),
		"tags":   NewArrayValue([]DynamicValue{NewStringValue("a"), NewStringValue("b")}),
		"nested": NewObjectValue(map[string]DynamicValue{"k": NewIntValue(1)}),
	})

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded DynamicValue
	require.NoError(t, json.Unmarshal(data, &decoded))

	obj, ok := decoded.Object()
	require.True(t, ok)

	name, ok := obj["name"].String()
	require.True(t, ok)
	assert.Equal(t, "atlas", name)

	count, ok := obj["count"].Int()
	require.True(t, ok)
	assert.Equal(t, int64(42), count)

	ratio, ok := obj["ratio"].Float()
	require.True(t, ok)
	assert.Equal(t, 0.5, ratio)

	active, ok := obj["active"].Bool()
	require.True(t, ok)
	assert.True(t, active)

	tags, ok := obj["tags"].Array()
	require.True(t, ok)
	require.Len(t, tags, 2)
	s0, _ := tags[0].String()
	assert.Equal(t, "a", s0)
}

func TestDynamicValueAsPrimitiveString(t *testing.T) {
	assert.Equal(t, "hello", NewStringValue("hello").AsPrimitiveString())
	assert.Equal(t, "42", NewIntValue(42).AsPrimitiveString())
	assert.Equal(t, "true", NewBoolValue(true).AsPrimitiveString())

	arr := NewArrayValue([]DynamicValue{NewIntValue(1), NewIntValue(2)})
	assert.JSONEq(t, "[1,2]", arr.AsPrimitiveString())
}

func TestFromNativeRoundTrip(t *testing.T) {
	native := map[string]interface{}{
		"a": "x",
		"b": float64(3),
	}
	dv := FromNative(native)
	obj, ok := dv.Object()
	require.True(t, ok)
	b, ok := obj["b"].Float()
	require.True(t, ok)
	assert.Equal(t, float64(3), b)
}
