package toolexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsaliak/goclaw-core/internal/errs"
)

func TestDecodeArgsEmptyPayload(t *testing.T) {
	m, err := decodeArgs(nil)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestDecodeArgsRejectsNonObject(t *testing.T) {
	_, err := decodeArgs([]byte(`"just a string"`))
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestRequireStringMissing(t *testing.T) {
	_, err := requireString(map[string]interface{}{}, "path")
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestRequireStringWrongType(t *testing.T) {
	_, err := requireString(map[string]interface{}{"path": 5}, "path")
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestRequireStringPresent(t *testing.T) {
	v, err := requireString(map[string]interface{}{"path": "a.txt"}, "path")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", v)
}

func TestOptionalStringDefaultsWhenAbsent(t *testing.T) {
	v, err := optionalString(map[string]interface{}{}, "depth", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestOptionalIntCoercesFromFloat(t *testing.T) {
	v, err := optionalInt(map[string]interface{}{"depth": 3.0}, "depth", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestOptionalIntPtrDistinguishesAbsentFromZero(t *testing.T) {
	p, err := optionalIntPtr(map[string]interface{}{}, "start_line")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = optionalIntPtr(map[string]interface{}{"start_line": 0.0}, "start_line")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 0, *p)
}

func TestRequireIntMissing(t *testing.T) {
	_, err := requireInt(map[string]interface{}{}, "index")
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestOptionalBoolDefaultAndCoercion(t *testing.T) {
	v, err := optionalBool(map[string]interface{}{}, "git_only", false)
	require.NoError(t, err)
	assert.False(t, v)

	v, err = optionalBool(map[string]interface{}{"git_only": true}, "git_only", false)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestRequireStringArray(t *testing.T) {
	v, err := requireStringArray(map[string]interface{}{"tags": []interface{}{"a", "b"}}, "tags")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)
}

func TestRequireStringArrayRejectsMixedTypes(t *testing.T) {
	_, err := requireStringArray(map[string]interface{}{"tags": []interface{}{"a", 2}}, "tags")
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestOptionalStringArrayAbsentReturnsNil(t *testing.T) {
	v, err := optionalStringArray(map[string]interface{}{}, "tags")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRequireObjectArray(t *testing.T) {
	patches := []interface{}{
		map[string]interface{}{"find": "foo", "replace": "bar"},
	}
	v, err := requireObjectArray(map[string]interface{}{"patches": patches}, "patches")
	require.NoError(t, err)
	require.Len(t, v, 1)
	assert.Equal(t, "foo", v[0]["find"])
}

func TestRequireObjectArrayRejectsNonObjectElement(t *testing.T) {
	patches := []interface{}{"not an object"}
	_, err := requireObjectArray(map[string]interface{}{"patches": patches}, "patches")
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}
