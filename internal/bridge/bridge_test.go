package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestCopy_Scalars(t *testing.T) {
	src := lua.NewState()
	defer src.Close()
	dst := lua.NewState()
	defer dst.Close()

	assert.Equal(t, lua.LNil, Copy(dst, lua.LNil))
	assert.Equal(t, lua.LTrue, Copy(dst, lua.LTrue))
	assert.Equal(t, lua.LNumber(42.5), Copy(dst, lua.LNumber(42.5)))
	assert.Equal(t, lua.LString("héllo\x00world"), Copy(dst, lua.LString("héllo\x00world")))
}

func TestCopy_NestedTable(t *testing.T) {
	src := lua.NewState()
	defer src.Close()
	dst := lua.NewState()
	defer dst.Close()

	err := src.DoString(`t = { name = "a", nested = { 1, 2, { deep = true } }, count = 3 }`)
	require.NoError(t, err)

	copied := Copy(dst, src.GetGlobal("t"))
	tbl, ok := copied.(*lua.LTable)
	require.True(t, ok)

	assert.Equal(t, lua.LString("a"), tbl.RawGetString("name"))
	assert.Equal(t, lua.LNumber(3), tbl.RawGetString("count"))

	nested, ok := tbl.RawGetString("nested").(*lua.LTable)
	require.True(t, ok)
	assert.Equal(t, lua.LNumber(1), nested.RawGetInt(1))
	assert.Equal(t, lua.LNumber(2), nested.RawGetInt(2))

	deep, ok := nested.RawGetInt(3).(*lua.LTable)
	require.True(t, ok)
	assert.Equal(t, lua.LTrue, deep.RawGetString("deep"))
}

func TestCopy_IsADeepCopy(t *testing.T) {
	src := lua.NewState()
	defer src.Close()
	dst := lua.NewState()
	defer dst.Close()

	err := src.DoString(`t = { inner = { value = "original" } }`)
	require.NoError(t, err)

	original := src.GetGlobal("t").(*lua.LTable)
	copied := Copy(dst, original).(*lua.LTable)

	// Mutating the copy must not affect the source.
	copied.RawGetString("inner").(*lua.LTable).RawSetString("value", lua.LString("changed"))

	assert.Equal(
		t,
		lua.LString("original"),
		original.RawGetString("inner").(*lua.LTable).RawGetString("value"),
	)
}

func TestCopy_UnsupportedTypesBecomeMarker(t *testing.T) {
	src := lua.NewState()
	defer src.Close()
	dst := lua.NewState()
	defer dst.Close()

	err := src.DoString(`t = { fn = function() end, ok = "yes" }`)
	require.NoError(t, err)

	copied := Copy(dst, src.GetGlobal("t")).(*lua.LTable)
	assert.Equal(t, lua.LString("[unsupported type]"), copied.RawGetString("fn"))
	assert.Equal(t, lua.LString("yes"), copied.RawGetString("ok"))
}

func TestCopy_CyclicTableTerminates(t *testing.T) {
	src := lua.NewState()
	defer src.Close()
	dst := lua.NewState()
	defer dst.Close()

	err := src.DoString(`t = { name = "loop" } ; t.self = t`)
	require.NoError(t, err)

	copied := Copy(dst, src.GetGlobal("t")).(*lua.LTable)
	assert.Equal(t, lua.LString("loop"), copied.RawGetString("name"))
	assert.Equal(t, copied, copied.RawGetString("self"))
}

func TestToJSON_ArrayHeuristic(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	err := L.DoString(`arr = { "a", "b", "c" } ; obj = { x = 1 } ; empty = {}`)
	require.NoError(t, err)

	data, err := ToJSON(L.GetGlobal("arr"))
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b","c"]`, string(data))

	data, err = ToJSON(L.GetGlobal("obj"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(data))

	// An empty table has no first key, so it serializes as an object.
	data, err = ToJSON(L.GetGlobal("empty"))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestToJSON_CyclicTableFails(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	err := L.DoString(`t = {} ; t.self = t`)
	require.NoError(t, err)

	_, err = ToJSON(L.GetGlobal("t"))
	require.Error(t, err)
}

func TestFromJSON_RoundTrip(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	payload := `{"name":"widget","tags":["a","b"],"meta":{"depth":2.5,"live":true},"gone":null}`

	v, err := FromJSON(L, []byte(payload))
	require.NoError(t, err)

	tbl, ok := v.(*lua.LTable)
	require.True(t, ok)
	assert.Equal(t, lua.LString("widget"), tbl.RawGetString("name"))

	tags := tbl.RawGetString("tags").(*lua.LTable)
	assert.Equal(t, lua.LString("a"), tags.RawGetInt(1))
	assert.Equal(t, lua.LString("b"), tags.RawGetInt(2))

	meta := tbl.RawGetString("meta").(*lua.LTable)
	assert.Equal(t, lua.LNumber(2.5), meta.RawGetString("depth"))
	assert.Equal(t, lua.LTrue, meta.RawGetString("live"))

	// Bridging back out reproduces the original value, except the null field:
	// a Lua table cannot hold nil, so "gone" does not survive the trip.
	out, err := ToJSON(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"widget","tags":["a","b"],"meta":{"depth":2.5,"live":true}}`, string(out))
}

func TestToJSON_NumberKeysStringify(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	// First enumerated key is 2, not 1, so this is an object.
	err := L.DoString(`t = {} ; t[2] = "two"`)
	require.NoError(t, err)

	data, err := ToJSON(L.GetGlobal("t"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"2":"two"}`, string(data))
}
