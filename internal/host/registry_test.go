package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SortedByPriority(t *testing.T) {
	r := newHookRegistry()
	a := &Plugin{Name: "a"}
	b := &Plugin{Name: "b"}
	c := &Plugin{Name: "c"}

	r.register(a, "render", "h1", 200)
	r.register(b, "render", "h2", 50)
	r.register(c, "render", "h3", 100)
	r.register(a, "other", "h4", 10)

	priorities := make([]int, 0, len(r.regs))
	for _, reg := range r.regs {
		priorities = append(priorities, reg.priority)
	}
	assert.Equal(t, []int{10, 50, 100, 200}, priorities)

	first := r.find("render")
	require.NotNil(t, first)
	assert.Equal(t, b, first.plugin)
	assert.Equal(t, "h2", first.funcName)
}

func TestRegistry_StableOnTies(t *testing.T) {
	r := newHookRegistry()
	a := &Plugin{Name: "a"}
	b := &Plugin{Name: "b"}
	c := &Plugin{Name: "c"}

	r.register(a, "tick", "fa", 100)
	r.register(b, "tick", "fb", 100)
	r.register(c, "tick", "fc", 100)

	all := r.findAll("tick")
	require.Len(t, all, 3)
	assert.Equal(t, "fa", all[0].funcName)
	assert.Equal(t, "fb", all[1].funcName)
	assert.Equal(t, "fc", all[2].funcName)
}

func TestRegistry_ReplacementIsIdempotent(t *testing.T) {
	r := newHookRegistry()
	p := &Plugin{Name: "p"}

	r.register(p, "save", "f1", 100)
	r.register(p, "save", "f2", 20)

	assert.Equal(t, 1, r.count())

	reg := r.find("save")
	require.NotNil(t, reg)
	assert.Equal(t, "f2", reg.funcName)
	assert.Equal(t, 20, reg.priority)
}

func TestRegistry_CountFor(t *testing.T) {
	r := newHookRegistry()
	a := &Plugin{Name: "a"}
	b := &Plugin{Name: "b"}

	r.register(a, "one", "f", 100)
	r.register(a, "two", "f", 100)
	r.register(b, "one", "f", 100)

	assert.Equal(t, 2, r.countFor(a))
	assert.Equal(t, 1, r.countFor(b))
	assert.Equal(t, map[string]int{"one": 2, "two": 1}, r.byName())

	r.clear()
	assert.Equal(t, 0, r.count())
}
