package opgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchMatchesBoundKeyword(t *testing.T) {
	truthy := P(I(PushResult))
	falsy := P(I(PushEmpty))
	catchAll := P(I(Nop))

	s := NewState("value").
		On("true", truthy).
		On("false", falsy).
		OnCatchAll(catchAll)
	require.NoError(t, s.Compile(map[string]*State{"value": s}))

	assert.Equal(t, truthy, s.Dispatch("true", SymRegular))
	assert.Equal(t, falsy, s.Dispatch("false", SymRegular))
	assert.Equal(t, catchAll, s.Dispatch("obj", SymRegular))
}

func TestDispatchFallbacksByKind(t *testing.T) {
	numeric := P(I(PushResult))
	delim := P(I(PushMarked))
	catchAll := P(I(Nop))

	s := NewState("value").
		OnNumeric(numeric).
		OnDelimiter(delim).
		OnCatchAll(catchAll)
	require.NoError(t, s.Compile(map[string]*State{"value": s}))

	assert.Equal(t, numeric, s.Dispatch("123", SymNumeric))
	assert.Equal(t, delim, s.Dispatch("(", SymDelimiter))
	assert.Equal(t, catchAll, s.Dispatch("Foo", SymRegular))
}

func TestCompileResolvesCrossStateReferences(t *testing.T) {
	registry := map[string]*State{}
	array := NewState("array")
	registry["array"] = array
	value := NewState("value").On("[", P(IState(PushState, "array")))
	registry["value"] = value

	require.NoError(t, value.Compile(registry))
	assert.True(t, array.compiled, "Compile must recursively compile referenced states")
}

func TestCompileCycleTerminates(t *testing.T) {
	registry := map[string]*State{}
	a := NewState("a")
	b := NewState("b")
	a.On("b", P(IState(PushState, "b")))
	b.On("a", P(IState(PushState, "a")))
	registry["a"] = a
	registry["b"] = b

	done := make(chan error, 1)
	go func() { done <- a.Compile(registry) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Compile did not terminate on a state cycle")
	}
}

func TestCompileUnknownStateReferenceErrors(t *testing.T) {
	s := NewState("value").On("[", P(IState(PushState, "array")))
	err := s.Compile(map[string]*State{"value": s})
	assert.Error(t, err)
}

func TestDispatchPanicsOnUncompiledState(t *testing.T) {
	s := NewState("value")
	assert.Panics(t, func() { s.Dispatch("x", SymRegular) })
}
