package pdfval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberRoundTrip(t *testing.T) {
	v := Number("3.14")
	assert.True(t, v.IsNumber())
	f, ok := v.Float()
	require.True(t, ok)
	assert.InDelta(t, 3.14, f, 1e-9)
	assert.Equal(t, "3.14", v.String())
}

func TestNameRoundTrip(t *testing.T) {
	v := Name("Type")
	n, ok := v.NameString()
	require.True(t, ok)
	assert.Equal(t, "Type", n)
	assert.Equal(t, "/Type", v.String())
}

func TestNameEscapesSpecialBytes(t *testing.T) {
	v := Name("A B#C")
	assert.Equal(t, "/A#20B#23C", v.String())
}

func TestRefRoundTrip(t *testing.T) {
	v := Ref(12, 3)
	num, gen, ok := v.RefNumbers()
	require.True(t, ok)
	assert.Equal(t, 12, num)
	assert.Equal(t, 3, gen)
	assert.Equal(t, "12 3 R", v.String())
}

func TestArrayRoundTrip(t *testing.T) {
	v := Array(Number("1"), Number("2"), Name("Foo"))
	items, ok := v.Array()
	require.True(t, ok)
	assert.Len(t, items, 3)
	assert.Equal(t, "[1 2 /Foo]", v.String())
}

func TestDictGetSetDelete(t *testing.T) {
	d := Composite(TagDict, Entry{Key: "Type", Value: Name("Catalog")})
	got, ok := d.DictGet("Type")
	require.True(t, ok)
	n, _ := got.NameString()
	assert.Equal(t, "Catalog", n)

	d.DictSet("Pages", Ref(2, 0))
	got, ok = d.DictGet("Pages")
	require.True(t, ok)
	num, gen, _ := got.RefNumbers()
	assert.Equal(t, 2, num)
	assert.Equal(t, 0, gen)

	d.DictSet("Type", Name("Page"))
	got, _ = d.DictGet("Type")
	n, _ = got.NameString()
	assert.Equal(t, "Page", n, "DictSet replaces an existing key in place")
	assert.Len(t, d.DictKeys(), 2, "replacing a key must not append a duplicate entry")

	d.DictDelete("Pages")
	_, ok = d.DictGet("Pages")
	assert.False(t, ok)
}

func TestDictWriteKeepsInsertionOrder(t *testing.T) {
	d := Composite(TagDict)
	d.DictSet("Type", Name("Page"))
	d.DictSet("Parent", Ref(1, 0))
	d.DictSet("MediaBox", Array(Number("0"), Number("0"), Number("612"), Number("792")))
	assert.Equal(t, "<< /Type /Page /Parent 1 0 R /MediaBox [0 0 612 792] >>", d.String())
}

func TestStringLexicalForms(t *testing.T) {
	lit := String([]byte("a(b)\\c"), Escaped, true)
	assert.Equal(t, `(a\(b\)\\c)`, lit.String())

	hex := String([]byte{0xDE, 0xAD}, Hex, true)
	assert.Equal(t, "<DEAD>", hex.String())
}

func TestCloneIsDeep(t *testing.T) {
	orig := Composite(TagDict, Entry{Key: "Kids", Value: Array(Ref(2, 0))})
	clone := orig.Clone()
	clone.DictSet("Kids", Array(Ref(2, 0), Ref(3, 0)))

	kids, _ := orig.DictGet("Kids")
	items, _ := kids.Array()
	assert.Len(t, items, 1, "mutating the clone must not affect the original")
}

func TestNullIsZeroValue(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.Equal(t, "null", v.String())
}

func TestBoolRoundTrip(t *testing.T) {
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "false", Bool(false).String())
	b, ok := Bool(true).Bool()
	require.True(t, ok)
	assert.True(t, b)
}

func TestIdentifierPreservesRawToken(t *testing.T) {
	v := Identifier("R2")
	s, ok := v.IdentifierString()
	require.True(t, ok)
	assert.Equal(t, "R2", s)
	assert.Equal(t, "R2", v.String())
}
