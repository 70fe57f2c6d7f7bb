package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, src string) string {
	t.Helper()
	s := NewFromBytes([]byte(src))
	v, err := s.ParseValue()
	require.NoError(t, err)
	return v.String()
}

func TestParseValueScalars(t *testing.T) {
	cases := map[string]string{
		"123":        "123",
		"-17":        "-17",
		"3.14":       "3.14",
		"true":       "true",
		"false":      "false",
		"null":       "null",
		"/Name":      "/Name",
		"(literal)":  "(literal)",
		"<DEAD>":     "<DEAD>",
	}
	for src, want := range cases {
		t.Run(src, func(t *testing.T) {
			assert.Equal(t, want, parseOne(t, src))
		})
	}
}

func TestParseValueIndirectReference(t *testing.T) {
	assert.Equal(t, "12 0 R", parseOne(t, "12 0 R"))
}

func TestParseValueArray(t *testing.T) {
	assert.Equal(t, "[0 0 612 792]", parseOne(t, "[0 0 612 792]"))
}

// TestParseValueArrayThreeAdjacentNumerics pins the "N G <non-R>"
// backtrack for an array of bare numbers one generation-lookahead short
// of forming a ref: none of the three should be swallowed as the failed
// "N G R" lookahead unwinds.
func TestParseValueArrayThreeAdjacentNumerics(t *testing.T) {
	assert.Equal(t, "[1 2 3]", parseOne(t, "[1 2 3]"))
}

func TestParseValueNestedArray(t *testing.T) {
	assert.Equal(t, "[1 [2 3] 4]", parseOne(t, "[1 [2 3] 4]"))
}

func TestParseValueDict(t *testing.T) {
	assert.Equal(t, "<< /Type /Catalog /Pages 2 0 R >>", parseOne(t, "<< /Type /Catalog /Pages 2 0 R >>"))
}

func TestParseValueDictWithNestedArrayAndDict(t *testing.T) {
	src := "<< /Kids [3 0 R 4 0 R] /Info << /Count 2 >> >>"
	assert.Equal(t, "<< /Kids [3 0 R 4 0 R] /Info << /Count 2 >> >>", parseOne(t, src))
}

func TestParseValueEscapedLiteralString(t *testing.T) {
	assert.Equal(t, `(a\(b\)c)`, parseOne(t, `(a(b)c)`))
}

func TestParseObjectHeader(t *testing.T) {
	s := NewFromBytes([]byte("7 0 obj"))
	hdr, err := s.ParseObjectHeader()
	require.NoError(t, err)
	assert.Equal(t, ObjectHeader{Num: 7, Gen: 0}, hdr)
}

func TestPeekKeywordThenExpect(t *testing.T) {
	s := NewFromBytes([]byte("endobj"))
	kw, err := s.PeekKeyword()
	require.NoError(t, err)
	assert.Equal(t, "endobj", kw)
	require.NoError(t, s.ExpectKeyword("endobj"), "a peeked keyword must still be consumable by ExpectKeyword")
}

func TestReadIntRejectsNonDigits(t *testing.T) {
	s := NewFromBytes([]byte("12a"))
	_, err := s.ReadInt()
	assert.Error(t, err)
}

func TestParseValueOctalEscapeInLiteralString(t *testing.T) {
	s := NewFromBytes([]byte(`(\101\102\103)`))
	v, err := s.ParseValue()
	require.NoError(t, err)
	str, ok := v.StringBytes()
	require.True(t, ok)
	assert.Equal(t, "ABC", string(str))
}

func TestParseValueNameHexEscape(t *testing.T) {
	s := NewFromBytes([]byte("/A#20B"))
	v, err := s.ParseValue()
	require.NoError(t, err)
	name, ok := v.NameString()
	require.True(t, ok)
	assert.Equal(t, "A B", name)
}

func TestParseValueSkipsCommentBeforeToken(t *testing.T) {
	s := NewFromBytes([]byte("% a comment\n42"))
	v, err := s.ParseValue()
	require.NoError(t, err)
	assert.Equal(t, "42", v.String())
}
