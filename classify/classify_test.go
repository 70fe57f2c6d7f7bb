package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassTableBasics(t *testing.T) {
	assert.Equal(t, Whitespace, Of(' '))
	assert.Equal(t, Whitespace, Of('\n'))
	assert.Equal(t, Delimiter, Of('('))
	assert.Equal(t, Delimiter, Of('/'))
	assert.Equal(t, Regular, Of('A'))
	assert.True(t, IsWhitespace('\t'))
	assert.True(t, IsDelimiter('%'))
	assert.True(t, IsRegular('9'))
}

func TestHexVal(t *testing.T) {
	v, ok := HexVal('a')
	require.True(t, ok)
	assert.EqualValues(t, 10, v)

	v, ok = HexVal('F')
	require.True(t, ok)
	assert.EqualValues(t, 15, v)

	_, ok = HexVal('g')
	assert.False(t, ok)
}

func TestEscape(t *testing.T) {
	b, ok := Escape('n')
	require.True(t, ok)
	assert.Equal(t, byte('\n'), b)

	_, ok = Escape('5')
	assert.False(t, ok, "octal digits aren't direct escapes")

	_, ok = Escape('Q')
	assert.False(t, ok)
}

func TestIsOctalDigit(t *testing.T) {
	assert.True(t, IsOctalDigit('0'))
	assert.True(t, IsOctalDigit('7'))
	assert.False(t, IsOctalDigit('8'))
}

func TestClassifySymbol(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		class Class
		kind  NumericKind
	}{
		{"single delimiter", "(", Delimiter, NotNumeric},
		{"integer", "123", Regular, Integer},
		{"negative integer", "-17", Regular, Integer},
		{"real", "3.14", Regular, Real},
		{"leading dot real", ".5", Regular, Real},
		{"sign only", "+", Regular, NotNumeric},
		{"keyword", "obj", Regular, NotNumeric},
		{"two dots not numeric", "1.2.3", Regular, NotNumeric},
		{"empty", "", Regular, NotNumeric},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			class, kind := ClassifySymbol([]byte(c.in))
			assert.Equal(t, c.class, class)
			assert.Equal(t, c.kind, kind)
		})
	}
}
