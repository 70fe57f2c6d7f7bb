package filters

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnegard/pdfmutate/pdfval"
)

func decodeChain(t *testing.T, c Chain, raw []byte) []byte {
	t.Helper()
	r, err := c.DecodeReader(bytes.NewReader(raw))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func TestFlateDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte("hello, pdf"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	got := decodeChain(t, Chain{{Name: Flate}}, buf.Bytes())
	assert.Equal(t, "hello, pdf", string(got))
}

func TestASCIIHexDecode(t *testing.T) {
	got := decodeChain(t, Chain{{Name: ASCIIHex}}, []byte("68656C6C6F>"))
	assert.Equal(t, "hello", string(got))
}

func TestASCIIHexDecodeOddDigitsPadded(t *testing.T) {
	got := decodeChain(t, Chain{{Name: ASCIIHex}}, []byte("6865C>"))
	assert.Equal(t, "he\xc0", string(got))
}

func TestASCII85DecodeRoundTrip(t *testing.T) {
	var enc bytes.Buffer
	encoder := ascii85.NewEncoder(&enc)
	_, err := encoder.Write([]byte("Man "))
	require.NoError(t, err)
	require.NoError(t, encoder.Close())
	enc.WriteString("~>")

	got := decodeChain(t, Chain{{Name: ASCII85}}, enc.Bytes())
	assert.Equal(t, "Man ", string(got))
}

func TestRunLengthDecode(t *testing.T) {
	// literal run of 3 bytes "abc", then a repeat run of 'x' four times, then EOD.
	src := []byte{2, 'a', 'b', 'c', 253, 'x', 0x80}
	got := decodeChain(t, Chain{{Name: RunLength}}, src)
	assert.Equal(t, "abcxxxx", string(got))
}

func TestRunLengthDecodeMissingEODIsError(t *testing.T) {
	_, err := Chain{{Name: RunLength}}.DecodeReader(bytes.NewReader([]byte{0, 'a'}))
	assert.Error(t, err)
}

func TestSkipperForUnsupportedFilter(t *testing.T) {
	_, err := SkipperFor(Filter{Name: "DCTDecode"})
	var uerr UnsupportedError
	assert.ErrorAs(t, err, &uerr)
	assert.Equal(t, Name("DCTDecode"), uerr.Filter)
}

func TestSkipperFlateConsumesCompressedSpan(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write([]byte("payload"))
	_ = zw.Close()

	sk, err := SkipperFor(Filter{Name: Flate})
	require.NoError(t, err)
	n, err := sk.Skip(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestParseChainBareNameNoParms(t *testing.T) {
	identity := func(v pdfval.Value) (pdfval.Value, error) { return v, nil }
	c, err := ParseChain(pdfval.Name("FlateDecode"), pdfval.Null, identity)
	require.NoError(t, err)
	require.Len(t, c, 1)
	assert.Equal(t, Flate, c[0].Name)
}

func TestParseChainArrayWithParms(t *testing.T) {
	identity := func(v pdfval.Value) (pdfval.Value, error) { return v, nil }
	filterArr := pdfval.Array(pdfval.Name("ASCII85Decode"), pdfval.Name("FlateDecode"))
	parms := pdfval.Array(pdfval.Null, pdfval.Composite(pdfval.TagDict,
		pdfval.Entry{Key: "Predictor", Value: pdfval.Number("12")},
		pdfval.Entry{Key: "Columns", Value: pdfval.Number("4")},
	))
	c, err := ParseChain(filterArr, parms, identity)
	require.NoError(t, err)
	require.Len(t, c, 2)
	assert.Equal(t, ASCII85, c[0].Name)
	assert.Equal(t, Flate, c[1].Name)
	assert.Equal(t, 12, c[1].Parms["Predictor"])
	assert.Equal(t, 4, c[1].Parms["Columns"])
}

func TestParseChainNullFilterIsEmptyChain(t *testing.T) {
	identity := func(v pdfval.Value) (pdfval.Value, error) { return v, nil }
	c, err := ParseChain(pdfval.Null, pdfval.Null, identity)
	require.NoError(t, err)
	assert.Empty(t, c)
}

func TestPNGPredictorUpPass(t *testing.T) {
	// two 3-byte rows (1 pixel, 3 colors, 8 bpc), each prefixed with PNG
	// filter type 2 ("Up").
	raw := []byte{2, 10, 20, 30, 2, 5, 5, 5}
	f := Filter{Name: Flate, Colors: 3, BPC: 8, Parms: map[string]int{"Predictor": 15, "Columns": 1}}
	r, err := applyPredictor(f, bytes.NewReader(raw))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 15, 25, 35}, out)
}
