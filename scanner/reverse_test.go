package scanner

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnegard/pdfmutate/twinstream"
)

func TestLocateStartXRefFindsTrailingFooter(t *testing.T) {
	data := []byte("%PDF-1.4\n...garbage...\nstartxref\n1234\n%%EOF")
	ts := twinstream.New(bytes.NewReader(data), int64(len(data)), &bytes.Buffer{})

	offset, footerStart, err := LocateStartXRef(ts)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), offset)
	assert.Equal(t, int64(bytes.Index(data, []byte("startxref"))), footerStart)
}

func TestLocateStartXRefGrowsWindowWhenFooterIsFarFromEOF(t *testing.T) {
	padding := bytes.Repeat([]byte{' '}, 2000)
	data := append([]byte("startxref\n9999\n%%EOF\n"), padding...)
	ts := twinstream.New(bytes.NewReader(data), int64(len(data)), &bytes.Buffer{})

	offset, _, err := LocateStartXRef(ts)
	require.NoError(t, err)
	assert.Equal(t, int64(9999), offset)
}

func TestLocateStartXRefMissingKeywordErrors(t *testing.T) {
	data := []byte("%PDF-1.4\nno footer here at all\n")
	ts := twinstream.New(bytes.NewReader(data), int64(len(data)), &bytes.Buffer{})

	_, _, err := LocateStartXRef(ts)
	assert.ErrorIs(t, err, ErrStartXRefNotFound)
}

func TestLocateStartXRefZeroSizeErrors(t *testing.T) {
	ts := twinstream.New(bytes.NewReader(nil), 0, &bytes.Buffer{})
	_, _, err := LocateStartXRef(ts)
	assert.ErrorIs(t, err, ErrStartXRefNotFound)
}

func TestParseStartXRefOffsetSkipsWhitespace(t *testing.T) {
	off, err := parseStartXRefOffset([]byte("\n   4567\n%%EOF"))
	require.NoError(t, err)
	assert.Equal(t, int64(4567), off)
}

func TestParseStartXRefOffsetRejectsMissingNumber(t *testing.T) {
	_, err := parseStartXRefOffset([]byte("\n\n%%EOF"))
	assert.Error(t, err)
}
