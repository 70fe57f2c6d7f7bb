package pdfval

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
)

// utf16BEDecoder matches the teacher's reliance on golang.org/x/text for
// encoding concerns; PDF text strings (7.9.2.2) may carry a UTF-16BE BOM
// (0xFE 0xFF), in which case they are Unicode rather than PDFDocEncoding.
var utf16BEDecoder = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()

// DecodeTextString decodes a literal or hex string's raw bytes as a PDF
// text string: UTF-16BE when a BOM is present, left as Latin-1-ish raw
// bytes (PDFDocEncoding is not losslessly representable as UTF-8 for every
// byte, so callers that need exact PDFDocEncoding semantics should not rely
// on this helper) otherwise.
func DecodeTextString(raw []byte) (string, error) {
	if bytes.HasPrefix(raw, []byte{0xFE, 0xFF}) {
		out, err := utf16BEDecoder.Bytes(raw)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	return string(raw), nil
}

// StringValue decodes a String-kind Value as a PDF text string.
func (v Value) StringValue() (string, bool) {
	b, ok := v.StringBytes()
	if !ok {
		return "", false
	}
	s, err := DecodeTextString(b)
	if err != nil {
		return string(b), true
	}
	return s, true
}
