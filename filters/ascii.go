package filters

import (
	"bytes"
	"encoding/ascii85"
	"errors"
	"io"
)

type skipperAscii85 struct{}

const eodAscii85 = "~>"

func (skipperAscii85) Skip(r io.Reader) (int, error) {
	cr := newCountReader(r)
	_, err := readAll(newReacher(cr, []byte(eodAscii85)))
	return cr.totalRead, err
}

func decodeAscii85(r io.Reader) (io.Reader, error) {
	raw, err := readAll(newReacher(r, []byte(eodAscii85)))
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSuffix(raw, []byte(eodAscii85))
	dst := make([]byte, len(raw))
	n, _, err := ascii85.Decode(dst, raw, true)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(dst[:n]), nil
}

type skipperAsciiHex struct{}

const eodAsciiHex = '>'

func (skipperAsciiHex) Skip(r io.Reader) (int, error) {
	cr := newCountReader(r)
	_, err := readAll(newReacher(cr, []byte{eodAsciiHex}))
	return cr.totalRead, err
}

func decodeAsciiHex(r io.Reader) (io.Reader, error) {
	raw, err := readAll(newReacher(r, []byte{eodAsciiHex}))
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSuffix(raw, []byte{eodAsciiHex})

	var clean []byte
	for _, b := range raw {
		switch {
		case b >= '0' && b <= '9', b >= 'a' && b <= 'f', b >= 'A' && b <= 'F':
			clean = append(clean, b)
		case b == ' ', b == '\t', b == '\r', b == '\n', b == '\f', b == 0:
			continue
		default:
			return nil, errors.New("filters: invalid ASCIIHexDecode character")
		}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	out := make([]byte, len(clean)/2)
	for i := range out {
		hi, _ := hexVal(clean[2*i])
		lo, _ := hexVal(clean[2*i+1])
		out[i] = hi<<4 | lo
	}
	return bytes.NewReader(out), nil
}

func hexVal(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
