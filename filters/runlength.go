package filters

import (
	"bytes"
	"errors"
	"io"
)

type skipperRunLength struct{}

const eodRunLength = 0x80

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return errors.New("filters: missing EOD marker in RunLengthDecode stream")
	}
	return err
}

func runLengthDecode(w io.ByteWriter, src io.ByteReader) error {
	for {
		b, err := src.ReadByte()
		if err != nil {
			return unexpectedEOF(err)
		}
		if b == eodRunLength {
			return nil
		}
		if b < 0x80 {
			count := int(b) + 1
			for j := 0; j < count; j++ {
				c, err := src.ReadByte()
				if err != nil {
					return unexpectedEOF(err)
				}
				w.WriteByte(c)
			}
			continue
		}
		count := 257 - int(b)
		c, err := src.ReadByte()
		if err != nil {
			return unexpectedEOF(err)
		}
		for j := 0; j < count; j++ {
			w.WriteByte(c)
		}
	}
}

func (skipperRunLength) Skip(r io.Reader) (int, error) {
	cr := newCountReader(r)
	var buf bytes.Buffer
	err := runLengthDecode(&buf, &byteReaderAdapter{r: cr})
	return cr.totalRead, err
}

func decodeRunLength(r io.Reader) (io.Reader, error) {
	var buf bytes.Buffer
	err := runLengthDecode(&buf, &byteReaderAdapter{r: r})
	if err != nil {
		return nil, err
	}
	return &buf, nil
}

// byteReaderAdapter exposes io.ByteReader over an arbitrary io.Reader by
// reading exactly one byte per call with io.ReadFull, so it never
// consumes more of the reader than it has returned.
type byteReaderAdapter struct {
	r   io.Reader
	one [1]byte
}

func (a *byteReaderAdapter) ReadByte() (byte, error) {
	_, err := io.ReadFull(a.r, a.one[:])
	return a.one[0], err
}
