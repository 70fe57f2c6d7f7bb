package filters

import (
	"compress/zlib"
	"io"
)

type skipperFlate struct{}

func (skipperFlate) Skip(r io.Reader) (int, error) {
	cr := newCountReader(r)
	rc, err := zlib.NewReader(cr)
	if err != nil {
		return 0, err
	}
	_, err = readAll(rc)
	if err != nil {
		return 0, err
	}
	return cr.totalRead, rc.Close()
}
