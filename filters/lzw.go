package filters

import (
	"io"

	"github.com/hhrutter/lzw"
)

type skipperLZW struct{ earlyChange bool }

func (s skipperLZW) Skip(r io.Reader) (int, error) {
	cr := newCountReader(r)
	rc := lzw.NewReader(cr, s.earlyChange)
	_, err := readAll(rc)
	if err != nil {
		return 0, err
	}
	return cr.totalRead, rc.Close()
}
