package filters

import "io"

// countReader wraps a reader and tracks how many bytes have passed through
// it, so a Skipper can report exactly how far the EOD marker search
// advanced (spec §4.5.4 relies on this to carve the raw stream bytes out of
// the twin stream without decoding them first).
type countReader struct {
	r         io.Reader
	totalRead int
}

func newCountReader(r io.Reader) *countReader { return &countReader{r: r} }

func (c *countReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.totalRead += n
	return n, err
}

// reacher reads from r and stops as soon as the byte sequence eod has been
// fully consumed (inclusive), returning io.EOF after that point. It is the
// generic "read until this terminator" primitive several ASCII-ish filters
// (ASCII85, ASCIIHex) use to find their own end-of-data marker without
// decoding the payload.
type reacher struct {
	r        io.Reader
	eod      []byte
	matched  int
	done     bool
}

func newReacher(r io.Reader, eod []byte) *reacher {
	return &reacher{r: r, eod: eod}
}

func (rr *reacher) Read(p []byte) (int, error) {
	if rr.done {
		return 0, io.EOF
	}
	total := 0
	buf := make([]byte, 1)
	for total < len(p) {
		n, err := rr.r.Read(buf)
		if n == 0 {
			if err != nil {
				if total > 0 {
					return total, nil
				}
				return 0, err
			}
			continue
		}
		b := buf[0]
		p[total] = b
		total++

		if b == rr.eod[rr.matched] {
			rr.matched++
			if rr.matched == len(rr.eod) {
				rr.done = true
				return total, nil
			}
		} else if b == rr.eod[0] {
			rr.matched = 1
		} else {
			rr.matched = 0
		}
	}
	return total, nil
}
