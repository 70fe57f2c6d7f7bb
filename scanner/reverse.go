package scanner

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/arnegard/pdfmutate/classify"
	"github.com/arnegard/pdfmutate/twinstream"
)

// MaxReverseScanLoops bounds how many doublings LocateStartXRef will try
// before giving up: a well-formed file's "startxref" footer sits within
// the trailing kilobyte or two, so anything further out means the file is
// either pathologically padded or not a PDF at all. This is the loop-cap
// spec §4.5.1's Design Notes call for on the reverse scan.
const MaxReverseScanLoops = 16

var ErrStartXRefNotFound = errors.New("scanner: startxref keyword not found near end of file")

// LocateStartXRef finds the trailing "startxref\n<offset>\n%%EOF" footer
// (spec §4.5.1 step 1) and returns the byte offset of the master
// cross-reference section it names, along with the absolute offset of
// the "startxref" keyword itself (footerStart) so a caller can treat the
// whole footer as one discardable span (spec §4.5.3: this footer is xref
// machinery, regenerated fresh at termination rather than passed through).
//
// This is a deliberately narrow search for one literal keyword, built on
// BranchRead's direct seek-and-read rather than the forward symbol
// extraction the rest of the package uses: nothing else in the file
// structure needs to be read right-to-left, so there is no general
// backward tokenizer to reuse.
func LocateStartXRef(ts *twinstream.Stream) (offset int64, footerStart int64, err error) {
	size := ts.Size()
	if size <= 0 {
		return 0, 0, ErrStartXRefNotFound
	}

	needle := []byte("startxref")
	window := int64(1024)
	for i := 0; i < MaxReverseScanLoops; i++ {
		if window > size {
			window = size
		}
		start := size - window
		buf, err := ts.BranchRead(start, int(window))
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrStartXRefNotFound, err)
		}
		if idx := bytes.LastIndex(buf, needle); idx >= 0 {
			off, err := parseStartXRefOffset(buf[idx+len(needle):])
			if err != nil {
				return 0, 0, err
			}
			return off, start + int64(idx), nil
		}
		if window >= size {
			break
		}
		window *= 2
	}
	return 0, 0, ErrStartXRefNotFound
}

// parseStartXRefOffset reads the decimal byte offset that follows the
// "startxref" keyword, skipping the whitespace ISO 32000-1 7.5.5 requires
// between the keyword and the number.
func parseStartXRefOffset(tail []byte) (int64, error) {
	i := 0
	for i < len(tail) && classify.IsWhitespace(tail[i]) {
		i++
	}
	start := i
	for i < len(tail) && tail[i] >= '0' && tail[i] <= '9' {
		i++
	}
	if i == start {
		return 0, fmt.Errorf("scanner: startxref keyword has no numeric offset")
	}
	var offset int64
	for _, b := range tail[start:i] {
		offset = offset*10 + int64(b-'0')
	}
	return offset, nil
}
