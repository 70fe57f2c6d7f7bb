package filters

import (
	"bytes"
	"fmt"
	"io"
)

// applyPredictor wraps a decoded reader with PNG/TIFF predictor
// post-processing, ported from the teacher's
// reader/parser/filters/flateDecode.go (the same post-processing applies
// to LZWDecode, which shares the /Predictor, /Colors, /BitsPerComponent,
// /Columns parameters).
func applyPredictor(f Filter, r io.Reader) (io.Reader, error) {
	predictor := f.Parms["Predictor"]
	switch predictor {
	case 0, 1, 2, 10, 11, 12, 13, 14, 15:
	default:
		return nil, fmt.Errorf("filters: unexpected Predictor: %d", predictor)
	}
	if predictor == 0 || predictor == 1 {
		return r, nil
	}

	colors := f.Colors
	if colors == 0 {
		colors = 1
	}
	bpc := f.BPC
	if bpc == 0 {
		bpc = 8
	}
	columns := f.Parms["Columns"]
	if columns == 0 {
		columns = 1
	}

	rowSize := bpc * colors * columns / 8
	bytesPerPixel := (bpc*colors + 7) / 8
	if predictor != 2 {
		rowSize++ // PNG rows are prefixed by a filter-type byte
	}

	cr := make([]byte, rowSize)
	pr := make([]byte, rowSize)
	var out []byte

	for {
		_, err := io.ReadFull(r, cr)
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				return nil, err
			}
			break
		}
		d, err := processRow(pr, cr, predictor, colors, bytesPerPixel)
		if err != nil {
			return nil, err
		}
		out = append(out, d...)
		pr, cr = cr, pr
	}
	return bytes.NewReader(out), nil
}

func processRow(pr, cr []byte, predictor, colors, bytesPerPixel int) ([]byte, error) {
	if predictor == 2 {
		return applyHorizontalDiff(cr, colors), nil
	}

	cdat := cr[1:]
	pdat := pr[1:]
	switch cr[0] {
	case 0:
	case 1:
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += cdat[i-bytesPerPixel]
		}
	case 2:
		for i, p := range pdat {
			cdat[i] += p
		}
	case 3:
		for i := 0; i < bytesPerPixel; i++ {
			cdat[i] += pdat[i] / 2
		}
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += uint8((int(cdat[i-bytesPerPixel]) + int(pdat[i])) / 2)
		}
	case 4:
		paeth(cdat, pdat, bytesPerPixel)
	default:
		return nil, fmt.Errorf("filters: unknown PNG row filter %d", cr[0])
	}
	return cdat, nil
}

func applyHorizontalDiff(row []byte, colors int) []byte {
	for i := 1; i < len(row)/colors; i++ {
		for j := 0; j < colors; j++ {
			row[i*colors+j] += row[(i-1)*colors+j]
		}
	}
	return row
}

func absInt32(x int32) int32 {
	m := x >> 31
	return (x ^ m) - m
}

func paeth(cdat, pdat []byte, bytesPerPixel int) {
	var a, b, c, pa, pb, pc int32
	for i := 0; i < bytesPerPixel; i++ {
		a, c = 0, 0
		for j := i; j < len(cdat); j += bytesPerPixel {
			b = int32(pdat[j])
			pa = absInt32(b - c)
			pb = absInt32(a - c)
			pc = absInt32(b - c + a - c)
			var pred int32
			if pa <= pb && pa <= pc {
				pred = a
			} else if pb <= pc {
				pred = b
			} else {
				pred = c
			}
			a = (int32(cdat[j]) + pred) & 0xff
			cdat[j] = byte(a)
			c = b
		}
	}
}
