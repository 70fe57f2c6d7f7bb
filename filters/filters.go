// Package filters implements the stream filter chain named in spec
// §4.5.4: FlateDecode, ASCII85Decode, ASCIIHexDecode, LZWDecode and
// RunLengthDecode. Image-only filters (CCITTFax, DCT, JBIG2, JPX) are out
// of scope per spec.md §1's Non-goals (image decoding) and are not
// implemented; a dict naming one of them is surfaced as an
// Unsupported-Feature error (spec §7) by package engine.
package filters

import (
	"compress/zlib"
	"fmt"
	"io"
	"io/ioutil"
	"log"

	"github.com/hhrutter/lzw"
)

// Name identifies one of the filters named in a /Filter entry.
type Name string

const (
	ASCII85   Name = "ASCII85Decode"
	ASCIIHex  Name = "ASCIIHexDecode"
	RunLength Name = "RunLengthDecode"
	LZW       Name = "LZWDecode"
	Flate     Name = "FlateDecode"
	Crypt     Name = "Crypt"
)

// Filter is one link of a (possibly chained) filter pipeline, together
// with its decode parameters.
type Filter struct {
	Name   Name
	Parms  map[string]int
	Colors int // DecodeParms /Colors, defaults to 1
	BPC    int // DecodeParms /BitsPerComponent, defaults to 8
}

// Chain is an ordered list of filters in /Filter array order, which is
// also the order DecodeReader applies them in.
type Chain []Filter

// Skipper locates the end of an encoded span without fully decoding it,
// so the engine can carve exactly the raw bytes belonging to a stream out
// of the twin stream (spec §4.5.3 "Stream reads").
type Skipper interface {
	// Skip consumes encoded and returns the number of bytes making up
	// one complete encoded unit (i.e. up through the filter's own EOD
	// marker, if it has one).
	Skip(encoded io.Reader) (int, error)
}

// SkipperFor returns the Skipper for a single filter, or an
// UnsupportedError if the filter isn't implemented.
func SkipperFor(f Filter) (Skipper, error) {
	switch f.Name {
	case Flate:
		return skipperFlate{}, nil
	case ASCII85:
		return skipperAscii85{}, nil
	case ASCIIHex:
		return skipperAsciiHex{}, nil
	case LZW:
		earlyChange := true
		if v, ok := f.Parms["EarlyChange"]; ok {
			earlyChange = v != 0
		}
		return skipperLZW{earlyChange: earlyChange}, nil
	case RunLength:
		return skipperRunLength{}, nil
	default:
		return nil, UnsupportedError{Filter: f.Name}
	}
}

// UnsupportedError reports a filter this package doesn't implement (spec
// §7 "Unsupported-Feature").
type UnsupportedError struct{ Filter Name }

func (e UnsupportedError) Error() string {
	return fmt.Sprintf("filters: unsupported filter %q", e.Filter)
}

// DecodeReader chains the filters' decoders in the order they are
// listed, each consuming the previous stage's output: a /Filter array
// lists filters in the order they are applied to decode.
func (c Chain) DecodeReader(r io.Reader) (io.Reader, error) {
	if len(c) > 1 {
		// spec.md §4.5.4: "chained filters are allowed but a warning is
		// emitted if more than one is present".
		log.Printf("filters: chained filter (%d links)", len(c))
	}
	var err error
	for _, f := range c {
		r, err = decodeOne(f, r)
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

func decodeOne(f Filter, r io.Reader) (io.Reader, error) {
	switch f.Name {
	case Flate:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("filters: FlateDecode: %w", err)
		}
		return applyPredictor(f, zr)
	case ASCII85:
		return decodeAscii85(r)
	case ASCIIHex:
		return decodeAsciiHex(r)
	case LZW:
		earlyChange := true
		if v, ok := f.Parms["EarlyChange"]; ok {
			earlyChange = v != 0
		}
		return applyPredictor(f, lzw.NewReader(r, earlyChange))
	case RunLength:
		return decodeRunLength(r)
	case Crypt:
		return r, nil // identity: decryption handled upstream by package crypt
	default:
		return nil, UnsupportedError{Filter: f.Name}
	}
}

// readAll is a small helper most decode-one-shot paths need.
func readAll(r io.Reader) ([]byte, error) {
	return ioutil.ReadAll(r)
}
