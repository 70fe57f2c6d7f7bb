package scanner

import (
	"fmt"
	"io"

	"github.com/arnegard/pdfmutate/classify"
	"github.com/arnegard/pdfmutate/pdfval"
	"github.com/arnegard/pdfmutate/twinstream"
)

// Scanner turns a byte source into PDF value atoms by driving the compiled
// grammar (spec §4.2-§4.4). It also exposes the linear file-structure
// primitives (object headers, keywords) the engine package parses without
// recursing through the grammar. One Scanner owns one environment stack;
// it is not safe for concurrent use, matching the teacher's per-goroutine
// tokenizer instances.
type Scanner struct {
	src     byteSource
	grammar *Grammar

	env           []*frame
	result        []pdfval.Value
	atom          pdfval.Value
	curSymbol     Symbol
	pushedSymbols []Symbol
}

// NewFromBytes builds a scanner over an in-memory span (spec §4.4's
// "fixed-buffer mode"), typically an object definition already captured by
// a branch read.
func NewFromBytes(data []byte) *Scanner {
	return &Scanner{src: &fixedSource{data: data}, grammar: PDFGrammar()}
}

// NewFromStream builds a scanner over a twin stream (spec §4.4's
// "streaming mode"); parsing advances ts's own input cursor.
func NewFromStream(ts *twinstream.Stream) *Scanner {
	return &Scanner{src: &twinSource{ts: ts}, grammar: PDFGrammar()}
}

// ParseValue parses exactly one PDF value starting at the current cursor
// (spec §4.2's entry point into the compiled grammar): a number, string,
// name, boolean, null, array, dictionary or indirect reference.
func (s *Scanner) ParseValue() (pdfval.Value, error) {
	if err := s.enterState(stValue, false); err != nil {
		return pdfval.Null, err
	}
	return s.atom, nil
}

// Offset returns the scanner's current absolute input offset.
func (s *Scanner) Offset() int64 { return s.src.Offset() }

// --- linear file-structure primitives (spec §4.5.1-§4.5.2): object
// envelopes and the xref/trailer/startxref keywords. These are plain
// sequential reads that never recurse through the compiled grammar,
// mirroring the teacher's split between its tokenizer and its
// hand-written object-envelope parser. ---

// SkipWhitespace advances past whitespace and comments without producing
// a symbol.
func (s *Scanner) SkipWhitespace() error {
	for {
		if err := s.src.Grow(1); err != nil {
			return err
		}
		b := s.src.Bytes(1)[0]
		if classify.IsWhitespace(b) {
			s.src.Advance(1)
			continue
		}
		if b == '%' {
			s.consumeLine()
			continue
		}
		return nil
	}
}

// ReadKeyword reads one token verbatim, skipping leading whitespace,
// without attempting numeric classification: "obj", "endobj", "stream",
// "xref" and the other file-structure keywords. It goes through the same
// symbol extraction the grammar uses, so a symbol pushed back by
// PeekKeyword is honored transparently.
func (s *Scanner) ReadKeyword() (string, error) {
	sym, err := s.nextRawSymbol()
	if err != nil {
		return "", err
	}
	if sym.EOF {
		return "", io.ErrUnexpectedEOF
	}
	return sym.Text, nil
}

// ExpectKeyword reads the next keyword and fails unless it matches kw
// exactly.
func (s *Scanner) ExpectKeyword(kw string) error {
	got, err := s.ReadKeyword()
	if err != nil {
		return err
	}
	if got != kw {
		return fmt.Errorf("scanner: expected keyword %q, got %q", kw, got)
	}
	return nil
}

// ReadInt reads one whitespace-delimited token and parses it as a
// non-negative integer: object numbers, generations and subsection counts
// in the linear file structure.
func (s *Scanner) ReadInt() (int, error) {
	tok, err := s.ReadKeyword()
	if err != nil {
		return 0, err
	}
	if tok == "" {
		return 0, fmt.Errorf("scanner: expected an integer, got an empty token")
	}
	n := 0
	for _, b := range []byte(tok) {
		if b < '0' || b > '9' {
			return 0, fmt.Errorf("scanner: %q is not an integer", tok)
		}
		n = n*10 + int(b-'0')
	}
	return n, nil
}

// ObjectHeader is the "N G obj" line introducing an indirect object
// definition (spec §4.5.1).
type ObjectHeader struct {
	Num, Gen int
}

// ParseObjectHeader reads one "N G obj" sequence.
func (s *Scanner) ParseObjectHeader() (ObjectHeader, error) {
	num, err := s.ReadInt()
	if err != nil {
		return ObjectHeader{}, err
	}
	gen, err := s.ReadInt()
	if err != nil {
		return ObjectHeader{}, err
	}
	if err := s.ExpectKeyword("obj"); err != nil {
		return ObjectHeader{}, err
	}
	return ObjectHeader{Num: num, Gen: gen}, nil
}

// PeekKeyword reads the next keyword without consuming it, so a caller can
// branch on "endobj" vs "stream" vs the start of a nested value. Whitespace
// preceding the keyword is consumed either way, matching the grammar's
// general stance that leading whitespace carries no meaning.
func (s *Scanner) PeekKeyword() (string, error) {
	sym, err := s.nextRawSymbol()
	if err != nil {
		return "", err
	}
	if sym.EOF {
		return "", io.ErrUnexpectedEOF
	}
	s.pushedSymbols = append(s.pushedSymbols, sym)
	return sym.Text, nil
}

// fixedSource implements byteSource over an in-memory span.
type fixedSource struct {
	data []byte
	pos  int64
}

func (f *fixedSource) Grow(n int) error {
	if f.pos+int64(n) > int64(len(f.data)) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (f *fixedSource) Bytes(n int) []byte { return f.data[f.pos : f.pos+int64(n)] }
func (f *fixedSource) Advance(n int)      { f.pos += int64(n) }
func (f *fixedSource) Offset() int64      { return f.pos }

// twinSource implements byteSource over the shared twin stream transport.
type twinSource struct {
	ts *twinstream.Stream
}

func (t *twinSource) Grow(n int) error   { return t.ts.Grow(n) }
func (t *twinSource) Bytes(n int) []byte { return t.ts.HeapSlice(n) }
func (t *twinSource) Advance(n int)      { t.ts.Advance(n) }
func (t *twinSource) Offset() int64      { return t.ts.InputOffset() }
