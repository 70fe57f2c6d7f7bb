package scanner

import (
	"github.com/arnegard/pdfmutate/classify"
	"github.com/arnegard/pdfmutate/opgraph"
	"github.com/arnegard/pdfmutate/pdfval"
)

// Symbol is one lexical unit produced by symbol extraction (spec §4.4).
// Delimiters and regular/numeric runs carry Text for opgraph keyword
// dispatch; literal strings, hex strings and names are fully parsed at
// extraction time (their internal grammar isn't keyword-shaped) and
// arrive pre-built as Atom, with IsAtom set.
type Symbol struct {
	Text   string
	Kind   opgraph.SymbolKind
	Atom   pdfval.Value
	IsAtom bool
	EOF    bool
	Offset int64
}

// byteSource abstracts over the two scanning backends spec §4.4 names:
// a fixed in-memory span ("fixed-buffer mode") and the twin stream's
// sliding heap ("streaming mode"). Both only need to grow-then-slice.
type byteSource interface {
	// Grow ensures n bytes starting at the cursor are resident; an error
	// (including io.EOF/io.ErrUnexpectedEOF) means fewer than n remain.
	Grow(n int) error
	// Bytes returns the n resident bytes starting at the cursor. Valid
	// only until the next Grow/Advance call.
	Bytes(n int) []byte
	Advance(n int)
	Offset() int64
}

// nextRawSymbol implements spec §4.4's symbol extraction: skip whitespace
// (collapsing comments), then either fully parse a string/hex-string/name
// atom, or accumulate a regular/numeric/punctuation run and classify it.
func (s *Scanner) nextRawSymbol() (Symbol, error) {
	if n := len(s.pushedSymbols); n > 0 {
		sym := s.pushedSymbols[n-1]
		s.pushedSymbols = s.pushedSymbols[:n-1]
		return sym, nil
	}

	for {
		if err := s.src.Grow(1); err != nil {
			return Symbol{EOF: true, Offset: s.src.Offset()}, nil
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
		break
	}

	start := s.src.Offset()
	b := s.src.Bytes(1)[0]

	switch {
	case b == '(':
		atom, err := s.scanLiteralString()
		return Symbol{IsAtom: true, Atom: atom, Offset: start}, err
	case b == '<':
		if err := s.src.Grow(2); err == nil && s.src.Bytes(2)[1] == '<' {
			s.src.Advance(2)
			return Symbol{Text: "<<", Kind: opgraph.SymDelimiter, Offset: start}, nil
		}
		atom, err := s.scanHexString()
		return Symbol{IsAtom: true, Atom: atom, Offset: start}, err
	case b == '>':
		if err := s.src.Grow(2); err == nil && s.src.Bytes(2)[1] == '>' {
			s.src.Advance(2)
			return Symbol{Text: ">>", Kind: opgraph.SymDelimiter, Offset: start}, nil
		}
		s.src.Advance(1)
		return Symbol{Text: ">", Kind: opgraph.SymDelimiter, Offset: start}, nil
	case b == '/':
		atom, err := s.scanName()
		return Symbol{IsAtom: true, Atom: atom, Offset: start}, err
	case b == '[' || b == ']' || b == '{' || b == '}':
		s.src.Advance(1)
		return Symbol{Text: string(b), Kind: opgraph.SymDelimiter, Offset: start}, nil
	case b == ')':
		// stray close-paren outside a literal string: tokenize alone so
		// the grammar's delimiter fallback can report it rather than the
		// scanner looping forever.
		s.src.Advance(1)
		return Symbol{Text: ")", Kind: opgraph.SymDelimiter, Offset: start}, nil
	default:
		return s.scanRegularRun(start)
	}
}

// consumeLine discards bytes up to and including the next line terminator
// (\n, \r, or \r\n). Shared by comment skipping and the PopLine
// instruction (spec §3).
func (s *Scanner) consumeLine() {
	for {
		if err := s.src.Grow(1); err != nil {
			return
		}
		b := s.src.Bytes(1)[0]
		s.src.Advance(1)
		if b == '\n' {
			return
		}
		if b == '\r' {
			if err := s.src.Grow(1); err == nil && s.src.Bytes(1)[0] == '\n' {
				s.src.Advance(1)
			}
			return
		}
	}
}

// ConsumeStreamLineBreak consumes exactly one line terminator sequence
// right after the "stream" keyword, per spec §4.4: "skip whitespace
// (consuming at most one line terminator sequence... to preserve
// downstream alignment for stream bodies)". Unlike generic whitespace
// skipping, this must not eat further blank lines or spaces: the PDF
// specification requires the stream's raw bytes to start immediately
// after this one EOL.
func (s *Scanner) ConsumeStreamLineBreak() {
	if err := s.src.Grow(1); err != nil {
		return
	}
	b := s.src.Bytes(1)[0]
	if b == '\r' {
		s.src.Advance(1)
		if err := s.src.Grow(1); err == nil && s.src.Bytes(1)[0] == '\n' {
			s.src.Advance(1)
		}
		return
	}
	if b == '\n' {
		s.src.Advance(1)
	}
}

func (s *Scanner) scanRegularRun(start int64) (Symbol, error) {
	var text []byte
	for {
		if err := s.src.Grow(1); err != nil {
			break
		}
		b := s.src.Bytes(1)[0]
		if classify.IsWhitespace(b) || classify.IsDelimiter(b) {
			break
		}
		text = append(text, b)
		s.src.Advance(1)
	}
	if len(text) == 0 {
		// A lone, otherwise-unclassified byte (shouldn't happen given the
		// switch above handles every delimiter) — tokenize it alone to
		// guarantee forward progress.
		b := s.src.Bytes(1)[0]
		s.src.Advance(1)
		text = []byte{b}
	}

	cls, numKind := classify.ClassifySymbol(text)
	sym := Symbol{Text: string(text), Offset: start}
	switch {
	case numKind != classify.NotNumeric:
		sym.Kind = opgraph.SymNumeric
		sym.IsAtom = true
		sym.Atom = pdfval.Number(sym.Text)
	case cls == classify.Delimiter:
		sym.Kind = opgraph.SymDelimiter
	default:
		sym.Kind = opgraph.SymRegular
		switch sym.Text {
		case "true":
			sym.IsAtom = true
			sym.Atom = pdfval.Bool(true)
		case "false":
			sym.IsAtom = true
			sym.Atom = pdfval.Bool(false)
		case "null":
			sym.IsAtom = true
			sym.Atom = pdfval.Null
		}
	}
	return sym, nil
}

// scanLiteralString parses a balanced "(...)" literal string, honoring
// nested (unescaped) parens and backslash escapes (spec §4.1, §4.2).
func (s *Scanner) scanLiteralString() (pdfval.Value, error) {
	s.src.Advance(1) // consume '('
	depth := 1
	var out []byte
	for depth > 0 {
		if err := s.src.Grow(1); err != nil {
			return pdfval.Null, err
		}
		b := s.src.Bytes(1)[0]
		s.src.Advance(1)
		switch b {
		case '(':
			depth++
			out = append(out, b)
		case ')':
			depth--
			if depth > 0 {
				out = append(out, b)
			}
		case '\\':
			decoded, ok, err := s.scanEscape()
			if err != nil {
				return pdfval.Null, err
			}
			if ok {
				out = append(out, decoded)
			}
		default:
			out = append(out, b)
		}
	}
	return pdfval.String(out, pdfval.Escaped, true), nil
}

// scanEscape decodes one backslash escape inside a literal string. ok is
// false for a line-continuation escape (backslash immediately followed by
// a line terminator), which contributes no byte to the output.
func (s *Scanner) scanEscape() (byte, bool, error) {
	if err := s.src.Grow(1); err != nil {
		return 0, false, err
	}
	b := s.src.Bytes(1)[0]
	if mapped, ok := classify.Escape(b); ok {
		s.src.Advance(1)
		return mapped, true, nil
	}
	if b == '\n' {
		s.src.Advance(1)
		return 0, false, nil
	}
	if b == '\r' {
		s.src.Advance(1)
		if err := s.src.Grow(1); err == nil && s.src.Bytes(1)[0] == '\n' {
			s.src.Advance(1)
		}
		return 0, false, nil
	}
	if classify.IsOctalDigit(b) {
		val := byte(0)
		for i := 0; i < 3; i++ {
			if err := s.src.Grow(1); err != nil {
				break
			}
			d := s.src.Bytes(1)[0]
			if !classify.IsOctalDigit(d) {
				break
			}
			val = val*8 + (d - '0')
			s.src.Advance(1)
		}
		return val, true, nil
	}
	// Unrecognized escape: PDF producers sometimes emit a bare backslash
	// before an otherwise ordinary character; ISO 32000-1 7.3.4.2 says the
	// backslash is then simply ignored and the character passes through.
	s.src.Advance(1)
	return b, true, nil
}

// scanHexString parses a "<...>" hex string, ignoring embedded whitespace
// and padding an odd trailing digit with an implicit 0 (ISO 32000-1
// 7.3.4.3).
func (s *Scanner) scanHexString() (pdfval.Value, error) {
	s.src.Advance(1) // consume '<'
	var digits []byte
	for {
		if err := s.src.Grow(1); err != nil {
			return pdfval.Null, err
		}
		b := s.src.Bytes(1)[0]
		s.src.Advance(1)
		if b == '>' {
			break
		}
		if classify.IsWhitespace(b) {
			continue
		}
		digits = append(digits, b)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		hi, _ := classify.HexVal(digits[2*i])
		lo, _ := classify.HexVal(digits[2*i+1])
		out[i] = hi<<4 | lo
	}
	return pdfval.String(out, pdfval.Hex, true), nil
}

// scanName parses a "/..." name, decoding "#xx" hex escapes (ISO 32000-1
// 7.3.5).
func (s *Scanner) scanName() (pdfval.Value, error) {
	s.src.Advance(1) // consume '/'
	var out []byte
	for {
		if err := s.src.Grow(1); err != nil {
			break
		}
		b := s.src.Bytes(1)[0]
		if classify.IsWhitespace(b) || classify.IsDelimiter(b) {
			break
		}
		if b == '#' {
			if err := s.src.Grow(3); err == nil {
				h1, ok1 := classify.HexVal(s.src.Bytes(3)[1])
				h2, ok2 := classify.HexVal(s.src.Bytes(3)[2])
				if ok1 && ok2 {
					out = append(out, h1<<4|h2)
					s.src.Advance(3)
					continue
				}
			}
		}
		out = append(out, b)
		s.src.Advance(1)
	}
	return pdfval.Name(string(out)), nil
}
