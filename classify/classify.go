// Package classify implements the byte classification tables (spec §4.1)
// shared by the whole scanning pipeline: a process-wide, read-only mapping
// from raw bytes to the symbol classes the PDF grammar distinguishes.
package classify

import "sync"

// Class is the symbol class a single byte belongs to.
type Class uint8

const (
	Regular Class = iota
	Whitespace
	Delimiter
	// HexDigit is a refinement of Regular: bytes that are both regular
	// and usable inside a hex string.
	HexDigit
)

var (
	once sync.Once

	classTable [256]Class
	hexValue   [256]uint8
	hexOK      [256]bool
	// escapeMap maps the byte following a backslash inside a literal
	// string to the byte it produces. escapeOK flags those bytes and the
	// octal digits; Escape still reports octal digits as not direct.
	escapeMap [256]byte
	escapeOK  [256]bool
)

func initTables() {
	for i := 0; i < 256; i++ {
		classTable[i] = Regular
	}

	for _, b := range []byte{0, 9, 10, 12, 13, 32} {
		classTable[b] = Whitespace
	}
	for _, b := range []byte("()<>[]{}/%") {
		classTable[b] = Delimiter
	}

	for c := byte('0'); c <= '9'; c++ {
		hexValue[c] = c - '0'
		hexOK[c] = true
	}
	for c := byte('a'); c <= 'f'; c++ {
		hexValue[c] = c - 'a' + 10
		hexOK[c] = true
	}
	for c := byte('A'); c <= 'F'; c++ {
		hexValue[c] = c - 'A' + 10
		hexOK[c] = true
	}

	escapes := map[byte]byte{
		'n': '\n', 'r': '\r', 't': '\t', 'b': '\b', 'f': '\f',
		'a': '\a', '\\': '\\', '(': '(', ')': ')',
	}
	for k, v := range escapes {
		escapeMap[k] = v
		escapeOK[k] = true
	}
	// octal digits are handled by the caller (they consume up to three
	// digits), but are flagged here so a single table lookup tells the
	// scanner whether a backslash-byte needs special handling at all.
	for c := byte('0'); c <= '7'; c++ {
		escapeOK[c] = true
	}
}

// Init populates the tables. It is idempotent and safe to call from
// multiple goroutines; only the first call does any work.
func Init() {
	once.Do(initTables)
}

// Of returns the symbol class of b. The tables are filled by the
// package's init function, so Of is ready for any importer.
func Of(b byte) Class {
	return classTable[b]
}

func IsWhitespace(b byte) bool { return classTable[b] == Whitespace }
func IsDelimiter(b byte) bool  { return classTable[b] == Delimiter }
func IsRegular(b byte) bool    { return classTable[b] == Regular }

// HexVal returns the 4-bit value of a hex digit and whether b is one.
func HexVal(b byte) (uint8, bool) {
	return hexValue[b], hexOK[b]
}

// Escape returns the byte produced by `\b` inside a literal string, and
// whether the mapping is a direct one (as opposed to requiring octal or
// line-continuation handling, which the scanner does itself).
func Escape(b byte) (byte, bool) {
	if !escapeOK[b] || IsOctalDigit(b) {
		return b, false
	}
	return escapeMap[b], true
}

// IsOctalDigit reports whether b is a valid octal escape digit.
func IsOctalDigit(b byte) bool {
	return b >= '0' && b <= '7'
}

// NumericKind classifies an already-isolated byte range the way
// classify-symbol does in spec §4.1: a symbol is Numeric if it has an
// optional leading sign, at most one '.', and otherwise only decimal
// digits.
type NumericKind uint8

const (
	NotNumeric NumericKind = iota
	Integer
	Real
)

// ClassifySymbol returns the classification of an already delimited byte
// range: delimiter, numeric (int/real), or regular.
func ClassifySymbol(b []byte) (Class, NumericKind) {
	if len(b) == 1 && classTable[b[0]] == Delimiter {
		return Delimiter, NotNumeric
	}

	if len(b) == 0 {
		return Regular, NotNumeric
	}

	i := 0
	if b[0] == '+' || b[0] == '-' {
		i++
	}
	if i == len(b) {
		return Regular, NotNumeric
	}

	sawDigit := false
	sawDot := false
	for ; i < len(b); i++ {
		switch {
		case b[i] >= '0' && b[i] <= '9':
			sawDigit = true
		case b[i] == '.' && !sawDot:
			sawDot = true
		default:
			return Regular, NotNumeric
		}
	}
	if !sawDigit {
		return Regular, NotNumeric
	}
	if sawDot {
		return Regular, Real
	}
	return Regular, Integer
}

func init() {
	Init()
}
